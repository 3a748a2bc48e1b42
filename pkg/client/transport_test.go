package client

import (
	"crypto/tls"
	"net/http"
	"testing"
	"time"
)

func TestResolveProxy(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		env      map[string]string
		want     string
		wantErr  bool
	}{
		{
			name: "nothing set",
			want: "",
		},
		{
			name:     "explicit wins",
			explicit: "http://explicit:3128",
			env:      map[string]string{EnvHTTPProxy: "http://env:3128", EnvRallyProxy: "http://rally:3128"},
			want:     "http://explicit:3128",
		},
		{
			name: "http_proxy before rally_proxy",
			env:  map[string]string{EnvHTTPProxy: "http://env:3128", EnvRallyProxy: "http://rally:3128"},
			want: "http://env:3128",
		},
		{
			name: "rally_proxy fallback",
			env:  map[string]string{EnvRallyProxy: "http://rally:3128"},
			want: "http://rally:3128",
		},
		{
			name:     "credentials kept",
			explicit: "http://user:pw@proxy:8080",
			want:     "http://user:pw@proxy:8080",
		},
		{
			name:     "missing scheme",
			explicit: "proxy:8080",
			wantErr:  true,
		},
		{
			name:     "unparseable",
			explicit: "http://[::1",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(key string) string { return tt.env[key] }

			got, err := ResolveProxy(tt.explicit, getenv)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ResolveProxy() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveProxy() error = %v", err)
			}

			gotStr := ""
			if got != nil {
				gotStr = got.String()
			}
			if gotStr != tt.want {
				t.Errorf("ResolveProxy() = %q, want %q", gotStr, tt.want)
			}
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConnectTimeout = 7 * time.Second
	cfg.ReadTimeout = 11 * time.Second

	proxyURL, err := ResolveProxy("http://proxy:3128", noEnv)
	if err != nil {
		t.Fatalf("ResolveProxy() error = %v", err)
	}

	client := newHTTPClient(cfg, proxyURL)
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport = %T, want *http.Transport", client.Transport)
	}

	if transport.TLSHandshakeTimeout != 7*time.Second {
		t.Errorf("TLSHandshakeTimeout = %s, want 7s", transport.TLSHandshakeTimeout)
	}
	if transport.ResponseHeaderTimeout != 11*time.Second {
		t.Errorf("ResponseHeaderTimeout = %s, want 11s", transport.ResponseHeaderTimeout)
	}
	if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = false, want true by default")
	}
	if transport.Proxy == nil {
		t.Fatal("Proxy = nil, want proxy func")
	}

	req, _ := http.NewRequest(http.MethodGet, "https://rally1.rallydev.com/", nil)
	got, err := transport.Proxy(req)
	if err != nil || got == nil || got.Host != "proxy:3128" {
		t.Errorf("Proxy(req) = %v, %v; want proxy:3128", got, err)
	}
}

func TestNewHTTPClient_VerifiesTLSWhenRequested(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InsecureSkipVerify = false

	transport := newHTTPClient(cfg, nil).Transport.(*http.Transport)
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	if transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = true, want false")
	}
	if transport.Proxy != nil {
		t.Error("Proxy set without a proxy URL")
	}
}
