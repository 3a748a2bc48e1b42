package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/Sternrassler/rally-wsapi-client/internal/testutil"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

const basePath = "/slm/webservice/v2.0"

func TestSecurityURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://rally1.rallydev.com/slm/webservice/v2.0", "https://rally1.rallydev.com/slm/webservice/v2.0/security/authorize"},
		{"https://rally1.rallydev.com/slm/webservice/v2.0/", "https://rally1.rallydev.com/slm/webservice/v2.0/security/authorize"},
	}
	for _, tt := range tests {
		if got := SecurityURL(tt.base); got != tt.want {
			t.Errorf("SecurityURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestAcquireSecurityToken(t *testing.T) {
	mock := testutil.NewMockWSAPI()
	defer mock.Close()
	mock.SetResponse(basePath+securityPath, testutil.NewSecurityTokenResponse("abc-token"))
	mock.SetResponse(basePath+"/defect", testutil.NewQueryResponse(0))

	c := newTestConnection(t, func(cfg *Config) {
		cfg.Username = "user@example.com"
		cfg.Password = "pw"
	})

	token, err := c.AcquireSecurityToken(context.Background(), SecurityURL(mock.Endpoint(basePath)))
	if err != nil {
		t.Fatalf("AcquireSecurityToken() error = %v", err)
	}
	if token != "abc-token" || c.SecurityToken() != "abc-token" {
		t.Errorf("token = %q, stored %q; want abc-token", token, c.SecurityToken())
	}

	if _, err := c.Send(context.Background(), NewRequest(mock.Endpoint(basePath+"/defect"), nil)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := mock.LastRequest().Query.Get(TokenParam); got != "abc-token" {
		t.Errorf("%s = %q, want abc-token", TokenParam, got)
	}
}

func TestAcquireSecurityToken_SingleUnknownKey(t *testing.T) {
	mock := testutil.NewMockWSAPI()
	defer mock.Close()
	mock.SetResponse(basePath+securityPath, testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"SecurityResult": {"SecurityToken": "from-other-key"}}`,
	})

	c := newTestConnection(t, nil)
	token, err := c.AcquireSecurityToken(context.Background(), SecurityURL(mock.Endpoint(basePath)))
	if err != nil {
		t.Fatalf("AcquireSecurityToken() error = %v", err)
	}
	if token != "from-other-key" {
		t.Errorf("token = %q, want from-other-key", token)
	}
}

func TestAcquireSecurityToken_Unsupported(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			mock := testutil.NewMockWSAPI()
			defer mock.Close()
			mock.SetResponse(basePath+securityPath, testutil.NewStatusResponse(status, "unsupported"))

			c := newTestConnection(t, nil)
			var logs bytes.Buffer
			c.logger = zerolog.New(&logs)
			class := string((&HTTPStatusError{StatusCode: status}).Class())
			errorsBefore := promtestutil.ToFloat64(wsapiErrorsTotal.WithLabelValues(class))

			token, err := c.AcquireSecurityToken(context.Background(), SecurityURL(mock.Endpoint(basePath)))
			if err != nil {
				t.Fatalf("AcquireSecurityToken() error = %v, want nil for HTTP-%d", err, status)
			}
			if token != "" || c.SecurityToken() != "" {
				t.Errorf("token = %q, stored %q; want empty", token, c.SecurityToken())
			}

			if got := promtestutil.ToFloat64(wsapiErrorsTotal.WithLabelValues(class)); got != errorsBefore {
				t.Errorf("wsapi_errors_total changed from %v to %v", errorsBefore, got)
			}
			if strings.Contains(logs.String(), `"level":"error"`) {
				t.Errorf("unsupported endpoint logged an error:\n%s", logs.String())
			}
			if !strings.Contains(logs.String(), "not supported") {
				t.Errorf("missing warning in logs:\n%s", logs.String())
			}
		})
	}
}

func TestAcquireSecurityToken_Failures(t *testing.T) {
	tests := []struct {
		name  string
		resp  testutil.MockResponse
		check func(t *testing.T, err error)
	}{
		{
			name: "forbidden",
			resp: testutil.NewStatusResponse(http.StatusForbidden, "denied"),
			check: func(t *testing.T, err error) {
				var statusErr *HTTPStatusError
				if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusForbidden {
					t.Errorf("cause = %v, want HTTP-403", err)
				}
			},
		},
		{
			name: "unavailable",
			resp: testutil.NewStatusResponse(http.StatusServiceUnavailable, "later"),
			check: func(t *testing.T, err error) {
				var statusErr *HTTPStatusError
				if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
					t.Errorf("cause = %v, want HTTP-503", err)
				}
			},
		},
		{
			name: "malformed body",
			resp: testutil.NewStatusResponse(http.StatusOK, "not json"),
			check: func(t *testing.T, err error) {
				var malformed *MalformedResponseError
				if !errors.As(err, &malformed) {
					t.Errorf("cause = %v, want *MalformedResponseError", err)
				}
			},
		},
		{
			name: "remote error",
			resp: testutil.NewRemoteErrorResponse("OperationResult", "Not authorized"),
			check: func(t *testing.T, err error) {
				var remote *RemoteError
				if !errors.As(err, &remote) {
					t.Errorf("cause = %v, want *RemoteError", err)
				}
			},
		},
		{
			name: "missing token",
			resp: testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"OperationResult": {"Errors": [], "Warnings": []}}`},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNoSecurityToken) {
					t.Errorf("cause = %v, want ErrNoSecurityToken", err)
				}
			},
		},
		{
			name: "several keys without OperationResult",
			resp: testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"A": {"SecurityToken": "x"}, "B": {}}`},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNoSecurityToken) {
					t.Errorf("cause = %v, want ErrNoSecurityToken", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockWSAPI()
			defer mock.Close()
			mock.SetResponse(basePath+securityPath, tt.resp)

			c := newTestConnection(t, func(cfg *Config) { cfg.SecurityToken = "previous" })
			token, err := c.AcquireSecurityToken(context.Background(), SecurityURL(mock.Endpoint(basePath)))

			var tokenErr *TokenAcquisitionError
			if !errors.As(err, &tokenErr) {
				t.Fatalf("error = %v, want *TokenAcquisitionError", err)
			}
			if ClassOf(err) != ErrorClassToken {
				t.Errorf("ClassOf() = %q, want %q", ClassOf(err), ErrorClassToken)
			}
			if token != "" {
				t.Errorf("token = %q, want empty", token)
			}
			if c.SecurityToken() != "previous" {
				t.Errorf("stored token = %q, want unchanged", c.SecurityToken())
			}
			tt.check(t, err)
		})
	}
}

func TestAcquireSecurityToken_NotCached(t *testing.T) {
	mock := testutil.NewMockWSAPI()
	defer mock.Close()
	mock.SetResponse(basePath+securityPath, testutil.NewSecurityTokenResponse("fresh"))

	c := newTestConnection(t, nil)
	for i := 0; i < 2; i++ {
		if _, err := c.AcquireSecurityToken(context.Background(), SecurityURL(mock.Endpoint(basePath))); err != nil {
			t.Fatalf("AcquireSecurityToken() error = %v", err)
		}
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("request count = %d, want 2", mock.GetRequestCount())
	}
}

func TestSetSecurityToken(t *testing.T) {
	c := newTestConnection(t, nil)
	if c.SecurityToken() != "" {
		t.Errorf("SecurityToken() = %q, want empty", c.SecurityToken())
	}
	c.SetSecurityToken("manual")
	if c.SecurityToken() != "manual" {
		t.Errorf("SecurityToken() = %q, want manual", c.SecurityToken())
	}
}
