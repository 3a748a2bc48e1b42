package cache

import (
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "url without params",
			key: CacheKey{
				URL: "https://rally1.rallydev.com/slm/webservice/v2.0/defect/",
			},
			want: "wsapi:rally1.rallydev.com/slm/webservice/v2.0/defect",
		},
		{
			name: "url with params (sorted)",
			key: CacheKey{
				URL: "https://rally1.rallydev.com/slm/webservice/v2.0/defect",
				Params: map[string]string{
					"start":    "201",
					"pagesize": "200",
					"fetch":    "Name,FormattedID",
				},
			},
			want: "wsapi:rally1.rallydev.com/slm/webservice/v2.0/defect:fetch=Name,FormattedID:pagesize=200:start=201",
		},
		{
			name: "principal appended last",
			key: CacheKey{
				URL:       "https://rally1.rallydev.com/slm/webservice/v2.0/task",
				Params:    map[string]string{"start": "1"},
				Principal: "abc123",
			},
			want: "wsapi:rally1.rallydev.com/slm/webservice/v2.0/task:start=1:as=abc123",
		},
		{
			name: "relative path",
			key: CacheKey{
				URL: "/slm/webservice/v2.0/task/",
			},
			want: "wsapi:slm/webservice/v2.0/task",
		},
		{
			name: "empty",
			key:  CacheKey{},
			want: "wsapi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCacheKey_Determinism ensures same input always produces same key
func TestCacheKey_Determinism(t *testing.T) {
	key := CacheKey{
		URL: "https://rally1.rallydev.com/slm/webservice/v2.0/hierarchicalrequirement",
		Params: map[string]string{
			"query":    "(State = Open)",
			"pagesize": "200",
			"start":    "401",
			"order":    "ObjectID",
		},
		Principal: "user@example.com",
	}

	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		results[i] = key.String()
	}

	first := results[0]
	for i, result := range results {
		if result != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, result, first)
		}
	}
}
