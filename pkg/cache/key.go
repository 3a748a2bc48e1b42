package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces all cache keys in Redis.
const keyPrefix = "wsapi"

// CacheKey identifies a cached WSAPI GET response.
type CacheKey struct {
	// URL is the request URL without query string
	// (e.g., "https://rally1.rallydev.com/slm/webservice/v2.0/defect").
	URL string

	// Params are the query parameters sent with the request. Credentials
	// such as the security token must be left out by the caller.
	Params map[string]string

	// Principal distinguishes callers with different visibility (API key
	// fingerprint or user name). Empty for anonymous access.
	Principal string
}

// String generates a deterministic cache key string.
// Format: wsapi:host/path:param1=val1:param2=val2[:as=principal]
//
// Example:
//
//	wsapi:rally1.rallydev.com/slm/webservice/v2.0/defect:pagesize=200:start=1
func (k CacheKey) String() string {
	parts := []string{keyPrefix}

	target := k.URL
	if u, err := url.Parse(k.URL); err == nil && u.Host != "" {
		target = u.Host + u.Path
		if u.RawQuery != "" {
			target += "?" + u.RawQuery
		}
	}
	target = strings.Trim(target, "/")
	if target != "" {
		parts = append(parts, target)
	}

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Params[name]))
		}
	}

	if k.Principal != "" {
		parts = append(parts, "as="+k.Principal)
	}

	return strings.Join(parts, ":")
}
