package client

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
)

// TokenParam is the query parameter carrying the security token.
const TokenParam = "key"

// Request describes one WSAPI call. Requests are values: derive variants
// with WithParams instead of mutating Params.
type Request struct {
	URL     string
	Method  string
	Params  map[string]string
	Payload any

	noCache bool

	// expected lists non-200 statuses the caller handles itself; they are
	// returned as *HTTPStatusError without being logged or counted as errors.
	expected []int
}

// NewRequest creates a GET request for rawURL with a copy of params.
func NewRequest(rawURL string, params map[string]string) Request {
	return Request{
		URL:    rawURL,
		Method: http.MethodGet,
		Params: copyParams(params),
	}
}

// WithParams returns a copy of r whose parameters are r.Params overlaid by
// overrides.
func (r Request) WithParams(overrides map[string]string) Request {
	params := copyParams(r.Params)
	for k, v := range overrides {
		params[k] = v
	}
	r.Params = params
	return r
}

// WithMethod returns a copy of r using method.
func (r Request) WithMethod(method string) Request {
	r.Params = copyParams(r.Params)
	r.Method = method
	return r
}

// method returns the request method, defaulting to GET.
func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

func (r Request) expects(status int) bool {
	return slices.Contains(r.expected, status)
}

func validateMethod(method string) error {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
}

// hasBody reports whether requests with method carry a JSON payload.
func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut
}

// encodeURL returns rawURL with params merged into its query string.
func encodeURL(rawURL string, params map[string]string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if len(params) == 0 {
		return u.String(), nil
	}

	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func copyParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
