package client

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Sternrassler/rally-wsapi-client/pkg/envelope"
)

// securityPath is the token endpoint relative to the WSAPI base URL.
const securityPath = "/security/authorize"

// SecurityURL returns the token endpoint for a WSAPI base URL such as
// https://rally1.rallydev.com/slm/webservice/v2.0.
func SecurityURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + securityPath
}

// AcquireSecurityToken fetches a security token from securityURL and stores
// it on the connection.
//
// Servers without a token endpoint answer 404 or 500; in that case the token
// stays unset and AcquireSecurityToken returns "", nil. Every other failure
// is returned as *TokenAcquisitionError.
func (c *Connection) AcquireSecurityToken(ctx context.Context, securityURL string) (string, error) {
	doc, err := c.Send(ctx, Request{
		URL:      securityURL,
		Method:   http.MethodGet,
		noCache:  true,
		expected: []int{http.StatusNotFound, http.StatusInternalServerError},
	})
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) &&
			(statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusInternalServerError) {
			wsapiSecurityTokenRequestsTotal.WithLabelValues("unsupported").Inc()
			c.logger.Warn().
				Int("status", statusErr.StatusCode).
				Str("url", securityURL).
				Msg("Security token endpoint not supported, continuing without token")
			return "", nil
		}
		return "", c.tokenFailure(securityURL, err)
	}

	token, err := extractSecurityToken(doc)
	if err != nil {
		return "", c.tokenFailure(securityURL, err)
	}

	c.SetSecurityToken(token)
	wsapiSecurityTokenRequestsTotal.WithLabelValues("acquired").Inc()
	c.logger.Info().Str("url", securityURL).Msg("Security token acquired")
	return token, nil
}

func (c *Connection) tokenFailure(securityURL string, err error) error {
	wsapiSecurityTokenRequestsTotal.WithLabelValues("failed").Inc()
	tokenErr := &TokenAcquisitionError{URL: securityURL, Err: err}
	recordError(tokenErr)
	return tokenErr
}

// extractSecurityToken reads SecurityToken from the object under the
// document's single top-level key. OperationResult wins when several keys
// are present.
func extractSecurityToken(doc *envelope.Document) (string, error) {
	key := envelope.KeyOperationResult
	if _, ok := doc.Raw[key]; !ok {
		keys := doc.Keys()
		if len(keys) != 1 {
			return "", ErrNoSecurityToken
		}
		key = keys[0]
	}

	var body struct {
		SecurityToken string `json:"SecurityToken"`
	}
	if err := doc.Field(key, &body); err != nil {
		return "", errors.Join(ErrNoSecurityToken, err)
	}
	if body.SecurityToken == "" {
		return "", ErrNoSecurityToken
	}
	return body.SecurityToken, nil
}

// SetSecurityToken installs a token without contacting the service.
func (c *Connection) SetSecurityToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.securityToken = token
}

// SecurityToken returns the current token, or "" when none is set.
func (c *Connection) SecurityToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.securityToken
}
