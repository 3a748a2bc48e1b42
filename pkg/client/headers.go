package client

import (
	"net/http"
)

const jsonContentType = "application/json"

// buildHeaders returns the header set for one request: the template, the
// API key under SessionHeader when present, and JSON content negotiation
// for POST and PUT.
func (c *Connection) buildHeaders(method string, auth authState) http.Header {
	h := c.headers.Clone()
	if auth.apiKey != "" {
		h.Set(SessionHeader, auth.apiKey)
	}
	if hasBody(method) {
		h.Set("Content-Type", jsonContentType)
		h.Set("Accept", jsonContentType)
	}
	return h
}
