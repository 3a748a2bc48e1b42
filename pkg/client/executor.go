package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/rally-wsapi-client/pkg/cache"
	"github.com/Sternrassler/rally-wsapi-client/pkg/envelope"
	"github.com/google/uuid"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Send performs one WSAPI call and returns the decoded document.
//
// The security token, when set, is attached as the "key" query parameter.
// POST and PUT requests carry Payload as a JSON body. Failures are returned
// as *TransportError, *HTTPStatusError, *MalformedResponseError or
// *RemoteError; nothing is retried.
func (c *Connection) Send(ctx context.Context, req Request) (*envelope.Document, error) {
	method := req.method()
	if err := validateMethod(method); err != nil {
		return nil, err
	}

	auth := c.snapshot()

	params := copyParams(req.Params)
	if auth.securityToken != "" {
		params[TokenParam] = auth.securityToken
	}

	var cacheKey cache.CacheKey
	cacheable := c.cache != nil && method == http.MethodGet && !req.noCache
	if cacheable {
		cacheKey = c.cacheKey(req, auth)
		if doc, ok := c.fromCache(ctx, cacheKey); ok {
			return doc, nil
		}
	}

	var body io.Reader
	if hasBody(method) {
		payload, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	target, err := encodeURL(req.URL, params)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Method: method, URL: req.URL, Params: req.Params, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header = c.buildHeaders(method, auth)
	if auth.apiKey == "" && auth.username != "" {
		httpReq.SetBasicAuth(auth.username, auth.password)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set(RequestIDHeader, requestID)

	auth.debug.Log().
		Str("request_id", requestID).
		Str("method", method).
		Str("url", req.URL).
		Interface("params", req.Params).
		Msg("WSAPI calling")

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		wsapiRequestsTotal.WithLabelValues(method, "network_error").Inc()
		return nil, c.fail(&TransportError{Method: method, URL: req.URL, Params: req.Params, Err: err})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	wsapiRequestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	wsapiRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	if err != nil {
		return nil, c.fail(&TransportError{Method: method, URL: req.URL, Params: req.Params, Err: fmt.Errorf("read response body: %w", err)})
	}

	auth.debug.Log().
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Int("bytes", len(raw)).
		Msg("WSAPI response")

	if resp.StatusCode != http.StatusOK {
		statusErr := &HTTPStatusError{StatusCode: resp.StatusCode, URL: req.URL, Body: truncateBody(raw)}
		if req.expects(resp.StatusCode) {
			return nil, statusErr
		}
		return nil, c.fail(statusErr)
	}

	doc, err := c.decode(req.URL, raw)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := c.cache.Store(ctx, cacheKey, raw); err != nil {
			c.logger.Warn().Err(err).Str("url", req.URL).Msg("Failed to cache response")
		}
	}

	return doc, nil
}

// decode parses a 200 body and turns envelope errors into a RemoteError.
func (c *Connection) decode(rawURL string, raw []byte) (*envelope.Document, error) {
	doc, err := envelope.Decode(raw)
	if err != nil {
		return nil, c.fail(&MalformedResponseError{URL: rawURL, Body: truncateBody(raw), Err: err})
	}

	env := doc.Envelope
	if env.HasErrors() {
		return nil, c.fail(&RemoteError{URL: rawURL, Errors: env.Errors, Warnings: env.Warnings})
	}
	if len(env.Warnings) > 0 {
		c.logger.Warn().
			Str("url", rawURL).
			Str("envelope", env.Kind.String()).
			Strs("warnings", env.Warnings).
			Msg("WSAPI reported warnings")
	}
	return doc, nil
}

// fail records metrics and logs a request error before it is returned.
func (c *Connection) fail(err error) error {
	recordError(err)

	event := c.logger.Error()
	var remote *RemoteError
	switch {
	case errors.Is(err, context.Canceled):
		event = c.logger.Debug()
	case errors.As(err, &remote):
		event = c.logger.Warn()
	}
	event.Err(err).Str("error_class", string(ClassOf(err))).Msg("WSAPI request failed")
	return err
}

// cacheKey builds the cache key for a GET. The token parameter is left out.
func (c *Connection) cacheKey(req Request, auth authState) cache.CacheKey {
	principal := auth.username
	if auth.apiKey != "" {
		principal = fingerprint(auth.apiKey)
	}
	params := copyParams(req.Params)
	delete(params, TokenParam)
	return cache.CacheKey{
		URL:       req.URL,
		Params:    params,
		Principal: principal,
	}
}

func (c *Connection) fromCache(ctx context.Context, key cache.CacheKey) (*envelope.Document, bool) {
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("url", key.URL).Msg("Cache get error")
		}
		return nil, false
	}

	doc, err := envelope.Decode(entry.Data)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", key.URL).Msg("Discarding undecodable cache entry")
		_ = c.cache.Delete(ctx, key)
		return nil, false
	}

	c.logger.Debug().Str("url", key.URL).Dur("age", entry.Age()).Msg("Served from cache")
	return doc, true
}
