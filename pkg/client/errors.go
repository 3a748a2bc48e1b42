package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrInvalidMethod is returned for HTTP methods other than GET, POST, PUT and DELETE.
	ErrInvalidMethod = errors.New("unsupported HTTP method")

	// ErrInvalidWorkerCount is returned when a worker count is not an integer.
	ErrInvalidWorkerCount = errors.New("worker count must be an integer")

	// ErrNoQueryResult is returned when a paged request is answered without a QueryResult.
	ErrNoQueryResult = errors.New("response carries no QueryResult")

	// ErrNoSecurityToken is returned when the token endpoint answers without a SecurityToken.
	ErrNoSecurityToken = errors.New("response carries no SecurityToken")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents connection, DNS and timeout failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassClient represents non-200 statuses below 500.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx statuses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassMalformed represents bodies that are not a JSON object.
	ErrorClassMalformed ErrorClass = "malformed"

	// ErrorClassRemote represents errors reported inside a result envelope.
	ErrorClassRemote ErrorClass = "remote"

	// ErrorClassToken represents security token acquisition failures.
	ErrorClassToken ErrorClass = "token"
)

// maxBodyInError caps how much of a response body is kept in an error.
const maxBodyInError = 4096

// TransportError is returned when the HTTP call itself failed: connection
// refused, DNS failure, timeout or cancellation.
type TransportError struct {
	Method string
	URL    string
	Params map[string]string
	Err    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("WSAPI %s %s failed with params %v: %v", e.Method, e.URL, e.Params, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error { return e.Err }

// Class returns the error class.
func (e *TransportError) Class() ErrorClass { return ErrorClassNetwork }

// HTTPStatusError is returned for any status other than 200.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("WSAPI HTTP-%d on request %s: %s", e.StatusCode, e.URL, e.Body)
}

// Class returns the error class.
func (e *HTTPStatusError) Class() ErrorClass {
	if e.StatusCode >= http.StatusInternalServerError {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// MalformedResponseError is returned when a 200 response cannot be decoded
// as a JSON object, or lacks the envelope the caller requires.
type MalformedResponseError struct {
	URL  string
	Body string
	Err  error
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("WSAPI malformed response from %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Class returns the error class.
func (e *MalformedResponseError) Class() ErrorClass { return ErrorClassMalformed }

// RemoteError is returned when the HTTP call succeeded but the service
// reported errors inside the result envelope.
type RemoteError struct {
	URL      string
	Errors   []string
	Warnings []string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("WSAPI error on request %s: %s", e.URL, strings.Join(e.Errors, "; "))
}

// Class returns the error class.
func (e *RemoteError) Class() ErrorClass { return ErrorClassRemote }

// TokenAcquisitionError is returned when the security token could not be
// obtained for a reason other than the endpoint being unsupported.
type TokenAcquisitionError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *TokenAcquisitionError) Error() string {
	return fmt.Sprintf("WSAPI security token from %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TokenAcquisitionError) Unwrap() error { return e.Err }

// Class returns the error class.
func (e *TokenAcquisitionError) Class() ErrorClass { return ErrorClassToken }

// ClassOf returns the class of err, or "" when err carries none.
func ClassOf(err error) ErrorClass {
	var classed interface{ Class() ErrorClass }
	if errors.As(err, &classed) {
		return classed.Class()
	}
	return ""
}

func truncateBody(body []byte) string {
	if len(body) <= maxBodyInError {
		return string(body)
	}
	return string(body[:maxBodyInError]) + "...(truncated)"
}
