// Package envelope decodes WSAPI response documents and classifies the
// result wrapper they carry.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies which result wrapper a document carries.
type Kind int

const (
	// KindNone marks a document without a recognised wrapper, such as a
	// single-object read.
	KindNone Kind = iota

	// KindOperation is an OperationResult wrapper.
	KindOperation

	// KindQuery is a QueryResult wrapper.
	KindQuery

	// KindCreate is a CreateResult wrapper.
	KindCreate
)

// Top-level keys of the recognised wrappers.
const (
	KeyOperationResult = "OperationResult"
	KeyQueryResult     = "QueryResult"
	KeyCreateResult    = "CreateResult"
)

// classifyOrder is the order wrappers are probed in when a document
// carries more than one of them.
var classifyOrder = []Kind{KindOperation, KindQuery, KindCreate}

// Key returns the top-level JSON key for the kind, or "" for KindNone.
func (k Kind) Key() string {
	switch k {
	case KindOperation:
		return KeyOperationResult
	case KindQuery:
		return KeyQueryResult
	case KindCreate:
		return KeyCreateResult
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if key := k.Key(); key != "" {
		return key
	}
	return "none"
}

// ErrNotObject is returned when a response body is valid JSON but not an object.
var ErrNotObject = errors.New("response is not a JSON object")

// Envelope is the classified result wrapper of a document.
type Envelope struct {
	Kind     Kind
	Errors   []string
	Warnings []string

	// Results and TotalResultCount are only populated for KindQuery.
	Results          []json.RawMessage
	TotalResultCount int

	// Object is the payload object of an OperationResult or CreateResult.
	Object json.RawMessage

	// Fields is the complete wrapper body keyed by field name.
	Fields map[string]json.RawMessage
}

// HasErrors reports whether the service reported logical errors.
func (e Envelope) HasErrors() bool {
	return len(e.Errors) > 0
}

// wrapperBody is the shape shared by all three wrappers.
type wrapperBody struct {
	Errors           []string          `json:"Errors"`
	Warnings         []string          `json:"Warnings"`
	Results          []json.RawMessage `json:"Results"`
	TotalResultCount int               `json:"TotalResultCount"`
	Object           json.RawMessage   `json:"Object"`
}

// Classify inspects a decoded top-level object and returns its envelope.
// A document without any of the three wrapper keys yields KindNone.
func Classify(raw map[string]json.RawMessage) (Envelope, error) {
	for _, kind := range classifyOrder {
		body, ok := raw[kind.Key()]
		if !ok || isNull(body) {
			continue
		}

		var wb wrapperBody
		if err := json.Unmarshal(body, &wb); err != nil {
			return Envelope{}, fmt.Errorf("decode %s: %w", kind.Key(), err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return Envelope{}, fmt.Errorf("decode %s fields: %w", kind.Key(), err)
		}

		env := Envelope{
			Kind:     kind,
			Errors:   wb.Errors,
			Warnings: wb.Warnings,
			Object:   wb.Object,
			Fields:   fields,
		}
		if kind == KindQuery {
			env.Results = wb.Results
			env.TotalResultCount = wb.TotalResultCount
		}
		return env, nil
	}
	return Envelope{Kind: KindNone}, nil
}

func isNull(msg json.RawMessage) bool {
	return len(msg) == 0 || string(msg) == "null"
}
