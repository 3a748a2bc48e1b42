package envelope

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Document is a decoded response body together with its classified envelope.
type Document struct {
	Raw      map[string]json.RawMessage
	Envelope Envelope
}

// Decode parses a response body. The body must be a JSON object.
func Decode(body []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNotObject
	}

	env, err := Classify(raw)
	if err != nil {
		return nil, err
	}
	return &Document{Raw: raw, Envelope: env}, nil
}

// Keys returns the document's top-level keys in sorted order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.Raw))
	for k := range d.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Field decodes the value stored under a top-level key into v.
func (d *Document) Field(key string, v any) error {
	msg, ok := d.Raw[key]
	if !ok {
		return fmt.Errorf("document has no %q field", key)
	}
	return json.Unmarshal(msg, v)
}

// SetResults replaces the query results of the document, keeping the raw
// QueryResult body in sync.
func (d *Document) SetResults(results []json.RawMessage) error {
	if d.Envelope.Kind != KindQuery {
		return fmt.Errorf("set results on %s document", d.Envelope.Kind)
	}
	if results == nil {
		results = []json.RawMessage{}
	}

	encoded, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	fields := make(map[string]json.RawMessage, len(d.Envelope.Fields)+1)
	for k, v := range d.Envelope.Fields {
		fields[k] = v
	}
	fields["Results"] = encoded

	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyQueryResult, err)
	}

	d.Envelope.Results = results
	d.Envelope.Fields = fields
	d.Raw[KeyQueryResult] = body
	return nil
}

// MarshalJSON encodes the raw document.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Raw)
}
