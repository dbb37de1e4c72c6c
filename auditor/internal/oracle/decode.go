package oracle

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// SchemaError reports a reply that does not match the expected shape.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "schema violation: " + e.Reason
}

// Validator is implemented by reply shapes with constraints beyond what
// encoding/json checks (required fields, ranges).
type Validator interface {
	Validate() error
}

// Decode parses reply as exactly one JSON object matching v. A single
// surrounding markdown code fence is tolerated; the object itself is
// checked strictly.
func Decode(reply string, v any) error {
	body := stripFence(strings.TrimSpace(reply))
	if !strings.HasPrefix(body, "{") {
		return &SchemaError{Reason: "reply is not a JSON object"}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &SchemaError{Reason: err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &SchemaError{Reason: "trailing data after object"}
	}

	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return &SchemaError{Reason: err.Error()}
		}
	}
	return nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
