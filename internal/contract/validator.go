// Package contract enforces the response contract of the remote reasoning
// service. Validation is all-or-nothing: a response either becomes a fully
// typed Reaction or a Violation error. There is no repair, no partial
// acceptance, and no duck typing.
package contract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hackerthon-gemini-agc/boni/pkg/models"
)

// Violation is the typed error for any contract failure. Field names the
// offending field when one can be identified.
type Violation struct {
	Field  string
	Detail string
}

func (v *Violation) Error() string {
	if v.Field == "" {
		return fmt.Sprintf("contract violation: %s", v.Detail)
	}
	return fmt.Sprintf("contract violation: field %q: %s", v.Field, v.Detail)
}

func violation(field, format string, args ...any) *Violation {
	return &Violation{Field: field, Detail: fmt.Sprintf(format, args...)}
}

// requiredFields is the exact field set of the response contract.
var requiredFields = []string{"message", "expression", "placement", "mood"}

// Validate parses raw as exactly one JSON object against the response
// contract. Models wrap JSON in markdown fences often enough that stripping
// them is part of parsing, not repair; everything after that is strict.
func Validate(raw []byte) (*models.Reaction, error) {
	trimmed := stripFences(raw)

	// First pass: generic map to catch missing and extra fields precisely.
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(&fields); err != nil {
		return nil, violation("", "not a JSON object: %v", err)
	}
	// Exactly one object: trailing content is a violation.
	if dec.More() {
		return nil, violation("", "trailing content after object")
	}

	for _, name := range requiredFields {
		if _, ok := fields[name]; !ok {
			return nil, violation(name, "missing")
		}
	}
	if len(fields) != len(requiredFields) {
		for name := range fields {
			if !isRequired(name) {
				return nil, violation(name, "unexpected field")
			}
		}
	}

	var reaction models.Reaction
	strict := json.NewDecoder(bytes.NewReader(trimmed))
	strict.DisallowUnknownFields()
	if err := strict.Decode(&reaction); err != nil {
		return nil, violation("", "wrong field type: %v", err)
	}

	if strings.TrimSpace(reaction.Message) == "" {
		return nil, violation("message", "empty")
	}
	if !reaction.Expression.Valid() {
		return nil, violation("expression", "%q not in allowed set", reaction.Expression)
	}
	if !reaction.Placement.Valid() {
		return nil, violation("placement", "%q not in allowed set", reaction.Placement)
	}
	if !reaction.Mood.Valid() {
		return nil, violation("mood", "%q not in allowed set", reaction.Mood)
	}

	return &reaction, nil
}

func isRequired(name string) bool {
	for _, f := range requiredFields {
		if f == name {
			return true
		}
	}
	return false
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return []byte(s)
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return []byte(strings.TrimSpace(s))
}
