package input

import (
	"fmt"
)

const (
	FieldPOS              = "pos"
	FieldTopologicalField = "tf"
)

// MissingFieldError reports a token that lacks a field the vectorizer
// needs. Token holds the CoNLL-X rendering of the offending token.
type MissingFieldError struct {
	Field string
	Token string
}

func (e *MissingFieldError) Error() string {
	switch e.Field {
	case FieldPOS:
		return fmt.Sprintf("token without part-of-speech tag: %s", e.Token)
	case FieldTopologicalField:
		return fmt.Sprintf("no features field with a topological field (tf) feature: %s", e.Token)
	default:
		return fmt.Sprintf("token without %s field: %s", e.Field, e.Token)
	}
}
