package types

import (
	"strconv"
	"strings"
)

const emptyField = "_"

// Token is a single CoNLL-X token. Optional columns are nil when the
// corpus has "_" in their place.
type Token struct {
	ID       int
	Form     string
	Lemma    *string
	CPOS     *string
	Tag      *string
	Features *Features
	Head     *int
	HeadRel  *string
	PHead    *int
	PHeadRel *string
}

func NewToken(form string) *Token {
	return &Token{Form: form}
}

// Feature returns the value of the named feature. The second return value
// is false when the token has no features, the feature is absent or the
// feature has no value.
func (token *Token) Feature(name string) (string, bool) {
	if token.Features == nil {
		return "", false
	}
	value, ok := token.Features.Get(name)
	if !ok || value == nil {
		return "", false
	}
	return *value, true
}

// SetFeature sets a feature value, creating the feature set if needed.
func (token *Token) SetFeature(name string, value string) {
	if token.Features == nil {
		token.Features = NewFeatures()
	}
	token.Features.Set(name, &value)
}

func (token Token) Clone() Token {
	clone := token
	if token.Features != nil {
		clone.Features = token.Features.Clone()
	}
	return clone
}

// String renders the token as a CoNLL-X line.
func (token *Token) String() string {
	return token.Format(token.ID)
}

// Format renders the token as a CoNLL-X line with id in place of its own
// identifier.
func (token *Token) Format(id int) string {
	var features string
	if token.Features == nil {
		features = emptyField
	} else {
		features = token.Features.String()
	}

	columns := []string{
		strconv.Itoa(id),
		orEmpty(&token.Form),
		orEmpty(token.Lemma),
		orEmpty(token.CPOS),
		orEmpty(token.Tag),
		features,
		intOrEmpty(token.Head),
		orEmpty(token.HeadRel),
		intOrEmpty(token.PHead),
		orEmpty(token.PHeadRel),
	}
	return strings.Join(columns, "\t")
}

func orEmpty(s *string) string {
	if s == nil || len(*s) == 0 {
		return emptyField
	}
	return *s
}

func intOrEmpty(n *int) string {
	if n == nil {
		return emptyField
	}
	return strconv.Itoa(*n)
}
