// Package tagging scores the label sequences predicted by a tagger against
// gold labels.
package tagging

import (
	"context"
	"fmt"

	"text2phenotype.com/toponn/types"
)

// Tagger predicts a label identifier for every token of a sentence.
type Tagger interface {
	Tag(ctx context.Context, sentence []*types.Token) ([]int32, error)
}

// Vocabulary resolves label identifiers. Both growable and frozen label
// tables implement it.
type Vocabulary interface {
	Value(id int32) (string, bool)
	Len() int
}

// InconsistentVocabularyError reports a label identifier outside the label
// table. This happens when a model and a label table do not belong together.
type InconsistentVocabularyError struct {
	ID       int32
	Size     int
	Position int
}

func (e *InconsistentVocabularyError) Error() string {
	return fmt.Sprintf("label identifier %d at position %d is outside the label table of size %d",
		e.ID, e.Position, e.Size)
}

// Resolve maps identifiers to labels, failing on the first identifier that
// is not in vocab.
func Resolve(vocab Vocabulary, ids []int32) ([]string, error) {
	labels := make([]string, len(ids))
	for i, id := range ids {
		label, ok := vocab.Value(id)
		if !ok {
			return nil, &InconsistentVocabularyError{ID: id, Size: vocab.Len(), Position: i}
		}
		labels[i] = label
	}
	return labels, nil
}
