// Package inference connects vectorized sentences to the model runtime that
// predicts topological fields.
package inference

import (
	"context"

	"text2phenotype.com/toponn/input"
)

// Runtime runs the sequence labeling graph. Predict returns one label
// identifier per token for every sentence of the batch.
type Runtime interface {
	Predict(ctx context.Context, batch *Batch) ([][]int32, error)
}

// Batch is the graph input for several sentences. Token and tag embeddings
// of each sentence are zero-padded to MaxLen tokens.
type Batch struct {
	TokenDims int         `json:"token_dims"`
	TagDims   int         `json:"tag_dims"`
	MaxLen    int         `json:"max_len"`
	Tokens    [][]float32 `json:"tokens"`
	Tags      [][]float32 `json:"tags"`
	SeqLens   []int32     `json:"seq_lens"`
}

func NewBatch(tokenDims int, tagDims int, sentences []*input.SentVec) *Batch {
	maxLen := 0
	seqLens := make([]int32, len(sentences))
	for i, sv := range sentences {
		n := 0
		if tokenDims > 0 {
			n = len(sv.Tokens) / tokenDims
		} else if tagDims > 0 {
			n = len(sv.Tags) / tagDims
		}
		seqLens[i] = int32(n)
		if n > maxLen {
			maxLen = n
		}
	}

	batch := &Batch{
		TokenDims: tokenDims,
		TagDims:   tagDims,
		MaxLen:    maxLen,
		Tokens:    make([][]float32, len(sentences)),
		Tags:      make([][]float32, len(sentences)),
		SeqLens:   seqLens,
	}
	for i, sv := range sentences {
		batch.Tokens[i] = padded(sv.Tokens, maxLen*tokenDims)
		batch.Tags[i] = padded(sv.Tags, maxLen*tagDims)
	}
	return batch
}

func (batch *Batch) Len() int {
	return len(batch.SeqLens)
}

func padded(v []float32, n int) []float32 {
	p := make([]float32, n)
	copy(p, v)
	return p
}
