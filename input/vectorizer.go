// Package input converts sentences into the numeric input of a sequence
// labeling graph.
package input

import (
	"context"

	"github.com/sourcegraph/conc/pool"
	"text2phenotype.com/toponn/embeddings"
	"text2phenotype.com/toponn/numberer"
	"text2phenotype.com/toponn/types"
)

// SentVectorizer vectorizes sentences by replacing forms and tags with their
// embeddings and topological fields with their label identifiers.
type SentVectorizer struct {
	layerEmbeddings *embeddings.LayerEmbeddings
	numberer        *numberer.Numberer
}

func NewSentVectorizer(layerEmbeddings *embeddings.LayerEmbeddings, numberer *numberer.Numberer) *SentVectorizer {
	return &SentVectorizer{
		layerEmbeddings: layerEmbeddings,
		numberer:        numberer,
	}
}

func (v *SentVectorizer) LayerEmbeddings() *embeddings.LayerEmbeddings {
	return v.layerEmbeddings
}

// Numberer returns the topological field label table.
func (v *SentVectorizer) Numberer() *numberer.Numberer {
	return v.numberer
}

// Realize vectorizes a sentence whose tokens carry a part-of-speech tag and
// a tf feature. Unseen tf values are added to the label table.
func (v *SentVectorizer) Realize(sentence []*types.Token) (*SentVec, error) {
	return v.realize(sentence, true)
}

// RealizeInputs vectorizes the forms and tags of a sentence only, for
// sentences that still have to be tagged. Labels stays empty.
func (v *SentVectorizer) RealizeInputs(sentence []*types.Token) (*SentVec, error) {
	return v.realize(sentence, false)
}

func (v *SentVectorizer) realize(sentence []*types.Token, withLabels bool) (*SentVec, error) {
	tokenEmbeddings := v.layerEmbeddings.TokenEmbeddings()
	tagEmbeddings := v.layerEmbeddings.TagEmbeddings()
	input := NewSentVecWithCapacity(len(sentence), tokenEmbeddings.Dims(), tagEmbeddings.Dims())

	for _, token := range sentence {
		if token.Tag == nil {
			return nil, &MissingFieldError{Field: FieldPOS, Token: token.String()}
		}

		var tf string
		if withLabels {
			var ok bool
			if tf, ok = token.Feature(FieldTopologicalField); !ok {
				return nil, &MissingFieldError{Field: FieldTopologicalField, Token: token.String()}
			}
		}

		input.Tokens = append(input.Tokens, tokenEmbeddings.Embedding(token.Form)...)
		input.Tags = append(input.Tags, tagEmbeddings.Embedding(*token.Tag)...)

		if withLabels {
			input.Labels = append(input.Labels, v.numberer.Number(tf))
		}
	}

	return input, nil
}

// RealizeBatch realizes sentences on up to workers goroutines. Results are
// in input order; the first error cancels the remaining work. Labels are
// numbered in completion order, so a fresh table may assign different
// identifiers than sequential Realize calls would.
func (v *SentVectorizer) RealizeBatch(ctx context.Context, sentences [][]*types.Token, workers int, withLabels bool) ([]*SentVec, error) {
	if workers < 1 {
		workers = 1
	}
	result := make([]*SentVec, len(sentences))
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError().WithFirstError()
	for i, sentence := range sentences {
		i, sentence := i, sentence
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sv, err := v.realize(sentence, withLabels)
			if err != nil {
				return err
			}
			result[i] = sv
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
