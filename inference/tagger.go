package inference

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"text2phenotype.com/toponn/input"
	"text2phenotype.com/toponn/logger"
	"text2phenotype.com/toponn/tagging"
	"text2phenotype.com/toponn/types"
)

const DefaultBatchSize = 128

// Tagger predicts topological fields with a model runtime.
type Tagger struct {
	vectorizer *input.SentVectorizer
	runtime    Runtime
	labels     tagging.Vocabulary
	batchSize  int
	workers    int
	tagLogger  zerolog.Logger
}

func NewTagger(vectorizer *input.SentVectorizer, runtime Runtime, labels tagging.Vocabulary, batchSize int, workers int) *Tagger {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if workers <= 0 {
		workers = 1
	}
	return &Tagger{
		vectorizer: vectorizer,
		runtime:    runtime,
		labels:     labels,
		batchSize:  batchSize,
		workers:    workers,
		tagLogger:  logger.NewLogger("Tagger"),
	}
}

// Tag implements tagging.Tagger.
func (tagger *Tagger) Tag(ctx context.Context, sentence []*types.Token) ([]int32, error) {
	ids, err := tagger.TagIDs(ctx, [][]*types.Token{sentence})
	if err != nil {
		return nil, err
	}
	return ids[0], nil
}

// TagIDs predicts label identifiers, sending at most batchSize sentences to
// the runtime at once.
func (tagger *Tagger) TagIDs(ctx context.Context, sentences [][]*types.Token) ([][]int32, error) {
	layers := tagger.vectorizer.LayerEmbeddings()
	tokenDims := layers.TokenEmbeddings().Dims()
	tagDims := layers.TagEmbeddings().Dims()

	result := make([][]int32, 0, len(sentences))
	for begin := 0; begin < len(sentences); begin += tagger.batchSize {
		end := begin + tagger.batchSize
		if end > len(sentences) {
			end = len(sentences)
		}

		svs, err := tagger.vectorizer.RealizeBatch(ctx, sentences[begin:end], tagger.workers, false)
		if err != nil {
			return nil, err
		}

		batch := NewBatch(tokenDims, tagDims, svs)
		tagger.tagLogger.Debug().
			Int("sentences", batch.Len()).
			Int("max_len", batch.MaxLen).
			Msg("Sending batch to runtime")

		predictions, err := tagger.runtime.Predict(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(predictions) != batch.Len() {
			return nil, fmt.Errorf("runtime returned %d predictions for %d sentences", len(predictions), batch.Len())
		}
		for i, prediction := range predictions {
			if len(prediction) != int(batch.SeqLens[i]) {
				return nil, fmt.Errorf("runtime returned %d labels for sentence of length %d", len(prediction), batch.SeqLens[i])
			}
		}
		result = append(result, predictions...)
	}
	return result, nil
}

// TagSentences predicts the topological fields of the sentences and stores
// them in the tf feature of every token.
func (tagger *Tagger) TagSentences(ctx context.Context, sentences []types.Sentence) error {
	tokens := make([][]*types.Token, len(sentences))
	for i := range sentences {
		tokens[i] = sentences[i].Tokens
	}

	ids, err := tagger.TagIDs(ctx, tokens)
	if err != nil {
		return err
	}

	labels := make([][]string, len(ids))
	for i, sentIDs := range ids {
		if labels[i], err = tagging.Resolve(tagger.labels, sentIDs); err != nil {
			return fmt.Errorf("sentence %d: %w", i, err)
		}
	}

	for i, sentLabels := range labels {
		for j, label := range sentLabels {
			tokens[i][j].SetFeature(input.FieldTopologicalField, label)
		}
	}
	return nil
}
