package tagging

import (
	"context"
	"fmt"

	"text2phenotype.com/toponn/input"
	"text2phenotype.com/toponn/types"
)

// Evaluate tags every sentence and scores it against the gold tf features
// of its tokens. Gold labels are numbered by the vectorizer's label table,
// so perf should resolve predictions with a frozen copy taken before
// evaluation (see NewModelPerformance).
func Evaluate(
	ctx context.Context,
	tagger Tagger,
	vectorizer *input.SentVectorizer,
	sentences []types.Sentence,
	perf *Performance,
) error {
	for i, sent := range sentences {
		if err := ctx.Err(); err != nil {
			return err
		}

		gold, err := vectorizer.Realize(sent.Tokens)
		if err != nil {
			return fmt.Errorf("sentence %d: %w", i, err)
		}
		predicted, err := tagger.Tag(ctx, sent.Tokens)
		if err != nil {
			return fmt.Errorf("sentence %d: %w", i, err)
		}
		if _, err := perf.Add(predicted, gold.Labels); err != nil {
			return fmt.Errorf("sentence %d: %w", i, err)
		}
	}
	return nil
}
