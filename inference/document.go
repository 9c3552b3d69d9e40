package inference

import (
	"context"
	"io"

	"text2phenotype.com/toponn/conllx"
)

// TagDocument reads a CoNLL-X document from r, tags every sentence and writes
// the result to w. Nothing is written when tagging fails. It returns the
// number of sentences tagged.
func (tagger *Tagger) TagDocument(ctx context.Context, r io.Reader, w io.Writer) (int, error) {
	sentences, err := conllx.NewReader(r).ReadAll()
	if err != nil {
		return 0, err
	}
	if err = tagger.TagSentences(ctx, sentences); err != nil {
		return 0, err
	}
	if err = conllx.NewWriter(w).WriteAll(sentences); err != nil {
		return 0, err
	}
	tagger.tagLogger.Debug().Int("sentences", len(sentences)).Msg("Tagged document")
	return len(sentences), nil
}
