// Package api serves topological field tagging over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"text2phenotype.com/toponn/conllx"
	"text2phenotype.com/toponn/input"
	"text2phenotype.com/toponn/tagging"
	"text2phenotype.com/toponn/utils"
)

const conllContentType = "text/x-conll; charset=utf-8"

type DocumentTagger interface {
	TagDocument(ctx context.Context, r io.Reader, w io.Writer) (int, error)
}

// Request tags the CoNLL-X document in a POST body and responds with the
// tagged document.
type Request struct {
	Tagger DocumentTagger
}

func (req *Request) ProcessData(w http.ResponseWriter, r *http.Request) {
	logger := makeRequestLogger(r)

	if r.Method != http.MethodPost {
		logger.Err(nil).Int("status", http.StatusMethodNotAllowed).Msg("Only 'POST' method is allowed here")
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	msg, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not read request body")
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	logger.Info().Int("bytes", len(msg)).Msg("Tagging document from API")
	var out bytes.Buffer
	sentences, err := req.tag(r.Context(), msg, &out)
	if err != nil {
		status := statusFor(err)
		logger.Err(err).Int("status", status).Msg("Could not tag document")
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", conllContentType)
	_, _ = w.Write(out.Bytes())
	logger.Info().Int("status", http.StatusOK).Int("sentences", sentences).Msg("Finished processing request")
}

func (req *Request) tag(ctx context.Context, msg []byte, out *bytes.Buffer) (sentences int, err error) {
	defer utils.RecoverWithError(&err)
	return req.Tagger.TagDocument(ctx, bytes.NewReader(msg), out)
}

func statusFor(err error) int {
	var parseErr *conllx.ParseError
	var missing *input.MissingFieldError
	var inconsistent *tagging.InconsistentVocabularyError
	switch {
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case errors.As(err, &inconsistent):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
