package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"text2phenotype.com/toponn/embeddings"
	"text2phenotype.com/toponn/inference"
	"text2phenotype.com/toponn/input"
	"text2phenotype.com/toponn/numberer"
	"text2phenotype.com/toponn/tagging"
)

// constantRuntime predicts label 0 for every token.
type constantRuntime struct {
	err error
}

func (runtime constantRuntime) Predict(ctx context.Context, batch *inference.Batch) ([][]int32, error) {
	if runtime.err != nil {
		return nil, runtime.err
	}
	predictions := make([][]int32, batch.Len())
	for i, n := range batch.SeqLens {
		predictions[i] = make([]int32, n)
	}
	return predictions, nil
}

func testRequest(runtime inference.Runtime, labels tagging.Vocabulary) *Request {
	layers := embeddings.NewLayerEmbeddings(
		embeddings.New(embeddings.NewMemoryStore(2)),
		embeddings.New(embeddings.NewMemoryStore(2)),
	)
	vectorizer := input.NewSentVectorizer(layers, numberer.New())
	return &Request{Tagger: inference.NewTagger(vectorizer, runtime, labels, 4, 1)}
}

func post(req *Request, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req.ProcessData(recorder, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	return recorder
}

func TestProcessData(t *testing.T) {
	req := testRequest(constantRuntime{}, numberer.FromLabels([]string{"MF"}).Freeze())

	recorder := post(req, "1\tEr\t_\t_\tPPER\t_\t_\t_\t_\t_\n2\tlacht\t_\t_\tVVFIN\t_\t_\t_\t_\t_\n\n")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, conllContentType, recorder.Header().Get("Content-Type"))
	require.Equal(t,
		"1\tEr\t_\t_\tPPER\ttf:MF\t_\t_\t_\t_\n2\tlacht\t_\t_\tVVFIN\ttf:MF\t_\t_\t_\t_\n\n",
		recorder.Body.String())
}

func TestProcessDataErrors(t *testing.T) {
	labels := numberer.FromLabels([]string{"MF"}).Freeze()
	tests := []struct {
		name    string
		runtime inference.Runtime
		labels  tagging.Vocabulary
		body    string
		status  int
	}{
		{"Malformed document", constantRuntime{}, labels, "Er\n", http.StatusBadRequest},
		{"Missing part of speech", constantRuntime{}, labels, "1\tEr\n", http.StatusUnprocessableEntity},
		{"Empty label table", constantRuntime{}, numberer.New().Freeze(), "1\tEr\t_\t_\tPPER\n", http.StatusInternalServerError},
		{"Runtime unavailable", constantRuntime{err: errors.New("connection refused")}, labels, "1\tEr\t_\t_\tPPER\n", http.StatusBadGateway},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			recorder := post(testRequest(test.runtime, test.labels), test.body)
			require.Equal(t, test.status, recorder.Code)
		})
	}
}

func TestProcessDataMethodNotAllowed(t *testing.T) {
	req := testRequest(constantRuntime{}, numberer.FromLabels([]string{"MF"}).Freeze())
	recorder := httptest.NewRecorder()
	req.ProcessData(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}

type panickingTagger struct{}

func (panickingTagger) TagDocument(ctx context.Context, r io.Reader, w io.Writer) (int, error) {
	panic("boom")
}

func TestProcessDataRecoversPanics(t *testing.T) {
	recorder := post(&Request{Tagger: panickingTagger{}}, "1\tEr\t_\t_\tPPER\n")
	require.Equal(t, http.StatusBadGateway, recorder.Code)
	require.Contains(t, recorder.Body.String(), "got panic: boom")
}
