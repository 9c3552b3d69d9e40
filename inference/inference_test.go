package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"text2phenotype.com/toponn/embeddings"
	"text2phenotype.com/toponn/input"
	"text2phenotype.com/toponn/numberer"
	"text2phenotype.com/toponn/tagging"
	"text2phenotype.com/toponn/types"
)

func TestNewBatch(t *testing.T) {
	svs := []*input.SentVec{
		{Tokens: []float32{1, 2, 3, 4}, Tags: []float32{5, 6}},
		{Tokens: []float32{7, 8}, Tags: []float32{9}},
	}
	batch := NewBatch(2, 1, svs)

	require.Equal(t, 2, batch.Len())
	require.Equal(t, 2, batch.MaxLen)
	require.Equal(t, []int32{2, 1}, batch.SeqLens)
	require.Equal(t, []float32{7, 8, 0, 0}, batch.Tokens[1])
	require.Equal(t, []float32{9, 0}, batch.Tags[1])
	require.Equal(t, []float32{1, 2, 3, 4}, batch.Tokens[0])
}

func TestHTTPRuntime(t *testing.T) {
	batch := NewBatch(1, 1, []*input.SentVec{
		{Tokens: []float32{0.5, 1}, Tags: []float32{1, 0}},
		{Tokens: []float32{2}, Tags: []float32{0}},
	})
	expectedRequest := []byte(`{
		"token_dims": 1, "tag_dims": 1, "max_len": 2,
		"tokens": [[0.5, 1], [2, 0]],
		"tags": [[1, 0], [0, 0]],
		"seq_lens": [2, 1]
	}`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.True(t, jsonpatch.Equal(expectedRequest, body), "unexpected request %s", body)

		_ = json.NewEncoder(w).Encode(predictResponse{Predictions: [][]int32{{3, 1}, {2, 0}}})
	}))
	defer server.Close()

	predictions, err := NewHTTPRuntime(server.URL, time.Second).Predict(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, [][]int32{{3, 1}, {2}}, predictions)
}

func TestHTTPRuntimeErrors(t *testing.T) {
	batch := NewBatch(1, 1, []*input.SentVec{{Tokens: []float32{1, 1}, Tags: []float32{1, 1}}})

	cases := map[string]http.HandlerFunc{
		"Server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": "graph not loaded"}`))
		},
		"Not JSON": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		},
		"Too few sentences": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"predictions": []}`))
		},
		"Too few labels": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"predictions": [[1]]}`))
		},
	}

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()
			_, err := NewHTTPRuntime(server.URL, time.Second).Predict(context.Background(), batch)
			require.Error(t, err)
		})
	}
}

// stubRuntime returns scripted predictions and records the batches it got.
type stubRuntime struct {
	predict func(batch *Batch) ([][]int32, error)
	batches []*Batch
}

func (runtime *stubRuntime) Predict(ctx context.Context, batch *Batch) ([][]int32, error) {
	runtime.batches = append(runtime.batches, batch)
	return runtime.predict(batch)
}

// firstLabels predicts identifier i for the i-th token, modulo n.
func firstLabels(n int32) func(batch *Batch) ([][]int32, error) {
	return func(batch *Batch) ([][]int32, error) {
		predictions := make([][]int32, batch.Len())
		for i, seqLen := range batch.SeqLens {
			predictions[i] = make([]int32, seqLen)
			for j := range predictions[i] {
				predictions[i][j] = int32(j) % n
			}
		}
		return predictions, nil
	}
}

func testTagger(runtime Runtime, labels tagging.Vocabulary, batchSize int) *Tagger {
	layers := embeddings.NewLayerEmbeddings(
		embeddings.New(embeddings.NewMemoryStore(3)),
		embeddings.New(embeddings.NewMemoryStore(2)),
	)
	vectorizer := input.NewSentVectorizer(layers, numberer.New())
	return NewTagger(vectorizer, runtime, labels, batchSize, 2)
}

func untagged(forms ...string) types.Sentence {
	var sent types.Sentence
	for _, form := range forms {
		tag := "NN"
		token := types.NewToken(form)
		token.Tag = &tag
		sent.Tokens = append(sent.Tokens, token)
	}
	return sent
}

func TestTagSentences(t *testing.T) {
	labels := numberer.FromLabels([]string{"VF", "LK", "MF"}).Freeze()
	runtime := &stubRuntime{predict: firstLabels(3)}
	tagger := testTagger(runtime, labels, 2)

	sentences := []types.Sentence{
		untagged("Er", "kommt", "heute", "nicht"),
		untagged("Ja"),
		untagged("Sie", "lacht"),
	}
	require.NoError(t, tagger.TagSentences(context.Background(), sentences))

	require.Len(t, runtime.batches, 2)
	require.Equal(t, []int32{4, 1}, runtime.batches[0].SeqLens)
	require.Len(t, runtime.batches[0].Tokens[0], 4*3)
	require.Equal(t, []int32{2}, runtime.batches[1].SeqLens)

	var got []string
	for _, token := range sentences[0].Tokens {
		tf, ok := token.Feature("tf")
		require.True(t, ok)
		got = append(got, tf)
	}
	require.Equal(t, []string{"VF", "LK", "MF", "VF"}, got)
}

func TestTagSentencesInconsistentVocabulary(t *testing.T) {
	labels := numberer.FromLabels([]string{"VF", "LK"}).Freeze()
	tagger := testTagger(&stubRuntime{predict: firstLabels(3)}, labels, 8)

	sentences := []types.Sentence{untagged("Er", "kommt"), untagged("Er", "kommt", "heute")}
	err := tagger.TagSentences(context.Background(), sentences)

	var inconsistent *tagging.InconsistentVocabularyError
	require.True(t, errors.As(err, &inconsistent), "got %v", err)
	require.Equal(t, int32(2), inconsistent.ID)

	_, ok := sentences[0].Tokens[0].Feature("tf")
	require.False(t, ok, "no sentence is tagged when a prediction is inconsistent")
}

func TestTagRuntimeErrors(t *testing.T) {
	labels := numberer.FromLabels([]string{"VF"}).Freeze()
	sentence := untagged("Er", "kommt").Tokens

	failure := errors.New("connection refused")
	tagger := testTagger(&stubRuntime{predict: func(*Batch) ([][]int32, error) { return nil, failure }}, labels, 8)
	_, err := tagger.Tag(context.Background(), sentence)
	require.True(t, errors.Is(err, failure))

	short := func(*Batch) ([][]int32, error) { return [][]int32{{0}}, nil }
	tagger = testTagger(&stubRuntime{predict: short}, labels, 8)
	_, err = tagger.Tag(context.Background(), sentence)
	require.Error(t, err)
}

func TestTaggerScoring(t *testing.T) {
	labels := numberer.FromLabels([]string{"VF", "LK", "MF"})
	tagger := testTagger(&stubRuntime{predict: firstLabels(3)}, labels.Freeze(), 8)

	gold := untagged("Er", "kommt", "heute")
	for i, tf := range []string{"VF", "LK", "VF"} {
		gold.Tokens[i].SetFeature("tf", tf)
	}

	layers := embeddings.NewLayerEmbeddings(
		embeddings.New(embeddings.NewMemoryStore(3)),
		embeddings.New(embeddings.NewMemoryStore(2)),
	)
	perf := tagging.NewPerformance(labels)
	err := tagging.Evaluate(context.Background(), tagger, input.NewSentVectorizer(layers, labels), []types.Sentence{gold}, perf)
	require.NoError(t, err)

	accuracy, ok := perf.Accuracy()
	require.True(t, ok)
	require.InDelta(t, 2.0/3.0, accuracy, 1e-9)
}

func TestTagDocument(t *testing.T) {
	labels := numberer.FromLabels([]string{"VF", "LK"}).Freeze()
	tagger := testTagger(&stubRuntime{predict: firstLabels(2)}, labels, 8)

	doc := "1\tEr\ter\t_\tPPER\t_\t2\tSUBJ\t_\t_\n" +
		"2\tkommt\tkommen\t_\tVVFIN\tmood:ind\t0\tROOT\t_\t_\n\n"
	var out bytes.Buffer
	n, err := tagger.TagDocument(context.Background(), strings.NewReader(doc), &out)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t,
		"1\tEr\ter\t_\tPPER\ttf:VF\t2\tSUBJ\t_\t_\n"+
			"2\tkommt\tkommen\t_\tVVFIN\tmood:ind|tf:LK\t0\tROOT\t_\t_\n\n",
		out.String())

	out.Reset()
	_, err = tagger.TagDocument(context.Background(), strings.NewReader("1\tEr\n"), &out)
	var missing *input.MissingFieldError
	require.True(t, errors.As(err, &missing), "got %v", err)
	require.Empty(t, out.String())
}
