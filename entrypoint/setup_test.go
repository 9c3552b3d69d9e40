package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"text2phenotype.com/toponn/inference"
	"text2phenotype.com/toponn/input"
	"text2phenotype.com/toponn/numberer"
	"text2phenotype.com/toponn/tagging"
	"text2phenotype.com/toponn/types"
)

const trainCorpus = "1\tEr\t_\t_\tPPER\ttf:VF\t_\t_\t_\t_\n" +
	"2\tkommt\t_\t_\tVVFIN\ttf:LK\t_\t_\t_\t_\n\n"

// zeroServer answers every batch with label 0 for all positions.
func zeroServer(t *testing.T) *httptest.Server {
	return constantServer(t, 0)
}

// constantServer answers every batch with label id for all positions.
func constantServer(t *testing.T, id int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch inference.Batch
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		predictions := make([][]int32, batch.Len())
		for i := range predictions {
			predictions[i] = make([]int32, batch.MaxLen)
			for j := range predictions[i] {
				predictions[i][j] = id
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"predictions": predictions})
	}))
}

func writeFile(t *testing.T, dir string, name string, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testSetup(t *testing.T, endpoint string) (*types.Config, string) {
	dir := t.TempDir()
	writeFile(t, dir, "word.vec", "2 2\nEr 1 0\nkommt 0 1\n")
	writeFile(t, dir, "tag.vec", "PPER 1\nVVFIN 0.5\n")
	configPath := writeFile(t, dir, "toponn.toml", `
[labeler]
labels = "labels.cbor"

[embeddings.word]
filename = "word.vec"

[embeddings.tag]
filename = "tag.vec"
normalize = true

[model]
endpoint = "`+endpoint+`"
`)
	corpus := writeFile(t, dir, "train.conll", trainCorpus)

	cfg, err := types.LoadConfig(configPath)
	require.NoError(t, err)
	return cfg, corpus
}

func TestPrepare(t *testing.T) {
	cfg, corpus := testSetup(t, "http://localhost:0")

	labels, err := prepare(context.Background(), cfg, corpus, "", input.NoopCollector{})
	require.NoError(t, err)
	require.Equal(t, []string{"VF", "LK"}, labels.Labels())

	stored, err := numberer.ReadFile(cfg.Labeler.Labels)
	require.NoError(t, err)
	require.Equal(t, labels.Fingerprint(), stored.Fingerprint())

	vectorizer, err := loadVectorizer(cfg)
	require.NoError(t, err)
	require.Equal(t, 2, vectorizer.Numberer().Len())
	require.Equal(t, 2, vectorizer.LayerEmbeddings().TokenEmbeddings().Dims())
	require.Equal(t, 1, vectorizer.LayerEmbeddings().TagEmbeddings().Dims())
}

func TestPrepareRejectsUnlabeledCorpus(t *testing.T) {
	cfg, _ := testSetup(t, "http://localhost:0")
	corpus := writeFile(t, t.TempDir(), "raw.conll", "1\tEr\t_\t_\tPPER\t_\t_\t_\t_\t_\n\n")

	_, err := prepare(context.Background(), cfg, corpus, "", input.NoopCollector{})
	var missing *input.MissingFieldError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, input.FieldTopologicalField, missing.Field)
	require.NoFileExists(t, cfg.Labeler.Labels)
}

func TestEvaluate(t *testing.T) {
	server := zeroServer(t)
	defer server.Close()
	cfg, corpus := testSetup(t, server.URL)
	_, err := prepare(context.Background(), cfg, corpus, "", input.NoopCollector{})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, evaluate(context.Background(), cfg, corpus, &out))
	require.Equal(t, "Accuracy: 0.5000 (1/2)\nLK\t0.0000\nVF\t1.0000\n", out.String())
}

func TestEvaluateUnseenGoldLabel(t *testing.T) {
	// The trained table is {VF, LK}. Gold NF is numbered 2 while scoring,
	// which must not make the model's out-of-range 2 resolve.
	server := constantServer(t, 2)
	defer server.Close()
	cfg, corpus := testSetup(t, server.URL)
	_, err := prepare(context.Background(), cfg, corpus, "", input.NoopCollector{})
	require.NoError(t, err)

	gold := writeFile(t, t.TempDir(), "gold.conll", "1\tEr\t_\t_\tPPER\ttf:NF\t_\t_\t_\t_\n\n")
	var out bytes.Buffer
	err = evaluate(context.Background(), cfg, gold, &out)
	var inconsistent *tagging.InconsistentVocabularyError
	require.ErrorAs(t, err, &inconsistent)
	require.Equal(t, 2, inconsistent.Size)
	require.Empty(t, out.String())
}

func TestTagFiles(t *testing.T) {
	server := zeroServer(t)
	defer server.Close()
	cfg, corpus := testSetup(t, server.URL)
	labels, err := prepare(context.Background(), cfg, corpus, "", input.NoopCollector{})
	require.NoError(t, err)

	raw := writeFile(t, t.TempDir(), "raw.conll", "1\tSie\t_\t_\tPPER\n2\tlacht\t_\t_\tVVFIN\n")
	vectorizer, err := loadVectorizer(cfg)
	require.NoError(t, err)
	tagger := newTagger(cfg, vectorizer, labels)

	var out bytes.Buffer
	require.NoError(t, tagFiles(context.Background(), tagger, []string{raw}, &out))
	require.Equal(t,
		"1\tSie\t_\t_\tPPER\ttf:VF\t_\t_\t_\t_\n2\tlacht\t_\t_\tVVFIN\ttf:VF\t_\t_\t_\t_\n\n",
		out.String())

	err = tagFiles(context.Background(), tagger, []string{filepath.Join(t.TempDir(), "missing.conll")}, &out)
	require.Error(t, err)
}

func TestPrepareCollectsSentences(t *testing.T) {
	cfg, corpus := testSetup(t, "http://localhost:0")
	output := filepath.Join(t.TempDir(), "train.cbor")

	labels, err := prepareTo(context.Background(), cfg, corpus, "", output)
	require.NoError(t, err)
	require.Equal(t, 2, labels.Len())

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	var collected []*input.SentVec
	require.NoError(t, input.ReadSentVecs(f, func(sv *input.SentVec) error {
		collected = append(collected, sv)
		return nil
	}))
	require.Len(t, collected, 1)
	require.Equal(t, []int32{0, 1}, collected[0].Labels)
	require.Equal(t, []float32{1, 0, 0, 1}, collected[0].Tokens)
	require.Equal(t, []float32{1, 1}, collected[0].Tags)
}

func TestPrepareToRemovesOutputOnFailure(t *testing.T) {
	cfg, _ := testSetup(t, "http://localhost:0")
	corpus := writeFile(t, t.TempDir(), "raw.conll", "1\tEr\t_\t_\tPPER\t_\t_\t_\t_\t_\n\n")
	output := filepath.Join(t.TempDir(), "train.cbor")

	_, err := prepareTo(context.Background(), cfg, corpus, "", output)
	require.Error(t, err)
	require.NoFileExists(t, output)
}
