package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"text2phenotype.com/toponn/conllx"
	"text2phenotype.com/toponn/embeddings"
	"text2phenotype.com/toponn/inference"
	"text2phenotype.com/toponn/input"
	"text2phenotype.com/toponn/numberer"
	"text2phenotype.com/toponn/redis"
	"text2phenotype.com/toponn/tagging"
	"text2phenotype.com/toponn/types"
)

func loadEmbeddings(cfg types.EmbeddingConfig) (*embeddings.Embeddings, error) {
	store, err := embeddings.ReadTextFile(cfg.Filename)
	if err != nil {
		return nil, fmt.Errorf("cannot read embeddings %s: %w", cfg.Filename, err)
	}
	var opts []embeddings.Option
	if cfg.Normalize {
		opts = append(opts, embeddings.WithNormalization())
	}
	return embeddings.New(store, opts...), nil
}

func loadLayerEmbeddings(cfg *types.Config) (*embeddings.LayerEmbeddings, error) {
	word, err := loadEmbeddings(cfg.Embeddings.Word)
	if err != nil {
		return nil, err
	}
	tag, err := loadEmbeddings(cfg.Embeddings.Tag)
	if err != nil {
		return nil, err
	}
	return embeddings.NewLayerEmbeddings(word, tag), nil
}

// loadVectorizer sets up a vectorizer over the label table stored at
// cfg.Labeler.Labels.
func loadVectorizer(cfg *types.Config) (*input.SentVectorizer, error) {
	layers, err := loadLayerEmbeddings(cfg)
	if err != nil {
		return nil, err
	}
	labels, err := numberer.ReadFile(cfg.Labeler.Labels)
	if err != nil {
		return nil, fmt.Errorf("cannot read labels %s: %w", cfg.Labeler.Labels, err)
	}
	return input.NewSentVectorizer(layers, labels), nil
}

func newTagger(cfg *types.Config, vectorizer *input.SentVectorizer, labels tagging.Vocabulary) *inference.Tagger {
	runtime := inference.NewHTTPRuntime(cfg.Model.Endpoint, time.Duration(cfg.Model.TimeoutSecs)*time.Second)
	return inference.NewTagger(vectorizer, runtime, labels, cfg.Model.BatchSize, cfg.Model.Workers)
}

func readCorpus(path string) ([]types.Sentence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return conllx.NewReader(f).ReadAll()
}

// prepareLabels numbers the tf labels of the corpus in labels and hands
// every realized sentence to collector.
func prepareLabels(layers *embeddings.LayerEmbeddings, labels *numberer.Numberer, sentences []types.Sentence, collector input.Collector) error {
	vectorizer := input.NewSentVectorizer(layers, labels)
	for i, sent := range sentences {
		sv, err := vectorizer.Realize(sent.Tokens)
		if err != nil {
			return fmt.Errorf("sentence %d: %w", i, err)
		}
		if err = collector.Collect(sv); err != nil {
			return fmt.Errorf("sentence %d: %w", i, err)
		}
	}
	return nil
}

// prepare builds the label table of a training corpus and writes it to the
// configured labels file. With a labels key the shared table in Redis is
// extended instead of starting from an empty one. The realized sentences go
// to collector.
func prepare(ctx context.Context, cfg *types.Config, corpusPath string, labelsKey string, collector input.Collector) (*numberer.Frozen, error) {
	layers, err := loadLayerEmbeddings(cfg)
	if err != nil {
		return nil, err
	}
	sentences, err := readCorpus(corpusPath)
	if err != nil {
		return nil, err
	}

	if labelsKey == "" {
		labels := numberer.New()
		if err = prepareLabels(layers, labels, sentences, collector); err != nil {
			return nil, err
		}
		return labels.Freeze(), labels.WriteFile(cfg.Labeler.Labels)
	}

	client, err := redis.NewClient(redis.LabelsDB)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var frozen *numberer.Frozen
	err = client.UpdateNumberer(ctx, labelsKey, func(labels *numberer.Numberer) error {
		if err := prepareLabels(layers, labels, sentences, collector); err != nil {
			return err
		}
		frozen = labels.Freeze()
		return labels.WriteFile(cfg.Labeler.Labels)
	})
	return frozen, err
}

// prepareTo runs prepare, writing the realized sentences to outputPath
// unless it is empty.
func prepareTo(ctx context.Context, cfg *types.Config, corpusPath string, labelsKey string, outputPath string) (labels *numberer.Frozen, err error) {
	if outputPath == "" {
		return prepare(ctx, cfg, corpusPath, labelsKey, input.NoopCollector{})
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(outputPath)
		}
	}()

	collector := input.NewCBORCollector(f)
	if labels, err = prepare(ctx, cfg, corpusPath, labelsKey, collector); err != nil {
		return nil, err
	}
	return labels, collector.Flush()
}

func evaluate(ctx context.Context, cfg *types.Config, corpusPath string, w io.Writer) error {
	vectorizer, err := loadVectorizer(cfg)
	if err != nil {
		return err
	}
	sentences, err := readCorpus(corpusPath)
	if err != nil {
		return err
	}
	trained := vectorizer.Numberer().Freeze()
	tagger := newTagger(cfg, vectorizer, trained)
	perf := tagging.NewModelPerformance(trained, vectorizer.Numberer())
	if err = tagging.Evaluate(ctx, tagger, vectorizer, sentences, perf); err != nil {
		return err
	}
	return writePerformance(w, perf)
}

func writePerformance(w io.Writer, perf *tagging.Performance) error {
	accuracy, ok := perf.Accuracy()
	if !ok {
		_, err := fmt.Fprintln(w, "No tokens were scored")
		return err
	}
	if _, err := fmt.Fprintf(w, "Accuracy: %.4f (%d/%d)\n", accuracy, perf.Correct(), perf.Total()); err != nil {
		return err
	}
	for _, label := range perf.Labels() {
		labelAccuracy, _ := perf.LabelAccuracy(label)
		if _, err := fmt.Fprintf(w, "%s\t%.4f\n", label, labelAccuracy); err != nil {
			return err
		}
	}
	return nil
}

func tagFiles(ctx context.Context, tagger *inference.Tagger, paths []string, w io.Writer) error {
	if len(paths) == 0 {
		_, err := tagger.TagDocument(ctx, os.Stdin, w)
		return err
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = tagger.TagDocument(ctx, f, w)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}
