package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"text2phenotype.com/toponn/api"
	"text2phenotype.com/toponn/logger"
	"text2phenotype.com/toponn/types"
	"text2phenotype.com/toponn/worker"
)

type Config struct {
	ConfigPath    string `envconfig:"TOPONN_CONFIG_PATH" default:""`
	LabelsKey     string `envconfig:"TOPONN_LABELS_KEY" default:""`
	RestAPIActive bool   `envconfig:"TOPONN_REST_API_ACTIVE" default:"false"`
	RestAPIPort   string `envconfig:"TOPONN_REST_API_PORT" default:"10000"`
}

const workerRestartDelay = 5 * time.Second

func main() {
	// A missing .env file is not an error, the environment may be complete.
	_ = godotenv.Load()

	logger.SetupLogging()
	mainLogger := logger.NewLogger("Main")

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		mainLogger.Fatal().Err(err).Msg("Failed to read environment")
	}

	configPath := flag.String("config", config.ConfigPath, "tagger configuration (TOML or YAML)")
	prepareCorpus := flag.String("prepare", "", "build the label table from a CoNLL-X training corpus")
	collectPath := flag.String("collect", "", "with -prepare, also write the realized sentences to this file")
	evalCorpus := flag.String("eval", "", "score the tagger on a CoNLL-X corpus with gold tf features")
	tagMode := flag.Bool("tag", false, "tag CoNLL-X files given as arguments (or stdin) to stdout")
	flag.Parse()

	if *configPath == "" {
		mainLogger.Fatal().Msg("No configuration given, set TOPONN_CONFIG_PATH or -config")
	}
	cfg, err := types.LoadConfig(*configPath)
	if err != nil {
		mainLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *prepareCorpus != "":
		labels, err := prepareTo(ctx, cfg, *prepareCorpus, config.LabelsKey, *collectPath)
		if err != nil {
			mainLogger.Fatal().Err(err).Msg("Failed to prepare label table")
		}
		mainLogger.Info().
			Int("labels", labels.Len()).
			Str("fingerprint", fmt.Sprintf("%016x", labels.Fingerprint())).
			Str("path", cfg.Labeler.Labels).
			Msg("Label table was written. Exit...")
		return
	case *evalCorpus != "":
		if err := evaluate(ctx, cfg, *evalCorpus, os.Stdout); err != nil {
			mainLogger.Fatal().Err(err).Msg("Evaluation failed")
		}
		return
	}

	vectorizer, err := loadVectorizer(cfg)
	if err != nil {
		mainLogger.Fatal().Err(err).Msg("Failed to load vectorizer")
	}
	labels := vectorizer.Numberer().Freeze()
	tagger := newTagger(cfg, vectorizer, labels)
	mainLogger.Info().
		Int("labels", labels.Len()).
		Str("fingerprint", fmt.Sprintf("%016x", labels.Fingerprint())).
		Msg("Tagger loaded")

	if *tagMode {
		if err := tagFiles(ctx, tagger, flag.Args(), os.Stdout); err != nil {
			mainLogger.Fatal().Err(err).Msg("Tagging failed")
		}
		return
	}

	if config.RestAPIActive {
		go func() {
			mainLogger.Info().Msg("Starting API service")
			apiRequest := &api.Request{
				Tagger: tagger,
			}
			mux := http.NewServeMux()
			mux.HandleFunc("/", apiRequest.ProcessData)
			host := fmt.Sprintf(":%s", config.RestAPIPort)
			mainLogger.Info().Msgf("REST API on %s", host)
			err := http.ListenAndServe(host, mux)
			mainLogger.Fatal().Err(err).Msg("REST API stopped with error")
		}()
	}

	mainLogger.Info().Msg("Start tagging worker")
	for {
		rmqWorker, err := worker.New(tagger, labels)
		if err != nil {
			mainLogger.Fatal().Err(err).Msg("Could not initialize RMQ worker")
		}
		err = rmqWorker.StartWorker()
		if err != nil {
			mainLogger.Err(err).Msgf("Worker returned with error. Launching new in %s", workerRestartDelay)
			time.Sleep(workerRestartDelay)
		}
	}
}
