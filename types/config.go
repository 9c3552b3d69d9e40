package types

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
	"text2phenotype.com/toponn/logger"
)

const (
	DefaultBatchSize   = 128
	DefaultTimeoutSecs = 30
	DefaultWorkers     = 4
)

var ErrUnknownConfigFormat = errors.New("unknown configuration format")

type Labeler struct {
	Labels string `toml:"labels" yaml:"labels" json:"labels"`
}

type EmbeddingConfig struct {
	Filename  string `toml:"filename" yaml:"filename" json:"filename"`
	Normalize bool   `toml:"normalize" yaml:"normalize" json:"normalize"`
}

type EmbeddingsConfig struct {
	Word EmbeddingConfig `toml:"word" yaml:"word" json:"word"`
	Tag  EmbeddingConfig `toml:"tag" yaml:"tag" json:"tag"`
}

type ModelConfig struct {
	Endpoint    string `toml:"endpoint" yaml:"endpoint" json:"endpoint"`
	BatchSize   int    `toml:"batch_size" yaml:"batch_size" json:"batch_size"`
	TimeoutSecs int    `toml:"timeout_secs" yaml:"timeout_secs" json:"timeout_secs"`
	Workers     int    `toml:"workers" yaml:"workers" json:"workers"`
}

// Config describes a tagger: its label table, the embeddings of the input
// layers and the model server that runs the graph.
type Config struct {
	FilePath   string           `toml:"-" yaml:"-" json:"file_path"`
	Labeler    Labeler          `toml:"labeler" yaml:"labeler" json:"labeler"`
	Embeddings EmbeddingsConfig `toml:"embeddings" yaml:"embeddings" json:"embeddings"`
	Model      ModelConfig      `toml:"model" yaml:"model" json:"model"`
}

// LoadConfig reads a TOML or YAML configuration, chosen by file extension.
// Relative file names are resolved against the configuration's directory.
func LoadConfig(configPath string) (*Config, error) {
	configLogger := logger.NewLogger("LoadConfig")

	buf, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := Config{FilePath: configPath}
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".toml":
		err = toml.Unmarshal(buf, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(buf, &cfg)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownConfigFormat, configPath)
	}
	if err != nil {
		configLogger.Err(err).Str("path", configPath).Msg("Could not parse configuration")
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.relativizePaths(); err != nil {
		return nil, err
	}

	configLogger.Debug().Str("path", configPath).Msg("Loaded configuration")
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Model.BatchSize <= 0 {
		cfg.Model.BatchSize = DefaultBatchSize
	}
	if cfg.Model.TimeoutSecs <= 0 {
		cfg.Model.TimeoutSecs = DefaultTimeoutSecs
	}
	if cfg.Model.Workers <= 0 {
		cfg.Model.Workers = DefaultWorkers
	}
}

func (cfg *Config) relativizePaths() error {
	configDir, err := filepath.Abs(filepath.Dir(cfg.FilePath))
	if err != nil {
		return err
	}

	for _, p := range []*string{
		&cfg.Labeler.Labels,
		&cfg.Embeddings.Word.Filename,
		&cfg.Embeddings.Tag.Filename,
	} {
		*p = relativePath(configDir, *p)
	}
	return nil
}

func relativePath(dir string, p string) string {
	if len(p) == 0 || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
