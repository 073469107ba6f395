// Package config loads runtime configuration from an optional YAML
// file and FINBOT_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	BigQuery BigQueryConfig `mapstructure:"bigquery"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	Notion   NotionConfig   `mapstructure:"notion"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Parsing  ParsingConfig  `mapstructure:"parsing"`
}

type LLMConfig struct {
	Model                string        `mapstructure:"model"`
	Timeout              time.Duration `mapstructure:"timeout"`
	CategorizerChunkSize int           `mapstructure:"categorizer_chunk_size"`
}

type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	DatasetID string `mapstructure:"dataset_id"`
}

type GCSConfig struct {
	// Bucket for staging uploads. Empty disables staging.
	Bucket string `mapstructure:"bucket"`
}

type NotionConfig struct {
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

type WorkerConfig struct {
	QueueBufferSize int `mapstructure:"queue_buffer_size"`
	Workers         int `mapstructure:"workers"`
}

// ParsingConfig externalizes the tabular column-detection keywords so
// new bank locales are a config change, not a code change.
type ParsingConfig struct {
	DateKeywords        []string `mapstructure:"date_keywords"`
	AmountKeywords      []string `mapstructure:"amount_keywords"`
	DescriptionKeywords []string `mapstructure:"description_keywords"`
}

// Load reads configPath (optional) and the environment, applying
// defaults for everything left unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config.Load: reading %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("finbot")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.finbot")
		// Missing file is fine: defaults plus env cover everything.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config.Load: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FINBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.timeout", "90s")
	v.SetDefault("llm.categorizer_chunk_size", 50)

	// Empty defaults register the keys so env overrides bind.
	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset_id", "finbot")
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")

	v.SetDefault("worker.queue_buffer_size", 64)
	v.SetDefault("worker.workers", 4)

	v.SetDefault("parsing.date_keywords", []string{"дата", "date", "день"})
	v.SetDefault("parsing.amount_keywords", []string{"сумма", "amount", "сум"})
	v.SetDefault("parsing.description_keywords", []string{"описание", "description", "назначение"})
}
