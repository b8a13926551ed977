// Package config loads the ricettario configuration from defaults, an
// optional YAML file, a .env file and RICETTARIO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ricettario/internal/extract"
	"ricettario/internal/fetch"
	"ricettario/internal/youtube"
	"ricettario/pkg/database"
	"ricettario/pkg/logger"
)

// EnvPrefix is prepended to every environment override: fetch.timeout is
// read from RICETTARIO_FETCH_TIMEOUT.
const EnvPrefix = "RICETTARIO"

type Config struct {
	Log       logger.Config      `mapstructure:"log"`
	Corpus    CorpusConfig       `mapstructure:"corpus"`
	Fetch     FetchConfig        `mapstructure:"fetch"`
	Heuristic extract.Vocabulary `mapstructure:"heuristic"`
	YouTube   youtube.Config     `mapstructure:"youtube"`
	Database  database.Config    `mapstructure:"database"`
	Server    ServerConfig       `mapstructure:"server"`
}

type CorpusConfig struct {
	Path        string `mapstructure:"path"`
	VideoIndex  string `mapstructure:"video_index"`
	SortByTitle bool   `mapstructure:"sort_by_title"`
}

// FetchConfig adds the worker pool size to the fetcher settings.
type FetchConfig struct {
	fetch.Config `mapstructure:",squash"`
	Workers      int `mapstructure:"workers"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("corpus.path", "data/recipes.json")
	v.SetDefault("corpus.video_index", "data/video_index.json")
	v.SetDefault("corpus.sort_by_title", false)

	v.SetDefault("fetch.timeout", fetch.DefaultTimeout)
	v.SetDefault("fetch.user_agent", fetch.DefaultUserAgent)
	v.SetDefault("fetch.workers", 4)
	v.SetDefault("fetch.max_body_bytes", fetch.DefaultMaxBodyBytes)
	v.SetDefault("fetch.retries", fetch.DefaultRetries)
	v.SetDefault("fetch.retry_delay", fetch.DefaultRetryDelay)

	vocab := extract.DefaultVocabulary()
	v.SetDefault("heuristic.ingredient_words", vocab.IngredientWords)
	v.SetDefault("heuristic.unit_words", vocab.UnitWords)
	v.SetDefault("heuristic.cooking_verbs", vocab.CookingVerbs)

	v.SetDefault("youtube.api_key", "")
	v.SetDefault("youtube.channels", []string{})
	v.SetDefault("youtube.max_results", youtube.DefaultMaxResults)
	v.SetDefault("youtube.delay", youtube.DefaultDelay)
	v.SetDefault("youtube.timeout", youtube.DefaultTimeout)
	v.SetDefault("youtube.min_confidence", 0.0)

	v.SetDefault("database.path", database.DefaultPath)
	v.SetDefault("server.addr", ":8080")
}

// Load reads configuration. path may be empty, in which case config.yaml is
// looked up in . and ./config and silently skipped when missing. An explicit
// path that cannot be read is an error.
func Load(path string) (*Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.path", EnvPrefix+"_DB_PATH", EnvPrefix+"_DATABASE_PATH"); err != nil {
		return nil, fmt.Errorf("bind database path env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.YouTube.Channels = splitList(cfg.YouTube.Channels)
	return &cfg, nil
}

// splitList accepts "a,b" from the environment as well as a YAML list.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
