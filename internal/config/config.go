package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Bulk       BulkConfig       `yaml:"bulk" mapstructure:"bulk"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer" mapstructure:"analyzer"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BulkConfig tunes the bulk audit orchestrator.
type BulkConfig struct {
	BatchSize     int `yaml:"batch_size" mapstructure:"batch_size"`
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelayMS  int `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	BatchPauseMS  int `yaml:"batch_pause_ms" mapstructure:"batch_pause_ms"`
	SkipDays      int `yaml:"skip_days" mapstructure:"skip_days"`
}

// AnalyzerConfig selects and tunes the analysis engines.
type AnalyzerConfig struct {
	Method          string `yaml:"method" mapstructure:"method"` // auto, feed, model
	FeedWindowDays  int    `yaml:"feed_window_days" mapstructure:"feed_window_days"`
	MaxContentChars int    `yaml:"max_content_chars" mapstructure:"max_content_chars"`
	RatesPath       string `yaml:"rates_path" mapstructure:"rates_path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GoogleConfig holds Google Places API settings used for website discovery.
type GoogleConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	PlacesBaseURL string `yaml:"places_base_url" mapstructure:"places_base_url"`
}

// NotionConfig holds Notion API credentials and the roster database ID.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	RosterDB string `yaml:"roster_db" mapstructure:"roster_db"`
}

// SalesforceConfig holds Salesforce JWT auth settings for CRM write-back.
// CRM sync is enabled when ClientID is set.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// ServerConfig configures the dashboard-facing HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("bulk.batch_size", 5)
	v.SetDefault("bulk.retry_attempts", 2)
	v.SetDefault("bulk.retry_delay_ms", 2000)
	v.SetDefault("bulk.batch_pause_ms", 1000)
	v.SetDefault("bulk.skip_days", 7)
	v.SetDefault("analyzer.method", "auto")
	v.SetDefault("analyzer.feed_window_days", 90)
	v.SetDefault("analyzer.max_content_chars", 20000)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("google.places_base_url", "https://places.googleapis.com/v1")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a given command mode requires. Problems are
// collected so one run reports everything missing.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkStore := func() {
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
	}
	checkBulk := func() {
		if c.Bulk.BatchSize < 1 || c.Bulk.BatchSize > 50 {
			problems = append(problems, "bulk.batch_size must be between 1 and 50")
		}
		if c.Bulk.RetryAttempts < 0 {
			problems = append(problems, "bulk.retry_attempts must be >= 0")
		}
		switch c.Analyzer.Method {
		case "auto", "feed", "model":
		default:
			problems = append(problems, "analyzer.method must be auto, feed, or model")
		}
		if c.Analyzer.Method != "feed" && c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	}

	switch mode {
	case "bulk":
		checkStore()
		checkBulk()
	case "audit":
		checkBulk()
	case "serve":
		checkStore()
		checkBulk()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "import":
		checkStore()
	case "export":
		checkStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
