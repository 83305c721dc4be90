package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceHTTP = "http"
	SourceFile = "file"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheValkey = "valkey"
)

// Config captures the settings required to boot the insight service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Sources SourcesConfig `yaml:"sources"`
	LLM     LLMConfig     `yaml:"llm"`
	Planner PlannerConfig `yaml:"planner"`
	Links   LinksConfig   `yaml:"links"`
	Logging LoggingConfig `yaml:"logging"`
	Cache   CacheConfig   `yaml:"cache"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// SourcesConfig selects where account and issue records come from.
type SourcesConfig struct {
	Kind  string           `yaml:"kind"`
	HTTP  HTTPSourceConfig `yaml:"http"`
	Files FileSourceConfig `yaml:"files"`
	// ReloadInterval rebuilds the dataset periodically when positive.
	ReloadInterval time.Duration `yaml:"reloadInterval"`
}

// HTTPSourceConfig configures the paginated record API.
type HTTPSourceConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	AccountsPath string        `yaml:"accountsPath"`
	IssuesPath   string        `yaml:"issuesPath"`
	ItemsField   string        `yaml:"itemsField"`
	TotalField   string        `yaml:"totalField"`
	PageSize     int           `yaml:"pageSize"`
	APIKey       string        `yaml:"apiKey"`
	Timeout      time.Duration `yaml:"timeout"`
}

// FileSourceConfig points at local JSON or CSV exports.
type FileSourceConfig struct {
	Accounts string `yaml:"accounts"`
	Issues   string `yaml:"issues"`
}

// LLMConfig configures the language-model planner. It is disabled without an API key.
type LLMConfig struct {
	APIKey        string        `yaml:"apiKey"`
	Model         string        `yaml:"model"`
	Temperature   float32       `yaml:"temperature"`
	Timeout       time.Duration `yaml:"timeout"`
	MinConfidence float64       `yaml:"minConfidence"`
	CacheTTL      time.Duration `yaml:"cacheTTL"`
}

// Enabled reports whether an API key is configured.
func (c LLMConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// PlannerConfig controls the rule planner.
type PlannerConfig struct {
	VocabularyPath string `yaml:"vocabularyPath"`
}

// LinksConfig points at the optional issue-to-account link map.
type LinksConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls caching of LLM plans.
type CacheConfig struct {
	Backend      string        `yaml:"backend"`
	MaxEntries   int64         `yaml:"maxEntries"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	KeyPrefix    string        `yaml:"keyPrefix"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("UNIFYIQ_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Sources: SourcesConfig{
			Kind: SourceFile,
			HTTP: HTTPSourceConfig{
				AccountsPath: "/api/v1/accounts",
				IssuesPath:   "/api/v1/issues",
				ItemsField:   "items",
				TotalField:   "total",
				PageSize:     500,
				Timeout:      10 * time.Second,
			},
			Files: FileSourceConfig{
				Accounts: "data/accounts.json",
				Issues:   "data/issues.json",
			},
		},
		LLM: LLMConfig{
			Model:         "gemini-2.0-flash",
			Temperature:   0.2,
			Timeout:       15 * time.Second,
			MinConfidence: 0.5,
			CacheTTL:      time.Hour,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Backend:      CacheMemory,
			MaxEntries:   1024,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			KeyPrefix:    "unifyiq:",
		},
	}
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Sources.Kind {
	case SourceHTTP:
		if c.Sources.HTTP.BaseURL == "" {
			return errors.New("config: sources.http.baseURL is required for http sources")
		}
		if c.Sources.HTTP.PageSize <= 0 {
			return errors.New("config: sources.http.pageSize must be positive")
		}
	case SourceFile:
		if c.Sources.Files.Accounts == "" || c.Sources.Files.Issues == "" {
			return errors.New("config: sources.files.accounts and sources.files.issues are required")
		}
	default:
		return fmt.Errorf("config: unknown source kind %q", c.Sources.Kind)
	}
	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheValkey:
		if c.Cache.Addr == "" {
			return errors.New("config: cache.addr is required for the valkey backend")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	if c.LLM.MinConfidence < 0 || c.LLM.MinConfidence > 1 {
		return errors.New("config: llm.minConfidence must be between 0 and 1")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Address = envStr("UNIFYIQ_SERVER_ADDRESS", cfg.Server.Address)
	cfg.Server.MetricsAddress = envStr("UNIFYIQ_METRICS_ADDRESS", cfg.Server.MetricsAddress)

	cfg.Sources.Kind = strings.ToLower(envStr("UNIFYIQ_SOURCE_KIND", cfg.Sources.Kind))
	cfg.Sources.HTTP.BaseURL = envStr("UNIFYIQ_SOURCE_BASE_URL", cfg.Sources.HTTP.BaseURL)
	cfg.Sources.HTTP.APIKey = envStr("UNIFYIQ_SOURCE_API_KEY", cfg.Sources.HTTP.APIKey)
	cfg.Sources.HTTP.PageSize = envInt("UNIFYIQ_SOURCE_PAGE_SIZE", cfg.Sources.HTTP.PageSize)
	cfg.Sources.HTTP.Timeout = envDuration("UNIFYIQ_SOURCE_TIMEOUT", cfg.Sources.HTTP.Timeout)
	cfg.Sources.Files.Accounts = envStr("UNIFYIQ_ACCOUNTS_FILE", cfg.Sources.Files.Accounts)
	cfg.Sources.Files.Issues = envStr("UNIFYIQ_ISSUES_FILE", cfg.Sources.Files.Issues)
	cfg.Sources.ReloadInterval = envDuration("UNIFYIQ_RELOAD_INTERVAL", cfg.Sources.ReloadInterval)

	cfg.LLM.APIKey = envStr("GEMINI_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = envStr("UNIFYIQ_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Timeout = envDuration("UNIFYIQ_LLM_TIMEOUT", cfg.LLM.Timeout)
	if v := os.Getenv("UNIFYIQ_LLM_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LLM.MinConfidence = f
		}
	}

	cfg.Planner.VocabularyPath = envStr("UNIFYIQ_VOCABULARY_PATH", cfg.Planner.VocabularyPath)
	cfg.Links.Path = envStr("UNIFYIQ_LINKS_PATH", cfg.Links.Path)

	cfg.Logging.Level = envStr("UNIFYIQ_LOG_LEVEL", cfg.Logging.Level)
	if v := os.Getenv("UNIFYIQ_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}

	cfg.Cache.Backend = strings.ToLower(envStr("UNIFYIQ_CACHE_BACKEND", cfg.Cache.Backend))
	cfg.Cache.Addr = envStr("UNIFYIQ_CACHE_ADDR", cfg.Cache.Addr)
	cfg.Cache.Username = envStr("UNIFYIQ_CACHE_USERNAME", cfg.Cache.Username)
	cfg.Cache.Password = envStr("UNIFYIQ_CACHE_PASSWORD", cfg.Cache.Password)
	cfg.Cache.DB = envInt("UNIFYIQ_CACHE_DB", cfg.Cache.DB)
	if v := os.Getenv("UNIFYIQ_CACHE_TLS"); strings.EqualFold(v, "true") || v == "1" {
		cfg.Cache.TLS = true
	}
	cfg.Cache.DialTimeout = envDuration("UNIFYIQ_CACHE_DIAL_TIMEOUT", cfg.Cache.DialTimeout)
	cfg.Cache.MaxRetries = envInt("UNIFYIQ_CACHE_MAX_RETRIES", cfg.Cache.MaxRetries)
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
