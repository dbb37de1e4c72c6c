package auditor

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/a11yaudit/auditor/internal/cache"
	"github.com/hazyhaar/a11yaudit/auditor/internal/crawl"
	"github.com/hazyhaar/a11yaudit/auditor/internal/group"
	"github.com/hazyhaar/a11yaudit/auditor/internal/oracle"
	"github.com/hazyhaar/a11yaudit/scanner"
)

// Scanner modes.
const (
	ScannerBrowser = "browser"
	ScannerStatic  = "static"
)

// Config holds all auditor configuration.
type Config struct {
	Cache      CacheConfig      `yaml:"cache"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Store      StoreConfig      `yaml:"store"`
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Crawl      CrawlConfig      `yaml:"crawl"`
	Guard      GuardConfig      `yaml:"guard"`
	Report     ReportConfig     `yaml:"report"`
}

// CacheConfig controls the result caches. An empty RedisURL keeps both
// namespaces in process memory.
type CacheConfig struct {
	RedisURL   string        `yaml:"redis_url"`
	RecencyTTL time.Duration `yaml:"recency_ttl"`
}

// OracleConfig points at an OpenAI-compatible chat server. An empty
// Endpoint disables every model-backed stage.
type OracleConfig struct {
	Endpoint         string        `yaml:"endpoint"`
	APIKey           string        `yaml:"api_key"`
	Model            string        `yaml:"model"`
	Temperature      float64       `yaml:"temperature"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	Backoff          time.Duration `yaml:"backoff"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
}

// ClassifierConfig toggles the model-backed second classification tier.
type ClassifierConfig struct {
	UseModel bool `yaml:"use_model"`
}

// ScannerConfig selects and configures the evidence scanner.
type ScannerConfig struct {
	Mode           string `yaml:"mode"` // browser | static
	scanner.Config `yaml:",inline"`
}

// StoreConfig locates the audit history database.
type StoreConfig struct {
	DBPath string `yaml:"db_path"`
}

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Addr      string          `yaml:"addr"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// AuthConfig holds the HS256 secret used to verify identity tokens.
// Empty = single-user deployment, every caller is "anonymous".
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// CrawlConfig bounds site discovery.
type CrawlConfig struct {
	MaxPages int `yaml:"max_pages"`
}

// GuardConfig extends the built-in domain blocklist.
type GuardConfig struct {
	Blocklist []string `yaml:"blocklist"`
}

// ReportConfig bounds report size.
type ReportConfig struct {
	EvidenceCap   int `yaml:"evidence_cap"`
	SemanticLimit int `yaml:"semantic_limit"`
}

func (c *Config) defaults() {
	if c.Cache.RecencyTTL <= 0 {
		c.Cache.RecencyTTL = cache.DefaultRecencyTTL
	}
	if c.Scanner.Mode == "" {
		c.Scanner.Mode = ScannerBrowser
	}
	if c.Store.DBPath == "" {
		c.Store.DBPath = "a11yaudit.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Crawl.MaxPages <= 0 {
		c.Crawl.MaxPages = crawl.DefaultMaxPages
	}
	if c.Report.EvidenceCap <= 0 {
		c.Report.EvidenceCap = group.DefaultEvidenceCap
	}
	if c.Report.SemanticLimit <= 0 {
		c.Report.SemanticLimit = 20
	}
}

func (o OracleConfig) internal() oracle.Config {
	return oracle.Config{
		Endpoint:         o.Endpoint,
		APIKey:           o.APIKey,
		Model:            o.Model,
		Temperature:      o.Temperature,
		Timeout:          o.Timeout,
		MaxRetries:       o.MaxRetries,
		Backoff:          o.Backoff,
		BreakerThreshold: o.BreakerThreshold,
		BreakerReset:     o.BreakerReset,
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides c with the A11Y_* environment variables that are set.
func (c *Config) ApplyEnv() {
	c.Cache.RedisURL = env("A11Y_REDIS_ADDR", c.Cache.RedisURL)
	c.Oracle.Endpoint = env("A11Y_ORACLE_ENDPOINT", c.Oracle.Endpoint)
	c.Oracle.APIKey = env("A11Y_ORACLE_API_KEY", c.Oracle.APIKey)
	c.Oracle.Model = env("A11Y_ORACLE_MODEL", c.Oracle.Model)
	c.Auth.JWTSecret = env("A11Y_JWT_SECRET", c.Auth.JWTSecret)
	c.Store.DBPath = env("A11Y_DB_PATH", c.Store.DBPath)
	c.Scanner.ChromeURL = env("A11Y_CHROME_URL", c.Scanner.ChromeURL)
	if v := os.Getenv("A11Y_USE_MODEL_CLASSIFIER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Classifier.UseModel = b
		}
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
