// Package config loads service configuration from defaults, an optional YAML
// file, a .env file and STUDIO_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joelkehle/formulation-studio/internal/formulation"
	"github.com/joelkehle/formulation-studio/internal/marketanalysis"
	"github.com/joelkehle/formulation-studio/internal/report"
)

const (
	BackendRemote    = "remote"
	BackendAnthropic = "anthropic"

	EnvPrefix      = "STUDIO"
	DefaultCfgName = "studio"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Generation GenerationConfig `mapstructure:"generation" yaml:"generation"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry" yaml:"telemetry"`
	Market     MarketConfig     `mapstructure:"market" yaml:"market"`
	Scoring    ScoringConfig    `mapstructure:"scoring" yaml:"scoring"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxConcurrent   int           `mapstructure:"max_concurrent_generations" yaml:"max_concurrent_generations"`
	ChromePath      string        `mapstructure:"chrome_path" yaml:"chrome_path"`
	PDFPaper        string        `mapstructure:"pdf_paper" yaml:"pdf_paper"`
}

type GenerationConfig struct {
	Backend    string        `mapstructure:"backend" yaml:"backend"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	Model      string        `mapstructure:"model" yaml:"model"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	Assess     bool          `mapstructure:"assess" yaml:"assess"`
}

type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"-"`
	DB       int           `mapstructure:"db" yaml:"db"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type TelemetryConfig struct {
	ServiceName  string  `mapstructure:"service_name" yaml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// CategoryOverride replaces or adds one row of the category table.
// Penetration bounds are percentages.
type CategoryOverride struct {
	Multiplier     float64 `mapstructure:"multiplier" yaml:"multiplier"`
	PenetrationMin float64 `mapstructure:"penetration_min" yaml:"penetration_min"`
	PenetrationMax float64 `mapstructure:"penetration_max" yaml:"penetration_max"`
}

type MarketConfig struct {
	DefaultCity         string                      `mapstructure:"default_city" yaml:"default_city"`
	NationalPopulationM float64                     `mapstructure:"national_population_m" yaml:"national_population_m"`
	Cities              map[string]float64          `mapstructure:"cities" yaml:"cities,omitempty"`
	Categories          map[string]CategoryOverride `mapstructure:"categories" yaml:"categories,omitempty"`
}

type ScoringConfig struct {
	Keywords formulation.Keywords `mapstructure:"keywords" yaml:"keywords"`
}

// Load reads and validates configuration. path may be empty, in which case
// studio.yaml is looked up in ./configs and the working directory and may be
// absent.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for commands that only need the market
// and scoring sections.
func Read(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultCfgName)
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyFallbacks(&cfg)
	return &cfg, nil
}

func loadEnvFile() {
	for _, p := range []string{".env", "../.env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_concurrent_generations", 4)
	v.SetDefault("server.chrome_path", "")
	v.SetDefault("server.pdf_paper", "a4")

	v.SetDefault("generation.backend", BackendRemote)
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.model", "")
	v.SetDefault("generation.timeout", 90*time.Second)
	v.SetDefault("generation.max_retries", 2)
	v.SetDefault("generation.assess", true)

	v.SetDefault("store.path", "data/studio.db")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("telemetry.service_name", "formulation-studio")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("market.default_city", marketanalysis.DefaultCity)
	v.SetDefault("market.national_population_m", marketanalysis.NationalPopulationM)
}

// applyFallbacks fills values that come from conventional environment
// variables outside the STUDIO_ namespace.
func applyFallbacks(cfg *Config) {
	cfg.Generation.Backend = strings.ToLower(strings.TrimSpace(cfg.Generation.Backend))
	if cfg.Generation.APIKey == "" && cfg.Generation.Backend == BackendAnthropic {
		cfg.Generation.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	}
	if cfg.Generation.Model == "" && cfg.Generation.Backend == BackendAnthropic {
		cfg.Generation.Model = strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL"))
	}
	if cfg.Server.ChromePath == "" {
		cfg.Server.ChromePath = strings.TrimSpace(os.Getenv("CHROME_PATH"))
	}
}

func (c *Config) Validate() error {
	switch c.Generation.Backend {
	case BackendRemote:
		if strings.TrimSpace(c.Generation.BaseURL) == "" {
			return fmt.Errorf("generation.base_url is required for the %s backend", BackendRemote)
		}
	case BackendAnthropic:
		if strings.TrimSpace(c.Generation.APIKey) == "" {
			return fmt.Errorf("generation.api_key (or ANTHROPIC_API_KEY) is required for the %s backend", BackendAnthropic)
		}
	default:
		return fmt.Errorf("unknown generation.backend %q", c.Generation.Backend)
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation.timeout must be positive")
	}
	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("generation.max_retries must not be negative")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.Server.MaxConcurrent <= 0 {
		return fmt.Errorf("server.max_concurrent_generations must be positive")
	}
	if _, ok := report.LayoutFor(c.Server.PDFPaper); !ok {
		return fmt.Errorf("unknown server.pdf_paper %q", c.Server.PDFPaper)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Cache.Enabled {
		if strings.TrimSpace(c.Cache.Addr) == "" {
			return fmt.Errorf("cache.addr is required when the cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive")
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0,1]")
	}
	for name, pop := range c.Market.Cities {
		if !(pop > 0) || math.IsInf(pop, 0) {
			return fmt.Errorf("market.cities.%s must be positive", name)
		}
	}
	tables := c.Market.Tables()
	if _, ok := tables.CityPopulationM(tables.DefaultCity); !ok {
		return fmt.Errorf("market.default_city %q is not in the city table", tables.DefaultCity)
	}
	for name, o := range c.Market.Categories {
		if !(o.Multiplier > 0) || math.IsInf(o.Multiplier, 0) {
			return fmt.Errorf("market.categories.%s.multiplier must be positive", name)
		}
		if o.PenetrationMin < 0 || o.PenetrationMax < o.PenetrationMin || o.PenetrationMax > 100 {
			return fmt.Errorf("market.categories.%s penetration range is invalid", name)
		}
	}
	return nil
}

// Tables returns the built-in reference tables with configured overrides
// applied.
func (m MarketConfig) Tables() marketanalysis.Tables {
	t := marketanalysis.DefaultTables()
	if m.NationalPopulationM > 0 {
		t.NationalPopulationM = m.NationalPopulationM
	}
	if city := strings.TrimSpace(m.DefaultCity); city != "" {
		t.DefaultCity = city
	}
	for name, pop := range m.Cities {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || pop <= 0 {
			continue
		}
		t.Cities[key] = pop
	}
	for name, o := range m.Categories {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		t.Categories[key] = marketanalysis.CategoryProfile{
			Category:    key,
			Multiplier:  o.Multiplier,
			Penetration: marketanalysis.PenetrationRange{Min: o.PenetrationMin, Max: o.PenetrationMax},
		}
	}
	return t
}

// YAML renders the effective configuration. Secrets are omitted.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}
