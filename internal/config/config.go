package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"pdf-generator/internal/layout"
)

const defaultPath = "config.yaml"

// Config is the process-wide configuration. It is read once at startup and
// never mutated afterwards.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logger  LoggerConfig  `yaml:"logger"`
	PDF     PDFConfig     `yaml:"pdf"`
	Stats   StatsConfig   `yaml:"stats"`
	Journal JournalConfig `yaml:"journal"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        string `yaml:"port"`
	Prefork     bool   `yaml:"prefork"`
	BodyLimitMB int    `yaml:"body_limit_mb"`
}

type LoggerConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type PDFConfig struct {
	ChromePath         string `yaml:"chrome_path"`
	ChromeNoSandbox    bool   `yaml:"chrome_no_sandbox"`
	UserDataDir        string `yaml:"user_data_dir"`
	TimeoutSecs        int    `yaml:"timeout_secs"`
	AcquireTimeoutSecs int    `yaml:"acquire_timeout_secs"`
	MaxConcurrent      int    `yaml:"max_concurrent"`
	HeaderFooterMode   string `yaml:"header_footer_mode"`
}

// StatsConfig points the render counters at Redis. An empty host keeps them in memory.
type StatsConfig struct {
	RedisHost string `yaml:"redis_host"`
	RedisDB   int    `yaml:"redis_db"`
}

type JournalConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:        ":1984",
			BodyLimitMB: 50,
		},
		Logger: LoggerConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		PDF: PDFConfig{
			TimeoutSecs:        60,
			AcquireTimeoutSecs: 30,
			HeaderFooterMode:   string(layout.ModeSuppress),
		},
	}
}

// Load reads the file named by CONFIG_PATH (or config.yaml). A missing
// default file is not an error; defaults and env overrides apply.
func Load() Config {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return LoadFrom(p)
	}
	if _, err := os.Stat(defaultPath); errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		applyEnv(&cfg)
		mustValidate(cfg)
		return cfg
	}
	return LoadFrom(defaultPath)
}

// LoadFrom reads and validates the YAML file at path. It panics on any error.
func LoadFrom(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		panic(fmt.Sprintf("config: parse %s: %v", path, err))
	}
	applyEnv(&cfg)
	mustValidate(cfg)
	return cfg
}

// applyEnv lets common container variables override the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = ":" + v
	}
	if cfg.PDF.ChromePath == "" {
		for _, key := range []string{"PUPPETEER_EXECUTABLE_PATH", "CHROME_BIN"} {
			if v := os.Getenv(key); v != "" {
				cfg.PDF.ChromePath = v
				break
			}
		}
	}
	if v := os.Getenv("CHROME_NO_SANDBOX"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PDF.ChromeNoSandbox = b
		}
	}
}

func mustValidate(cfg Config) {
	if err := cfg.Validate(); err != nil {
		panic("config: " + err.Error())
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Server.BodyLimitMB <= 0 {
		return fmt.Errorf("server.body_limit_mb must be positive")
	}
	// Each prefork child would build its own render gate, multiplying the
	// browser ceiling by the number of children.
	if c.Server.Prefork {
		return fmt.Errorf("server.prefork is not supported: pdf.max_concurrent is enforced per process")
	}
	if c.PDF.TimeoutSecs <= 0 {
		return fmt.Errorf("pdf.timeout_secs must be positive")
	}
	if c.PDF.AcquireTimeoutSecs <= 0 {
		return fmt.Errorf("pdf.acquire_timeout_secs must be positive")
	}
	if c.PDF.MaxConcurrent < 0 {
		return fmt.Errorf("pdf.max_concurrent must not be negative")
	}
	if _, err := layout.ParseMode(c.PDF.HeaderFooterMode); err != nil {
		return fmt.Errorf("pdf.header_footer_mode: %w", err)
	}
	if c.Journal.Enabled && c.Journal.Postgres.Host == "" {
		return fmt.Errorf("journal.postgres.host is required when the journal is enabled")
	}
	return nil
}

// HeaderFooterMode returns the validated header/footer mode.
func (c Config) HeaderFooterMode() layout.HeaderFooterMode {
	m, err := layout.ParseMode(c.PDF.HeaderFooterMode)
	if err != nil {
		return layout.ModeSuppress
	}
	return m
}
