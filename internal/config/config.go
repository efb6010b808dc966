package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvNamenode = "HDFSWINDOW_NAMENODE"
	EnvUser     = "HDFSWINDOW_USER"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Namenode       string `yaml:"namenode"`
	ManagementPort int    `yaml:"management_port"`
	APIPrefix      string `yaml:"api_prefix"`
	User           string `yaml:"user"`

	Upload struct {
		BlockSize          int64 `yaml:"block_size"`
		Workers            int   `yaml:"workers"`
		ChunkAttempts      int   `yaml:"chunk_attempts"`
		CleanupFailedParts bool  `yaml:"cleanup_failed_parts"`
	} `yaml:"upload"`

	HTTP struct {
		RequestTimeout   time.Duration `yaml:"request_timeout"`
		ReadRangeTimeout time.Duration `yaml:"read_range_timeout"`
		TransferTimeout  time.Duration `yaml:"transfer_timeout"`
		ConnectTimeout   time.Duration `yaml:"connect_timeout"`
		MaxRetries       int           `yaml:"max_retries"`
		RateLimit        float64       `yaml:"rate_limit"`
		RateBurst        int           `yaml:"rate_burst"`
	} `yaml:"http"`

	TailSize int64 `yaml:"tail_size"`

	Log struct {
		Dir   string `yaml:"dir"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	// AddressOverrides pins datanode hostnames to reachable addresses.
	AddressOverrides map[string]string `yaml:"address_overrides"`
}

func Default() *Config {
	cfg := &Config{
		Namenode:       "localhost",
		ManagementPort: 50070,
		APIPrefix:      "/webhdfs/v1",
		User:           "hadoop",
		TailSize:       100 << 10,
	}
	cfg.Upload.BlockSize = 64 << 20
	cfg.Upload.Workers = 8
	cfg.Upload.ChunkAttempts = 1
	cfg.HTTP.RequestTimeout = 30 * time.Second
	cfg.HTTP.ReadRangeTimeout = 6 * time.Second
	cfg.HTTP.TransferTimeout = time.Hour
	cfg.HTTP.ConnectTimeout = 3 * time.Second
	cfg.HTTP.MaxRetries = 3
	cfg.Log.Dir = filepath.Join(defaultHome(), "logs")
	cfg.Log.Level = "INFO"
	return cfg
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hdfswindow"
	}
	return filepath.Join(home, ".hdfswindow")
}

func DefaultPath() string {
	return filepath.Join(defaultHome(), "config.yaml")
}

// LoadConfig reads path, writing a default config there first when it does
// not exist. Environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvNamenode)); v != "" {
		c.Namenode = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvUser)); v != "" {
		c.User = v
	}
}

// fillDefaults replaces zero values left by a partial config file.
func (c *Config) fillDefaults() {
	d := Default()
	if c.ManagementPort == 0 {
		c.ManagementPort = d.ManagementPort
	}
	if c.APIPrefix == "" {
		c.APIPrefix = d.APIPrefix
	}
	if c.Upload.BlockSize == 0 {
		c.Upload.BlockSize = d.Upload.BlockSize
	}
	if c.Upload.Workers == 0 {
		c.Upload.Workers = d.Upload.Workers
	}
	if c.Upload.ChunkAttempts == 0 {
		c.Upload.ChunkAttempts = d.Upload.ChunkAttempts
	}
	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = d.HTTP.RequestTimeout
	}
	if c.HTTP.ReadRangeTimeout == 0 {
		c.HTTP.ReadRangeTimeout = d.HTTP.ReadRangeTimeout
	}
	if c.HTTP.TransferTimeout == 0 {
		c.HTTP.TransferTimeout = d.HTTP.TransferTimeout
	}
	if c.HTTP.ConnectTimeout == 0 {
		c.HTTP.ConnectTimeout = d.HTTP.ConnectTimeout
	}
	if c.TailSize == 0 {
		c.TailSize = d.TailSize
	}
	if c.Log.Dir == "" {
		c.Log.Dir = d.Log.Dir
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Namenode) == "" {
		problems = append(problems, "namenode is required")
	}
	if c.ManagementPort <= 0 || c.ManagementPort > 65535 {
		problems = append(problems, fmt.Sprintf("management_port %d out of range", c.ManagementPort))
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		problems = append(problems, fmt.Sprintf("api_prefix %q must start with /", c.APIPrefix))
	}
	if c.Upload.BlockSize < 0 {
		problems = append(problems, "upload.block_size must be positive")
	}
	if c.Upload.Workers < 0 {
		problems = append(problems, "upload.workers must be positive")
	}
	if c.Upload.ChunkAttempts < 0 {
		problems = append(problems, "upload.chunk_attempts must be positive")
	}
	if c.HTTP.MaxRetries < 0 {
		problems = append(problems, "http.max_retries must not be negative")
	}
	if c.HTTP.RateLimit < 0 {
		problems = append(problems, "http.rate_limit must not be negative")
	}
	if c.TailSize < 0 {
		problems = append(problems, "tail_size must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
