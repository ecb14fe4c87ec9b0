package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultAPIURL         = "http://127.0.0.1:8000"
	DefaultRequestTimeout = 15 * time.Second
	envPrefix             = "TASKDECK"
)

// Config holds the settings that must be known before the local database
// is opened. UI preferences live in the database instead.
type Config struct {
	APIURL         string        `mapstructure:"api_url" yaml:"api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	DBPath         string        `mapstructure:"db_path" yaml:"db_path"`
	LogFile        string        `mapstructure:"log_file" yaml:"log_file"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
}

// Dir returns ~/.config/taskdeck
func Dir() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "taskdeck"), nil
}

// Load reads, in increasing precedence: built-in defaults, the config file,
// a .env file in the working directory, and TASKDECK_* environment
// variables. path may be empty to use ~/.config/taskdeck/config.yaml.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	dir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("config dir: %w", err)
	}

	v := viper.New()
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("db_path", filepath.Join(dir, "taskdeck.db"))
	v.SetDefault("log_file", filepath.Join(dir, "taskdeck.log"))
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, "config.yaml")
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api_url %q", c.APIURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_url must be http or https, got %q", u.Scheme)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is empty")
	}
	return nil
}
