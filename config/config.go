package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Service struct {
		Host           string        `yaml:"host"`
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		PredictTimeout time.Duration `yaml:"predict_timeout"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"service"`
	Model struct {
		Path  string `yaml:"path"`
		Watch bool   `yaml:"watch"`
	} `yaml:"model"`
	Frontend struct {
		Host          string        `yaml:"host"`
		Port          int           `yaml:"port"`
		ServiceURL    string        `yaml:"service_url"`
		SubmitTimeout time.Duration `yaml:"submit_timeout"`
		Locale        string        `yaml:"locale"`
		MaxSessions   int           `yaml:"max_sessions"`
		SessionTTL    time.Duration `yaml:"session_ttl"`
	} `yaml:"frontend"`
	Weather struct {
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
		Location string `yaml:"location"`
		// DisplayName is shown on the form; Location is what the weather API is asked for.
		DisplayName string        `yaml:"display_name"`
		Lang        string        `yaml:"lang"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"weather"`
	Alerts struct {
		WebhookURL string        `yaml:"webhook_url"`
		Cooldown   time.Duration `yaml:"cooldown"`
		MaxPerHour int           `yaml:"max_per_hour"`
	} `yaml:"alerts"`
	Launcher struct {
		ReadyTimeout time.Duration `yaml:"ready_timeout"`
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"launcher"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	var c Config
	c.Service.Host = "127.0.0.1"
	c.Service.Port = 8000
	c.Service.Timeout = 30 * time.Second
	c.Service.PredictTimeout = 5 * time.Second
	c.Service.MaxBodyBytes = 1 << 16
	c.Service.AllowedOrigins = []string{"*"}
	c.Model.Path = "models/snow_model.json"
	c.Frontend.Host = "127.0.0.1"
	c.Frontend.Port = 8501
	c.Frontend.ServiceURL = "http://127.0.0.1:8000"
	c.Frontend.SubmitTimeout = 10 * time.Second
	c.Frontend.Locale = "ja"
	c.Frontend.MaxSessions = 1024
	c.Frontend.SessionTTL = 30 * time.Minute
	c.Weather.BaseURL = "https://api.openweathermap.org"
	c.Weather.Location = "Ōmachi, JP"
	c.Weather.DisplayName = "大町/白馬"
	c.Weather.Lang = "ja"
	c.Weather.Timeout = 5 * time.Second
	c.Alerts.Cooldown = 5 * time.Minute
	c.Alerts.MaxPerHour = 20
	c.Launcher.ReadyTimeout = 15 * time.Second
	c.Launcher.PollInterval = 200 * time.Millisecond
	c.Log.Level = "info"
	c.Log.MaxSizeMB = 50
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 14
	return &c
}

// Load reads path over the defaults, then applies .env files and SNOWCAST_* variables.
// A missing config file is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	config := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case err == nil:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(config); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, config.Validate()
}

func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	// godotenv.Load never overrides variables already set in the process
	return godotenv.Load(existing...)
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("SNOWCAST_MODEL_PATH"); ok {
		c.Model.Path = v
	}
	if v, ok := os.LookupEnv("SNOWCAST_SERVICE_URL"); ok {
		c.Frontend.ServiceURL = v
	}
	if v, ok := os.LookupEnv("SNOWCAST_WEATHER_API_KEY"); ok {
		c.Weather.APIKey = v
	}
	if v, ok := os.LookupEnv("SNOWCAST_ALERT_WEBHOOK"); ok {
		c.Alerts.WebhookURL = v
	}
	if v, ok := os.LookupEnv("SNOWCAST_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("SNOWCAST_SUBMIT_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SNOWCAST_SUBMIT_TIMEOUT: %w", err)
		}
		c.Frontend.SubmitTimeout = d
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if c.Service.Port <= 0 || c.Frontend.Port <= 0 {
		return errors.New("service.port and frontend.port must be positive")
	}
	if c.Service.PredictTimeout <= 0 {
		return errors.New("service.predict_timeout must be positive")
	}
	if c.Frontend.SubmitTimeout < 0 {
		return errors.New("frontend.submit_timeout must not be negative")
	}
	if c.Frontend.MaxSessions <= 0 {
		return errors.New("frontend.max_sessions must be positive")
	}
	return nil
}

func (c *Config) ServiceAddr() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.Port)
}

func (c *Config) FrontendAddr() string {
	return fmt.Sprintf("%s:%d", c.Frontend.Host, c.Frontend.Port)
}
