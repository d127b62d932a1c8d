// Package config holds application configuration, loaded from a JSON
// file in the user config directory with environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Mode                  string `json:"mode"`
	GoogleCloudProject    string `json:"google_cloud_project"`
	GoogleCloudLocation   string `json:"google_cloud_location"`
	GoogleCredentialsPath string `json:"google_credentials_path"`
	GmailCredentialsPath  string `json:"gmail_credentials_path"`
	GmailTokenPath        string `json:"gmail_token_path"`
	TavilyAPIKey          string `json:"tavily_api_key"`
	HREmail               string `json:"hr_email"`
	DataDir               string `json:"data_dir"`
	DatabasePath          string `json:"database_path"`
	HTTPAddr              string `json:"http_addr"`
	PollIntervalSeconds   int    `json:"poll_interval_seconds"`
	AbandonAfterDays      int    `json:"abandon_after_days"`
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		Mode:                 "development",
		GoogleCloudLocation:  "us-central1",
		GmailCredentialsPath: "credentials.json",
		GmailTokenPath:       "token.json",
		DataDir:              "data",
		DatabasePath:         filepath.Join("data", "screener.db"),
		HTTPAddr:             ":8080",
		PollIntervalSeconds:  20,
		AbandonAfterDays:     14,
	}
}

// GetConfigPath returns the path to the configuration file
// On Windows: %APPDATA%/ResumeScreener/config.json
// On Unix: ~/.config/ResumeScreener/config.json
func GetConfigPath() (string, error) {
	var configDir string

	if os.Getenv("APPDATA") != "" {
		// Windows
		configDir = filepath.Join(os.Getenv("APPDATA"), "ResumeScreener")
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "ResumeScreener")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load loads configuration from the default config path
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadFrom(configPath)
}

// LoadFrom loads configuration from a specific path. A .env file in the
// working directory is read first so its variables participate in the
// environment overrides.
func LoadFrom(path string) (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvOverrides()
	return config, nil
}

// applyEnvOverrides lets environment variables win over the file, so
// deployments can configure without editing JSON.
func (c *Config) applyEnvOverrides() {
	setIfPresent := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setIfPresent(&c.Mode, "SCREENER_MODE")
	setIfPresent(&c.GoogleCloudProject, "GOOGLE_CLOUD_PROJECT")
	setIfPresent(&c.GoogleCloudLocation, "GOOGLE_CLOUD_LOCATION")
	setIfPresent(&c.GoogleCredentialsPath, "GOOGLE_APPLICATION_CREDENTIALS")
	setIfPresent(&c.GmailCredentialsPath, "GMAIL_CREDENTIALS_PATH")
	setIfPresent(&c.GmailTokenPath, "GMAIL_TOKEN_PATH")
	setIfPresent(&c.TavilyAPIKey, "TAVILY_API_KEY")
	setIfPresent(&c.HREmail, "HR_EMAIL")
	setIfPresent(&c.DataDir, "SCREENER_DATA_DIR")
	setIfPresent(&c.DatabasePath, "SCREENER_DATABASE_PATH")
	setIfPresent(&c.HTTPAddr, "SCREENER_HTTP_ADDR")

	if v := os.Getenv("EMAIL_CHECK_INTERVAL"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			c.PollIntervalSeconds = seconds
		}
	}
	if v := os.Getenv("SCREENER_ABANDON_AFTER_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			c.AbandonAfterDays = days
		}
	}
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// AbandonAfter returns the stale-thread cutoff as a duration.
func (c *Config) AbandonAfter() time.Duration {
	return time.Duration(c.AbandonAfterDays) * 24 * time.Hour
}

// Save saves the configuration to the default config path
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	return c.SaveTo(configPath)
}

// SaveTo saves the configuration to a specific path
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.GoogleCloudProject == "" {
		return fmt.Errorf("google_cloud_project is required")
	}

	if c.HREmail == "" {
		return fmt.Errorf("hr_email is required")
	}

	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be positive")
	}

	if c.GmailCredentialsPath != "" {
		if _, err := os.Stat(c.GmailCredentialsPath); err != nil {
			return fmt.Errorf("gmail credentials file not found: %w", err)
		}
	}

	return nil
}

// ApplyToEnv applies configuration values to environment variables
func (c *Config) ApplyToEnv() {
	if c.GoogleCloudProject != "" {
		os.Setenv("GOOGLE_CLOUD_PROJECT", c.GoogleCloudProject)
	}
	if c.GoogleCloudLocation != "" {
		os.Setenv("GOOGLE_CLOUD_LOCATION", c.GoogleCloudLocation)
	}
	if c.GoogleCredentialsPath != "" {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", c.GoogleCredentialsPath)
	}
}
