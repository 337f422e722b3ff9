package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Telegram struct {
		// APIBaseURL overrides the Bot API endpoint, mainly for tests and
		// local Bot API servers. Empty means https://api.telegram.org.
		APIBaseURL string `yaml:"api_base_url"`
		// OperatorBotToken is the long-polling bot used for account linking.
		// Business webhook traffic arrives over HTTP regardless of this.
		OperatorBotToken   string `yaml:"operator_bot_token"`
		OperatorBotEnabled bool   `yaml:"operator_bot_enabled"`
	} `yaml:"telegram"`
	Uploads struct {
		Dir string `yaml:"dir"`
	} `yaml:"uploads"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if config.Uploads.Dir == "" {
		config.Uploads.Dir = "uploads"
	}
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	return config, nil
}
