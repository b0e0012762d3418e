package core

import (
	"fmt"
	"strings"
)

type WebhookConfig struct {
	// Secret is the shared signing secret. Its absence is not a startup
	// failure: verification fails closed per request instead.
	Secret string `koanf:"secret" mapstructure:"secret"`
	// ToleranceSeconds bounds the delivery timestamp age. Zero disables
	// the check.
	ToleranceSeconds int `koanf:"tolerance_seconds" mapstructure:"tolerance_seconds"`
}

type ProviderConfig struct {
	APIKey  string `koanf:"api_key" mapstructure:"api_key"`
	BaseURL string `koanf:"base_url" mapstructure:"base_url"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Webhook     WebhookConfig  `koanf:"webhook" mapstructure:"webhook"`
	Provider    ProviderConfig `koanf:"provider" mapstructure:"provider"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "identity-sync",
		Provider: ProviderConfig{
			BaseURL: "https://api.clerk.com",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Webhook.ToleranceSeconds < 0 {
		return fmt.Errorf("core: webhook.tolerance_seconds must not be negative")
	}
	return nil
}
