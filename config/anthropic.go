package config

import (
	"fmt"
	"os"
	"strconv"
)

func applyAnthropicEnv(cfg *AnthropicConfig) error {
	if envAPIKey := getAnthropicAPIKeyFromEnv(); envAPIKey != "" {
		cfg.APIKey = envAPIKey
	}
	if envBaseURL := getAnthropicBaseURLFromEnv(); envBaseURL != "" {
		cfg.BaseURL = envBaseURL
	}
	if envAttempts := os.Getenv("ANTHROPIC_MAX_ATTEMPTS"); envAttempts != "" {
		attempts, err := strconv.Atoi(envAttempts)
		if err != nil {
			return fmt.Errorf("invalid ANTHROPIC_MAX_ATTEMPTS %q: %w", envAttempts, err)
		}
		cfg.MaxAttempts = attempts
	}
	return nil
}

// getAnthropicAPIKeyFromEnv gets the Anthropic API key from environment variable.
func getAnthropicAPIKeyFromEnv() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

// getAnthropicBaseURLFromEnv gets the Anthropic base URL from environment variable.
func getAnthropicBaseURLFromEnv() string {
	return os.Getenv("ANTHROPIC_BASE_URL")
}
