package config

import "os"

func applyOpenAIEnv(cfg *OpenAIConfig) {
	if envAPIKey := getOpenAIAPIKeyFromEnv(); envAPIKey != "" {
		cfg.APIKey = envAPIKey
	}
	if envBaseURL := getOpenAIBaseURLFromEnv(); envBaseURL != "" {
		cfg.BaseURL = envBaseURL
	}
	if envOrg := getOpenAIOrgFromEnv(); envOrg != "" {
		cfg.Organization = envOrg
	}
}

// getOpenAIAPIKeyFromEnv gets the OpenAI API key from environment variable.
func getOpenAIAPIKeyFromEnv() string {
	return os.Getenv("OPENAI_API_KEY")
}

// getOpenAIBaseURLFromEnv gets the OpenAI base URL from environment variable.
func getOpenAIBaseURLFromEnv() string {
	return os.Getenv("OPENAI_BASE_URL")
}

// getOpenAIOrgFromEnv gets the OpenAI organization ID from environment variable.
func getOpenAIOrgFromEnv() string {
	return os.Getenv("OPENAI_ORG_ID")
}
