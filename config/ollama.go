package config

import "os"

func applyOllamaEnv(cfg *OllamaConfig) {
	if envHost := getOllamaHostFromEnv(); envHost != "" {
		cfg.Host = envHost
	}
}

// getOllamaHostFromEnv gets the Ollama host from environment variable.
func getOllamaHostFromEnv() string {
	return os.Getenv("OLLAMA_HOST")
}
