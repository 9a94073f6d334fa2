package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/doc2md/backend/internal/models"
)

// Placeholder values shipped in .env templates. They count as unset.
const (
	PlaceholderAccountID    = "your_account_id_here"
	PlaceholderAPIToken     = "your_api_token_here"
	PlaceholderSecondaryKey = "your_mistral_api_key_here"
)

// LoadDotEnv loads .env.local and .env from dir if present. Variables that
// are already set in the process environment win.
func LoadDotEnv(dir string) []string {
	var loaded []string
	for _, name := range []string{".env.local", ".env"} {
		path := name
		if dir != "" {
			path = dir + string(os.PathSeparator) + name
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			loaded = append(loaded, path)
		}
	}
	return loaded
}

// CredentialsFromEnv reads credential defaults, treating placeholders as unset.
func CredentialsFromEnv() models.Credentials {
	return models.Credentials{
		AccountID:    envValue(PlaceholderAccountID, "CLOUDFLARE_ACCOUNT_ID", "VITE_CLOUDFLARE_ACCOUNT_ID"),
		APIToken:     envValue(PlaceholderAPIToken, "CLOUDFLARE_API_TOKEN", "VITE_CLOUDFLARE_API_TOKEN"),
		SecondaryKey: envValue(PlaceholderSecondaryKey, "MISTRAL_API_KEY", "VITE_MISTRAL_API_KEY"),
	}
}

// IsPlaceholder reports whether v is empty or a template sentinel.
func IsPlaceholder(v string) bool {
	switch strings.TrimSpace(v) {
	case "", PlaceholderAccountID, PlaceholderAPIToken, PlaceholderSecondaryKey:
		return true
	}
	return false
}

func envValue(placeholder string, keys ...string) string {
	for _, key := range keys {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" || v == placeholder || IsPlaceholder(v) {
			continue
		}
		return v
	}
	return ""
}
