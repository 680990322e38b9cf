package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr string
	Env      string

	// DatabaseURL empty means the in-memory store; handy for local work
	// and demos where nothing needs to survive a restart.
	DatabaseURL string
	AutoMigrate bool

	GeminiAPIKey string
	Models       []string

	// UploadDir is where step audio recordings land.
	UploadDir string
}

func Load() Config {
	return Config{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		Env:          getenv("ENV", "dev"),
		DatabaseURL:  getenv("DATABASE_URL", ""),
		AutoMigrate:  getenvBool("AUTO_MIGRATE", true),
		GeminiAPIKey: getenv("GEMINI_API_KEY", ""),
		Models:       splitList(getenv("MODELS", "gemini-2.5-pro,gemini-2.5-flash")),
		UploadDir:    getenv("UPLOAD_DIR", "uploads"),
	}
}

func getenv(key, defaultValue string) string {
	v := os.Getenv(key)
	if v != "" {
		return v
	}
	return defaultValue
}

func getenvBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
