// Package config reads service configuration from the environment. All knobs
// have working defaults; only the upstream API keys are mandatory.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

const (
	defaultPort           = "8000"
	defaultDataRoot       = "./data"
	defaultMaxUploadBytes = 64 << 20
)

// requiredEnv lists the API keys the service refuses to start without.
var requiredEnv = []string{"OPENAI_API_KEY", "SERPER_API_KEY"}

// Config carries the service's runtime settings.
type Config struct {
	Addr           string // listen address, ":" + PORT
	DataRoot       string // scratch directory for uploaded documents
	CacheDir       string // agent memory DB and analysis logs live here
	MaxUploadBytes int64  // request body cap for /analyze
}

// FromEnv builds a Config from the environment:
//
//	PORT                     (default 8000)
//	DATA_ROOT                (default ./data)
//	FINDOC_CACHE_DIR         (default ~/.cache/findoc)
//	FINDOC_MAX_UPLOAD_BYTES  (default 64 MiB)
func FromEnv() Config {
	homeDir, _ := os.UserHomeDir()

	maxUpload := int64(defaultMaxUploadBytes)
	if raw := os.Getenv("FINDOC_MAX_UPLOAD_BYTES"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			maxUpload = parsed
		}
	}

	return Config{
		Addr:           ":" + getenv("PORT", defaultPort),
		DataRoot:       getenv("DATA_ROOT", defaultDataRoot),
		CacheDir:       getenv("FINDOC_CACHE_DIR", filepath.Join(homeDir, ".cache", "findoc")),
		MaxUploadBytes: maxUpload,
	}
}

// MissingEnv returns the required environment variables that are unset.
//
// Expectations:
//   - Returns nil when both API keys are set
//   - Returns the names of unset keys in declaration order
func MissingEnv() []string {
	var missing []string
	for _, v := range requiredEnv {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// EnvStatus reports, per required variable, whether it is set. Used by the
// health endpoint.
func EnvStatus() map[string]bool {
	status := make(map[string]bool, len(requiredEnv))
	for _, v := range requiredEnv {
		status[v] = os.Getenv(v) != ""
	}
	return status
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
