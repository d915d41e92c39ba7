// Package config loads daemon settings from the environment and the
// optional playlists seed file.
package config

import (
	"os"
	"time"
)

// Config holds daemon settings. Everything comes from IPTVAULT_* env
// vars; call LoadEnvFile(".env") before Load() to use a .env file.
type Config struct {
	DBPath        string // SQLite database file
	ListenAddr    string // health/metrics HTTP listener
	PlaylistsFile string // optional YAML playlist seed, "" = none

	RefreshInterval time.Duration // periodic catalog refresh; 0 disables the loop
	EPGRetention    time.Duration // purge programs that ended this long ago
	HTTPTimeout     time.Duration // per-request timeout toward providers
}

// Load reads config from environment with sane defaults.
func Load() *Config {
	return &Config{
		DBPath:          getEnv("IPTVAULT_DB", "./iptvault.db"),
		ListenAddr:      getEnv("IPTVAULT_LISTEN", ":9753"),
		PlaylistsFile:   os.Getenv("IPTVAULT_PLAYLISTS_FILE"),
		RefreshInterval: getEnvDuration("IPTVAULT_REFRESH_INTERVAL", 12*time.Hour),
		EPGRetention:    getEnvDuration("IPTVAULT_EPG_RETENTION", 7*24*time.Hour),
		HTTPTimeout:     getEnvDuration("IPTVAULT_HTTP_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
