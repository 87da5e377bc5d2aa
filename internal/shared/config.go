package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Charts      ChartsConfig      `toml:"charts"`
	Server      ServerConfig      `toml:"server"`
	Fetch       FetchConfig       `toml:"fetch"`
	Features    FeaturesConfig    `toml:"features"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID    string `toml:"client_id"`
	RedirectURI string `toml:"redirect_uri"`
}

// ChartsConfig contains settings for the secondary charts API and its relay fallbacks.
type ChartsConfig struct {
	BackendURL string   `toml:"backend_url"`
	BaseURL    string   `toml:"base_url"`
	APIKey     string   `toml:"api_key"`
	Relays     []string `toml:"relays"`
}

// ServerConfig contains HTTP proxy server settings.
type ServerConfig struct {
	Host  string  `toml:"host"`
	Port  int     `toml:"port"`
	RPS   float64 `toml:"rps"`
	Burst int     `toml:"burst"`
}

// FetchConfig contains defaults for the resilient fetch substrate.
type FetchConfig struct {
	Concurrency    int `toml:"concurrency"`
	Retries        int `toml:"retries"`
	RetryDelayMS   int `toml:"retry_delay_ms"`
	CacheEntries   int `toml:"cache_entries"`
	SpotifyLimit   int `toml:"spotify_rate_limit"`
	SpotifyWindow  int `toml:"spotify_window_ms"`
	ChartsLimit    int `toml:"charts_rate_limit"`
	ChartsWindowMS int `toml:"charts_window_ms"`
}

// FeaturesConfig contains feature flag booleans.
type FeaturesConfig struct {
	ExcludeTopTracks bool `toml:"exclude_top_tracks"`
	EnableFallback   bool `toml:"enable_fallback"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// A .env file in the working directory is loaded first (best effort) and MUSE_*
// environment variables override their file counterparts.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidInput)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnv layers .env and MUSE_* environment variables over the parsed config.
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("MUSE_SPOTIFY_CLIENT_ID"); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv("MUSE_BACKEND_URL"); v != "" {
		c.Charts.BackendURL = v
	}
	if v := os.Getenv("MUSE_CHARTS_API_KEY"); v != "" {
		c.Charts.APIKey = v
	}
	if v, ok := envBool("MUSE_EXCLUDE_TOP_TRACKS"); ok {
		c.Features.ExcludeTopTracks = v
	}
	if v, ok := envBool("MUSE_ENABLE_FALLBACK"); ok {
		c.Features.EnableFallback = v
	}
}

func envBool(key string) (bool, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return parsed, true
}
