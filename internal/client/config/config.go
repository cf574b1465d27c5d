package config

import "time"

// Config holds runtime settings for the diary CLI.
//
// Fields:
//   - SupabaseURL / SupabaseAnonKey: backend project URL and public API key.
//   - DatabasePath: path of the local cache database file.
//   - OnlineCheckInterval: how often the client probes backend reachability.
//   - OpenAIAPIKey / OpenAIModel: generation-provider credential and model;
//     an empty key degrades feedback to canned fallback text.
type Config struct {
	SupabaseURL         string
	SupabaseAnonKey     string
	DatabasePath        string
	OnlineCheckInterval time.Duration
	OpenAIAPIKey        string
	OpenAIModel         string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "diary.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.OpenAIModel = "gpt-4o-mini"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), command-line flags (if present), and finally environment
// variables for secrets. Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	parseEnv(cfg)
	return cfg
}
