package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/onelinediary/client/internal/flagx"
	"github.com/onelinediary/client/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "3s" or
// as integer nanoseconds. After parsing, values are copied into the runtime
// Config (which uses time.Duration).
type JsonConfig struct {
	SupabaseURL         string         `json:"supabase_url"`
	SupabaseAnonKey     string         `json:"supabase_anon_key"`
	DatabasePath        string         `json:"database_path"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	OpenAIModel         string         `json:"openai_model"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flags. Empty JSON fields leave the existing value alone, so
// a partial file only overrides what it mentions. Panics on read or
// unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.SupabaseURL != "" {
		cfg.SupabaseURL = jc.SupabaseURL
	}
	if jc.SupabaseAnonKey != "" {
		cfg.SupabaseAnonKey = jc.SupabaseAnonKey
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.OpenAIModel != "" {
		cfg.OpenAIModel = jc.OpenAIModel
	}
}
