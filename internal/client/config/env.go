package config

import "os"

// parseEnv overlays secrets and connection settings from the environment.
// Environment wins over file and flags so deployments can inject credentials
// without touching either.
//
//	DIARY_SUPABASE_URL       backend project URL
//	DIARY_SUPABASE_ANON_KEY  backend public API key
//	OPENAI_API_KEY           generation-provider credential
//	OPENAI_MODEL             generation model identifier
func parseEnv(cfg *Config) {
	if v := os.Getenv("DIARY_SUPABASE_URL"); v != "" {
		cfg.SupabaseURL = v
	}
	if v := os.Getenv("DIARY_SUPABASE_ANON_KEY"); v != "" {
		cfg.SupabaseAnonKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}
}
