// Package config handles loading and accessing gateway configuration using
// Viper (environment variables and YAML files), plus a generic struct-tag
// driven JSON loader for standalone config structs.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway.
// Tags are used by Viper to map config file keys and environment variables.
type Config struct {
	LLM struct {
		Provider        string `mapstructure:"provider"`
		APIKey          string `mapstructure:"api_key"`
		BaseURL         string `mapstructure:"base_url"`
		Model           string `mapstructure:"model"`
		FallbackEnabled bool   `mapstructure:"fallback_enabled"`
	} `mapstructure:"llm"`

	TTS struct {
		Provider string `mapstructure:"provider"`
		APIKey   string `mapstructure:"api_key"`
		Voice    string `mapstructure:"voice"`
	} `mapstructure:"tts"`

	ASR struct {
		Provider string `mapstructure:"provider"`
		APIKey   string `mapstructure:"api_key"`
		Language string `mapstructure:"language"`
	} `mapstructure:"asr"`

	LipSync struct {
		Provider string `mapstructure:"provider"`
		APIKey   string `mapstructure:"api_key"`
	} `mapstructure:"lipsync"`

	Chunker struct {
		MaxChars             int    `mapstructure:"max_chars"`
		FirstChunkHardLimit  int    `mapstructure:"first_chunk_hard_limit"`
		AbbreviationSet      string `mapstructure:"abbreviation_set"`
	} `mapstructure:"chunker"`

	Pipeline struct {
		AdapterTimeoutsMS int `mapstructure:"adapter_timeouts_ms"`
	} `mapstructure:"pipeline"`

	AssetStore struct {
		StableSizePollMS   int    `mapstructure:"stable_size_poll_ms"`
		StableSizeBudgetMS int    `mapstructure:"stable_size_budget_ms"`
		Dir                string `mapstructure:"dir"`
	} `mapstructure:"asset_store"`

	Transport struct {
		Protocol string `mapstructure:"protocol"`
		Workers  int    `mapstructure:"workers"`
		Addr     string `mapstructure:"addr"`
	} `mapstructure:"transport"`

	Observability struct {
		// TraceExporter selects a GenAI call-tracing backend: "", "langfuse",
		// "langsmith", "opik", or "phoenix". Empty disables LLM call export.
		TraceExporter string `mapstructure:"trace_exporter"`
		BaseURL       string `mapstructure:"base_url"`
		APIKey        string `mapstructure:"api_key"`
		SecretKey     string `mapstructure:"secret_key"`
		Workspace     string `mapstructure:"workspace"`
	} `mapstructure:"observability"`
}

var Cfg Config

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPaths ...string) error {
	 v := viper.New()

	 // Set default values
	 v.SetDefault("llm.provider", "openai")
	 v.SetDefault("llm.model", "gpt-4o")
	 v.SetDefault("llm.fallback_enabled", true)
	 v.SetDefault("tts.provider", "local")
	 v.SetDefault("asr.provider", "local")
	 v.SetDefault("asr.language", "en")
	 v.SetDefault("lipsync.provider", "local")
	 v.SetDefault("chunker.max_chars", 120)
	 v.SetDefault("chunker.first_chunk_hard_limit", 125)
	 v.SetDefault("chunker.abbreviation_set", "Mr.,Mrs.,Ms.,Dr.,D.C.,U.S.,Prof.,Jr.,Sr.,vs.,e.g.,i.e.,etc.")
	 v.SetDefault("pipeline.adapter_timeouts_ms", 15000)
	 v.SetDefault("asset_store.stable_size_poll_ms", 100)
	 v.SetDefault("asset_store.stable_size_budget_ms", 2000)
	 v.SetDefault("asset_store.dir", "./data/assets")
	 v.SetDefault("transport.protocol", "sse")
	 v.SetDefault("transport.workers", 4)
	 v.SetDefault("transport.addr", ":8080")
	 v.SetDefault("observability.trace_exporter", "")
	 // Keys without a real default are registered empty so that AutomaticEnv
	 // overrides (e.g. GATEWAY_LLM_API_KEY) reach Unmarshal.
	 for _, key := range []string{
	 	 "llm.api_key", "llm.base_url", "tts.api_key", "tts.voice",
	 	 "asr.api_key", "lipsync.api_key", "observability.base_url",
	 	 "observability.api_key", "observability.secret_key", "observability.workspace",
	 } {
	 	 v.SetDefault(key, "")
	 }

	 // Set config file paths
	 v.SetConfigName("config") // name of config file (without extension)
	 v.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	 // Add paths to search for the config file
	 v.AddConfigPath(".") // Current directory
	 v.AddConfigPath("/etc/avatar-gateway/") // Path for system-wide config
	 v.AddConfigPath("$HOME/.avatar-gateway") // Path for user-specific config
	 for _, path := range configPaths {
	 	 v.AddConfigPath(path)
	 }

	 // Read config file (optional)
	 if err := v.ReadInConfig(); err != nil {
	 	 if _, ok := err.(viper.ConfigFileNotFoundError); ok {
	 	 	 // Config file not found; ignore error if desired
	 	 	 fmt.Println("Config file not found, using defaults and environment variables.")
	 	 } else {
	 	 	 // Config file was found but another error was produced
	 	 	 return fmt.Errorf("error reading config file: %w", err)
	 	 }
	 }

	 // Enable environment variable overriding
	 v.SetEnvPrefix("GATEWAY") // e.g., GATEWAY_LLM_API_KEY
	 v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	 v.AutomaticEnv()

	 // Unmarshal the config into the Cfg struct
	 if err := v.Unmarshal(&Cfg); err != nil {
	 	 return fmt.Errorf("unable to decode config into struct: %w", err)
	 }

	 // Optionally: Validate configuration values here
	 // if Cfg.LLMs.Cohere.APIKey == "" { ... }

	 return nil
}

