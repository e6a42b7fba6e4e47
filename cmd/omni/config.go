package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// config is the resolved configuration shared by all commands.
type config struct {
	APIBase    string
	SessionID  string
	NewSession bool
	Provider   string
	Model      string

	LogLevel  string
	LogFormat string
	LogFile   string

	History     string
	HistoryPath string

	Classifier     string
	IntentPatterns string
	GeminiModel    string
	GeminiAPIKey   string

	FlushInterval time.Duration
	PollInterval  time.Duration
	PollHorizon   time.Duration
}

func loadConfig(v *viper.Viper) (config, error) {
	cfg := config{
		APIBase:        strings.TrimRight(v.GetString("api-base"), "/"),
		SessionID:      v.GetString("session"),
		NewSession:     v.GetBool("new"),
		Provider:       v.GetString("provider"),
		Model:          v.GetString("model"),
		LogLevel:       v.GetString("log-level"),
		LogFormat:      v.GetString("log-format"),
		LogFile:        v.GetString("log-file"),
		History:        v.GetString("history"),
		HistoryPath:    v.GetString("history-path"),
		Classifier:     v.GetString("classifier"),
		IntentPatterns: v.GetString("intent-patterns"),
		GeminiModel:    v.GetString("gemini-model"),
		GeminiAPIKey:   v.GetString("gemini-api-key"),
		FlushInterval:  v.GetDuration("flush-interval"),
		PollInterval:   v.GetDuration("poll-interval"),
		PollHorizon:    v.GetDuration("poll-horizon"),
	}
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if cfg.APIBase == "" {
		return config{}, fmt.Errorf("api-base must not be empty")
	}
	switch cfg.History {
	case "json", "sqlite":
	default:
		return config{}, fmt.Errorf("unknown history store %q (want json or sqlite)", cfg.History)
	}
	switch cfg.Classifier {
	case "regex":
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return config{}, fmt.Errorf("gemini classifier needs an API key (--gemini-api-key or GEMINI_API_KEY)")
		}
	default:
		return config{}, fmt.Errorf("unknown classifier %q (want regex or gemini)", cfg.Classifier)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return config{}, fmt.Errorf("unknown log format %q (want text or json)", cfg.LogFormat)
	}
	for name, d := range map[string]time.Duration{
		"flush-interval": cfg.FlushInterval,
		"poll-interval":  cfg.PollInterval,
		"poll-horizon":   cfg.PollHorizon,
	} {
		if d <= 0 {
			return config{}, fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if cfg.HistoryPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.HistoryPath = filepath.Join(home, ".omni", "sessions")
		if cfg.History == "sqlite" {
			cfg.HistoryPath = filepath.Join(home, ".omni", "omni.db")
		}
	}
	return cfg, nil
}
