package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Classifier kinds.
const (
	ClassifierNone = "none"
	ClassifierHTTP = "http"
	ClassifierLLM  = "llm"
)

// Cfg holds all runtime configuration loaded from environment variables.
type Cfg struct {
	// Server
	ListenAddr     string // e.g. :8080
	MaxUploadBytes int64  // MAX_UPLOAD_BYTES, uploads above are rejected unread

	// Extraction
	CacheMaxEntries int // CACHE_MAX_ENTRIES, bounded FIFO cache of extractions
	ExtractMaxPages int // EXTRACT_MAX_PAGES, page limit of the standard parse

	// Remote classifier
	ClassifierKind       string        // CLASSIFIER_KIND=http|llm|none
	ClassifierURLs       []string      // CLASSIFIER_URLS=http://a:8001,http://b:8001
	ClassifierTimeout    time.Duration // CLASSIFIER_TIMEOUT=15s
	ClassifierLLMModel   string        // CLASSIFIER_LLM_MODEL=qwen2.5:0.5b
	ClassifierSigningKey string        // CLASSIFIER_SIGNING_KEY, hex secp256k1 key

	// Local rules
	RulesFile string // RULES_FILE replaces the embedded rule table

	// Zero-byte dedup set
	DedupResetSchedule string // DEDUP_RESET_SCHEDULE=@daily

	// Observability
	LogLevel       slog.Level
	LogFormat      string // text|json
	MetricsEnabled bool
}

// Load reads envFile (or .env, best effort, when envFile is empty) and then
// environment variables, and returns Cfg.
func Load(envFile string) (*Cfg, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Cfg{
		ClassifierLLMModel:   envOr("CLASSIFIER_LLM_MODEL", "qwen2.5:0.5b"),
		ClassifierSigningKey: env("CLASSIFIER_SIGNING_KEY"),
		RulesFile:            env("RULES_FILE"),
		DedupResetSchedule:   envOr("DEDUP_RESET_SCHEDULE", "@daily"),
		LogFormat:            strings.ToLower(envOr("LOG_FORMAT", "text")),
		MetricsEnabled:       envBool("METRICS_ENABLED"),
	}

	port := envOr("PORT", "8080")
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return nil, fmt.Errorf("config: PORT %q: not a port number", port)
	}
	cfg.ListenAddr = ":" + port

	var err error
	if cfg.MaxUploadBytes, err = envInt64("MAX_UPLOAD_BYTES", 20<<20); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("config: MAX_UPLOAD_BYTES must be positive")
	}
	n, err := envInt64("CACHE_MAX_ENTRIES", 128)
	if err != nil {
		return nil, err
	}
	cfg.CacheMaxEntries = int(n)
	if n, err = envInt64("EXTRACT_MAX_PAGES", 200); err != nil {
		return nil, err
	}
	cfg.ExtractMaxPages = int(n)

	for _, u := range strings.Split(env("CLASSIFIER_URLS"), ",") {
		if u = strings.TrimSpace(u); u != "" {
			cfg.ClassifierURLs = append(cfg.ClassifierURLs, u)
		}
	}
	// Without URLs the service runs on local rules unless a kind is forced.
	defaultKind := ClassifierNone
	if len(cfg.ClassifierURLs) > 0 {
		defaultKind = ClassifierHTTP
	}
	cfg.ClassifierKind = strings.ToLower(envOr("CLASSIFIER_KIND", defaultKind))
	switch cfg.ClassifierKind {
	case ClassifierNone:
	case ClassifierHTTP, ClassifierLLM:
		if len(cfg.ClassifierURLs) == 0 {
			return nil, fmt.Errorf("config: CLASSIFIER_KIND=%s requires CLASSIFIER_URLS", cfg.ClassifierKind)
		}
	default:
		return nil, fmt.Errorf("config: unknown CLASSIFIER_KIND %q (supported: http, llm, none)", cfg.ClassifierKind)
	}

	if cfg.ClassifierTimeout, err = time.ParseDuration(envOr("CLASSIFIER_TIMEOUT", "15s")); err != nil {
		return nil, fmt.Errorf("config: CLASSIFIER_TIMEOUT: %w", err)
	}
	if cfg.ClassifierTimeout <= 0 {
		return nil, fmt.Errorf("config: CLASSIFIER_TIMEOUT must be positive")
	}

	if _, err := cron.ParseStandard(cfg.DedupResetSchedule); err != nil {
		return nil, fmt.Errorf("config: DEDUP_RESET_SCHEDULE: %w", err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(envOr("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("config: unknown LOG_FORMAT %q (supported: text, json)", cfg.LogFormat)
	}

	return cfg, nil
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func envOr(key, def string) string {
	if v := env(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v := env(key)
	return v == "1" || strings.EqualFold(v, "true")
}

func envInt64(key string, def int64) (int64, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s %q: not an integer", key, raw)
	}
	return n, nil
}
