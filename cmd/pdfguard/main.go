package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/gonkalabs/pdfguard/internal/api"
	"github.com/gonkalabs/pdfguard/internal/config"
	"github.com/gonkalabs/pdfguard/internal/detect"
	"github.com/gonkalabs/pdfguard/internal/detect/httpclassifier"
	"github.com/gonkalabs/pdfguard/internal/detect/llmclassifier"
	"github.com/gonkalabs/pdfguard/internal/extract"
	"github.com/gonkalabs/pdfguard/internal/scan"
	"github.com/gonkalabs/pdfguard/internal/signer"
	"github.com/gonkalabs/pdfguard/internal/submission"
	"github.com/gonkalabs/pdfguard/internal/telemetry"
)

func main() {
	envFile := pflag.String("env-file", "", "load environment from this file instead of .env")
	addr := pflag.String("addr", "", "listen address, overrides PORT")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}

	tel, err := telemetry.Init(context.Background(), telemetry.Config{Enabled: cfg.MetricsEnabled})
	if err != nil {
		slog.Error("telemetry error", "err", err)
		os.Exit(1)
	}
	metrics, err := telemetry.NewMetrics(tel.Meter)
	if err != nil {
		slog.Error("telemetry error", "err", err)
		os.Exit(1)
	}

	rules, err := loadRules(cfg.RulesFile)
	if err != nil {
		slog.Error("rules error", "err", err)
		os.Exit(1)
	}

	remote, err := newClassifier(cfg)
	if err != nil {
		slog.Error("classifier error", "err", err)
		os.Exit(1)
	}

	svc := scan.New(scan.Options{
		Extractor: extract.New(extract.Config{MaxPages: cfg.ExtractMaxPages}),
		Detector: detect.NewEnsemble(detect.Options{
			Remote:     remote,
			RemoteName: cfg.ClassifierKind,
			Rules:      rules,
			Timeout:    cfg.ClassifierTimeout,
			Metrics:    metrics,
		}),
		CacheSize: cfg.CacheMaxEntries,
		MaxBytes:  cfg.MaxUploadBytes,
		Metrics:   metrics,
	})

	empties := submission.NewDedupSet()
	sched := cron.New()
	if _, err := empties.Schedule(sched, cfg.DedupResetSchedule); err != nil {
		slog.Error("dedup schedule error", "err", err)
		os.Exit(1)
	}
	sched.Start()

	handler := api.New(api.Options{
		Service:        svc,
		Bridge:         submission.NewBridge(svc, empties),
		MaxUploadBytes: cfg.MaxUploadBytes,
		Telemetry:      tel,
	})

	mux := http.NewServeMux()
	handler.Register(mux)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Recover(api.Log(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.ClassifierTimeout + 60*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)

		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()

		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
		<-sched.Stop().Done()
		if err := tel.Shutdown(shutCtx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	slog.Info("starting pdfguard",
		"addr", cfg.ListenAddr,
		"classifier", cfg.ClassifierKind,
		"classifierEndpoints", len(cfg.ClassifierURLs),
		"rules", rules.Len(),
		"cacheEntries", cfg.CacheMaxEntries,
		"metrics", cfg.MetricsEnabled,
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	<-done
}

func loadRules(path string) (*detect.Rules, error) {
	if path == "" {
		return detect.DefaultRules()
	}
	slog.Info("loading rule table", "path", path)
	return detect.LoadRulesFile(path)
}

// newClassifier returns nil for ClassifierNone, which leaves detection to
// the local rules.
func newClassifier(cfg *config.Cfg) (detect.Classifier, error) {
	var sgn *signer.Signer
	if cfg.ClassifierSigningKey != "" {
		s, err := signer.New(cfg.ClassifierSigningKey)
		if err != nil {
			return nil, err
		}
		slog.Info("classifier requests will be signed", "address", s.Address())
		sgn = s
	}

	switch cfg.ClassifierKind {
	case config.ClassifierHTTP:
		return httpclassifier.New(httpclassifier.Options{
			URLs:    cfg.ClassifierURLs,
			Timeout: cfg.ClassifierTimeout,
			Signer:  sgn,
		})
	case config.ClassifierLLM:
		return llmclassifier.New(llmclassifier.Options{
			URLs:    cfg.ClassifierURLs,
			Model:   cfg.ClassifierLLMModel,
			Timeout: cfg.ClassifierTimeout,
			Signer:  sgn,
		})
	}
	slog.Warn("no remote classifier configured, using local rules only")
	return nil, nil
}
