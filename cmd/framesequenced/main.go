package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/e7canasta/framesequence/internal/config"
	"github.com/e7canasta/framesequence/internal/metrics"
	"github.com/e7canasta/framesequence/internal/report"
	"github.com/e7canasta/framesequence/internal/service"
	"github.com/e7canasta/framesequence/internal/tracker"
)

const defaultConfigPath = "config/framesequence.yaml"

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	scriptPath := flag.String("script", "", "Replay script to run at startup (overrides replay.script)")
	once := flag.Bool("once", false, "Replay the script, print a summary and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "framesequenced: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if *scriptPath != "" {
		cfg.Replay.Script = *scriptPath
	}

	slog.SetDefault(newLogger(cfg.Log))

	if *once {
		if err := runOnce(cfg); err != nil {
			slog.Error("replay failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(cfg, *configPath); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func serve(cfg *config.Config, configPath string) error {
	svc := service.New(cfg)
	slog.Info("starting framesequenced",
		"config", configPath,
		"session_id", svc.SessionID(),
		"log_level", cfg.Log.Level,
	)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := svc.StartHealthServer(cfg.HTTP.Port); err != nil {
		slog.Error("failed to start health check server", "error", err)
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- svc.Run(ctx) // Always send, even if nil
	}()

	if cfg.Replay.Script != "" {
		if err := replayScript(ctx, svc, cfg.Replay.Script); err != nil {
			slog.Error("startup replay failed", "script", cfg.Replay.Script, "error", err)
		}
	}

	// Wait for shutdown signal or error
	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	case runErr = <-errChan:
		if runErr != nil {
			slog.Error("service error", "error", runErr)
		}
	}

	shutdownTimeout := svc.ShutdownTimeout()
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		return err
	}

	slog.Info("framesequenced stopped successfully")
	return runErr
}

func replayScript(ctx context.Context, svc *service.Service, path string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	resp, err := svc.Do(reqCtx, service.Command{
		Command: "replay",
		Params:  map[string]interface{}{"script": string(script)},
	})
	if err != nil {
		return err
	}
	if resp.Status != "success" {
		return fmt.Errorf("%s", resp.Error)
	}
	slog.Info("startup replay finished", "script", path, "steps", resp.Data["steps"])
	return nil
}

// summary is what -once prints.
type summary struct {
	SessionID  string                         `json:"session_id"`
	Script     string                         `json:"script"`
	Trackers   tracker.Stats                  `json:"trackers"`
	Histograms map[string][]report.Bucket     `json:"histograms"`
	Custom     map[int]metrics.ThroughputData `json:"custom,omitempty"`
}

// runOnce replays the configured script offline and prints what was reported.
func runOnce(cfg *config.Config) error {
	if cfg.Replay.Script == "" {
		return fmt.Errorf("-once needs a script (-script or replay.script)")
	}
	// Offline: no broker, no control plane.
	cfg.MQTT.Broker = ""

	svc := service.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() { errChan <- svc.Run(ctx) }()

	replayErr := replayScript(ctx, svc, cfg.Replay.Script)
	cancel()
	if err := <-errChan; err != nil {
		return err
	}
	if replayErr != nil {
		return replayErr
	}

	rec := svc.Recorder()
	out := summary{
		SessionID:  svc.SessionID(),
		Script:     cfg.Replay.Script,
		Trackers:   svc.Status().Trackers,
		Histograms: rec.Snapshot(),
		Custom:     rec.CustomResults(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
