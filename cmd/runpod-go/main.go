// Command runpod-go is a reference worker for smoke-testing serverless
// endpoints and templates. It ships two built-in handlers: an echo handler
// that returns the job input unchanged, and a streaming counter that emits
// one partial per requested count.
//
// Subcommands:
//
//	run      — poll the remote queue and execute jobs (production mode)
//	api      — serve the local development API, no queue required
//	version  — print the SDK version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	// Automatically sets GOMEMLIMIT from the cgroup memory limit so that the
	// Go GC triggers before the OOM killer fires in containers.
	_ "github.com/KimMachineGun/automemlimit"

	"github.com/spf13/cobra"

	runpod "github.com/MartinKlefas/runpod-go"
	"github.com/MartinKlefas/runpod-go/internal/config"
	"github.com/MartinKlefas/runpod-go/internal/version"
)

func main() {
	var streaming bool

	root := &cobra.Command{
		Use:   "runpod-go",
		Short: "runpod-go — reference serverless worker",
		// Silence default error printing; we print it ourselves with slog.
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().BoolVar(&streaming, "stream", false,
		"use the built-in streaming counter handler instead of echo")

	root.AddCommand(
		runCmd(&streaming),
		apiCmd(&streaming),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func runCmd(streaming *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the remote queue and execute jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			slog.Info("worker started", "pod_id", cfg.PodID, "version", version.Version)
			return runpod.StartWithConfig(ctx, cfg, handlerSet(*streaming))
		},
	}
}

func apiCmd(streaming *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve the local development API (no queue required)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := setup(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runpod.StartLocal(ctx, handlerSet(*streaming))
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the SDK version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.Version)
		},
	}
}

// setup loads config and installs the process-wide logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(newLogger(cfg))
	return cfg, nil
}

func handlerSet(streaming bool) runpod.HandlerSet {
	if streaming {
		return runpod.HandlerSet{Stream: counterHandler}
	}
	return runpod.HandlerSet{Handler: echoHandler}
}

// echoHandler returns the job input unchanged. Useful for verifying queue
// wiring and result submission end to end.
func echoHandler(_ context.Context, job *runpod.Job) (any, error) {
	var input any
	if err := json.Unmarshal(job.Input, &input); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return input, nil
}

// counterHandler emits {"i": n} partials for n in [0, count), where count is
// read from the job input (default 3).
func counterHandler(ctx context.Context, job *runpod.Job) (<-chan runpod.Partial, error) {
	var input struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(job.Input, &input); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if input.Count <= 0 {
		input.Count = 3
	}

	out := make(chan runpod.Partial)
	go func() {
		defer close(out)
		for i := 0; i < input.Count; i++ {
			select {
			case out <- runpod.Partial{Output: map[string]any{"i": i}}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// newLogger creates a slog.Logger based on the configured log level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
