// Package main provides the nomadplan binary entry point.
// nomadplan turns a free-text trip request into a day-by-day itinerary and
// lets the traveller refine it through chat.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/c360studio/nomadplan/llm/providers"

	"github.com/c360studio/nomadplan/config"
	"github.com/c360studio/nomadplan/intent"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "nomadplan"
)

// envFiles are loaded in order; a variable already set is never overridden.
var envFiles = []string{".env.local", ".env"}

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root has run.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "AI trip planner",
		Long: `nomadplan extracts a structured trip intent from a free-text request,
generates a day-by-day itinerary, and applies chat edits to it.

Commands:
- serve: run the intent, itinerary, chat and geocode HTTP services
- plan: plan a trip against those services and optionally chat about it
- extract: run the offline heuristic intent extractor`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(a), planCmd(a), extractCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// setup configures logging, loads .env files and resolves configuration.
func (a *app) setup(cmd *cobra.Command) error {
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLogLevel(a.logLevel)}))
	slog.SetDefault(a.logger)

	loadEnvFiles(a.logger, envFiles...)

	cfg, err := config.NewLoader(a.logger).Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadEnvFiles(logger *slog.Logger, files ...string) {
	for _, f := range files {
		err := godotenv.Load(f)
		switch {
		case err == nil:
			logger.Debug("Loaded environment file", "path", f)
		case errors.Is(err, fs.ErrNotExist):
		default:
			logger.Warn("Failed to load environment file", "path", f, "error", err)
		}
	}
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <text>",
		Short: "Extract a trip intent offline with the heuristic extractor",
		Args:  cobra.MinimumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeIndented(cmd.OutOrStdout(), intent.ExtractFallback(strings.Join(args, " ")))
		},
	}
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
