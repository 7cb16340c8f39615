package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/c360studio/nomadplan/config"
	"github.com/c360studio/nomadplan/events"
	"github.com/c360studio/nomadplan/metrics"
	"github.com/c360studio/nomadplan/planner"
	"github.com/c360studio/nomadplan/tripapi"
	"github.com/c360studio/nomadplan/weather"
)

func planCmd(a *app) *cobra.Command {
	var chat bool

	cmd := &cobra.Command{
		Use:   "plan <text>",
		Short: "Plan a trip and print the session as JSON",
		Long: `plan sends the request to the intent and itinerary services at
service.base_url and prints the resulting session. With --chat, each line
read from stdin is sent as a chat message and the assistant's reply is
printed; the final session is printed at end of input.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			orch, closeFn, err := newOrchestrator(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer closeFn()

			return runSession(ctx, orch, strings.Join(args, " "), chat, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&chat, "chat", false, "Read chat messages from stdin after planning")
	return cmd
}

// newOrchestrator wires a session to the configured services. The returned
// func logs the session counters and releases the event connection.
func newOrchestrator(cfg *config.Config, logger *slog.Logger) (*planner.Orchestrator, func(), error) {
	svc := tripapi.NewClient(cfg.Service.BaseURL,
		tripapi.WithTimeout(cfg.Service.Timeout),
		tripapi.WithLogger(logger),
	)

	registry := prometheus.NewRegistry()
	opts := []planner.Option{
		planner.WithLogger(logger),
		planner.WithMetrics(metrics.New(registry)),
	}
	if cfg.Service.SerialChat {
		opts = append(opts, planner.WithSerialChat())
	}
	if !cfg.Weather.Disabled {
		opts = append(opts, planner.WithForecaster(weather.NewClient(
			weather.WithEndpoints(cfg.Weather.GeocodeURL, cfg.Weather.ForecastURL),
			weather.WithCacheTTL(cfg.Weather.CacheTTL),
			weather.WithLogger(logger),
		)))
	}
	if !cfg.Geocode.Disabled {
		opts = append(opts, planner.WithLocator(newGeocoder(cfg, logger)))
	}

	closeFn := func() { logSessionMetrics(logger, registry) }
	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.Name,
			events.WithSubjectPrefix(cfg.NATS.SubjectPrefix),
			events.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, planner.WithPublisher(pub))
		closeFn = func() {
			logSessionMetrics(logger, registry)
			if err := pub.Close(); err != nil {
				logger.Warn("Failed to close event publisher", "error", err)
			}
		}
	}

	return planner.New(svc, opts...), closeFn, nil
}

// runSession plans text, prints the snapshot, then optionally relays chat
// lines from in until EOF.
func runSession(ctx context.Context, orch *planner.Orchestrator, text string, chat bool, in io.Reader, out io.Writer) error {
	if err := orch.Plan(ctx, text); err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	if err := writeIndented(out, orch.Snapshot()); err != nil {
		return err
	}
	if !chat {
		return nil
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := orch.SendChat(ctx, line); err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		if reply, ok := lastAssistantMessage(orch.Snapshot()); ok {
			fmt.Fprintf(out, "assistant: %s\n", reply)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read chat input: %w", err)
	}

	return writeIndented(out, orch.Snapshot())
}

func lastAssistantMessage(snap planner.Snapshot) (string, bool) {
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		if snap.Messages[i].Role == planner.RoleAssistant {
			return snap.Messages[i].Content, true
		}
	}
	return "", false
}

// logSessionMetrics logs every counter recorded during the session.
func logSessionMetrics(logger *slog.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		logger.Warn("Failed to gather session metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			attrs := []any{"metric", mf.GetName(), "value", m.GetCounter().GetValue()}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			logger.Info("Session metric", attrs...)
		}
	}
}
