// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/machinerag"
	"github.com/poiesic/machinerag/config"
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/ingestion"
	"github.com/poiesic/machinerag/search"
	"github.com/poiesic/machinerag/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "machinerag",
		Usage: "Ask questions about industrial machines, their documents and live data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "machinerag.yaml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file before reading configuration",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format (text, json)",
				Value: "text",
			},
		},
		Before: func(c *cli.Context) error {
			if err := loadEnv(c); err != nil {
				return err
			}
			return setupLogger(c)
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest property graph files, PDFs, directories or URLs",
				ArgsUsage: "<path|url>...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N sources",
						Value: 1,
					},
					&cli.BoolFlag{
						Name:  "quiet",
						Usage: "Do not print progress",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question, plot a metric or list alerts",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "turn",
						Usage: "Earlier conversation turn as role:content, oldest first (repeatable)",
					},
					&cli.StringFlag{
						Name:  "machine",
						Usage: "Restrict retrieval to records of this machine id",
					},
				},
			},
			{
				Name:  "series",
				Usage: "Manage time-series readings",
				Subcommands: []*cli.Command{
					{
						Name:      "load",
						Usage:     "Load readings from a CSV file (entity_id,attribute,observed_at,value)",
						ArgsUsage: "<file.csv>",
						Action:    seriesLoadCommand,
					},
				},
			},
			{
				Name:      "alerts",
				Usage:     "List active alerts for an asset",
				ArgsUsage: "<asset-ref>",
				Action:    alertsCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show stored record and sample counts",
				Action: statsCommand,
			},
		},
	}
}

func loadEnv(c *cli.Context) error {
	path := c.String("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := c.String("log-level")
	var level slog.Level

	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(c.String("log-format")) {
	case "text":
		handler = slog.NewTextHandler(c.App.ErrWriter, opts)
	case "json":
		handler = slog.NewJSONHandler(c.App.ErrWriter, opts)
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.String("log-format"))
	}
	slog.SetDefault(slog.New(handler))

	return nil
}

func openEngine(c *cli.Context) (*machinerag.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	engine, err := machinerag.NewEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one source is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var opts []ingestion.Option
	var tracker *ingestion.ProgressTracker
	if !c.Bool("quiet") {
		tracker = ingestion.NewProgressTracker(c.App.ErrWriter, c.Int("report-interval"))
		opts = append(opts, ingestion.WithProgress(tracker))
	}

	pipeline, err := engine.NewIngestionPipeline(opts...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	if tracker != nil {
		tracker.Start()
	}
	result, err := pipeline.Ingest(c.Context, c.Args().Slice()...)
	if tracker != nil {
		tracker.Finish()
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Uploaded: %d\n", result.Uploaded)
	fmt.Fprintf(out, "Skipped:  %d\n", result.Skipped)
	fmt.Fprintf(out, "Failed:   %d\n", result.Failed)
	if result.Errors != nil {
		for _, line := range strings.Split(result.Errors.Error(), "\n") {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	return nil
}

// parseTurn reads a "role:content" flag value.
func parseTurn(s string) (core.ChatTurn, error) {
	role, content, ok := strings.Cut(s, ":")
	if !ok {
		return core.ChatTurn{}, fmt.Errorf("invalid turn %q: expected role:content", s)
	}
	turn := core.ChatTurn{Role: core.Role(strings.ToLower(strings.TrimSpace(role))), Content: strings.TrimSpace(content)}
	if err := core.ValidateChatTurn(turn); err != nil {
		return core.ChatTurn{}, fmt.Errorf("invalid turn %q: %w", s, err)
	}
	return turn, nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	var turns []core.ChatTurn
	for _, raw := range c.StringSlice("turn") {
		turn, err := parseTurn(raw)
		if err != nil {
			return err
		}
		turns = append(turns, turn)
	}
	turns = append(turns, core.ChatTurn{Role: core.RoleUser, Content: question})

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var retrieverOpts []search.Option
	if machine := c.String("machine"); machine != "" {
		retrieverOpts = append(retrieverOpts, search.WithFilter(storage.Filter{core.LabelMachineID: machine}))
	}
	orchestrator, err := engine.NewOrchestrator(retrieverOpts)
	if err != nil {
		return err
	}

	result, err := orchestrator.Answer(c.Context, turns)
	if err != nil {
		return err
	}
	printResult(c.App.Writer, result)
	return nil
}

func printResult(w io.Writer, r core.QueryResult) {
	switch r.Kind {
	case core.ResultSeries:
		fmt.Fprintf(w, "Series %s %s from %s to %s\n", r.AssetRef, r.Metric,
			r.From.Format(time.RFC3339), r.To.Format(time.RFC3339))
		if r.NoData {
			fmt.Fprintln(w, "No data")
			return
		}
		fmt.Fprintf(w, "Count: %d  Min: %g  Max: %g\n", r.Stats.Count, r.Stats.Min, r.Stats.Max)
		for _, p := range r.Points {
			fmt.Fprintf(w, "%s\t%g\n", p.Timestamp.Format(time.RFC3339), p.Value)
		}
		if r.Truncated {
			fmt.Fprintf(w, "(showing the newest %d of %d readings)\n", len(r.Points), r.Stats.Count)
		}
	case core.ResultAlerts:
		printAlerts(w, r.AssetRef, r.Alerts)
	default:
		fmt.Fprintln(w, r.Text)
		if len(r.Sources) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Sources:")
			for _, s := range r.Sources {
				fmt.Fprintf(w, "%s %s (%.3f)\n", s.Marker, s.ID, s.Score)
			}
		}
	}
}

func printAlerts(w io.Writer, assetRef string, alerts []core.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintf(w, "No alerts for %s\n", assetRef)
		return
	}
	fmt.Fprintf(w, "Alerts for %s:\n", assetRef)
	for _, a := range alerts {
		fmt.Fprintf(w, "- [%s] %s %s: %s\n", a.Severity, a.Event, a.Status, a.Text)
	}
}

func seriesLoadCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one CSV file is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	store := engine.SeriesStore()
	if store == nil {
		return errors.New("no time-series store configured (set timeseries.path)")
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	n, err := store.LoadCSV(c.Context, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Loaded %d readings\n", n)
	return nil
}

func alertsCommand(c *cli.Context) error {
	assetRef := strings.TrimSpace(c.Args().First())
	if assetRef == "" {
		return errors.New("an asset reference is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	resolver := engine.AlertResolver()
	if resolver == nil {
		return errors.New("no alert service configured (set alerts.base_url)")
	}
	alerts, err := resolver.Fetch(c.Context, assetRef)
	if err != nil {
		return err
	}
	printAlerts(c.App.Writer, assetRef, alerts)
	return nil
}

func statsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	st, err := engine.Stats(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Collection: %s\n", st.Collection)
	fmt.Fprintf(c.App.Writer, "Records:    %d\n", st.Records)
	if st.Samples >= 0 {
		fmt.Fprintf(c.App.Writer, "Samples:    %d\n", st.Samples)
	}
	return nil
}
