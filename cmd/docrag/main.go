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
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/docrag"
	"github.com/poiesic/docrag/config"
	"github.com/poiesic/docrag/core"
	"github.com/poiesic/docrag/source"
)

// openAssistant is swapped out in tests.
var openAssistant = docrag.Open

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	topKFlag := &cli.IntFlag{
		Name:    "top-k",
		Aliases: []string{"k"},
		Usage:   "Number of passages to retrieve (defaults to query.top_k)",
	}

	return &cli.App{
		Name:  "docrag",
		Usage: "Answer questions from a directory of documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file (defaults to ./" + config.DefaultConfigFile + " if present)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Build the index from the source directory, or load it if already built",
				Action: buildCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Rebuild even if a valid index is persisted",
					},
					&cli.BoolFlag{
						Name:  "rebuild-on-model-mismatch",
						Usage: "Rebuild instead of failing when the index was built with another embedding model",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Print the passages nearest to a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags:     []cli.Flag{topKFlag},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the indexed documents",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					topKFlag,
					&cli.BoolFlag{
						Name:  "show-context",
						Usage: "Print the retrieved passages after the answer",
					},
				},
			},
			{
				Name:   "inspect",
				Usage:  "Describe the persisted index without loading the embedding model",
				Action: inspectCommand,
			},
			{
				Name:  "config",
				Usage: "Manage the configuration file",
				Subcommands: []*cli.Command{
					{
						Name:   "init",
						Usage:  "Write the default configuration",
						Action: configInitCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "path",
								Usage: "Where to write the file",
								Value: config.DefaultConfigFile,
							},
							&cli.BoolFlag{
								Name:  "force",
								Usage: "Overwrite an existing file",
							},
						},
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func open(ctx context.Context, c *cli.Context, opts ...docrag.Option) (*docrag.Assistant, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	opts = append(opts, docrag.WithProgress(c.App.ErrWriter))
	a, err := openAssistant(ctx, cfg, opts...)
	if errors.Is(err, core.ErrModelMismatch) {
		return nil, fmt.Errorf("%w (run 'docrag build --rebuild-on-model-mismatch' to rebuild)", err)
	}
	return a, err
}

func queryArg(c *cli.Context) (string, error) {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return "", errors.New("query is required")
	}
	return query, nil
}

func topK(c *cli.Context, a *docrag.Assistant) int {
	if c.IsSet("top-k") {
		return c.Int("top-k")
	}
	return a.DefaultTopK()
}

func buildCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	var opts []docrag.Option
	if c.Bool("force") {
		opts = append(opts, docrag.WithForceRebuild())
	}
	if c.Bool("rebuild-on-model-mismatch") {
		opts = append(opts, docrag.WithRebuildOnModelMismatch())
	}

	a, err := open(ctx, c, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	printStats(c, a.Stats())
	return nil
}

func searchCommand(c *cli.Context) error {
	query, err := queryArg(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	a, err := open(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	hits, err := a.Search(ctx, query, topK(c, a))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Found %d hits\n", len(hits))
	for i, hit := range hits {
		fmt.Fprintf(w, "%d: [%0.4f] %s\n", i+1, hit.Distance, describeSource(hit.Metadata))
		fmt.Fprintf(w, "   %s\n", snippet(hit.Text(), 200))
	}
	return nil
}

func askCommand(c *cli.Context) error {
	query, err := queryArg(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()

	a, err := open(ctx, c)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.Ask(ctx, query, topK(c, a))
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintln(w, answer.Text)
	if c.Bool("show-context") && !answer.Sentinel {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for i, hit := range answer.Hits {
			fmt.Fprintf(w, "%d: [%0.4f] %s\n", i+1, hit.Distance, describeSource(hit.Metadata))
		}
	}
	return nil
}

func inspectCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := docrag.OpenStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Load(c.Context)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", store.Location(), err)
	}

	m := snap.Manifest
	sources := make(map[string]struct{})
	for _, rec := range snap.Records {
		if src, ok := rec[core.MetaSource].(string); ok {
			sources[src] = struct{}{}
		}
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Location:   %s\n", store.Location())
	fmt.Fprintf(w, "Build ID:   %s\n", m.BuildID)
	fmt.Fprintf(w, "Created:    %s\n", m.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Model:      %s\n", m.ModelID)
	fmt.Fprintf(w, "Dimension:  %d\n", m.Dimension)
	fmt.Fprintf(w, "Passages:   %d\n", m.Count)
	fmt.Fprintf(w, "Sources:    %d\n", len(sources))
	fmt.Fprintf(w, "Format:     v%d\n", m.Version)
	return nil
}

func configInitCommand(c *cli.Context) error {
	path := c.String("path")
	if err := config.Write(path, config.Default(), c.Bool("force")); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

func printStats(c *cli.Context, stats docrag.Stats) {
	w := c.App.Writer
	fmt.Fprintf(w, "Index %s: %d passages (%s, dim %d) at %s\n",
		stats.Origin, stats.Passages, stats.ModelID, stats.Dimension, stats.Location)
}

func describeSource(meta core.Metadata) string {
	src, _ := meta[core.MetaSource].(string)
	if src == "" {
		src = "unknown source"
	}
	switch {
	case meta[source.MetaPage] != nil:
		return fmt.Sprintf("%s (page %v)", src, meta[source.MetaPage])
	case meta[source.MetaRow] != nil:
		return fmt.Sprintf("%s (row %v)", src, meta[source.MetaRow])
	case meta[source.MetaSheet] != nil:
		return fmt.Sprintf("%s (sheet %v)", src, meta[source.MetaSheet])
	}
	return src
}

func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
