package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mtgalog/mtgalog-go/pkg/mtgalog"
	"github.com/mtgalog/mtgalog-go/pkg/mtgalog/pattern"
)

var (
	// watch flags
	watchLogDir        string
	watchLogFile       string
	watchFromBeginning bool
	watchFormat        string
	watchKinds         []string
	watchExcludeKinds  []string
	watchPatterns      string
	watchEnrichWorkers int
	watchEnrichWait    time.Duration
	watchNoEnrich      bool
	watchStateDB       string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live Arena log and output match events",
	Long: `Follow the MTG Arena Player log in real-time and output classified
match events.

Events are output as JSON Lines by default (one JSON object per line),
which makes it easy to process with tools like jq.

Examples:
  # Follow with default settings (auto-detect log directory)
  mtgalog watch

  # Human-readable output, life changes and zone transfers only
  mtgalog watch --format pretty --kinds life_change,zone_transfer

  # Resume across restarts and cache card lookups
  mtgalog watch --state-db ~/.mtgalog/state.db

  # Reprocess the whole log from the start
  mtgalog watch --from-beginning

  # Pipe to jq for filtering
  mtgalog watch | jq 'select(.annotations[].kind == "combat")'`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchLogDir, "log-dir", "d", "",
		"Arena log directory (auto-detected if not specified)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "",
		"Follow a specific log file instead of the newest Player log")
	watchCmd.Flags().BoolVar(&watchFromBeginning, "from-beginning", false,
		"Read from the start of the log instead of resuming")
	watchCmd.Flags().StringVarP(&watchFormat, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
	watchCmd.Flags().StringSliceVarP(&watchKinds, "kinds", "k", nil,
		"Annotation kinds to show (comma-separated: zone_transfer,life_change,...)")
	watchCmd.Flags().StringSliceVar(&watchExcludeKinds, "exclude-kinds", nil,
		"Annotation kinds to hide (takes precedence over --kinds)")
	watchCmd.Flags().StringVarP(&watchPatterns, "patterns", "p", "",
		"YAML pattern file for classifying outbound business events")
	watchCmd.Flags().IntVar(&watchEnrichWorkers, "enrich-workers", 4,
		"Card lookup worker pool size")
	watchCmd.Flags().DurationVar(&watchEnrichWait, "enrich-wait", 300*time.Millisecond,
		"How long a record waits for card details before degrading")
	watchCmd.Flags().BoolVar(&watchNoEnrich, "no-enrich", false,
		"Disable card-detail enrichment")
	watchCmd.Flags().StringVar(&watchStateDB, "state-db", "",
		"SQLite file for the resume position and card cache")

	rootCmd.AddCommand(watchCmd)
}

// buildOptions translates watch flags into engine options shared by the
// watch and parse commands.
func buildOptions() ([]mtgalog.Option, error) {
	var opts []mtgalog.Option

	if watchLogDir != "" {
		opts = append(opts, mtgalog.WithLogDir(watchLogDir))
	}
	if watchLogFile != "" {
		opts = append(opts, mtgalog.WithLogPath(watchLogFile))
	}
	if watchFromBeginning {
		opts = append(opts, mtgalog.WithFromBeginning(true))
	}
	if watchNoEnrich {
		opts = append(opts, mtgalog.WithEnrichment(false))
	}
	opts = append(opts,
		mtgalog.WithEnrichmentWorkers(watchEnrichWorkers),
		mtgalog.WithEnrichmentWait(watchEnrichWait),
	)
	if watchStateDB != "" {
		opts = append(opts, mtgalog.WithStateDB(watchStateDB))
	}
	if len(watchKinds) > 0 {
		opts = append(opts, mtgalog.WithIncludeKinds(toKinds(watchKinds)...))
	}
	if len(watchExcludeKinds) > 0 {
		opts = append(opts, mtgalog.WithExcludeKinds(toKinds(watchExcludeKinds)...))
	}
	if watchPatterns != "" {
		set, err := pattern.NewSetFromFile(watchPatterns)
		if err != nil {
			return nil, fmt.Errorf("loading pattern file: %w", err)
		}
		opts = append(opts, mtgalog.WithPatterns(set))
	}
	if verbose {
		opts = append(opts, mtgalog.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))))
	}
	return opts, nil
}

func toKinds(names []string) []mtgalog.Kind {
	kinds := make([]mtgalog.Kind, 0, len(names))
	for _, n := range names {
		kinds = append(kinds, mtgalog.Kind(n))
	}
	return kinds
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !ValidFormats[watchFormat] {
		return fmt.Errorf("unknown format: %s", watchFormat)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := buildOptions()
	if err != nil {
		return err
	}

	engine, err := mtgalog.NewEngine(opts...)
	if err != nil {
		return err
	}
	defer engine.Close()

	records, errs, err := engine.Start(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var lastErr error
	for {
		select {
		case rec, ok := <-records:
			if !ok {
				// Channels close on user interrupt (normal exit) or
				// after a fatal tailer error (non-zero exit).
				if ctx.Err() != nil {
					return nil
				}
				return lastErr
			}
			if err := OutputRecord(watchFormat, rec, out); err != nil {
				return fmt.Errorf("output error: %w", err)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			lastErr = err
			if verbose {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}

		case <-ctx.Done():
			// User interrupt is a normal exit.
			return nil
		}
	}
}
