package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mtgalog/mtgalog-go/pkg/mtgalog"
	"github.com/mtgalog/mtgalog-go/pkg/mtgalog/pattern"
)

var (
	parseFormat       string
	parseKinds        []string
	parseExcludeKinds []string
	parsePatterns     string
)

var parseCmd = &cobra.Command{
	Use:   "parse <logfile>",
	Short: "Parse a complete Arena log file and output its match events",
	Long: `Parse an existing MTG Arena Player log from start to finish and output
every classified match event.

Unlike watch, parse does not follow the file and does not look up card
details; it is a one-shot replay useful for inspecting past matches.

Examples:
  # Parse a log file
  mtgalog parse Player.log

  # Human-readable dump of combat and life changes
  mtgalog parse --format pretty --kinds combat,life_change Player-prev.log`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
	parseCmd.Flags().StringSliceVarP(&parseKinds, "kinds", "k", nil,
		"Annotation kinds to show (comma-separated)")
	parseCmd.Flags().StringSliceVar(&parseExcludeKinds, "exclude-kinds", nil,
		"Annotation kinds to hide (takes precedence over --kinds)")
	parseCmd.Flags().StringVarP(&parsePatterns, "patterns", "p", "",
		"YAML pattern file for classifying outbound business events")

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	if !ValidFormats[parseFormat] {
		return fmt.Errorf("unknown format: %s", parseFormat)
	}

	var opts []mtgalog.Option
	if len(parseKinds) > 0 {
		opts = append(opts, mtgalog.WithIncludeKinds(toKinds(parseKinds)...))
	}
	if len(parseExcludeKinds) > 0 {
		opts = append(opts, mtgalog.WithExcludeKinds(toKinds(parseExcludeKinds)...))
	}
	if parsePatterns != "" {
		set, err := pattern.NewSetFromFile(parsePatterns)
		if err != nil {
			return fmt.Errorf("loading pattern file: %w", err)
		}
		opts = append(opts, mtgalog.WithPatterns(set))
	}

	records, err := mtgalog.ParseFile(cmd.Context(), args[0], opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, rec := range records {
		if err := OutputRecord(parseFormat, rec, out); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}
	return nil
}
