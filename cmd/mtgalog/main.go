// Command mtgalog follows the MTG Arena match log and prints classified
// match events.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "mtgalog",
	Short: "Follow MTG Arena match logs and print match events",
	Long: `mtgalog tails the MTG Arena client's Player log, reconstructs the
request/response frames the client writes, and prints classified match
events: zone transfers, life changes, combat, turn structure, and more.

Card references are resolved against a card-detail API with local
caching. Output order always matches log order; slow lookups degrade to
placeholders instead of stalling the stream.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Print engine diagnostics and non-fatal warnings to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
