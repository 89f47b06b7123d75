package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "baseball-clerk CONFIG",
	Short: "Live baseball updates for Reddit game threads",
	Long: `BaseballClerk polls live game data and posts play-by-play
commentary to subreddit game threads, deduplicated across runs.
CONFIG is the path to a local JSON configuration file.`,
	Args: cobra.ExactArgs(1),
	RunE: runClerk,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
