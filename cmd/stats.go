package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/troxellophilus/baseball-clerk/internal/config"
	"github.com/troxellophilus/baseball-clerk/internal/datastore"
)

var statsCmd = &cobra.Command{
	Use:   "stats CONFIG",
	Short: "Print ledger table sizes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := datastore.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open datastore: %w", err)
		}
		defer func() { _ = store.Close() }()

		ctx := cmd.Context()
		for _, table := range []string{"event", "comment"} {
			if err := store.EnsureTable(ctx, table); err != nil {
				return err
			}
			n, err := store.Count(ctx, table)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%d\n", table, n)
		}
		return nil
	},
}
