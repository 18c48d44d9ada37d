package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	quill "github.com/awalters/quill"
)

func syncCmd() *cobra.Command {
	var accountID int64
	var wait bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one account or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return fmt.Errorf("failed to open engine: %w", err)
			}
			defer engine.Close()

			ctx := context.Background()
			var results []quill.SyncResult
			if accountID > 0 {
				res, err := engine.SyncAccount(ctx, accountID)
				if err != nil {
					return fmt.Errorf("sync failed: %w", err)
				}
				results = []quill.SyncResult{*res}
			} else {
				results, err = engine.SyncAll(ctx)
				if err != nil {
					return fmt.Errorf("sync failed: %w", err)
				}
			}

			if wait {
				engine.WaitContent()
			}
			return formatter().OutputSyncResults(results)
		},
	}

	cmd.Flags().Int64VarP(&accountID, "account", "a", 0, "sync only this account id")
	cmd.Flags().BoolVar(&wait, "wait-content", false, "wait for full-content extraction to finish before exiting")
	return cmd
}
