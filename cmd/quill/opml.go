package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func opmlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opml",
		Short: "Import or export subscriptions as OPML",
	}
	cmd.AddCommand(opmlImportCmd())
	cmd.AddCommand(opmlExportCmd())
	return cmd
}

func opmlImportCmd() *cobra.Command {
	var accountID int64

	cmd := &cobra.Command{
		Use:   "import <opml-file>",
		Short: "Import groups and feeds from an OPML file",
		Long: `Import subscriptions into an account. Already-subscribed feed URLs
are skipped. When the import adds feeds, one sync pass runs so the new
subscriptions fill immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return fmt.Errorf("failed to open engine: %w", err)
			}
			defer engine.Close()

			res, err := engine.ImportOPML(context.Background(), accountID, args[0])
			if err != nil {
				return fmt.Errorf("failed to import OPML: %w", err)
			}
			return formatter().OutputImportResult(res)
		},
	}
	cmd.Flags().Int64VarP(&accountID, "account", "a", 1, "account id")
	return cmd
}

func opmlExportCmd() *cobra.Command {
	var accountID int64
	var withInfo bool

	cmd := &cobra.Command{
		Use:   "export <opml-file>",
		Short: "Export an account's subscriptions to an OPML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return fmt.Errorf("failed to open engine: %w", err)
			}
			defer engine.Close()

			if err := engine.ExportOPML(accountID, args[0], withInfo); err != nil {
				return fmt.Errorf("failed to export OPML: %w", err)
			}
			fmt.Printf("Exported subscriptions to %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().Int64VarP(&accountID, "account", "a", 1, "account id")
	cmd.Flags().BoolVar(&withInfo, "with-info", false, "attach per-feed option attributes and the default-group marker")
	return cmd
}
