package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	quill "github.com/awalters/quill"
)

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage sync accounts",
	}
	cmd.AddCommand(accountAddCmd())
	cmd.AddCommand(accountListCmd())
	cmd.AddCommand(accountRemoveCmd())
	return cmd
}

func accountAddCmd() *cobra.Command {
	var opts quill.AccountOptions

	cmd := &cobra.Command{
		Use:   "add <type>",
		Short: "Add an account (local, greader or miniflux)",
		Long: `Add a sync account. Local accounts crawl their feeds directly;
greader and miniflux accounts mirror a Google-Reader-compatible server
and need --endpoint, --username and --password. Cloud credentials are
verified immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Type = args[0]
			if opts.MaxPastDays == 0 {
				opts.MaxPastDays = cfg.Sync.MaxPastDays
			}
			if !cmd.Flags().Changed("full-content") {
				opts.FullContent = cfg.Sync.FullContent
			}

			engine, err := openEngine()
			if err != nil {
				return fmt.Errorf("failed to open engine: %w", err)
			}
			defer engine.Close()

			account, err := engine.AddAccount(context.Background(), opts)
			if err != nil {
				return fmt.Errorf("failed to add account: %w", err)
			}
			fmt.Printf("Added %s account %d\n", account.Type, account.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Endpoint, "endpoint", "e", "", "server endpoint for cloud accounts")
	cmd.Flags().StringVarP(&opts.Username, "username", "u", "", "username for cloud accounts")
	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "password for cloud accounts")
	cmd.Flags().IntVar(&opts.SyncInterval, "interval", 0, "per-account sync interval in minutes")
	cmd.Flags().IntVar(&opts.MaxPastDays, "max-past-days", 0, "article retention window in days")
	cmd.Flags().BoolVar(&opts.FullContent, "full-content", false, "extract readable full content for new articles")
	cmd.Flags().BoolVar(&opts.WifiOnly, "wifi-only", false, "only sync on wifi")
	cmd.Flags().BoolVar(&opts.ChargingOnly, "charging-only", false, "only sync while charging")
	return cmd
}

func accountListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return fmt.Errorf("failed to open engine: %w", err)
			}
			defer engine.Close()

			accounts, err := engine.Accounts()
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}
			return formatter().OutputAccountList(accounts)
		},
	}
}

func accountRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an account and all its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid account id %q", args[0])
			}

			engine, err := openEngine()
			if err != nil {
				return fmt.Errorf("failed to open engine: %w", err)
			}
			defer engine.Close()

			if err := engine.RemoveAccount(id); err != nil {
				return fmt.Errorf("failed to remove account: %w", err)
			}
			fmt.Printf("Removed account %d\n", id)
			return nil
		},
	}
}
