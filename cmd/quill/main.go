package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	quill "github.com/awalters/quill"
	"github.com/awalters/quill/internal/config"
	"github.com/awalters/quill/internal/output"
)

var (
	configPath   string
	cfg          *config.Config
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quill",
		Short: "Multi-backend feed sync engine - local RSS crawling plus Google-Reader-compatible cloud accounts",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "human", "output format: json, text, human")

	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(articlesCmd())
	rootCmd.AddCommand(opmlCmd())
	rootCmd.AddCommand(daemonCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	if configPath == "" {
		configPath = "./config/config.yaml"
	}
	var err error
	cfg, err = config.Load(configPath)
	return err
}

func openEngine() (*quill.Engine, error) {
	return quill.New(quill.Config{
		DBPath:      cfg.Database.Path,
		HTTPTimeout: cfg.HTTPTimeout(),
		Concurrency: cfg.Sync.Concurrency,
	})
}

func formatter() *output.Formatter {
	return output.NewFormatter(output.Format(outputFormat))
}
