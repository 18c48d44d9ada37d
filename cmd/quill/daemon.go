package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Sync all accounts in a loop with configurable interval",
		Long: `Continuously sync every account on a timer. Designed for running
inside a container or as a background service. Handles SIGINT/SIGTERM
for graceful shutdown (finishes the current cycle).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval == 0 {
				interval = time.Duration(cfg.Sync.IntervalMinutes) * time.Minute
			}

			engine, err := openEngine()
			if err != nil {
				return fmt.Errorf("failed to open engine: %w", err)
			}
			defer engine.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

			log.Printf("quill daemon: starting with interval %s", interval)

			cycle := 1
			for {
				start := time.Now()
				log.Printf("quill daemon: cycle %d starting", cycle)

				results, err := engine.SyncAll(ctx)
				if err != nil {
					log.Printf("quill daemon: cycle %d error: %v", cycle, err)
				} else {
					total := 0
					for _, r := range results {
						total += r.NewArticles
					}
					log.Printf("quill daemon: cycle %d completed in %s, %d new articles",
						cycle, time.Since(start).Round(time.Millisecond), total)
				}

				cycle++

				// Wait for the next tick or a shutdown signal.
				timer := time.NewTimer(interval)
				select {
				case <-sig:
					timer.Stop()
					log.Println("quill daemon: received shutdown signal, exiting")
					return nil
				case <-timer.C:
				}
			}
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "duration between sync cycles (default: config interval_minutes)")
	return cmd
}
