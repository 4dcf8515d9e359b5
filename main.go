package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "digestbot",
		Short:   "Daily activity digest bot for Trello and GitHub",
		Version: Version,
	}

	rootCmd.AddCommand(digestCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scheduleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func digestCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Run one digest pass and publish it to the board",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := LoadConfig()
			result, err := RunDigest(cfg, dryRun)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Printf("Title: %s\nDue: %s\n\n%s\n", result.Title, result.Due, result.Report)
			} else {
				fmt.Printf("Published digest card %s (%s)\n", result.CardID, result.Title)
			}
			for _, w := range result.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the composed report, title and due date instead of publishing")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the fetch/normalize passes as HTTP proxy endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := LoadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			return StartServer(cfg)
		},
	}
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the digest on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := LoadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.DigestSchedule == "" {
				return fmt.Errorf("digest_schedule is not configured")
			}
			log.Println("Starting digest scheduler...")
			StartDigestScheduler(cfg)
			select {}
		},
	}
}
