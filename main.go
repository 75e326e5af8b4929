package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatali-fataliyev/wallet_tracker/internal/config"
	"github.com/fatali-fataliyev/wallet_tracker/logging"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "wallet_tracker",
	Short: "Wallet ledger and budget analytics service",
	Long: `wallet_tracker keeps one wallet per user, records income and expenses
against it, and reports category totals, budgets and subscriptions.

Without a subcommand it starts the HTTP server.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	RunE:              runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(notifyExpiringCmd())
	rootCmd.AddCommand(monthlyReportsCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	cfg = config.Load()
	if err := logging.Init(cfg.LogLevel, cfg.AppEnv, cfg.LogDir); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.Logger.Info("application starting...")
	return nil
}
