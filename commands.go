package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatali-fataliyev/wallet_tracker/api"
	"github.com/fatali-fataliyev/wallet_tracker/internal/budget"
	"github.com/fatali-fataliyev/wallet_tracker/internal/config"
	"github.com/fatali-fataliyev/wallet_tracker/internal/contextutil"
	"github.com/fatali-fataliyev/wallet_tracker/internal/notify"
	"github.com/fatali-fataliyev/wallet_tracker/internal/storage"
	"github.com/fatali-fataliyev/wallet_tracker/logging"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var corsConf = cors.New(cors.Options{
	AllowedOrigins:   []string{"*"},
	AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	AllowedHeaders:   []string{api.UserIDHeader, api.TraceIDHeader, api.OperatorTokenHeader, "Content-Type"},
	ExposedHeaders:   []string{api.TraceIDHeader},
	AllowCredentials: true,
})

type closableStorage interface {
	budget.Storage
	Close() error
}

// openStorage opens the configured storage; SQL storages are migrated on
// open.
func openStorage(ctx context.Context, cfg *config.Config) (budget.Storage, func(), error) {
	var (
		s   closableStorage
		err error
	)
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return storage.NewInMemoryStorage(), func() {}, nil
	case config.DriverSQLite:
		s, err = storage.OpenSQLite(cfg.SQLitePath)
	case config.DriverMySQL:
		s, err = storage.OpenMySQL(ctx, cfg.MySQLDSN())
	default:
		err = fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func openNotifier(cfg *config.Config) (budget.Notifier, func(), error) {
	if cfg.AMQPURL == "" {
		logging.Logger.Info("AMQP_URL not set, notifications are written to the log")
		return notify.NewLogNotifier(logging.Logger), func() {}, nil
	}
	n, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, nil, err
	}
	return n, func() { n.Close() }, nil
}

func openTracker(ctx context.Context) (*budget.BudgetTracker, func(), error) {
	storageInstance, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.StorageDriver, err)
	}

	notifier, closeNotifier, err := openNotifier(cfg)
	if err != nil {
		closeStorage()
		return nil, nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	bt := budget.NewBudgetTracker(storageInstance,
		budget.WithNotifier(notifier),
		budget.WithExpiryNoticeDays(cfg.ExpiryNoticeDays),
	)
	logging.Logger.Infof("using %s storage", bt.StorageType)
	return bt, func() {
		closeNotifier()
		closeStorage()
	}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	bt, closeAll, err := openTracker(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	handlers := api.NewApi(bt, cfg.OperatorToken)
	if cfg.OperatorToken == "" {
		logging.Logger.Info("OPERATOR_TOKEN not set, /api/admin endpoints are disabled")
	}
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.WithTraceID(corsConf.Handler(handlers.Routes())),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Logger.Infof("Starting server on port: %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, closeStorage, err := openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			closeStorage()
			logging.Logger.Infof("%s storage is up to date", cfg.StorageDriver)
			return nil
		},
	}
}

func notifyExpiringCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify-expiring",
		Short: "Send one round of expiring subscription notices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextutil.WithTraceID(cmd.Context(), "")
			bt, closeAll, err := openTracker(ctx)
			if err != nil {
				return err
			}
			defer closeAll()

			sent, err := bt.Subscriptions.NotifyExpiringSubscriptions(ctx)
			if err != nil {
				return err
			}
			logging.Logger.Infof("sent %d expiring subscription notices", sent)
			return nil
		},
	}
}

func monthlyReportsCmd() *cobra.Command {
	var month, year int
	cmd := &cobra.Command{
		Use:   "monthly-reports",
		Short: "Send every user the report of a month (default: previous month)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextutil.WithTraceID(cmd.Context(), "")
			bt, closeAll, err := openTracker(ctx)
			if err != nil {
				return err
			}
			defer closeAll()

			ym := bt.CurrentMonth().Previous()
			if month != 0 || year != 0 {
				if ym, err = budget.NewYearMonth(year, month); err != nil {
					return err
				}
			}
			sent, err := bt.SendMonthlyReports(ctx, ym)
			if err != nil {
				return err
			}
			logging.Logger.Infof("sent %d monthly reports for %s", sent, ym.Name())
			return nil
		},
	}
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12")
	cmd.Flags().IntVar(&year, "year", 0, "year, e.g. 2026")
	return cmd
}
