package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/lot-auction/internal/config"
	"github.com/iliyamo/lot-auction/internal/database"
	"github.com/iliyamo/lot-auction/internal/queue"
	"github.com/iliyamo/lot-auction/internal/repository"
	"github.com/iliyamo/lot-auction/internal/router"
	"github.com/iliyamo/lot-auction/internal/service"
)

const defaultEventsLog = "logs/events.log"

func newServeCmd() *cobra.Command {
	var (
		migrate      bool
		withConsumer bool
		eventsLog    string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := database.Open(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			if migrate {
				if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
					return err
				}
			}

			rdb := config.NewRedisClient(ctx)
			if rdb != nil {
				defer rdb.Close()
			}

			events := service.NewPublisher(cfg.AMQPURL)
			if cfg.AMQPURL != "" && withConsumer {
				go func() {
					if err := queue.StartEventConsumer(ctx, cfg.AMQPURL, eventsLog); err != nil && !errors.Is(err, context.Canceled) {
						slog.Error("event consumer stopped", "err", err)
					}
				}()
			}

			e, err := router.New(router.Deps{
				Cfg:       cfg,
				DB:        db,
				Redis:     rdb,
				Cache:     config.LoadCacheConfig(),
				RateLimit: config.LoadRateLimitConfig(),
				Events:    events,
				Log:       slog.Default(),
			})
			if err != nil {
				return err
			}

			go purgeSessions(ctx, repository.NewSessionRepo(db), time.Hour)

			addr := ":" + cfg.Port
			slog.Info("listening", "addr", addr, "env", cfg.Env, "db", cfg.DBDriver)
			errc := make(chan error, 1)
			go func() {
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	cmd.Flags().BoolVar(&withConsumer, "with-consumer", false, "also run the event consumer in-process")
	cmd.Flags().StringVar(&eventsLog, "events-log", defaultEventsLog, "audit log written by the in-process consumer")
	return cmd
}

// purgeSessions drops expired and revoked sessions every interval.
func purgeSessions(ctx context.Context, sessions *repository.SessionRepo, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := sessions.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				slog.Warn("purge sessions failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("purged sessions", "count", n)
			}
		}
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.Open(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db, cfg.DBDriver); err != nil {
				return err
			}
			n, err := repository.NewLotRepo(db).Count(cmd.Context())
			if err != nil {
				return err
			}
			slog.Info("schema up to date", "driver", cfg.DBDriver, "lots", n)
			return nil
		},
	}
}

func newConsumeCmd() *cobra.Command {
	var eventsLog string
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Append lot events from RabbitMQ to an audit log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Only the broker URL is needed here; database settings may be absent.
			cfg, _ := config.Load()
			if cfg.AMQPURL == "" {
				return errors.New("RABBITMQ_URL or AMQP_URL must be set")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			slog.Info("consuming events", "queue", queue.EventsQueue, "log", eventsLog)
			err := queue.StartEventConsumer(ctx, cfg.AMQPURL, eventsLog)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&eventsLog, "log", defaultEventsLog, "audit log path")
	return cmd
}
