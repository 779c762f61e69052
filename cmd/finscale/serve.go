package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/finscale/internal/api"
	"github.com/Veraticus/finscale/internal/auth"
	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/config"
	"github.com/Veraticus/finscale/internal/conversation"
	"github.com/Veraticus/finscale/internal/installment"
	"github.com/Veraticus/finscale/internal/recurrence"
	"github.com/Veraticus/finscale/internal/storage"
	"github.com/Veraticus/finscale/internal/telegram"
)

const sessionPurgeInterval = 15 * time.Minute

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the Telegram bot and the recurring charge scheduler",
		Long: `Start every long-running component against one database.

The Telegram bot only starts when telegram.token (FINSCALE_TELEGRAM_TOKEN)
is set. auth.jwt_secret (FINSCALE_AUTH_JWT_SECRET) is always required.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "API listen address (default :3001)")
	cmd.Flags().Bool("no-telegram", false, "Do not start the Telegram bot")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	noTelegram, _ := cmd.Flags().GetBool("no-telegram")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireServerSecrets(); err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	passwords := auth.NewPasswordHasher()
	expander := installment.NewExpander(store)
	processor := recurrence.NewProcessor(store, calendar.SystemClock{})
	scheduler := recurrence.NewScheduler(processor, cfg.Recurrence.Interval, cfg.Recurrence.RunOnStart)

	server, err := api.NewServer(api.Deps{
		Store:     store,
		Expander:  expander,
		Sweeper:   scheduler,
		Tokens:    tokens,
		Passwords: passwords,
	})
	if err != nil {
		return fmt.Errorf("failed to create api server: %w", err)
	}

	common.LogInfo("Starting finscale", common.Fields{
		"version":          version,
		"database":         cfg.Database.Path,
		"addr":             cfg.Server.Addr,
		"session_backend":  cfg.Session.Backend,
		"sweep_interval":   cfg.Recurrence.Interval.String(),
		"telegram_enabled": cfg.Telegram.Token != "" && !noTelegram,
	})

	var (
		bot      *telegram.Bot
		sessions conversation.SessionStore
	)
	if cfg.Telegram.Token == "" || noTelegram {
		slog.Info("Telegram bot disabled")
	} else {
		sessions = newSessionStore(cfg, store)
		if memory, ok := sessions.(*conversation.MemorySessionStore); ok {
			defer memory.Stop()
		}

		machine, err := conversation.NewMachine(conversation.Deps{
			Store:     store,
			Sessions:  sessions,
			Expander:  expander,
			Sweeper:   scheduler,
			Passwords: passwords,
			Clock:     calendar.SystemClock{},
		})
		if err != nil {
			return fmt.Errorf("failed to create conversation machine: %w", err)
		}

		bot, err = telegram.Connect(cfg.Telegram.Token, cfg.Telegram.Debug, machine,
			telegram.WithPollTimeout(cfg.Telegram.Timeout))
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
	})

	if bot != nil {
		g.Go(func() error {
			return bot.Run(gctx)
		})
	}

	if purger, ok := sessions.(*conversation.SQLiteSessionStore); ok {
		g.Go(func() error {
			purgeSessions(gctx, purger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}

// newSessionStore builds the configured session backend.
func newSessionStore(cfg *config.Config, store *storage.SQLiteStorage) conversation.SessionStore {
	if cfg.Session.Backend == config.SessionBackendSQLite {
		return conversation.NewSQLiteSessionStore(store.DB(), cfg.Session.MaxAge)
	}
	return conversation.NewMemorySessionStore(cfg.Session.MaxAge)
}

// purgeSessions deletes expired SQLite sessions until ctx is cancelled.
func purgeSessions(ctx context.Context, sessions *conversation.SQLiteSessionStore) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := sessions.PurgeExpired(ctx)
			if err != nil {
				slog.Warn("Failed to purge expired sessions", "error", err)
				continue
			}
			if purged > 0 {
				slog.Debug("Purged expired sessions", "count", purged)
			}
		}
	}
}
