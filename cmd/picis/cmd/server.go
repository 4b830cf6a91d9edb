package cmd

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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/picis-sec/picis/analysis"
	"github.com/picis-sec/picis/api"
	"github.com/picis-sec/picis/approval"
	"github.com/picis-sec/picis/config"
	"github.com/picis-sec/picis/roster"
	"github.com/picis-sec/picis/session"
	"github.com/picis-sec/picis/storage"
	bboltstorage "github.com/picis-sec/picis/storage/bbolt"
	memorystorage "github.com/picis-sec/picis/storage/memory"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the PICIS service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		repo, closeRepo, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer closeRepo()

		directory := roster.New(seedPrincipals(cfg)...)
		engine := approval.NewEngine(
			approval.NewRepositoryStore(repo),
			directory,
			api.NewEntityApplier(repo),
			approval.WithLogger(logger),
		)
		tracker := analysis.NewTracker(analysis.WithLogger(logger))

		manager := session.NewManager(
			session.Config{
				ClientFacingTimeout: cfg.ClientFacingTimeout,
				InternalTimeout:     cfg.InternalTimeout,
				ActionWindow:        cfg.ActionWindow,
			},
			session.NotifierFunc(func(e session.Event, remaining time.Duration) {
				logger.Info("session notice", "event", string(e), "remaining", remaining.String())
			}),
			func(principalID string) {
				logger.Info("session terminated", "principal_id", principalID)
			},
			session.WithLogger(logger),
		)

		opts := []api.Option{
			api.WithLogger(logger),
			api.WithSessionManager(manager),
			api.WithFrontendOrigin(cfg.FrontendOrigin),
			api.WithSessionTTL(cfg.SessionTTL),
		}
		if cfg.GoogleClientID != "" {
			opts = append(opts, api.WithOAuth(api.OAuthConfig{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				CallbackBase: cfg.CallbackBase,
				StateSecret:  []byte(cfg.StateSecret),
			}))
		}
		if cfg.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			if err := client.Ping(cmd.Context()).Err(); err != nil {
				return fmt.Errorf("connecting to redis: %w", err)
			}
			opts = append(opts, api.WithSessionStore(
				api.NewRedisSessionStore(client, cfg.SessionIdleTimeout, logger),
			))
		} else {
			opts = append(opts, api.WithSessionStore(
				api.NewMemorySessionStore(cfg.SessionIdleTimeout),
			))
		}

		a := api.New(repo, engine, directory, tracker, opts...)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Mount("/", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (backend: %s)...\n", cfg.Port, cfg.Backend)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func openRepository(cfg config.Config) (storage.Repository, func(), error) {
	if cfg.Backend == "memory" {
		return memorystorage.NewRepository(), func() {}, nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := bboltstorage.NewRepositoryFromFile(cfg.DataDir+"/picis.db", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return store, func() { store.Close() }, nil
}

// seedPrincipals builds the initial roster from the configured email-to-role
// assignments.
func seedPrincipals(cfg config.Config) []roster.Principal {
	var out []roster.Principal
	i := 0
	for email, role := range cfg.RoleAssignments {
		i++
		r := roster.Role(role)
		if !r.Valid() {
			slog.Warn("skipping invalid role assignment", "email", email, "role", role)
			continue
		}
		out = append(out, roster.Principal{
			ID:     fmt.Sprintf("seed%d", i),
			Email:  email,
			Role:   r,
			Active: true,
		})
	}
	return out
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
