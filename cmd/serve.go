package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

func newServeCmd(env *runtimeEnv) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the verification and webhook HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				env.cfg.Server.Address = addr
			}
			return runServe(cmd.Context(), env)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP network address (overrides server.address)")
	return cmd
}

func runServe(parent context.Context, env *runtimeEnv) error {
	cfg, logger := env.cfg, env.logger
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		return err
	}
	defer db.Close()
	logger.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	var rdb redis.UniversalClient
	if client := openRedis(ctx, cfg, logger); client != nil {
		rdb = client
		defer client.Close()
	}

	app, err := initializeApp(ctx, cfg, db, rdb, logger)
	if err != nil {
		return err
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001", "http://localhost:5173", "http://localhost:5174"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		ErrorLog:     errorLogBridge(logger),
		Handler:      addSecurityHeaders(c.Handler(app.routes())),
		IdleTimeout:  time.Minute,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
