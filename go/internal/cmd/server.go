package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// runAgent starts every component and blocks until SIGINT or SIGTERM.
func runAgent(ctx context.Context, config *Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, config)
	if err != nil {
		return err
	}
	defer services.Close()

	if err := services.Start(ctx); err != nil {
		services.Stop()
		return err
	}
	defer services.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if services.Gateway != nil {
		server := services.Gateway.NewServer()

		g.Go(func() error {
			services.Gateway.Start(gctx)
			return nil
		})

		g.Go(func() error {
			log.Info().Str("addr", server.Addr).Msg("gateway listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("gateway server failed: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			log.Info().Msg("shutting down gateway")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("gateway shutdown failed: %w", err)
			}
			return nil
		})
	} else {
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	}

	log.Info().
		Str("api", config.API.URL).
		Str("dashboard", config.Refresh.Dashboard).
		Bool("nats", services.JetStream != nil).
		Msg("astraea agent running")

	err = g.Wait()
	log.Info().Msg("astraea agent stopped")
	return err
}
