package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"britearchive/internal/api"
	"britearchive/internal/app"
	"britearchive/internal/config"
	fileutil "britearchive/internal/file"
	"britearchive/internal/run"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := fileutil.EnsureDir(cfg.LogFileDirectory); err != nil {
			return err //nolint:wrapcheck
		}
		a, err := app.Open(cfg)
		if err != nil {
			return err //nolint:wrapcheck
		}
		defer a.Close() //nolint:errcheck

		router := setupRouter()
		runManager := buildRunManager(cfg, a)
		api.NewAPI(runManager, a.Ledger()).RegisterRoutes(router)

		baseCtx, baseCancel := context.WithCancel(context.Background())
		runManager.SetBaseContext(baseCtx)

		srv := newHTTPServer(cfg.Port, router, readHeaderTimeout)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal().Err(err).Msg("http server failed")
			}
		}()
		log.Info().Int("port", cfg.Port).Msg("serving")

		waitForShutdownSignal()
		gracefulShutdown(srv, baseCancel, runManager, shutdownTimeout)
		return nil
	},
}

func setupRouter() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.ZerologLogger())
	return r
}

func buildRunManager(cfg config.Config, a *app.App) *run.Manager {
	m := run.NewManager(run.Options{DataDir: cfg.LogFileDirectory}, a.Execute)
	if err := m.LoadFromDisk(); err != nil {
		log.Warn().Err(err).Msg("load previous runs")
	}
	return m
}

func newHTTPServer(port int, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func waitForShutdownSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
}

func gracefulShutdown(srv *http.Server, cancelBase context.CancelFunc, m *run.Manager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	cancelBase()
	if !m.WaitAll(ctx) {
		log.Warn().Msg("runs did not finish before timeout")
	}
	log.Info().Msg("server exited cleanly")
}
