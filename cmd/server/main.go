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

	"volleyref-backend/app"
	"volleyref-backend/config"
	"volleyref-backend/handlers"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load .env from the working directory or the project root
	if !config.LoadDotEnv() {
		fmt.Fprintln(os.Stderr, "Warning: No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := config.InitLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logger.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatalw("failed to initialize application", "error", err.Error())
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	router := handlers.Router{
		Rules:    handlers.NewRuleHandler(a.Rules),
		Training: handlers.NewTrainingHandler(a.Evaluations, a.Questions, a.Tutor),
		Practice: handlers.NewPracticeHandler(a.Practice),
		Gatherer: prometheus.DefaultGatherer,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infow("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("failed to start server", "error", err.Error())
		}
	}()

	<-ctx.Done()
	logger.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("server shutdown failed", "error", err.Error())
	}
}
