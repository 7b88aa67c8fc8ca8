package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/palisade-sh/palisade/internal/app"
	"github.com/palisade-sh/palisade/internal/logger"
	"github.com/palisade-sh/palisade/internal/version"
)

func main() {
	vlog := log.New(log.Writer(), "", 0)
	version.PrintVersionInfo(vlog)
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		os.Exit(0)
	}

	lcfg := &logger.Config{
		Level:      getEnv("FIREWALL_LOG_LEVEL", logger.LogLevelInfo),
		LogDir:     getEnv("FIREWALL_LOG_DIR", "logs"),
		FileOutput: os.Getenv("FIREWALL_LOG_FILE") == "true",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	}
	logInstance, cleanup, err := logger.New(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	slog.SetDefault(logInstance)
	styled := logger.NewPlainStyledLogger(logInstance)

	styled.Info("Initialising", "version", version.Version, "pid", os.Getpid())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		styled.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	application, err := app.New(logInstance, styled)
	if err != nil {
		styled.Error("Failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Start(ctx); err != nil {
		styled.Error("Failed to start application", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()

	if err := application.Stop(context.Background()); err != nil {
		styled.Error("Error during shutdown", "error", err)
	}

	styled.Info("Palisade has shutdown")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
