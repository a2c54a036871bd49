package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/drblury/geobridge"
)

func main() {
	configPath := flag.String("config", os.Getenv("GEOBRIDGE_CONFIG"), "path to a YAML config file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the environment is read")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		slog.Error("geobridge stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	conf, err := geobridge.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	base := slog.New(geobridge.NewSlogHandler(conf.LogLevel, conf.LogFormat, os.Stdout))
	slog.SetDefault(base)
	logger := geobridge.NewSlogServiceLogger(base)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := geobridge.NewGatewayClient(conf, logger.With(geobridge.LogFields{"component": "lookup"}))
	if err != nil {
		return fmt.Errorf("creating lookup client: %w", err)
	}

	svc, err := geobridge.NewService(conf, logger, ctx, geobridge.ServiceDependencies{Resolver: client})
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- svc.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", geobridge.LogFields{"grace_period": conf.ShutdownGracePeriod.String()})
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Router stopped unexpectedly", err, nil)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.ShutdownGracePeriod)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Bridge stopped", nil)
	return nil
}
