// Package main is the entry point for the taskctl CLI.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"taskctl/internal/backend/rest"
	"taskctl/internal/cli"
	"taskctl/internal/commands"
	"taskctl/internal/config"
	"taskctl/internal/notify"
	"taskctl/internal/service"
	"taskctl/internal/storage"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	factory := func(ctx context.Context, cfg *config.Config, sink notify.Sink, logger *slog.Logger) (service.Service, error) {
		return rest.New(rest.Options{
			BaseURL:   cfg.APIBaseURL,
			Timeout:   cfg.Timeout,
			UserAgent: "taskctl/" + commands.Version,
			Store:     storage.NewFileStore(cfg.Dir),
			Sink:      sink,
			Logger:    logger,
		}), nil
	}

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}
