package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/llmgate/gateway/internal/config"
	"github.com/llmgate/gateway/internal/router"
	"github.com/llmgate/gateway/internal/service"
)

func main() {
	env := config.LoadEnv()

	configFile := pflag.StringP("config", "c", env.ConfigFile, "path to the gateway config file")
	pflag.Parse()

	setupLogging(env.LogLevel)

	file, err := config.Load(*configFile)
	if err != nil {
		slog.Error("load config", "file", *configFile, "error", err)
		os.Exit(1)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	registry, err := config.Build(rootCtx, file)
	if err != nil {
		slog.Error("build config", "error", err)
		os.Exit(1)
	}
	defer registry.Close()

	orch := service.NewOrchestrator(env.RequestTimeout, env.MaxTurns)

	var servers []*http.Server
	group, groupCtx := errgroup.WithContext(rootCtx)
	for listener, table := range registry.Listeners {
		srv := &http.Server{
			Addr:         listener,
			Handler:      router.New(table, orch),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: env.RequestTimeout + 30*time.Second,
			IdleTimeout:  120 * time.Second,
		}
		servers = append(servers, srv)
		group.Go(func() error {
			slog.Info("gateway listening", "address", srv.Addr, "paths", len(table.Paths()))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-done:
		slog.Info("shutting down...")
	case <-groupCtx.Done():
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Warn("shutdown error", "address", srv.Addr, "error", err)
		}
	}

	if err := group.Wait(); err != nil {
		slog.Error("listener failed", "error", err)
		os.Exit(1)
	}
	slog.Info("stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
