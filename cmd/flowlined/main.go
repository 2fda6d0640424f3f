// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command flowlined is the workflow engine daemon: it serves the HTTP API
// and drives workflow runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowline/flowline/internal/api"
	"github.com/flowline/flowline/internal/config"
	"github.com/flowline/flowline/internal/engine"
	"github.com/flowline/flowline/internal/expression"
	"github.com/flowline/flowline/internal/llm"
	"github.com/flowline/flowline/internal/log"
	"github.com/flowline/flowline/internal/metrics"
	"github.com/flowline/flowline/internal/store"
	"github.com/flowline/flowline/internal/store/memory"
	"github.com/flowline/flowline/internal/store/sqlite"
	"github.com/flowline/flowline/internal/trigger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "flowlined: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to YAML config file")
		addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger := log.New(log.FromEnv())

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := llm.Resolve(ctx, cfg.AnthropicAPIKey, st)
	if _, mock := provider.(*llm.Mock); mock {
		logger.Info("no provider credential configured, using mock mode")
	} else if cfg.AnthropicAPIKey != "" {
		logger.Info("live provider configured",
			slog.String("api_key", log.SanitizeAPIKey(cfg.AnthropicAPIKey)))
	}

	m := metrics.New()
	eng := engine.New(engine.Config{
		Store:      st,
		Provider:   provider,
		Sandbox:    expression.New(cfg.SandboxTimeout),
		Logger:     logger,
		Metrics:    m,
		RunTimeout: cfg.RunTimeout,
	})
	gateway := trigger.NewGateway(st, eng, logger)

	server := api.NewServer(api.Config{
		Store:        st,
		Engine:       eng,
		Gateway:      gateway,
		Metrics:      m,
		Logger:       logger,
		WebhookRate:  cfg.WebhookRate,
		WebhookBurst: cfg.WebhookBurst,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("daemon listening", slog.String("addr", cfg.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		return memory.New(), nil
	}
	return sqlite.New(sqlite.Config{Path: cfg.DatabaseURL, WAL: true})
}
