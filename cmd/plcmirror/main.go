/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// plcmirror mirrors the public did:plc directory: it scrapes the
// upstream export stream into SQLite and serves validated DID documents
// and the raw operation log over HTTP.
package main

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

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/trustbloc/plc-go/mirror/importer"
	"github.com/trustbloc/plc-go/mirror/server"
	"github.com/trustbloc/plc-go/mirror/store"
)

type config struct {
	Listen       string
	DBPath       string
	Upstream     string
	PollInterval time.Duration
	PageSize     int
}

// fileConfig is the YAML shape; durations are strings for
// time.ParseDuration.
type fileConfig struct {
	Listen       string `yaml:"listen"`
	DB           string `yaml:"db"`
	Upstream     string `yaml:"upstream"`
	PollInterval string `yaml:"pollInterval"`
	PageSize     int    `yaml:"pageSize"`
}

func defaultConfig() config {
	return config{
		Listen:       ":2586",
		DBPath:       "plcmirror.db",
		Upstream:     "https://plc.directory",
		PollInterval: 30 * time.Second,
		PageSize:     1000,
	}
}

func loadConfig() (config, error) {
	cfg := defaultConfig()

	configPath := pflag.String("config", "", "path to YAML config file")
	listen := pflag.String("listen", cfg.Listen, "HTTP listen address")
	dbPath := pflag.String("db", cfg.DBPath, "SQLite database path")
	upstream := pflag.String("upstream", cfg.Upstream, "upstream directory base URL")
	pollInterval := pflag.Duration("poll-interval", cfg.PollInterval, "export poll interval")
	pageSize := pflag.Int("page-size", cfg.PageSize, "export page size")

	pflag.Parse()

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}

		var fc fileConfig

		if err := yaml.Unmarshal(data, &fc); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}

		if fc.Listen != "" {
			cfg.Listen = fc.Listen
		}

		if fc.DB != "" {
			cfg.DBPath = fc.DB
		}

		if fc.Upstream != "" {
			cfg.Upstream = fc.Upstream
		}

		if fc.PollInterval != "" {
			d, err := time.ParseDuration(fc.PollInterval)
			if err != nil {
				return cfg, fmt.Errorf("parse pollInterval: %w", err)
			}

			cfg.PollInterval = d
		}

		if fc.PageSize > 0 {
			cfg.PageSize = fc.PageSize
		}
	}

	// Flags set explicitly override the config file.
	pflag.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = *listen
		case "db":
			cfg.DBPath = *dbPath
		case "upstream":
			cfg.Upstream = *upstream
		case "poll-interval":
			cfg.PollInterval = *pollInterval
		case "page-size":
			cfg.PageSize = *pageSize
		}
	})

	return cfg, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{Path: cfg.DBPath, Logger: logger})
	if err != nil {
		return err
	}
	defer st.Close()

	im := importer.New(cfg.Upstream, st,
		importer.WithInterval(cfg.PollInterval),
		importer.WithPageSize(cfg.PageSize),
		importer.WithLogger(logger),
	)

	go im.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(st, server.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("mirror listening", "addr", cfg.Listen, "upstream", cfg.Upstream)

		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "plcmirror:", err)
		os.Exit(1)
	}
}
