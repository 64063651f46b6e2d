// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/go-a2a/paytask/auth"
	"github.com/go-a2a/paytask/client"
	"github.com/go-a2a/paytask/config"
	"github.com/go-a2a/paytask/ledger"
	"github.com/go-a2a/paytask/server/processor"
	"github.com/go-a2a/paytask/server/task"
)

// app holds the components built from the configuration.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     task.TaskStore
	processor *processor.Processor
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// newApp loads the configuration and opens the store and ledger. Only the
// migrate command creates the SQLite schema.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)

	store, err := openStore(cmd.Context(), cfg.Store, cmd.Name() == "migrate")
	if err != nil {
		return nil, err
	}
	l, err := newLedger(cfg.Ledger, log)
	if err != nil {
		store.Close(cmd.Context())
		return nil, err
	}

	opts := []processor.Option{
		processor.WithThreshold(cfg.Processor.Threshold),
		processor.WithDelegationTimeout(cfg.Processor.DelegationTimeout),
		processor.WithClientOptions(
			client.WithLogger(log),
			client.WithInterceptors(
				client.UserAgentInterceptor("paytaskd/"+Version),
				client.RetryInterceptor(client.DefaultRetryPolicy()),
				client.LoggingInterceptor(log),
			),
		),
		processor.WithLogger(log),
	}
	if mandates := cfg.Mandates(); mandates != nil {
		opts = append(opts, processor.WithMandates(mandates))
	}

	log.Debug("components ready", "store", cfg.Store.Driver, "ledger", cfg.Ledger.Driver, "config", cfg.Path)
	return &app{
		cfg:       cfg,
		logger:    log,
		store:     store,
		processor: processor.New(store, l, opts...),
	}, nil
}

func (a *app) Close(ctx context.Context) error {
	return a.store.Close(ctx)
}

func (a *app) resolver() auth.Resolver {
	if a.cfg.Auth.Mode == config.AuthHeader {
		return auth.HeaderResolver{DefaultTenant: a.cfg.Auth.DefaultTenant}
	}
	opts := []auth.JWTOption{auth.WithAcceptableSkew(a.cfg.Auth.Skew)}
	if a.cfg.Auth.Issuer != "" {
		opts = append(opts, auth.WithIssuer(a.cfg.Auth.Issuer))
	}
	return auth.NewJWTResolver([]byte(a.cfg.Auth.Secret), opts...)
}

func (a *app) batchOptions() []processor.BatchOption {
	return []processor.BatchOption{processor.WithWorkers(a.cfg.Processor.BatchWorkers)}
}

func (a *app) batch() *processor.BatchCoordinator {
	return processor.NewBatchCoordinator(a.processor, a.batchOptions()...)
}

func openStore(ctx context.Context, cfg config.StoreConfig, migrate bool) (task.TaskStore, error) {
	if cfg.Driver == config.StoreMemory {
		store := task.NewInMemoryTaskStore()
		return store, store.Initialize(ctx)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.DSN, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.DSN, err)
	}
	// SQLite allows one writer; a single connection keeps CAS updates serialized.
	sqlDB.SetMaxOpenConns(1)

	store, err := task.NewDatabaseTaskStore(task.DatabaseTaskStoreConfig{DB: db, CreateTable: migrate})
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func newLedger(cfg config.LedgerConfig, log *slog.Logger) (ledger.Ledger, error) {
	if cfg.Driver == config.LedgerMemory {
		return ledger.NewMemoryLedger(), nil
	}
	return ledger.NewUCPClient(cfg.BaseURL,
		ledger.WithAPIKey(cfg.APIKey),
		ledger.WithUCPAgent(cfg.Agent),
		ledger.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		ledger.WithLogger(log),
	)
}
