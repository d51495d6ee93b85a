// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/jeranaias/repochat/internal/commands"
	"github.com/jeranaias/repochat/internal/config"
	"github.com/jeranaias/repochat/internal/keystore"
	"github.com/jeranaias/repochat/internal/logging"
	"github.com/jeranaias/repochat/internal/orchestrator"
	"github.com/jeranaias/repochat/internal/provider"
	"github.com/jeranaias/repochat/internal/repo"
	"github.com/jeranaias/repochat/internal/storage"
)

// =============================================================================
// APPLICATION
// =============================================================================

// app holds the collaborators of one chat session.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	orch     *orchestrator.Orchestrator

	// repoName is empty when no repository is configured.
	repoName string

	// warnings are printed before the first prompt.
	warnings []string
}

// bootstrap wires the orchestrator from configuration and the keystore.
func bootstrap(ctx context.Context, opts *globalOptions) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: logPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	secrets := opts.secrets()

	prov, err := provider.Open(cfg.Provider.Kind, provider.Options{
		APIKey:  keystore.Lookup(secrets, keystore.KeyProviderAPIKey),
		Model:   cfg.Provider.Model,
		BaseURL: cfg.Provider.BaseURL,
		Timeout: cfg.Provider.Timeout(),
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	repository, err := a.openRepository(ctx, secrets)
	if err != nil {
		_ = prov.Close()
		_ = logger.Sync()
		return nil, err
	}

	store := a.openStore()

	orch, err := orchestrator.New(orchestrator.Deps{
		Provider:      prov,
		Repository:    repository,
		Store:         store,
		Registry:      commands.NewRegistry(),
		Logger:        logger,
		Registerer:    a.registry,
		ContextWindow: cfg.Conversation.ContextWindow,
		CommandPrefix: cfg.Conversation.CommandPrefix,
		Retention:     cfg.Storage.Retention(),
	})
	if err != nil {
		_ = prov.Close()
		_ = store.Close()
		_ = logger.Sync()
		return nil, err
	}
	a.orch = orch

	logger.Info("session started",
		zap.String("provider", prov.Name()),
		zap.String("model", cfg.Provider.Model),
		zap.String("repository", a.repoName),
		zap.String("storage", cfg.Storage.Backend))
	return a, nil
}

// openRepository returns nil when owner or name is missing. The result is a
// nil interface in that case, never a typed nil.
func (a *app) openRepository(ctx context.Context, secrets keystore.Store) (orchestrator.Repository, error) {
	owner := keystore.Lookup(secrets, keystore.KeyRepositoryOwner)
	name := keystore.Lookup(secrets, keystore.KeyRepositoryName)
	if owner == "" || name == "" {
		a.warnings = append(a.warnings, "No repository is configured; repository commands are unavailable.")
		return nil, nil
	}

	client, err := repo.New(ctx, repo.Config{
		Owner:             owner,
		Name:              name,
		Branch:            a.cfg.Repository.Branch,
		Token:             keystore.Lookup(secrets, keystore.KeyRepositoryToken),
		BaseURL:           a.cfg.Repository.BaseURL,
		Timeout:           a.cfg.Repository.Timeout(),
		RequestsPerSecond: a.cfg.Repository.RequestsPerSecond,
	}, a.logger.Named("repo"))
	if err != nil {
		return nil, err
	}
	if !client.HasToken() {
		a.warnings = append(a.warnings, "No repository token is set; "+client.FullName()+" is read-only.")
	}
	a.repoName = client.FullName()
	return client, nil
}

// openStore opens the configured message store. A store that cannot be
// opened degrades to memory so the session still starts.
// RELIABILITY: Persistence failures never block the conversation.
func (a *app) openStore() storage.Store {
	path, err := a.cfg.StoragePath()
	if err == nil {
		var store storage.Store
		store, err = storage.Open(storage.Options{Backend: a.cfg.Storage.Backend, Path: path})
		if err == nil {
			return store
		}
	}

	a.logger.Warn("message store unavailable, history will not be saved",
		zap.String("backend", a.cfg.Storage.Backend), zap.Error(err))
	a.warnings = append(a.warnings, "History will not be saved: "+err.Error())
	return storage.NewMemoryStore()
}

// close releases the orchestrator and flushes the log.
func (a *app) close() error {
	var errs []error
	if a.orch != nil {
		if err := a.orch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
