// Package app wires configuration, storage, parsing and reconciliation into
// one container shared by the CLI commands and the API server.
package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"go.uber.org/dig"

	"github.com/cleared-dev/bankrecon/internal/auditlog"
	"github.com/cleared-dev/bankrecon/internal/client"
	"github.com/cleared-dev/bankrecon/internal/config"
	"github.com/cleared-dev/bankrecon/internal/importer"
	"github.com/cleared-dev/bankrecon/internal/reconcile"
	"github.com/cleared-dev/bankrecon/internal/server"
	"github.com/cleared-dev/bankrecon/internal/store"
	"github.com/cleared-dev/bankrecon/internal/store/memory"
	"github.com/cleared-dev/bankrecon/internal/store/postgres"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Store     store.Store
	Resolver  *importer.Resolver
	Allocator *reconcile.Allocator
	Server    *server.Server

	// Invoices is nil when the store cannot load invoices (remote driver).
	Invoices store.InvoiceWriter
	// Postgres is set only for the postgres driver.
	Postgres *postgres.Store
	// Ephemeral is true when the store lives only as long as the process.
	Ephemeral bool

	close func()
}

// Close releases the store's resources.
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}

type backend struct {
	store     store.Store
	invoices  store.InvoiceWriter
	postgres  *postgres.Store
	ephemeral bool
	close     func()
}

// Build assembles an App for cfg.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	c := dig.New()
	providers := []any{
		func() context.Context { return ctx },
		func() *config.Config { return cfg },
		func() *log.Logger { return logger },
		newBackend,
		func(b *backend) store.Store { return b.store },
		NewResolver,
		func(cfg *config.Config) *reconcile.Cache { return reconcile.NewCache(cfg.Reconcile.CacheTTL) },
		newAllocator,
		newServer,
	}
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, err
		}
	}

	var a *App
	err := c.Invoke(func(
		b *backend,
		resolver *importer.Resolver,
		alloc *reconcile.Allocator,
		srv *server.Server,
	) {
		a = &App{
			Config:    cfg,
			Logger:    logger,
			Store:     b.store,
			Invoices:  b.invoices,
			Postgres:  b.postgres,
			Ephemeral: b.ephemeral,
			Resolver:  resolver,
			Allocator: alloc,
			Server:    srv,
			close:     b.close,
		}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return a, nil
}

func newBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, postgres.PoolConfig{
			URL:         cfg.Database.URL,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			MaxConnIdle: cfg.Database.MaxConnIdle,
		})
		if err != nil {
			return nil, err
		}
		pg := postgres.New(pool, logger.WithPrefix("postgres"))
		return &backend{store: pg, invoices: pg, postgres: pg, close: pool.Close}, nil
	case config.DriverRemote:
		c := client.New(cfg.Remote.BaseURL,
			client.WithTimeout(cfg.Remote.Timeout),
			client.WithLogger(logger.WithPrefix("client")))
		return &backend{store: c}, nil
	case config.DriverMemory, "":
		mem := memory.New()
		return &backend{store: mem, invoices: mem, ephemeral: true}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// NewResolver builds the statement resolver configured by cfg.
func NewResolver(cfg *config.Config, logger *log.Logger) (*importer.Resolver, error) {
	policy, err := importer.ParseFallbackPolicy(cfg.Parsing.FallbackPolicy)
	if err != nil {
		return nil, err
	}
	return importer.NewResolver(importer.DefaultRegistry(),
		importer.WithPolicy(policy),
		importer.WithLogger(logger.WithPrefix("parse"))), nil
}

func newAllocator(st store.Store, cache *reconcile.Cache, cfg *config.Config, logger *log.Logger) *reconcile.Allocator {
	return reconcile.NewAllocator(st,
		reconcile.WithCache(cache),
		reconcile.WithAudit(auditlog.New(cfg.Reconcile.AuditLog)),
		reconcile.WithPageSize(cfg.Reconcile.InvoicePageSize),
		reconcile.WithLogger(logger.WithPrefix("reconcile")))
}

func newServer(st store.Store, resolver *importer.Resolver, cfg *config.Config, logger *log.Logger) *server.Server {
	return server.New(st, resolver,
		server.WithDefaultBank(cfg.Parsing.DefaultBank),
		server.WithLogger(logger.WithPrefix("http")))
}
