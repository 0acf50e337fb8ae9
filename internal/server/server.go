// Package server exposes the store contract and statement parsing over a
// fiber REST API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/cleared-dev/bankrecon/internal/api"
	"github.com/cleared-dev/bankrecon/internal/buildinfo"
	"github.com/cleared-dev/bankrecon/internal/importer"
	"github.com/cleared-dev/bankrecon/internal/model"
	"github.com/cleared-dev/bankrecon/internal/store"
)

// maxUploadBytes caps statement uploads and JSON bodies.
const maxUploadBytes = 32 << 20

// Server handles HTTP requests against a store.
type Server struct {
	app         *fiber.App
	store       store.Store
	resolver    *importer.Resolver
	logger      *log.Logger
	defaultBank string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithDefaultBank is used for uploads that do not name a bank.
func WithDefaultBank(bank string) Option {
	return func(s *Server) { s.defaultBank = bank }
}

// New builds the fiber app and registers every route.
func New(st store.Store, resolver *importer.Resolver, opts ...Option) *Server {
	s := &Server{store: st, resolver: resolver}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "bankrecon",
		BodyLimit:             maxUploadBytes,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(cors.New())
	s.app.Use(s.logRequests)
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.app.Group(api.BasePath)
	v1.Get("/health", s.handleHealth)
	v1.Post("/statements/parse", s.handleParse)
	v1.Post("/bank-entries/bulk", s.handleBulkInsert)
	v1.Get("/bank-entries", s.handleListEntries)
	v1.Get("/bank-entries/:id", s.handleGetEntry)
	v1.Get("/bank-entries/:id/invoices", s.handleAttachedInvoices)
	v1.Post("/bank-entries/:id/reconcile", s.handleReconcile)
	v1.Get("/invoices", s.handleListInvoices)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(api.Health{Status: "ok", Version: buildinfo.Version})
}

func (s *Server) handleParse(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "no file uploaded, use form field 'file'")
	}
	bank := strings.TrimSpace(c.FormValue("bank"))
	if bank == "" {
		bank = s.defaultBank
	}
	if bank == "" {
		return fiber.NewError(fiber.StatusBadRequest, "bank is required")
	}

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}

	res, err := s.resolver.ParseFile(bank, fh.Filename, data)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	entries, rejected := importer.ToEntries(res.Transactions, strings.ToUpper(bank))
	s.logger.Info("parsed statement", "file", fh.Filename, "bank", bank, "strategy", res.Strategy,
		"transactions", len(res.Transactions), "skipped", res.Skipped, "rejected", rejected)

	txns := res.Transactions
	if txns == nil {
		txns = []model.Transaction{}
	}
	if entries == nil {
		entries = []model.BankEntry{}
	}
	return c.JSON(api.ParseResult{
		Strategy:     res.Strategy,
		Skipped:      res.Skipped,
		Transactions: txns,
		Entries:      entries,
	})
}

func (s *Server) handleBulkInsert(c *fiber.Ctx) error {
	var entries []model.BankEntry
	if err := c.BodyParser(&entries); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
	}
	res, err := s.store.BulkInsert(c.UserContext(), entries)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) handleListEntries(c *fiber.Ctx) error {
	f, err := api.ParseEntryQuery(queryGetter(c))
	if err != nil {
		return err
	}
	if f.BankCode == "" {
		return fiber.NewError(fiber.StatusBadRequest, "bankCode is required")
	}
	page, err := s.store.ListEntries(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(api.NewEnvelope(page))
}

func (s *Server) handleGetEntry(c *fiber.Ctx) error {
	e, err := s.store.GetEntry(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(e)
}

func (s *Server) handleAttachedInvoices(c *fiber.Ctx) error {
	attached, err := s.store.AttachedInvoices(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(attached)
}

func (s *Server) handleReconcile(c *fiber.Ctx) error {
	var req store.ReconcileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
	}
	entryID := c.Params("id")
	if err := s.store.Reconcile(c.UserContext(), entryID, req); err != nil {
		return err
	}
	return c.JSON(api.StatusOK)
}

func (s *Server) handleListInvoices(c *fiber.Ctx) error {
	f, err := api.ParseInvoiceQuery(queryGetter(c))
	if err != nil {
		return err
	}
	page, err := s.store.ListInvoices(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(api.NewEnvelope(page))
}

func queryGetter(c *fiber.Ctx) func(string) string {
	return func(key string) string { return c.Query(key) }
}

// statusOf maps handler errors to HTTP statuses.
func statusOf(err error) int {
	var fe *fiber.Error
	var verr *store.ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &verr):
		return fiber.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

// handleError writes every failure as {"message": ...}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err, "method", c.Method(), "path", c.Path())
	}
	return c.Status(status).JSON(api.ErrorBody{Message: err.Error()})
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status = statusOf(err)
	}
	s.logger.Debug("http request", "method", c.Method(), "path", c.Path(), "status", status, "dur", time.Since(start))
	return err
}
