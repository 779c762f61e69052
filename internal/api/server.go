// Package api exposes the ledger over a JSON HTTP interface.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/finscale/internal/installment"
	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/recurrence"
	"github.com/Veraticus/finscale/internal/service"
)

// Store is the persistence the HTTP handlers use.
type Store interface {
	service.TransactionStore
	service.CardStore
	service.CategoryStore
	service.UserDirectory
	service.ChargeStore
}

// Expander records transactions, split into installments when requested.
type Expander interface {
	Expand(ctx context.Context, req installment.Request) ([]model.Transaction, error)
}

// OwnerSweeper catches up one owner's recurring charges.
type OwnerSweeper interface {
	ProcessOwner(ctx context.Context, ownerID int64) (recurrence.SweepResult, error)
}

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	Issue(user *model.User) (string, error)
	Parse(token string) (int64, error)
}

// Passwords hashes and checks account passwords.
type Passwords interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// Deps contains all dependencies required by the server.
type Deps struct {
	Store     Store
	Expander  Expander
	Sweeper   OwnerSweeper
	Tokens    Tokens
	Passwords Passwords
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Store == nil {
		return fmt.Errorf("store dependency is required")
	}
	if d.Expander == nil {
		return fmt.Errorf("expander dependency is required")
	}
	if d.Sweeper == nil {
		return fmt.Errorf("sweeper dependency is required")
	}
	if d.Tokens == nil {
		return fmt.Errorf("token dependency is required")
	}
	if d.Passwords == nil {
		return fmt.Errorf("password dependency is required")
	}
	return nil
}

// Server serves the JSON API.
type Server struct {
	deps Deps
}

// NewServer creates a server with the provided dependencies.
func NewServer(deps Deps) (*Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &Server{deps: deps}, nil
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	authed := Auth(s.deps.Tokens)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/logout", s.logout)

	mux.HandleFunc("GET /api/categories", s.listCategories)

	mux.Handle("GET /api/transactions", authed(http.HandlerFunc(s.listTransactions)))
	mux.Handle("GET /api/transactions/summary", authed(http.HandlerFunc(s.summary)))
	mux.Handle("POST /api/transactions", authed(http.HandlerFunc(s.createTransaction)))
	mux.Handle("DELETE /api/transactions/{id}", authed(http.HandlerFunc(s.deleteTransaction)))

	mux.Handle("GET /api/recurrent-charges", authed(http.HandlerFunc(s.listCharges)))
	mux.Handle("POST /api/recurrent-charges", authed(http.HandlerFunc(s.createCharge)))
	mux.Handle("POST /api/recurrent-charges/process", authed(http.HandlerFunc(s.processCharges)))
	mux.Handle("PATCH /api/recurrent-charges/{id}/toggle", authed(http.HandlerFunc(s.toggleCharge)))
	mux.Handle("DELETE /api/recurrent-charges/{id}", authed(http.HandlerFunc(s.deleteCharge)))

	mux.Handle("GET /api/cards", authed(http.HandlerFunc(s.listCards)))
	mux.Handle("POST /api/cards", authed(http.HandlerFunc(s.createCard)))
	mux.Handle("PUT /api/cards/{id}", authed(http.HandlerFunc(s.updateCard)))
	mux.Handle("DELETE /api/cards/{id}", authed(http.HandlerFunc(s.deleteCard)))

	return Recovery(Logger(RequestID(CORS(mux))))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
