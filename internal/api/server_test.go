package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Veraticus/finscale/internal/auth"
	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/installment"
	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/recurrence"
	"github.com/Veraticus/finscale/internal/testutil"
)

type testServer struct {
	db      *testutil.TestDB
	tokens  *auth.TokenIssuer
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.SetupTestDB(t)
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	server, err := NewServer(Deps{
		Store:     db.Storage,
		Expander:  installment.NewExpander(db.Storage),
		Sweeper:   recurrence.NewProcessor(db.Storage, calendar.FixedClock{Date: calendar.New(2026, time.October, 15)}),
		Tokens:    tokens,
		Passwords: auth.PasswordHasher{Cost: bcrypt.MinCost},
	})
	require.NoError(t, err)

	return &testServer{db: db, tokens: tokens, handler: server.Handler()}
}

func (s *testServer) tokenFor(t *testing.T, owner *model.User) string {
	t.Helper()
	token, err := s.tokens.Issue(owner)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNewServer_ValidatesDeps(t *testing.T) {
	_, err := NewServer(Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store dependency is required")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/register", "", registerRequest{
		Name: "Ana", Email: "Ana@Example.com", Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	registered := decode[authResponse](t, rec)
	assert.Equal(t, "ana@example.com", registered.User.Email)
	assert.NotEmpty(t, registered.Token)

	ownerID, err := s.tokens.Parse(registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, ownerID)

	t.Run("duplicate email", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/auth/register", "", registerRequest{
			Name: "Ana again", Email: "ana@example.com", Password: "secret1",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("short password", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/auth/register", "", registerRequest{
			Name: "Bo", Email: "bo@example.com", Password: "123",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/auth/register", "", registerRequest{Email: "x@example.com"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("login", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "ana@example.com", Password: "secret1"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Ana", decode[authResponse](t, rec).User.Name)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		wrong := s.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "ana@example.com", Password: "nope123"})
		unknown := s.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "zed@example.com", Password: "nope123"})
		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	})

	t.Run("logout", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/auth/logout", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestTransactions(t *testing.T) {
	s := newTestServer(t)
	owner := s.db.MustCreateOwner("")
	token := s.tokenFor(t, owner)

	rec := s.do(t, http.MethodPost, "/api/transactions", token, map[string]any{
		"description":  "Laptop",
		"amount":       "100",
		"type":         "expense",
		"category":     "Work",
		"date":         "2026-01-31",
		"installments": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[[]transactionDTO](t, rec)
	require.Len(t, created, 3)
	assert.Equal(t, "Laptop (1/3)", created[0].Description)
	assert.Equal(t, "33.33", created[0].Amount)
	assert.Equal(t, "33.34", created[2].Amount)
	assert.Equal(t, calendar.New(2026, time.February, 28), created[1].Date)
	require.NotNil(t, created[1].InstallmentNumber)
	assert.Equal(t, 2, *created[1].InstallmentNumber)
	assert.Equal(t, *created[0].InstallmentID, *created[2].InstallmentID)

	rec = s.do(t, http.MethodPost, "/api/transactions", token, map[string]any{
		"description": "Salary",
		"amount":      2500,
		"type":        "income",
		"category":    "Work",
		"date":        "2026-10-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	salary := decode[[]transactionDTO](t, rec)
	require.Len(t, salary, 1)
	assert.Nil(t, salary[0].InstallmentID)

	t.Run("list newest first", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/transactions", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[[]transactionDTO](t, rec)
		require.Len(t, list, 4)
		assert.Equal(t, "Salary", list[0].Description)
	})

	t.Run("summary", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/transactions/summary", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, summaryDTO{TotalIncome: "2500.00", TotalExpense: "100.00", Balance: "2400.00"},
			decode[summaryDTO](t, rec))
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			body map[string]any
		}{
			{name: "missing date", body: map[string]any{"description": "x", "amount": 1, "type": "expense", "category": "Food"}},
			{name: "bad type", body: map[string]any{"description": "x", "amount": 1, "type": "gift", "category": "Food", "date": "2026-10-01"}},
			{name: "negative amount", body: map[string]any{"description": "x", "amount": -5, "type": "expense", "category": "Food", "date": "2026-10-01"}},
			{name: "bad date", body: map[string]any{"description": "x", "amount": 1, "type": "expense", "category": "Food", "date": "31/10/2026"}},
			{name: "foreign card", body: map[string]any{"description": "x", "amount": 1, "type": "expense", "category": "Food", "date": "2026-10-01", "card_id": 999}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := s.do(t, http.MethodPost, "/api/transactions", token, tt.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			})
		}
	})

	t.Run("delete", func(t *testing.T) {
		path := fmt.Sprintf("/api/transactions/%d", salary[0].ID)

		other := s.db.MustCreateOwner("")
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, s.tokenFor(t, other), nil).Code)

		assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, path, token, nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, token, nil).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/api/transactions/abc", token, nil).Code)
	})
}

func TestRecurrentCharges(t *testing.T) {
	s := newTestServer(t)
	owner := s.db.MustCreateOwner("")
	token := s.tokenFor(t, owner)

	rec := s.do(t, http.MethodPost, "/api/recurrent-charges", token, map[string]any{
		"description":   "Rent",
		"amount":        "1200",
		"frequency":     "monthly",
		"next_due_date": "2026-09-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	charge := decode[chargeDTO](t, rec)
	assert.Equal(t, model.KindExpense, charge.Type)
	assert.Equal(t, model.DefaultRecurringCategory, charge.Category)
	assert.True(t, charge.IsActive)

	t.Run("bad frequency", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/recurrent-charges", token, map[string]any{
			"description": "Gym", "amount": 80, "frequency": "hourly", "next_due_date": "2026-10-20",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("process catches up", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/recurrent-charges/process", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		result := decode[processResponse](t, rec)
		assert.Equal(t, 2, result.Processed)
		assert.Equal(t, "2 transaction(s) created", result.Message)

		again := decode[processResponse](t, s.do(t, http.MethodPost, "/api/recurrent-charges/process", token, nil))
		assert.Equal(t, 0, again.Processed)
		assert.Equal(t, "No pending charges", again.Message)

		transactions, err := s.db.Storage.ListTransactionsByOwner(context.Background(), owner.ID)
		require.NoError(t, err)
		assert.Len(t, transactions, 2)
	})

	t.Run("toggle", func(t *testing.T) {
		path := fmt.Sprintf("/api/recurrent-charges/%d/toggle", charge.ID)
		rec := s.do(t, http.MethodPatch, path, token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[chargeDTO](t, rec).IsActive)

		other := s.db.MustCreateOwner("")
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPatch, path, s.tokenFor(t, other), nil).Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/recurrent-charges", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		list := decode[[]chargeDTO](t, rec)
		require.Len(t, list, 1)
		assert.Equal(t, calendar.New(2026, time.November, 15), list[0].NextDueDate)
	})

	t.Run("delete", func(t *testing.T) {
		path := fmt.Sprintf("/api/recurrent-charges/%d", charge.ID)
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, path, token, nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, token, nil).Code)
	})
}

func TestCards(t *testing.T) {
	s := newTestServer(t)
	owner := s.db.MustCreateOwner("")
	token := s.tokenFor(t, owner)

	rec := s.do(t, http.MethodPost, "/api/cards", token, map[string]any{
		"name": "Visa", "last_digits": "1234", "initial_balance": "50",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	card := decode[cardDTO](t, rec)
	assert.Equal(t, model.DefaultCardColor, card.Color)
	assert.Equal(t, "50.00", card.InitialBalance)

	rec = s.do(t, http.MethodPost, "/api/transactions", token, map[string]any{
		"description": "Market", "amount": "20.10", "type": "expense", "category": "Food",
		"date": "2026-10-02", "card_id": card.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("invalid last digits", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/cards", token, map[string]any{"name": "Amex", "last_digits": "12a"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list with balance", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/api/cards", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		cards := decode[[]cardDTO](t, rec)
		require.Len(t, cards, 1)
		assert.Equal(t, "20.10", cards[0].TotalExpense)
		assert.Equal(t, "29.90", cards[0].CurrentBalance)
	})

	t.Run("update", func(t *testing.T) {
		path := fmt.Sprintf("/api/cards/%d", card.ID)
		rec := s.do(t, http.MethodPut, path, token, map[string]any{"name": "Visa Gold"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decode[cardDTO](t, rec)
		assert.Equal(t, "Visa Gold", updated.Name)
		assert.Equal(t, "1234", updated.LastDigits)

		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, "/api/cards/999", token, map[string]any{"name": "x"}).Code)
	})

	t.Run("delete keeps transactions", func(t *testing.T) {
		path := fmt.Sprintf("/api/cards/%d", card.ID)
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, path, token, nil).Code)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, token, nil).Code)

		list := decode[[]transactionDTO](t, s.do(t, http.MethodGet, "/api/transactions", token, nil))
		require.Len(t, list, 1)
		assert.Nil(t, list[0].CardID)
	})
}

func TestCategories(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/categories", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	categories := decode[[]categoryDTO](t, rec)
	require.NotEmpty(t, categories)
	assert.Equal(t, "Food", categories[0].Name)
}

func TestRecovery(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode[map[string]string](t, rec)["error"])
}
