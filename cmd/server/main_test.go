package main

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"testing"

	"zwitch-gateway/internal/config"
	"zwitch-gateway/internal/middleware"
	"zwitch-gateway/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPaymentService struct{}

func (stubPaymentService) CreateToken(context.Context, payment.CreateTokenInput) (string, error) {
	return "", nil
}
func (stubPaymentService) VerifyPayment(context.Context, payment.VerifyRequest) payment.VerifyResult {
	return payment.VerifyResult{}
}
func (stubPaymentService) Refund(context.Context, string, decimal.Decimal) (payment.RefundResult, error) {
	return payment.RefundResult{}, nil
}
func (stubPaymentService) Checkout(context.Context, uint, string) (string, error) { return "", nil }
func (stubPaymentService) ListLogs(context.Context, uint) ([]payment.LogEntry, error) {
	return nil, nil
}
func (stubPaymentService) Config() payment.GatewayConfig { return payment.GatewayConfig{} }

func testConfig() *config.Config {
	return &config.Config{
		AppPort:           "8080",
		AppEnv:            "test",
		ZwitchEnvironment: config.EnvironmentSandbox,
		ZwitchTimezone:    "Asia/Kolkata",
		ZwitchCurrency:    "INR",
		ZwitchHTTPTimeout: "5s",
		ModuleName:        "zwitch",
		SystemURL:         "https://billing.example.com/",
		JWTSecret:         "test-secret",
	}
}

func TestSetupRouter(t *testing.T) {
	router := setupRouter(stubPaymentService{}, testConfig(), middleware.NewRateLimiter(""))

	t.Run("Health Check", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/health", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "OK")
	})

	t.Run("Callback Wiring", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/callback/zwitch?action=bogus", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid request")
	})

	t.Run("Admin Requires Token", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/admin/gateway", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Login Rejects Empty Body", func(t *testing.T) {
		req, _ := http.NewRequest("POST", "/admin/login", nil)
		req.Body = http.NoBody
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestNewServer(t *testing.T) {
	// Mock driver: no Postgres connection is needed to build the graph.
	db, err := sql.Open("mock_driver_main", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router, closeFn := newServer(ctx, testConfig(), db)
	require.NotNil(t, router)
	assert.NoError(t, closeFn())

	req, _ := http.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

// --- Mock Driver for Testing ---
type mockDriver struct{}

func (m *mockDriver) Open(name string) (driver.Conn, error)         { return &mockConn{}, nil }
func (c *mockConn) Prepare(query string) (driver.Stmt, error)       { return &mockStmt{}, nil }
func (c *mockConn) Close() error                                    { return nil }
func (c *mockConn) Begin() (driver.Tx, error)                       { return nil, nil }
func (s *mockStmt) Close() error                                    { return nil }
func (s *mockStmt) NumInput() int                                   { return 0 }
func (s *mockStmt) Exec(args []driver.Value) (driver.Result, error) { return nil, nil }
func (s *mockStmt) Query(args []driver.Value) (driver.Rows, error)  { return nil, nil }

type mockConn struct{}
type mockStmt struct{}

func init() {
	sql.Register("mock_driver_main", &mockDriver{})
}

func TestRun(t *testing.T) {
	origInitDB := initDBFunc
	defer func() { initDBFunc = origInitDB }()
	initDBFunc = func(cfg *config.Config) *sql.DB {
		db, _ := sql.Open("mock_driver_main", "")
		return db
	}

	var gotAddr string
	origStartServer := startServerFunc
	defer func() { startServerFunc = origStartServer }()
	startServerFunc = func(addr string, handler http.Handler) error {
		gotAddr = addr
		return nil
	}

	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "user")
	t.Setenv("DB_PASSWORD", "pass")
	t.Setenv("DB_NAME", "db")
	t.Setenv("ZWITCH_ENVIRONMENT", "sandbox")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SYSTEM_URL", "https://billing.example.com")
	t.Setenv("CALLBACK_URL", "")

	require.NoError(t, run())
	assert.Equal(t, ":9090", gotAddr)
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("ZWITCH_ENVIRONMENT", "staging")

	assert.Error(t, run())
}
