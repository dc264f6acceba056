package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"zwitch-gateway/internal/auth"
	"zwitch-gateway/internal/config"
	"zwitch-gateway/internal/db"
	"zwitch-gateway/internal/events"
	"zwitch-gateway/internal/invoice"
	"zwitch-gateway/internal/logger"
	"zwitch-gateway/internal/middleware"
	"zwitch-gateway/internal/payment"
	"zwitch-gateway/internal/payment/webhook"
	"zwitch-gateway/internal/transport"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	initDBFunc      = db.InitDB
	startServerFunc = listenAndServe
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler, closeFn := newServer(ctx, cfg, database)
	defer func() {
		if err := closeFn(); err != nil {
			logger.L().Warn("failed to close event publisher", zap.Error(err))
		}
	}()

	logger.L().Info("zwitch gateway listening",
		zap.String("port", cfg.AppPort),
		zap.String("environment", cfg.ZwitchEnvironment),
	)
	return startServerFunc(":"+cfg.AppPort, handler)
}

// newServer builds the dependency graph. The returned func releases the
// event publisher.
func newServer(ctx context.Context, cfg *config.Config, database *sql.DB) (http.Handler, func() error) {
	invoiceRepo := invoice.NewRepository(database)
	invoiceSvc := invoice.NewService(invoiceRepo)

	gatewayCfg := payment.NewGatewayConfig(cfg)
	gateway := payment.NewZwitchGateway(gatewayCfg)
	paymentRepo := payment.NewRepository(database)
	publisher := events.New(cfg.Brokers(), cfg.KafkaTopic)

	paymentSvc := payment.NewService(gatewayCfg, gateway, paymentRepo, invoiceSvc, publisher)

	limiter := middleware.NewRateLimiter(cfg.InternalSecretKey)
	go limiter.Cleanup(ctx)

	return setupRouter(paymentSvc, cfg, limiter), publisher.Close
}

func setupRouter(paymentSvc payment.Service, cfg *config.Config, limiter *middleware.RateLimiter) *mux.Router {
	admin := auth.AdminAuthenticator{
		Username:     cfg.AdminUsername,
		PasswordHash: cfg.AdminPasswordHash,
		Secret:       cfg.JWTSecret,
	}
	h := transport.NewHandler(paymentSvc, admin, strings.HasPrefix(cfg.SystemURL, "https://"))
	webhookHandler := webhook.NewWebhookHandler(paymentSvc)

	return transport.NewRouter(h, webhookHandler.CallbackHandler, transport.RouterOptions{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins(),
		Limiter:        limiter,
	})
}

// listenAndServe blocks until SIGINT/SIGTERM, then drains in-flight requests.
func listenAndServe(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
