package payment

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"zwitch-gateway/internal/events"
	"zwitch-gateway/internal/invoice"
	"zwitch-gateway/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Service interface {
	CreateToken(ctx context.Context, in CreateTokenInput) (string, error)
	VerifyPayment(ctx context.Context, req VerifyRequest) VerifyResult
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (RefundResult, error)
	Checkout(ctx context.Context, invoiceID uint, label string) (string, error)
	ListLogs(ctx context.Context, invoiceID uint) ([]LogEntry, error)
	Config() GatewayConfig
}

type service struct {
	cfg        GatewayConfig
	gateway    Gateway
	repo       Repository
	invoiceSvc invoice.Service
	publisher  events.Publisher
	now        func() time.Time
}

func NewService(
	cfg GatewayConfig,
	gateway Gateway,
	repo Repository,
	invoiceSvc invoice.Service,
	publisher events.Publisher,
) Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &service{
		cfg:        cfg,
		gateway:    gateway,
		repo:       repo,
		invoiceSvc: invoiceSvc,
		publisher:  publisher,
		now:        time.Now,
	}
}

func (s *service) Config() GatewayConfig {
	return s.cfg
}

// audit writes to the gateway log. A failed write is logged and swallowed:
// it must never change the outcome of a payment.
func (s *service) audit(ctx context.Context, data map[string]any, result string) {
	if err := s.repo.LogTransaction(ctx, s.cfg.ModuleName, data, result); err != nil {
		logger.FromCtx(ctx).Error("failed to write gateway log",
			zap.String("result", result),
			zap.Error(err),
		)
	}
}

func (s *service) publish(ctx context.Context, e events.Event) {
	e.Gateway = s.cfg.ModuleName
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.FromCtx(ctx).Warn("payment event not published",
			zap.String("type", e.Type),
			zap.Error(err),
		)
	}
}

// ----------------- CreateToken -----------------

func (s *service) CreateToken(ctx context.Context, in CreateTokenInput) (string, error) {
	if in.InvoiceID == 0 || strings.TrimSpace(in.OrderRef) == "" {
		return "", ErrInvalidRequest
	}

	log := logger.FromCtx(ctx).With(
		zap.Uint("invoice_id", in.InvoiceID),
		zap.String("order_ref", in.OrderRef),
	)

	inv, err := s.invoiceSvc.GetInvoice(ctx, in.InvoiceID)
	if err != nil {
		log.Warn("token requested for unknown invoice", zap.Error(err))
		return "", ErrInvalidInvoice
	}

	client, err := s.invoiceSvc.GetClient(ctx, inv.UserID)
	if err != nil {
		log.Warn("invoice client lookup failed", zap.Uint("client_id", inv.UserID), zap.Error(err))
		return "", ErrInvalidClient
	}

	mtx, err := NewMerchantReference(inv.ID)
	if err != nil {
		log.Error("failed to generate merchant reference", zap.Error(err))
		return "", err
	}

	// The gateway only settles in the configured currency, whatever the
	// invoice was raised in.
	res, err := s.gateway.CreatePaymentToken(ctx, TokenRequest{
		Amount:        inv.Total.StringFixed(2),
		Currency:      s.cfg.Currency,
		Mtx:           mtx,
		ContactNumber: client.PhoneNumber,
		EmailID:       client.Email,
		CallbackURL:   s.cfg.CallbackURL + "?action=callback",
	})
	if err != nil {
		return "", err
	}

	log.Info("payment token issued", zap.String("mtx", mtx))
	return res.ID, nil
}

// ----------------- VerifyPayment -----------------

func (s *service) VerifyPayment(ctx context.Context, req VerifyRequest) VerifyResult {
	result := VerifyResult{InvoiceID: req.InvoiceID}

	log := logger.FromCtx(ctx).With(
		zap.String("action", req.Action),
		zap.String("invoice_id", req.InvoiceID),
		zap.String("order_ref", req.OrderRef),
	)

	if req.PaymentToken == "" {
		log.Warn("no payment token provided")
		s.audit(ctx, map[string]any{
			"error":      "No payment token provided",
			"invoice_id": req.InvoiceID,
			"order_ref":  req.OrderRef,
		}, LogResultError)
		result.Outcome = OutcomeMissingToken
		return result
	}

	log = log.With(zap.String("payment_token", req.PaymentToken))

	status, err := s.gateway.GetPaymentStatus(ctx, req.PaymentToken)
	if err != nil {
		log.Error("payment status check failed", zap.Error(err))
		s.audit(ctx, map[string]any{
			"error":         err.Error(),
			"payment_token": req.PaymentToken,
			"invoice_id":    req.InvoiceID,
			"order_ref":     req.OrderRef,
		}, LogResultError)
		result.Outcome = OutcomeTransportFailure
		return result
	}

	s.audit(ctx, map[string]any{
		"response":      status.Decoded(),
		"payment_token": req.PaymentToken,
		"invoice_id":    req.InvoiceID,
		"order_ref":     req.OrderRef,
	}, LogResultResponse)

	if status.StatusCode != http.StatusOK || status.Status() != StatusCaptured {
		log.Info("payment not captured",
			zap.Int("http_status", status.StatusCode),
			zap.String("status", status.Status()),
		)
		result.Outcome = OutcomeNotCaptured
		return result
	}

	txID := ExtractTransactionID(s.cfg.Environment, status)
	if txID == "" {
		txID = req.PaymentToken
	}
	result.TransactionID = txID
	result.Currency = status.Field("currency")
	rawAmount := status.Field("amount")
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		log.Warn("captured payment carries an unparseable amount",
			zap.String("raw_amount", rawAmount),
			zap.Error(err),
		)
	}
	result.Amount = amount

	log = log.With(zap.String("transaction_id", txID))
	result.Outcome = s.recordCaptured(ctx, log, req.InvoiceID, result)
	return result
}

func (s *service) recordCaptured(ctx context.Context, log *zap.Logger, rawInvoiceID string, r VerifyResult) Outcome {
	invoiceID, err := strconv.ParseUint(strings.TrimSpace(rawInvoiceID), 10, 0)
	if err != nil {
		log.Warn("captured payment carries an unparseable invoice id",
			zap.String("raw_invoice_id", rawInvoiceID),
			zap.Error(err),
		)
		invoiceID = 0
	}

	if _, err := s.invoiceSvc.CheckInvoicePayable(ctx, uint(invoiceID)); err != nil {
		if !errors.Is(err, invoice.ErrInvoiceNotFound) && !errors.Is(err, invoice.ErrInvoiceNotPayable) {
			log.Error("invoice check failed", zap.Error(err))
			return OutcomeStoreFailure
		}
		// A replayed capture for an invoice we already settled is not a
		// rejection.
		recorded, rerr := s.invoiceSvc.IsTransactionRecorded(ctx, r.TransactionID)
		if rerr != nil {
			log.Error("transaction lookup failed", zap.Error(rerr))
			return OutcomeStoreFailure
		}
		if recorded {
			log.Info("captured payment already recorded")
			return OutcomeAlreadyRecorded
		}
		log.Warn("captured payment for an invoice that cannot take it", zap.Error(err))
		return OutcomeInvoiceRejected
	}

	if err := s.invoiceSvc.CheckTransactionUnused(ctx, r.TransactionID); err != nil {
		if errors.Is(err, invoice.ErrDuplicateTransaction) {
			log.Info("captured payment already recorded")
			return OutcomeAlreadyRecorded
		}
		log.Error("duplicate check failed", zap.Error(err))
		return OutcomeStoreFailure
	}

	err = s.invoiceSvc.AddPayment(ctx, invoice.Payment{
		InvoiceID:     uint(invoiceID),
		TransactionID: r.TransactionID,
		Amount:        r.Amount,
		Fee:           decimal.Zero,
		Gateway:       s.cfg.ModuleName,
	})
	switch {
	case err == nil:
	case errors.Is(err, invoice.ErrDuplicateTransaction):
		return OutcomeAlreadyRecorded
	case errors.Is(err, invoice.ErrInvalidPayment), errors.Is(err, invoice.ErrInvoiceNotFound):
		log.Warn("captured payment could not be recorded", zap.Error(err))
		return OutcomeInvoiceRejected
	default:
		log.Error("failed to record captured payment", zap.Error(err))
		return OutcomeStoreFailure
	}

	s.audit(ctx, map[string]any{
		"invoice_id":     uint(invoiceID),
		"transaction_id": r.TransactionID,
		"amount":         r.Amount.StringFixed(2),
		"currency":       r.Currency,
	}, LogResultSuccess)

	s.publish(ctx, events.Event{
		Type:          events.TypePaymentRecorded,
		InvoiceID:     uint(invoiceID),
		TransactionID: r.TransactionID,
		Amount:        r.Amount.StringFixed(2),
		Currency:      r.Currency,
		Status:        StatusCaptured,
		OccurredAt:    s.now().UTC(),
	})

	log.Info("captured payment recorded", zap.String("amount", r.Amount.StringFixed(2)))
	return OutcomeCaptured
}

// ----------------- Refund -----------------

func (s *service) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (RefundResult, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" || !amount.IsPositive() {
		return RefundResult{}, ErrInvalidRequest
	}

	log := logger.FromCtx(ctx).With(
		zap.String("transaction_id", transactionID),
		zap.String("amount", amount.StringFixed(2)),
	)

	var result RefundResult
	res, err := s.gateway.Refund(ctx, transactionID, amount)
	switch {
	case err != nil:
		result = RefundResult{Status: RefundStatusError, RawData: err.Error()}
	case (res.StatusCode == http.StatusOK || res.StatusCode == http.StatusCreated) &&
		(res.Status() == "success" || res.Status() == "processed"):
		transID := res.Field("id")
		if transID == "" {
			transID = transactionID
		}
		result = RefundResult{Status: RefundStatusSuccess, TransID: transID, RawData: string(res.Raw)}
	default:
		result = RefundResult{Status: RefundStatusError, RawData: string(res.Raw)}
	}

	s.audit(ctx, map[string]any{
		"transaction_id": transactionID,
		"amount":         amount.StringFixed(2),
		"status":         result.Status,
		"transid":        result.TransID,
		"rawdata":        result.RawData,
	}, LogResultRefund)

	if result.Status != RefundStatusSuccess {
		log.Warn("refund failed", zap.String("rawdata", result.RawData))
		return result, nil
	}

	s.publish(ctx, events.Event{
		Type:          events.TypeRefundProcessed,
		TransactionID: result.TransID,
		Amount:        amount.StringFixed(2),
		Status:        RefundStatusSuccess,
		OccurredAt:    s.now().UTC(),
	})

	log.Info("refund processed", zap.String("refund_id", result.TransID))
	return result, nil
}

// ----------------- Checkout -----------------

func (s *service) Checkout(ctx context.Context, invoiceID uint, label string) (string, error) {
	inv, err := s.invoiceSvc.CheckInvoicePayable(ctx, invoiceID)
	if err != nil {
		return "", err
	}

	return RenderCheckout(CheckoutParams{
		InvoiceID:   inv.ID,
		OrderRef:    NewOrderReference(inv.ID, s.now()),
		AccessKey:   s.cfg.AccessKey,
		Environment: s.cfg.Environment,
		CallbackURL: s.cfg.CallbackURL,
		SystemURL:   s.cfg.SystemURL,
		PayNowLabel: label,
	})
}

func (s *service) ListLogs(ctx context.Context, invoiceID uint) ([]LogEntry, error) {
	return s.repo.ListByInvoice(ctx, invoiceID)
}
