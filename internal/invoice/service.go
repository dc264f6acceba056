package invoice

import (
	"context"
	"errors"
	"strings"

	"zwitch-gateway/internal/logger"

	"go.uber.org/zap"
)

// Service is the host-platform surface the gateway depends on.
type Service interface {
	GetInvoice(ctx context.Context, id uint) (*Invoice, error)
	GetClient(ctx context.Context, id uint) (*Client, error)

	// CheckInvoicePayable returns the invoice when it exists and is unpaid.
	CheckInvoicePayable(ctx context.Context, id uint) (*Invoice, error)

	// CheckTransactionUnused fails with ErrDuplicateTransaction when the
	// gateway transaction id has already been recorded.
	CheckTransactionUnused(ctx context.Context, transactionID string) error
	IsTransactionRecorded(ctx context.Context, transactionID string) (bool, error)

	AddPayment(ctx context.Context, p Payment) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetInvoice(ctx context.Context, id uint) (*Invoice, error) {
	if id == 0 {
		return nil, ErrInvoiceNotFound
	}
	return s.repo.GetInvoice(ctx, id)
}

func (s *service) GetClient(ctx context.Context, id uint) (*Client, error) {
	if id == 0 {
		return nil, ErrClientNotFound
	}
	return s.repo.GetClient(ctx, id)
}

func (s *service) CheckInvoicePayable(ctx context.Context, id uint) (*Invoice, error) {
	inv, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	if !inv.Payable() {
		logger.FromCtx(ctx).Warn("invoice is not payable",
			zap.Uint("invoice_id", id),
			zap.String("status", string(inv.Status)),
		)
		return nil, ErrInvoiceNotPayable
	}
	return inv, nil
}

func (s *service) CheckTransactionUnused(ctx context.Context, transactionID string) error {
	used, err := s.IsTransactionRecorded(ctx, transactionID)
	if err != nil {
		return err
	}
	if used {
		return ErrDuplicateTransaction
	}
	return nil
}

func (s *service) IsTransactionRecorded(ctx context.Context, transactionID string) (bool, error) {
	if strings.TrimSpace(transactionID) == "" {
		return false, ErrInvalidPayment
	}
	return s.repo.TransactionExists(ctx, transactionID)
}

func (s *service) AddPayment(ctx context.Context, p Payment) error {
	log := logger.FromCtx(ctx).With(
		zap.Uint("invoice_id", p.InvoiceID),
		zap.String("transaction_id", p.TransactionID),
		zap.String("amount", p.Amount.StringFixed(2)),
		zap.String("gateway", p.Gateway),
	)

	if p.InvoiceID == 0 || strings.TrimSpace(p.TransactionID) == "" || !p.Amount.IsPositive() {
		log.Warn("rejecting invalid payment")
		return ErrInvalidPayment
	}

	paid, err := s.repo.AddPayment(ctx, &p)
	if err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			log.Warn("duplicate transaction rejected by store")
		} else {
			log.Error("failed to record payment", zap.Error(err))
		}
		return err
	}

	log.Info("payment recorded", zap.Bool("invoice_paid", paid))
	return nil
}
