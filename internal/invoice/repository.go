package invoice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Repository interface {
	GetInvoice(ctx context.Context, id uint) (*Invoice, error)
	GetClient(ctx context.Context, id uint) (*Client, error)
	TransactionExists(ctx context.Context, transactionID string) (bool, error)

	// AddPayment stores the payment and flips the invoice to Paid once the
	// recorded payments cover its total. It reports whether that happened.
	AddPayment(ctx context.Context, p *Payment) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetInvoice(ctx context.Context, id uint) (*Invoice, error) {
	const q = `
		SELECT id, user_id, total, currency, status, date_paid, created_at
		FROM invoices
		WHERE id = $1
	`

	var (
		inv      Invoice
		datePaid sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&inv.ID, &inv.UserID, &inv.Total, &inv.Currency, &inv.Status, &datePaid, &inv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice %d: %w", id, err)
	}
	if datePaid.Valid {
		inv.DatePaid = &datePaid.Time
	}

	return &inv, nil
}

func (r *repository) GetClient(ctx context.Context, id uint) (*Client, error) {
	const q = `
		SELECT id, email, phone_number
		FROM clients
		WHERE id = $1
	`

	var c Client
	err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Email, &c.PhoneNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client %d: %w", id, err)
	}

	return &c, nil
}

func (r *repository) TransactionExists(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM invoice_payments WHERE transaction_id = $1)`,
		transactionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check transaction %s: %w", transactionID, err)
	}
	return exists, nil
}

func (r *repository) AddPayment(ctx context.Context, p *Payment) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var total decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`SELECT total FROM invoices WHERE id = $1 FOR UPDATE`,
		p.InvoiceID,
	).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrInvoiceNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lock invoice %d: %w", p.InvoiceID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoice_payments (invoice_id, transaction_id, amount, fee, gateway)
		VALUES ($1, $2, $3, $4, $5)
	`, p.InvoiceID, p.TransactionID, p.Amount, p.Fee, p.Gateway)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == PgUniqueViolation {
			return false, ErrDuplicateTransaction
		}
		return false, fmt.Errorf("insert payment: %w", err)
	}

	var paidSum decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM invoice_payments WHERE invoice_id = $1`,
		p.InvoiceID,
	).Scan(&paidSum)
	if err != nil {
		return false, fmt.Errorf("sum payments: %w", err)
	}

	paid := paidSum.GreaterThanOrEqual(total)
	if paid {
		_, err = tx.ExecContext(ctx, `
			UPDATE invoices
			SET status = $1, date_paid = NOW(), payment_method = $2
			WHERE id = $3
		`, StatusPaid, p.Gateway, p.InvoiceID)
		if err != nil {
			return false, fmt.Errorf("mark invoice paid: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return paid, nil
}
