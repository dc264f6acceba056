package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
)

// Repository is the gateway audit log.
type Repository interface {
	LogTransaction(ctx context.Context, gateway string, data map[string]any, result string) error
	ListByInvoice(ctx context.Context, invoiceID uint) ([]LogEntry, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) LogTransaction(ctx context.Context, gateway string, data map[string]any, result string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal log data: %w", err)
	}

	const q = `
	INSERT INTO gateway_log (gateway, result, invoice_id, data)
	VALUES ($1, $2, $3, $4);
	`

	_, err = r.db.ExecContext(ctx, q, gateway, result, invoiceRef(data), payload)
	return err
}

// invoiceRef pulls the invoice id out of a log payload so entries can be
// listed per invoice. Values are stored as received.
func invoiceRef(data map[string]any) sql.NullString {
	v, ok := data["invoice_id"]
	if !ok || v == nil {
		return sql.NullString{}
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case uint:
		s = strconv.FormatUint(uint64(t), 10)
	default:
		s = fmt.Sprint(t)
	}
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (r *repository) ListByInvoice(ctx context.Context, invoiceID uint) ([]LogEntry, error) {
	const q = `
	SELECT id, gateway, result, invoice_id, data, created_at
	FROM gateway_log
	WHERE invoice_id = $1
	ORDER BY created_at ASC, id ASC;
	`

	rows, err := r.db.QueryContext(ctx, q, strconv.FormatUint(uint64(invoiceID), 10))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var (
			e   LogEntry
			inv sql.NullString
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.Gateway, &e.Result, &inv, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.InvoiceID = inv.String
		e.Data = json.RawMessage(raw)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
