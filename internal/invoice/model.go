package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusUnpaid    Status = "Unpaid"
	StatusPaid      Status = "Paid"
	StatusCancelled Status = "Cancelled"
	StatusRefunded  Status = "Refunded"
)

// Invoice is owned by the host platform; the gateway only reads it and
// records payments against it.
type Invoice struct {
	ID        uint
	UserID    uint
	Total     decimal.Decimal
	Currency  string
	Status    Status
	DatePaid  *time.Time
	CreatedAt time.Time
}

func (i *Invoice) Payable() bool {
	return i.Status == StatusUnpaid
}

type Client struct {
	ID          uint
	Email       string
	PhoneNumber string
}

type Payment struct {
	InvoiceID     uint
	TransactionID string
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	Gateway       string
}
