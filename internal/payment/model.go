package payment

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TokenRequest is the payment_token creation payload.
type TokenRequest struct {
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Mtx           string `json:"mtx"`
	ContactNumber string `json:"contact_number"`
	EmailID       string `json:"email_id"`
	CallbackURL   string `json:"callback_url"`
}

type TokenResponse struct {
	ID  string
	Raw json.RawMessage
}

// StatusResponse is a decoded gateway reply. Data is nil when the body was
// not a JSON object.
type StatusResponse struct {
	StatusCode int
	Data       map[string]any
	Raw        []byte
}

// Field returns a top-level field as a string. Numbers are formatted
// without exponent; anything else yields "".
func (r *StatusResponse) Field(key string) string {
	if r == nil || r.Data == nil {
		return ""
	}
	switch v := r.Data[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func (r *StatusResponse) Status() string {
	return r.Field("status")
}

// Decoded is the body as an untyped JSON value, nil when it was not JSON.
func (r *StatusResponse) Decoded() any {
	if r == nil || r.Data == nil {
		return nil
	}
	return r.Data
}

const (
	StatusCaptured = "captured"

	RefundStatusSuccess = "success"
	RefundStatusError   = "error"
)

type RefundResult struct {
	Status  string `json:"status"`
	TransID string `json:"transid,omitempty"`
	RawData string `json:"rawdata"`
}

// Audit log categories.
const (
	LogResultError    = "Error"
	LogResultResponse = "Response"
	LogResultSuccess  = "Success"
	LogResultRefund   = "Refund"
)

type LogEntry struct {
	ID        int64           `json:"id"`
	Gateway   string          `json:"gateway"`
	Result    string          `json:"result"`
	InvoiceID string          `json:"invoice_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Outcome is the resolved result of verifying a payment token.
type Outcome int

const (
	OutcomeMissingToken Outcome = iota
	OutcomeTransportFailure
	OutcomeCaptured
	OutcomeAlreadyRecorded
	OutcomeNotCaptured
	OutcomeInvoiceRejected
	OutcomeStoreFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMissingToken:
		return "missing_token"
	case OutcomeTransportFailure:
		return "transport_failure"
	case OutcomeCaptured:
		return "captured"
	case OutcomeAlreadyRecorded:
		return "already_recorded"
	case OutcomeNotCaptured:
		return "not_captured"
	case OutcomeInvoiceRejected:
		return "invoice_rejected"
	case OutcomeStoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

// Paid reports whether the customer should land on the success page.
func (o Outcome) Paid() bool {
	return o == OutcomeCaptured || o == OutcomeAlreadyRecorded
}

type VerifyRequest struct {
	Action       string
	PaymentToken string
	// InvoiceID is kept as received; it is only parsed when the payment is
	// recorded.
	InvoiceID string
	OrderRef  string
}

type VerifyResult struct {
	Outcome       Outcome
	InvoiceID     string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
}

type CreateTokenInput struct {
	InvoiceID uint
	OrderRef  string
}
