package invoice

import "errors"

var (
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrClientNotFound       = errors.New("client not found")
	ErrInvoiceNotPayable    = errors.New("invoice is not payable")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
	ErrInvalidPayment       = errors.New("invalid payment")

	PgUniqueViolation = "23505"
)
