package payment

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const orderSeparator = "_order_"

// NewMerchantReference builds the mtx sent with a token request:
// 20 hex chars, "_order_", then the invoice id.
func NewMerchantReference(invoiceID uint) (string, error) {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate merchant reference: %w", err)
	}
	return hex.EncodeToString(b) + orderSeparator + strconv.FormatUint(uint64(invoiceID), 10), nil
}

// InvoiceIDFromReference returns the part after "_order_", or ok=false when
// the reference does not carry one.
func InvoiceIDFromReference(ref string) (string, bool) {
	parts := strings.Split(ref, orderSeparator)
	if len(parts) < 2 {
		return "", false
	}
	return parts[1], true
}

// NewOrderReference is the reference embedded in the checkout widget.
func NewOrderReference(invoiceID uint, now time.Time) string {
	return fmt.Sprintf("%d%s%d", invoiceID, orderSeparator, now.Unix())
}
