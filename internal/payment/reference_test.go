package payment

import (
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMerchantReference(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-f]{20}_order_1042$`)

	ref, err := NewMerchantReference(1042)
	require.NoError(t, err)
	assert.Regexp(t, pattern, ref)

	other, err := NewMerchantReference(1042)
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)
}

func TestInvoiceIDFromReference(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		for _, id := range []uint{1, 42, 1042, 987654321} {
			ref, err := NewMerchantReference(id)
			require.NoError(t, err)

			got, ok := InvoiceIDFromReference(ref)
			assert.True(t, ok)
			assert.Equal(t, strconv.FormatUint(uint64(id), 10), got)
		}
	})

	t.Run("NoSeparator", func(t *testing.T) {
		_, ok := InvoiceIDFromReference("abcdef")
		assert.False(t, ok)
	})

	t.Run("Empty", func(t *testing.T) {
		_, ok := InvoiceIDFromReference("")
		assert.False(t, ok)
	})

	t.Run("TrailingSeparator", func(t *testing.T) {
		got, ok := InvoiceIDFromReference("abc_order_")
		assert.True(t, ok)
		assert.Equal(t, "", got)
	})
}

func TestNewOrderReference(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.Equal(t, "1042_order_1700000000", NewOrderReference(1042, now))
}
