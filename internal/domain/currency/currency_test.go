package currency

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCurrency(t *testing.T) {
	hospitalID := uuid.New()

	t.Run("success", func(t *testing.T) {
		c, err := NewCurrency(hospitalID, "EUR", decimal.RequireFromString("1.08"), false)
		require.NoError(t, err)
		assert.Equal(t, "EUR", c.Code)
		assert.False(t, c.IsBase)
	})

	t.Run("bad code", func(t *testing.T) {
		_, err := NewCurrency(hospitalID, "EURO", decimal.NewFromInt(1), false)
		assert.ErrorIs(t, err, ErrInvalidCode)
	})

	t.Run("non-positive rate", func(t *testing.T) {
		_, err := NewCurrency(hospitalID, "EUR", decimal.Zero, false)
		assert.ErrorIs(t, err, ErrInvalidRate)
	})
}

func TestCurrency_ToBaseCents(t *testing.T) {
	t.Run("base currency passes through", func(t *testing.T) {
		c := &Currency{Code: "USD", ExchangeRate: decimal.NewFromInt(1), IsBase: true}
		assert.Equal(t, int64(12345), c.ToBaseCents(12345))
	})

	t.Run("fractional result floors", func(t *testing.T) {
		c := &Currency{Code: "EUR", ExchangeRate: decimal.RequireFromString("1.0857")}
		// 999 * 1.0857 = 1084.6143
		assert.Equal(t, int64(1084), c.ToBaseCents(999))
	})
}
