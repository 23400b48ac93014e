package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("PARTIALLY_PAID")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPartiallyPaid, st)

	_, err = ParseOrderStatus("partially_paid")
	assert.Error(t, err)

	assert.True(t, OrderStatusCancelled.Terminal())
	assert.True(t, OrderStatusClosed.Terminal())
	assert.False(t, OrderStatusPaid.Terminal())
}

func TestOrder_Invariants(t *testing.T) {
	order := &Order{ID: "po-1", Total: decimal.RequireFromString("300"), PaidAmount: decimal.RequireFromString("250")}
	assert.NoError(t, order.CheckInvariants())
	assert.True(t, order.Outstanding().Equal(decimal.NewFromInt(50)))
	assert.False(t, order.Settled())

	order.PaidAmount = decimal.RequireFromString("300")
	assert.True(t, order.Settled())

	order.PaidAmount = decimal.RequireFromString("300.0001")
	assert.Error(t, order.CheckInvariants())

	order.PaidAmount = decimal.RequireFromString("-0.0001")
	assert.Error(t, order.CheckInvariants())
}

func TestRoundAmount(t *testing.T) {
	assert.Equal(t, "1.2346", RoundAmount(decimal.RequireFromString("1.23455")).String())
	assert.Equal(t, "-1.2346", RoundAmount(decimal.RequireFromString("-1.23455")).String())
	assert.True(t, MinAmount(decimal.NewFromInt(5), decimal.NewFromInt(3)).Equal(decimal.NewFromInt(3)))
}
