package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentKind string

const (
	PaymentKindFull     PaymentKind = "FULL"
	PaymentKindAdvance  PaymentKind = "ADVANCE"
	PaymentKindReversal PaymentKind = "REVERSAL"
)

// PaymentEntry is an immutable ledger row. Reversals are new rows with a
// negative amount pointing at the entry they cancel.
type PaymentEntry struct {
	ID         string          `json:"id" db:"id"`
	OrderID    string          `json:"order_id" db:"order_id"`
	Kind       PaymentKind     `json:"kind" db:"kind"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	SourceID   string          `json:"source_id" db:"source_id"`
	ReceiptRef string          `json:"receipt_ref,omitempty" db:"receipt_ref"`
	Comment    string          `json:"comment,omitempty" db:"comment"`
	ReversalOf *string         `json:"reversal_of,omitempty" db:"reversal_of"`
	ActorID    string          `json:"actor_id" db:"actor_id"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// PaymentSource is a bank account or card the buyer pays from.
type PaymentSource struct {
	ID     string `json:"id" db:"id"`
	Active bool   `json:"active" db:"active"`
}
