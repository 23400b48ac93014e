package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DistributionRequest asks for TotalAmount (freight, duties, ...) to be spread
// over the lines of the target orders.
type DistributionRequest struct {
	ID             string          `json:"id" db:"id" validate:"required"`
	TotalAmount    decimal.Decimal `json:"total_amount" db:"total_amount"`
	Currency       string          `json:"currency" db:"currency" validate:"required,len=3"`
	TargetOrderIDs []string        `json:"target_order_ids" validate:"required,min=1,dive,required"`
	Description    string          `json:"description,omitempty" db:"description"`
	ActorID        string          `json:"actor_id,omitempty" db:"actor_id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// WeightedLine is one allocation target. Transient.
type WeightedLine struct {
	LineID        string          `json:"line_id" validate:"required"`
	TargetOrderID string          `json:"target_order_id" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Currency      string          `json:"currency" validate:"required,len=3"`
}

type DistributionLineItem struct {
	ID                  string          `json:"id" db:"id"`
	RequestID           string          `json:"request_id" db:"request_id"`
	TargetOrderID       string          `json:"target_order_id" db:"target_order_id"`
	LineID              string          `json:"line_id" db:"line_id"`
	BaseCost            decimal.Decimal `json:"base_cost" db:"base_cost"`
	BaseCurrency        string          `json:"base_currency" db:"base_currency"`
	FXRateToReference   decimal.Decimal `json:"fx_rate_to_reference" db:"fx_rate_to_reference"`
	NormalizedBaseCost  decimal.Decimal `json:"normalized_base_cost" db:"normalized_base_cost"`
	AllocatedPercentage decimal.Decimal `json:"allocated_percentage" db:"allocated_percentage"`
	AllocatedAmount     decimal.Decimal `json:"allocated_amount" db:"allocated_amount"`
	AllocatedCurrency   string          `json:"allocated_currency" db:"allocated_currency"`
}

// OrderRollup is the per-order sum of allocated amounts of one request.
type OrderRollup struct {
	OrderID  string          `json:"order_id" db:"order_id"`
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	Currency string          `json:"currency" db:"currency"`
}
