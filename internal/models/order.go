package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the closed set of purchase order states.
type OrderStatus string

const (
	OrderStatusDraft                OrderStatus = "DRAFT"
	OrderStatusIssued               OrderStatus = "ISSUED"
	OrderStatusAwaitingConfirmation OrderStatus = "AWAITING_CONFIRMATION"
	OrderStatusApproved             OrderStatus = "APPROVED"
	OrderStatusPartiallyPaid        OrderStatus = "PARTIALLY_PAID"
	OrderStatusPaid                 OrderStatus = "PAID"
	OrderStatusReceived             OrderStatus = "RECEIVED"
	OrderStatusClosed               OrderStatus = "CLOSED"
	OrderStatusCancelled            OrderStatus = "CANCELLED"
)

var orderStatuses = map[OrderStatus]bool{
	OrderStatusDraft:                true,
	OrderStatusIssued:               true,
	OrderStatusAwaitingConfirmation: true,
	OrderStatusApproved:             true,
	OrderStatusPartiallyPaid:        true,
	OrderStatusPaid:                 true,
	OrderStatusReceived:             true,
	OrderStatusClosed:               true,
	OrderStatusCancelled:            true,
}

// ParseOrderStatus validates a raw status code coming from the store or a request.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(raw)
	if !orderStatuses[s] {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return s, nil
}

// Terminal reports whether no further payments may be applied in this status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusClosed
}

// RequisitionStatus is the closed set of purchase requisition states.
type RequisitionStatus string

const (
	RequisitionStatusDraft     RequisitionStatus = "DRAFT"
	RequisitionStatusSubmitted RequisitionStatus = "SUBMITTED"
	RequisitionStatusApproved  RequisitionStatus = "APPROVED"
	RequisitionStatusRejected  RequisitionStatus = "REJECTED"
	RequisitionStatusConverted RequisitionStatus = "CONVERTED"
)

var requisitionStatuses = map[RequisitionStatus]bool{
	RequisitionStatusDraft:     true,
	RequisitionStatusSubmitted: true,
	RequisitionStatusApproved:  true,
	RequisitionStatusRejected:  true,
	RequisitionStatusConverted: true,
}

// ParseRequisitionStatus validates a raw requisition status code.
func ParseRequisitionStatus(raw string) (RequisitionStatus, error) {
	s := RequisitionStatus(raw)
	if !requisitionStatuses[s] {
		return "", fmt.Errorf("unknown requisition status %q", raw)
	}
	return s, nil
}

// Order is the purchase order aggregate. PaidAmount only moves under the
// order's row lock and stays within [0, Total].
type Order struct {
	ID             string          `json:"id" db:"id"`
	Number         string          `json:"number" db:"number"`
	SupplierID     string          `json:"supplier_id" db:"supplier_id"`
	RequesterEmail string          `json:"requester_email,omitempty" db:"requester_email"`
	Total          decimal.Decimal `json:"total" db:"total"`
	PaidAmount     decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	Currency       string          `json:"currency" db:"currency"`
	Status         OrderStatus     `json:"status" db:"status"`
	PaymentMethod  string          `json:"payment_method" db:"payment_method"`
	ReceiptRef     string          `json:"receipt_ref,omitempty" db:"receipt_ref"`
	Version        int             `json:"version" db:"version"` // bumped on every locked write
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Outstanding returns Total - PaidAmount.
func (o *Order) Outstanding() decimal.Decimal {
	return o.Total.Sub(o.PaidAmount)
}

// Settled reports whether nothing remains to be paid.
func (o *Order) Settled() bool {
	return !o.Outstanding().IsPositive()
}

// CheckInvariants verifies 0 <= PaidAmount <= Total.
func (o *Order) CheckInvariants() error {
	if o.PaidAmount.IsNegative() {
		return fmt.Errorf("order %s: paid amount %s is negative", o.ID, o.PaidAmount)
	}
	if o.PaidAmount.GreaterThan(o.Total) {
		return fmt.Errorf("order %s: paid amount %s exceeds total %s", o.ID, o.PaidAmount, o.Total)
	}
	return nil
}
