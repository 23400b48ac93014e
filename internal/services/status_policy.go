package services

import (
	"github.com/procurepay/backend/internal/catalog"
	"github.com/procurepay/backend/internal/models"
)

// StatusTransition is the outcome of applying a payment under a method policy.
type StatusTransition struct {
	Status        models.OrderStatus
	RecordReceipt bool
}

// NextStatus evaluates the payment method's rules, first match wins:
//  1. confirmation step pending and a receipt is attached: confirmed status, receipt recorded
//  2. order settled by this payment: settled status
//  3. method default post-payment status
//  4. unchanged
func NextStatus(policy catalog.PaymentMethodPolicy, current models.OrderStatus, hasReceipt, settled bool) StatusTransition {
	if policy.RequiresConfirmation && current == policy.ConfirmationStatus && hasReceipt && policy.ConfirmedStatus != "" {
		return StatusTransition{Status: policy.ConfirmedStatus, RecordReceipt: true}
	}
	if settled && policy.SettledStatus != "" {
		return StatusTransition{Status: policy.SettledStatus}
	}
	if policy.PostPaymentStatus != "" {
		return StatusTransition{Status: policy.PostPaymentStatus}
	}
	return StatusTransition{Status: current}
}
