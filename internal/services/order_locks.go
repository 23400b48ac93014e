package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/procurepay/backend/internal/models"
)

// Both the payment ledger and the distribution adapter write purchase_orders
// rows. They go through these helpers so every writer takes the same
// FOR UPDATE lock, bounded by lock_timeout, in ascending id order.

const orderColumns = `id, number, supplier_id, requester_email, total, paid_amount, currency,
		       status, payment_method, receipt_ref, version, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var requester, receipt sql.NullString
	var status string
	if err := row.Scan(&o.ID, &o.Number, &o.SupplierID, &requester, &o.Total, &o.PaidAmount,
		&o.Currency, &status, &o.PaymentMethod, &receipt, &o.Version, &o.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", o.ID, err)
	}
	o.Status = parsed
	o.RequesterEmail = requester.String
	o.ReceiptRef = receipt.String
	return &o, nil
}

// setLockTimeout bounds how long statements in tx wait for row locks.
func setLockTimeout(ctx context.Context, tx *sql.Tx, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	// SET does not take bind parameters; the value is an integer we format.
	_, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds()))
	if err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	return nil
}

func lockOrder(ctx context.Context, tx *sql.Tx, orderID string) (*models.Order, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM purchase_orders
		WHERE id = $1
		FOR UPDATE`, orderID)

	order, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, NewNotFoundError("order %s not found", orderID)
		}
		if isLockTimeout(err) {
			return nil, NewConcurrencyTimeout(err, "order %s is locked by another operation, retry later", orderID)
		}
		return nil, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	return order, nil
}

// lockOrders locks every order in ascending id order so two writers touching
// overlapping sets cannot deadlock.
func lockOrders(ctx context.Context, tx *sql.Tx, orderIDs []string) ([]*models.Order, error) {
	ids := make([]string, len(orderIDs))
	copy(ids, orderIDs)
	sort.Strings(ids)

	orders := make([]*models.Order, 0, len(ids))
	for _, id := range ids {
		order, err := lockOrder(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// updateLockedOrder writes the mutable columns of an order locked in tx.
func updateLockedOrder(ctx context.Context, tx *sql.Tx, order *models.Order, expectedVersion int, now time.Time) error {
	if err := order.CheckInvariants(); err != nil {
		return err
	}

	var receipt any
	if order.ReceiptRef != "" {
		receipt = order.ReceiptRef
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE purchase_orders
		SET paid_amount = $1, status = $2, receipt_ref = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`,
		order.PaidAmount.String(), string(order.Status), receipt, now, order.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for order %s", order.ID)
	}

	order.Version = expectedVersion + 1
	order.UpdatedAt = now
	return nil
}

// touchLockedOrder bumps the version of an order whose dependent rows changed.
func touchLockedOrder(ctx context.Context, tx *sql.Tx, order *models.Order, now time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE purchase_orders SET version = version + 1, updated_at = $1
		WHERE id = $2 AND version = $3`,
		now, order.ID, order.Version)
	if err != nil {
		return fmt.Errorf("touch order %s: %w", order.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for order %s", order.ID)
	}
	order.Version++
	order.UpdatedAt = now
	return nil
}
