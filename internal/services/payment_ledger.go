package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/procurepay/backend/internal/audit"
	"github.com/procurepay/backend/internal/catalog"
	"github.com/procurepay/backend/internal/config"
	"github.com/procurepay/backend/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecipientLookup resolves who is told about a payment on an order.
type RecipientLookup interface {
	Resolve(ctx context.Context, order *models.Order) ([]string, error)
}

// ApplyPaymentInput is one payment application against an order.
// Amount is optional for FULL payments and required for ADVANCE.
type ApplyPaymentInput struct {
	OrderID    string             `validate:"required"`
	Kind       models.PaymentKind `validate:"required,oneof=FULL ADVANCE"`
	Amount     *decimal.Decimal
	SourceID   string `validate:"required"`
	ReceiptRef string `validate:"max=512"`
	Comment    string `validate:"max=1000"`
	ActorID    string `validate:"required"`
	Receipt    *ReceiptUpload
}

type ReversePaymentInput struct {
	EntryID string `validate:"required"`
	ActorID string `validate:"required"`
	Comment string `validate:"max=1000"`
}

// PaymentResult is the committed entry and the order as it stands after it.
type PaymentResult struct {
	Entry models.PaymentEntry `json:"entry"`
	Order models.Order        `json:"order"`
}

// PaymentLedgerService appends payment entries to purchase orders. Every write
// happens under the order's row lock so paid_amount never leaves [0, total].
type PaymentLedgerService struct {
	db            *sql.DB
	catalog       *catalog.Store
	receipts      ReceiptStore
	notifier      Notifier
	recipients    RecipientLookup
	audit         *audit.Logger
	validator     *ValidationHelper
	lockTimeout   time.Duration
	notifyTimeout time.Duration
	logger        *zap.Logger
	now           func() time.Time

	pending sync.WaitGroup
}

func NewPaymentLedgerService(
	db *sql.DB,
	catalogStore *catalog.Store,
	receipts ReceiptStore,
	notifier Notifier,
	recipients RecipientLookup,
	auditLogger *audit.Logger,
	settlement *config.SettlementConfig,
	notification *config.NotificationConfig,
	logger *zap.Logger,
) *PaymentLedgerService {
	return &PaymentLedgerService{
		db:            db,
		catalog:       catalogStore,
		receipts:      receipts,
		notifier:      notifier,
		recipients:    recipients,
		audit:         auditLogger,
		validator:     NewValidationHelper(),
		lockTimeout:   settlement.LockTimeout,
		notifyTimeout: notification.Timeout,
		logger:        logger,
		now:           time.Now,
	}
}

// ApplyPayment locks the order, clamps the amount to what is outstanding,
// appends the entry, moves the order status per its payment method and
// commits. Notifications go out after commit and never fail the call.
// A receipt uploaded for a payment that is not recorded is deleted again.
func (s *PaymentLedgerService) ApplyPayment(ctx context.Context, in ApplyPaymentInput) (*PaymentResult, error) {
	if err := s.validateApply(in); err != nil {
		return nil, err
	}

	// The artifact is stored first so a storage failure leaves no ledger trace.
	if in.Receipt == nil {
		return s.applyPayment(ctx, in)
	}
	ref, err := s.receipts.Upload(ctx, *in.Receipt)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, NewDependencyFailure(err, "receipt could not be stored")
	}
	in.ReceiptRef = ref

	result, err := s.applyPayment(ctx, in)
	if err != nil {
		s.discardReceipt(ref, in.OrderID)
		return nil, err
	}
	return result, nil
}

func (s *PaymentLedgerService) discardReceipt(ref, orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.receipts.Delete(ctx, ref); err != nil {
		s.logger.Warn("orphaned receipt could not be deleted",
			zap.String("receipt_ref", ref),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}

func (s *PaymentLedgerService) applyPayment(ctx context.Context, in ApplyPaymentInput) (*PaymentResult, error) {
	snap := s.catalog.Current()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := setLockTimeout(ctx, tx, s.lockTimeout); err != nil {
		return nil, err
	}

	if err := s.checkSource(ctx, tx, in.SourceID); err != nil {
		return nil, err
	}

	order, err := lockOrder(ctx, tx, in.OrderID)
	if err != nil {
		return nil, err
	}

	if order.Status.Terminal() {
		return nil, NewConflictError("order %s is %s and accepts no payments", order.ID, order.Status)
	}

	policy, ok := snap.PaymentMethod(order.PaymentMethod)
	if !ok {
		return nil, NewValidationError("order %s has unknown payment method %q", order.ID, order.PaymentMethod)
	}
	if policy.RequiresReceipt && in.ReceiptRef == "" {
		return nil, NewValidationError("payment method %s requires a receipt", policy.Code)
	}

	outstanding := order.Outstanding()
	if !outstanding.IsPositive() {
		return nil, NewConflictError("order %s is already fully settled", order.ID)
	}

	amount := outstanding
	if in.Amount != nil {
		amount = models.MinAmount(*in.Amount, outstanding)
	}

	previousVersion := order.Version
	previousStatus := order.Status
	updated := *order
	updated.PaidAmount = order.PaidAmount.Add(amount)

	transition := NextStatus(policy, order.Status, in.ReceiptRef != "", updated.Settled())
	if !snap.OrderStatusEnabled(transition.Status) {
		return nil, NewConflictError("status transition %s -> %s is not allowed for order %s",
			order.Status, transition.Status, order.ID)
	}
	updated.Status = transition.Status
	if transition.RecordReceipt {
		updated.ReceiptRef = in.ReceiptRef
	}

	now := s.now().UTC()
	entry := models.PaymentEntry{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		Kind:       in.Kind,
		Amount:     amount,
		SourceID:   in.SourceID,
		ReceiptRef: in.ReceiptRef,
		Comment:    in.Comment,
		ActorID:    in.ActorID,
		CreatedAt:  now,
	}

	if err := insertPaymentEntry(ctx, tx, &entry); err != nil {
		return nil, err
	}
	if err := updateLockedOrder(ctx, tx, &updated, previousVersion, now); err != nil {
		return nil, err
	}
	if err := s.audit.LogPayment(ctx, tx, order.ID, entry.ID, in.ActorID, amount, in.SourceID, in.ReceiptRef); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isLockTimeout(err) {
			return nil, NewConcurrencyTimeout(err, "payment on order %s timed out, retry later", order.ID)
		}
		return nil, fmt.Errorf("commit payment: %w", err)
	}

	s.logger.Info("payment applied",
		zap.String("order_id", order.ID),
		zap.String("entry_id", entry.ID),
		zap.String("actor_id", in.ActorID),
		zap.String("kind", string(in.Kind)),
		zap.String("amount", amount.String()),
		zap.String("status_from", string(previousStatus)),
		zap.String("status_to", string(updated.Status)),
	)

	s.notifyAsync(updated,
		fmt.Sprintf("Payment recorded on order %s", updated.Number),
		fmt.Sprintf("A %s payment of %s %s was recorded on order %s. Paid %s of %s. Status: %s.",
			entry.Kind, entry.Amount.StringFixed(2), updated.Currency, updated.Number,
			updated.PaidAmount.StringFixed(2), updated.Total.StringFixed(2), updated.Status),
	)

	return &PaymentResult{Entry: entry, Order: updated}, nil
}

// ReversePayment appends a REVERSAL entry cancelling entryID. The original
// entry is left untouched and can be reversed once.
func (s *PaymentLedgerService) ReversePayment(ctx context.Context, in ReversePaymentInput) (*PaymentResult, error) {
	if err := s.validator.ValidateStruct(in); err != nil {
		return nil, newFieldValidationError(err, "invalid reversal")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := setLockTimeout(ctx, tx, s.lockTimeout); err != nil {
		return nil, err
	}

	original, err := getPaymentEntry(ctx, tx, in.EntryID)
	if err != nil {
		return nil, err
	}
	if original.Kind == models.PaymentKindReversal {
		return nil, NewConflictError("entry %s is itself a reversal", original.ID)
	}

	order, err := lockOrder(ctx, tx, original.OrderID)
	if err != nil {
		return nil, err
	}

	var reversed bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_entries WHERE reversal_of = $1)`, original.ID).Scan(&reversed)
	if err != nil {
		return nil, fmt.Errorf("check reversal of %s: %w", original.ID, err)
	}
	if reversed {
		return nil, NewConflictError("entry %s is already reversed", original.ID)
	}

	previousVersion := order.Version
	updated := *order
	updated.PaidAmount = order.PaidAmount.Sub(original.Amount)
	if updated.PaidAmount.IsNegative() {
		return nil, NewConflictError("reversing entry %s would leave order %s with a negative paid amount",
			original.ID, order.ID)
	}

	now := s.now().UTC()
	originalID := original.ID
	entry := models.PaymentEntry{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		Kind:       models.PaymentKindReversal,
		Amount:     original.Amount.Neg(),
		SourceID:   original.SourceID,
		Comment:    in.Comment,
		ReversalOf: &originalID,
		ActorID:    in.ActorID,
		CreatedAt:  now,
	}

	if err := insertPaymentEntry(ctx, tx, &entry); err != nil {
		if isUniqueViolation(err) {
			return nil, NewConflictError("entry %s is already reversed", original.ID)
		}
		return nil, err
	}
	if err := updateLockedOrder(ctx, tx, &updated, previousVersion, now); err != nil {
		return nil, err
	}
	if err := s.audit.LogReversal(ctx, tx, order.ID, entry.ID, original.ID, in.ActorID, entry.Amount); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isLockTimeout(err) {
			return nil, NewConcurrencyTimeout(err, "reversal on order %s timed out, retry later", order.ID)
		}
		return nil, fmt.Errorf("commit reversal: %w", err)
	}

	s.logger.Info("payment reversed",
		zap.String("order_id", order.ID),
		zap.String("entry_id", entry.ID),
		zap.String("reversed_entry_id", original.ID),
		zap.String("actor_id", in.ActorID),
	)

	s.notifyAsync(updated,
		fmt.Sprintf("Payment reversed on order %s", updated.Number),
		fmt.Sprintf("A payment of %s %s on order %s was reversed. Paid %s of %s.",
			original.Amount.StringFixed(2), updated.Currency, updated.Number,
			updated.PaidAmount.StringFixed(2), updated.Total.StringFixed(2)),
	)

	return &PaymentResult{Entry: entry, Order: updated}, nil
}

// ListPayments returns the order's entries oldest first.
func (s *PaymentLedgerService) ListPayments(ctx context.Context, orderID string) ([]models.PaymentEntry, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check order %s: %w", orderID, err)
	}
	if !exists {
		return nil, NewNotFoundError("order %s not found", orderID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paymentEntryColumns+`
		FROM payment_entries
		WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments for %s: %w", orderID, err)
	}
	defer rows.Close()

	entries := []models.PaymentEntry{}
	for rows.Next() {
		entry, err := scanPaymentEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// GetPaymentEntry returns one entry together with its order.
func (s *PaymentLedgerService) GetPaymentEntry(ctx context.Context, entryID string) (*models.PaymentEntry, *models.Order, error) {
	entry, err := getPaymentEntry(ctx, s.db, entryID)
	if err != nil {
		return nil, nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1`, entry.OrderID)
	order, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, NewNotFoundError("order %s not found", entry.OrderID)
		}
		return nil, nil, fmt.Errorf("load order %s: %w", entry.OrderID, err)
	}
	return entry, order, nil
}

// WaitForNotifications blocks until every post-commit notification has finished.
func (s *PaymentLedgerService) WaitForNotifications() {
	s.pending.Wait()
}

func (s *PaymentLedgerService) validateApply(in ApplyPaymentInput) error {
	if err := s.validator.ValidateStruct(in); err != nil {
		return newFieldValidationError(err, "invalid payment")
	}
	if in.Kind == models.PaymentKindAdvance && in.Amount == nil {
		return NewValidationError("advance payment requires an amount")
	}
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return NewValidationError("amount must be positive, got %s", in.Amount.String())
		}
		if !in.Amount.Equal(models.RoundAmount(*in.Amount)) {
			return NewValidationError("amount %s has more than %d decimal places", in.Amount.String(), models.AmountScale)
		}
	}
	if in.Receipt != nil && in.ReceiptRef != "" {
		return NewValidationError("provide either a receipt or a receipt reference, not both")
	}
	return nil
}

func (s *PaymentLedgerService) checkSource(ctx context.Context, tx *sql.Tx, sourceID string) error {
	var active bool
	err := tx.QueryRowContext(ctx, `SELECT active FROM payment_sources WHERE id = $1`, sourceID).Scan(&active)
	if err != nil {
		if err == sql.ErrNoRows {
			return NewNotFoundError("payment source %s not found", sourceID)
		}
		return fmt.Errorf("load payment source %s: %w", sourceID, err)
	}
	if !active {
		return NewValidationError("payment source %s is not active", sourceID)
	}
	return nil
}

func (s *PaymentLedgerService) notifyAsync(order models.Order, subject, body string) {
	if s.notifier == nil || s.recipients == nil {
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		recipients, err := s.recipients.Resolve(ctx, &order)
		if err != nil {
			s.logger.Warn("resolve notification recipients failed", zap.String("order_id", order.ID), zap.Error(err))
			return
		}
		if err := s.notifier.Notify(ctx, recipients, subject, body); err != nil {
			s.logger.Warn("payment notification failed", zap.String("order_id", order.ID), zap.Error(err))
		}
	}()
}

const paymentEntryColumns = `id, order_id, kind, amount, source_id, receipt_ref, comment, reversal_of, actor_id, created_at`

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanPaymentEntry(row rowScanner) (*models.PaymentEntry, error) {
	var e models.PaymentEntry
	var kind string
	var receipt, comment, reversalOf sql.NullString
	if err := row.Scan(&e.ID, &e.OrderID, &kind, &e.Amount, &e.SourceID, &receipt, &comment,
		&reversalOf, &e.ActorID, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Kind = models.PaymentKind(kind)
	e.ReceiptRef = receipt.String
	e.Comment = comment.String
	if reversalOf.Valid {
		e.ReversalOf = &reversalOf.String
	}
	return &e, nil
}

func getPaymentEntry(ctx context.Context, q queryRower, entryID string) (*models.PaymentEntry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+paymentEntryColumns+` FROM payment_entries WHERE id = $1`, entryID)
	entry, err := scanPaymentEntry(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, NewNotFoundError("payment entry %s not found", entryID)
		}
		return nil, fmt.Errorf("load payment entry %s: %w", entryID, err)
	}
	return entry, nil
}

func insertPaymentEntry(ctx context.Context, tx *sql.Tx, e *models.PaymentEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_entries (id, order_id, kind, amount, source_id, receipt_ref, comment, reversal_of, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.OrderID, string(e.Kind), e.Amount.String(), e.SourceID,
		nullString(e.ReceiptRef), nullString(e.Comment), e.ReversalOf, e.ActorID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment entry: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
