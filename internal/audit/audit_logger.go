package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	ActorID    string            `json:"actor_id"`
	Amount     *decimal.Decimal  `json:"amount,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Logger appends audit rows to audit_log and mirrors them to the process log.
type Logger struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger, now: time.Now}
}

func (a *Logger) LogPayment(ctx context.Context, tx *sql.Tx, orderID, entryID, actorID string, amount decimal.Decimal, sourceID, receiptRef string) error {
	return a.record(ctx, tx, Event{
		EventType:  "PAYMENT_APPLIED",
		EntityType: "purchase_order",
		EntityID:   orderID,
		ActorID:    actorID,
		Amount:     &amount,
		Details: map[string]string{
			"entry_id":    entryID,
			"source_id":   sourceID,
			"receipt_ref": receiptRef,
		},
	})
}

func (a *Logger) LogReversal(ctx context.Context, tx *sql.Tx, orderID, entryID, reversedEntryID, actorID string, amount decimal.Decimal) error {
	return a.record(ctx, tx, Event{
		EventType:  "PAYMENT_REVERSED",
		EntityType: "purchase_order",
		EntityID:   orderID,
		ActorID:    actorID,
		Amount:     &amount,
		Details: map[string]string{
			"entry_id":    entryID,
			"reversal_of": reversedEntryID,
		},
	})
}

func (a *Logger) LogDistribution(ctx context.Context, tx *sql.Tx, requestID, actorID string, total decimal.Decimal, currency string, lineCount int) error {
	return a.record(ctx, tx, Event{
		EventType:  "COST_DISTRIBUTED",
		EntityType: "distribution_request",
		EntityID:   requestID,
		ActorID:    actorID,
		Amount:     &total,
		Details: map[string]string{
			"currency":   currency,
			"line_count": fmt.Sprintf("%d", lineCount),
		},
	})
}

// LogOperation records an administrative action outside any business transaction.
func (a *Logger) LogOperation(ctx context.Context, db *sql.DB, entityType, entityID, actorID, operation string, details map[string]string) error {
	return a.record(ctx, db, Event{
		EventType:  operation,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Details:    details,
	})
}

// LogError only writes to the process log; failed operations leave no rows.
func (a *Logger) LogError(entityType, entityID string, err error) {
	a.logger.Error("AUDIT",
		zap.String("event_type", "ERROR"),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID),
		zap.Error(err),
	)
}

// execer is satisfied by *sql.DB and *sql.Tx, so audit rows join the
// caller's transaction when there is one.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (a *Logger) record(ctx context.Context, exec execer, event Event) error {
	event.Timestamp = a.now()

	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	var amount any
	if event.Amount != nil {
		amount = event.Amount.String()
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, entity_type, entity_id, actor_id, amount, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.EventType, event.EntityType, event.EntityID, event.ActorID, amount, string(details), event.Timestamp)
	if err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}

	a.logger.Info("AUDIT",
		zap.String("event_type", event.EventType),
		zap.String("entity_type", event.EntityType),
		zap.String("entity_id", event.EntityID),
		zap.String("actor_id", event.ActorID),
		zap.Any("details", event.Details),
	)
	return nil
}
