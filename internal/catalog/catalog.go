package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/procurepay/backend/internal/audit"
	"github.com/procurepay/backend/internal/models"
	"go.uber.org/zap"
)

// PaymentMethodPolicy decides the order status after a payment is applied.
// Empty status fields mean "leave the status as it is".
type PaymentMethodPolicy struct {
	Code                 string             `json:"code"`
	RequiresConfirmation bool               `json:"requires_confirmation"`
	RequiresReceipt      bool               `json:"requires_receipt"`
	ConfirmationStatus   models.OrderStatus `json:"confirmation_status,omitempty"`
	ConfirmedStatus      models.OrderStatus `json:"confirmed_status,omitempty"`
	PostPaymentStatus    models.OrderStatus `json:"post_payment_status,omitempty"`
	SettledStatus        models.OrderStatus `json:"settled_status,omitempty"`
}

// Snapshot is a read-only view of the enabled statuses and payment methods.
type Snapshot struct {
	loadedAt            time.Time
	orderStatuses       map[models.OrderStatus]bool
	requisitionStatuses map[models.RequisitionStatus]bool
	paymentMethods      map[string]PaymentMethodPolicy
}

func NewSnapshot(orderStatuses []models.OrderStatus, requisitionStatuses []models.RequisitionStatus, methods []PaymentMethodPolicy, loadedAt time.Time) *Snapshot {
	s := &Snapshot{
		loadedAt:            loadedAt,
		orderStatuses:       make(map[models.OrderStatus]bool, len(orderStatuses)),
		requisitionStatuses: make(map[models.RequisitionStatus]bool, len(requisitionStatuses)),
		paymentMethods:      make(map[string]PaymentMethodPolicy, len(methods)),
	}
	for _, st := range orderStatuses {
		s.orderStatuses[st] = true
	}
	for _, st := range requisitionStatuses {
		s.requisitionStatuses[st] = true
	}
	for _, m := range methods {
		s.paymentMethods[m.Code] = m
	}
	return s
}

func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

func (s *Snapshot) OrderStatusEnabled(st models.OrderStatus) bool {
	return s.orderStatuses[st]
}

func (s *Snapshot) RequisitionStatusEnabled(st models.RequisitionStatus) bool {
	return s.requisitionStatuses[st]
}

func (s *Snapshot) PaymentMethod(code string) (PaymentMethodPolicy, bool) {
	m, ok := s.paymentMethods[code]
	return m, ok
}

func (s *Snapshot) OrderStatuses() []models.OrderStatus {
	out := make([]models.OrderStatus, 0, len(s.orderStatuses))
	for st := range s.orderStatuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Snapshot) RequisitionStatuses() []models.RequisitionStatus {
	out := make([]models.RequisitionStatus, 0, len(s.requisitionStatuses))
	for st := range s.requisitionStatuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Snapshot) PaymentMethods() []PaymentMethodPolicy {
	out := make([]PaymentMethodPolicy, 0, len(s.paymentMethods))
	for _, m := range s.paymentMethods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"loaded_at":            s.loadedAt,
		"order_statuses":       s.OrderStatuses(),
		"requisition_statuses": s.RequisitionStatuses(),
		"payment_methods":      s.PaymentMethods(),
	})
}

// Load reads the enabled codes from the store. Unknown codes are rejected so a
// bad row never reaches the payment engine.
func Load(ctx context.Context, db *sql.DB, now time.Time) (*Snapshot, error) {
	orderStatuses, err := loadOrderStatuses(ctx, db)
	if err != nil {
		return nil, err
	}
	requisitionStatuses, err := loadRequisitionStatuses(ctx, db)
	if err != nil {
		return nil, err
	}
	methods, err := loadPaymentMethods(ctx, db)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(orderStatuses, requisitionStatuses, methods, now), nil
}

func loadOrderStatuses(ctx context.Context, db *sql.DB) ([]models.OrderStatus, error) {
	rows, err := db.QueryContext(ctx, `SELECT code FROM order_statuses WHERE enabled = true ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("load order statuses: %w", err)
	}
	defer rows.Close()

	var out []models.OrderStatus
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan order status: %w", err)
		}
		st, err := models.ParseOrderStatus(code)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func loadRequisitionStatuses(ctx context.Context, db *sql.DB) ([]models.RequisitionStatus, error) {
	rows, err := db.QueryContext(ctx, `SELECT code FROM requisition_statuses WHERE enabled = true ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("load requisition statuses: %w", err)
	}
	defer rows.Close()

	var out []models.RequisitionStatus
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan requisition status: %w", err)
		}
		st, err := models.ParseRequisitionStatus(code)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func loadPaymentMethods(ctx context.Context, db *sql.DB) ([]PaymentMethodPolicy, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT code, requires_confirmation, requires_receipt,
		       confirmation_status, confirmed_status, post_payment_status, settled_status
		FROM payment_methods
		WHERE enabled = true
		ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("load payment methods: %w", err)
	}
	defer rows.Close()

	var out []PaymentMethodPolicy
	for rows.Next() {
		var m PaymentMethodPolicy
		var confirmation, confirmed, post, settled sql.NullString
		if err := rows.Scan(&m.Code, &m.RequiresConfirmation, &m.RequiresReceipt,
			&confirmation, &confirmed, &post, &settled); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		if m.ConfirmationStatus, err = optionalStatus(confirmation); err != nil {
			return nil, fmt.Errorf("payment method %s: %w", m.Code, err)
		}
		if m.ConfirmedStatus, err = optionalStatus(confirmed); err != nil {
			return nil, fmt.Errorf("payment method %s: %w", m.Code, err)
		}
		if m.PostPaymentStatus, err = optionalStatus(post); err != nil {
			return nil, fmt.Errorf("payment method %s: %w", m.Code, err)
		}
		if m.SettledStatus, err = optionalStatus(settled); err != nil {
			return nil, fmt.Errorf("payment method %s: %w", m.Code, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func optionalStatus(ns sql.NullString) (models.OrderStatus, error) {
	if !ns.Valid || ns.String == "" {
		return "", nil
	}
	return models.ParseOrderStatus(ns.String)
}

// Store hands out the current snapshot. The snapshot only changes through Reload.
type Store struct {
	db      *sql.DB
	audit   *audit.Logger
	logger  *zap.Logger
	current atomic.Pointer[Snapshot]
}

// NewStore loads the initial snapshot; the process should not start without it.
func NewStore(ctx context.Context, db *sql.DB, auditLogger *audit.Logger, logger *zap.Logger) (*Store, error) {
	snap, err := Load(ctx, db, time.Now())
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, audit: auditLogger, logger: logger}
	s.current.Store(snap)
	logger.Info("status catalog loaded",
		zap.Int("order_statuses", len(snap.orderStatuses)),
		zap.Int("payment_methods", len(snap.paymentMethods)),
	)
	return s, nil
}

// NewStaticStore wraps a fixed snapshot. Reload is not available on it.
func NewStaticStore(snap *Snapshot) *Store {
	s := &Store{logger: zap.NewNop()}
	s.current.Store(snap)
	return s
}

func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Reload replaces the snapshot on an explicit administrative request and
// leaves an audit record naming the actor.
func (s *Store) Reload(ctx context.Context, actorID string) (*Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("catalog store has no database")
	}
	snap, err := Load(ctx, s.db, time.Now())
	if err != nil {
		return nil, err
	}
	previous := s.current.Swap(snap)

	details := map[string]string{
		"order_statuses":  fmt.Sprintf("%d", len(snap.orderStatuses)),
		"payment_methods": fmt.Sprintf("%d", len(snap.paymentMethods)),
	}
	if previous != nil {
		details["previous_loaded_at"] = previous.loadedAt.Format(time.RFC3339)
	}
	if s.audit != nil {
		if err := s.audit.LogOperation(ctx, s.db, "status_catalog", "global", actorID, "CATALOG_RELOADED", details); err != nil {
			s.logger.Warn("catalog reload audit failed", zap.Error(err))
		}
	}
	s.logger.Info("status catalog reloaded", zap.String("actor_id", actorID))
	return snap, nil
}
