package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/procurepay/backend/internal/audit"
	"github.com/procurepay/backend/internal/config"
	"github.com/procurepay/backend/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RateSource supplies reference-currency multipliers for the engine. Store
// reads run on q when it is non-nil.
type RateSource interface {
	Rates(ctx context.Context, q Querier, currencies []string) (map[string]decimal.Decimal, error)
	ReferenceCurrency() string
}

type DistributionResult struct {
	RequestID string                        `json:"request_id"`
	Items     []models.DistributionLineItem `json:"items"`
	Rollups   []models.OrderRollup          `json:"rollups"`
}

type PreviewInput struct {
	TotalAmount decimal.Decimal
	Currency    string                `validate:"required,len=3"`
	Lines       []models.WeightedLine `validate:"dive"`
	// FXRates overrides the stored rates when set.
	FXRates map[string]decimal.Decimal
}

// DistributionService persists landed-cost distributions. The allocation
// itself is ComputeDistribution; this type gathers its inputs under the
// target orders' row locks and writes the results in one transaction.
type DistributionService struct {
	db          *sql.DB
	redis       *redis.Client
	rates       RateSource
	audit       *audit.Logger
	validator   *ValidationHelper
	lockTimeout time.Duration
	guardTTL    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewDistributionService(db *sql.DB, redisClient *redis.Client, rates RateSource, auditLogger *audit.Logger, cfg *config.SettlementConfig, logger *zap.Logger) *DistributionService {
	return &DistributionService{
		db:          db,
		redis:       redisClient,
		rates:       rates,
		audit:       auditLogger,
		validator:   NewValidationHelper(),
		lockTimeout: cfg.LockTimeout,
		guardTTL:    cfg.DistributionGuardTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// PreviewDistribution runs the engine over caller-supplied lines without
// touching any order.
func (s *DistributionService) PreviewDistribution(ctx context.Context, in PreviewInput) ([]models.DistributionLineItem, error) {
	if err := s.validator.ValidateStruct(in); err != nil {
		return nil, newFieldValidationError(err, "invalid preview")
	}

	lines := make([]models.WeightedLine, len(in.Lines))
	for i, l := range in.Lines {
		l.Currency = normalizeCurrency(l.Currency)
		lines[i] = l
	}

	var rates map[string]decimal.Decimal
	if in.FXRates != nil {
		rates = make(map[string]decimal.Decimal, len(in.FXRates))
		for code, rate := range in.FXRates {
			if !rate.IsPositive() {
				return nil, NewValidationError("fx rate for %s must be positive, got %s", code, rate)
			}
			rates[normalizeCurrency(code)] = rate
		}
	} else {
		var err error
		rates, err = s.rates.Rates(ctx, nil, lineCurrencies(lines))
		if err != nil {
			return nil, err
		}
	}
	return ComputeDistribution(lines, in.TotalAmount, normalizeCurrency(in.Currency), rates)
}

// ComputeAndPersistDistribution allocates req.TotalAmount over every line of
// the target orders and stores line items and per-order rollups atomically.
// A request id can be persisted once; replays fail with ConflictError.
func (s *DistributionService) ComputeAndPersistDistribution(ctx context.Context, req models.DistributionRequest) (*DistributionResult, error) {
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, newFieldValidationError(err, "invalid distribution request")
	}
	if req.TotalAmount.IsNegative() {
		return nil, NewValidationError("total amount must not be negative, got %s", req.TotalAmount)
	}
	if !req.TotalAmount.Equal(models.RoundAmount(req.TotalAmount)) {
		return nil, NewValidationError("total amount %s has more than %d decimal places", req.TotalAmount, models.AmountScale)
	}
	req.Currency = strings.ToUpper(req.Currency)
	req.TargetOrderIDs = uniqueSorted(req.TargetOrderIDs)

	release, err := s.acquireGuard(ctx, req.ID, req.ActorID)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := setLockTimeout(ctx, tx, s.lockTimeout); err != nil {
		return nil, err
	}

	orders, err := lockOrders(ctx, tx, req.TargetOrderIDs)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		if order.Status == models.OrderStatusCancelled {
			return nil, NewConflictError("order %s is cancelled and cannot receive costs", order.ID)
		}
	}

	lines, err := loadWeightedLines(ctx, tx, req.TargetOrderIDs)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 && req.TotalAmount.IsPositive() {
		return nil, NewValidationError("target orders have no lines to distribute over")
	}

	rates, err := s.rates.Rates(ctx, tx, lineCurrencies(lines))
	if err != nil {
		return nil, err
	}

	items, err := ComputeDistribution(lines, req.TotalAmount, req.Currency, rates)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	req.CreatedAt = now
	if err := insertDistributionRequest(ctx, tx, &req); err != nil {
		return nil, err
	}

	for i := range items {
		items[i].ID = uuid.New().String()
		items[i].RequestID = req.ID
		if err := insertDistributionItem(ctx, tx, &items[i]); err != nil {
			return nil, err
		}
	}

	rollups := RollupByOrder(items)
	for _, rollup := range rollups {
		if err := upsertRollup(ctx, tx, rollup, now); err != nil {
			return nil, err
		}
	}

	for _, order := range orders {
		if err := touchLockedOrder(ctx, tx, order, now); err != nil {
			return nil, err
		}
	}

	if err := s.audit.LogDistribution(ctx, tx, req.ID, req.ActorID, req.TotalAmount, req.Currency, len(items)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isLockTimeout(err) {
			return nil, NewConcurrencyTimeout(err, "distribution %s timed out, retry later", req.ID)
		}
		return nil, fmt.Errorf("commit distribution: %w", err)
	}

	s.logger.Info("cost distributed",
		zap.String("request_id", req.ID),
		zap.String("actor_id", req.ActorID),
		zap.String("total_amount", req.TotalAmount.String()),
		zap.String("currency", req.Currency),
		zap.Int("line_count", len(items)),
		zap.Int("order_count", len(rollups)),
	)

	return &DistributionResult{RequestID: req.ID, Items: items, Rollups: rollups}, nil
}

// ListDistributionItems returns the stored line items of a request in
// allocation order.
func (s *DistributionService) ListDistributionItems(ctx context.Context, requestID string) ([]models.DistributionLineItem, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM distribution_requests WHERE id = $1)`, requestID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check distribution %s: %w", requestID, err)
	}
	if !exists {
		return nil, NewNotFoundError("distribution %s not found", requestID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, target_order_id, line_id, base_cost, base_currency, fx_rate_to_reference,
		       normalized_base_cost, allocated_percentage, allocated_amount, allocated_currency
		FROM distribution_line_items
		WHERE request_id = $1
		ORDER BY line_id, target_order_id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list distribution items: %w", err)
	}
	defer rows.Close()

	items := []models.DistributionLineItem{}
	for rows.Next() {
		var it models.DistributionLineItem
		if err := rows.Scan(&it.ID, &it.RequestID, &it.TargetOrderID, &it.LineID, &it.BaseCost, &it.BaseCurrency,
			&it.FXRateToReference, &it.NormalizedBaseCost, &it.AllocatedPercentage, &it.AllocatedAmount,
			&it.AllocatedCurrency); err != nil {
			return nil, fmt.Errorf("scan distribution item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// acquireGuard marks the request as in flight so a concurrent duplicate fails
// fast instead of waiting on the order locks. Without Redis the unique key on
// distribution_requests is the only guard.
func (s *DistributionService) acquireGuard(ctx context.Context, requestID, actorID string) (func(), error) {
	noop := func() {}
	if s.redis == nil {
		return noop, nil
	}

	key := "distribution:" + requestID
	ok, err := s.redis.SetNX(ctx, key, actorID, s.guardTTL).Result()
	if err != nil {
		s.logger.Warn("distribution guard unavailable", zap.String("request_id", requestID), zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, NewConflictError("distribution %s is already in progress", requestID)
	}

	return func() {
		if err := s.redis.Del(context.Background(), key).Err(); err != nil {
			s.logger.Warn("release distribution guard failed", zap.String("request_id", requestID), zap.Error(err))
		}
	}, nil
}

func loadWeightedLines(ctx context.Context, tx *sql.Tx, orderIDs []string) ([]models.WeightedLine, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, order_id, quantity, unit_price, currency
		FROM purchase_order_lines
		WHERE order_id = ANY($1)
		ORDER BY id, order_id`, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	var lines []models.WeightedLine
	for rows.Next() {
		var l models.WeightedLine
		if err := rows.Scan(&l.LineID, &l.TargetOrderID, &l.Quantity, &l.UnitPrice, &l.Currency); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		l.Currency = normalizeCurrency(l.Currency)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func insertDistributionRequest(ctx context.Context, tx *sql.Tx, req *models.DistributionRequest) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO distribution_requests (id, total_amount, currency, target_order_ids, description, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.ID, req.TotalAmount.String(), req.Currency, pq.Array(req.TargetOrderIDs),
		nullString(req.Description), req.ActorID, req.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return NewConflictError("distribution %s was already recorded", req.ID)
		}
		return fmt.Errorf("insert distribution request: %w", err)
	}
	return nil
}

func insertDistributionItem(ctx context.Context, tx *sql.Tx, it *models.DistributionLineItem) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO distribution_line_items (id, request_id, target_order_id, line_id, base_cost, base_currency,
			fx_rate_to_reference, normalized_base_cost, allocated_percentage, allocated_amount, allocated_currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		it.ID, it.RequestID, it.TargetOrderID, it.LineID, it.BaseCost.String(), it.BaseCurrency,
		it.FXRateToReference.String(), it.NormalizedBaseCost.String(), it.AllocatedPercentage.String(),
		it.AllocatedAmount.String(), it.AllocatedCurrency)
	if err != nil {
		return fmt.Errorf("insert distribution item for line %s: %w", it.LineID, err)
	}
	return nil
}

func upsertRollup(ctx context.Context, tx *sql.Tx, r models.OrderRollup, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_cost_rollups (order_id, currency, amount, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id, currency)
		DO UPDATE SET amount = order_cost_rollups.amount + EXCLUDED.amount, updated_at = EXCLUDED.updated_at`,
		r.OrderID, r.Currency, r.Amount.String(), now)
	if err != nil {
		return fmt.Errorf("upsert cost rollup for order %s: %w", r.OrderID, err)
	}
	return nil
}

func lineCurrencies(lines []models.WeightedLine) []string {
	var out []string
	for _, l := range lines {
		out = append(out, normalizeCurrency(l.Currency))
	}
	return uniqueSorted(out)
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
