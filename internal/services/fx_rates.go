package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"
	"github.com/procurepay/backend/internal/config"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Querier runs read queries; *sql.DB and *sql.Tx both satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// FXRateService resolves multipliers converting one unit of a currency into
// the reference currency.
type FXRateService struct {
	db        *sql.DB
	redis     *redis.Client
	reference string
	ttl       time.Duration
	policy    config.MissingFXRatePolicy
	logger    *zap.Logger
}

func NewFXRateService(db *sql.DB, redisClient *redis.Client, cfg *config.SettlementConfig, logger *zap.Logger) *FXRateService {
	return &FXRateService{
		db:        db,
		redis:     redisClient,
		reference: cfg.ReferenceCurrency,
		ttl:       cfg.FXCacheTTL,
		policy:    cfg.MissingFXRatePolicy,
		logger:    logger,
	}
}

func (s *FXRateService) ReferenceCurrency() string {
	return s.reference
}

// Rates returns a rate for every currency it can find. The reference currency
// is always 1. With the strict policy a missing rate is a ValidationError;
// with passthrough the currency is left out and the engine uses 1.
//
// Store reads go through q, so a caller holding a transaction passes it in.
// A nil q falls back to the pool.
func (s *FXRateService) Rates(ctx context.Context, q Querier, currencies []string) (map[string]decimal.Decimal, error) {
	if q == nil {
		q = s.db
	}
	rates := map[string]decimal.Decimal{s.reference: decimal.NewFromInt(1)}

	wanted := make([]string, 0, len(currencies))
	seen := map[string]bool{s.reference: true}
	for _, c := range currencies {
		c = normalizeCurrency(c)
		if !seen[c] {
			seen[c] = true
			wanted = append(wanted, c)
		}
	}
	sort.Strings(wanted)
	if len(wanted) == 0 {
		return rates, nil
	}

	misses := s.fromCache(ctx, wanted, rates)
	if len(misses) > 0 {
		if err := s.fromStore(ctx, q, misses, rates); err != nil {
			return nil, err
		}
	}

	var missing []string
	for _, c := range wanted {
		if _, ok := rates[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		if s.policy == config.FXStrict {
			return nil, NewValidationError("no %s exchange rate for %s", s.reference, strings.Join(missing, ", "))
		}
		s.logger.Warn("missing exchange rates, using 1",
			zap.String("reference_currency", s.reference),
			zap.Strings("currencies", missing),
		)
	}
	return rates, nil
}

func (s *FXRateService) cacheKey(currency string) string {
	return fmt.Sprintf("fx:%s:%s", s.reference, currency)
}

func (s *FXRateService) fromCache(ctx context.Context, currencies []string, rates map[string]decimal.Decimal) []string {
	if s.redis == nil {
		return currencies
	}

	var misses []string
	for _, c := range currencies {
		val, err := s.redis.Get(ctx, s.cacheKey(c)).Result()
		if err != nil {
			if err != redis.Nil {
				s.logger.Warn("fx cache read failed", zap.String("currency", c), zap.Error(err))
			}
			misses = append(misses, c)
			continue
		}
		rate, err := decimal.NewFromString(val)
		if err != nil {
			misses = append(misses, c)
			continue
		}
		rates[c] = rate
	}
	return misses
}

func (s *FXRateService) fromStore(ctx context.Context, q Querier, currencies []string, rates map[string]decimal.Decimal) error {
	rows, err := q.QueryContext(ctx, `
		SELECT currency, rate FROM fx_rates
		WHERE reference_currency = $1 AND currency = ANY($2)`,
		s.reference, pq.Array(currencies))
	if err != nil {
		return fmt.Errorf("load exchange rates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var currency string
		var rate decimal.Decimal
		if err := rows.Scan(&currency, &rate); err != nil {
			return fmt.Errorf("scan exchange rate: %w", err)
		}
		if !rate.IsPositive() {
			return NewValidationError("exchange rate for %s must be positive, got %s", currency, rate)
		}
		currency = normalizeCurrency(currency)
		rates[currency] = rate

		if s.redis != nil {
			if err := s.redis.Set(ctx, s.cacheKey(currency), rate.String(), s.ttl).Err(); err != nil {
				s.logger.Warn("fx cache write failed", zap.String("currency", currency), zap.Error(err))
			}
		}
	}
	return rows.Err()
}
