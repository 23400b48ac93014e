package services

import (
	"sort"
	"strings"

	"github.com/procurepay/backend/internal/models"
	"github.com/shopspring/decimal"
)

// ComputeDistribution spreads totalAmount over lines proportionally to each
// line's cost normalized to the reference currency.
//
// Lines are ordered by (LineID, TargetOrderID). Every line but the last gets
// its share rounded to models.AmountScale; the last line receives
// totalAmount minus the sum of the others, so the allocations always add up
// to totalAmount exactly. Percentages add up to 1 the same way, with the
// heaviest line taking the remainder. When the normalized costs add up to
// zero, every line gets an equal share.
//
// Currency codes are compared case-insensitively. A currency missing from
// fxRates is taken at rate 1. Negative quantities, negative unit prices and
// non-positive rates are rejected. The function has no side effects and is
// safe for concurrent use.
func ComputeDistribution(lines []models.WeightedLine, totalAmount decimal.Decimal, currency string, fxRates map[string]decimal.Decimal) ([]models.DistributionLineItem, error) {
	if totalAmount.IsNegative() {
		return nil, NewValidationError("total amount must not be negative, got %s", totalAmount)
	}
	if len(lines) == 0 {
		return []models.DistributionLineItem{}, nil
	}

	rates := make(map[string]decimal.Decimal, len(fxRates))
	for code, rate := range fxRates {
		rates[normalizeCurrency(code)] = rate
	}

	ordered := make([]models.WeightedLine, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].LineID != ordered[j].LineID {
			return ordered[i].LineID < ordered[j].LineID
		}
		return ordered[i].TargetOrderID < ordered[j].TargetOrderID
	})

	items := make([]models.DistributionLineItem, len(ordered))
	totalNormalized := decimal.Zero
	for i, line := range ordered {
		if line.Quantity.IsNegative() {
			return nil, NewValidationError("line %s: quantity must not be negative, got %s", line.LineID, line.Quantity)
		}
		if line.UnitPrice.IsNegative() {
			return nil, NewValidationError("line %s: unit price must not be negative, got %s", line.LineID, line.UnitPrice)
		}
		code := normalizeCurrency(line.Currency)
		rate, ok := rates[code]
		if !ok {
			rate = decimal.NewFromInt(1)
		} else if !rate.IsPositive() {
			return nil, NewValidationError("fx rate for %s must be positive, got %s", code, rate)
		}
		baseCost := models.RoundAmount(line.Quantity.Mul(line.UnitPrice))
		normalized := models.RoundAmount(baseCost.Mul(rate))
		totalNormalized = totalNormalized.Add(normalized)

		items[i] = models.DistributionLineItem{
			TargetOrderID:      line.TargetOrderID,
			LineID:             line.LineID,
			BaseCost:           baseCost,
			BaseCurrency:       code,
			FXRateToReference:  rate,
			NormalizedBaseCost: normalized,
			AllocatedCurrency:  currency,
		}
	}

	n := len(items)
	last := n - 1
	one := decimal.NewFromInt(1)

	weightOf := func(i int) decimal.Decimal { return items[i].NormalizedBaseCost }
	weightTotal := totalNormalized
	if !totalNormalized.IsPositive() {
		weightOf = func(int) decimal.Decimal { return one }
		weightTotal = decimal.NewFromInt(int64(n))
	}

	// The heaviest line takes the percentage remainder, ties going to the
	// later line, so no percentage leaves [0, 1].
	heaviest := 0
	for i := 1; i < n; i++ {
		if weightOf(i).GreaterThanOrEqual(weightOf(heaviest)) {
			heaviest = i
		}
	}

	allocated := decimal.Zero
	percentage := decimal.Zero
	for i := 0; i < n; i++ {
		w := weightOf(i)
		if i < last {
			amount := models.RoundAmount(totalAmount.Mul(w).Div(weightTotal))
			items[i].AllocatedAmount = amount
			allocated = allocated.Add(amount)
		}
		if i != heaviest {
			pct := w.Div(weightTotal).Round(models.PercentageScale)
			items[i].AllocatedPercentage = pct
			percentage = percentage.Add(pct)
		}
	}

	items[last].AllocatedAmount = totalAmount.Sub(allocated)
	items[heaviest].AllocatedPercentage = one.Sub(percentage)

	return items, nil
}

func normalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RollupByOrder sums allocated amounts per target order, sorted by order id.
func RollupByOrder(items []models.DistributionLineItem) []models.OrderRollup {
	sums := make(map[string]decimal.Decimal)
	currencies := make(map[string]string)
	for _, item := range items {
		sums[item.TargetOrderID] = sums[item.TargetOrderID].Add(item.AllocatedAmount)
		currencies[item.TargetOrderID] = item.AllocatedCurrency
	}

	rollups := make([]models.OrderRollup, 0, len(sums))
	for orderID, amount := range sums {
		rollups = append(rollups, models.OrderRollup{
			OrderID:  orderID,
			Amount:   amount,
			Currency: currencies[orderID],
		})
	}
	sort.Slice(rollups, func(i, j int) bool { return rollups[i].OrderID < rollups[j].OrderID })
	return rollups
}
