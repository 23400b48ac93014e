package services

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/procurepay/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(id, order, qty, price, currency string) models.WeightedLine {
	return models.WeightedLine{
		LineID:        id,
		TargetOrderID: order,
		Quantity:      dec(qty),
		UnitPrice:     dec(price),
		Currency:      currency,
	}
}

func sumAllocated(items []models.DistributionLineItem) (decimal.Decimal, decimal.Decimal) {
	amount, pct := decimal.Zero, decimal.Zero
	for _, it := range items {
		amount = amount.Add(it.AllocatedAmount)
		pct = pct.Add(it.AllocatedPercentage)
	}
	return amount, pct
}

func TestComputeDistribution(t *testing.T) {
	usd := map[string]decimal.Decimal{"USD": decimal.NewFromInt(1)}

	t.Run("proportional split", func(t *testing.T) {
		lines := []models.WeightedLine{
			line("L1", "po-1", "1", "100", "USD"),
			line("L2", "po-1", "3", "100", "USD"),
			line("L3", "po-2", "6", "100", "USD"),
		}

		items, err := ComputeDistribution(lines, dec("1000.00"), "USD", usd)
		require.NoError(t, err)
		require.Len(t, items, 3)

		assert.True(t, items[0].AllocatedAmount.Equal(dec("100")))
		assert.True(t, items[1].AllocatedAmount.Equal(dec("300")))
		assert.True(t, items[2].AllocatedAmount.Equal(dec("600")))
		assert.True(t, items[0].AllocatedPercentage.Equal(dec("0.1")))
		assert.True(t, items[2].AllocatedPercentage.Equal(dec("0.6")))

		amount, pct := sumAllocated(items)
		assert.True(t, amount.Equal(dec("1000")))
		assert.True(t, pct.Equal(decimal.NewFromInt(1)))
	})

	t.Run("equal split when every line costs zero", func(t *testing.T) {
		lines := []models.WeightedLine{
			line("L1", "po-1", "0", "10", "USD"),
			line("L2", "po-1", "5", "0", "USD"),
			line("L3", "po-2", "0", "0", "USD"),
			line("L4", "po-2", "0", "3", "USD"),
		}

		items, err := ComputeDistribution(lines, dec("100.00"), "USD", usd)
		require.NoError(t, err)
		for _, it := range items {
			assert.True(t, it.AllocatedAmount.Equal(dec("25")), it.AllocatedAmount.String())
			assert.True(t, it.AllocatedPercentage.Equal(dec("0.25")))
		}
	})

	t.Run("remainder lands on the last line", func(t *testing.T) {
		lines := []models.WeightedLine{
			line("L1", "po-1", "1", "1", "USD"),
			line("L2", "po-1", "1", "1", "USD"),
			line("L3", "po-1", "1", "1", "USD"),
		}

		items, err := ComputeDistribution(lines, dec("100.00"), "USD", usd)
		require.NoError(t, err)
		assert.True(t, items[0].AllocatedAmount.Equal(dec("33.3333")))
		assert.True(t, items[1].AllocatedAmount.Equal(dec("33.3333")))
		assert.True(t, items[2].AllocatedAmount.Equal(dec("33.3334")))
		assert.True(t, items[0].AllocatedPercentage.Equal(dec("0.33333333")))
		assert.True(t, items[2].AllocatedPercentage.Equal(dec("0.33333334")))
	})

	t.Run("zero-cost last line keeps a non-negative percentage", func(t *testing.T) {
		lines := make([]models.WeightedLine, 0, 7)
		for i := 1; i <= 6; i++ {
			lines = append(lines, line(fmt.Sprintf("L%d", i), "po-1", "1", "1", "USD"))
		}
		lines = append(lines, line("L7", "po-1", "0", "1", "USD"))

		items, err := ComputeDistribution(lines, dec("60"), "USD", usd)
		require.NoError(t, err)
		assert.True(t, items[6].AllocatedPercentage.Equal(decimal.Zero), items[6].AllocatedPercentage.String())
		assert.True(t, items[5].AllocatedPercentage.Equal(dec("0.16666665")), items[5].AllocatedPercentage.String())
		_, pct := sumAllocated(items)
		assert.True(t, pct.Equal(decimal.NewFromInt(1)))
	})

	t.Run("ordering is by line id regardless of input order", func(t *testing.T) {
		lines := []models.WeightedLine{
			line("L3", "po-2", "1", "1", "USD"),
			line("L1", "po-1", "1", "1", "USD"),
			line("L2", "po-1", "1", "1", "USD"),
		}

		items, err := ComputeDistribution(lines, dec("100"), "USD", usd)
		require.NoError(t, err)
		assert.Equal(t, "L1", items[0].LineID)
		assert.Equal(t, "L3", items[2].LineID)
		assert.True(t, items[2].AllocatedAmount.Equal(dec("33.3334")))
	})

	t.Run("currencies are normalized before weighting", func(t *testing.T) {
		lines := []models.WeightedLine{
			line("L1", "po-1", "1", "100", "USD"),
			line("L2", "po-2", "1", "100", "EUR"),
		}
		rates := map[string]decimal.Decimal{"USD": decimal.NewFromInt(1), "EUR": dec("3")}

		items, err := ComputeDistribution(lines, dec("400"), "USD", rates)
		require.NoError(t, err)
		assert.True(t, items[1].NormalizedBaseCost.Equal(dec("300")))
		assert.True(t, items[1].FXRateToReference.Equal(dec("3")))
		assert.True(t, items[0].AllocatedAmount.Equal(dec("100")))
		assert.True(t, items[1].AllocatedAmount.Equal(dec("300")))
		assert.Equal(t, "USD", items[1].AllocatedCurrency)
		assert.Equal(t, "EUR", items[1].BaseCurrency)
	})

	t.Run("currency codes match rates regardless of case", func(t *testing.T) {
		lines := []models.WeightedLine{
			line("L1", "po-1", "1", "100", "eur"),
			line("L2", "po-2", "1", "100", "USD"),
		}
		rates := map[string]decimal.Decimal{"usd": decimal.NewFromInt(1), "EUR": dec("2")}

		items, err := ComputeDistribution(lines, dec("300"), "USD", rates)
		require.NoError(t, err)
		assert.Equal(t, "EUR", items[0].BaseCurrency)
		assert.True(t, items[0].FXRateToReference.Equal(dec("2")))
		assert.True(t, items[0].AllocatedAmount.Equal(dec("200")))
		assert.True(t, items[1].AllocatedAmount.Equal(dec("100")))
	})

	t.Run("negative line cost is rejected", func(t *testing.T) {
		for name, lines := range map[string][]models.WeightedLine{
			"quantity":   {line("L1", "po-1", "1", "100", "USD"), line("L2", "po-1", "-1", "50", "USD")},
			"unit price": {line("L1", "po-1", "1", "100", "USD"), line("L2", "po-1", "1", "-50", "USD")},
		} {
			_, err := ComputeDistribution(lines, dec("100"), "USD", usd)
			assert.True(t, errors.Is(err, ErrValidation), name)
		}
	})

	t.Run("non-positive rate is rejected", func(t *testing.T) {
		lines := []models.WeightedLine{line("L1", "po-1", "1", "100", "EUR")}
		for _, rate := range []string{"0", "-1.5"} {
			_, err := ComputeDistribution(lines, dec("100"), "USD", map[string]decimal.Decimal{"EUR": dec(rate)})
			assert.True(t, errors.Is(err, ErrValidation), rate)
		}
	})

	t.Run("missing rate passes through at 1", func(t *testing.T) {
		lines := []models.WeightedLine{
			line("L1", "po-1", "1", "100", "USD"),
			line("L2", "po-2", "1", "100", "JPY"),
		}

		items, err := ComputeDistribution(lines, dec("10"), "USD", usd)
		require.NoError(t, err)
		assert.True(t, items[1].FXRateToReference.Equal(decimal.NewFromInt(1)))
		assert.True(t, items[1].AllocatedAmount.Equal(dec("5")))
	})

	t.Run("empty input yields empty result", func(t *testing.T) {
		items, err := ComputeDistribution(nil, dec("10"), "USD", usd)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("negative total is rejected", func(t *testing.T) {
		_, err := ComputeDistribution([]models.WeightedLine{line("L1", "po-1", "1", "1", "USD")}, dec("-1"), "USD", usd)
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("input slice is not reordered", func(t *testing.T) {
		lines := []models.WeightedLine{
			line("B", "po-1", "1", "1", "USD"),
			line("A", "po-1", "1", "1", "USD"),
		}
		_, err := ComputeDistribution(lines, dec("1"), "USD", usd)
		require.NoError(t, err)
		assert.Equal(t, "B", lines[0].LineID)
	})
}

func TestComputeDistribution_ExactSum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rates := map[string]decimal.Decimal{"USD": decimal.NewFromInt(1), "EUR": dec("1.0837"), "GBP": dec("1.2654")}
	currencies := []string{"USD", "EUR", "GBP"}

	for i := 0; i < 200; i++ {
		n := rng.Intn(12) + 1
		lines := make([]models.WeightedLine, n)
		for j := range lines {
			lines[j] = models.WeightedLine{
				LineID:        fmt.Sprintf("L%03d", j),
				TargetOrderID: fmt.Sprintf("po-%d", j%3),
				Quantity:      decimal.NewFromInt(int64(rng.Intn(50))),
				UnitPrice:     decimal.New(int64(rng.Intn(1000000)), -4),
				Currency:      currencies[rng.Intn(len(currencies))],
			}
		}
		total := decimal.New(int64(rng.Intn(100000000)), -4)

		items, err := ComputeDistribution(lines, total, "USD", rates)
		require.NoError(t, err)

		amount, pct := sumAllocated(items)
		assert.True(t, amount.Equal(total), "case %d: %s != %s", i, amount, total)
		assert.True(t, pct.Equal(decimal.NewFromInt(1)), "case %d: pct %s", i, pct)
		for _, it := range items {
			assert.False(t, it.AllocatedPercentage.IsNegative(), "case %d: %s pct %s", i, it.LineID, it.AllocatedPercentage)
			assert.True(t, it.AllocatedPercentage.LessThanOrEqual(decimal.NewFromInt(1)), "case %d: %s pct %s", i, it.LineID, it.AllocatedPercentage)
		}
	}
}

func TestRollupByOrder(t *testing.T) {
	items := []models.DistributionLineItem{
		{TargetOrderID: "po-2", AllocatedAmount: dec("600"), AllocatedCurrency: "USD"},
		{TargetOrderID: "po-1", AllocatedAmount: dec("100"), AllocatedCurrency: "USD"},
		{TargetOrderID: "po-1", AllocatedAmount: dec("300"), AllocatedCurrency: "USD"},
	}

	rollups := RollupByOrder(items)
	require.Len(t, rollups, 2)
	assert.Equal(t, "po-1", rollups[0].OrderID)
	assert.True(t, rollups[0].Amount.Equal(dec("400")))
	assert.Equal(t, "po-2", rollups[1].OrderID)
	assert.True(t, rollups[1].Amount.Equal(dec("600")))
	assert.Equal(t, "USD", rollups[1].Currency)
}
