package costing

import (
	"testing"

	decimal "github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func snapshotFromFloats(prompt, completion, extra float64) PriceSnapshot {
	return PriceSnapshot{
		Model:           "test/model",
		PromptPrice:     decimal.NewFromFloat(prompt),
		CompletionPrice: decimal.NewFromFloat(completion),
		ExtraUnitPrice:  decimal.NewFromFloat(extra),
	}
}

func TestComputeBasicBreakdown(t *testing.T) {
	t.Parallel()

	// 1000 prompt tokens at $0.000002 each and 500 completion tokens at
	// $0.000004 each both come to $0.002, i.e. 2000 micros per component.
	snap := snapshotFromFloats(0.000002, 0.000004, 0)
	got := Compute(1000, 500, 0, snap)

	require.Equal(t, int64(2_000), got.PromptCostMicros)
	require.Equal(t, int64(2_000), got.CompletionCostMicros)
	require.Equal(t, int64(0), got.ExtraCostMicros)
	require.Equal(t, int64(4_000), got.TotalCostMicros)
	require.Equal(t, int64(0), got.BilledExtraUnits)
}

func TestComputeCapsExtraUnits(t *testing.T) {
	t.Parallel()

	snap := snapshotFromFloats(0, 0, 0.01)
	got := Compute(0, 0, 70, snap)

	require.Equal(t, int64(maxBillableExtraUnits), got.BilledExtraUnits)
	// 50 units at one cent each is $0.50.
	require.Equal(t, int64(500_000), got.ExtraCostMicros)
	require.Equal(t, int64(500_000), got.TotalCostMicros)
}

func TestComputePerTokenDollarPrices(t *testing.T) {
	t.Parallel()

	// 100 prompt tokens at $0.20 each and 50 completion tokens at $0.40
	// each are $20.00 per component, $40.00 in total.
	snap := snapshotFromFloats(0.20, 0.40, 0)
	got := Compute(100, 50, 0, snap)

	require.Equal(t, int64(20_000_000), got.PromptCostMicros)
	require.Equal(t, int64(20_000_000), got.CompletionCostMicros)
	require.Equal(t, int64(40_000_000), got.TotalCostMicros)
}

func TestComputeClampsNegativeCounts(t *testing.T) {
	t.Parallel()

	snap := snapshotFromFloats(0.01, 0.01, 0.01)
	got := Compute(-5, -1, -3, snap)

	require.Equal(t, int64(0), got.PromptCostMicros)
	require.Equal(t, int64(0), got.CompletionCostMicros)
	require.Equal(t, int64(0), got.ExtraCostMicros)
	require.Equal(t, int64(0), got.TotalCostMicros)
	require.Equal(t, int64(0), got.BilledExtraUnits)
}

func TestComputeRoundsComponentsToSixDecimals(t *testing.T) {
	t.Parallel()

	// One token at $0.0000005 rounds up to $0.000001 before conversion.
	snap := PriceSnapshot{PromptPrice: decimal.RequireFromString("0.0000005")}
	got := Compute(1, 0, 0, snap)

	require.Equal(t, int64(1), got.PromptCostMicros)
	require.Equal(t, int64(1), got.TotalCostMicros)
}

func TestComputeZeroSnapshot(t *testing.T) {
	t.Parallel()

	got := Compute(1_000_000, 1_000_000, 10, PriceSnapshot{Model: "unknown"})

	require.Equal(t, int64(0), got.TotalCostMicros)
	require.Equal(t, int64(10), got.BilledExtraUnits)
}

func TestComputeTotalIsSumOfComponents(t *testing.T) {
	t.Parallel()

	snap := snapshotFromFloats(0.000003, 0.000015, 0.004)
	got := Compute(2_345, 987, 3, snap)

	require.Equal(t, got.PromptCostMicros+got.CompletionCostMicros+got.ExtraCostMicros, got.TotalCostMicros)
}
