package costing

import (
	decimal "github.com/shopspring/decimal"
)

// maxBillableExtraUnits caps the number of extra units (web searches, tool
// invocations) billed for a single message.
const maxBillableExtraUnits = 50

const costScale = 6

var microsPerDollar = decimal.NewFromInt(1_000_000)

// Breakdown is the result of one cost computation. All amounts are integer
// USD micros, each component rounded to six decimal places before summation.
type Breakdown struct {
	PromptCostMicros     int64
	CompletionCostMicros int64
	ExtraCostMicros      int64
	TotalCostMicros      int64
	BilledExtraUnits     int64
}

// Compute prices a message against the given snapshot. Negative token or unit
// counts are treated as zero, and extra units beyond the billing cap are not
// charged.
func Compute(inputTokens, outputTokens, extraUnits int64, snapshot PriceSnapshot) Breakdown {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	if extraUnits < 0 {
		extraUnits = 0
	}
	if extraUnits > maxBillableExtraUnits {
		extraUnits = maxBillableExtraUnits
	}

	prompt := componentMicros(snapshot.PromptPrice, inputTokens)
	completion := componentMicros(snapshot.CompletionPrice, outputTokens)
	extra := componentMicros(snapshot.ExtraUnitPrice, extraUnits)

	return Breakdown{
		PromptCostMicros:     prompt,
		CompletionCostMicros: completion,
		ExtraCostMicros:      extra,
		TotalCostMicros:      prompt + completion + extra,
		BilledExtraUnits:     extraUnits,
	}
}

func componentMicros(unitPrice decimal.Decimal, units int64) int64 {
	if units == 0 || unitPrice.IsZero() || unitPrice.IsNegative() {
		return 0
	}
	cost := unitPrice.Mul(decimal.NewFromInt(units)).Round(costScale)
	return cost.Mul(microsPerDollar).IntPart()
}
