package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/claims-engine/engine"
)

func money(s string) engine.Money {
	return engine.MustParseMoney(s)
}

// =============================================================================
// MONEY PARSING
// =============================================================================

func TestParseMoney(t *testing.T) {
	m, err := engine.ParseMoney("151.00")
	assert.NoError(t, err)
	assert.Equal(t, "151.00", m.String())

	_, err = engine.ParseMoney("12.3.4")
	assert.Error(t, err)
}

func TestMustParseMoney_PanicsOnMalformedInput(t *testing.T) {
	// A malformed amount is a programming error or corrupt data, never a
	// silent zero.
	assert.Panics(t, func() { engine.MustParseMoney("not-money") })
}

// =============================================================================
// RECONCILIATION FORMULA TESTS
// =============================================================================

func TestReconcile_Shortfall(t *testing.T) {
	// GIVEN: Expected 10800.00, payer paid 9720.00
	// WHEN: Reconciling
	// THEN: Variance -1080.00, variance percentage -10%, unreconciled

	result := engine.Reconcile(money("10800.00"), money("9720.00"))

	assert.Equal(t, "-1080.00", result.Variance.String())
	assert.True(t, result.VariancePercentage.Equal(decimal.NewFromInt(-10)),
		"variance percentage should be -10, got %s", result.VariancePercentage)
	assert.Equal(t, engine.StatusUnreconciled, result.Status)
}

func TestReconcile_ExactMatch(t *testing.T) {
	// GIVEN: Actual equals expected
	// THEN: Zero variance, reconciled

	result := engine.Reconcile(money("500.00"), money("500.00"))

	assert.True(t, result.Variance.IsZero())
	assert.True(t, result.VariancePercentage.IsZero())
	assert.Equal(t, engine.StatusReconciled, result.Status)
}

func TestReconcile_Overpayment(t *testing.T) {
	// GIVEN: Payer paid more than expected
	// THEN: Positive variance, still unreconciled (variance != 0)

	result := engine.Reconcile(money("100.00"), money("125.00"))

	assert.Equal(t, "25.00", result.Variance.String())
	assert.True(t, result.VariancePercentage.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, engine.StatusUnreconciled, result.Status)
}

func TestReconcile_ZeroExpected_NoDivision(t *testing.T) {
	// GIVEN: Expected amount is zero
	// WHEN: Reconciling a non-zero payment
	// THEN: Variance percentage is 0 (no division), status unreconciled

	result := engine.Reconcile(engine.ZeroMoney(), money("50.00"))

	assert.Equal(t, "50.00", result.Variance.String())
	assert.True(t, result.VariancePercentage.IsZero())
	assert.Equal(t, engine.StatusUnreconciled, result.Status)
}

func TestReconcile_ZeroExpectedZeroActual(t *testing.T) {
	result := engine.Reconcile(engine.ZeroMoney(), engine.ZeroMoney())

	assert.Equal(t, engine.StatusReconciled, result.Status)
	assert.True(t, result.VariancePercentage.IsZero())
}

// =============================================================================
// KPI BAND TESTS - Boundaries are inclusive
// =============================================================================

func TestClassifyPerformance_Bands(t *testing.T) {
	cases := []struct {
		pct  string
		want engine.Performance
	}{
		{"25", engine.PerformanceExceeds},
		{"10", engine.PerformanceExceeds}, // boundary: exactly 10 exceeds
		{"9.99", engine.PerformanceMeets},
		{"0", engine.PerformanceMeets}, // boundary: exactly 0 meets
		{"-0.01", engine.PerformanceBelow},
		{"-10", engine.PerformanceBelow}, // boundary: exactly -10 is below
		{"-10.01", engine.PerformanceCritical},
		{"-80", engine.PerformanceCritical},
	}

	for _, c := range cases {
		pct, err := decimal.NewFromString(c.pct)
		assert.NoError(t, err)
		assert.Equal(t, c.want, engine.ClassifyPerformance(pct), "pct=%s", c.pct)
	}
}

func TestReconciliationResult_Classify(t *testing.T) {
	// GIVEN: The 10800 vs 9720 shortfall (-10%)
	// THEN: Classifies as below, not critical - the boundary is inclusive

	result := engine.Reconcile(money("10800"), money("9720"))
	assert.Equal(t, engine.PerformanceBelow, result.Classify())
}

func TestPaymentRecordStatus_OnlyZeroVarianceReconciles(t *testing.T) {
	// Reconciled iff variance == 0, regardless of how small the variance is.
	result := engine.Reconcile(money("100.00"), money("99.99"))
	assert.Equal(t, engine.StatusUnreconciled, result.Status)

	result = engine.Reconcile(money("100.00"), money("100.000"))
	assert.Equal(t, engine.StatusReconciled, result.Status)
}
