/*
reconcile.go - Payment reconciliation calculator

PURPOSE:
  Pure monetary reconciliation: given an expected and an actual amount,
  compute the variance, the variance percentage, and the reconciliation
  status. Also classifies variance percentages into the four KPI
  performance bands used by payer dashboards.

FORMULAS:
  variance           = actual - expected
  variancePercentage = expected == 0 ? 0 : variance / expected * 100
  status             = "reconciled" iff variance == 0, else "unreconciled"
                       ("disputed" is set explicitly by the caller, never
                       computed here)

KPI BANDS (boundaries are inclusive, >= not >):
  variancePercentage >=  10  -> exceeds
  variancePercentage >=   0  -> meets
  variancePercentage >= -10  -> below
  otherwise                  -> critical

  The asymmetry between the upper band (10-wide before "exceeds") and the
  lower band (10-wide before "critical") is payer policy as observed and
  must not be "fixed".

SEE ALSO:
  - claims/denial.go: Appeal resolution triggers a reconciliation
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// RECONCILIATION
// =============================================================================

type ReconciliationStatus string

const (
	StatusReconciled   ReconciliationStatus = "reconciled"
	StatusUnreconciled ReconciliationStatus = "unreconciled"
	StatusDisputed     ReconciliationStatus = "disputed"
)

type ReconciliationResult struct {
	Expected           Money
	Actual             Money
	Variance           Money
	VariancePercentage decimal.Decimal
	Status             ReconciliationStatus
}

// Reconcile compares an expected amount against an actual amount.
// Pure function: same inputs, same outputs, no side effects.
func Reconcile(expected, actual Money) ReconciliationResult {
	variance := actual.Sub(expected)

	pct := decimal.Zero
	if !expected.IsZero() {
		pct = variance.Value.Div(expected.Value).Mul(decimal.NewFromInt(100))
	}

	status := StatusUnreconciled
	if variance.IsZero() {
		status = StatusReconciled
	}

	return ReconciliationResult{
		Expected:           expected,
		Actual:             actual,
		Variance:           variance,
		VariancePercentage: pct,
		Status:             status,
	}
}

// =============================================================================
// KPI PERFORMANCE CLASSIFICATION
// =============================================================================

type Performance string

const (
	PerformanceExceeds  Performance = "exceeds"
	PerformanceMeets    Performance = "meets"
	PerformanceBelow    Performance = "below"
	PerformanceCritical Performance = "critical"
)

var (
	bandUpper = decimal.NewFromInt(10)
	bandLower = decimal.NewFromInt(-10)
)

// ClassifyPerformance maps a variance percentage onto the four KPI bands.
// Both boundaries are inclusive: exactly 10 is "exceeds", exactly 0 is
// "meets", exactly -10 is "below".
func ClassifyPerformance(variancePercentage decimal.Decimal) Performance {
	switch {
	case variancePercentage.GreaterThanOrEqual(bandUpper):
		return PerformanceExceeds
	case variancePercentage.GreaterThanOrEqual(decimal.Zero):
		return PerformanceMeets
	case variancePercentage.GreaterThanOrEqual(bandLower):
		return PerformanceBelow
	default:
		return PerformanceCritical
	}
}

// Classify is a convenience wrapper returning the performance band of a
// reconciliation result.
func (r ReconciliationResult) Classify() Performance {
	return ClassifyPerformance(r.VariancePercentage)
}
