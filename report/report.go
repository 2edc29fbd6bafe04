/*
Package report derives dashboard metrics from collections of claims,
authorizations, and denial records.

PURPOSE:
  A pure read-side projection: counts by status, aging buckets, payer
  rollups, collection rate, denial rate, appeal success rate. Nothing here
  mutates its inputs, and running twice over the same snapshot yields
  identical output. Output ordering is deterministic (sorted keys) so the
  result is independent of input ordering.

ZERO-DENOMINATOR RULE:
  Every rate returns 0 when its denominator is zero - dashboards render a
  flat 0, never NaN.

SEE ALSO:
  - claims/types.go, authorization/types.go: the entities aggregated here
*/
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/claims-engine/claims"
	"github.com/warp/claims-engine/engine"
)

// =============================================================================
// SUMMARY REPORT
// =============================================================================

type StatusCount struct {
	Status     engine.State
	Count      int
	Percentage decimal.Decimal
}

// AgingBucket is a day-range classification of outstanding claims.
// MaxDays < 0 means the bucket is open-ended (">120").
type AgingBucket struct {
	Label   string
	MinDays int
	MaxDays int
	Count   int
	Amount  engine.Money
}

type PayerSummary struct {
	PayerID          engine.PayerID
	ClaimCount       int
	TotalAmount      engine.Money
	PaidAmount       engine.Money
	AvgDaysToPayment decimal.Decimal
	DenialRate       decimal.Decimal
	CollectionRate   decimal.Decimal
}

type SummaryReport struct {
	GeneratedAsOf time.Time

	TotalClaims         int
	TotalAuthorizations int

	ClaimStatusCounts         []StatusCount
	AuthorizationStatusCounts []StatusCount

	AgingBuckets []AgingBucket

	PayerSummaries []PayerSummary

	TotalClaimedAmount engine.Money
	TotalPaidAmount    engine.Money
	CollectionRate     decimal.Decimal
	DenialRate         decimal.Decimal
	AppealSuccessRate  decimal.Decimal
}

// agingRanges is the fixed bucket layout used by the payer dashboards.
var agingRanges = []struct {
	label    string
	min, max int
}{
	{"0-30", 0, 30},
	{"31-60", 31, 60},
	{"61-90", 61, 90},
	{"91-120", 91, 120},
	{">120", 121, -1},
}

// outstanding reports whether a claim still counts toward aging: anything
// awaiting a final payment outcome.
func outstanding(status engine.State) bool {
	switch status {
	case claims.StatusPending, claims.StatusInReview, claims.StatusApproved,
		claims.StatusPartial, claims.StatusReturned:
		return true
	}
	return false
}

// =============================================================================
// AGGREGATE
// =============================================================================

// Input bundles the snapshot a report is derived from. Slices are read
// only; the aggregation never mutates them.
type Input struct {
	Claims         []*claims.Claim
	Authorizations []AuthorizationStatus
	Denials        []*claims.DenialRecord
	AsOf           time.Time
}

// AuthorizationStatus is the minimal authorization view the reporter
// needs; it avoids importing the authorization package so both domains can
// import report-free.
type AuthorizationStatus struct {
	ID     engine.AuthorizationID
	Status engine.State
}

// Aggregate computes the full summary report. Pure and idempotent; input
// order does not affect the output.
func Aggregate(in Input) *SummaryReport {
	r := &SummaryReport{
		GeneratedAsOf:       in.AsOf,
		TotalClaims:         len(in.Claims),
		TotalAuthorizations: len(in.Authorizations),
		TotalClaimedAmount:  engine.ZeroMoney(),
		TotalPaidAmount:     engine.ZeroMoney(),
	}

	// --- Status counts ---
	claimCounts := make(map[engine.State]int)
	for _, c := range in.Claims {
		claimCounts[c.Status]++
	}
	r.ClaimStatusCounts = toStatusCounts(claimCounts, len(in.Claims))

	authCounts := make(map[engine.State]int)
	for _, a := range in.Authorizations {
		authCounts[a.Status]++
	}
	r.AuthorizationStatusCounts = toStatusCounts(authCounts, len(in.Authorizations))

	// --- Aging buckets ---
	r.AgingBuckets = make([]AgingBucket, len(agingRanges))
	for i, b := range agingRanges {
		r.AgingBuckets[i] = AgingBucket{Label: b.label, MinDays: b.min, MaxDays: b.max, Amount: engine.ZeroMoney()}
	}
	for _, c := range in.Claims {
		if !outstanding(c.Status) || c.SubmittedAt.IsZero() {
			continue
		}
		age := int(in.AsOf.Sub(c.SubmittedAt).Hours() / 24)
		if age < 0 {
			age = 0
		}
		for i := range r.AgingBuckets {
			b := &r.AgingBuckets[i]
			if age >= b.MinDays && (b.MaxDays < 0 || age <= b.MaxDays) {
				b.Count++
				b.Amount = b.Amount.Add(c.ClaimedAmount)
				break
			}
		}
	}

	// --- Totals and payer rollups ---
	type payerAcc struct {
		count, denied, paidCount int
		total, paid              engine.Money
		daysToPayment            int
	}
	payers := make(map[engine.PayerID]*payerAcc)

	deniedClaims := 0
	for _, c := range in.Claims {
		acc := payers[c.PayerID]
		if acc == nil {
			acc = &payerAcc{total: engine.ZeroMoney(), paid: engine.ZeroMoney()}
			payers[c.PayerID] = acc
		}
		acc.count++
		acc.total = acc.total.Add(c.ClaimedAmount)
		r.TotalClaimedAmount = r.TotalClaimedAmount.Add(c.ClaimedAmount)

		if c.PaidAmount != nil {
			acc.paid = acc.paid.Add(*c.PaidAmount)
			r.TotalPaidAmount = r.TotalPaidAmount.Add(*c.PaidAmount)
		}
		if c.Status == claims.StatusRejected {
			acc.denied++
			deniedClaims++
		}
		if c.PaymentDate != nil && !c.SubmittedAt.IsZero() {
			acc.paidCount++
			acc.daysToPayment += int(c.PaymentDate.Sub(c.SubmittedAt).Hours() / 24)
		}
	}

	payerIDs := make([]engine.PayerID, 0, len(payers))
	for id := range payers {
		payerIDs = append(payerIDs, id)
	}
	sort.Slice(payerIDs, func(i, j int) bool { return payerIDs[i] < payerIDs[j] })

	for _, id := range payerIDs {
		acc := payers[id]
		r.PayerSummaries = append(r.PayerSummaries, PayerSummary{
			PayerID:          id,
			ClaimCount:       acc.count,
			TotalAmount:      acc.total,
			PaidAmount:       acc.paid,
			AvgDaysToPayment: ratio(decimal.NewFromInt(int64(acc.daysToPayment)), decimal.NewFromInt(int64(acc.paidCount))),
			DenialRate:       ratio(decimal.NewFromInt(int64(acc.denied)), decimal.NewFromInt(int64(acc.count))),
			CollectionRate:   ratio(acc.paid.Value, acc.total.Value),
		})
	}

	// --- Global rates ---
	r.CollectionRate = ratio(r.TotalPaidAmount.Value, r.TotalClaimedAmount.Value)
	r.DenialRate = ratio(decimal.NewFromInt(int64(deniedClaims)), decimal.NewFromInt(int64(len(in.Claims))))
	r.AppealSuccessRate = appealSuccessRate(in.Denials)

	return r
}

// appealSuccessRate = resolved / (resolved + submitted), guarding the
// zero-denominator case.
func appealSuccessRate(denials []*claims.DenialRecord) decimal.Decimal {
	resolved, submitted := 0, 0
	for _, d := range denials {
		switch d.AppealStatus {
		case claims.AppealResolved:
			resolved++
		case claims.AppealSubmitted:
			submitted++
		}
	}
	return ratio(decimal.NewFromInt(int64(resolved)), decimal.NewFromInt(int64(resolved+submitted)))
}

// ratio returns num/den, or 0 when den is zero.
func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

func toStatusCounts(counts map[engine.State]int, total int) []StatusCount {
	states := make([]engine.State, 0, len(counts))
	for s := range counts {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })

	out := make([]StatusCount, 0, len(states))
	for _, s := range states {
		pct := decimal.Zero
		if total > 0 {
			pct = decimal.NewFromInt(int64(counts[s])).Div(decimal.NewFromInt(int64(total))).Mul(decimal.NewFromInt(100))
		}
		out = append(out, StatusCount{Status: s, Count: counts[s], Percentage: pct})
	}
	return out
}
