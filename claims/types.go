/*
Package claims implements the claim lifecycle: submission, review,
payment, denial, and appeal. It configures the engine's transition graph
and validator for claim submissions.

INVARIANTS:
  - ClaimedAmount always equals the sum of the current service lines'
    totals; every line mutation recomputes it.
  - A claim with zero service lines cannot leave draft.
  - Payment fields (paidAmount, paymentDate, paymentReference) are present
    only once the status is paid or partial.

SEE ALSO:
  - lifecycle.go: transition graph, payment recording
  - denial.go: denial records and the appeal sub-flow
*/
package claims

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/claims-engine/engine"
)

// =============================================================================
// STATES
// =============================================================================

const (
	StatusDraft    engine.State = "draft"
	StatusPending  engine.State = "pending"
	StatusInReview engine.State = "in-review"
	StatusApproved engine.State = "approved"
	StatusPartial  engine.State = "partial"
	StatusPaid     engine.State = "paid"
	StatusRejected engine.State = "rejected"
	StatusReturned engine.State = "returned"
)

// =============================================================================
// EVENTS
// =============================================================================

const (
	EventSubmit        engine.Event = "submit"
	EventStartReview   engine.Event = "start_review"
	EventApprove       engine.Event = "approve"
	EventReject        engine.Event = "reject"
	EventReturn        engine.Event = "return"
	EventResubmit      engine.Event = "resubmit"
	EventRecordPayment engine.Event = "record_payment"
	EventPartialPay    engine.Event = "record_partial_payment"
	EventReopen        engine.Event = "reopen" // appeal resolution only
)

// =============================================================================
// SERVICE LINE
// =============================================================================

// ServiceLine is one billed service. TotalAmount is derived
// (quantity x unit price) and recomputed whenever the line changes.
type ServiceLine struct {
	ServiceCode engine.ServiceCode
	Quantity    int
	UnitPrice   engine.Money
	TotalAmount engine.Money
	ProviderID  engine.ClinicianID
	From        time.Time
	To          time.Time
}

func (l ServiceLine) computeTotal() engine.Money {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// =============================================================================
// CLAIM ENTITY
// =============================================================================

// Claim is a request for payment for delivered services. The authorization
// reference is a weak reference: lookup only, no ownership.
type Claim struct {
	ID                     engine.ClaimID
	ClaimNumber            string
	AuthorizationReference string
	PayerID                engine.PayerID
	Status                 engine.State

	ServiceLines  []ServiceLine
	ClaimedAmount engine.Money // derived: sum of line totals

	PaidAmount       *engine.Money
	PaymentDate      *time.Time
	PaymentReference string

	// Context flags selecting rule variants for this claim.
	PlanType      string
	PlanExtension bool
	Equipment     bool

	Documents        engine.DocumentSet
	PaymentTermsDays int

	SubmittedAt time.Time
	LastUpdated time.Time

	History []engine.AuditEntry
}

func NewClaim(id engine.ClaimID, claimNumber string, payer engine.PayerID) *Claim {
	return &Claim{
		ID:            id,
		ClaimNumber:   claimNumber,
		PayerID:       payer,
		Status:        StatusDraft,
		ClaimedAmount: engine.ZeroMoney(),
		Documents:     engine.NewDocumentSet(),
	}
}

// AddServiceLine appends a line, deriving its total, and recomputes the
// claimed amount.
func (c *Claim) AddServiceLine(line ServiceLine) {
	line.TotalAmount = line.computeTotal()
	c.ServiceLines = append(c.ServiceLines, line)
	c.recompute()
}

// UpdateServiceLine replaces the line at index i.
func (c *Claim) UpdateServiceLine(i int, line ServiceLine) bool {
	if i < 0 || i >= len(c.ServiceLines) {
		return false
	}
	line.TotalAmount = line.computeTotal()
	c.ServiceLines[i] = line
	c.recompute()
	return true
}

// RemoveServiceLine deletes the line at index i, preserving order.
func (c *Claim) RemoveServiceLine(i int) bool {
	if i < 0 || i >= len(c.ServiceLines) {
		return false
	}
	c.ServiceLines = append(c.ServiceLines[:i], c.ServiceLines[i+1:]...)
	c.recompute()
	return true
}

func (c *Claim) recompute() {
	total := engine.ZeroMoney()
	for _, l := range c.ServiceLines {
		total = total.Add(l.TotalAmount)
	}
	c.ClaimedAmount = total
}

// AttachDocuments unions new document types into the attached set. This is
// always allowed - including after a decision - and NEVER changes the
// status. It only bumps LastUpdated.
func (c *Claim) AttachDocuments(at time.Time, types ...engine.DocumentType) {
	c.Documents.Add(types...)
	c.LastUpdated = at
}

// Merge folds a concurrent edit of the same claim into this one: document
// sets merge by union, service lines and scalar fields are
// last-writer-wins based on LastUpdated. Status and history are NOT
// merged - transitions must be serialized by the caller.
func (c *Claim) Merge(other *Claim) {
	c.Documents = c.Documents.Union(other.Documents)
	if other.LastUpdated.After(c.LastUpdated) {
		c.ServiceLines = append([]ServiceLine(nil), other.ServiceLines...)
		c.PlanType = other.PlanType
		c.PlanExtension = other.PlanExtension
		c.Equipment = other.Equipment
		c.PaymentTermsDays = other.PaymentTermsDays
		c.LastUpdated = other.LastUpdated
		c.recompute()
	}
}

// RuleContext derives the catalog context for this claim.
func (c *Claim) RuleContext() engine.RuleContext {
	return engine.RuleContext{
		PlanType:      c.PlanType,
		PlanExtension: c.PlanExtension,
		Equipment:     c.Equipment,
	}
}

// Snapshot produces the validator's view of this claim.
func (c *Claim) Snapshot() engine.Snapshot {
	lines := make([]engine.ServiceLineRef, len(c.ServiceLines))
	for i, l := range c.ServiceLines {
		lines[i] = engine.ServiceLineRef{ServiceCode: l.ServiceCode, ProviderID: l.ProviderID}
	}
	return engine.Snapshot{
		Kind:             engine.KindClaim,
		ID:               string(c.ID),
		ServiceLines:     lines,
		Documents:        c.Documents,
		PaymentTermsDays: c.PaymentTermsDays,
	}
}

// =============================================================================
// PAYMENT RECORD
// =============================================================================

// PaymentRecord captures one reconciliation of an expected amount against
// an actual payment. ReconciliationStatus is "reconciled" iff the variance
// is exactly zero; "disputed" is an explicit caller decision.
type PaymentRecord struct {
	ID                   engine.PaymentID
	ClaimID              engine.ClaimID
	PaymentAmount        engine.Money
	ExpectedAmount       engine.Money
	Variance             engine.Money
	VariancePercentage   decimal.Decimal
	ReconciliationStatus engine.ReconciliationStatus
	RecordedAt           time.Time
}

// NewPaymentRecord runs the reconciliation calculator and captures the
// result.
func NewPaymentRecord(id engine.PaymentID, claimID engine.ClaimID, expected, actual engine.Money, at time.Time) *PaymentRecord {
	res := engine.Reconcile(expected, actual)
	return &PaymentRecord{
		ID:                   id,
		ClaimID:              claimID,
		PaymentAmount:        actual,
		ExpectedAmount:       expected,
		Variance:             res.Variance,
		VariancePercentage:   res.VariancePercentage,
		ReconciliationStatus: res.Status,
		RecordedAt:           at,
	}
}

// MarkDisputed flags an unreconciled record as disputed. A reconciled
// record (zero variance) has nothing to dispute.
func (p *PaymentRecord) MarkDisputed() bool {
	if p.ReconciliationStatus != engine.StatusUnreconciled {
		return false
	}
	p.ReconciliationStatus = engine.StatusDisputed
	return true
}
