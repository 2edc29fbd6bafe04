/*
lifecycle.go - Claim transition graph and service

PURPOSE:
  Configures the engine graph for claims and wires the validator in front
  of submission-triggering events. Payment events carry the payment fields
  so a claim can never be "paid" without an amount, date, and reference.

TRANSITION GRAPH:
  draft -> pending -> in-review -> {approved -> paid | partial | rejected | returned}
  returned -> pending            (resubmission after fixing issues)
  rejected -> {partial | paid}   (appeal resolution only, via the denial
                                  sub-flow's reopen event)
  Terminal: paid, rejected (unless the appeal sub-flow reopens it).

GATING:
  EventSubmit and EventResubmit re-run the validator. A claim with zero
  service lines never passes (blocking missing_required_field), so it
  cannot leave draft.

SEE ALSO:
  - types.go: Claim entity
  - denial.go: the sub-flow entered when a claim is rejected
*/
package claims

import (
	"time"

	"github.com/warp/claims-engine/engine"
)

// Graph returns the claim transition graph.
func Graph() *engine.Graph {
	g := engine.NewGraph("claim")

	g.Add(StatusDraft, EventSubmit, StatusPending)
	g.Add(StatusPending, EventStartReview, StatusInReview)
	g.Add(StatusInReview, EventApprove, StatusApproved)
	g.Add(StatusApproved, EventRecordPayment, StatusPaid)
	g.Add(StatusInReview, EventPartialPay, StatusPartial)
	g.Add(StatusInReview, EventReject, StatusRejected)
	g.Add(StatusInReview, EventReturn, StatusReturned)
	g.Add(StatusReturned, EventResubmit, StatusPending)

	// A resolved appeal reopens a rejected claim. This is the only path out
	// of a terminal state and is reachable only through the denial service.
	g.Add(StatusRejected, EventReopen, StatusPartial)

	g.MarkTerminal(StatusPaid, StatusRejected)
	return g
}

// =============================================================================
// SERVICE - Validator-gated transitions and payment recording
// =============================================================================

type Service struct {
	Validator *engine.Validator
	graph     *engine.Graph
}

func NewService(validator *engine.Validator) *Service {
	return &Service{Validator: validator, graph: Graph()}
}

// Attempt applies an event to a claim. Submission-triggering events are
// gated by the validator; all accepted transitions append an audit entry.
// On refusal the claim is unchanged. Advisory violations observed during a
// gated transition are returned alongside success.
func (s *Service) Attempt(c *Claim, event engine.Event, now time.Time) ([]engine.Violation, error) {
	var advisories []engine.Violation

	if event == EventSubmit || event == EventResubmit {
		violations, err := s.Validator.Validate(c.Snapshot(), c.RuleContext(), now)
		if err != nil {
			return nil, err
		}
		if engine.HasBlocking(violations) {
			return violations, &engine.TransitionError{
				Kind:       engine.TransitionBlockingViolations,
				From:       c.Status,
				Event:      event,
				Violations: violations,
			}
		}
		advisories = violations
	}

	next, entry, terr := s.graph.Apply(c.Status, event, now)
	if terr != nil {
		return advisories, terr
	}

	c.Status = next
	c.History = append(c.History, entry)
	c.LastUpdated = now

	if event == EventSubmit && c.SubmittedAt.IsZero() {
		c.SubmittedAt = now
	}

	return advisories, nil
}

// RecordPayment transitions an approved claim to paid, or an in-review
// claim to partial, carrying the payment fields atomically with the state
// change. It returns the reconciliation of the claimed amount against the
// payment.
func (s *Service) RecordPayment(c *Claim, amount engine.Money, reference string, at time.Time) (engine.ReconciliationResult, error) {
	event := EventRecordPayment
	if amount.LessThan(c.ClaimedAmount) {
		event = EventPartialPay
	}

	next, entry, terr := s.graph.Apply(c.Status, event, at)
	if terr != nil {
		return engine.ReconciliationResult{}, terr
	}

	c.Status = next
	c.History = append(c.History, entry)
	c.LastUpdated = at
	c.PaidAmount = &amount
	c.PaymentDate = &at
	c.PaymentReference = reference

	return engine.Reconcile(c.ClaimedAmount, amount), nil
}

// reopen is called by the denial service when an appeal resolves with a
// resolution amount. A full resolution lands on paid, anything less on
// partial.
func (s *Service) reopen(c *Claim, resolution engine.Money, reference string, at time.Time) error {
	next, entry, terr := s.graph.Apply(c.Status, EventReopen, at)
	if terr != nil {
		return terr
	}
	if resolution.Equal(c.ClaimedAmount) || resolution.GreaterThan(c.ClaimedAmount) {
		next = StatusPaid
		entry.ToState = StatusPaid
	}

	c.Status = next
	c.History = append(c.History, entry)
	c.LastUpdated = at
	c.PaidAmount = &resolution
	c.PaymentDate = &at
	c.PaymentReference = reference
	return nil
}
