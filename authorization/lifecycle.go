/*
lifecycle.go - Authorization request transition graph and service

PURPOSE:
  Configures the engine graph for authorization requests and wires the
  validator in front of submission-triggering events.

TRANSITION GRAPH:
  draft -> submitted -> in-review -> {approved | rejected | additional-info-required}
  additional-info-required -> in-review   (after new documents attached)
  any non-decided state -> pending-sync   (caller went offline)
  pending-sync -> submitted               (connectivity returned; no other
                                           fields change on this transition)

GATING:
  EventSubmit and EventSync re-run the validator. Any blocking violation
  refuses the transition with TransitionBlockingViolations; advisory-only
  results proceed (the caller has already seen the advisories).

SEE ALSO:
  - types.go: Request entity
  - engine/lifecycle.go: Apply contract and audit entries
*/
package authorization

import (
	"time"

	"github.com/warp/claims-engine/engine"
)

// DefaultReviewWindowDays is the payer's review SLA: the review deadline
// set on submission.
const DefaultReviewWindowDays = 14

// Graph returns the authorization transition graph.
func Graph() *engine.Graph {
	g := engine.NewGraph("authorization")

	g.Add(StatusDraft, EventSubmit, StatusSubmitted)
	g.Add(StatusSubmitted, EventStartReview, StatusInReview)
	g.Add(StatusInReview, EventApprove, StatusApproved)
	g.Add(StatusInReview, EventReject, StatusRejected)
	g.Add(StatusInReview, EventRequestInfo, StatusAdditionalInfo)
	g.Add(StatusAdditionalInfo, EventProvideInfo, StatusInReview)

	// Offline support: every state except the decisions can park in
	// pending-sync, and pending-sync replays as a submission.
	for _, s := range []engine.State{StatusDraft, StatusSubmitted, StatusInReview, StatusAdditionalInfo} {
		g.Add(s, EventGoOffline, StatusPendingSync)
	}
	g.Add(StatusPendingSync, EventSync, StatusSubmitted)

	g.MarkTerminal(StatusApproved, StatusRejected)
	return g
}

// =============================================================================
// SERVICE - Validator-gated transitions
// =============================================================================

type Service struct {
	Validator *engine.Validator
	graph     *engine.Graph
}

func NewService(validator *engine.Validator) *Service {
	return &Service{Validator: validator, graph: Graph()}
}

// Attempt applies an event to a request. Submission-triggering events
// (submit, sync) are gated by the validator; all accepted transitions
// append an audit entry. On refusal the request is unchanged.
//
// The advisory violations observed during a gated transition are returned
// so callers can surface them even when the transition succeeds.
func (s *Service) Attempt(r *Request, event engine.Event, now time.Time) ([]engine.Violation, error) {
	var advisories []engine.Violation

	if event == EventSubmit || event == EventSync {
		violations, err := s.Validator.Validate(r.Snapshot(), r.RuleContext(), now)
		if err != nil {
			return nil, err
		}
		if engine.HasBlocking(violations) {
			return violations, &engine.TransitionError{
				Kind:       engine.TransitionBlockingViolations,
				From:       r.Status,
				Event:      event,
				Violations: violations,
			}
		}
		advisories = violations
	}

	next, entry, terr := s.graph.Apply(r.Status, event, now)
	if terr != nil {
		return advisories, terr
	}

	r.Status = next
	r.History = append(r.History, entry)
	r.LastUpdated = now

	// First successful submission stamps the submission metadata. A sync
	// replay keeps the original timestamps: no other fields change on
	// pending-sync -> submitted beyond the status itself.
	if event == EventSubmit && r.SubmissionTimestamp.IsZero() {
		r.SubmissionTimestamp = now
		r.ReviewDeadline = now.AddDate(0, 0, DefaultReviewWindowDays)
	}

	return advisories, nil
}

// Submit is the common entry point: validates, transitions, and assigns the
// external reference number on first success. The reference format is the
// caller's policy; it is treated as opaque here.
func (s *Service) Submit(r *Request, referenceNumber string, now time.Time) ([]engine.Violation, error) {
	advisories, err := s.Attempt(r, EventSubmit, now)
	if err != nil {
		return advisories, err
	}
	if r.ReferenceNumber == "" && referenceNumber != "" {
		if err := r.AssignReference(referenceNumber); err != nil {
			return advisories, err
		}
	}
	return advisories, nil
}
