/*
denial.go - Denial records and the appeal sub-flow

PURPOSE:
  A claim transitioning to rejected automatically opens a DenialRecord
  with an appeal deadline (denial date + policy window). The appeal runs
  its own nested lifecycle:

    not_started -> in_progress -> submitted -> {resolved | rejected}

  Submitting past the deadline is refused with
  TransitionDeadlinePassed unless the caller supplies an explicit
  override - the interactive "confirm anyway" prompt modeled as a flag.

  Resolution requires a resolution amount; it creates a PaymentRecord
  reconciliation against the claimed amount and reopens the rejected
  claim (partial, or paid when fully covered). Resolved and rejected
  appeals are terminal.

SEE ALSO:
  - lifecycle.go: the claim-side reopen transition
  - engine/reconcile.go: the reconciliation run on resolution
*/
package claims

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/warp/claims-engine/engine"
)

// =============================================================================
// APPEAL STATES AND EVENTS
// =============================================================================

const (
	AppealNotStarted engine.State = "not_started"
	AppealInProgress engine.State = "in_progress"
	AppealSubmitted  engine.State = "submitted"
	AppealResolved   engine.State = "resolved"
	AppealRejected   engine.State = "rejected"
)

const (
	EventStartAppeal   engine.Event = "start_appeal"
	EventSubmitAppeal  engine.Event = "submit_appeal"
	EventResolveAppeal engine.Event = "resolve_appeal"
	EventRejectAppeal  engine.Event = "reject_appeal"
)

// DefaultAppealWindowDays is the payer's appeal policy window.
const DefaultAppealWindowDays = 30

// ErrResolutionAmountRequired is returned when resolving an appeal without
// a resolution amount.
var ErrResolutionAmountRequired = errors.New("appeal resolution requires a resolution amount")

// =============================================================================
// DENIAL RECORD
// =============================================================================

type DenialRecord struct {
	ID           engine.DenialID
	ClaimID      engine.ClaimID // weak reference: lookup only
	DenialReason string
	DenialCode   string
	DenialDate   time.Time

	AppealStatus   engine.State
	AppealDeadline time.Time // derived: DenialDate + policy window

	ResolutionAmount *engine.Money

	History []engine.AuditEntry
}

// NewDenialRecord opens the sub-flow for a rejected claim. windowDays <= 0
// uses the default policy window.
func NewDenialRecord(claimID engine.ClaimID, reason, code string, deniedAt time.Time, windowDays int) *DenialRecord {
	if windowDays <= 0 {
		windowDays = DefaultAppealWindowDays
	}
	return &DenialRecord{
		ID:             engine.DenialID(uuid.NewString()),
		ClaimID:        claimID,
		DenialReason:   reason,
		DenialCode:     code,
		DenialDate:     deniedAt,
		AppealStatus:   AppealNotStarted,
		AppealDeadline: deniedAt.AddDate(0, 0, windowDays),
	}
}

// AppealGraph returns the nested appeal lifecycle.
func AppealGraph() *engine.Graph {
	g := engine.NewGraph("appeal")
	g.Add(AppealNotStarted, EventStartAppeal, AppealInProgress)
	g.Add(AppealInProgress, EventSubmitAppeal, AppealSubmitted)
	g.Add(AppealSubmitted, EventResolveAppeal, AppealResolved)
	g.Add(AppealSubmitted, EventRejectAppeal, AppealRejected)
	g.MarkTerminal(AppealResolved, AppealRejected)
	return g
}

// =============================================================================
// APPEAL SERVICE
// =============================================================================

type AppealService struct {
	Claims *Service
	graph  *engine.Graph
}

func NewAppealService(claims *Service) *AppealService {
	return &AppealService{Claims: claims, graph: AppealGraph()}
}

// OpenForRejection creates the denial record for a claim that just
// transitioned to rejected.
func (s *AppealService) OpenForRejection(c *Claim, reason, code string, at time.Time) (*DenialRecord, error) {
	if c.Status != StatusRejected {
		return nil, &engine.TransitionError{
			Kind:  engine.TransitionInvalidForState,
			From:  c.Status,
			Event: EventStartAppeal,
		}
	}
	return NewDenialRecord(c.ID, reason, code, at, DefaultAppealWindowDays), nil
}

// Attempt applies an appeal event. Submitting past the appeal deadline is
// refused unless overrideDeadline is set. On refusal the record is
// unchanged.
func (s *AppealService) Attempt(d *DenialRecord, event engine.Event, now time.Time, overrideDeadline bool) error {
	if event == EventSubmitAppeal && now.After(d.AppealDeadline) && !overrideDeadline {
		return &engine.TransitionError{
			Kind:  engine.TransitionDeadlinePassed,
			From:  d.AppealStatus,
			Event: event,
		}
	}

	next, entry, terr := s.graph.Apply(d.AppealStatus, event, now)
	if terr != nil {
		return terr
	}

	d.AppealStatus = next
	d.History = append(d.History, entry)
	return nil
}

// Resolve closes a submitted appeal with a resolution amount, reconciles
// it against the claim's claimed amount, and reopens the claim. The claim
// pointer may be nil when the caller only tracks the denial record; the
// reconciliation then uses the recorded resolution amount alone.
func (s *AppealService) Resolve(d *DenialRecord, c *Claim, amount engine.Money, now time.Time) (*PaymentRecord, error) {
	if amount.IsNegative() || amount.IsZero() {
		return nil, ErrResolutionAmountRequired
	}

	// Check the claim side first so a refused reopen leaves the denial
	// record untouched.
	if c != nil {
		if _, ok := s.Claims.graph.Next(c.Status, EventReopen); !ok {
			return nil, &engine.TransitionError{
				Kind:  engine.TransitionInvalidForState,
				From:  c.Status,
				Event: EventReopen,
			}
		}
	}

	if err := s.Attempt(d, EventResolveAppeal, now, false); err != nil {
		return nil, err
	}
	d.ResolutionAmount = &amount

	expected := amount
	if c != nil {
		expected = c.ClaimedAmount
	}
	record := NewPaymentRecord(engine.PaymentID(uuid.NewString()), d.ClaimID, expected, amount, now)

	if c != nil {
		if err := s.Claims.reopen(c, amount, "appeal:"+string(d.ID), now); err != nil {
			return nil, err
		}
	}
	return record, nil
}
