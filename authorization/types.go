/*
Package authorization implements the prior-authorization request lifecycle.
It configures the engine's transition graph and validator for authorization
submissions.

ENTITY:
  Request is the canonical authorization entity. Its status only advances
  along the transition graph in lifecycle.go; the reference number is
  immutable once assigned; documents attached after a decision never change
  the status.

SEE ALSO:
  - lifecycle.go: transition graph, submission service
  - engine/validator.go: the checks run before submission
*/
package authorization

import (
	"time"

	"github.com/warp/claims-engine/engine"
)

// =============================================================================
// STATES
// =============================================================================

const (
	StatusDraft          engine.State = "draft"
	StatusPendingSync    engine.State = "pending-sync"
	StatusSubmitted      engine.State = "submitted"
	StatusInReview       engine.State = "in-review"
	StatusAdditionalInfo engine.State = "additional-info-required"
	StatusApproved       engine.State = "approved"
	StatusRejected       engine.State = "rejected"
)

// =============================================================================
// EVENTS
// =============================================================================

const (
	EventSubmit      engine.Event = "submit"
	EventStartReview engine.Event = "start_review"
	EventApprove     engine.Event = "approve"
	EventReject      engine.Event = "reject"
	EventRequestInfo engine.Event = "request_info"
	EventProvideInfo engine.Event = "provide_info"
	EventGoOffline   engine.Event = "go_offline"
	EventSync        engine.Event = "sync"
)

// =============================================================================
// REQUEST ENTITY
// =============================================================================

// Request is a prior-authorization submission. All mutation goes through
// the Service (validator + state machine); callers never set Status
// directly.
type Request struct {
	ID              engine.AuthorizationID
	ReferenceNumber string // external tracking; immutable once assigned
	PayerID         engine.PayerID
	Status          engine.State

	RequestedServices     []engine.ServiceCode
	RequestedDurationDays int

	// Only the justification length is tracked; the engine never needs the
	// text itself for validation.
	ClinicalJustificationLength int

	Documents      engine.DocumentSet
	PatientSigned  bool
	ProviderSigned bool

	// Context flags selecting rule variants for this request.
	PlanType         string
	PlanExtension    bool
	Equipment        bool
	PaymentTermsDays int

	SubmissionTimestamp time.Time
	ReviewDeadline      time.Time
	LastUpdated         time.Time

	History []engine.AuditEntry
}

// NewRequest creates a draft request. Everything else happens through the
// Service.
func NewRequest(id engine.AuthorizationID, payer engine.PayerID) *Request {
	return &Request{
		ID:        id,
		PayerID:   payer,
		Status:    StatusDraft,
		Documents: engine.NewDocumentSet(),
	}
}

// RuleContext derives the catalog context for this request.
func (r *Request) RuleContext() engine.RuleContext {
	return engine.RuleContext{
		PlanType:      r.PlanType,
		PlanExtension: r.PlanExtension,
		Equipment:     r.Equipment,
	}
}

// Snapshot produces the validator's view of this request.
func (r *Request) Snapshot() engine.Snapshot {
	return engine.Snapshot{
		Kind:                  engine.KindAuthorization,
		ID:                    string(r.ID),
		RequestedServices:     r.RequestedServices,
		RequestedDurationDays: r.RequestedDurationDays,
		JustificationLength:   r.ClinicalJustificationLength,
		PatientSigned:         r.PatientSigned,
		ProviderSigned:        r.ProviderSigned,
		Documents:             r.Documents,
		PaymentTermsDays:      r.PaymentTermsDays,
	}
}

// AttachDocuments unions new document types into the attached set. This is
// always allowed - including after approval or rejection - and NEVER
// changes the status. It only bumps LastUpdated.
func (r *Request) AttachDocuments(at time.Time, types ...engine.DocumentType) {
	r.Documents.Add(types...)
	r.LastUpdated = at
}

// AssignReference sets the external reference number. It is immutable once
// assigned: a second assignment with a different value is refused.
func (r *Request) AssignReference(ref string) error {
	if r.ReferenceNumber != "" && r.ReferenceNumber != ref {
		return engine.ErrImmutableField
	}
	r.ReferenceNumber = ref
	return nil
}

// Merge folds a concurrent edit of the same request into this one:
// document sets merge by union, scalar fields are last-writer-wins based
// on LastUpdated. Status and history are NOT merged - transitions must be
// serialized by the caller.
func (r *Request) Merge(other *Request) {
	r.Documents = r.Documents.Union(other.Documents)
	if other.LastUpdated.After(r.LastUpdated) {
		r.RequestedServices = other.RequestedServices
		r.RequestedDurationDays = other.RequestedDurationDays
		r.ClinicalJustificationLength = other.ClinicalJustificationLength
		r.PatientSigned = other.PatientSigned
		r.ProviderSigned = other.ProviderSigned
		r.PaymentTermsDays = other.PaymentTermsDays
		r.LastUpdated = other.LastUpdated
	}
}
