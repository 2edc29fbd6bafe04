/*
handlers.go - HTTP API handlers for the claims lifecycle engine

PURPOSE:
  Exposes the authorization and claim lifecycles via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the domain
  services.

ENDPOINTS:
  Authorizations:
    GET    /api/authorizations                List authorization requests
    POST   /api/authorizations                Create draft request
    GET    /api/authorizations/{id}           Get request
    PUT    /api/authorizations/{id}           Update draft fields
    POST   /api/authorizations/{id}/documents Attach documents (set union)
    POST   /api/authorizations/{id}/validate  Dry-run validation
    POST   /api/authorizations/{id}/submit    Validate and submit
    POST   /api/authorizations/{id}/events    Apply a lifecycle event
    POST   /api/authorizations/{id}/merge     Merge a concurrent edit

  Claims:
    GET    /api/claims                        List claims
    POST   /api/claims                        Create draft claim
    GET    /api/claims/{id}                   Get claim
    POST   /api/claims/{id}/lines             Add service line
    PUT    /api/claims/{id}/lines/{index}     Update service line
    DELETE /api/claims/{id}/lines/{index}     Remove service line
    POST   /api/claims/{id}/documents         Attach documents (set union)
    POST   /api/claims/{id}/merge             Merge a concurrent edit
    POST   /api/claims/{id}/validate          Dry-run validation
    POST   /api/claims/{id}/events            Apply a lifecycle event
    POST   /api/claims/{id}/deny              Reject and open denial record
    POST   /api/claims/{id}/payment           Record a payment
    GET    /api/claims/{id}/payments          Payment reconciliation history
    GET    /api/claims/{id}/denial            Latest denial record

  Denials / Appeals:
    GET    /api/denials                       List denial records
    GET    /api/denials/{id}                  Get denial record
    POST   /api/denials/{id}/events           Apply an appeal event
    POST   /api/denials/{id}/resolve          Resolve with amount (reopens claim)

  Other:
    POST   /api/reconcile                     Pure reconciliation calculation
    GET    /api/reports/summary               Aggregation report
    GET    /api/licenses                      License directory
    PUT    /api/licenses                      Upsert license
    DELETE /api/licenses/{clinicianId}        Remove license

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, immutable field, unknown rule context
  - 404: Entity not found
  - 409: Refused transition (invalid event, blocking violations, deadline)
  - 500: Internal errors
  Refused transitions carry the violation list in the body so clients can
  render them.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/claims-engine/authorization"
	"github.com/warp/claims-engine/claims"
	"github.com/warp/claims-engine/engine"
	"github.com/warp/claims-engine/report"
	"github.com/warp/claims-engine/store"
)

const timeLayout = time.RFC3339

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store          store.Store
	Authorizations *authorization.Service
	Claims         *claims.Service
	Appeals        *claims.AppealService

	// now is swappable in tests.
	now func() time.Time
}

// NewHandler creates a new handler with the given store. The validator
// resolves licenses through the store so directory updates take effect on
// the next validation.
func NewHandler(st store.Store) *Handler {
	validator := engine.NewValidator(engine.DefaultCatalog(), storeDirectory{licenses: st})
	claimSvc := claims.NewService(validator)
	return &Handler{
		Store:          st,
		Authorizations: authorization.NewService(validator),
		Claims:         claimSvc,
		Appeals:        claims.NewAppealService(claimSvc),
		now:            time.Now,
	}
}

// storeDirectory adapts the license store to the validator's read-only
// directory interface.
type storeDirectory struct {
	licenses store.LicenseStore
}

func (d storeDirectory) Lookup(clinician engine.ClinicianID) (engine.ClinicianLicense, bool) {
	l, err := d.licenses.GetLicense(context.Background(), clinician)
	return l, err == nil
}

// =============================================================================
// AUTHORIZATION ENDPOINTS
// =============================================================================

// ListAuthorizations returns all authorization requests.
// GET /api/authorizations
func (h *Handler) ListAuthorizations(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Store.ListAuthorizations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list authorizations", err)
		return
	}

	dtos := make([]*AuthorizationDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toAuthorizationDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAuthorization creates a draft authorization request.
// POST /api/authorizations
func (h *Handler) CreateAuthorization(w http.ResponseWriter, r *http.Request) {
	var req CreateAuthorizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PayerID == "" {
		writeError(w, http.StatusBadRequest, "payer_id is required", nil)
		return
	}

	auth := authorization.NewRequest(engine.AuthorizationID(uuid.NewString()), engine.PayerID(req.PayerID))
	for _, s := range req.RequestedServices {
		auth.RequestedServices = append(auth.RequestedServices, engine.ServiceCode(s))
	}
	auth.RequestedDurationDays = req.RequestedDurationDays
	auth.ClinicalJustificationLength = req.JustificationLength
	auth.PatientSigned = req.PatientSigned
	auth.ProviderSigned = req.ProviderSigned
	auth.PlanType = req.PlanType
	auth.PlanExtension = req.PlanExtension
	auth.Equipment = req.Equipment
	auth.PaymentTermsDays = req.PaymentTermsDays
	auth.LastUpdated = h.now()

	if err := h.Store.SaveAuthorization(r.Context(), auth); err != nil {
		writeDomainError(w, "Failed to create authorization", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuthorizationDTO(auth))
}

// GetAuthorization returns one authorization request.
// GET /api/authorizations/{id}
func (h *Handler) GetAuthorization(w http.ResponseWriter, r *http.Request) {
	auth, err := h.loadAuthorization(w, r)
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, toAuthorizationDTO(auth))
}

// UpdateAuthorization edits the mutable draft fields.
// PUT /api/authorizations/{id}
func (h *Handler) UpdateAuthorization(w http.ResponseWriter, r *http.Request) {
	auth, err := h.loadAuthorization(w, r)
	if err != nil {
		return
	}

	var req UpdateAuthorizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.RequestedServices != nil {
		auth.RequestedServices = nil
		for _, s := range *req.RequestedServices {
			auth.RequestedServices = append(auth.RequestedServices, engine.ServiceCode(s))
		}
	}
	if req.RequestedDurationDays != nil {
		auth.RequestedDurationDays = *req.RequestedDurationDays
	}
	if req.JustificationLength != nil {
		auth.ClinicalJustificationLength = *req.JustificationLength
	}
	if req.PatientSigned != nil {
		auth.PatientSigned = *req.PatientSigned
	}
	if req.ProviderSigned != nil {
		auth.ProviderSigned = *req.ProviderSigned
	}
	if req.PaymentTermsDays != nil {
		auth.PaymentTermsDays = *req.PaymentTermsDays
	}
	auth.LastUpdated = h.now()

	if err := h.Store.SaveAuthorization(r.Context(), auth); err != nil {
		writeDomainError(w, "Failed to save authorization", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthorizationDTO(auth))
}

// AttachAuthorizationDocuments unions document types into the attached
// set. Allowed in any state; never changes the status.
// POST /api/authorizations/{id}/documents
func (h *Handler) AttachAuthorizationDocuments(w http.ResponseWriter, r *http.Request) {
	auth, err := h.loadAuthorization(w, r)
	if err != nil {
		return
	}

	var req AttachDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	types := make([]engine.DocumentType, len(req.Documents))
	for i, d := range req.Documents {
		types[i] = engine.DocumentType(d)
	}
	auth.AttachDocuments(h.now(), types...)

	if err := h.Store.SaveAuthorization(r.Context(), auth); err != nil {
		writeDomainError(w, "Failed to save authorization", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthorizationDTO(auth))
}

// ValidateAuthorization runs the validator without attempting a
// transition.
// POST /api/authorizations/{id}/validate
func (h *Handler) ValidateAuthorization(w http.ResponseWriter, r *http.Request) {
	auth, err := h.loadAuthorization(w, r)
	if err != nil {
		return
	}

	violations, err := h.Authorizations.Validator.Validate(auth.Snapshot(), auth.RuleContext(), h.now())
	if err != nil {
		writeDomainError(w, "Validation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ValidationResponse{
		Valid:      !engine.HasBlocking(violations),
		Violations: toViolationDTOs(violations),
	})
}

// SubmitAuthorization validates and submits a request, assigning the
// external reference on first success.
// POST /api/authorizations/{id}/submit
func (h *Handler) SubmitAuthorization(w http.ResponseWriter, r *http.Request) {
	auth, err := h.loadAuthorization(w, r)
	if err != nil {
		return
	}

	var req SubmitRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	advisories, err := h.Authorizations.Submit(auth, req.ReferenceNumber, h.now())
	if err != nil {
		writeDomainError(w, "Submission refused", err)
		return
	}
	if err := h.Store.SaveAuthorization(r.Context(), auth); err != nil {
		writeDomainError(w, "Failed to save authorization", err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{
		Authorization: toAuthorizationDTO(auth),
		Advisories:    toViolationDTOs(advisories),
	})
}

// ApplyAuthorizationEvent applies a lifecycle event.
// POST /api/authorizations/{id}/events
func (h *Handler) ApplyAuthorizationEvent(w http.ResponseWriter, r *http.Request) {
	auth, err := h.loadAuthorization(w, r)
	if err != nil {
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	advisories, err := h.Authorizations.Attempt(auth, engine.Event(req.Event), h.now())
	if err != nil {
		writeDomainError(w, "Transition refused", err)
		return
	}
	if err := h.Store.SaveAuthorization(r.Context(), auth); err != nil {
		writeDomainError(w, "Failed to save authorization", err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{
		Authorization: toAuthorizationDTO(auth),
		Advisories:    toViolationDTOs(advisories),
	})
}

// MergeAuthorizations folds another stored request (a concurrent edit of
// the same submission) into this one: documents union, scalars
// last-writer-wins.
// POST /api/authorizations/{id}/merge
func (h *Handler) MergeAuthorizations(w http.ResponseWriter, r *http.Request) {
	auth, err := h.loadAuthorization(w, r)
	if err != nil {
		return
	}

	var req struct {
		OtherID string `json:"other_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	other, err := h.Store.GetAuthorization(r.Context(), engine.AuthorizationID(req.OtherID))
	if err != nil {
		writeDomainError(w, "Failed to load authorization", err)
		return
	}

	auth.Merge(other)
	if err := h.Store.SaveAuthorization(r.Context(), auth); err != nil {
		writeDomainError(w, "Failed to save authorization", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthorizationDTO(auth))
}

func (h *Handler) loadAuthorization(w http.ResponseWriter, r *http.Request) (*authorization.Request, error) {
	id := chi.URLParam(r, "id")
	auth, err := h.Store.GetAuthorization(r.Context(), engine.AuthorizationID(id))
	if err != nil {
		writeDomainError(w, "Failed to load authorization", err)
		return nil, err
	}
	return auth, nil
}

// =============================================================================
// CLAIM ENDPOINTS
// =============================================================================

// ListClaims returns all claims.
// GET /api/claims
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	all, err := h.Store.ListClaims(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list claims", err)
		return
	}

	dtos := make([]*ClaimDTO, len(all))
	for i, c := range all {
		dtos[i] = toClaimDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClaim creates a draft claim.
// POST /api/claims
func (h *Handler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	var req CreateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PayerID == "" {
		writeError(w, http.StatusBadRequest, "payer_id is required", nil)
		return
	}

	c := claims.NewClaim(engine.ClaimID(uuid.NewString()), req.ClaimNumber, engine.PayerID(req.PayerID))
	c.AuthorizationReference = req.AuthorizationReference
	c.PlanType = req.PlanType
	c.PlanExtension = req.PlanExtension
	c.Equipment = req.Equipment
	c.PaymentTermsDays = req.PaymentTermsDays
	for _, in := range req.ServiceLines {
		line, err := parseServiceLine(in)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid service line", err)
			return
		}
		c.AddServiceLine(line)
	}
	c.LastUpdated = h.now()

	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to create claim", err)
		return
	}
	writeJSON(w, http.StatusCreated, toClaimDTO(c))
}

// GetClaim returns one claim.
// GET /api/claims/{id}
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadClaim(w, r)
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// AddServiceLine appends a service line; the claimed amount is recomputed.
// POST /api/claims/{id}/lines
func (h *Handler) AddServiceLine(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadClaim(w, r)
	if err != nil {
		return
	}

	var in ServiceLineInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	line, err := parseServiceLine(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service line", err)
		return
	}

	c.AddServiceLine(line)
	c.LastUpdated = h.now()

	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to save claim", err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// UpdateServiceLine replaces the line at the given index.
// PUT /api/claims/{id}/lines/{index}
func (h *Handler) UpdateServiceLine(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadClaim(w, r)
	if err != nil {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid line index", err)
		return
	}

	var in ServiceLineInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	line, err := parseServiceLine(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service line", err)
		return
	}

	if !c.UpdateServiceLine(index, line) {
		writeError(w, http.StatusNotFound, "Service line not found", nil)
		return
	}
	c.LastUpdated = h.now()

	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to save claim", err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// RemoveServiceLine deletes the line at the given index.
// DELETE /api/claims/{id}/lines/{index}
func (h *Handler) RemoveServiceLine(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadClaim(w, r)
	if err != nil {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid line index", err)
		return
	}

	if !c.RemoveServiceLine(index) {
		writeError(w, http.StatusNotFound, "Service line not found", nil)
		return
	}
	c.LastUpdated = h.now()

	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to save claim", err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// AttachClaimDocuments unions document types into the attached set.
// Allowed in any state; never changes the status.
// POST /api/claims/{id}/documents
func (h *Handler) AttachClaimDocuments(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadClaim(w, r)
	if err != nil {
		return
	}

	var req AttachDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	types := make([]engine.DocumentType, len(req.Documents))
	for i, d := range req.Documents {
		types[i] = engine.DocumentType(d)
	}
	c.AttachDocuments(h.now(), types...)

	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to save claim", err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// MergeClaims folds another stored claim (a concurrent edit of the same
// submission) into this one: documents union, lines and scalars
// last-writer-wins.
// POST /api/claims/{id}/merge
func (h *Handler) MergeClaims(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadClaim(w, r)
	if err != nil {
		return
	}

	var req struct {
		OtherID string `json:"other_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	other, err := h.Store.GetClaim(r.Context(), engine.ClaimID(req.OtherID))
	if err != nil {
		writeDomainError(w, "Failed to load claim", err)
		return
	}

	c.Merge(other)
	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to save claim", err)
		return
	}
	writeJSON(w, http.StatusOK, toClaimDTO(c))
}

// ValidateClaim runs the validator without attempting a transition.
// POST /api/claims/{id}/validate
func (h *Handler) ValidateClaim(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadClaim(w, r)
	if err != nil {
		return
	}

	violations, err := h.Claims.Validator.Validate(c.Snapshot(), c.RuleContext(), h.now())
	if err != nil {
		writeDomainError(w, "Validation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ValidationResponse{
		Valid:      !engine.HasBlocking(violations),
		Violations: toViolationDTOs(violations),
	})
}

// ApplyClaimEvent applies a lifecycle event.
// POST /api/claims/{id}/events
func (h *Handler) ApplyClaimEvent(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadClaim(w, r)
	if err != nil {
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	advisories, err := h.Claims.Attempt(c, engine.Event(req.Event), h.now())
	if err != nil {
		writeDomainError(w, "Transition refused", err)
		return
	}
	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to save claim", err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{
		Claim:      toClaimDTO(c),
		Advisories: toViolationDTOs(advisories),
	})
}

// DenyClaim rejects an in-review claim and opens its denial record, which
// starts the appeal window.
// POST /api/claims/{id}/deny
func (h *Handler) DenyClaim(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadClaim(w, r)
	if err != nil {
		return
	}

	var req DenyClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	now := h.now()
	if _, err := h.Claims.Attempt(c, claims.EventReject, now); err != nil {
		writeDomainError(w, "Transition refused", err)
		return
	}

	denial, err := h.Appeals.OpenForRejection(c, req.Reason, req.Code, now)
	if err != nil {
		writeDomainError(w, "Failed to open denial record", err)
		return
	}

	// The denial record carries the appeal window, so it is persisted
	// first: a failed claim save leaves a spare denial for a claim still
	// in review, never a rejected claim with no appeal path.
	if err := h.Store.SaveDenial(r.Context(), denial); err != nil {
		writeDomainError(w, "Failed to save denial record", err)
		return
	}
	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to save claim", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Claim  *ClaimDTO  `json:"claim"`
		Denial *DenialDTO `json:"denial"`
	}{toClaimDTO(c), toDenialDTO(denial)})
}

// RecordClaimPayment records a payer payment: full payments land on paid,
// short payments on partial. The reconciliation record is persisted.
// POST /api/claims/{id}/payment
func (h *Handler) RecordClaimPayment(w http.ResponseWriter, r *http.Request) {
	c, err := h.loadClaim(w, r)
	if err != nil {
		return
	}

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseMoneyField(req.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	now := h.now()
	expected := c.ClaimedAmount
	result, err := h.Claims.RecordPayment(c, amount, req.Reference, now)
	if err != nil {
		writeDomainError(w, "Payment refused", err)
		return
	}

	record := claims.NewPaymentRecord(engine.PaymentID(uuid.NewString()), c.ID, expected, amount, now)
	if err := h.Store.SaveClaim(r.Context(), c); err != nil {
		writeDomainError(w, "Failed to save claim", err)
		return
	}
	if err := h.Store.SavePayment(r.Context(), record); err != nil {
		writeDomainError(w, "Failed to save payment record", err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentResponse{
		Claim:          toClaimDTO(c),
		Reconciliation: toReconciliationDTO(result),
	})
}

// ListClaimPayments returns the reconciliation history for a claim.
// GET /api/claims/{id}/payments
func (h *Handler) ListClaimPayments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	records, err := h.Store.ListPaymentsByClaim(r.Context(), engine.ClaimID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	dtos := make([]*PaymentDTO, len(records))
	for i, p := range records {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetClaimDenial returns the latest denial record for a claim.
// GET /api/claims/{id}/denial
func (h *Handler) GetClaimDenial(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	denial, err := h.Store.GetDenialByClaim(r.Context(), engine.ClaimID(id))
	if err != nil {
		writeDomainError(w, "Failed to load denial record", err)
		return
	}
	writeJSON(w, http.StatusOK, toDenialDTO(denial))
}

func (h *Handler) loadClaim(w http.ResponseWriter, r *http.Request) (*claims.Claim, error) {
	id := chi.URLParam(r, "id")
	c, err := h.Store.GetClaim(r.Context(), engine.ClaimID(id))
	if err != nil {
		writeDomainError(w, "Failed to load claim", err)
		return nil, err
	}
	return c, nil
}

// =============================================================================
// DENIAL / APPEAL ENDPOINTS
// =============================================================================

// ListDenials returns all denial records.
// GET /api/denials
func (h *Handler) ListDenials(w http.ResponseWriter, r *http.Request) {
	denials, err := h.Store.ListDenials(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list denials", err)
		return
	}

	dtos := make([]*DenialDTO, len(denials))
	for i, d := range denials {
		dtos[i] = toDenialDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDenial returns one denial record.
// GET /api/denials/{id}
func (h *Handler) GetDenial(w http.ResponseWriter, r *http.Request) {
	denial, err := h.loadDenial(w, r)
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, toDenialDTO(denial))
}

// ApplyAppealEvent applies an appeal event. Submitting past the deadline
// requires override_deadline in the body.
// POST /api/denials/{id}/events
func (h *Handler) ApplyAppealEvent(w http.ResponseWriter, r *http.Request) {
	denial, err := h.loadDenial(w, r)
	if err != nil {
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Appeals.Attempt(denial, engine.Event(req.Event), h.now(), req.OverrideDeadline); err != nil {
		writeDomainError(w, "Transition refused", err)
		return
	}
	if err := h.Store.SaveDenial(r.Context(), denial); err != nil {
		writeDomainError(w, "Failed to save denial record", err)
		return
	}
	writeJSON(w, http.StatusOK, toDenialDTO(denial))
}

// ResolveAppeal resolves a submitted appeal with a resolution amount,
// reconciles it, and reopens the rejected claim.
// POST /api/denials/{id}/resolve
func (h *Handler) ResolveAppeal(w http.ResponseWriter, r *http.Request) {
	denial, err := h.loadDenial(w, r)
	if err != nil {
		return
	}

	var req ResolveAppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := parseMoneyField(req.ResolutionAmount, "resolution_amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	c, err := h.Store.GetClaim(r.Context(), denial.ClaimID)
	if err != nil && !engine.IsNotFound(err) {
		writeError(w, http.StatusInternalServerError, "Failed to load claim", err)
		return
	}

	record, err := h.Appeals.Resolve(denial, c, amount, h.now())
	if err != nil {
		writeDomainError(w, "Resolution refused", err)
		return
	}

	if err := h.Store.SaveDenial(r.Context(), denial); err != nil {
		writeDomainError(w, "Failed to save denial record", err)
		return
	}
	if err := h.Store.SavePayment(r.Context(), record); err != nil {
		writeDomainError(w, "Failed to save payment record", err)
		return
	}
	resp := ResolveAppealResponse{Denial: toDenialDTO(denial), Payment: toPaymentDTO(record)}
	if c != nil {
		if err := h.Store.SaveClaim(r.Context(), c); err != nil {
			writeDomainError(w, "Failed to save claim", err)
			return
		}
		resp.Claim = toClaimDTO(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) loadDenial(w http.ResponseWriter, r *http.Request) (*claims.DenialRecord, error) {
	id := chi.URLParam(r, "id")
	denial, err := h.Store.GetDenial(r.Context(), engine.DenialID(id))
	if err != nil {
		writeDomainError(w, "Failed to load denial record", err)
		return nil, err
	}
	return denial, nil
}

// =============================================================================
// RECONCILIATION AND REPORTING ENDPOINTS
// =============================================================================

// Reconcile runs the pure reconciliation calculation.
// POST /api/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	expected, err := parseMoneyField(req.ExpectedAmount, "expected_amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	actual, err := parseMoneyField(req.ActualAmount, "actual_amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, toReconciliationDTO(engine.Reconcile(expected, actual)))
}

// SummaryReport aggregates claims, authorizations, and denials into the
// dashboard report. Accepts an optional ?as_of=RFC3339 query parameter.
// GET /api/reports/summary
func (h *Handler) SummaryReport(w http.ResponseWriter, r *http.Request) {
	asOf := h.now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse(timeLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of (use RFC3339)", err)
			return
		}
		asOf = t
	}

	allClaims, err := h.Store.ListClaims(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list claims", err)
		return
	}
	auths, err := h.Store.ListAuthorizations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list authorizations", err)
		return
	}
	denials, err := h.Store.ListDenials(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list denials", err)
		return
	}

	authStatuses := make([]report.AuthorizationStatus, len(auths))
	for i, a := range auths {
		authStatuses[i] = report.AuthorizationStatus{ID: a.ID, Status: a.Status}
	}

	summary := report.Aggregate(report.Input{
		Claims:         allClaims,
		Authorizations: authStatuses,
		Denials:        denials,
		AsOf:           asOf,
	})
	writeJSON(w, http.StatusOK, toSummaryReportDTO(summary))
}

// =============================================================================
// LICENSE ENDPOINTS
// =============================================================================

// ListLicenses returns the license directory.
// GET /api/licenses
func (h *Handler) ListLicenses(w http.ResponseWriter, r *http.Request) {
	licenses, err := h.Store.ListLicenses(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list licenses", err)
		return
	}

	dtos := make([]LicenseDTO, len(licenses))
	for i, l := range licenses {
		dtos[i] = toLicenseDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveLicense creates or updates a license record.
// PUT /api/licenses
func (h *Handler) SaveLicense(w http.ResponseWriter, r *http.Request) {
	var req SaveLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ClinicianID == "" {
		writeError(w, http.StatusBadRequest, "clinician_id is required", nil)
		return
	}
	expiry, err := time.Parse(timeLayout, req.ExpiryDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid expiry_date (use RFC3339)", err)
		return
	}

	license := engine.ClinicianLicense{
		ID:         req.LicenseID,
		Clinician:  engine.ClinicianID(req.ClinicianID),
		Status:     engine.LicenseStatus(req.Status),
		ExpiryDate: expiry,
	}
	if err := h.Store.SaveLicense(r.Context(), license); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save license", err)
		return
	}
	writeJSON(w, http.StatusOK, toLicenseDTO(license))
}

// DeleteLicense removes a license record.
// DELETE /api/licenses/{clinicianId}
func (h *Handler) DeleteLicense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "clinicianId")
	if err := h.Store.DeleteLicense(r.Context(), engine.ClinicianID(id)); err != nil {
		writeDomainError(w, "Failed to delete license", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseServiceLine(in ServiceLineInput) (claims.ServiceLine, error) {
	price, err := parseMoneyField(in.UnitPrice, "unit_price")
	if err != nil {
		return claims.ServiceLine{}, err
	}
	line := claims.ServiceLine{
		ServiceCode: engine.ServiceCode(in.ServiceCode),
		Quantity:    in.Quantity,
		UnitPrice:   price,
		ProviderID:  engine.ClinicianID(in.ProviderID),
	}
	if in.From != "" {
		if line.From, err = time.Parse(timeLayout, in.From); err != nil {
			return claims.ServiceLine{}, errors.New("invalid from (use RFC3339)")
		}
	}
	if in.To != "" {
		if line.To, err = time.Parse(timeLayout, in.To); err != nil {
			return claims.ServiceLine{}, errors.New("invalid to (use RFC3339)")
		}
	}
	return line, nil
}

func parseMoneyField(raw, field string) (engine.Money, error) {
	if raw == "" {
		return engine.Money{}, errors.New(field + " is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return engine.Money{}, errors.New("invalid " + field)
	}
	return engine.Money{Value: d}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses. Refused
// transitions carry the violation list so clients can render them.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var terr *engine.TransitionError
	switch {
	case errors.As(err, &terr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:      message,
			Details:    terr.Error(),
			Violations: toViolationDTOs(terr.Violations),
		})
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsClientError(err),
		errors.Is(err, claims.ErrResolutionAmountRequired),
		errors.Is(err, engine.ErrUnknownRuleContext):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
