/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the domain validator, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/validator.go: Violation structure surfaced in responses
*/
package api

import (
	"github.com/warp/claims-engine/authorization"
	"github.com/warp/claims-engine/claims"
	"github.com/warp/claims-engine/engine"
	"github.com/warp/claims-engine/report"
)

// =============================================================================
// SHARED TYPES
// =============================================================================

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error      string         `json:"error"`
	Details    string         `json:"details,omitempty"`
	Violations []ViolationDTO `json:"violations,omitempty"`
}

// ViolationDTO is a single validation finding.
type ViolationDTO struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func toViolationDTOs(vs []engine.Violation) []ViolationDTO {
	out := make([]ViolationDTO, len(vs))
	for i, v := range vs {
		out[i] = ViolationDTO{
			Code:     string(v.Code),
			Message:  v.Message,
			Severity: string(v.Severity),
		}
	}
	return out
}

// AuditEntryDTO is one lifecycle transition in an entity's history.
type AuditEntryDTO struct {
	ID        string `json:"id"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Event     string `json:"event"`
	At        string `json:"at"`
}

func toAuditDTOs(entries []engine.AuditEntry) []AuditEntryDTO {
	out := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryDTO{
			ID:        e.ID,
			FromState: string(e.FromState),
			ToState:   string(e.ToState),
			Event:     string(e.Event),
			At:        e.At.Format(timeLayout),
		}
	}
	return out
}

// EventRequest applies a lifecycle event to an entity.
type EventRequest struct {
	Event string `json:"event"`

	// OverrideDeadline confirms an appeal submission past its deadline.
	OverrideDeadline bool `json:"override_deadline,omitempty"`
}

// =============================================================================
// AUTHORIZATIONS
// =============================================================================

// AuthorizationDTO represents an authorization request in API responses.
type AuthorizationDTO struct {
	ID                    string          `json:"id"`
	ReferenceNumber       string          `json:"reference_number,omitempty"`
	PayerID               string          `json:"payer_id"`
	Status                string          `json:"status"`
	RequestedServices     []string        `json:"requested_services"`
	RequestedDurationDays int             `json:"requested_duration_days"`
	JustificationLength   int             `json:"justification_length"`
	Documents             []string        `json:"documents"`
	PatientSigned         bool            `json:"patient_signed"`
	ProviderSigned        bool            `json:"provider_signed"`
	PlanType              string          `json:"plan_type,omitempty"`
	PlanExtension         bool            `json:"plan_extension,omitempty"`
	Equipment             bool            `json:"equipment,omitempty"`
	PaymentTermsDays      int             `json:"payment_terms_days,omitempty"`
	SubmittedAt           string          `json:"submitted_at,omitempty"`
	ReviewDeadline        string          `json:"review_deadline,omitempty"`
	LastUpdated           string          `json:"last_updated,omitempty"`
	History               []AuditEntryDTO `json:"history,omitempty"`
}

// CreateAuthorizationRequest creates a draft authorization.
type CreateAuthorizationRequest struct {
	PayerID               string   `json:"payer_id"`
	RequestedServices     []string `json:"requested_services"`
	RequestedDurationDays int      `json:"requested_duration_days"`
	JustificationLength   int      `json:"justification_length"`
	PatientSigned         bool     `json:"patient_signed"`
	ProviderSigned        bool     `json:"provider_signed"`
	PlanType              string   `json:"plan_type"`
	PlanExtension         bool     `json:"plan_extension"`
	Equipment             bool     `json:"equipment"`
	PaymentTermsDays      int      `json:"payment_terms_days"`
}

// UpdateAuthorizationRequest edits the mutable draft fields. Omitted
// pointers leave the field unchanged.
type UpdateAuthorizationRequest struct {
	RequestedServices     *[]string `json:"requested_services,omitempty"`
	RequestedDurationDays *int      `json:"requested_duration_days,omitempty"`
	JustificationLength   *int      `json:"justification_length,omitempty"`
	PatientSigned         *bool     `json:"patient_signed,omitempty"`
	ProviderSigned        *bool     `json:"provider_signed,omitempty"`
	PaymentTermsDays      *int      `json:"payment_terms_days,omitempty"`
}

// AttachDocumentsRequest unions document types into the attached set.
type AttachDocumentsRequest struct {
	Documents []string `json:"documents"`
}

// SubmitRequest carries the external reference assigned on submission.
type SubmitRequest struct {
	ReferenceNumber string `json:"reference_number,omitempty"`
}

// ValidationResponse is the result of a dry-run validation.
type ValidationResponse struct {
	Valid      bool           `json:"valid"`
	Violations []ViolationDTO `json:"violations"`
}

// TransitionResponse wraps the entity after a successful transition along
// with any advisory findings observed on the way.
type TransitionResponse struct {
	Authorization *AuthorizationDTO `json:"authorization,omitempty"`
	Claim         *ClaimDTO         `json:"claim,omitempty"`
	Advisories    []ViolationDTO    `json:"advisories,omitempty"`
}

func toAuthorizationDTO(r *authorization.Request) *AuthorizationDTO {
	services := make([]string, len(r.RequestedServices))
	for i, s := range r.RequestedServices {
		services[i] = string(s)
	}
	docs := make([]string, 0, r.Documents.Len())
	for _, d := range r.Documents.Sorted() {
		docs = append(docs, string(d))
	}
	return &AuthorizationDTO{
		ID:                    string(r.ID),
		ReferenceNumber:       r.ReferenceNumber,
		PayerID:               string(r.PayerID),
		Status:                string(r.Status),
		RequestedServices:     services,
		RequestedDurationDays: r.RequestedDurationDays,
		JustificationLength:   r.ClinicalJustificationLength,
		Documents:             docs,
		PatientSigned:         r.PatientSigned,
		ProviderSigned:        r.ProviderSigned,
		PlanType:              r.PlanType,
		PlanExtension:         r.PlanExtension,
		Equipment:             r.Equipment,
		PaymentTermsDays:      r.PaymentTermsDays,
		SubmittedAt:           formatTime(r.SubmissionTimestamp),
		ReviewDeadline:        formatTime(r.ReviewDeadline),
		LastUpdated:           formatTime(r.LastUpdated),
		History:               toAuditDTOs(r.History),
	}
}

// =============================================================================
// CLAIMS
// =============================================================================

// ServiceLineDTO is one billed service on a claim.
type ServiceLineDTO struct {
	ServiceCode string `json:"service_code"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TotalAmount string `json:"total_amount"`
	ProviderID  string `json:"provider_id"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
}

// ClaimDTO represents a claim in API responses.
type ClaimDTO struct {
	ID                     string           `json:"id"`
	ClaimNumber            string           `json:"claim_number,omitempty"`
	AuthorizationReference string           `json:"authorization_reference,omitempty"`
	PayerID                string           `json:"payer_id"`
	Status                 string           `json:"status"`
	ServiceLines           []ServiceLineDTO `json:"service_lines"`
	ClaimedAmount          string           `json:"claimed_amount"`
	PaidAmount             string           `json:"paid_amount,omitempty"`
	PaymentDate            string           `json:"payment_date,omitempty"`
	PaymentReference       string           `json:"payment_reference,omitempty"`
	PlanType               string           `json:"plan_type,omitempty"`
	PlanExtension          bool             `json:"plan_extension,omitempty"`
	Equipment              bool             `json:"equipment,omitempty"`
	Documents              []string         `json:"documents"`
	PaymentTermsDays       int              `json:"payment_terms_days,omitempty"`
	SubmittedAt            string           `json:"submitted_at,omitempty"`
	LastUpdated            string           `json:"last_updated,omitempty"`
	History                []AuditEntryDTO  `json:"history,omitempty"`
}

// CreateClaimRequest creates a draft claim.
type CreateClaimRequest struct {
	ClaimNumber            string                  `json:"claim_number"`
	AuthorizationReference string                  `json:"authorization_reference"`
	PayerID                string                  `json:"payer_id"`
	PlanType               string                  `json:"plan_type"`
	PlanExtension          bool                    `json:"plan_extension"`
	Equipment              bool                    `json:"equipment"`
	PaymentTermsDays       int                     `json:"payment_terms_days"`
	ServiceLines           []ServiceLineInput      `json:"service_lines"`
}

// ServiceLineInput is the writable subset of a service line; the total is
// always derived server-side.
type ServiceLineInput struct {
	ServiceCode string `json:"service_code"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	ProviderID  string `json:"provider_id"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
}

// RecordPaymentRequest records a payer payment against a claim.
type RecordPaymentRequest struct {
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

// PaymentResponse returns the claim and the reconciliation of the payment.
type PaymentResponse struct {
	Claim          *ClaimDTO          `json:"claim"`
	Reconciliation *ReconciliationDTO `json:"reconciliation"`
}

// DenyClaimRequest rejects an in-review claim and opens its denial record.
type DenyClaimRequest struct {
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

func toClaimDTO(c *claims.Claim) *ClaimDTO {
	lines := make([]ServiceLineDTO, len(c.ServiceLines))
	for i, l := range c.ServiceLines {
		lines[i] = ServiceLineDTO{
			ServiceCode: string(l.ServiceCode),
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice.String(),
			TotalAmount: l.TotalAmount.String(),
			ProviderID:  string(l.ProviderID),
			From:        formatTime(l.From),
			To:          formatTime(l.To),
		}
	}
	docs := make([]string, 0, c.Documents.Len())
	for _, d := range c.Documents.Sorted() {
		docs = append(docs, string(d))
	}
	dto := &ClaimDTO{
		ID:                     string(c.ID),
		ClaimNumber:            c.ClaimNumber,
		AuthorizationReference: c.AuthorizationReference,
		PayerID:                string(c.PayerID),
		Status:                 string(c.Status),
		ServiceLines:           lines,
		ClaimedAmount:          c.ClaimedAmount.String(),
		PaymentReference:       c.PaymentReference,
		PlanType:               c.PlanType,
		PlanExtension:          c.PlanExtension,
		Equipment:              c.Equipment,
		Documents:              docs,
		PaymentTermsDays:       c.PaymentTermsDays,
		SubmittedAt:            formatTime(c.SubmittedAt),
		LastUpdated:            formatTime(c.LastUpdated),
		History:                toAuditDTOs(c.History),
	}
	if c.PaidAmount != nil {
		dto.PaidAmount = c.PaidAmount.String()
	}
	if c.PaymentDate != nil {
		dto.PaymentDate = formatTime(*c.PaymentDate)
	}
	return dto
}

// =============================================================================
// DENIALS AND APPEALS
// =============================================================================

// DenialDTO represents a denial record and its appeal state.
type DenialDTO struct {
	ID               string          `json:"id"`
	ClaimID          string          `json:"claim_id"`
	DenialReason     string          `json:"denial_reason,omitempty"`
	DenialCode       string          `json:"denial_code,omitempty"`
	DenialDate       string          `json:"denial_date"`
	AppealStatus     string          `json:"appeal_status"`
	AppealDeadline   string          `json:"appeal_deadline"`
	ResolutionAmount string          `json:"resolution_amount,omitempty"`
	History          []AuditEntryDTO `json:"history,omitempty"`
}

// ResolveAppealRequest resolves a submitted appeal with a resolution amount.
type ResolveAppealRequest struct {
	ResolutionAmount string `json:"resolution_amount"`
}

// ResolveAppealResponse returns the updated records after a resolution.
type ResolveAppealResponse struct {
	Denial  *DenialDTO  `json:"denial"`
	Claim   *ClaimDTO   `json:"claim,omitempty"`
	Payment *PaymentDTO `json:"payment"`
}

func toDenialDTO(d *claims.DenialRecord) *DenialDTO {
	dto := &DenialDTO{
		ID:             string(d.ID),
		ClaimID:        string(d.ClaimID),
		DenialReason:   d.DenialReason,
		DenialCode:     d.DenialCode,
		DenialDate:     formatTime(d.DenialDate),
		AppealStatus:   string(d.AppealStatus),
		AppealDeadline: formatTime(d.AppealDeadline),
		History:        toAuditDTOs(d.History),
	}
	if d.ResolutionAmount != nil {
		dto.ResolutionAmount = d.ResolutionAmount.String()
	}
	return dto
}

// =============================================================================
// RECONCILIATION AND PAYMENTS
// =============================================================================

// ReconcileRequest is a pure reconciliation calculation.
type ReconcileRequest struct {
	ExpectedAmount string `json:"expected_amount"`
	ActualAmount   string `json:"actual_amount"`
}

// ReconciliationDTO is the result of a reconciliation calculation.
type ReconciliationDTO struct {
	ExpectedAmount     string `json:"expected_amount"`
	ActualAmount       string `json:"actual_amount"`
	Variance           string `json:"variance"`
	VariancePercentage string `json:"variance_percentage"`
	Status             string `json:"status"`
	Performance        string `json:"performance"`
}

func toReconciliationDTO(r engine.ReconciliationResult) *ReconciliationDTO {
	return &ReconciliationDTO{
		ExpectedAmount:     r.Expected.String(),
		ActualAmount:       r.Actual.String(),
		Variance:           r.Variance.String(),
		VariancePercentage: r.VariancePercentage.StringFixed(2),
		Status:             string(r.Status),
		Performance:        string(r.Classify()),
	}
}

// PaymentDTO is a stored payment reconciliation record.
type PaymentDTO struct {
	ID                   string `json:"id"`
	ClaimID              string `json:"claim_id"`
	PaymentAmount        string `json:"payment_amount"`
	ExpectedAmount       string `json:"expected_amount"`
	Variance             string `json:"variance"`
	VariancePercentage   string `json:"variance_percentage"`
	ReconciliationStatus string `json:"reconciliation_status"`
	RecordedAt           string `json:"recorded_at"`
}

func toPaymentDTO(p *claims.PaymentRecord) *PaymentDTO {
	return &PaymentDTO{
		ID:                   string(p.ID),
		ClaimID:              string(p.ClaimID),
		PaymentAmount:        p.PaymentAmount.String(),
		ExpectedAmount:       p.ExpectedAmount.String(),
		Variance:             p.Variance.String(),
		VariancePercentage:   p.VariancePercentage.StringFixed(2),
		ReconciliationStatus: string(p.ReconciliationStatus),
		RecordedAt:           formatTime(p.RecordedAt),
	}
}

// =============================================================================
// LICENSES
// =============================================================================

// LicenseDTO represents a clinician license.
type LicenseDTO struct {
	LicenseID   string `json:"license_id"`
	ClinicianID string `json:"clinician_id"`
	Status      string `json:"status"`
	ExpiryDate  string `json:"expiry_date"`
}

// SaveLicenseRequest creates or updates a license record.
type SaveLicenseRequest struct {
	LicenseID   string `json:"license_id"`
	ClinicianID string `json:"clinician_id"`
	Status      string `json:"status"`
	ExpiryDate  string `json:"expiry_date"`
}

func toLicenseDTO(l engine.ClinicianLicense) LicenseDTO {
	return LicenseDTO{
		LicenseID:   l.ID,
		ClinicianID: string(l.Clinician),
		Status:      string(l.Status),
		ExpiryDate:  formatTime(l.ExpiryDate),
	}
}

// =============================================================================
// REPORTS
// =============================================================================

// SummaryReportDTO is the aggregation report surface.
type SummaryReportDTO struct {
	GeneratedAsOf       string              `json:"generated_as_of"`
	TotalClaims         int                 `json:"total_claims"`
	TotalAuthorizations int                 `json:"total_authorizations"`
	ClaimStatuses       []StatusCountDTO    `json:"claim_statuses"`
	AuthStatuses        []StatusCountDTO    `json:"authorization_statuses"`
	AgingBuckets        []AgingBucketDTO    `json:"aging_buckets"`
	Payers              []PayerSummaryDTO   `json:"payers"`
	TotalClaimedAmount  string              `json:"total_claimed_amount"`
	TotalPaidAmount     string              `json:"total_paid_amount"`
	CollectionRate      string              `json:"collection_rate"`
	DenialRate          string              `json:"denial_rate"`
	AppealSuccessRate   string              `json:"appeal_success_rate"`
}

type StatusCountDTO struct {
	Status     string `json:"status"`
	Count      int    `json:"count"`
	Percentage string `json:"percentage"`
}

type AgingBucketDTO struct {
	Label  string `json:"label"`
	Count  int    `json:"count"`
	Amount string `json:"amount"`
}

type PayerSummaryDTO struct {
	PayerID          string `json:"payer_id"`
	ClaimCount       int    `json:"claim_count"`
	TotalAmount      string `json:"total_amount"`
	PaidAmount       string `json:"paid_amount"`
	AvgDaysToPayment string `json:"avg_days_to_payment"`
	DenialRate       string `json:"denial_rate"`
	CollectionRate   string `json:"collection_rate"`
}

func toSummaryReportDTO(r *report.SummaryReport) *SummaryReportDTO {
	dto := &SummaryReportDTO{
		GeneratedAsOf:       formatTime(r.GeneratedAsOf),
		TotalClaims:         r.TotalClaims,
		TotalAuthorizations: r.TotalAuthorizations,
		TotalClaimedAmount:  r.TotalClaimedAmount.String(),
		TotalPaidAmount:     r.TotalPaidAmount.String(),
		CollectionRate:      r.CollectionRate.StringFixed(4),
		DenialRate:          r.DenialRate.StringFixed(4),
		AppealSuccessRate:   r.AppealSuccessRate.StringFixed(4),
	}
	for _, sc := range r.ClaimStatusCounts {
		dto.ClaimStatuses = append(dto.ClaimStatuses, StatusCountDTO{
			Status: string(sc.Status), Count: sc.Count, Percentage: sc.Percentage.StringFixed(2),
		})
	}
	for _, sc := range r.AuthorizationStatusCounts {
		dto.AuthStatuses = append(dto.AuthStatuses, StatusCountDTO{
			Status: string(sc.Status), Count: sc.Count, Percentage: sc.Percentage.StringFixed(2),
		})
	}
	for _, b := range r.AgingBuckets {
		dto.AgingBuckets = append(dto.AgingBuckets, AgingBucketDTO{
			Label: b.Label, Count: b.Count, Amount: b.Amount.String(),
		})
	}
	for _, p := range r.PayerSummaries {
		dto.Payers = append(dto.Payers, PayerSummaryDTO{
			PayerID:          string(p.PayerID),
			ClaimCount:       p.ClaimCount,
			TotalAmount:      p.TotalAmount.String(),
			PaidAmount:       p.PaidAmount.String(),
			AvgDaysToPayment: p.AvgDaysToPayment.StringFixed(1),
			DenialRate:       p.DenialRate.StringFixed(4),
			CollectionRate:   p.CollectionRate.StringFixed(4),
		})
	}
	return dto
}
