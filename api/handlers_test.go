package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/claims-engine/claims"
	"github.com/warp/claims-engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var clock = time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	h := NewHandler(store.NewMemory())
	h.now = func() time.Time { return clock }
	return h, NewRouter(h)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func createCompleteAuthorization(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/authorizations", CreateAuthorizationRequest{
		PayerID:               "payer-1",
		RequestedServices:     []string{"17-01-01"},
		RequestedDurationDays: 30,
		JustificationLength:   150,
		PatientSigned:         true,
		ProviderSigned:        true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	dto := decode[AuthorizationDTO](t, rec)

	rec = do(t, router, http.MethodPost, "/api/authorizations/"+dto.ID+"/documents", AttachDocumentsRequest{
		Documents: []string{"referral_letter", "medical_report", "treatment_plan", "insurance_card", "consent_form"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	return dto.ID
}

func createClaim(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/claims", CreateClaimRequest{
		ClaimNumber: "CLM-1",
		PayerID:     "payer-1",
		ServiceLines: []ServiceLineInput{
			{ServiceCode: "17-01-01", Quantity: 10, UnitPrice: "120.00", ProviderID: "dr-lee"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[ClaimDTO](t, rec).ID
}

func applyClaimEvent(t *testing.T, router http.Handler, id, event string) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/claims/"+id+"/events", EventRequest{Event: event})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// =============================================================================
// AUTHORIZATION FLOW
// =============================================================================

func TestAPI_AuthorizationSubmitFlow(t *testing.T) {
	// GIVEN: A complete draft created and documented over the API
	// WHEN: Validating and submitting
	// THEN: Validation is clean, submission assigns the reference and the
	//       14-day review deadline

	_, router := newTestServer(t)
	id := createCompleteAuthorization(t, router)

	rec := do(t, router, http.MethodPost, "/api/authorizations/"+id+"/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	validation := decode[ValidationResponse](t, rec)
	assert.True(t, validation.Valid)
	assert.Empty(t, validation.Violations)

	rec = do(t, router, http.MethodPost, "/api/authorizations/"+id+"/submit", SubmitRequest{ReferenceNumber: "REF-2026-001"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[TransitionResponse](t, rec)
	require.NotNil(t, resp.Authorization)
	assert.Equal(t, "submitted", resp.Authorization.Status)
	assert.Equal(t, "REF-2026-001", resp.Authorization.ReferenceNumber)
	assert.Equal(t, clock.AddDate(0, 0, 14).Format(time.RFC3339), resp.Authorization.ReviewDeadline)

	// A repeat submit is a conflict, never a silent no-op.
	rec = do(t, router, http.MethodPost, "/api/authorizations/"+id+"/events", EventRequest{Event: "submit"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_SubmitIncomplete_ConflictWithViolations(t *testing.T) {
	_, router := newTestServer(t)
	rec := do(t, router, http.MethodPost, "/api/authorizations", CreateAuthorizationRequest{
		PayerID:               "payer-1",
		RequestedServices:     []string{"17-01-01"},
		RequestedDurationDays: 30,
		JustificationLength:   150,
		PatientSigned:         true,
		ProviderSigned:        true,
	})
	id := decode[AuthorizationDTO](t, rec).ID

	rec = do(t, router, http.MethodPost, "/api/authorizations/"+id+"/submit", SubmitRequest{ReferenceNumber: "REF-X"})

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Len(t, body.Violations, 5, "the five missing documents")
	assert.Equal(t, "missing_document", body.Violations[0].Code)
}

func TestAPI_MergeAuthorizations(t *testing.T) {
	_, router := newTestServer(t)
	id := createCompleteAuthorization(t, router)

	rec := do(t, router, http.MethodPost, "/api/authorizations", CreateAuthorizationRequest{
		PayerID: "payer-1", RequestedServices: []string{"17-01-01"},
	})
	otherID := decode[AuthorizationDTO](t, rec).ID
	rec = do(t, router, http.MethodPost, "/api/authorizations/"+otherID+"/documents", AttachDocumentsRequest{
		Documents: []string{"equipment_quote"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/authorizations/"+id+"/merge",
		map[string]string{"other_id": otherID})

	require.Equal(t, http.StatusOK, rec.Code)
	merged := decode[AuthorizationDTO](t, rec)
	assert.Contains(t, merged.Documents, "equipment_quote")
	assert.Contains(t, merged.Documents, "referral_letter")
}

// =============================================================================
// CLAIM FLOW
// =============================================================================

func TestAPI_ClaimPaymentFlow(t *testing.T) {
	// GIVEN: A claim submitted and reviewed over the API
	// WHEN: Recording a short payment
	// THEN: The claim lands on partial and the reconciliation record is
	//       retrievable from the payment history

	_, router := newTestServer(t)
	id := createClaim(t, router)

	rec := do(t, router, http.MethodGet, "/api/claims/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1200.00", decode[ClaimDTO](t, rec).ClaimedAmount)

	// Without documents the submission is refused outright.
	rec = do(t, router, http.MethodPost, "/api/claims/"+id+"/events", EventRequest{Event: "submit"})
	require.Equal(t, http.StatusConflict, rec.Code, "missing invoice and medical report")

	attachClaimDocs(t, router, id)
	applyClaimEvent(t, router, id, "submit")
	applyClaimEvent(t, router, id, "start_review")

	rec = do(t, router, http.MethodPost, "/api/claims/"+id+"/payment", RecordPaymentRequest{
		Amount: "900.00", Reference: "EOB-55",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	payment := decode[PaymentResponse](t, rec)
	assert.Equal(t, "partial", payment.Claim.Status)
	assert.Equal(t, "900.00", payment.Claim.PaidAmount)
	assert.Equal(t, "-300.00", payment.Reconciliation.Variance)
	assert.Equal(t, "unreconciled", payment.Reconciliation.Status)
	assert.Equal(t, "critical", payment.Reconciliation.Performance)

	rec = do(t, router, http.MethodGet, "/api/claims/"+id+"/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]PaymentDTO](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, "1200.00", history[0].ExpectedAmount)
}

func TestAPI_AttachAndMergeClaims(t *testing.T) {
	// GIVEN: Two drafts of the same submission, documented separately
	// WHEN: Merging the second into the first
	// THEN: The document sets union

	_, router := newTestServer(t)
	id := createClaim(t, router)
	attachClaimDocs(t, router, id)

	rec := do(t, router, http.MethodPost, "/api/claims", CreateClaimRequest{
		ClaimNumber: "CLM-2",
		PayerID:     "payer-1",
		ServiceLines: []ServiceLineInput{
			{ServiceCode: "17-01-01", Quantity: 1, UnitPrice: "120.00", ProviderID: "dr-lee"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	otherID := decode[ClaimDTO](t, rec).ID
	rec = do(t, router, http.MethodPost, "/api/claims/"+otherID+"/documents", AttachDocumentsRequest{
		Documents: []string{"proof_of_delivery"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/claims/"+id+"/merge",
		map[string]string{"other_id": otherID})

	require.Equal(t, http.StatusOK, rec.Code)
	merged := decode[ClaimDTO](t, rec)
	assert.Contains(t, merged.Documents, "invoice")
	assert.Contains(t, merged.Documents, "medical_report")
	assert.Contains(t, merged.Documents, "proof_of_delivery")
	assert.Equal(t, "draft", merged.Status, "attaching and merging never transition")
}

func TestAPI_ServiceLineEndpoints(t *testing.T) {
	_, router := newTestServer(t)
	id := createClaim(t, router)

	rec := do(t, router, http.MethodPost, "/api/claims/"+id+"/lines", ServiceLineInput{
		ServiceCode: "17-01-02", Quantity: 2, UnitPrice: "50.00", ProviderID: "dr-kim",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1300.00", decode[ClaimDTO](t, rec).ClaimedAmount)

	rec = do(t, router, http.MethodPut, "/api/claims/"+id+"/lines/1", ServiceLineInput{
		ServiceCode: "17-01-02", Quantity: 4, UnitPrice: "50.00", ProviderID: "dr-kim",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1400.00", decode[ClaimDTO](t, rec).ClaimedAmount)

	rec = do(t, router, http.MethodDelete, "/api/claims/"+id+"/lines/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1200.00", decode[ClaimDTO](t, rec).ClaimedAmount)

	rec = do(t, router, http.MethodDelete, "/api/claims/"+id+"/lines/9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ClaimNotFound(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/claims/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.NotEmpty(t, body.Error)
}

// =============================================================================
// DENIAL AND APPEAL FLOW
// =============================================================================

func TestAPI_DenyAndResolveAppeal(t *testing.T) {
	// GIVEN: An in-review claim denied over the API
	// WHEN: Walking the appeal to resolution
	// THEN: The denial record, payment record, and reopened claim all come
	//       back consistent

	_, router := newTestServer(t)
	id := createClaim(t, router)
	attachClaimDocs(t, router, id)
	applyClaimEvent(t, router, id, "submit")
	applyClaimEvent(t, router, id, "start_review")

	rec := do(t, router, http.MethodPost, "/api/claims/"+id+"/deny", DenyClaimRequest{
		Reason: "medical necessity not established", Code: "CO-50",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	denied := decode[struct {
		Claim  ClaimDTO  `json:"claim"`
		Denial DenialDTO `json:"denial"`
	}](t, rec)
	assert.Equal(t, "rejected", denied.Claim.Status)
	assert.Equal(t, "not_started", denied.Denial.AppealStatus)
	assert.Equal(t, clock.AddDate(0, 0, 30).Format(time.RFC3339), denied.Denial.AppealDeadline)
	denialID := denied.Denial.ID

	for _, event := range []string{"start_appeal", "submit_appeal"} {
		rec = do(t, router, http.MethodPost, "/api/denials/"+denialID+"/events", EventRequest{Event: event})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/api/denials/"+denialID+"/resolve", ResolveAppealRequest{
		ResolutionAmount: "800.00",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decode[ResolveAppealResponse](t, rec)
	assert.Equal(t, "resolved", resolved.Denial.AppealStatus)
	assert.Equal(t, "800.00", resolved.Denial.ResolutionAmount)
	require.NotNil(t, resolved.Claim)
	assert.Equal(t, "partial", resolved.Claim.Status)
	assert.Equal(t, "-400.00", resolved.Payment.Variance)

	// The denial record is reachable from the claim side too.
	rec = do(t, router, http.MethodGet, "/api/claims/"+id+"/denial", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, denialID, decode[DenialDTO](t, rec).ID)
}

func TestAPI_ResolveWithoutAmount_BadRequest(t *testing.T) {
	_, router := newTestServer(t)
	id := createClaim(t, router)
	attachClaimDocs(t, router, id)
	applyClaimEvent(t, router, id, "submit")
	applyClaimEvent(t, router, id, "start_review")

	rec := do(t, router, http.MethodPost, "/api/claims/"+id+"/deny", DenyClaimRequest{Reason: "r", Code: "CO-50"})
	require.Equal(t, http.StatusOK, rec.Code)
	denialID := decode[struct {
		Denial DenialDTO `json:"denial"`
	}](t, rec).Denial.ID

	rec = do(t, router, http.MethodPost, "/api/denials/"+denialID+"/resolve", ResolveAppealRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// attachClaimDocs attaches the required claim documents over the API.
func attachClaimDocs(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/claims/"+id+"/documents", AttachDocumentsRequest{
		Documents: []string{"invoice", "medical_report"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

// denialSaveFails simulates a store that can persist claims but not
// denial records.
type denialSaveFails struct {
	store.Store
}

func (denialSaveFails) SaveDenial(context.Context, *claims.DenialRecord) error {
	return errors.New("denial table unavailable")
}

func TestAPI_DenyClaim_DenialSaveFailure_LeavesClaimInReview(t *testing.T) {
	// GIVEN: A store that fails to persist denial records
	// WHEN: Denying an in-review claim
	// THEN: The request fails and the claim is NOT persisted rejected - a
	//       rejected claim without a denial record would have no appeal path

	h := NewHandler(denialSaveFails{store.NewMemory()})
	h.now = func() time.Time { return clock }
	router := NewRouter(h)

	id := createClaim(t, router)
	attachClaimDocs(t, router, id)
	applyClaimEvent(t, router, id, "submit")
	applyClaimEvent(t, router, id, "start_review")

	rec := do(t, router, http.MethodPost, "/api/claims/"+id+"/deny", DenyClaimRequest{Reason: "r", Code: "CO-50"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/claims/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in-review", decode[ClaimDTO](t, rec).Status)
}

// =============================================================================
// RECONCILIATION, REPORTS, LICENSES
// =============================================================================

func TestAPI_Reconcile(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/reconcile", ReconcileRequest{
		ExpectedAmount: "10800.00", ActualAmount: "9720.00",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[ReconciliationDTO](t, rec)
	assert.Equal(t, "-1080.00", result.Variance)
	assert.Equal(t, "-10.00", result.VariancePercentage)
	assert.Equal(t, "unreconciled", result.Status)
	assert.Equal(t, "below", result.Performance)
}

func TestAPI_SummaryReport(t *testing.T) {
	_, router := newTestServer(t)
	id := createClaim(t, router)
	attachClaimDocs(t, router, id)
	applyClaimEvent(t, router, id, "submit")

	rec := do(t, router, http.MethodGet,
		"/api/reports/summary?as_of="+clock.AddDate(0, 0, 45).Format(time.RFC3339), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[SummaryReportDTO](t, rec)
	assert.Equal(t, 1, summary.TotalClaims)
	assert.Equal(t, "1200.00", summary.TotalClaimedAmount)
	require.Len(t, summary.AgingBuckets, 5)
	assert.Equal(t, 1, summary.AgingBuckets[1].Count, "45 days old lands in 31-60")

	rec = do(t, router, http.MethodGet, "/api/reports/summary?as_of=not-a-time", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_LicenseDirectory(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPut, "/api/licenses", SaveLicenseRequest{
		LicenseID: "L-1", ClinicianID: "dr-lee", Status: "active",
		ExpiryDate: clock.AddDate(1, 0, 0).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/licenses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]LicenseDTO](t, rec), 1)

	rec = do(t, router, http.MethodDelete, "/api/licenses/dr-lee", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodDelete, "/api/licenses/dr-lee", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
