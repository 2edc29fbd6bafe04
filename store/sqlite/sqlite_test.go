package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/claims-engine/authorization"
	"github.com/warp/claims-engine/claims"
	"github.com/warp/claims-engine/engine"
	"github.com/warp/claims-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var saved = time.Date(2026, time.June, 15, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleClaim(id string) *claims.Claim {
	c := claims.NewClaim(engine.ClaimID(id), "CLM-"+id, "payer-1")
	c.AuthorizationReference = "REF-2026-001"
	c.AddServiceLine(claims.ServiceLine{
		ServiceCode: "17-01-01", Quantity: 3,
		UnitPrice: engine.MustParseMoney("120.00"), ProviderID: "dr-lee",
	})
	c.AddServiceLine(claims.ServiceLine{
		ServiceCode: "17-01-02", Quantity: 1,
		UnitPrice: engine.MustParseMoney("0.01"), ProviderID: "dr-kim",
	})
	c.Documents.Add(engine.DocInvoice, engine.DocMedicalReport)
	c.SubmittedAt = saved
	c.LastUpdated = saved
	return c
}

// =============================================================================
// CLAIMS
// =============================================================================

func TestSQLite_ClaimRoundTrip(t *testing.T) {
	// GIVEN: A claim with service lines, documents, and money amounts
	// WHEN: Saving and loading through SQLite
	// THEN: Everything survives, including decimal precision

	st := newStore(t)
	ctx := context.Background()
	c := sampleClaim("clm-1")

	require.NoError(t, st.SaveClaim(ctx, c))
	got, err := st.GetClaim(ctx, "clm-1")

	require.NoError(t, err)
	assert.Equal(t, "CLM-clm-1", got.ClaimNumber)
	assert.Equal(t, "REF-2026-001", got.AuthorizationReference)
	assert.Equal(t, claims.StatusDraft, got.Status)
	require.Len(t, got.ServiceLines, 2)
	assert.Equal(t, "360.00", got.ServiceLines[0].TotalAmount.String())
	assert.Equal(t, "360.01", got.ClaimedAmount.String(), "no float rounding on the cent line")
	assert.True(t, got.Documents.Has(engine.DocInvoice))
	assert.True(t, got.Documents.Has(engine.DocMedicalReport))
	assert.Equal(t, saved, got.SubmittedAt)
}

func TestSQLite_ClaimUpsert_PaymentFields(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	c := sampleClaim("clm-2")
	require.NoError(t, st.SaveClaim(ctx, c))

	paid := engine.MustParseMoney("360.01")
	when := saved.AddDate(0, 0, 20)
	c.Status = claims.StatusPaid
	c.PaidAmount = &paid
	c.PaymentDate = &when
	c.PaymentReference = "EOB-77"
	require.NoError(t, st.SaveClaim(ctx, c))

	got, err := st.GetClaim(ctx, "clm-2")
	require.NoError(t, err)
	assert.Equal(t, claims.StatusPaid, got.Status)
	require.NotNil(t, got.PaidAmount)
	assert.Equal(t, "360.01", got.PaidAmount.String())
	require.NotNil(t, got.PaymentDate)
	assert.Equal(t, when, *got.PaymentDate)
	assert.Equal(t, "EOB-77", got.PaymentReference)
}

func TestSQLite_ClaimNotFound(t *testing.T) {
	st := newStore(t)

	_, err := st.GetClaim(context.Background(), "missing")

	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// AUTHORIZATIONS
// =============================================================================

func TestSQLite_AuthorizationRoundTrip(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	r := authorization.NewRequest("auth-1", "payer-1")
	r.ReferenceNumber = "REF-2026-002"
	r.Status = authorization.StatusSubmitted
	r.RequestedServices = []engine.ServiceCode{"17-01-01", "17-02-01"}
	r.RequestedDurationDays = 60
	r.ClinicalJustificationLength = 200
	r.PatientSigned = true
	r.ProviderSigned = true
	r.PlanType = "restricted"
	r.Documents.Add(engine.DocReferralLetter, engine.DocConsentForm)
	r.SubmissionTimestamp = saved
	r.ReviewDeadline = saved.AddDate(0, 0, 14)
	r.History = []engine.AuditEntry{{
		ID: "h-1", FromState: authorization.StatusDraft,
		ToState: authorization.StatusSubmitted, Event: authorization.EventSubmit, At: saved,
	}}

	require.NoError(t, st.SaveAuthorization(ctx, r))
	got, err := st.GetAuthorization(ctx, "auth-1")

	require.NoError(t, err)
	assert.Equal(t, "REF-2026-002", got.ReferenceNumber)
	assert.Equal(t, authorization.StatusSubmitted, got.Status)
	assert.Equal(t, r.RequestedServices, got.RequestedServices)
	assert.Equal(t, "restricted", got.PlanType)
	assert.True(t, got.Documents.Has(engine.DocConsentForm))
	assert.Equal(t, saved.AddDate(0, 0, 14), got.ReviewDeadline)
	require.Len(t, got.History, 1)
	assert.Equal(t, engine.Event("submit"), got.History[0].Event)
}

func TestSQLite_DuplicateReference_Refused(t *testing.T) {
	// Two different authorizations cannot share a payer reference number.
	st := newStore(t)
	ctx := context.Background()

	a := authorization.NewRequest("auth-2", "payer-1")
	a.ReferenceNumber = "REF-SAME"
	require.NoError(t, st.SaveAuthorization(ctx, a))

	b := authorization.NewRequest("auth-3", "payer-1")
	b.ReferenceNumber = "REF-SAME"
	err := st.SaveAuthorization(ctx, b)

	assert.ErrorIs(t, err, engine.ErrDuplicateIdentifier)
}

func TestSQLite_EmptyReferences_DoNotCollide(t *testing.T) {
	// Drafts carry no reference yet; the uniqueness rule only binds once a
	// reference is assigned.
	st := newStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveAuthorization(ctx, authorization.NewRequest("auth-4", "payer-1")))
	require.NoError(t, st.SaveAuthorization(ctx, authorization.NewRequest("auth-5", "payer-1")))

	list, err := st.ListAuthorizations(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

// =============================================================================
// DENIALS
// =============================================================================

func TestSQLite_DenialRoundTrip(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	d := claims.NewDenialRecord("clm-3", "medical necessity not established", "CO-50", saved, 0)
	require.NoError(t, st.SaveDenial(ctx, d))

	amount := engine.MustParseMoney("450.00")
	d.AppealStatus = claims.AppealResolved
	d.ResolutionAmount = &amount
	require.NoError(t, st.SaveDenial(ctx, d))

	got, err := st.GetDenial(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, claims.AppealResolved, got.AppealStatus)
	assert.Equal(t, saved.AddDate(0, 0, 30), got.AppealDeadline)
	require.NotNil(t, got.ResolutionAmount)
	assert.Equal(t, "450.00", got.ResolutionAmount.String())
}

func TestSQLite_GetDenialByClaim_LatestWins(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	older := claims.NewDenialRecord("clm-4", "first", "CO-50", saved, 0)
	newer := claims.NewDenialRecord("clm-4", "second", "CO-96", saved.AddDate(0, 0, 7), 0)
	require.NoError(t, st.SaveDenial(ctx, older))
	require.NoError(t, st.SaveDenial(ctx, newer))

	got, err := st.GetDenialByClaim(ctx, "clm-4")

	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
}

// =============================================================================
// PAYMENTS - Append-only
// =============================================================================

func TestSQLite_Payments_AppendOnly(t *testing.T) {
	// GIVEN: A saved payment record
	// WHEN: Saving a record with the same ID again
	// THEN: Refused with ErrDuplicateIdentifier - corrections are new
	//       records, never updates

	st := newStore(t)
	ctx := context.Background()

	p := claims.NewPaymentRecord("pay-1", "clm-5",
		engine.MustParseMoney("10800.00"), engine.MustParseMoney("9720.00"), saved)
	require.NoError(t, st.SavePayment(ctx, p))

	err := st.SavePayment(ctx, p)
	assert.ErrorIs(t, err, engine.ErrDuplicateIdentifier)

	correction := claims.NewPaymentRecord("pay-2", "clm-5",
		engine.MustParseMoney("10800.00"), engine.MustParseMoney("10800.00"), saved.AddDate(0, 0, 3))
	require.NoError(t, st.SavePayment(ctx, correction))

	records, err := st.ListPaymentsByClaim(ctx, "clm-5")
	require.NoError(t, err)
	require.Len(t, records, 2, "oldest first")
	assert.Equal(t, engine.PaymentID("pay-1"), records[0].ID)
	assert.Equal(t, "-1080.00", records[0].Variance.String())
	assert.Equal(t, "-10", records[0].VariancePercentage.String())
	assert.Equal(t, engine.StatusUnreconciled, records[0].ReconciliationStatus)
	assert.Equal(t, engine.StatusReconciled, records[1].ReconciliationStatus)
}

// =============================================================================
// LICENSES
// =============================================================================

func TestSQLite_LicenseLifecycle(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	l := engine.ClinicianLicense{
		ID: "L-1", Clinician: "dr-lee",
		Status: engine.LicenseActive, ExpiryDate: saved.AddDate(1, 0, 0),
	}

	require.NoError(t, st.SaveLicense(ctx, l))

	// Upsert by clinician: the renewal replaces the row.
	l.ID = "L-2"
	l.ExpiryDate = saved.AddDate(2, 0, 0)
	require.NoError(t, st.SaveLicense(ctx, l))

	got, err := st.GetLicense(ctx, "dr-lee")
	require.NoError(t, err)
	assert.Equal(t, "L-2", got.ID)
	assert.Equal(t, saved.AddDate(2, 0, 0), got.ExpiryDate)

	require.NoError(t, st.DeleteLicense(ctx, "dr-lee"))
	_, err = st.GetLicense(ctx, "dr-lee")
	assert.ErrorIs(t, err, engine.ErrLicenseNotFound)

	err = st.DeleteLicense(ctx, "dr-lee")
	assert.ErrorIs(t, err, engine.ErrLicenseNotFound)
}

// =============================================================================
// RESET
// =============================================================================

func TestSQLite_Reset(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	require.NoError(t, st.SaveClaim(ctx, sampleClaim("clm-6")))
	require.NoError(t, st.SaveLicense(ctx, engine.ClinicianLicense{
		ID: "L-1", Clinician: "dr-lee", Status: engine.LicenseActive, ExpiryDate: saved,
	}))

	require.NoError(t, st.Reset(ctx))

	list, err := st.ListClaims(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = st.GetLicense(ctx, "dr-lee")
	assert.True(t, engine.IsNotFound(err))
}
