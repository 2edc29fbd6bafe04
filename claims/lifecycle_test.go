package claims_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/claims-engine/claims"
	"github.com/warp/claims-engine/engine"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var day1 = time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)

func newService() *claims.Service {
	licensed := engine.ClinicianLicense{
		ID: "L-1", Clinician: "dr-lee",
		Status:     engine.LicenseActive,
		ExpiryDate: day1.AddDate(1, 0, 0),
	}
	validator := engine.NewValidator(engine.DefaultCatalog(), engine.NewMemoryLicenseDirectory(licensed))
	return claims.NewService(validator)
}

func line(code string, qty int, price string) claims.ServiceLine {
	return claims.ServiceLine{
		ServiceCode: engine.ServiceCode(code),
		Quantity:    qty,
		UnitPrice:   engine.MustParseMoney(price),
		ProviderID:  "dr-lee",
	}
}

// completeClaim builds a draft that passes validation.
func completeClaim(id string) *claims.Claim {
	c := claims.NewClaim(engine.ClaimID(id), "CLM-"+id, "payer-1")
	c.AddServiceLine(line("17-01-01", 10, "120.00"))
	c.Documents.Add(engine.DocInvoice, engine.DocMedicalReport)
	return c
}

func submitToReview(t *testing.T, svc *claims.Service, c *claims.Claim) {
	t.Helper()
	_, err := svc.Attempt(c, claims.EventSubmit, day1)
	require.NoError(t, err)
	_, err = svc.Attempt(c, claims.EventStartReview, day1)
	require.NoError(t, err)
}

// =============================================================================
// CLAIMED AMOUNT INVARIANT
// =============================================================================

func TestClaimedAmount_TracksServiceLines(t *testing.T) {
	// The claimed amount always equals the sum of line totals, through adds,
	// updates, and removals.

	c := claims.NewClaim("clm-1", "CLM-1", "payer-1")
	assert.True(t, c.ClaimedAmount.IsZero())

	c.AddServiceLine(line("17-01-01", 10, "120.00")) // 1200.00
	assert.Equal(t, "1200.00", c.ClaimedAmount.String())

	c.AddServiceLine(line("17-01-02", 4, "75.50")) // +302.00
	assert.Equal(t, "1502.00", c.ClaimedAmount.String())

	require.True(t, c.UpdateServiceLine(0, line("17-01-01", 5, "120.00"))) // 600.00
	assert.Equal(t, "902.00", c.ClaimedAmount.String())

	require.True(t, c.RemoveServiceLine(1))
	assert.Equal(t, "600.00", c.ClaimedAmount.String())
}

func TestServiceLine_TotalIsDerived(t *testing.T) {
	// A caller-supplied total is overwritten by quantity x unit price.
	c := claims.NewClaim("clm-2", "CLM-2", "payer-1")
	tampered := line("17-01-01", 3, "50.00")
	tampered.TotalAmount = engine.MustParseMoney("9999.99")

	c.AddServiceLine(tampered)

	assert.Equal(t, "150.00", c.ServiceLines[0].TotalAmount.String())
	assert.Equal(t, "150.00", c.ClaimedAmount.String())
}

func TestServiceLine_IndexOutOfRange(t *testing.T) {
	c := completeClaim("clm-3")

	assert.False(t, c.UpdateServiceLine(5, line("17-01-01", 1, "10.00")))
	assert.False(t, c.RemoveServiceLine(-1))
	assert.Equal(t, "1200.00", c.ClaimedAmount.String())
}

// =============================================================================
// DOCUMENTS AND CONCURRENT-EDIT MERGE
// =============================================================================

func TestAttachDocuments_NeverChangesStatus(t *testing.T) {
	c := claims.NewClaim("clm-d1", "CLM-D1", "payer-1")
	c.AddServiceLine(line("17-01-01", 10, "120.00"))

	c.AttachDocuments(day1, engine.DocInvoice, engine.DocMedicalReport)

	assert.Equal(t, claims.StatusDraft, c.Status)
	assert.True(t, c.Documents.Has(engine.DocInvoice))
	assert.True(t, c.Documents.Has(engine.DocMedicalReport))
	assert.Equal(t, day1, c.LastUpdated)
}

func TestMerge_UnionsDocumentsNewerEditWinsLines(t *testing.T) {
	// GIVEN: Two concurrent edits of the same claim
	// WHEN: Merging the newer edit into the older one
	// THEN: Documents union, the newer line set replaces the older one, and
	//       the claimed amount is recomputed from the surviving lines

	a := completeClaim("clm-m1")
	a.LastUpdated = day1

	b := completeClaim("clm-m1")
	b.Documents.Add(engine.DocProofOfDelivery)
	b.AddServiceLine(line("17-01-02", 2, "50.00"))
	b.LastUpdated = day1.Add(time.Hour)

	a.Merge(b)

	assert.True(t, a.Documents.Has(engine.DocInvoice))
	assert.True(t, a.Documents.Has(engine.DocProofOfDelivery))
	require.Len(t, a.ServiceLines, 2)
	assert.Equal(t, "1300.00", a.ClaimedAmount.String())
	assert.Equal(t, b.LastUpdated, a.LastUpdated)
}

func TestMerge_OlderEditNeverWinsLines(t *testing.T) {
	a := completeClaim("clm-m2")
	a.LastUpdated = day1.Add(time.Hour)

	b := completeClaim("clm-m2")
	b.Documents.Add(engine.DocTreatmentPlan)
	require.True(t, b.RemoveServiceLine(0))
	b.LastUpdated = day1

	a.Merge(b)

	// Documents still union; the older, emptier line set is discarded.
	assert.True(t, a.Documents.Has(engine.DocTreatmentPlan))
	require.Len(t, a.ServiceLines, 1)
	assert.Equal(t, "1200.00", a.ClaimedAmount.String())
	assert.Equal(t, day1.Add(time.Hour), a.LastUpdated)
}

// =============================================================================
// SUBMISSION GATE
// =============================================================================

func TestSubmit_ZeroLines_CannotLeaveDraft(t *testing.T) {
	svc := newService()
	c := claims.NewClaim("clm-4", "CLM-4", "payer-1")
	c.Documents.Add(engine.DocInvoice, engine.DocMedicalReport)

	violations, err := svc.Attempt(c, claims.EventSubmit, day1)

	var terr *engine.TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, engine.TransitionBlockingViolations, terr.Kind)
	require.Len(t, violations, 1)
	assert.Equal(t, engine.CodeMissingField, violations[0].Code)
	assert.Equal(t, claims.StatusDraft, c.Status)
}

func TestSubmit_Complete_StampsSubmittedAt(t *testing.T) {
	svc := newService()
	c := completeClaim("clm-5")

	_, err := svc.Attempt(c, claims.EventSubmit, day1)

	require.NoError(t, err)
	assert.Equal(t, claims.StatusPending, c.Status)
	assert.Equal(t, day1, c.SubmittedAt)
	require.Len(t, c.History, 1)
}

func TestReturnedClaim_ResubmitAfterFix(t *testing.T) {
	// GIVEN: A claim returned from review
	// WHEN: Resubmitting
	// THEN: Back to pending, revalidated on the way; original SubmittedAt
	//       kept

	svc := newService()
	c := completeClaim("clm-6")
	submitToReview(t, svc, c)

	_, err := svc.Attempt(c, claims.EventReturn, day1.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, claims.StatusReturned, c.Status)

	_, err = svc.Attempt(c, claims.EventResubmit, day1.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, claims.StatusPending, c.Status)
	assert.Equal(t, day1, c.SubmittedAt)
}

func TestResubmit_StillBroken_Refused(t *testing.T) {
	svc := newService()
	c := completeClaim("clm-7")
	submitToReview(t, svc, c)
	_, err := svc.Attempt(c, claims.EventReturn, day1)
	require.NoError(t, err)

	// The invoice went missing while fixing the claim.
	c.Documents = engine.NewDocumentSet(engine.DocMedicalReport)

	_, err = svc.Attempt(c, claims.EventResubmit, day1.Add(time.Hour))
	var terr *engine.TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, engine.TransitionBlockingViolations, terr.Kind)
	assert.Equal(t, claims.StatusReturned, c.Status)
}

// =============================================================================
// PAYMENT RECORDING
// =============================================================================

func TestRecordPayment_FullAmount_Paid(t *testing.T) {
	// GIVEN: An approved claim for 1200.00
	// WHEN: Recording a 1200.00 payment
	// THEN: paid, with amount/date/reference set atomically, and a
	//       reconciled result

	svc := newService()
	c := completeClaim("clm-8")
	submitToReview(t, svc, c)
	_, err := svc.Attempt(c, claims.EventApprove, day1)
	require.NoError(t, err)

	payday := day1.AddDate(0, 0, 20)
	result, err := svc.RecordPayment(c, engine.MustParseMoney("1200.00"), "EOB-100", payday)

	require.NoError(t, err)
	assert.Equal(t, claims.StatusPaid, c.Status)
	require.NotNil(t, c.PaidAmount)
	assert.Equal(t, "1200.00", c.PaidAmount.String())
	require.NotNil(t, c.PaymentDate)
	assert.Equal(t, payday, *c.PaymentDate)
	assert.Equal(t, "EOB-100", c.PaymentReference)
	assert.Equal(t, engine.StatusReconciled, result.Status)
}

func TestRecordPayment_ShortPayment_Partial(t *testing.T) {
	// GIVEN: An in-review claim for 1200.00
	// WHEN: Recording a 900.00 payment
	// THEN: partial, unreconciled with -25% variance

	svc := newService()
	c := completeClaim("clm-9")
	submitToReview(t, svc, c)

	result, err := svc.RecordPayment(c, engine.MustParseMoney("900.00"), "EOB-101", day1.AddDate(0, 0, 30))

	require.NoError(t, err)
	assert.Equal(t, claims.StatusPartial, c.Status)
	assert.Equal(t, engine.StatusUnreconciled, result.Status)
	assert.Equal(t, "-300.00", result.Variance.String())
	assert.Equal(t, engine.PerformanceCritical, result.Classify())
}

func TestRecordPayment_OnDraft_Refused(t *testing.T) {
	svc := newService()
	c := completeClaim("clm-10")

	_, err := svc.RecordPayment(c, engine.MustParseMoney("1200.00"), "EOB-102", day1)

	var terr *engine.TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, engine.TransitionInvalidForState, terr.Kind)
	assert.Nil(t, c.PaidAmount, "payment fields only on paid/partial")
	assert.Nil(t, c.PaymentDate)
}

func TestPaidClaim_IsTerminal(t *testing.T) {
	svc := newService()
	c := completeClaim("clm-11")
	submitToReview(t, svc, c)
	_, err := svc.Attempt(c, claims.EventApprove, day1)
	require.NoError(t, err)
	_, err = svc.RecordPayment(c, c.ClaimedAmount, "EOB-103", day1)
	require.NoError(t, err)

	_, err = svc.Attempt(c, claims.EventSubmit, day1)
	var terr *engine.TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, claims.StatusPaid, c.Status)
}

// =============================================================================
// PAYMENT RECORD
// =============================================================================

func TestNewPaymentRecord_CapturesReconciliation(t *testing.T) {
	record := claims.NewPaymentRecord("pay-1", "clm-12",
		engine.MustParseMoney("10800.00"), engine.MustParseMoney("9720.00"), day1)

	assert.Equal(t, "-1080.00", record.Variance.String())
	assert.Equal(t, "-10", record.VariancePercentage.String())
	assert.Equal(t, engine.StatusUnreconciled, record.ReconciliationStatus)
}

func TestPaymentRecord_MarkDisputed(t *testing.T) {
	// Only an unreconciled record can be disputed.
	short := claims.NewPaymentRecord("pay-2", "clm-13",
		engine.MustParseMoney("100.00"), engine.MustParseMoney("80.00"), day1)
	exact := claims.NewPaymentRecord("pay-3", "clm-13",
		engine.MustParseMoney("100.00"), engine.MustParseMoney("100.00"), day1)

	assert.True(t, short.MarkDisputed())
	assert.Equal(t, engine.StatusDisputed, short.ReconciliationStatus)
	assert.False(t, short.MarkDisputed(), "already disputed")

	assert.False(t, exact.MarkDisputed(), "reconciled records have nothing to dispute")
	assert.Equal(t, engine.StatusReconciled, exact.ReconciliationStatus)
}
