/*
rules.go - Declarative rule catalog

PURPOSE:
  Defines the rules that gate submissions: required document sets, numeric
  bounds (duration caps, justification minimums), allowed vs. deprecated
  service codes, the daily cutoff for on-time classification, and the
  payment-terms policy value for plan-extension contexts.

  The catalog is pure data plus a pure lookup. It has no behavior beyond
  RulesFor and never touches a clock or a store.

CONTEXT FLAGS:
  A lookup is keyed by submission kind (authorization vs. claim) and a
  RuleContext:
    - PlanType:      "standard" or "restricted" (restricted plans carry a
                     90-day duration cap)
    - PlanExtension: extension requests use the stricter bounds overlay and
                     must match the policy payment terms
    - Equipment:     equipment requests require additional documents

  Unknown (kind, plan type) combinations fail with UnknownRuleContextError:
  that is a configuration error, not user input.

EXAMPLE:
  catalog := engine.DefaultCatalog()
  rules, err := catalog.RulesFor(engine.KindAuthorization, engine.RuleContext{
      PlanType:      engine.PlanRestricted,
      PlanExtension: true,
  })

SEE ALSO:
  - validator.go: The only consumer of RuleSet
*/
package engine

import "time"

// =============================================================================
// KINDS AND CONTEXT
// =============================================================================

type Kind string

const (
	KindAuthorization Kind = "authorization"
	KindClaim         Kind = "claim"
)

const (
	PlanStandard   = "standard"
	PlanRestricted = "restricted"
)

// RuleContext carries the context flags that select rule variants.
type RuleContext struct {
	PlanType      string
	PlanExtension bool
	Equipment     bool
}

// =============================================================================
// RULE SET - The rules applied to one (kind, context)
// =============================================================================

// Cutoff is a time-of-day boundary for on-time classification. Submissions
// after the cutoff are flagged as late (advisory), they are not blocked.
type Cutoff struct {
	Hour   int
	Minute int
}

// After reports whether t falls after the cutoff on its own day.
func (c Cutoff) After(t time.Time) bool {
	boundary := time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, t.Location())
	return t.After(boundary)
}

// RuleSet is the resolved rule bundle for one (kind, context) lookup.
// RequiredDocuments preserves declaration order so the validator emits
// missing-document violations deterministically.
type RuleSet struct {
	RequiredDocuments      []DocumentType
	MaxDurationDays        int
	MinJustificationLength int
	AllowedServiceCodes    map[ServiceCode]bool
	DeprecatedServiceCodes map[ServiceCode][]ServiceCode // code -> replacements
	DailyCutoff            Cutoff
	PaymentTermsDays       int // policy value checked in plan-extension contexts
}

// =============================================================================
// CATALOG - Pure lookup table
// =============================================================================

type catalogKey struct {
	Kind     Kind
	PlanType string
}

// overlay holds the stricter variants applied on top of a base rule set.
// Overlays are still declarative data: applying one copies values, it never
// computes them.
type overlay struct {
	ExtraDocuments         []DocumentType
	MaxDurationDays        int // 0 = keep base
	MinJustificationLength int // 0 = keep base
}

type Catalog struct {
	base      map[catalogKey]RuleSet
	extension map[Kind]overlay
	equipment map[Kind]overlay
}

// RulesFor resolves the rule set for a submission kind and context.
// It is a pure lookup: no side effects, no clock. Unknown (kind, plan type)
// combinations return an UnknownRuleContextError.
func (c *Catalog) RulesFor(kind Kind, rctx RuleContext) (RuleSet, error) {
	planType := rctx.PlanType
	if planType == "" {
		planType = PlanStandard
	}

	rs, ok := c.base[catalogKey{Kind: kind, PlanType: planType}]
	if !ok {
		return RuleSet{}, &UnknownRuleContextError{Kind: kind, Context: rctx}
	}

	// Copy the document list before applying overlays so the shared base
	// table is never mutated.
	docs := make([]DocumentType, len(rs.RequiredDocuments))
	copy(docs, rs.RequiredDocuments)
	rs.RequiredDocuments = docs

	if rctx.PlanExtension {
		rs = applyOverlay(rs, c.extension[kind])
	}
	if rctx.Equipment {
		rs = applyOverlay(rs, c.equipment[kind])
	}
	return rs, nil
}

func applyOverlay(rs RuleSet, o overlay) RuleSet {
	rs.RequiredDocuments = append(rs.RequiredDocuments, o.ExtraDocuments...)
	if o.MaxDurationDays > 0 {
		rs.MaxDurationDays = o.MaxDurationDays
	}
	if o.MinJustificationLength > 0 {
		rs.MinJustificationLength = o.MinJustificationLength
	}
	return rs
}

// =============================================================================
// DEFAULT CATALOG - Payer policy as shipped
// =============================================================================

// Document types known to the payer.
const (
	DocReferralLetter    DocumentType = "referral_letter"
	DocMedicalReport     DocumentType = "medical_report"
	DocTreatmentPlan     DocumentType = "treatment_plan"
	DocInsuranceCard     DocumentType = "insurance_card"
	DocConsentForm       DocumentType = "consent_form"
	DocInvoice           DocumentType = "invoice"
	DocProofOfDelivery   DocumentType = "proof_of_delivery"
	DocEquipmentQuote    DocumentType = "equipment_quote"
	DocExtensionRationale DocumentType = "extension_rationale"
)

// DefaultCatalog returns the payer's current rule tables.
func DefaultCatalog() *Catalog {
	allowed := map[ServiceCode]bool{
		"17-01-01": true, "17-01-02": true, "17-01-03": true,
		"17-02-01": true, "17-02-02": true, "17-02-03": true,
		"17-03-01": true, "17-03-02": true,
	}
	deprecated := map[ServiceCode][]ServiceCode{
		"PT-001": {"17-01-01", "17-01-02"},
		"PT-002": {"17-01-03"},
		"OT-001": {"17-02-01"},
	}
	cutoff := Cutoff{Hour: 16, Minute: 0}

	return &Catalog{
		base: map[catalogKey]RuleSet{
			{KindAuthorization, PlanStandard}: {
				RequiredDocuments: []DocumentType{
					DocReferralLetter, DocMedicalReport, DocTreatmentPlan,
					DocInsuranceCard, DocConsentForm,
				},
				MaxDurationDays:        180,
				MinJustificationLength: 100,
				AllowedServiceCodes:    allowed,
				DeprecatedServiceCodes: deprecated,
				DailyCutoff:            cutoff,
				PaymentTermsDays:       45,
			},
			{KindAuthorization, PlanRestricted}: {
				RequiredDocuments: []DocumentType{
					DocReferralLetter, DocMedicalReport, DocTreatmentPlan,
					DocInsuranceCard, DocConsentForm,
				},
				MaxDurationDays:        90, // restricted plans cap at 90 days
				MinJustificationLength: 100,
				AllowedServiceCodes:    allowed,
				DeprecatedServiceCodes: deprecated,
				DailyCutoff:            cutoff,
				PaymentTermsDays:       45,
			},
			{KindClaim, PlanStandard}: {
				RequiredDocuments: []DocumentType{
					DocInvoice, DocMedicalReport,
				},
				AllowedServiceCodes:    allowed,
				DeprecatedServiceCodes: deprecated,
				DailyCutoff:            cutoff,
				PaymentTermsDays:       45,
			},
			{KindClaim, PlanRestricted}: {
				RequiredDocuments: []DocumentType{
					DocInvoice, DocMedicalReport,
				},
				AllowedServiceCodes:    allowed,
				DeprecatedServiceCodes: deprecated,
				DailyCutoff:            cutoff,
				PaymentTermsDays:       45,
			},
		},
		extension: map[Kind]overlay{
			KindAuthorization: {
				ExtraDocuments:         []DocumentType{DocExtensionRationale},
				MaxDurationDays:        90,
				MinJustificationLength: 250, // extensions need a fuller rationale
			},
			KindClaim: {
				ExtraDocuments: []DocumentType{DocExtensionRationale},
			},
		},
		equipment: map[Kind]overlay{
			KindAuthorization: {
				ExtraDocuments: []DocumentType{DocEquipmentQuote},
			},
			KindClaim: {
				ExtraDocuments: []DocumentType{DocEquipmentQuote, DocProofOfDelivery},
			},
		},
	}
}
