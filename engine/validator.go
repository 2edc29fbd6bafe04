/*
validator.go - Rule-based submission validation

PURPOSE:
  Evaluates a submission/claim snapshot against the rule catalog and
  produces an ORDERED list of violations. Ordering is deterministic so
  callers (and tests) can assert exact violation sequences.

CHECK ORDER:
  1. Required-field presence (identifiers, positive durations)  - blocking
  2. Required-document set                                      - blocking
  3. Deprecated/unknown service codes                           - blocking
  4. Numeric bounds (duration cap, justification minimum)       - blocking
  5. Daily cutoff ("late/needs escalation")                     - advisory
  6. License validity, claims only, one per offending provider  - advisory
  7. Cross-field consistency for plan-extension contexts        - blocking

SEVERITY MODEL:
  Blocking violations stop submission-triggering transitions. Advisory
  violations flag the submission (late, unlicensed provider) but leave the
  decision to the caller - the interactive "confirm anyway" flow is modeled
  as data, not control flow.

FAILURE SEMANTICS:
  The validator never fails for malformed input; every domain problem
  becomes a Violation. The only error it can return is an unknown rule
  context, which is a configuration bug.

SEE ALSO:
  - rules.go: RuleSet consumed here
  - license.go: LicenseDirectory consulted in step 6
*/
package engine

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// VIOLATIONS
// =============================================================================

type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityAdvisory Severity = "advisory"
)

type Violation struct {
	Code     string
	Message  string
	Severity Severity
}

// Violation codes, stable for callers that branch on them.
const (
	CodeMissingField          = "missing_required_field"
	CodeMissingDocument       = "missing_document"
	CodeDeprecatedServiceCode = "deprecated_service_code"
	CodeUnknownServiceCode    = "unknown_service_code"
	CodeDurationExceedsCap    = "duration_exceeds_cap"
	CodeJustificationTooShort = "justification_too_short"
	CodePastDailyCutoff       = "past_daily_cutoff"
	CodeLicenseInvalid        = "license_invalid"
	CodePaymentTermsMismatch  = "payment_terms_mismatch"
)

// HasBlocking reports whether any violation in the list is blocking.
func HasBlocking(vs []Violation) bool {
	for _, v := range vs {
		if v.Severity == SeverityBlocking {
			return true
		}
	}
	return false
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator evaluates snapshots against the rule catalog. It is stateless;
// a single instance can be shared by any number of goroutines.
type Validator struct {
	Catalog  *Catalog
	Licenses LicenseDirectory
}

func NewValidator(catalog *Catalog, licenses LicenseDirectory) *Validator {
	return &Validator{Catalog: catalog, Licenses: licenses}
}

// Validate runs all checks in order against the snapshot as of 'now'.
// The returned slice preserves check order; an empty slice means the
// snapshot is clean. The only possible error is an unknown rule context.
func (v *Validator) Validate(snap Snapshot, rctx RuleContext, now time.Time) ([]Violation, error) {
	rules, err := v.Catalog.RulesFor(snap.Kind, rctx)
	if err != nil {
		return nil, err
	}

	var out []Violation

	// 1. Required fields
	out = append(out, v.checkRequiredFields(snap)...)

	// 2. Required documents
	out = append(out, v.checkRequiredDocuments(snap, rules)...)

	// 3. Service codes
	out = append(out, v.checkServiceCodes(snap, rules)...)

	// 4. Numeric bounds
	out = append(out, v.checkBounds(snap, rules)...)

	// 5. Daily cutoff
	if rules.DailyCutoff.After(now) {
		out = append(out, Violation{
			Code:     CodePastDailyCutoff,
			Message:  fmt.Sprintf("submitted after the %02d:%02d daily cutoff; flagged late, needs escalation", rules.DailyCutoff.Hour, rules.DailyCutoff.Minute),
			Severity: SeverityAdvisory,
		})
	}

	// 6. License validity (claims only)
	if snap.Kind == KindClaim {
		out = append(out, v.checkLicenses(snap, now)...)
	}

	// 7. Cross-field consistency for plan-extension contexts. The stricter
	// bound variants are already resolved by the catalog (step 4 used them);
	// payment terms must match the policy value exactly.
	if rctx.PlanExtension && snap.PaymentTermsDays != rules.PaymentTermsDays {
		out = append(out, Violation{
			Code:     CodePaymentTermsMismatch,
			Message:  fmt.Sprintf("payment terms %d days do not match the %d-day extension policy", snap.PaymentTermsDays, rules.PaymentTermsDays),
			Severity: SeverityBlocking,
		})
	}

	return out, nil
}

func (v *Validator) checkRequiredFields(snap Snapshot) []Violation {
	var out []Violation

	if strings.TrimSpace(snap.ID) == "" {
		out = append(out, Violation{
			Code:     CodeMissingField,
			Message:  "identifier must not be empty",
			Severity: SeverityBlocking,
		})
	}

	switch snap.Kind {
	case KindAuthorization:
		if len(snap.RequestedServices) == 0 {
			out = append(out, Violation{
				Code:     CodeMissingField,
				Message:  "at least one requested service is required",
				Severity: SeverityBlocking,
			})
		}
		if snap.RequestedDurationDays <= 0 {
			out = append(out, Violation{
				Code:     CodeMissingField,
				Message:  "requested duration must be a positive number of days",
				Severity: SeverityBlocking,
			})
		}
		if !snap.PatientSigned {
			out = append(out, Violation{
				Code:     CodeMissingField,
				Message:  "patient signature is required",
				Severity: SeverityBlocking,
			})
		}
		if !snap.ProviderSigned {
			out = append(out, Violation{
				Code:     CodeMissingField,
				Message:  "provider signature is required",
				Severity: SeverityBlocking,
			})
		}
	case KindClaim:
		if len(snap.ServiceLines) == 0 {
			out = append(out, Violation{
				Code:     CodeMissingField,
				Message:  "a claim requires at least one service line",
				Severity: SeverityBlocking,
			})
		}
	}

	return out
}

func (v *Validator) checkRequiredDocuments(snap Snapshot, rules RuleSet) []Violation {
	var out []Violation
	// One violation per missing type, in catalog declaration order.
	for _, doc := range rules.RequiredDocuments {
		if !snap.Documents.Has(doc) {
			out = append(out, Violation{
				Code:     CodeMissingDocument,
				Message:  fmt.Sprintf("required document %q is not attached", doc),
				Severity: SeverityBlocking,
			})
		}
	}
	return out
}

func (v *Validator) checkServiceCodes(snap Snapshot, rules RuleSet) []Violation {
	var out []Violation

	codes := snap.RequestedServices
	if snap.Kind == KindClaim {
		codes = make([]ServiceCode, len(snap.ServiceLines))
		for i, l := range snap.ServiceLines {
			codes[i] = l.ServiceCode
		}
	}

	seen := make(map[ServiceCode]bool, len(codes))
	for _, code := range codes {
		if seen[code] {
			continue
		}
		seen[code] = true

		if replacements, ok := rules.DeprecatedServiceCodes[code]; ok {
			out = append(out, Violation{
				Code:     CodeDeprecatedServiceCode,
				Message:  fmt.Sprintf("service code %q is deprecated; use one of %s", code, joinCodes(replacements)),
				Severity: SeverityBlocking,
			})
			continue
		}
		if len(rules.AllowedServiceCodes) > 0 && !rules.AllowedServiceCodes[code] {
			out = append(out, Violation{
				Code:     CodeUnknownServiceCode,
				Message:  fmt.Sprintf("service code %q is not on the allowed list", code),
				Severity: SeverityBlocking,
			})
		}
	}
	return out
}

func (v *Validator) checkBounds(snap Snapshot, rules RuleSet) []Violation {
	var out []Violation

	if snap.Kind == KindAuthorization {
		if rules.MaxDurationDays > 0 && snap.RequestedDurationDays > rules.MaxDurationDays {
			out = append(out, Violation{
				Code:     CodeDurationExceedsCap,
				Message:  fmt.Sprintf("requested duration %d days exceeds the %d-day cap", snap.RequestedDurationDays, rules.MaxDurationDays),
				Severity: SeverityBlocking,
			})
		}
		if rules.MinJustificationLength > 0 && snap.JustificationLength < rules.MinJustificationLength {
			out = append(out, Violation{
				Code:     CodeJustificationTooShort,
				Message:  fmt.Sprintf("clinical justification has %d characters; at least %d required", snap.JustificationLength, rules.MinJustificationLength),
				Severity: SeverityBlocking,
			})
		}
	}
	return out
}

func (v *Validator) checkLicenses(snap Snapshot, now time.Time) []Violation {
	var out []Violation
	// One violation per offending provider, in first-occurrence line order.
	seen := make(map[ClinicianID]bool, len(snap.ServiceLines))
	for _, line := range snap.ServiceLines {
		if line.ProviderID == "" || seen[line.ProviderID] {
			continue
		}
		seen[line.ProviderID] = true

		if v.Licenses == nil {
			continue
		}
		license, ok := v.Licenses.Lookup(line.ProviderID)
		if !ok {
			out = append(out, Violation{
				Code:     CodeLicenseInvalid,
				Message:  fmt.Sprintf("provider %q has no license on record", line.ProviderID),
				Severity: SeverityAdvisory,
			})
			continue
		}
		if !license.ValidForClaims(now) {
			out = append(out, Violation{
				Code:     CodeLicenseInvalid,
				Message:  fmt.Sprintf("provider %q license is %s (expires %s)", line.ProviderID, license.Status, license.ExpiryDate.Format("2006-01-02")),
				Severity: SeverityAdvisory,
			})
		}
	}
	return out
}

func joinCodes(codes []ServiceCode) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
