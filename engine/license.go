/*
license.go - Clinician license registry

PURPOSE:
  Tracks clinician license status and expiry. The validator consults the
  directory during claim validation: every service-line provider must hold
  a license that is valid for claims, otherwise an advisory violation is
  emitted per offending provider.

  License problems are ADVISORY, not blocking: the payer allows submission
  with an explicit confirmation, so callers receive the full list of
  offending providers and decide whether to proceed.

SEE ALSO:
  - validator.go: License validity check (claims only)
*/
package engine

import (
	"sort"
	"time"
)

// =============================================================================
// CLINICIAN LICENSE
// =============================================================================

type LicenseStatus string

const (
	LicenseActive         LicenseStatus = "active"
	LicenseExpired        LicenseStatus = "expired"
	LicenseSuspended      LicenseStatus = "suspended"
	LicensePendingRenewal LicenseStatus = "pending-renewal"
)

type ClinicianLicense struct {
	ID         string
	Clinician  ClinicianID
	Status     LicenseStatus
	ExpiryDate time.Time
}

// ValidForClaims reports whether the license permits billing at 'now':
// the status must be active or pending-renewal AND the expiry date must be
// strictly in the future.
func (l ClinicianLicense) ValidForClaims(now time.Time) bool {
	if l.Status != LicenseActive && l.Status != LicensePendingRenewal {
		return false
	}
	return l.ExpiryDate.After(now)
}

// =============================================================================
// LICENSE DIRECTORY
// =============================================================================

// LicenseDirectory is the validator's read-only view of licenses.
// Implementations must be safe for concurrent lookup.
type LicenseDirectory interface {
	Lookup(clinician ClinicianID) (ClinicianLicense, bool)
}

// MemoryLicenseDirectory is a map-backed directory for tests and for hosts
// that load licenses up front.
type MemoryLicenseDirectory struct {
	licenses map[ClinicianID]ClinicianLicense
}

func NewMemoryLicenseDirectory(licenses ...ClinicianLicense) *MemoryLicenseDirectory {
	d := &MemoryLicenseDirectory{licenses: make(map[ClinicianID]ClinicianLicense, len(licenses))}
	for _, l := range licenses {
		d.licenses[l.Clinician] = l
	}
	return d
}

func (d *MemoryLicenseDirectory) Lookup(clinician ClinicianID) (ClinicianLicense, bool) {
	l, ok := d.licenses[clinician]
	return l, ok
}

func (d *MemoryLicenseDirectory) Put(l ClinicianLicense) {
	d.licenses[l.Clinician] = l
}

// All returns every license ordered by clinician identifier.
func (d *MemoryLicenseDirectory) All() []ClinicianLicense {
	out := make([]ClinicianLicense, 0, len(d.licenses))
	for _, l := range d.licenses {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Clinician < out[j].Clinician })
	return out
}
