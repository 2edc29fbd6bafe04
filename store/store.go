/*
Package store defines the persistence interfaces for the claims engine and
an in-memory implementation used by tests and demos.

PURPOSE:
  The domain packages (authorization, claims) are persistence-free; hosts
  load entities, run transitions in memory, and save the result. These
  interfaces are the seam between the two.

NOT-FOUND CONTRACT:
  Lookups return an error wrapping engine.ErrEntityNotFound (or
  engine.ErrLicenseNotFound for the license directory) so callers can map
  it with engine.IsNotFound.

SEE ALSO:
  - store/sqlite: the SQLite-backed implementation
  - memory.go: the in-memory implementation
*/
package store

import (
	"context"

	"github.com/warp/claims-engine/authorization"
	"github.com/warp/claims-engine/claims"
	"github.com/warp/claims-engine/engine"
)

// AuthorizationStore persists authorization requests.
type AuthorizationStore interface {
	SaveAuthorization(ctx context.Context, r *authorization.Request) error
	GetAuthorization(ctx context.Context, id engine.AuthorizationID) (*authorization.Request, error)
	ListAuthorizations(ctx context.Context) ([]*authorization.Request, error)
}

// ClaimStore persists claims.
type ClaimStore interface {
	SaveClaim(ctx context.Context, c *claims.Claim) error
	GetClaim(ctx context.Context, id engine.ClaimID) (*claims.Claim, error)
	ListClaims(ctx context.Context) ([]*claims.Claim, error)
}

// DenialStore persists denial records.
type DenialStore interface {
	SaveDenial(ctx context.Context, d *claims.DenialRecord) error
	GetDenial(ctx context.Context, id engine.DenialID) (*claims.DenialRecord, error)
	GetDenialByClaim(ctx context.Context, claimID engine.ClaimID) (*claims.DenialRecord, error)
	ListDenials(ctx context.Context) ([]*claims.DenialRecord, error)
}

// PaymentStore persists payment reconciliation records. Records are
// append-only: a correction is a new record, never an update.
type PaymentStore interface {
	SavePayment(ctx context.Context, p *claims.PaymentRecord) error
	ListPaymentsByClaim(ctx context.Context, claimID engine.ClaimID) ([]*claims.PaymentRecord, error)
}

// LicenseStore persists the clinician license directory.
type LicenseStore interface {
	SaveLicense(ctx context.Context, l engine.ClinicianLicense) error
	GetLicense(ctx context.Context, clinician engine.ClinicianID) (engine.ClinicianLicense, error)
	ListLicenses(ctx context.Context) ([]engine.ClinicianLicense, error)
	DeleteLicense(ctx context.Context, clinician engine.ClinicianID) error
}

// Store is the full persistence surface a host wires up.
type Store interface {
	AuthorizationStore
	ClaimStore
	DenialStore
	PaymentStore
	LicenseStore

	Close() error
}
