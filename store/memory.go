package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/claims-engine/authorization"
	"github.com/warp/claims-engine/claims"
	"github.com/warp/claims-engine/engine"
)

// Memory is an in-memory Store. Entities are copied on save and load so
// callers can keep mutating their own instances without aliasing the
// stored state.
type Memory struct {
	mu             sync.RWMutex
	authorizations map[engine.AuthorizationID]*authorization.Request
	claims         map[engine.ClaimID]*claims.Claim
	denials        map[engine.DenialID]*claims.DenialRecord
	payments       map[engine.ClaimID][]*claims.PaymentRecord
	licenses       map[engine.ClinicianID]engine.ClinicianLicense
}

func NewMemory() *Memory {
	return &Memory{
		authorizations: make(map[engine.AuthorizationID]*authorization.Request),
		claims:         make(map[engine.ClaimID]*claims.Claim),
		denials:        make(map[engine.DenialID]*claims.DenialRecord),
		payments:       make(map[engine.ClaimID][]*claims.PaymentRecord),
		licenses:       make(map[engine.ClinicianID]engine.ClinicianLicense),
	}
}

func (m *Memory) Close() error { return nil }

// =============================================================================
// AUTHORIZATIONS
// =============================================================================

func (m *Memory) SaveAuthorization(ctx context.Context, r *authorization.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorizations[r.ID] = cloneAuthorization(r)
	return nil
}

func (m *Memory) GetAuthorization(ctx context.Context, id engine.AuthorizationID) (*authorization.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.authorizations[id]
	if !ok {
		return nil, fmt.Errorf("authorization %s: %w", id, engine.ErrEntityNotFound)
	}
	return cloneAuthorization(r), nil
}

func (m *Memory) ListAuthorizations(ctx context.Context) ([]*authorization.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*authorization.Request, 0, len(m.authorizations))
	for _, r := range m.authorizations {
		out = append(out, cloneAuthorization(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// CLAIMS
// =============================================================================

func (m *Memory) SaveClaim(ctx context.Context, c *claims.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[c.ID] = cloneClaim(c)
	return nil
}

func (m *Memory) GetClaim(ctx context.Context, id engine.ClaimID) (*claims.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, fmt.Errorf("claim %s: %w", id, engine.ErrEntityNotFound)
	}
	return cloneClaim(c), nil
}

func (m *Memory) ListClaims(ctx context.Context) ([]*claims.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*claims.Claim, 0, len(m.claims))
	for _, c := range m.claims {
		out = append(out, cloneClaim(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// DENIALS
// =============================================================================

func (m *Memory) SaveDenial(ctx context.Context, d *claims.DenialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denials[d.ID] = cloneDenial(d)
	return nil
}

func (m *Memory) GetDenial(ctx context.Context, id engine.DenialID) (*claims.DenialRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.denials[id]
	if !ok {
		return nil, fmt.Errorf("denial %s: %w", id, engine.ErrEntityNotFound)
	}
	return cloneDenial(d), nil
}

func (m *Memory) GetDenialByClaim(ctx context.Context, claimID engine.ClaimID) (*claims.DenialRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *claims.DenialRecord
	for _, d := range m.denials {
		if d.ClaimID != claimID {
			continue
		}
		// Latest denial wins when a claim was denied more than once.
		if found == nil || d.DenialDate.After(found.DenialDate) {
			found = d
		}
	}
	if found == nil {
		return nil, fmt.Errorf("denial for claim %s: %w", claimID, engine.ErrEntityNotFound)
	}
	return cloneDenial(found), nil
}

func (m *Memory) ListDenials(ctx context.Context) ([]*claims.DenialRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*claims.DenialRecord, 0, len(m.denials))
	for _, d := range m.denials {
		out = append(out, cloneDenial(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) SavePayment(ctx context.Context, p *claims.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ClaimID] = append(m.payments[p.ClaimID], &cp)
	return nil
}

func (m *Memory) ListPaymentsByClaim(ctx context.Context, claimID engine.ClaimID) ([]*claims.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := m.payments[claimID]
	out := make([]*claims.PaymentRecord, len(records))
	for i, p := range records {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}

// =============================================================================
// LICENSES
// =============================================================================

func (m *Memory) SaveLicense(ctx context.Context, l engine.ClinicianLicense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.licenses[l.Clinician] = l
	return nil
}

func (m *Memory) GetLicense(ctx context.Context, clinician engine.ClinicianID) (engine.ClinicianLicense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.licenses[clinician]
	if !ok {
		return engine.ClinicianLicense{}, fmt.Errorf("license for %s: %w", clinician, engine.ErrLicenseNotFound)
	}
	return l, nil
}

func (m *Memory) ListLicenses(ctx context.Context) ([]engine.ClinicianLicense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.ClinicianLicense, 0, len(m.licenses))
	for _, l := range m.licenses {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Clinician < out[j].Clinician })
	return out, nil
}

func (m *Memory) DeleteLicense(ctx context.Context, clinician engine.ClinicianID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.licenses[clinician]; !ok {
		return fmt.Errorf("license for %s: %w", clinician, engine.ErrLicenseNotFound)
	}
	delete(m.licenses, clinician)
	return nil
}

// =============================================================================
// CLONING
// =============================================================================

func cloneAuthorization(r *authorization.Request) *authorization.Request {
	cp := *r
	cp.RequestedServices = append([]engine.ServiceCode(nil), r.RequestedServices...)
	cp.Documents = engine.NewDocumentSet().Union(r.Documents)
	cp.History = append([]engine.AuditEntry(nil), r.History...)
	return &cp
}

func cloneClaim(c *claims.Claim) *claims.Claim {
	cp := *c
	cp.ServiceLines = append([]claims.ServiceLine(nil), c.ServiceLines...)
	cp.Documents = engine.NewDocumentSet().Union(c.Documents)
	cp.History = append([]engine.AuditEntry(nil), c.History...)
	if c.PaidAmount != nil {
		amount := *c.PaidAmount
		cp.PaidAmount = &amount
	}
	if c.PaymentDate != nil {
		at := *c.PaymentDate
		cp.PaymentDate = &at
	}
	return &cp
}

func cloneDenial(d *claims.DenialRecord) *claims.DenialRecord {
	cp := *d
	cp.History = append([]engine.AuditEntry(nil), d.History...)
	if d.ResolutionAmount != nil {
		amount := *d.ResolutionAmount
		cp.ResolutionAmount = &amount
	}
	return &cp
}
