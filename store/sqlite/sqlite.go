/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements store.Store using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  authorizations: Prior-authorization requests
  claims:         Claims with service lines
  denials:        Denial records and appeal state
  payments:       Append-only payment reconciliation records
  licenses:       Clinician license directory

COLUMN STRATEGY:
  Scalar fields are columns; nested structures (service lines, attached
  documents, audit history) are JSON blobs. Monetary amounts are stored as
  decimal strings, never floats.

APPEND-ONLY ENFORCEMENT:
  The payments table takes INSERTs only. A reconciliation correction is a
  new record; existing records are never updated or deleted.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  st, err := sqlite.New("./data/claims.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/store.go: Interface definitions
  - store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/claims-engine/authorization"
	"github.com/warp/claims-engine/claims"
	"github.com/warp/claims-engine/engine"
)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Prior-authorization requests
	CREATE TABLE IF NOT EXISTS authorizations (
		id TEXT PRIMARY KEY,
		reference_number TEXT,
		payer_id TEXT NOT NULL,
		status TEXT NOT NULL,
		requested_services_json TEXT NOT NULL,
		requested_duration_days INTEGER NOT NULL DEFAULT 0,
		justification_length INTEGER NOT NULL DEFAULT 0,
		documents_json TEXT NOT NULL,
		patient_signed BOOLEAN NOT NULL DEFAULT FALSE,
		provider_signed BOOLEAN NOT NULL DEFAULT FALSE,
		plan_type TEXT,
		plan_extension BOOLEAN NOT NULL DEFAULT FALSE,
		equipment BOOLEAN NOT NULL DEFAULT FALSE,
		payment_terms_days INTEGER NOT NULL DEFAULT 0,
		submitted_at TEXT,
		review_deadline TEXT,
		last_updated TEXT,
		history_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_authorizations_status
		ON authorizations(status);
	CREATE INDEX IF NOT EXISTS idx_authorizations_payer
		ON authorizations(payer_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_authorizations_reference
		ON authorizations(reference_number) WHERE reference_number != '';

	-- Claims
	CREATE TABLE IF NOT EXISTS claims (
		id TEXT PRIMARY KEY,
		claim_number TEXT,
		authorization_reference TEXT,
		payer_id TEXT NOT NULL,
		status TEXT NOT NULL,
		service_lines_json TEXT NOT NULL,
		claimed_amount TEXT NOT NULL,
		paid_amount TEXT,
		payment_date TEXT,
		payment_reference TEXT,
		plan_type TEXT,
		plan_extension BOOLEAN NOT NULL DEFAULT FALSE,
		equipment BOOLEAN NOT NULL DEFAULT FALSE,
		documents_json TEXT NOT NULL,
		payment_terms_days INTEGER NOT NULL DEFAULT 0,
		submitted_at TEXT,
		last_updated TEXT,
		history_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_claims_status
		ON claims(status);
	CREATE INDEX IF NOT EXISTS idx_claims_payer
		ON claims(payer_id);
	CREATE INDEX IF NOT EXISTS idx_claims_submitted_at
		ON claims(submitted_at);

	-- Denial records (appeal sub-flow state)
	CREATE TABLE IF NOT EXISTS denials (
		id TEXT PRIMARY KEY,
		claim_id TEXT NOT NULL,
		denial_reason TEXT,
		denial_code TEXT,
		denial_date TEXT NOT NULL,
		appeal_status TEXT NOT NULL,
		appeal_deadline TEXT NOT NULL,
		resolution_amount TEXT,
		history_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_denials_claim
		ON denials(claim_id);
	CREATE INDEX IF NOT EXISTS idx_denials_appeal_status
		ON denials(appeal_status);

	-- Payment reconciliation records (append-only)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		claim_id TEXT NOT NULL,
		payment_amount TEXT NOT NULL,
		expected_amount TEXT NOT NULL,
		variance TEXT NOT NULL,
		variance_percentage TEXT NOT NULL,
		reconciliation_status TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_claim
		ON payments(claim_id, recorded_at);

	-- Clinician license directory
	CREATE TABLE IF NOT EXISTS licenses (
		clinician_id TEXT PRIMARY KEY,
		license_id TEXT NOT NULL,
		status TEXT NOT NULL,
		expiry_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_licenses_status
		ON licenses(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// AUTHORIZATIONS (store.AuthorizationStore interface)
// =============================================================================

// SaveAuthorization upserts an authorization request.
func (s *Store) SaveAuthorization(ctx context.Context, r *authorization.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	services, _ := json.Marshal(r.RequestedServices)
	documents, _ := json.Marshal(r.Documents.Sorted())
	history, _ := json.Marshal(r.History)

	query := `
		INSERT INTO authorizations
		(id, reference_number, payer_id, status, requested_services_json,
		 requested_duration_days, justification_length, documents_json,
		 patient_signed, provider_signed, plan_type, plan_extension, equipment,
		 payment_terms_days, submitted_at, review_deadline, last_updated, history_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reference_number = excluded.reference_number,
			status = excluded.status,
			requested_services_json = excluded.requested_services_json,
			requested_duration_days = excluded.requested_duration_days,
			justification_length = excluded.justification_length,
			documents_json = excluded.documents_json,
			patient_signed = excluded.patient_signed,
			provider_signed = excluded.provider_signed,
			plan_type = excluded.plan_type,
			plan_extension = excluded.plan_extension,
			equipment = excluded.equipment,
			payment_terms_days = excluded.payment_terms_days,
			submitted_at = excluded.submitted_at,
			review_deadline = excluded.review_deadline,
			last_updated = excluded.last_updated,
			history_json = excluded.history_json
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.ReferenceNumber, r.PayerID, r.Status,
		string(services), r.RequestedDurationDays, r.ClinicalJustificationLength,
		string(documents), r.PatientSigned, r.ProviderSigned,
		r.PlanType, r.PlanExtension, r.Equipment, r.PaymentTermsDays,
		nullTime(r.SubmissionTimestamp), nullTime(r.ReviewDeadline), nullTime(r.LastUpdated),
		string(history),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("reference %q: %w", r.ReferenceNumber, engine.ErrDuplicateIdentifier)
		}
		return fmt.Errorf("failed to save authorization: %w", err)
	}
	return nil
}

// GetAuthorization retrieves an authorization request by ID.
func (s *Store) GetAuthorization(ctx context.Context, id engine.AuthorizationID) (*authorization.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.queryAuthorizations(ctx,
		selectAuthorization+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("authorization %s: %w", id, engine.ErrEntityNotFound)
	}
	return rows[0], nil
}

// ListAuthorizations returns all authorization requests, ordered by ID.
func (s *Store) ListAuthorizations(ctx context.Context) ([]*authorization.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAuthorizations(ctx, selectAuthorization+" ORDER BY id")
}

const selectAuthorization = `
	SELECT id, reference_number, payer_id, status, requested_services_json,
	       requested_duration_days, justification_length, documents_json,
	       patient_signed, provider_signed, plan_type, plan_extension, equipment,
	       payment_terms_days, submitted_at, review_deadline, last_updated, history_json
	FROM authorizations`

func (s *Store) queryAuthorizations(ctx context.Context, query string, args ...any) ([]*authorization.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query authorizations: %w", err)
	}
	defer rows.Close()

	var out []*authorization.Request
	for rows.Next() {
		var (
			r                               authorization.Request
			services, documents, history    string
			planType                        sql.NullString
			submittedAt, deadline, updated  sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.ReferenceNumber, &r.PayerID, &r.Status, &services,
			&r.RequestedDurationDays, &r.ClinicalJustificationLength, &documents,
			&r.PatientSigned, &r.ProviderSigned, &planType, &r.PlanExtension,
			&r.Equipment, &r.PaymentTermsDays, &submittedAt, &deadline, &updated,
			&history,
		); err != nil {
			return nil, fmt.Errorf("failed to scan authorization: %w", err)
		}

		json.Unmarshal([]byte(services), &r.RequestedServices)
		var docTypes []engine.DocumentType
		json.Unmarshal([]byte(documents), &docTypes)
		r.Documents = engine.NewDocumentSet(docTypes...)
		json.Unmarshal([]byte(history), &r.History)

		r.PlanType = planType.String
		r.SubmissionTimestamp = parseTime(submittedAt)
		r.ReviewDeadline = parseTime(deadline)
		r.LastUpdated = parseTime(updated)

		out = append(out, &r)
	}
	return out, rows.Err()
}

// =============================================================================
// CLAIMS (store.ClaimStore interface)
// =============================================================================

// SaveClaim upserts a claim.
func (s *Store) SaveClaim(ctx context.Context, c *claims.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, _ := json.Marshal(c.ServiceLines)
	documents, _ := json.Marshal(c.Documents.Sorted())
	history, _ := json.Marshal(c.History)

	query := `
		INSERT INTO claims
		(id, claim_number, authorization_reference, payer_id, status,
		 service_lines_json, claimed_amount, paid_amount, payment_date,
		 payment_reference, plan_type, plan_extension, equipment, documents_json,
		 payment_terms_days, submitted_at, last_updated, history_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			claim_number = excluded.claim_number,
			authorization_reference = excluded.authorization_reference,
			status = excluded.status,
			service_lines_json = excluded.service_lines_json,
			claimed_amount = excluded.claimed_amount,
			paid_amount = excluded.paid_amount,
			payment_date = excluded.payment_date,
			payment_reference = excluded.payment_reference,
			plan_type = excluded.plan_type,
			plan_extension = excluded.plan_extension,
			equipment = excluded.equipment,
			documents_json = excluded.documents_json,
			payment_terms_days = excluded.payment_terms_days,
			submitted_at = excluded.submitted_at,
			last_updated = excluded.last_updated,
			history_json = excluded.history_json
	`

	var paidAmount sql.NullString
	if c.PaidAmount != nil {
		paidAmount = sql.NullString{String: c.PaidAmount.Value.String(), Valid: true}
	}
	var paymentDate sql.NullString
	if c.PaymentDate != nil {
		paymentDate = sql.NullString{String: c.PaymentDate.Format(time.RFC3339), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.ClaimNumber, c.AuthorizationReference, c.PayerID, c.Status,
		string(lines), c.ClaimedAmount.Value.String(), paidAmount, paymentDate,
		c.PaymentReference, c.PlanType, c.PlanExtension, c.Equipment,
		string(documents), c.PaymentTermsDays,
		nullTime(c.SubmittedAt), nullTime(c.LastUpdated), string(history),
	)
	if err != nil {
		return fmt.Errorf("failed to save claim: %w", err)
	}
	return nil
}

// GetClaim retrieves a claim by ID.
func (s *Store) GetClaim(ctx context.Context, id engine.ClaimID) (*claims.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.queryClaims(ctx, selectClaim+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("claim %s: %w", id, engine.ErrEntityNotFound)
	}
	return rows[0], nil
}

// ListClaims returns all claims, ordered by ID.
func (s *Store) ListClaims(ctx context.Context) ([]*claims.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryClaims(ctx, selectClaim+" ORDER BY id")
}

const selectClaim = `
	SELECT id, claim_number, authorization_reference, payer_id, status,
	       service_lines_json, claimed_amount, paid_amount, payment_date,
	       payment_reference, plan_type, plan_extension, equipment, documents_json,
	       payment_terms_days, submitted_at, last_updated, history_json
	FROM claims`

func (s *Store) queryClaims(ctx context.Context, query string, args ...any) ([]*claims.Claim, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var out []*claims.Claim
	for rows.Next() {
		var (
			c                            claims.Claim
			lines, documents, history    string
			claimedAmount                string
			paidAmount, paymentDate      sql.NullString
			planType                     sql.NullString
			submittedAt, updated         sql.NullString
		)
		if err := rows.Scan(
			&c.ID, &c.ClaimNumber, &c.AuthorizationReference, &c.PayerID, &c.Status,
			&lines, &claimedAmount, &paidAmount, &paymentDate,
			&c.PaymentReference, &planType, &c.PlanExtension, &c.Equipment,
			&documents, &c.PaymentTermsDays, &submittedAt, &updated, &history,
		); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}

		json.Unmarshal([]byte(lines), &c.ServiceLines)
		var docTypes []engine.DocumentType
		json.Unmarshal([]byte(documents), &docTypes)
		c.Documents = engine.NewDocumentSet(docTypes...)
		json.Unmarshal([]byte(history), &c.History)

		if c.ClaimedAmount, err = engine.ParseMoney(claimedAmount); err != nil {
			return nil, fmt.Errorf("claim %s: %w", c.ID, err)
		}
		if paidAmount.Valid {
			m, err := engine.ParseMoney(paidAmount.String)
			if err != nil {
				return nil, fmt.Errorf("claim %s: %w", c.ID, err)
			}
			c.PaidAmount = &m
		}
		if paymentDate.Valid {
			t, _ := time.Parse(time.RFC3339, paymentDate.String)
			c.PaymentDate = &t
		}
		c.PlanType = planType.String
		c.SubmittedAt = parseTime(submittedAt)
		c.LastUpdated = parseTime(updated)

		out = append(out, &c)
	}
	return out, rows.Err()
}

// =============================================================================
// DENIALS (store.DenialStore interface)
// =============================================================================

// SaveDenial upserts a denial record.
func (s *Store) SaveDenial(ctx context.Context, d *claims.DenialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, _ := json.Marshal(d.History)

	query := `
		INSERT INTO denials
		(id, claim_id, denial_reason, denial_code, denial_date,
		 appeal_status, appeal_deadline, resolution_amount, history_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			appeal_status = excluded.appeal_status,
			resolution_amount = excluded.resolution_amount,
			history_json = excluded.history_json
	`

	var resolution sql.NullString
	if d.ResolutionAmount != nil {
		resolution = sql.NullString{String: d.ResolutionAmount.Value.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.ClaimID, d.DenialReason, d.DenialCode,
		d.DenialDate.Format(time.RFC3339),
		d.AppealStatus, d.AppealDeadline.Format(time.RFC3339),
		resolution, string(history),
	)
	if err != nil {
		return fmt.Errorf("failed to save denial: %w", err)
	}
	return nil
}

// GetDenial retrieves a denial record by ID.
func (s *Store) GetDenial(ctx context.Context, id engine.DenialID) (*claims.DenialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.queryDenials(ctx, selectDenial+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("denial %s: %w", id, engine.ErrEntityNotFound)
	}
	return rows[0], nil
}

// GetDenialByClaim retrieves the latest denial record for a claim.
func (s *Store) GetDenialByClaim(ctx context.Context, claimID engine.ClaimID) (*claims.DenialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.queryDenials(ctx,
		selectDenial+" WHERE claim_id = ? ORDER BY denial_date DESC LIMIT 1", claimID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("denial for claim %s: %w", claimID, engine.ErrEntityNotFound)
	}
	return rows[0], nil
}

// ListDenials returns all denial records, ordered by ID.
func (s *Store) ListDenials(ctx context.Context) ([]*claims.DenialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryDenials(ctx, selectDenial+" ORDER BY id")
}

const selectDenial = `
	SELECT id, claim_id, denial_reason, denial_code, denial_date,
	       appeal_status, appeal_deadline, resolution_amount, history_json
	FROM denials`

func (s *Store) queryDenials(ctx context.Context, query string, args ...any) ([]*claims.DenialRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query denials: %w", err)
	}
	defer rows.Close()

	var out []*claims.DenialRecord
	for rows.Next() {
		var (
			d                    claims.DenialRecord
			denialDate, deadline string
			resolution           sql.NullString
			history              string
		)
		if err := rows.Scan(
			&d.ID, &d.ClaimID, &d.DenialReason, &d.DenialCode, &denialDate,
			&d.AppealStatus, &deadline, &resolution, &history,
		); err != nil {
			return nil, fmt.Errorf("failed to scan denial: %w", err)
		}

		d.DenialDate, _ = time.Parse(time.RFC3339, denialDate)
		d.AppealDeadline, _ = time.Parse(time.RFC3339, deadline)
		if resolution.Valid {
			m, err := engine.ParseMoney(resolution.String)
			if err != nil {
				return nil, fmt.Errorf("denial %s: %w", d.ID, err)
			}
			d.ResolutionAmount = &m
		}
		json.Unmarshal([]byte(history), &d.History)

		out = append(out, &d)
	}
	return out, rows.Err()
}

// =============================================================================
// PAYMENTS (store.PaymentStore interface)
// =============================================================================

// SavePayment appends a payment reconciliation record. Records are never
// updated; a duplicate ID is refused.
func (s *Store) SavePayment(ctx context.Context, p *claims.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payments
		(id, claim_id, payment_amount, expected_amount, variance,
		 variance_percentage, reconciliation_status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.ClaimID,
		p.PaymentAmount.Value.String(), p.ExpectedAmount.Value.String(),
		p.Variance.Value.String(), p.VariancePercentage.String(),
		p.ReconciliationStatus, p.RecordedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("payment %s: %w", p.ID, engine.ErrDuplicateIdentifier)
		}
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// ListPaymentsByClaim returns all payment records for a claim, oldest first.
func (s *Store) ListPaymentsByClaim(ctx context.Context, claimID engine.ClaimID) ([]*claims.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, claim_id, payment_amount, expected_amount, variance,
		       variance_percentage, reconciliation_status, recorded_at
		FROM payments
		WHERE claim_id = ?
		ORDER BY recorded_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var out []*claims.PaymentRecord
	for rows.Next() {
		var (
			p                                      claims.PaymentRecord
			payment, expected, variance, variancePct string
			recordedAt                             string
		)
		if err := rows.Scan(
			&p.ID, &p.ClaimID, &payment, &expected, &variance, &variancePct,
			&p.ReconciliationStatus, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}

		if p.PaymentAmount, err = engine.ParseMoney(payment); err != nil {
			return nil, fmt.Errorf("payment %s: %w", p.ID, err)
		}
		if p.ExpectedAmount, err = engine.ParseMoney(expected); err != nil {
			return nil, fmt.Errorf("payment %s: %w", p.ID, err)
		}
		if p.Variance, err = engine.ParseMoney(variance); err != nil {
			return nil, fmt.Errorf("payment %s: %w", p.ID, err)
		}
		p.VariancePercentage, _ = decimal.NewFromString(variancePct)
		p.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt)

		out = append(out, &p)
	}
	return out, rows.Err()
}

// =============================================================================
// LICENSES (store.LicenseStore interface)
// =============================================================================

// SaveLicense upserts a clinician license.
func (s *Store) SaveLicense(ctx context.Context, l engine.ClinicianLicense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO licenses (clinician_id, license_id, status, expiry_date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(clinician_id) DO UPDATE SET
			license_id = excluded.license_id,
			status = excluded.status,
			expiry_date = excluded.expiry_date
	`

	_, err := s.db.ExecContext(ctx, query,
		l.Clinician, l.ID, l.Status, l.ExpiryDate.Format(time.RFC3339))
	return err
}

// GetLicense retrieves a license by clinician ID.
func (s *Store) GetLicense(ctx context.Context, clinician engine.ClinicianID) (engine.ClinicianLicense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var l engine.ClinicianLicense
	var expiry string

	err := s.db.QueryRowContext(ctx,
		"SELECT clinician_id, license_id, status, expiry_date FROM licenses WHERE clinician_id = ?",
		clinician,
	).Scan(&l.Clinician, &l.ID, &l.Status, &expiry)

	if err == sql.ErrNoRows {
		return engine.ClinicianLicense{}, fmt.Errorf("license for %s: %w", clinician, engine.ErrLicenseNotFound)
	}
	if err != nil {
		return engine.ClinicianLicense{}, err
	}

	l.ExpiryDate, _ = time.Parse(time.RFC3339, expiry)
	return l, nil
}

// ListLicenses returns all licenses, ordered by clinician ID.
func (s *Store) ListLicenses(ctx context.Context) ([]engine.ClinicianLicense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT clinician_id, license_id, status, expiry_date FROM licenses ORDER BY clinician_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.ClinicianLicense
	for rows.Next() {
		var l engine.ClinicianLicense
		var expiry string
		if err := rows.Scan(&l.Clinician, &l.ID, &l.Status, &expiry); err != nil {
			return nil, err
		}
		l.ExpiryDate, _ = time.Parse(time.RFC3339, expiry)
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteLicense removes a license from the directory.
func (s *Store) DeleteLicense(ctx context.Context, clinician engine.ClinicianID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM licenses WHERE clinician_id = ?", clinician)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("license for %s: %w", clinician, engine.ErrLicenseNotFound)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"authorizations", "claims", "denials", "payments", "licenses"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s.String)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
