/*
Package engine provides the core authorization/claims lifecycle engine.

PURPOSE:
  This package contains the storage-agnostic types and algorithms shared by
  the authorization and claims domains: monetary amounts, document sets,
  the rule catalog, the validator, the lifecycle transition graph, and the
  payment reconciliation calculator.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A monetary amount backed by decimal.Decimal
  - DocumentSet: The set of document types attached to a submission
  - Snapshot: The flattened view of a submission the validator evaluates
  - Typed identifiers: ClaimID, AuthorizationID, ClinicianID, ...

DESIGN PRINCIPLES:
  1. Purity: Everything here is a value computation; no I/O, no clocks.
     Callers supply "now" explicitly.
  2. Precision: Uses decimal.Decimal to avoid floating-point errors in
     monetary math.
  3. Type Safety: Strong typing for IDs prevents mixing claim and
     authorization identifiers.
  4. Failures as data: Domain problems are Violations or typed errors,
     never panics.

SEE ALSO:
  - rules.go: Rule catalog lookups
  - validator.go: Violation production
  - lifecycle.go: State transition graph and audit entries
  - reconcile.go: Payment variance calculation
*/
package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Monetary amount with decimal precision
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int) Money {
	return Money{Value: decimal.NewFromInt(int64(value))}
}

// ParseMoney parses a decimal string into a Money amount.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	return Money{Value: d}, nil
}

// MustParseMoney is ParseMoney for literals known to be valid. It panics
// on a malformed input instead of silently producing zero.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(o Money) Money          { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money          { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(s decimal.Decimal) Money { return Money{Value: m.Value.Mul(s)} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool         { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool   { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool      { return m.Value.LessThan(o.Value) }
func (m Money) String() string             { return m.Value.StringFixed(2) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AuthorizationID string
type ClaimID string
type DenialID string
type PaymentID string
type ClinicianID string
type PayerID string
type ServiceCode string
type DocumentType string

// =============================================================================
// DOCUMENT SET - Attached document types, merged by union
// =============================================================================

// DocumentSet tracks which document types are attached to a submission.
// Concurrent uploads for the same entity are merged by set union, never
// overwritten (see lifecycle.go merge contract).
type DocumentSet map[DocumentType]bool

func NewDocumentSet(types ...DocumentType) DocumentSet {
	s := make(DocumentSet, len(types))
	for _, t := range types {
		s[t] = true
	}
	return s
}

func (s DocumentSet) Has(t DocumentType) bool { return s[t] }

func (s DocumentSet) Add(types ...DocumentType) {
	for _, t := range types {
		s[t] = true
	}
}

// Union returns a new set containing every document type in either set.
func (s DocumentSet) Union(o DocumentSet) DocumentSet {
	out := make(DocumentSet, len(s)+len(o))
	for t := range s {
		out[t] = true
	}
	for t := range o {
		out[t] = true
	}
	return out
}

// Sorted returns the document types in lexical order, for deterministic
// output and stable test assertions.
func (s DocumentSet) Sorted() []DocumentType {
	out := make([]DocumentType, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s DocumentSet) Len() int { return len(s) }

// =============================================================================
// SNAPSHOT - What the validator sees
// =============================================================================

// ServiceLineRef is the validator's view of a claim service line: enough to
// check service codes and provider licensing without the monetary fields.
type ServiceLineRef struct {
	ServiceCode ServiceCode
	ProviderID  ClinicianID
}

// Snapshot is the flattened, kind-tagged view of a submission or claim that
// the validator evaluates. Domain entities produce it; the validator never
// sees domain structs directly.
type Snapshot struct {
	Kind Kind
	ID   string

	// Authorization fields
	RequestedServices     []ServiceCode
	RequestedDurationDays int
	JustificationLength   int
	PatientSigned         bool
	ProviderSigned        bool

	// Claim fields
	ServiceLines []ServiceLineRef

	// Shared
	Documents       DocumentSet
	PaymentTermsDays int
}
