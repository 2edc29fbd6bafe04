/*
errors.go - Centralized error types for the lifecycle engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Transition errors - Refused state changes (returned, never thrown)
  2. Rule context errors - Misconfiguration; the only fatal category
  3. Store errors - Persistence-level failures

PROPAGATION POLICY:
  Domain-expected failures are values: violations are returned as data and
  transitions return *TransitionError. Only an unknown rule context is
  treated as a programming/configuration error and propagates upward.

USAGE:
  var terr *engine.TransitionError
  if errors.As(err, &terr) && terr.Kind == engine.TransitionDeadlinePassed {
      // offer the override flow
  }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownRuleContext is returned when the rule catalog has no entry
	// for a (kind, context) combination. This is a configuration error and
	// should never occur with valid input.
	ErrUnknownRuleContext = errors.New("unknown rule context")

	// ErrEntityNotFound is returned when a referenced entity doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrLicenseNotFound is returned when a clinician has no license record.
	ErrLicenseNotFound = errors.New("license not found")

	// ErrDuplicateIdentifier is returned when persisting an entity whose
	// identifier already exists.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")

	// ErrImmutableField is returned when attempting to change a field that
	// is immutable once assigned (e.g. a reference number).
	ErrImmutableField = errors.New("field is immutable once assigned")
)

// =============================================================================
// TRANSITION ERRORS - Refused state changes
// =============================================================================

type TransitionErrorKind string

const (
	// TransitionInvalidForState: the event is not defined for the current state.
	TransitionInvalidForState TransitionErrorKind = "invalid_for_state"

	// TransitionBlockingViolations: the validator reported blocking violations
	// for a submission-triggering event.
	TransitionBlockingViolations TransitionErrorKind = "blocking_violations_present"

	// TransitionDeadlinePassed: the deadline has passed and no override was
	// supplied.
	TransitionDeadlinePassed TransitionErrorKind = "deadline_passed_without_override"
)

// TransitionError explains why a transition was refused. The entity is left
// unchanged whenever one is returned.
type TransitionError struct {
	Kind  TransitionErrorKind
	From  State
	Event Event

	// Populated for TransitionBlockingViolations.
	Violations []Violation
}

func (e *TransitionError) Error() string {
	switch e.Kind {
	case TransitionBlockingViolations:
		return fmt.Sprintf("transition %q refused from state %q: %d blocking violation(s)",
			e.Event, e.From, countBlocking(e.Violations))
	case TransitionDeadlinePassed:
		return fmt.Sprintf("transition %q refused from state %q: deadline passed without override",
			e.Event, e.From)
	default:
		return fmt.Sprintf("event %q is not valid for state %q", e.Event, e.From)
	}
}

func countBlocking(vs []Violation) int {
	n := 0
	for _, v := range vs {
		if v.Severity == SeverityBlocking {
			n++
		}
	}
	return n
}

// =============================================================================
// RULE CONTEXT ERRORS
// =============================================================================

// UnknownRuleContextError carries the offending lookup key.
type UnknownRuleContextError struct {
	Kind    Kind
	Context RuleContext
}

func (e *UnknownRuleContextError) Error() string {
	return fmt.Sprintf("no rules registered for kind %q, plan type %q", e.Kind, e.Context.PlanType)
}

func (e *UnknownRuleContextError) Unwrap() error { return ErrUnknownRuleContext }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid or refused
// client input rather than a system failure.
func IsClientError(err error) bool {
	var terr *TransitionError
	return errors.As(err, &terr) ||
		errors.Is(err, ErrDuplicateIdentifier) ||
		errors.Is(err, ErrImmutableField)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound) || errors.Is(err, ErrLicenseNotFound)
}
