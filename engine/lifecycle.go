/*
lifecycle.go - State transition graph and audit trail

PURPOSE:
  Owns the canonical mechanics shared by both lifecycles (authorization
  requests and claims): a declarative transition graph, the Apply contract
  that refuses undefined events, and the immutable audit entries appended
  on every accepted transition.

TRANSITION CONTRACT:
  Apply(current, event, now) either returns the new state plus an audit
  entry, or a *TransitionError and NO state change. Attempting an
  already-applied event a second time yields InvalidForState, never a
  silent no-op success - re-submission safety depends on this.

AUDIT TRAIL:
  Every accepted transition appends {fromState, toState, timestamp,
  triggeringEvent}. Entities never lose history; corrections are new
  transitions, not edits.

MERGE RULE:
  Concurrent updates to the same entity are the caller's problem to
  serialize, but the engine defines one conflict-safe rule: document sets
  merge by union, scalar fields are last-writer-wins. Domain entities
  implement Merge() on top of DocumentSet.Union.

EXAMPLE:
  g := engine.NewGraph("claim")
  g.Add("draft", "submit", "pending")
  g.MarkTerminal("paid")

  next, entry, terr := g.Apply("draft", "submit", now)

SEE ALSO:
  - errors.go: TransitionError kinds
  - authorization/lifecycle.go, claims/lifecycle.go: graph configurations
*/
package engine

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// STATES AND EVENTS
// =============================================================================

type State string
type Event string

// =============================================================================
// AUDIT ENTRY - Immutable record of one accepted transition
// =============================================================================

type AuditEntry struct {
	ID        string
	FromState State
	ToState   State
	Event     Event
	At        time.Time
}

// =============================================================================
// GRAPH - Declarative transition table
// =============================================================================

type Graph struct {
	name        string
	transitions map[State]map[Event]State
	terminal    map[State]bool
}

func NewGraph(name string) *Graph {
	return &Graph{
		name:        name,
		transitions: make(map[State]map[Event]State),
		terminal:    make(map[State]bool),
	}
}

// Add registers a transition. Registering from a terminal state is allowed
// at build time (the denial sub-flow can reopen a rejected claim); Apply
// consults the table, not the terminal mark.
func (g *Graph) Add(from State, event Event, to State) *Graph {
	if g.transitions[from] == nil {
		g.transitions[from] = make(map[Event]State)
	}
	g.transitions[from][event] = to
	return g
}

func (g *Graph) MarkTerminal(states ...State) *Graph {
	for _, s := range states {
		g.terminal[s] = true
	}
	return g
}

func (g *Graph) IsTerminal(s State) bool { return g.terminal[s] }

// Next returns the target state for (from, event), if defined.
func (g *Graph) Next(from State, event Event) (State, bool) {
	to, ok := g.transitions[from][event]
	return to, ok
}

// Events returns the events defined for a state, for error messages and
// introspection endpoints. Order is unspecified.
func (g *Graph) Events(from State) []Event {
	events := make([]Event, 0, len(g.transitions[from]))
	for e := range g.transitions[from] {
		events = append(events, e)
	}
	return events
}

// Apply attempts a transition. On success it returns the new state and the
// audit entry to append; on refusal it returns a *TransitionError and the
// caller must leave the entity untouched.
func (g *Graph) Apply(current State, event Event, now time.Time) (State, AuditEntry, *TransitionError) {
	to, ok := g.Next(current, event)
	if !ok {
		return current, AuditEntry{}, &TransitionError{
			Kind:  TransitionInvalidForState,
			From:  current,
			Event: event,
		}
	}
	return to, AuditEntry{
		ID:        uuid.NewString(),
		FromState: current,
		ToState:   to,
		Event:     event,
		At:        now,
	}, nil
}
