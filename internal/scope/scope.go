// Package scope implements Scope: the engine's current (stanza,
// application, substance) pointer plus a nested variable environment with
// shadow-but-read-through-parent semantics.
package scope

import (
	"github.com/example/mpsim/internal/engineerr"
	"github.com/example/mpsim/internal/stream"
	"github.com/example/mpsim/internal/unit"
)

// Scope is a (stanza, application, substance) pointer together with a
// variable environment. Child scopes are created for nested execution
// blocks (e.g. a conditional or loop body in the command stream); variables
// set in a child shadow a parent's variable of the same name but a read
// that misses locally falls through to the parent chain.
type Scope struct {
	parent *Scope

	stanza      string
	application string
	substance   string

	vars map[string]unit.Value
}

// NewRoot constructs the top-level scope with no stanza, application, or
// substance set and an empty variable environment.
func NewRoot() *Scope {
	return &Scope{vars: make(map[string]unit.Value)}
}

// Child creates a nested scope that inherits the current (stanza,
// application, substance) pointer and reads through to this scope's
// variables, but whose own variable writes do not affect the parent.
func (s *Scope) Child() *Scope {
	return &Scope{
		parent:      s,
		stanza:      s.stanza,
		application: s.application,
		substance:   s.substance,
		vars:        make(map[string]unit.Value),
	}
}

// Parent returns the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Stanza returns the current stanza name, or "" if unset.
func (s *Scope) Stanza() string { return s.stanza }

// Application returns the current application name, or "" if unset.
func (s *Scope) Application() string { return s.application }

// Substance returns the current substance name, or "" if unset.
func (s *Scope) Substance() string { return s.substance }

// SetStanza sets the current stanza and, per spec §4.4's scope management
// rule, clears both application and substance — a stanza change starts a
// fresh (application, substance) pointer.
func (s *Scope) SetStanza(name string) {
	s.stanza = name
	s.application = ""
	s.substance = ""
}

// SetApplication sets the current application and clears substance.
func (s *Scope) SetApplication(name string) {
	s.application = name
	s.substance = ""
}

// SetSubstance sets the current substance.
func (s *Scope) SetSubstance(name string) {
	s.substance = name
}

// Key returns the StreamKey for the current (application, substance)
// pointer, or engineerr.ErrNoApplicationOrSubstance if either is unset.
func (s *Scope) Key() (stream.Key, error) {
	if s.application == "" || s.substance == "" {
		return stream.Key{}, engineerr.New(engineerr.NoApplicationOrSubstance,
			"verb requires both application and substance to be set (application=%q substance=%q)",
			s.application, s.substance)
	}
	return stream.Key{Application: s.application, Substance: s.substance}, nil
}

// SetVar writes name into this scope's own variable environment, shadowing
// any parent binding of the same name for the lifetime of this scope.
func (s *Scope) SetVar(name string, value unit.Value) {
	s.vars[name] = value
}

// GetVar looks up name in this scope, falling through to each parent in
// turn until found. The boolean result reports whether any binding was
// found.
func (s *Scope) GetVar(name string) (unit.Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return unit.Value{}, false
}
