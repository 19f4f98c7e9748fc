// Package state defines entromatica's Entity and State types: a State is a
// mapping from EntityName to Entity, and an Entity is a mapping from
// ParameterName to Parameter, following original_source/src/state.rs.
package state

import (
	"github.com/Entromatica/entromatica/errs"
	"github.com/Entromatica/entromatica/paramvalue"
)

// EntityName uniquely identifies an Entity within a State.
type EntityName string

// ParameterName uniquely identifies a Parameter within an Entity.
type ParameterName string

// Parameter is a thin wrapper over an opaque paramvalue.Value.
type Parameter struct {
	Value paramvalue.Value
}

// NewParameter wraps v in a Parameter.
func NewParameter(v paramvalue.Value) Parameter { return Parameter{Value: v} }

// Entity is a mapping from ParameterName to Parameter. Key order is
// irrelevant for identity.
type Entity struct {
	parameters map[ParameterName]Parameter
}

// NewEntity builds an Entity from the given parameters.
func NewEntity(parameters map[ParameterName]Parameter) Entity {
	out := make(map[ParameterName]Parameter, len(parameters))
	for k, v := range parameters {
		out[k] = v
	}
	return Entity{parameters: out}
}

// Parameter returns the named parameter, or a NotFoundError.
func (e Entity) Parameter(name ParameterName) (Parameter, error) {
	p, ok := e.parameters[name]
	if !ok {
		return Parameter{}, errs.NewNotFound("parameter", name)
	}
	return p, nil
}

// Iter calls fn for every (name, parameter) pair in an unspecified order.
func (e Entity) Iter(fn func(ParameterName, Parameter)) {
	for name, p := range e.parameters {
		fn(name, p)
	}
}

// Len returns the number of parameters in the entity.
func (e Entity) Len() int { return len(e.parameters) }

// Equal reports whether e and other hold the same parameter names, each
// with an Equal value, regardless of internal map order.
func (e Entity) Equal(other Entity) bool {
	if len(e.parameters) != len(other.parameters) {
		return false
	}
	for name, p := range e.parameters {
		op, ok := other.parameters[name]
		if !ok || !p.Value.Equal(op.Value) {
			return false
		}
	}
	return true
}

// WithParameter returns a copy of e with name set to the given parameter,
// leaving e untouched. Used by rule application, which must be pure.
func (e Entity) WithParameter(name ParameterName, p Parameter) Entity {
	out := make(map[ParameterName]Parameter, len(e.parameters)+1)
	for k, v := range e.parameters {
		out[k] = v
	}
	out[name] = p
	return Entity{parameters: out}
}

// Clone returns an independent deep copy of the entity.
func (e Entity) Clone() Entity {
	out := make(map[ParameterName]Parameter, len(e.parameters))
	for k, v := range e.parameters {
		out[k] = Parameter{Value: v.Value.Clone()}
	}
	return Entity{parameters: out}
}

// State is a mapping from EntityName to Entity. Key order is irrelevant
// for identity; see package statehash for the fingerprint.
type State struct {
	entities map[EntityName]Entity
}

// New returns an empty State.
func New() State {
	return State{entities: map[EntityName]Entity{}}
}

// NewState builds a State from the given entities.
func NewState(entities map[EntityName]Entity) State {
	out := make(map[EntityName]Entity, len(entities))
	for k, v := range entities {
		out[k] = v
	}
	return State{entities: out}
}

// Entity returns the named entity, or a NotFoundError.
func (s State) Entity(name EntityName) (Entity, error) {
	e, ok := s.entities[name]
	if !ok {
		return Entity{}, errs.NewNotFound("entity", name)
	}
	return e, nil
}

// Iter calls fn for every (name, entity) pair in an unspecified order.
func (s State) Iter(fn func(EntityName, Entity)) {
	for name, e := range s.entities {
		fn(name, e)
	}
}

// Len returns the number of entities in the state.
func (s State) Len() int { return len(s.entities) }

// Equal reports whether s and other hold the same entity names, each an
// Equal Entity, regardless of internal map order. Unlike comparing
// statehash.Of(s) == statehash.Of(other), this never consults a shared
// hash and so cannot mistake two states for identical merely because a
// caller hashed them the same way.
func (s State) Equal(other State) bool {
	if len(s.entities) != len(other.entities) {
		return false
	}
	for name, e := range s.entities {
		oe, ok := other.entities[name]
		if !ok || !e.Equal(oe) {
			return false
		}
	}
	return true
}

// Clone returns an independent deep copy of the state.
func (s State) Clone() State {
	out := make(map[EntityName]Entity, len(s.entities))
	for k, v := range s.entities {
		out[k] = v.Clone()
	}
	return State{entities: out}
}

// WithParameter returns a copy of s with entity e's parameter p set to
// value, leaving s untouched. Errors if the entity or parameter is absent,
// matching the SetParameter action semantics in spec.md §4.3.
func (s State) WithParameter(e EntityName, p ParameterName, value Parameter) (State, error) {
	entity, ok := s.entities[e]
	if !ok {
		return State{}, errs.NewNotFound("entity", e)
	}
	if _, ok := entity.parameters[p]; !ok {
		return State{}, errs.NewNotFound("parameter", p)
	}
	next := s.Clone()
	next.entities[e] = entity.WithParameter(p, value)
	return next, nil
}

// WithEntity returns a copy of s with name set to entity wholesale
// (inserted or replaced), matching the InsertEntity action semantics.
func (s State) WithEntity(name EntityName, entity Entity) State {
	next := s.Clone()
	next.entities[name] = entity.Clone()
	return next
}
