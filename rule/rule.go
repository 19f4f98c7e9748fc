// Package rule defines entromatica's Condition/Action tagged variants and
// the Rule type that ties a condition, a weight, and an action together,
// evaluating itself against a cache the way original_source/src/rules.rs's
// Rule::applies/Rule::apply do.
//
// Condition and Action are encoded as small interfaces with a private
// marker method rather than enums: concrete variants implement the
// interface and callers type-switch on them, mirroring the oneof dispatch
// SethuRamanOmanakuttan-mirbft/state_machine.go performs over msg.Type.
package rule

import (
	"github.com/Entromatica/entromatica/errs"
	"github.com/Entromatica/entromatica/state"
	"github.com/Entromatica/entromatica/statehash"
	"github.com/Entromatica/entromatica/units"
)

// RuleName uniquely identifies a rule.
type RuleName string

// RuleApplies is an explicit boolean wrapper: it forbids accidental
// construction from an int or other truthy value (spec.md §3).
type RuleApplies struct{ applies bool }

// Applied returns an RuleApplies that is true.
func Applied() RuleApplies { return RuleApplies{applies: true} }

// NotApplied returns an RuleApplies that is false.
func NotApplied() RuleApplies { return RuleApplies{applies: false} }

// Bool returns the underlying boolean.
func (r RuleApplies) Bool() bool { return r.applies }

// Condition is the tagged variant Never | Always | Predicate.
type Condition interface {
	isCondition()
}

// Never never fires.
type Never struct{}

func (Never) isCondition() {}

// Always always fires.
type Always struct{}

func (Always) isCondition() {}

// Predicate fires iff Fn(state) reports true. Predicate-valued conditions
// are not serializable (spec.md §6).
type Predicate struct {
	Fn func(state.State) bool
}

func (Predicate) isCondition() {}

// Action is the tagged variant None | SetParameter | InsertEntity | Compute.
type Action interface {
	isAction()
}

// None leaves the state unchanged.
type None struct{}

func (None) isAction() {}

// SetParameter replaces the value at (Entity, Parameter).
type SetParameter struct {
	Entity    state.EntityName
	Parameter state.ParameterName
	Value     state.Parameter
}

func (SetParameter) isAction() {}

// InsertEntity inserts or replaces an entity wholesale.
type InsertEntity struct {
	Entity state.EntityName
	Value  state.Entity
}

func (InsertEntity) isAction() {}

// Assignment is one (entity, parameter, value) triple produced by a
// Compute action.
type Assignment struct {
	Entity    state.EntityName
	Parameter state.ParameterName
	Value     state.Parameter
}

// Compute computes a set of assignments to apply via SetParameter
// semantics. Compute-valued actions are not serializable (spec.md §6).
type Compute struct {
	Fn func(state.State) []Assignment
}

func (Compute) isAction() {}

// ConditionCacheUpdate records the outcome of evaluating a rule's
// condition at a base state, for the driver to batch and apply (spec.md §4.3).
type ConditionCacheUpdate struct {
	Rule     RuleName
	BaseHash statehash.StateHash
	Applies  RuleApplies
}

// ActionCacheUpdate records the successor state discovered by applying a
// rule's action at a base state.
type ActionCacheUpdate struct {
	Rule     RuleName
	BaseHash statehash.StateHash
	NewHash  statehash.StateHash
	NewState state.State
}

// ConditionLookup is the narrow view of Cache that Rule.Applies needs. It
// is defined here, not in package cache, so rule never imports cache:
// cache.Cache satisfies this interface structurally.
type ConditionLookup interface {
	Condition(rule RuleName, hash statehash.StateHash) (RuleApplies, bool)
}

// ActionLookup is the narrow view of Cache that Rule.Apply needs.
type ActionLookup interface {
	Action(rule RuleName, hash statehash.StateHash) (statehash.StateHash, bool)
}

// StateLookup is the narrow view of PossibleStates that Rule.Apply needs
// to resolve a cached action's successor hash back to a State.
type StateLookup interface {
	Get(hash statehash.StateHash) (state.State, bool)
}

// Rule is a named Condition + ProbabilityWeight + Action triple.
type Rule struct {
	description string
	condition   Condition
	weight      units.ProbabilityWeight
	action      Action
}

// New constructs a Rule. Negative weights are rejected by the caller via
// errs.OutOfRangeError in package engine, which owns the ε/validation
// policy; New itself performs no clamping.
func New(description string, condition Condition, weight units.ProbabilityWeight, action Action) Rule {
	return Rule{description: description, condition: condition, weight: weight, action: action}
}

// Description returns the rule's human-readable description.
func (r Rule) Description() string { return r.description }

// ConditionVariant returns the rule's condition.
func (r Rule) ConditionVariant() Condition { return r.condition }

// Weight returns the rule's probability weight.
func (r Rule) Weight() units.ProbabilityWeight { return r.weight }

// ActionVariant returns the rule's action.
func (r Rule) ActionVariant() Action { return r.action }

// Applies evaluates the rule's condition at baseState, consulting cache
// for a memoized result first (spec.md §4.3). It returns the cache update
// to apply, if any — callers batch updates rather than writing in place.
func (r Rule) Applies(cache ConditionLookup, name RuleName, baseHash statehash.StateHash, baseState state.State) (RuleApplies, *ConditionCacheUpdate, error) {
	if r.weight.IsZero() {
		return NotApplied(), nil, nil
	}

	if cached, ok := cache.Condition(name, baseHash); ok {
		return cached, nil, nil
	}

	var applies bool
	switch c := r.condition.(type) {
	case Never:
		applies = false
	case Always:
		applies = true
	case Predicate:
		applies = c.Fn(baseState)
	default:
		return NotApplied(), nil, errs.NewNotFound("condition variant", r.condition)
	}

	result := RuleApplies{applies: applies}
	return result, &ConditionCacheUpdate{Rule: name, BaseHash: baseHash, Applies: result}, nil
}

// Apply computes (or looks up) the successor state produced by firing the
// rule's action at baseState, consulting cache and possibleStates for a
// memoized result first (spec.md §4.3). Only meaningful when Applies
// previously reported true. detectConflicts controls whether a Compute
// action's assignments are checked for two entries targeting the same
// parameter (spec.md §6 detect_conflicting_assignments); when false, a
// later assignment silently overwrites an earlier one.
func (r Rule) Apply(cache ActionLookup, possibleStates StateLookup, name RuleName, baseHash statehash.StateHash, baseState state.State, detectConflicts bool) (state.State, *ActionCacheUpdate, error) {
	if newHash, ok := cache.Action(name, baseHash); ok {
		newState, ok := possibleStates.Get(newHash)
		if !ok {
			return state.State{}, nil, errs.NewNotFound("state", newHash)
		}
		return newState, nil, nil
	}

	newState, err := r.applyAction(name, baseHash, baseState, detectConflicts)
	if err != nil {
		return state.State{}, nil, err
	}

	newHash := statehash.Of(newState)
	return newState, &ActionCacheUpdate{Rule: name, BaseHash: baseHash, NewHash: newHash, NewState: newState}, nil
}

func (r Rule) applyAction(name RuleName, baseHash statehash.StateHash, baseState state.State, detectConflicts bool) (state.State, error) {
	switch a := r.action.(type) {
	case None:
		return baseState.Clone(), nil
	case SetParameter:
		return baseState.WithParameter(a.Entity, a.Parameter, a.Value)
	case InsertEntity:
		return baseState.WithEntity(a.Entity, a.Value), nil
	case Compute:
		assignments := a.Fn(baseState)
		seen := map[string]struct{}{}
		next := baseState.Clone()
		for _, asn := range assignments {
			key := string(asn.Entity) + "\x00" + string(asn.Parameter)
			if _, dup := seen[key]; dup && detectConflicts {
				return state.State{}, errs.NewConflict(baseHash, string(name), string(name), string(asn.Parameter))
			}
			seen[key] = struct{}{}

			updated, err := next.WithParameter(asn.Entity, asn.Parameter, asn.Value)
			if err != nil {
				return state.State{}, err
			}
			next = updated
		}
		return next, nil
	default:
		return state.State{}, errs.NewNotFound("action variant", r.action)
	}
}
