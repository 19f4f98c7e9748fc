// Package persist is the optional serialization driver for entromatica's
// data structures (spec.md §6): Cache, PossibleStates, ReachableStates,
// ConditionCacheUpdate, ActionCacheUpdate, and data-only Rules all
// round-trip through encoding/json. Predicate and Compute rules carry
// in-process closures and are not serializable.
//
// The normalize-then-json.Marshal approach is adapted from
// internal/graph/hash.go::ComputeHash; unlike that file's plain graph
// document, paramvalue.Value is a polymorphic interface, so every
// envelope here carries an explicit "type" tag alongside its payload.
package persist

import (
	"encoding/json"
	"fmt"

	"github.com/Entromatica/entromatica/cache"
	"github.com/Entromatica/entromatica/errs"
	"github.com/Entromatica/entromatica/paramvalue"
	"github.com/Entromatica/entromatica/possiblestates"
	"github.com/Entromatica/entromatica/reachable"
	"github.com/Entromatica/entromatica/rule"
	"github.com/Entromatica/entromatica/state"
	"github.com/Entromatica/entromatica/statehash"
	"github.com/Entromatica/entromatica/units"
)

// valueEnvelope is the type-tagged wire form of a paramvalue.Value.
type valueEnvelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalValue serializes a paramvalue.Value into its tagged envelope.
func MarshalValue(v paramvalue.Value) ([]byte, error) {
	var tag string
	var payload any

	switch val := v.(type) {
	case paramvalue.Float64:
		tag, payload = "float64", float64(val)
	case paramvalue.String:
		tag, payload = "string", string(val)
	case paramvalue.Bool:
		tag, payload = "bool", bool(val)
	case paramvalue.Int:
		tag, payload = "int", int64(val)
	default:
		return nil, fmt.Errorf("persist: unknown paramvalue.Value type %T", v)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueEnvelope{Type: tag, Value: raw})
}

// UnmarshalValue deserializes a tagged envelope back into a paramvalue.Value.
func UnmarshalValue(data []byte) (paramvalue.Value, error) {
	var env valueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case "float64":
		var f float64
		if err := json.Unmarshal(env.Value, &f); err != nil {
			return nil, err
		}
		return paramvalue.Float64(f), nil
	case "string":
		var s string
		if err := json.Unmarshal(env.Value, &s); err != nil {
			return nil, err
		}
		return paramvalue.String(s), nil
	case "bool":
		var b bool
		if err := json.Unmarshal(env.Value, &b); err != nil {
			return nil, err
		}
		return paramvalue.Bool(b), nil
	case "int":
		var i int64
		if err := json.Unmarshal(env.Value, &i); err != nil {
			return nil, err
		}
		return paramvalue.Int(i), nil
	default:
		return nil, fmt.Errorf("persist: unknown value envelope type %q", env.Type)
	}
}

// entityDoc and stateDoc are the wire forms of state.Entity and state.State.
type entityDoc map[state.ParameterName]json.RawMessage
type stateDoc map[state.EntityName]entityDoc

// MarshalState serializes a state.State.
func MarshalState(s state.State) ([]byte, error) {
	doc := stateDoc{}
	var outerErr error
	s.Iter(func(entityName state.EntityName, e state.Entity) {
		ed := entityDoc{}
		e.Iter(func(paramName state.ParameterName, p state.Parameter) {
			raw, err := MarshalValue(p.Value)
			if err != nil {
				outerErr = err
				return
			}
			ed[paramName] = raw
		})
		doc[entityName] = ed
	})
	if outerErr != nil {
		return nil, outerErr
	}
	return json.Marshal(doc)
}

// UnmarshalState deserializes a state.State.
func UnmarshalState(data []byte) (state.State, error) {
	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return state.State{}, err
	}

	entities := make(map[state.EntityName]state.Entity, len(doc))
	for entityName, ed := range doc {
		params := make(map[state.ParameterName]state.Parameter, len(ed))
		for paramName, raw := range ed {
			v, err := UnmarshalValue(raw)
			if err != nil {
				return state.State{}, err
			}
			params[paramName] = state.NewParameter(v)
		}
		entities[entityName] = state.NewEntity(params)
	}
	return state.NewState(entities), nil
}

// possibleStatesDoc is the wire form of possiblestates.PossibleStates.
type possibleStatesDoc map[statehash.StateHash]json.RawMessage

// MarshalPossibleStates serializes the full contents of p.
func MarshalPossibleStates(p *possiblestates.PossibleStates) ([]byte, error) {
	doc := possibleStatesDoc{}
	var outerErr error
	p.Iter(func(h statehash.StateHash, s state.State) {
		raw, err := MarshalState(s)
		if err != nil {
			outerErr = err
			return
		}
		doc[h] = raw
	})
	if outerErr != nil {
		return nil, outerErr
	}
	return json.Marshal(doc)
}

// UnmarshalPossibleStates deserializes into a fresh PossibleStates pool.
func UnmarshalPossibleStates(data []byte) (*possiblestates.PossibleStates, error) {
	var doc possibleStatesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	p := possiblestates.New()
	for h, raw := range doc {
		s, err := UnmarshalState(raw)
		if err != nil {
			return nil, err
		}
		if err := p.Insert(h, s); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// reachableStatesDoc is the wire form of reachable.ReachableStates.
type reachableStatesDoc struct {
	Epsilon float64                                   `json:"epsilon"`
	Mass    map[statehash.StateHash]units.Probability `json:"mass"`
}

// MarshalReachableStates serializes r.
func MarshalReachableStates(r *reachable.ReachableStates, epsilon float64) ([]byte, error) {
	return json.Marshal(reachableStatesDoc{Epsilon: epsilon, Mass: r.Values()})
}

// UnmarshalReachableStates deserializes into a fresh ReachableStates.
func UnmarshalReachableStates(data []byte) (*reachable.ReachableStates, error) {
	var doc reachableStatesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	r := reachable.New(doc.Epsilon)
	for h, p := range doc.Mass {
		if err := r.Append(h, p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// conditionUpdateDoc / actionUpdateDoc are the wire forms of
// rule.ConditionCacheUpdate / rule.ActionCacheUpdate.
type conditionUpdateDoc struct {
	Rule     rule.RuleName       `json:"rule"`
	BaseHash statehash.StateHash `json:"base_hash"`
	Applies  bool                `json:"applies"`
}

type actionUpdateDoc struct {
	Rule     rule.RuleName       `json:"rule"`
	BaseHash statehash.StateHash `json:"base_hash"`
	NewHash  statehash.StateHash `json:"new_hash"`
}

// MarshalConditionCacheUpdate serializes a rule.ConditionCacheUpdate.
func MarshalConditionCacheUpdate(u rule.ConditionCacheUpdate) ([]byte, error) {
	return json.Marshal(conditionUpdateDoc{Rule: u.Rule, BaseHash: u.BaseHash, Applies: u.Applies.Bool()})
}

// UnmarshalConditionCacheUpdate deserializes a rule.ConditionCacheUpdate.
func UnmarshalConditionCacheUpdate(data []byte) (rule.ConditionCacheUpdate, error) {
	var doc conditionUpdateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return rule.ConditionCacheUpdate{}, err
	}
	applies := rule.NotApplied()
	if doc.Applies {
		applies = rule.Applied()
	}
	return rule.ConditionCacheUpdate{Rule: doc.Rule, BaseHash: doc.BaseHash, Applies: applies}, nil
}

// MarshalActionCacheUpdate serializes a rule.ActionCacheUpdate. NewState
// is not part of the wire form: it is recoverable from PossibleStates via
// NewHash, the same way the advance-step driver resolves cache hits.
func MarshalActionCacheUpdate(u rule.ActionCacheUpdate) ([]byte, error) {
	return json.Marshal(actionUpdateDoc{Rule: u.Rule, BaseHash: u.BaseHash, NewHash: u.NewHash})
}

// UnmarshalActionCacheUpdate deserializes a rule.ActionCacheUpdate. The
// returned update's NewState field is left zero-valued; resolve it via
// PossibleStates.Get(NewHash).
func UnmarshalActionCacheUpdate(data []byte) (rule.ActionCacheUpdate, error) {
	var doc actionUpdateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return rule.ActionCacheUpdate{}, err
	}
	return rule.ActionCacheUpdate{Rule: doc.Rule, BaseHash: doc.BaseHash, NewHash: doc.NewHash}, nil
}

// cacheDoc is the wire form of cache.Cache.
type cacheDoc struct {
	Conditions []conditionUpdateDoc `json:"conditions"`
	Actions    []actionUpdateDoc    `json:"actions"`
}

// MarshalCache serializes the full contents of c.
func MarshalCache(c *cache.Cache) ([]byte, error) {
	doc := cacheDoc{}
	c.IterConditions(func(name rule.RuleName, hash statehash.StateHash, applies rule.RuleApplies) {
		doc.Conditions = append(doc.Conditions, conditionUpdateDoc{Rule: name, BaseHash: hash, Applies: applies.Bool()})
	})
	c.IterActions(func(name rule.RuleName, hash statehash.StateHash, newHash statehash.StateHash) {
		doc.Actions = append(doc.Actions, actionUpdateDoc{Rule: name, BaseHash: hash, NewHash: newHash})
	})
	return json.Marshal(doc)
}

// UnmarshalCache deserializes into a fresh Cache.
func UnmarshalCache(data []byte) (*cache.Cache, error) {
	var doc cacheDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	c := cache.New()
	for _, cu := range doc.Conditions {
		applies := rule.NotApplied()
		if cu.Applies {
			applies = rule.Applied()
		}
		if err := c.AddCondition(cu.Rule, cu.BaseHash, applies); err != nil {
			return nil, err
		}
	}
	for _, au := range doc.Actions {
		if err := c.AddAction(au.Rule, au.BaseHash, au.NewHash); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ruleDoc is the wire form of a data-only rule.Rule.
type ruleDoc struct {
	Description string       `json:"description"`
	Weight      float64      `json:"weight"`
	Condition   conditionDoc `json:"condition"`
	Action      actionDoc    `json:"action"`
}

type conditionDoc struct {
	Kind string `json:"kind"` // "never" | "always"
}

type actionDoc struct {
	Kind      string              `json:"kind"` // "none" | "set_parameter" | "insert_entity"
	Entity    state.EntityName    `json:"entity,omitempty"`
	Parameter state.ParameterName `json:"parameter,omitempty"`
	Value     json.RawMessage     `json:"value,omitempty"`
	EntityDoc json.RawMessage     `json:"entity_doc,omitempty"`
}

// MarshalRule serializes a data-only rule (Never/Always condition,
// None/SetParameter/InsertEntity action). Predicate conditions and
// Compute actions return a NotSerializableError (spec.md §6).
func MarshalRule(name rule.RuleName, r rule.Rule) ([]byte, error) {
	var cond conditionDoc
	switch r.ConditionVariant().(type) {
	case rule.Never:
		cond.Kind = "never"
	case rule.Always:
		cond.Kind = "always"
	default:
		return nil, errs.NewNotSerializable(string(name))
	}

	var act actionDoc
	switch a := r.ActionVariant().(type) {
	case rule.None:
		act.Kind = "none"
	case rule.SetParameter:
		raw, err := MarshalValue(a.Value.Value)
		if err != nil {
			return nil, err
		}
		act.Kind = "set_parameter"
		act.Entity = a.Entity
		act.Parameter = a.Parameter
		act.Value = raw
	case rule.InsertEntity:
		entityState := state.NewState(map[state.EntityName]state.Entity{a.Entity: a.Value})
		raw, err := MarshalState(entityState)
		if err != nil {
			return nil, err
		}
		act.Kind = "insert_entity"
		act.Entity = a.Entity
		act.EntityDoc = raw
	default:
		return nil, errs.NewNotSerializable(string(name))
	}

	return json.Marshal(ruleDoc{Description: r.Description(), Weight: r.Weight().Float64(), Condition: cond, Action: act})
}

// UnmarshalRule deserializes a data-only rule.
func UnmarshalRule(data []byte) (rule.Rule, error) {
	var doc ruleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return rule.Rule{}, err
	}

	var cond rule.Condition
	switch doc.Condition.Kind {
	case "never":
		cond = rule.Never{}
	case "always":
		cond = rule.Always{}
	default:
		return rule.Rule{}, fmt.Errorf("persist: unknown condition kind %q", doc.Condition.Kind)
	}

	var act rule.Action
	switch doc.Action.Kind {
	case "none":
		act = rule.None{}
	case "set_parameter":
		v, err := UnmarshalValue(doc.Action.Value)
		if err != nil {
			return rule.Rule{}, err
		}
		act = rule.SetParameter{Entity: doc.Action.Entity, Parameter: doc.Action.Parameter, Value: state.NewParameter(v)}
	case "insert_entity":
		s, err := UnmarshalState(doc.Action.EntityDoc)
		if err != nil {
			return rule.Rule{}, err
		}
		e, err := s.Entity(doc.Action.Entity)
		if err != nil {
			return rule.Rule{}, err
		}
		act = rule.InsertEntity{Entity: doc.Action.Entity, Value: e}
	default:
		return rule.Rule{}, fmt.Errorf("persist: unknown action kind %q", doc.Action.Kind)
	}

	return rule.New(doc.Description, cond, units.ProbabilityWeight(doc.Weight), act), nil
}
