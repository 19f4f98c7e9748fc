// Package cache is entromatica's rule-evaluation memoization layer: for
// each (rule, base-state-hash) pair it write-once-records whether the
// rule's condition fires and what successor state its action produces,
// the way original_source/src/cache.rs's RuleCache/Cache do.
package cache

import (
	"sync"

	"github.com/Entromatica/entromatica/digraph"
	"github.com/Entromatica/entromatica/errs"
	"github.com/Entromatica/entromatica/possiblestates"
	"github.com/Entromatica/entromatica/rule"
	"github.com/Entromatica/entromatica/state"
	"github.com/Entromatica/entromatica/statehash"
)

type ruleCache struct {
	conditions map[statehash.StateHash]rule.RuleApplies
	actions    map[statehash.StateHash]statehash.StateHash
}

func newRuleCache() *ruleCache {
	return &ruleCache{
		conditions: map[statehash.StateHash]rule.RuleApplies{},
		actions:    map[statehash.StateHash]statehash.StateHash{},
	}
}

// Cache is the per-rule write-once memo of condition and action results.
type Cache struct {
	mu    sync.RWMutex
	rules map[rule.RuleName]*ruleCache
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{rules: map[rule.RuleName]*ruleCache{}}
}

func (c *Cache) ruleCacheLocked(name rule.RuleName) *ruleCache {
	rc, ok := c.rules[name]
	if !ok {
		rc = newRuleCache()
		c.rules[name] = rc
	}
	return rc
}

// Condition returns the memoized condition result for (rule, hash), if any.
func (c *Cache) Condition(name rule.RuleName, hash statehash.StateHash) (rule.RuleApplies, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rc, ok := c.rules[name]
	if !ok {
		return rule.RuleApplies{}, false
	}
	v, ok := rc.conditions[hash]
	return v, ok
}

// Action returns the memoized successor hash for (rule, hash), if any.
func (c *Cache) Action(name rule.RuleName, hash statehash.StateHash) (statehash.StateHash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rc, ok := c.rules[name]
	if !ok {
		return 0, false
	}
	v, ok := rc.actions[hash]
	return v, ok
}

// ContainsCondition reports whether a condition entry exists, never
// erroring for a missing rule (spec.md §4.4).
func (c *Cache) ContainsCondition(name rule.RuleName, hash statehash.StateHash) bool {
	_, ok := c.Condition(name, hash)
	return ok
}

// ContainsAction reports whether an action entry exists.
func (c *Cache) ContainsAction(name rule.RuleName, hash statehash.StateHash) bool {
	_, ok := c.Action(name, hash)
	return ok
}

// AddCondition writes the condition result for (rule, hash). Writing
// through a missing rule implicitly creates its sub-cache. Writing an
// identical value is a no-op success; writing a different value is an
// AlreadyExists error.
func (c *Cache) AddCondition(name rule.RuleName, hash statehash.StateHash, applies rule.RuleApplies) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rc := c.ruleCacheLocked(name)
	if existing, ok := rc.conditions[hash]; ok {
		if existing.Bool() == applies.Bool() {
			return nil
		}
		return errs.NewAlreadyExists("condition", conditionKey{name, hash}, existing.Bool(), applies.Bool())
	}
	rc.conditions[hash] = applies
	return nil
}

// AddAction writes the successor hash for (rule, hash), under the same
// write-once rule as AddCondition.
func (c *Cache) AddAction(name rule.RuleName, hash statehash.StateHash, newHash statehash.StateHash) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rc := c.ruleCacheLocked(name)
	if existing, ok := rc.actions[hash]; ok {
		if existing == newHash {
			return nil
		}
		return errs.NewAlreadyExists("action", conditionKey{name, hash}, existing, newHash)
	}
	rc.actions[hash] = newHash
	return nil
}

// IterConditions calls fn for every (rule, base-hash, applies) condition
// entry in an unspecified order. Used by package persist to serialize the
// cache's full contents.
func (c *Cache) IterConditions(fn func(rule.RuleName, statehash.StateHash, rule.RuleApplies)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, rc := range c.rules {
		for hash, applies := range rc.conditions {
			fn(name, hash, applies)
		}
	}
}

// IterActions calls fn for every (rule, base-hash, successor-hash) action
// entry in an unspecified order.
func (c *Cache) IterActions(fn func(rule.RuleName, statehash.StateHash, statehash.StateHash)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, rc := range c.rules {
		for hash, newHash := range rc.actions {
			fn(name, hash, newHash)
		}
	}
}

// InvalidateRule discards every memoized condition and action result for
// name, as if the rule had never been evaluated. Used when a rule's
// definition changes between runs (package ruleset) so stale memoized
// results for the old definition cannot leak into the new one.
func (c *Cache) InvalidateRule(name rule.RuleName) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rules, name)
}

// ApplyConditionUpdate writes a batched ConditionCacheUpdate produced by
// rule.Rule.Applies.
func (c *Cache) ApplyConditionUpdate(u rule.ConditionCacheUpdate) error {
	return c.AddCondition(u.Rule, u.BaseHash, u.Applies)
}

// ApplyActionUpdate writes a batched ActionCacheUpdate produced by
// rule.Rule.Apply.
func (c *Cache) ApplyActionUpdate(u rule.ActionCacheUpdate) error {
	return c.AddAction(u.Rule, u.BaseHash, u.NewHash)
}

// Merge folds every entry of other into c under the write-once rule: two
// caches built over the same rule universe and state pool merge without
// error (spec.md §4.4, §8 S6).
func (c *Cache) Merge(other *Cache) error {
	other.mu.RLock()
	defer other.mu.RUnlock()

	for name, rc := range other.rules {
		for hash, applies := range rc.conditions {
			if err := c.AddCondition(name, hash, applies); err != nil {
				return err
			}
		}
		for hash, newHash := range rc.actions {
			if err := c.AddAction(name, hash, newHash); err != nil {
				return err
			}
		}
	}
	return nil
}

// Graph builds the directed multigraph whose nodes are the states in
// possibleStates and whose edges are (base_hash, successor_hash,
// rule_name) for every cached firing (spec.md §4.4). A successor hash
// absent from possibleStates is an error.
func (c *Cache) Graph(possibleStates *possiblestates.PossibleStates) (*digraph.DirectedGraph[statehash.StateHash, rule.RuleName], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g := digraph.New[statehash.StateHash, rule.RuleName]()
	for h := range snapshotHashes(possibleStates) {
		g.AddNode(h)
	}

	for name, rc := range c.rules {
		for baseHash, newHash := range rc.actions {
			applies, ok := rc.conditions[baseHash]
			if !ok || !applies.Bool() {
				continue
			}
			if !possibleStates.Contains(newHash) {
				return nil, errs.NewNotFound("state", newHash)
			}
			g.AddEdge(baseHash, newHash, name)
		}
	}
	return g, nil
}

func snapshotHashes(p *possiblestates.PossibleStates) map[statehash.StateHash]struct{} {
	out := map[statehash.StateHash]struct{}{}
	p.Iter(func(h statehash.StateHash, _ state.State) {
		out[h] = struct{}{}
	})
	return out
}

// conditionKey names the (rule, hash) pair in AlreadyExists errors.
type conditionKey struct {
	Rule rule.RuleName
	Hash statehash.StateHash
}
