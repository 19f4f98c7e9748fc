// Package engine drives the advance-step algorithm: given the current
// ReachableStates, the rule set, the Cache, and the PossibleStates pool,
// it computes the next distribution while batching cache updates and
// newly discovered states (spec.md §4.5, §5).
//
// The per-base-state loop is data-parallel: each worker stages its cache
// updates, deposits, and newly discovered states in a private
// perBaseResult and workers never touch shared state until the step
// commits, the same stage-then-merge
// shape internal/dag/executor.go::RunParallel uses for its worker pool,
// here driven by golang.org/x/sync/errgroup instead of a hand-rolled
// WaitGroup and channel fan-in.
package engine

import (
	"context"
	"errors"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/Entromatica/entromatica/cache"
	"github.com/Entromatica/entromatica/errs"
	"github.com/Entromatica/entromatica/hooks"
	"github.com/Entromatica/entromatica/possiblestates"
	"github.com/Entromatica/entromatica/reachable"
	"github.com/Entromatica/entromatica/rule"
	"github.com/Entromatica/entromatica/state"
	"github.com/Entromatica/entromatica/statehash"
	"github.com/Entromatica/entromatica/units"
)

// ResidualMassConvention selects how competing rule weights are
// interpreted when their sum exceeds 1 (spec.md §9 open question).
type ResidualMassConvention int

const (
	// StayPut treats weights as already on the 0..1 probability scale: the
	// residual 1-W (if positive) stays at the base state. This is the
	// convention spec.md §4.5 endorses.
	StayPut ResidualMassConvention = iota
	// Renormalize divides each applicable rule's weight by W when W >= 1,
	// so competing rules always partition the full probability mass.
	Renormalize
)

// Config carries the driver's tunable behavior (spec.md §6).
type Config struct {
	Parallelism                  int
	ResidualMassConvention       ResidualMassConvention
	Epsilon                      float64
	DetectConflictingAssignments bool
	// Hooks, if non-nil, is notified before/after the step and before/after
	// every per-base-state rule evaluation (SPEC_FULL.md §4.1). A nil
	// HookEngine is a valid no-op receiver.
	Hooks *hooks.HookEngine
}

// DefaultConfig returns a single-worker, stay-put configuration with a
// conservative epsilon.
func DefaultConfig() Config {
	return Config{
		Parallelism:            1,
		ResidualMassConvention: StayPut,
		Epsilon:                1e-9,
	}
}

// Rules is the rule universe: name -> Rule. Iteration order across
// calls need not be stable; the result does not depend on it (spec.md §5).
type Rules map[rule.RuleName]rule.Rule

// perBaseResult is one worker's computed contribution for a single base
// state, merged into the shared structures after every worker finishes.
type perBaseResult struct {
	deposits   map[statehash.StateHash]units.Probability
	conditions []rule.ConditionCacheUpdate
	actions    []rule.ActionCacheUpdate
	newStates  map[statehash.StateHash]state.State
}

// AdvanceStep computes the next ReachableStates from r, using rules,
// cache, and possibleStates as read-only inputs during the per-base loop.
// On success it returns the new distribution and commits the accumulated
// cache updates and newly discovered states to cache/possibleStates. On
// any error the step is aborted and none of cache, possibleStates, or r
// is observably mutated (spec.md §7). stepIndex identifies this step to
// cfg.Hooks; callers advancing a simulation across repeated calls should
// pass a monotonically increasing value.
func AdvanceStep(ctx context.Context, stepIndex int, r *reachable.ReachableStates, rules Rules, c *cache.Cache, possibleStates *possiblestates.PossibleStates, cfg Config) (*reachable.ReachableStates, error) {
	cfg.Hooks.BeforeStep(ctx, stepIndex)

	type baseEntry struct {
		hash statehash.StateHash
		mass units.Probability
	}
	bases := make([]baseEntry, 0, r.Len())
	r.Iter(func(h statehash.StateHash, p units.Probability) {
		bases = append(bases, baseEntry{hash: h, mass: p})
	})

	results := make([]*perBaseResult, len(bases))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Parallelism > 0 {
		g.SetLimit(cfg.Parallelism)
	}

	for i, base := range bases {
		i, base := i, base
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			baseState, ok := possibleStates.Get(base.hash)
			if !ok {
				return errs.NewNotFound("state", base.hash)
			}

			result, err := advanceOneBase(gctx, base.hash, base.mass, baseState, rules, c, possibleStates, cfg)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	next := reachable.New(cfg.Epsilon)
	newCache := cache.New()
	newStatesBatch := possiblestates.New()

	for _, result := range results {
		for hash, mass := range result.deposits {
			if err := next.Append(hash, mass); err != nil {
				return nil, err
			}
		}
		for _, update := range result.conditions {
			if err := newCache.ApplyConditionUpdate(update); err != nil {
				return nil, err
			}
		}
		for _, update := range result.actions {
			if err := newCache.ApplyActionUpdate(update); err != nil {
				return nil, err
			}
		}
		for hash, s := range result.newStates {
			if err := newStatesBatch.Insert(hash, s); err != nil {
				// Two base states may reach the same successor; an
				// identical state staged twice is not an error.
				var already *errs.AlreadyExistsError
				if !errors.As(err, &already) {
					return nil, err
				}
			}
		}
	}

	sum := next.ProbabilitySum()
	if !sum.InRange(cfg.Epsilon) {
		return nil, errs.NewOutOfRange(sum.Float64(), 0, 1)
	}

	if err := c.Merge(newCache); err != nil {
		return nil, err
	}
	if err := possibleStates.Merge(newStatesBatch); err != nil {
		return nil, err
	}

	cfg.Hooks.AfterStep(ctx, stepIndex, next)
	return next, nil
}

// advanceOneBase evaluates every rule against one base state and builds
// that base state's contribution to the next distribution (spec.md §4.5
// steps 2a-2e). It reads cache/possibleStates but writes nothing to them;
// its findings are staged in the returned perBaseResult.
func advanceOneBase(ctx context.Context, baseHash statehash.StateHash, mass units.Probability, baseState state.State, rules Rules, c *cache.Cache, possibleStates *possiblestates.PossibleStates, cfg Config) (*perBaseResult, error) {
	result := &perBaseResult{
		deposits:  map[statehash.StateHash]units.Probability{},
		newStates: map[statehash.StateHash]state.State{},
	}

	type applicable struct {
		ruleName  rule.RuleName
		weight    units.ProbabilityWeight
		successor statehash.StateHash
	}
	var fired []applicable

	for name, r := range rules {
		if w := r.Weight().Float64(); w < 0 {
			return nil, errs.NewOutOfRange(w, 0, math.Inf(1))
		}

		cfg.Hooks.BeforeRule(ctx, name, baseHash)

		applies, condUpdate, err := r.Applies(c, name, baseHash, baseState)
		if err != nil {
			return nil, err
		}
		if condUpdate != nil {
			result.conditions = append(result.conditions, *condUpdate)
		}

		cfg.Hooks.AfterRule(ctx, name, baseHash, applies.Bool())

		if !applies.Bool() {
			continue
		}

		newState, actUpdate, err := r.Apply(c, possibleStates, name, baseHash, baseState, cfg.DetectConflictingAssignments)
		if err != nil {
			return nil, err
		}
		if actUpdate != nil {
			result.actions = append(result.actions, *actUpdate)
			result.newStates[actUpdate.NewHash] = newState
		}

		newHash := statehash.Of(newState)
		fired = append(fired, applicable{ruleName: name, weight: r.Weight(), successor: newHash})
	}

	if len(fired) == 0 {
		result.deposits[baseHash] = result.deposits[baseHash].Add(mass)
		return result, nil
	}

	var totalWeight units.ProbabilityWeight
	for _, f := range fired {
		totalWeight = totalWeight.Add(f.weight)
	}
	w := totalWeight.Float64()

	switch cfg.ResidualMassConvention {
	case Renormalize:
		if w <= 0 {
			result.deposits[baseHash] = result.deposits[baseHash].Add(mass)
			return result, nil
		}
		denom := w
		if denom < 1 {
			denom = 1
		}
		for _, f := range fired {
			p := units.Probability(f.weight.Float64() / denom)
			result.deposits[f.successor] = result.deposits[f.successor].Add(mass.Mul(p))
		}
		if w < 1 {
			residual := units.Probability(1 - w)
			result.deposits[baseHash] = result.deposits[baseHash].Add(mass.Mul(residual))
		}
	default: // StayPut
		for _, f := range fired {
			p := f.weight.AsProbability()
			result.deposits[f.successor] = result.deposits[f.successor].Add(mass.Mul(p))
		}
		residual := 1 - w
		if residual < 0 {
			residual = 0
		}
		result.deposits[baseHash] = result.deposits[baseHash].Add(mass.Mul(units.Probability(residual)))
	}

	return result, nil
}
