// Package hooks is entromatica's lifecycle-observer dispatch: the engine
// calls into a HookEngine before/after each advance-step and before/after
// each per-rule evaluation, without depending on any particular observer
// implementation (metrics, tracing, debugging UIs are all external
// collaborators per spec.md §1).
//
// The dispatch shape — sort observers by name for determinism, type-assert
// each observer to the narrow interface a given hook needs, recover from
// panics, log and swallow errors rather than propagate them — is adapted
// from internal/pluginengine/hooks.go's HookEngine. Plugin manifests and
// hook-name strings are gone: an observer simply implements whichever of
// StepObserver/RuleObserver interfaces it cares about.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Entromatica/entromatica/reachable"
	"github.com/Entromatica/entromatica/rule"
	"github.com/Entromatica/entromatica/statehash"
)

// Observer is the minimal contract every registered hook must satisfy: a
// stable name used for deterministic dispatch order and duplicate
// detection.
type Observer interface {
	Name() string
}

// StepObserver is notified before and after each advance-step.
type StepObserver interface {
	Observer
	BeforeStep(ctx context.Context, stepIndex int)
	AfterStep(ctx context.Context, stepIndex int, result *reachable.ReachableStates)
}

// RuleObserver is notified before and after each per-rule evaluation
// within a step.
type RuleObserver interface {
	Observer
	BeforeRule(ctx context.Context, name rule.RuleName, baseHash statehash.StateHash)
	AfterRule(ctx context.Context, name rule.RuleName, baseHash statehash.StateHash, applies bool)
}

// Logger is the minimal logging interface hooks depends on, satisfied by
// NewZapLogger's adapter over a *zap.SugaredLogger or by any test double.
type Logger interface {
	Printf(format string, args ...any)
}

type zapLogger struct{ s *zap.SugaredLogger }

func (z zapLogger) Printf(format string, args ...any) { z.s.Infof(format, args...) }

// NewZapLogger adapts a zap.SugaredLogger to the Logger interface.
func NewZapLogger(s *zap.SugaredLogger) Logger { return zapLogger{s: s} }

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

func loggerOrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

// HookEngine dispatches lifecycle events to registered observers in
// stable, name-sorted order. A panicking or erroring observer never
// affects another observer or the advance-step itself.
type HookEngine struct {
	log Logger

	mu     sync.Mutex
	err    []error
	byName map[string]Observer
	names  []string
}

// NewHookEngine returns an empty HookEngine. log may be nil.
func NewHookEngine(log Logger) *HookEngine {
	return &HookEngine{log: loggerOrNop(log), byName: map[string]Observer{}}
}

// Register adds an observer under its Name(). Registering a duplicate
// name is an error; nil observers are rejected.
func (e *HookEngine) Register(obs Observer) error {
	if obs == nil {
		return fmt.Errorf("hooks: nil observer")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	name := obs.Name()
	if _, ok := e.byName[name]; ok {
		return fmt.Errorf("hooks: duplicate observer name %q", name)
	}
	e.byName[name] = obs
	e.names = append(e.names, name)
	sort.Strings(e.names)
	return nil
}

// Errors returns a snapshot of hook errors observed so far.
func (e *HookEngine) Errors() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.err))
	copy(out, e.err)
	return out
}

func (e *HookEngine) recordError(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.err = append(e.err, err)
	e.mu.Unlock()
}

func (e *HookEngine) ordered() []Observer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Observer, 0, len(e.names))
	for _, name := range e.names {
		out = append(out, e.byName[name])
	}
	return out
}

func (e *HookEngine) guard(name, hook string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("observer %s hook %s panic: %v", name, hook, r)
			e.log.Printf("hooks: %v", err)
			e.recordError(err)
		}
	}()
	if err := fn(); err != nil {
		wrapped := fmt.Errorf("observer %s hook %s error: %w", name, hook, err)
		e.log.Printf("hooks: %v", wrapped)
		e.recordError(wrapped)
	}
}

// BeforeStep notifies every registered StepObserver that stepIndex is
// about to run.
func (e *HookEngine) BeforeStep(ctx context.Context, stepIndex int) {
	if e == nil {
		return
	}
	for _, obs := range e.ordered() {
		so, ok := obs.(StepObserver)
		if !ok {
			continue
		}
		e.guard(obs.Name(), "BeforeStep", func() error {
			so.BeforeStep(ctx, stepIndex)
			return nil
		})
	}
}

// AfterStep notifies every registered StepObserver that stepIndex has
// completed with the given result.
func (e *HookEngine) AfterStep(ctx context.Context, stepIndex int, result *reachable.ReachableStates) {
	if e == nil {
		return
	}
	for _, obs := range e.ordered() {
		so, ok := obs.(StepObserver)
		if !ok {
			continue
		}
		e.guard(obs.Name(), "AfterStep", func() error {
			so.AfterStep(ctx, stepIndex, result)
			return nil
		})
	}
}

// BeforeRule notifies every registered RuleObserver that a rule is about
// to be evaluated against a base state.
func (e *HookEngine) BeforeRule(ctx context.Context, name rule.RuleName, baseHash statehash.StateHash) {
	if e == nil {
		return
	}
	for _, obs := range e.ordered() {
		ro, ok := obs.(RuleObserver)
		if !ok {
			continue
		}
		e.guard(obs.Name(), "BeforeRule", func() error {
			ro.BeforeRule(ctx, name, baseHash)
			return nil
		})
	}
}

// AfterRule notifies every registered RuleObserver of a rule's firing
// outcome at a base state.
func (e *HookEngine) AfterRule(ctx context.Context, name rule.RuleName, baseHash statehash.StateHash, applies bool) {
	if e == nil {
		return
	}
	for _, obs := range e.ordered() {
		ro, ok := obs.(RuleObserver)
		if !ok {
			continue
		}
		e.guard(obs.Name(), "AfterRule", func() error {
			ro.AfterRule(ctx, name, baseHash, applies)
			return nil
		})
	}
}
