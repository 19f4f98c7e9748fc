package hooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Entromatica/entromatica/reachable"
	"github.com/Entromatica/entromatica/rule"
	"github.com/Entromatica/entromatica/statehash"
)

type recordingStepObserver struct {
	name   string
	events *[]string
}

func (o recordingStepObserver) Name() string { return o.name }
func (o recordingStepObserver) BeforeStep(ctx context.Context, stepIndex int) {
	*o.events = append(*o.events, o.name+":before")
}
func (o recordingStepObserver) AfterStep(ctx context.Context, stepIndex int, result *reachable.ReachableStates) {
	*o.events = append(*o.events, o.name+":after")
}

func TestRegisterDuplicateNameErrors(t *testing.T) {
	e := NewHookEngine(nil)
	var events []string
	require.NoError(t, e.Register(recordingStepObserver{name: "a", events: &events}))
	err := e.Register(recordingStepObserver{name: "a", events: &events})
	require.Error(t, err)
}

func TestDispatchIsNameOrdered(t *testing.T) {
	e := NewHookEngine(nil)
	var events []string
	require.NoError(t, e.Register(recordingStepObserver{name: "zeta", events: &events}))
	require.NoError(t, e.Register(recordingStepObserver{name: "alpha", events: &events}))

	e.BeforeStep(context.Background(), 0)

	require.Equal(t, []string{"alpha:before", "zeta:before"}, events)
}

type panickingObserver struct{ name string }

func (o panickingObserver) Name() string { return o.name }
func (o panickingObserver) BeforeStep(ctx context.Context, stepIndex int) {
	panic("boom")
}
func (o panickingObserver) AfterStep(ctx context.Context, stepIndex int, result *reachable.ReachableStates) {
}

func TestPanicInOneObserverDoesNotStopOthers(t *testing.T) {
	e := NewHookEngine(nil)
	var events []string
	require.NoError(t, e.Register(panickingObserver{name: "boom"}))
	require.NoError(t, e.Register(recordingStepObserver{name: "zzz", events: &events}))

	require.NotPanics(t, func() { e.BeforeStep(context.Background(), 0) })
	require.Equal(t, []string{"zzz:before"}, events)
	require.Len(t, e.Errors(), 1)
}

type ruleOnlyObserver struct {
	name    string
	seen    *[]rule.RuleName
	applied *[]bool
}

func (o ruleOnlyObserver) Name() string { return o.name }
func (o ruleOnlyObserver) BeforeRule(ctx context.Context, name rule.RuleName, baseHash statehash.StateHash) {
	*o.seen = append(*o.seen, name)
}
func (o ruleOnlyObserver) AfterRule(ctx context.Context, name rule.RuleName, baseHash statehash.StateHash, applies bool) {
	*o.applied = append(*o.applied, applies)
}

func TestRuleObserverIgnoredByStepDispatchAndViceVersa(t *testing.T) {
	e := NewHookEngine(nil)
	var stepEvents []string
	var seen []rule.RuleName
	var applied []bool

	require.NoError(t, e.Register(recordingStepObserver{name: "step", events: &stepEvents}))
	require.NoError(t, e.Register(ruleOnlyObserver{name: "rule", seen: &seen, applied: &applied}))

	e.BeforeStep(context.Background(), 0)
	e.BeforeRule(context.Background(), "r1", statehash.StateHash(1))
	e.AfterRule(context.Background(), "r1", statehash.StateHash(1), true)

	require.Equal(t, []string{"step:before"}, stepEvents)
	require.Equal(t, []rule.RuleName{"r1"}, seen)
	require.Equal(t, []bool{true}, applied)
}

func TestNilHookEngineDispatchIsNoop(t *testing.T) {
	var e *HookEngine
	require.NotPanics(t, func() {
		e.BeforeStep(context.Background(), 0)
		e.AfterStep(context.Background(), 0, nil)
		e.BeforeRule(context.Background(), "r", statehash.StateHash(0))
		e.AfterRule(context.Background(), "r", statehash.StateHash(0), false)
	})
}
