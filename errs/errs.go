// Package errs defines the error taxonomy shared across entromatica's
// packages: NotFound, AlreadyExists, OutOfRange, HashCollision, Conflict,
// and NotSerializable. Every constructor captures a stack trace at the
// point of construction so failures remain debuggable without ever being
// used for control flow.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors for programmatic checks via errors.Is().
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrOutOfRange      = errors.New("out of range")
	ErrHashCollision   = errors.New("hash collision")
	ErrConflict        = errors.New("conflict")
	ErrNotSerializable = errors.New("not serializable")
)

// NotFoundError wraps ErrNotFound with the kind and key that were missing.
type NotFoundError struct {
	Kind  string
	Key   any
	stack error
}

func NewNotFound(kind string, key any) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key, stack: errors.WithStack(ErrNotFound)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %v not found", ErrNotFound, e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StackTrace exposes the captured call stack, for debuggability only.
func (e *NotFoundError) StackTrace() error { return e.stack }

// AlreadyExistsError wraps ErrAlreadyExists with the conflicting values.
type AlreadyExistsError struct {
	Kind     string
	Key      any
	Existing any
	Proposed any
	stack    error
}

func NewAlreadyExists(kind string, key, existing, proposed any) *AlreadyExistsError {
	return &AlreadyExistsError{
		Kind:     kind,
		Key:      key,
		Existing: existing,
		Proposed: proposed,
		stack:    errors.WithStack(ErrAlreadyExists),
	}
}

func (e *AlreadyExistsError) Error() string {
	if e.Existing == nil && e.Proposed == nil {
		return fmt.Sprintf("%s: %s %v", ErrAlreadyExists, e.Kind, e.Key)
	}
	return fmt.Sprintf("%s: %s %v: existing=%v proposed=%v", ErrAlreadyExists, e.Kind, e.Key, e.Existing, e.Proposed)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

func (e *AlreadyExistsError) StackTrace() error { return e.stack }

// OutOfRangeError wraps ErrOutOfRange with the offending value and bounds.
type OutOfRangeError struct {
	Value any
	Min   any
	Max   any
	stack error
}

func NewOutOfRange(value, min, max any) *OutOfRangeError {
	return &OutOfRangeError{Value: value, Min: min, Max: max, stack: errors.WithStack(ErrOutOfRange)}
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s: %v not in [%v, %v]", ErrOutOfRange, e.Value, e.Min, e.Max)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

func (e *OutOfRangeError) StackTrace() error { return e.stack }

// HashCollisionError wraps ErrHashCollision: two distinct states hashed to
// the same fingerprint. Treated as fatal by callers.
type HashCollisionError struct {
	Hash   any
	StateA any
	StateB any
	stack  error
}

func NewHashCollision(hash, stateA, stateB any) *HashCollisionError {
	return &HashCollisionError{Hash: hash, StateA: stateA, StateB: stateB, stack: errors.WithStack(ErrHashCollision)}
}

func (e *HashCollisionError) Error() string {
	return fmt.Sprintf("%s: hash %v produced by two distinct states", ErrHashCollision, e.Hash)
}

func (e *HashCollisionError) Unwrap() error { return ErrHashCollision }

func (e *HashCollisionError) StackTrace() error { return e.stack }

// ConflictError wraps ErrConflict: two Compute assignments targeted the
// same parameter within one action application.
type ConflictError struct {
	BaseHash  any
	RuleA     string
	RuleB     string
	Parameter string
	stack     error
}

func NewConflict(baseHash any, ruleA, ruleB, parameter string) *ConflictError {
	return &ConflictError{BaseHash: baseHash, RuleA: ruleA, RuleB: ruleB, Parameter: parameter, stack: errors.WithStack(ErrConflict)}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s at %v: %s and %s both assign %s", ErrConflict, e.BaseHash, e.BaseHash, e.RuleA, e.RuleB, e.Parameter)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

func (e *ConflictError) StackTrace() error { return e.stack }

// NotSerializableError wraps ErrNotSerializable: a function-valued rule
// (Predicate condition or Compute action) cannot be persisted.
type NotSerializableError struct {
	RuleName string
	stack    error
}

func NewNotSerializable(ruleName string) *NotSerializableError {
	return &NotSerializableError{RuleName: ruleName, stack: errors.WithStack(ErrNotSerializable)}
}

func (e *NotSerializableError) Error() string {
	return fmt.Sprintf("%s: rule %q has a function-valued condition or action", ErrNotSerializable, e.RuleName)
}

func (e *NotSerializableError) Unwrap() error { return ErrNotSerializable }

func (e *NotSerializableError) StackTrace() error { return e.stack }
