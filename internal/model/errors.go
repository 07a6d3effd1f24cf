// Package model defines the value domain, path types, and document/mutation
// state machine shared by every other package in firedoc. It has no
// dependency on persistence or query evaluation — those build on top of it.
package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the error taxonomy described in the design notes.
// Use errors.Is(err, model.ErrPreconditionFailed) to check.
var (
	ErrPreconditionFailed = errors.New("firedoc: precondition failed")
	ErrDataCorruption     = errors.New("firedoc: data corruption")
	ErrInvariant          = errors.New("firedoc: invariant violation")
)

// InvariantError wraps ErrInvariant with enough context to diagnose an
// "unexpected state" failure (ack out of order, missing document in a
// versions map, and similar bugs that should never happen in a correct
// caller). It is never raised for ordinary data conditions.
type InvariantError struct {
	Component string // e.g. "MutationQueue", "LocalStore"
	Detail    string
	Err       error // wrapped sentinel, for errors.Is()
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("firedoc: %s: invariant violation: %s", e.Component, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}

	return ErrInvariant
}

// NewInvariantError builds an InvariantError for the given component.
func NewInvariantError(component, detail string) error {
	return &InvariantError{Component: component, Detail: detail, Err: ErrInvariant}
}
