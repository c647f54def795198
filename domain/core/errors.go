package core

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - centralized error definitions
var (
	// Fatal to the stage that produced them
	ErrParse               = errors.New("ontology parse error")
	ErrInput               = errors.New("invalid input")
	ErrNumericDisagreement = errors.New("significance engines disagree")

	// Lookup errors
	ErrNotFound    = errors.New("resource not found")
	ErrUnknownTerm = fmt.Errorf("%w: term", ErrNotFound)
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)
)

// ParseError identifies the stanza that stopped graph construction.
type ParseError struct {
	Stanza int    // 1-based ordinal of the stanza in the source
	Line   int    // line where the stanza starts
	TermID string // empty when the id tag itself is missing
	Tag    string
	Reason string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stanza %d (line %d)", e.Stanza, e.Line)
	if e.TermID != "" {
		fmt.Fprintf(&b, " %s", e.TermID)
	}
	if e.Tag != "" {
		fmt.Fprintf(&b, " tag %q", e.Tag)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

func (e *ParseError) Unwrap() error { return ErrParse }

// InputError reports unusable caller input: empty item sets, zero overlap with the
// association mapping, or association files where no row could be read.
type InputError struct {
	Entity string
	Reason string
}

func (e *InputError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%v: %s", ErrInput, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrInput, e.Entity, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInput }

// NumericDisagreementError is an internal consistency fault between two p-value engines.
type NumericDisagreementError struct {
	TermID    string
	Engines   [2]string
	Values    [2]float64
	Tolerance float64
}

func (e *NumericDisagreementError) Error() string {
	return fmt.Sprintf("%v for %s: %s=%g %s=%g (tolerance %g)",
		ErrNumericDisagreement, e.TermID, e.Engines[0], e.Values[0], e.Engines[1], e.Values[1], e.Tolerance)
}

func (e *NumericDisagreementError) Unwrap() error { return ErrNumericDisagreement }

// Error constructors with context
func NewInputError(entity, format string, args ...interface{}) error {
	return &InputError{Entity: entity, Reason: fmt.Sprintf(format, args...)}
}

func NewUnknownTermError(id string) error {
	return fmt.Errorf("%w %s", ErrUnknownTerm, id)
}

func NewRunNotFoundError(id string) error {
	return fmt.Errorf("%w with id %s", ErrRunNotFound, id)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsFatal(err error) bool {
	return errors.Is(err, ErrParse) ||
		errors.Is(err, ErrInput) ||
		errors.Is(err, ErrNumericDisagreement)
}
