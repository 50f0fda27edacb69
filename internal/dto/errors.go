package dto

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is returned when a strategy key or record cannot be decoded.
	ErrParse = errors.New("parse error")

	// ErrValidation is returned when a strategy violates a parameter invariant.
	ErrValidation = errors.New("validation error")

	// ErrSimulationFault marks a strategy run that panicked.
	ErrSimulationFault = errors.New("simulation fault")

	// ErrPersistence is returned when a registry snapshot cannot be loaded or saved.
	ErrPersistence = errors.New("persistence error")
)

type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

func NewParseError(input, format string, args ...interface{}) *ParseError {
	return &ParseError{Input: input, Reason: fmt.Sprintf(format, args...)}
}

type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid strategy: " + e.Reason
	}
	return fmt.Sprintf("invalid strategy field %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

type SimulationFault struct {
	Key   StrategyKey
	Cause interface{}
}

func (e *SimulationFault) Error() string {
	return fmt.Sprintf("simulation of %s failed: %v", e.Key, e.Cause)
}

func (e *SimulationFault) Unwrap() error {
	return ErrSimulationFault
}

type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s exclusion snapshot: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s exclusion snapshot %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
