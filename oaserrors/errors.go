// Package oaserrors provides structured error types for oasrouter.
//
// Setup-time failures (loading a contract, compiling a schema reference,
// configuring a router, registering handlers) are reported as the types in
// this package so callers can branch with errors.Is and errors.As:
//
//	c, err := contract.Load(ctx, contract.WithFilePath("api.yaml"))
//	if errors.Is(err, oaserrors.ErrContract) {
//	    // missing file, unparsable document or unsupported version
//	}
//
// Request-time failures never surface as Go errors; the router turns them
// into HTTP responses.
package oaserrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrContract indicates the contract could not be loaded.
	ErrContract = errors.New("contract error")

	// ErrReference indicates a $ref could not be resolved.
	ErrReference = errors.New("reference error")

	// ErrConfig indicates an invalid option value.
	ErrConfig = errors.New("configuration error")

	// ErrRegistration indicates an invalid handler registration.
	ErrRegistration = errors.New("registration error")

	// ErrValidation indicates a value did not satisfy its schema.
	ErrValidation = errors.New("validation error")
)

// ContractError represents a failure to load an OpenAPI contract.
type ContractError struct {
	// Source is the file path or a description of the in-memory input
	Source string
	// Message describes the failure
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ContractError) Error() string {
	msg := "contract error"
	if e.Source != "" {
		msg += " in " + e.Source
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ContractError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ContractError) Is(target error) bool {
	return target == ErrContract
}

// ReferenceError represents a $ref that does not resolve inside the contract.
type ReferenceError struct {
	// Ref is the reference string as written in the contract
	Ref string
	// Kind is the component section the ref points into ("schemas", "parameters", ...)
	Kind string
	// Message provides additional context
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ReferenceError) Error() string {
	msg := "reference error"
	if e.Ref != "" {
		msg += ": " + e.Ref
	}
	if e.Kind != "" {
		msg += " (" + e.Kind + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ReferenceError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ReferenceError) Is(target error) bool {
	return target == ErrReference
}

// ConfigError represents an invalid configuration or input.
type ConfigError struct {
	// Option is the name of the problematic configuration option
	Option string
	// Value is the invalid value that was provided (may be nil)
	Value any
	// Message describes the configuration error
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Option != "" {
		msg += " for " + e.Option
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// RegistrationError represents a rejected handler registration, such as an
// empty operationId or security scheme name.
type RegistrationError struct {
	// Kind is what was being registered ("handler", "security handler")
	Kind string
	// Key is the operationId or scheme name that was rejected
	Key string
	// Message describes why the registration was rejected
	Message string
}

// Error returns a human-readable error message.
func (e *RegistrationError) Error() string {
	msg := "registration error"
	if e.Kind != "" {
		msg += " for " + e.Kind
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" %q", e.Key)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is reports whether target matches this error type.
func (e *RegistrationError) Is(target error) bool {
	return target == ErrRegistration
}
