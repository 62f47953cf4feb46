package oaserrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContractError(t *testing.T) {
	t.Run("message with all fields", func(t *testing.T) {
		err := &ContractError{Source: "api.yaml", Message: "unsupported version", Cause: errors.New("2.0")}
		assert.Equal(t, "contract error in api.yaml: unsupported version: 2.0", err.Error())
	})

	t.Run("minimal message", func(t *testing.T) {
		assert.Equal(t, "contract error", (&ContractError{}).Error())
	})

	t.Run("Is and Unwrap", func(t *testing.T) {
		cause := errors.New("no such file")
		err := fmt.Errorf("wrapped: %w", &ContractError{Cause: cause})
		assert.ErrorIs(t, err, ErrContract)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, ErrConfig)
	})
}

func TestReferenceError(t *testing.T) {
	err := &ReferenceError{Ref: "#/components/schemas/Missing", Kind: "schemas", Message: "not registered"}
	assert.Equal(t, "reference error: #/components/schemas/Missing (schemas): not registered", err.Error())
	assert.ErrorIs(t, err, ErrReference)

	var refErr *ReferenceError
	assert.True(t, errors.As(fmt.Errorf("compile: %w", err), &refErr))
	assert.Equal(t, "schemas", refErr.Kind)
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Option: "maxBodySize", Value: -1, Message: "cannot be negative"}
	assert.Equal(t, "configuration error for maxBodySize (value: -1): cannot be negative", err.Error())
	assert.ErrorIs(t, err, ErrConfig)
	assert.Nil(t, err.Unwrap())
}

func TestRegistrationError(t *testing.T) {
	err := &RegistrationError{Kind: "handler", Key: "", Message: "operationId cannot be empty"}
	assert.Equal(t, "registration error for handler: operationId cannot be empty", err.Error())

	err = &RegistrationError{Kind: "security handler", Key: "apiKey", Message: "duplicate"}
	assert.Equal(t, `registration error for security handler "apiKey": duplicate`, err.Error())
	assert.ErrorIs(t, err, ErrRegistration)
}
