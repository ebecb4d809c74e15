package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation", NewValidationError("bad input", nil), "VALIDATION_FAILED", http.StatusBadRequest},
		{"not found", NewNotFound("ticket", nil), "NOT_FOUND", http.StatusNotFound},
		{"unauthorized", NewUnauthorized("no token"), "UNAUTHORIZED", http.StatusUnauthorized},
		{"forbidden", NewForbidden("not staff"), "FORBIDDEN", http.StatusForbidden},
		{"collaborator", NewCollaboratorError("venue creation", errors.New("boom")), "COLLABORATOR_FAILED", http.StatusBadGateway},
		{"storage", NewStorageError(errors.New("disk full")), "STORAGE_FAILED", http.StatusInternalServerError},
		{"internal", NewInternalError(errors.New("oops")), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var domainErr *DomainError
			require.True(t, errors.As(tc.err, &domainErr))
			assert.Equal(t, tc.code, domainErr.Code)
			assert.Equal(t, tc.status, domainErr.HTTPStatus)
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsValidation(NewValidationError("x", nil)))
	assert.False(t, IsValidation(NewForbidden("x")))

	assert.True(t, IsNotFound(NewNotFound("ticket", nil)))
	assert.True(t, IsForbidden(NewForbidden("x")))
	assert.True(t, IsStorage(NewStorageError(errors.New("x"))))

	// Predicates see through wrapping.
	wrapped := fmt.Errorf("save ticket: %w", NewStorageError(errors.New("disk full")))
	assert.True(t, IsStorage(wrapped))
	assert.False(t, IsStorage(errors.New("plain")))
}

func TestToDomainError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})

	t.Run("domain errors pass through", func(t *testing.T) {
		err := NewForbidden("not staff")
		domainErr := ToDomainError(err)
		assert.Equal(t, "FORBIDDEN", domainErr.Code)
	})

	t.Run("unknown errors become internal", func(t *testing.T) {
		domainErr := ToDomainError(errors.New("mystery"))
		assert.Equal(t, "INTERNAL_ERROR", domainErr.Code)
		assert.Equal(t, http.StatusInternalServerError, domainErr.HTTPStatus)
	})
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewCollaboratorError("role lookup", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "role lookup")
}
