package testutil

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/ppp/pppctl/internal/errors"
)

// AssertErrorType checks if the error is of a specific type using errors.Is.
func AssertErrorType(t *testing.T, err, target error, _ ...any) bool {
	t.Helper()
	if !stderrors.Is(err, target) {
		return assert.Fail(t, "Error type mismatch", "Expected error type %T, got %T (%v)", target, err, err)
	}
	return true
}

// AssertAppErrorCode checks if the error has a specific error code.
func AssertAppErrorCode(t *testing.T, err error, expectedCode string, _ ...any) bool {
	t.Helper()
	code := apperrors.GetErrorCode(err)
	if code != expectedCode {
		return assert.Fail(t, "Error code mismatch", "Expected error code %q, got %q (%v)", expectedCode, code, err)
	}
	return true
}

// AssertAppErrorStatus checks if the error has a specific HTTP status code.
func AssertAppErrorStatus(t *testing.T, err error, expectedStatus int, _ ...any) bool {
	t.Helper()
	status := apperrors.GetStatusCode(err)
	if status != expectedStatus {
		return assert.Fail(t, "Status code mismatch", "Expected status %d, got %d", expectedStatus, status)
	}
	return true
}

// AssertValidationField checks that err is a validation error naming field.
func AssertValidationField(t *testing.T, err error, field string) bool {
	t.Helper()
	var verr *apperrors.ValidationError
	if !stderrors.As(err, &verr) {
		return assert.Fail(t, "Not a validation error", "Expected *ValidationError, got %T (%v)", err, err)
	}
	if _, ok := verr.Field(field); !ok {
		return assert.Fail(t, "Field not invalidated", "Expected field %q in %v", field, verr)
	}
	return true
}
