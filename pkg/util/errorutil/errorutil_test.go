package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsCarryStatus(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{NewValidationError("bad", nil), CodeValidation, http.StatusBadRequest},
		{NewNotFound("incident", nil), CodeNotFound, http.StatusNotFound},
		{NewUnauthorized("no"), CodeUnauthorized, http.StatusUnauthorized},
		{NewForbidden("no"), CodeForbidden, http.StatusForbidden},
		{NewInvalidTransition("no", nil), CodeInvalidTransition, http.StatusConflict},
		{NewNoTechnicianAvailable(nil), CodeNoTechnician, http.StatusConflict},
		{NewAlreadyAssigned(nil), CodeAlreadyAssigned, http.StatusConflict},
		{NewMaxLevelReached(nil), CodeMaxLevelReached, http.StatusConflict},
		{NewConcurrencyConflict(nil, nil), CodeConcurrencyConflict, http.StatusConflict},
		{NewInternalError(errors.New("boom")), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			domainErr := ToDomainError(tc.err)
			assert.Equal(t, tc.code, domainErr.Code)
			assert.Equal(t, tc.status, domainErr.HTTPStatus)
			assert.True(t, HasCode(tc.err, tc.code))
		})
	}
}

func TestWrappedDomainErrorsAreFound(t *testing.T) {
	wrapped := fmt.Errorf("assign: %w", NewNoTechnicianAvailable(map[string]any{"support_level": 2}))

	assert.True(t, HasCode(wrapped, CodeNoTechnician))
	assert.False(t, HasCode(wrapped, CodeNotFound))
	assert.Equal(t, 2, ToDomainError(wrapped).Details["support_level"])
}

func TestUnknownErrorsBecomeInternal(t *testing.T) {
	cause := errors.New("socket closed")
	domainErr := ToDomainError(cause)

	assert.Equal(t, CodeInternal, domainErr.Code)
	assert.ErrorIs(t, domainErr, cause)
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestOnlyConflictsAreRetryable(t *testing.T) {
	assert.True(t, ToDomainError(NewConcurrencyConflict(nil, nil)).Retryable())
	assert.False(t, ToDomainError(NewMaxLevelReached(nil)).Retryable())
	assert.Equal(t, map[string]any{}, ToDomainError(NewNotFound("x", nil)).Details)
}
