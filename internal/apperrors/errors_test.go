package apperrors_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"keyflow-backend/internal/apperrors"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperrors.Validation("bad input"), http.StatusBadRequest},
		{apperrors.Validationf("bad %s", "field"), http.StatusBadRequest},
		{apperrors.Authorization("not yours"), http.StatusForbidden},
		{apperrors.NotFound("key not found"), http.StatusNotFound},
		{apperrors.NotFoundf("key %s not found", "k1"), http.StatusNotFound},
		{apperrors.Conflict("already checked out"), http.StatusConflict},
		{apperrors.Conflictf("key %s is out", "k1"), http.StatusConflict},
		{errors.New("pool exhausted"), http.StatusInternalServerError},
		{nil, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, apperrors.HTTPStatus(tc.err), "err=%v", tc.err)
	}
}

func TestHTTPStatus_WrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("checkout failed: %w", apperrors.Conflict("key is already checked out"))
	assert.Equal(t, http.StatusConflict, apperrors.HTTPStatus(wrapped))
	assert.True(t, apperrors.IsConflict(wrapped))
	assert.False(t, apperrors.IsValidation(wrapped))
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, apperrors.IsValidation(apperrors.Validation("x")))
	assert.True(t, apperrors.IsConflict(apperrors.Conflict("x")))
	assert.True(t, apperrors.IsAuthorization(apperrors.Authorization("x")))
	assert.True(t, apperrors.IsNotFound(apperrors.NotFound("x")))

	plain := errors.New("x")
	assert.False(t, apperrors.IsValidation(plain))
	assert.False(t, apperrors.IsConflict(plain))
	assert.False(t, apperrors.IsAuthorization(plain))
	assert.False(t, apperrors.IsNotFound(plain))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "key not found", apperrors.NotFound("key not found").Error())
	assert.Equal(t, "bay must be between 1 and 8", apperrors.Validationf("bay must be between 1 and %d", 8).Error())
}
