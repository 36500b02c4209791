package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "tenant missing", NotFound("tenant missing").Error())

	wrapped := Wrap(errors.New("connection reset"), ErrCodeInternal, "load tenants")
	assert.Equal(t, "load tenants: connection reset", wrapped.Error())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
	}{
		{name: "not found", err: NotFound("x"), code: ErrCodeNotFound},
		{name: "not found formatted", err: NotFoundf("tenant %s", "t1"), code: ErrCodeNotFound},
		{name: "conflict", err: Conflict("x"), code: ErrCodeConflict},
		{name: "validation", err: Validation("x"), code: ErrCodeValidation},
		{name: "validation field", err: ValidationField("tenant_id", "required"), code: ErrCodeValidation},
		{name: "internal", err: Internal("x"), code: ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.code, GetCode(tt.err))
		})
	}

	assert.Equal(t, "tenant t1", NotFoundf("tenant %s", "t1").Message)
	assert.Equal(t, "tenant_id", ValidationField("tenant_id", "required").Field)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "x"))

	cause := errors.New("boom")
	err := Wrapf(cause, ErrCodeTimeout, "sync %d", 3)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "sync 3", err.Message)
	assert.True(t, IsTimeout(err))
}

func TestIsHelpersSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("get credential: %w", NotFound("tenant not found"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
	assert.False(t, IsValidation(err))
	assert.False(t, IsForeignKey(err))
	assert.False(t, IsInternal(err))
	assert.False(t, IsCanceled(err))
	assert.Equal(t, ErrorCode(""), GetCode(errors.New("plain")))
}
