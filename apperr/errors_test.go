package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Kind     string `json:"kind" validate:"omitempty,oneof=a b"`
}

func TestValidate(t *testing.T) {
	t.Run("Should report fields by json name", func(t *testing.T) {
		err := Validate(loginInput{Email: "nope", Kind: "c"})
		require.Error(t, err)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "must be a valid email", verr.Fields["email"])
		assert.Equal(t, "is required", verr.Fields["password"])
		assert.Equal(t, "must be one of: a b", verr.Fields["kind"])
		assert.True(t, IsValidation(err))
	})

	t.Run("Should pass valid input", func(t *testing.T) {
		assert.NoError(t, Validate(loginInput{Email: "a@b.co", Password: "x"}))
	})
}

func TestWrappers(t *testing.T) {
	assert.ErrorIs(t, NotFound("project", 4), ErrNotFound)
	assert.EqualError(t, NotFound("project", 4), "project 4: not found")
	assert.ErrorIs(t, InvalidReference("subtask", 7), ErrInvalidReference)
	assert.ErrorIs(t, InvalidReference("subtask", 7), ErrNotFound)
	assert.ErrorIs(t, Conflict("supervisor %d already assigned", 2), ErrConflict)
	assert.EqualError(t, NewValidationError("b", "x"), "validation failed: b: x")
}
