package response

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOKWithData(t *testing.T) {
	resp := StatusOKWithData(map[string]string{"plan": "monthly"})

	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.NotNil(t, resp.Data)
}

func TestError(t *testing.T) {
	resp := Error("internal error")

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "internal error", resp.Error)
}

func TestValidationError(t *testing.T) {
	type request struct {
		Content string `validate:"required"`
		Persona string `validate:"required,alphanum"`
	}

	err := validator.New().Struct(request{Persona: "group chat"})
	require.Error(t, err)

	var validateErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validateErrs)

	resp := ValidationError(validateErrs)
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Content is a required field")
	assert.Contains(t, resp.Error, "field Persona can contain only numbers and letters")
}
