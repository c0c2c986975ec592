package goerror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_StatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "server", err: NewServer(errors.New("boom")), want: http.StatusInternalServerError},
		{name: "invalid input", err: NewInvalidInput(errors.New("bad")), want: http.StatusBadRequest},
		{name: "invalid format", err: NewInvalidFormat(), want: http.StatusBadRequest},
		{name: "bad request", err: NewBusiness("Invalid OTP", CodeBadRequest), want: http.StatusBadRequest},
		{name: "forbidden", err: NewBusiness("nope", CodeForbidden), want: http.StatusForbidden},
		{name: "conflict", err: NewBusiness("used", CodeConflict), want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gerr *Error
			require.ErrorAs(t, tt.err, &gerr)
			assert.Equal(t, tt.want, gerr.StatusCode())
		})
	}
}

func TestError_Status(t *testing.T) {
	assert.Equal(t, "InvalidRequest", StatusOf(NewInvalidFormat()))
	assert.Equal(t, "InternalError", StatusOf(NewServer(errors.New("x"))))
	assert.Equal(t, "Unauthorized", StatusOf(NewBusiness("x", CodeForbidden)))
	assert.Equal(t, "Expired", StatusOf(NewBusiness("x", CodeBadRequest, WithStatus("Expired"))))
	assert.Equal(t, "Conflict", StatusOf(NewBusiness("x", CodeConflict)))
	assert.Equal(t, "Rejected", StatusOf(NewBusiness("x", CodeBadRequest)))
	assert.Equal(t, "InternalError", StatusOf(errors.New("plain")))
	assert.Empty(t, StatusOf(nil))
}

func TestNewServer_WithMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewServer(cause, WithMessage("Failed to store OTP"), WithStatus("StorageError"))

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Failed to store OTP", gerr.Msg())
	assert.Equal(t, "StorageError", gerr.Status())
	assert.ErrorIs(t, err, cause)
}

func TestNewInvalidInput_Fields(t *testing.T) {
	err := NewInvalidInput(nil, "email", "email is required")

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, map[string]string{"email": "email is required"}, gerr.Fields())

	err = NewInvalidInput(nil, "dangling")
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, CodeInvalidFormat, gerr.Code())
}

func TestReshape(t *testing.T) {
	base := NewInvalidInput(errors.New("bad"))
	shaped := Reshape(base, WithMessage("Email is required"))

	var gerr *Error
	require.ErrorAs(t, shaped, &gerr)
	assert.Equal(t, "Email is required", gerr.Msg())

	require.ErrorAs(t, base, &gerr)
	assert.Equal(t, "Validation error", gerr.Msg())

	plain := errors.New("plain")
	assert.Same(t, plain, Reshape(plain, WithMessage("x")))
}

func TestError_ErrorText(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	assert.Equal(t, "dial tcp: connection refused", NewServer(cause).Error())
	assert.Equal(t, "Invalid OTP", NewBusiness("Invalid OTP", CodeBadRequest).Error())
	assert.Equal(t, "Mismatch", NewBusiness("", CodeBadRequest, WithStatus("Mismatch")).Error())
}
