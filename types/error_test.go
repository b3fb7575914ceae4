package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewError(ErrAgentFailure, "verify call failed")
	assert.Equal(t, "[AGENT_FAILURE] verify call failed", err.Error())

	cause := errors.New("connection reset")
	err = NewError(ErrTransient, "retrieval failed").WithCause(cause)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_Builders(t *testing.T) {
	err := NewError(ErrTransient, "upstream timeout").
		WithRetryable(true).
		WithHTTPStatus(504).
		WithStage("retrieval")

	assert.True(t, err.Retryable)
	assert.Equal(t, 504, err.HTTPStatus)
	assert.Equal(t, "retrieval", err.Stage)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewError(ErrTransient, "x").WithRetryable(true)))
	assert.False(t, IsRetryable(NewError(ErrAgentFailure, "x")))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrInvalidTransition, GetErrorCode(NewError(ErrInvalidTransition, "bad edge")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}
