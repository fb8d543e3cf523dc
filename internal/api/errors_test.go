package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError(t *testing.T) {
	err := NewInstanceNotFoundError("abc-123")
	assert.Equal(t, "instance abc-123 not found", err.Error())
	assert.True(t, IsNotFound(err))

	wrapped := fmt.Errorf("lookup failed: %w", err)
	assert.True(t, IsNotFound(wrapped))

	assert.False(t, IsNotFound(errors.New("plain error")))
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("credential", "reference t9 is inactive")
	assert.Contains(t, err.Error(), "credential")
	assert.Contains(t, err.Error(), "inactive")
	assert.True(t, IsConfigError(err))
	assert.False(t, IsConfigError(NewNotFoundError("template", "x")))

	bare := NewConfigError("", "empty document")
	assert.Equal(t, "invalid configuration: empty document", bare.Error())
}

func TestConnectErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewConnectError("bot-1", cause)

	assert.True(t, IsConnectError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bot-1")
}

func TestCrashErrorUnwrap(t *testing.T) {
	cause := errors.New("nil map write")
	err := NewCrashError("bot-2", cause)

	assert.True(t, IsCrashError(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsConnectError(err))
}
