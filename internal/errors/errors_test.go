package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsByCode(t *testing.T) {
	assert.True(t, New(CodeActionFailed, "").Recoverable())
	assert.False(t, New(CodeAppNotFound, "").Recoverable())
	assert.False(t, New(CodeUnknownAction, "").Recoverable())
	assert.False(t, New(CodeTimeout, "").Recoverable())
	assert.Equal(t, "application not found", New(CodeAppNotFound, "").Error())
}

func TestWithRecoverableOverrides(t *testing.T) {
	e := ActionFailed("bad params", false)
	assert.Equal(t, CodeActionFailed, e.Code())
	assert.False(t, e.Recoverable())

	e = New(CodeTimeout, "slow", WithRecoverable(true))
	assert.True(t, e.Recoverable())
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("step 2: %w", New(CodeTimeout, "text never appeared"))
	assert.True(t, stdErrors.Is(wrapped, ErrTimeout))
	assert.False(t, stdErrors.Is(wrapped, ErrNotFound))
	assert.Equal(t, CodeTimeout, CodeOf(wrapped))
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	foreign := stdErrors.New("xdotool exited 1")
	n := Normalize(foreign)
	require.NotNil(t, n)
	assert.Equal(t, CodeActionFailed, n.Code())
	assert.True(t, n.Recoverable())
	assert.ErrorIs(t, n, foreign)
	assert.Contains(t, n.Error(), "xdotool exited 1")

	canceled := Normalize(fmt.Errorf("sleep: %w", context.Canceled))
	assert.Equal(t, CodeCanceled, canceled.Code())
	assert.False(t, canceled.Recoverable())

	own := New(CodeAppNotFound, "no such app: foo")
	assert.Same(t, own, Normalize(fmt.Errorf("launch: %w", own)))
	assert.False(t, IsRecoverable(own))
}

func TestRegister(t *testing.T) {
	const code Code = "TEST_ONLY"
	Register(code, Attributes{Message: "test", Recoverable: true})
	assert.True(t, New(code, "").Recoverable())
	assert.Equal(t, "test", New(code, "").Message())
}
