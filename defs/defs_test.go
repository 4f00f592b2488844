package defs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverable(t *testing.T) {
	assert.True(t, Ok.Recoverable())
	assert.True(t, EINVAL.Recoverable())
	assert.True(t, ENOMEM.Recoverable())
	assert.True(t, EEOF.Recoverable())
	assert.True(t, EWRITEPROTECT.Recoverable())
	assert.True(t, EUNSUCCESSFUL.Recoverable())
}

func TestBugCheckPanics(t *testing.T) {
	assert.PanicsWithValue(t, "bug_check: stale handle 7", func() {
		BugCheck("stale handle %d", 7)
	})
}

func TestString(t *testing.T) {
	assert.Equal(t, "ok", Ok.String())
	assert.NotEmpty(t, EINVAL.String())
}
