package vbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractExitCode(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   int
		wantOK bool
	}{
		{"no code", "VBoxManage: error: something went wrong", 0, false},
		{"session lock", "VBoxManage: error: Failed (0x80bb0007)", 0x80bb0007, true},
		{"lowercase", "err (0xdead)", 0xdead, true},
		{"uppercase", "err (0xDEAD)", 0xdead, true},
		{"first of multiple", "a (0x1) b (0x2)", 1, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			code, ok := extractExitCode(c.output)
			assert.Equal(t, c.wantOK, ok)
			if c.wantOK {
				assert.Equal(t, c.want, code)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	e := &Error{Kind: KindExec, Code: 0x80bb0007, Op: "startvm", Message: "locked"}
	assert.Contains(t, e.Error(), "startvm")
	assert.Contains(t, e.Error(), "ERR_EXEC")
	assert.Contains(t, e.Error(), "0x80bb0007")

	e2 := &Error{Kind: KindNotFound, Op: "get_vm_log", Message: "missing"}
	assert.NotContains(t, e2.Error(), "0x")
}

func TestErrorIsMatchesOnKindOnly(t *testing.T) {
	e := newErr(KindRegisterOnly, "run", 0, "done")
	assert.True(t, errors.Is(e, ErrRegisterOnly))
	assert.False(t, errors.Is(e, ErrTimeout))
}

func TestIsSessionLocked(t *testing.T) {
	locked := newErr(KindExec, "startvm", sessionLockCode, "busy")
	assert.True(t, IsSessionLocked(locked))

	other := newErr(KindExec, "startvm", 0x1, "other")
	assert.False(t, IsSessionLocked(other))

	assert.False(t, IsSessionLocked(errors.New("plain error")))
}
