package vbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractVMState(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   string
	}{
		{"running", `name="job1"\nVMState="running"\nVMStateChangeTime="..."`, "running"},
		{"paused", `VMState="paused"`, "paused"},
		{"missing", "no state here", ""},
		{"unterminated", `VMState="running`, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, extractVMState(c.output))
		})
	}
}

func TestStateTokenClassification(t *testing.T) {
	assert.True(t, runningTokens["running"])
	assert.True(t, runningTokens["restoring"])
	assert.True(t, pausedTokens["paused"])
	assert.True(t, crashedTokens["aborted"])
	assert.True(t, crashedTokens["gurumeditation"])
	assert.False(t, runningTokens["poweroff"])
}
