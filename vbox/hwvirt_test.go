package vbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldDisableHWVirt(t *testing.T) {
	cases := []struct {
		name      string
		features  HostFeatures
		version   string
		prevFail  bool
		vCPUs     int
		want      bool
	}{
		{"no hw acceleration at all", HostFeatures{}, "7.0.0", false, 2, true},
		{"nested hypervisor", HostFeatures{VMX: true, Hypervisor: true}, "7.0.0", false, 2, true},
		{"new runtime, no previous failure", HostFeatures{VMX: true}, "7.3.0", false, 2, false},
		{"new runtime, previous failure", HostFeatures{VMX: true}, "7.3.0", true, 2, true},
		{"old runtime, single vCPU", HostFeatures{SVM: true}, "7.2.0", false, 1, true},
		{"old runtime, multi vCPU", HostFeatures{SVM: true}, "7.2.0", false, 4, false},
		{"exactly the gate version, single vCPU", HostFeatures{VMX: true}, "7.2.16", false, 1, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ShouldDisableHWVirt(c.features, c.version, c.prevFail, c.vCPUs)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestRuntimeNewerThan(t *testing.T) {
	assert.True(t, RuntimeNewerThan("7.3.0", 7, 2, 16))
	assert.True(t, RuntimeNewerThan("7.2.17", 7, 2, 16))
	assert.False(t, RuntimeNewerThan("7.2.16", 7, 2, 16))
	assert.False(t, RuntimeNewerThan("7.2.15", 7, 2, 16))
	assert.False(t, RuntimeNewerThan("6.9.9", 7, 2, 16))
	assert.False(t, RuntimeNewerThan("", 7, 2, 16))
}
