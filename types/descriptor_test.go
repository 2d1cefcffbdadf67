package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriptorIs64Bit(t *testing.T) {
	assert.True(t, (&Descriptor{OSTypeTag: "Linux_64"}).Is64Bit())
	assert.False(t, (&Descriptor{OSTypeTag: "Linux"}).Is64Bit())
	assert.False(t, (&Descriptor{}).Is64Bit())
}

func TestDescriptorCPUCountInt(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 1},
		{"whitespace", "  ", 1},
		{"zero", "0", 1},
		{"negative", "-3", 1},
		{"unparsable", "abc", 1},
		{"normal", "4", 4},
		{"padded", " 2 ", 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := &Descriptor{CPUCount: c.in}
			assert.Equal(t, c.want, d.CPUCountInt())
		})
	}
}

func TestDescriptorControllerModel(t *testing.T) {
	d := &Descriptor{DiskControllerType: DiskControllerSATA}
	assert.Equal(t, "IntelAhci", d.ControllerModel())

	d = &Descriptor{DiskControllerType: DiskControllerSCSI, DiskControllerModel: "Custom"}
	assert.Equal(t, "Custom", d.ControllerModel())
}

func TestDefaultControllerModel(t *testing.T) {
	assert.Equal(t, "IntelAhci", DefaultControllerModel(DiskControllerSATA))
	assert.Equal(t, "LsiLogic", DefaultControllerModel(DiskControllerSCSI))
	assert.Equal(t, "LsiLogicSAS", DefaultControllerModel(DiskControllerSAS))
	assert.Equal(t, "PIIX4", DefaultControllerModel(DiskControllerIDE))
	assert.Equal(t, "PIIX4", DefaultControllerModel(DiskControllerType("")))
}

func TestDescriptorNormalize(t *testing.T) {
	d := &Descriptor{}
	d.Normalize()
	assert.Equal(t, DiskControllerIDE, d.DiskControllerType)

	d = &Descriptor{DiskControllerType: DiskControllerSATA}
	d.Normalize()
	assert.Equal(t, DiskControllerSATA, d.DiskControllerType)
}
