package vbox

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatePortEphemeral(t *testing.T) {
	port, err := AllocatePort(0)
	require.NoError(t, err)
	assert.Greater(t, port, 0)
}

func TestAllocatePortPreferredFallsBackOnConflict(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close() //nolint:errcheck

	held := l.Addr().(*net.TCPAddr).Port

	port, err := AllocatePort(held)
	require.NoError(t, err)
	assert.NotEqual(t, held, port)
	assert.Greater(t, port, 0)
}
