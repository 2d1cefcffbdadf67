package json

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vboxwrapper/vboxwrapper/lock/flock"
)

type cacheData struct {
	Ports       map[string]int
	HostPort    int
	initialized bool
}

func (c *cacheData) Init() {
	if c.Ports == nil {
		c.Ports = make(map[string]int)
	}
	c.initialized = true
}

func newStore(t *testing.T) *Store[cacheData] {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	return New[cacheData](path, flock.New(path+".lock"))
}

func TestStoreUpdateThenWithRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(d *cacheData) error {
		d.HostPort = 5900
		d.Ports["nat"] = 22
		return nil
	})
	require.NoError(t, err)

	err = s.With(ctx, func(d *cacheData) error {
		assert.Equal(t, 5900, d.HostPort)
		assert.Equal(t, 22, d.Ports["nat"])
		assert.True(t, d.initialized)
		return nil
	})
	require.NoError(t, err)
}

func TestStoreWithOnMissingFileUsesZeroValueAndInit(t *testing.T) {
	s := newStore(t)
	err := s.With(context.Background(), func(d *cacheData) error {
		assert.Equal(t, 0, d.HostPort)
		assert.NotNil(t, d.Ports)
		assert.True(t, d.initialized)
		return nil
	})
	require.NoError(t, err)
}

func TestStoreUpdateDoesNotPersistOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	boom := assert.AnError

	err := s.Update(ctx, func(d *cacheData) error {
		d.HostPort = 1234
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.With(ctx, func(d *cacheData) error {
		assert.Equal(t, 0, d.HostPort)
		return nil
	})
	require.NoError(t, err)
}
