package janitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLocker struct {
	lockCalls   int
	unlockCalls int
}

func (l *noopLocker) Lock(ctx context.Context) error {
	l.lockCalls++
	return nil
}

func (l *noopLocker) Unlock(ctx context.Context) error {
	l.unlockCalls++
	return nil
}

func (l *noopLocker) TryLock(ctx context.Context) (bool, error) {
	return true, nil
}

type fakeState struct {
	collected []string
}

type fakeModule struct {
	name       string
	candidates []Candidate
	resolveErr error
	collectErr error
}

func (m *fakeModule) Name() string { return m.name }

func (m *fakeModule) Resolve(ctx context.Context, state *fakeState) ([]Candidate, error) {
	return m.candidates, m.resolveErr
}

func (m *fakeModule) Collect(ctx context.Context, state *fakeState, c Candidate) error {
	if m.collectErr != nil {
		return m.collectErr
	}
	state.collected = append(state.collected, c.ID)
	return nil
}

func TestOrchestratorCollectsAllWhenNoneActive(t *testing.T) {
	locker := &noopLocker{}
	o := New[*fakeState](locker)
	o.Register(&fakeModule{name: "snapshots", candidates: []Candidate{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	}})

	state := &fakeState{}
	err := o.Run(context.Background(), state, func(c Candidate) (bool, bool) {
		return true, false
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, state.collected)
	assert.Equal(t, 1, locker.lockCalls)
	assert.Equal(t, 1, locker.unlockCalls)
}

func TestOrchestratorStopsAtFirstActiveCandidate(t *testing.T) {
	locker := &noopLocker{}
	o := New[*fakeState](locker)
	o.Register(&fakeModule{name: "snapshots", candidates: []Candidate{
		{ID: "a"}, {ID: "b", Active: true}, {ID: "c"},
	}})

	state := &fakeState{}
	keep := func(c Candidate) (collect bool, stop bool) {
		if c.Active {
			return false, true
		}
		return true, false
	}
	err := o.Run(context.Background(), state, keep)

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, state.collected)
}

func TestOrchestratorDeleteActiveStillCollectsThroughIt(t *testing.T) {
	locker := &noopLocker{}
	o := New[*fakeState](locker)
	o.Register(&fakeModule{name: "snapshots", candidates: []Candidate{
		{ID: "a"}, {ID: "b", Active: true}, {ID: "c"},
	}})

	state := &fakeState{}
	deleteActive := true
	keep := func(c Candidate) (collect bool, stop bool) {
		if c.Active && !deleteActive {
			return false, true
		}
		return true, false
	}
	err := o.Run(context.Background(), state, keep)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, state.collected)
}

func TestOrchestratorAbortsOnResolveError(t *testing.T) {
	locker := &noopLocker{}
	o := New[*fakeState](locker)
	boom := assert.AnError
	o.Register(&fakeModule{name: "snapshots", resolveErr: boom})

	state := &fakeState{}
	err := o.Run(context.Background(), state, nil)

	require.Error(t, err)
	assert.Equal(t, 1, locker.unlockCalls)
}

func TestOrchestratorAbortsOnCollectErrorAndStopsLaterModules(t *testing.T) {
	locker := &noopLocker{}
	o := New[*fakeState](locker)
	boom := assert.AnError
	o.Register(&fakeModule{name: "snapshots", candidates: []Candidate{{ID: "a"}}, collectErr: boom})
	second := &fakeModule{name: "disks", candidates: []Candidate{{ID: "z"}}}
	o.Register(second)

	state := &fakeState{}
	err := o.Run(context.Background(), state, func(c Candidate) (bool, bool) { return true, false })

	require.Error(t, err)
	assert.Empty(t, state.collected)
}

func TestOrchestratorNilKeepCollectsEverything(t *testing.T) {
	locker := &noopLocker{}
	o := New[*fakeState](locker)
	o.Register(&fakeModule{name: "snapshots", candidates: []Candidate{{ID: "a"}, {ID: "b"}}})

	state := &fakeState{}
	err := o.Run(context.Background(), state, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, state.collected)
}
