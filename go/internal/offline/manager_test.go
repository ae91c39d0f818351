package offline

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/astraea/go/internal/notify"
	"github.com/mcdev12/astraea/go/internal/storage"
)

func TestOfflineStatus(t *testing.T) {
	ctx := context.Background()
	client := newFakeDeliverer()
	client.failAt[0] = errServerDown
	events := &eventRecorder{}
	m := NewSyncManager(storage.NewMemoryStore(), client, events, clockwork.NewFakeClock(), DefaultConfig())

	status, err := m.OfflineStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, Status{Pending: 0, Online: true}, status)

	outcome, err := m.Submitter().SubmitScout(ctx, validReport())
	require.NoError(t, err)
	require.Equal(t, OutcomeQueued, outcome)

	m.HandleOffline(ctx)
	status, err = m.OfflineStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Pending)
	assert.False(t, status.Online)
	assert.Nil(t, status.LastSync)

	down := events.ofType(notify.EventConnectivityDown)
	require.Len(t, down, 1)
	assert.Equal(t, 1, down[0].Count)

	result, err := m.Coordinator().Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)

	m.HandleOnline(ctx)
	status, err = m.OfflineStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Pending)
	assert.True(t, status.Online)
	require.NotNil(t, status.LastSync)
	assert.Len(t, events.ofType(notify.EventConnectivityUp), 1)
}

func TestSyncManagerSharesTracker(t *testing.T) {
	m := NewSyncManager(storage.NewMemoryStore(), newFakeDeliverer(), nil, nil, DefaultConfig())
	assert.True(t, m.Tracker().HasChanged("matches", []int{1}))
	assert.False(t, m.Tracker().HasChanged("matches", []int{1}))
	assert.Same(t, m.Tracker(), m.Tracker())
}
