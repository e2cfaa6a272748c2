package discovery

import (
	"testing"
	"time"

	"github.com/avdeccgo/avdecc/entity"
	"github.com/avdeccgo/avdecc/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSM(t *testing.T) *StateMachine {
	t.Helper()
	sm, err := New(time.Hour)
	require.NoError(t, err)
	return sm
}

func baseAdp(entityID entity.EntityID, validTime uint8, availableIndex uint32) wire.Adpdu {
	return wire.Adpdu{
		MessageType:    wire.AdpEntityAvailable,
		ValidTime:      validTime,
		EntityID:       entityID,
		AvailableIndex: availableIndex,
	}
}

func TestUnknownEntityEmitsOnline(t *testing.T) {
	sm := newTestSM(t)
	var got *RemoteEntity
	sm.OnRemoteEntityOnline = func(re RemoteEntity) { got = &re }

	sm.OnEntityAvailable(baseAdp(1, 10, 0), entity.MacAddress{1}, time.Now())
	require.NotNil(t, got)
	assert.Equal(t, entity.EntityID(1), got.EntityID)
}

func TestEntityNotReadyIsIgnored(t *testing.T) {
	sm := newTestSM(t)
	called := false
	sm.OnRemoteEntityOnline = func(RemoteEntity) { called = true }

	pdu := baseAdp(1, 10, 0)
	pdu.EntityCapabilities = entity.EntityCapEntityNotReady
	sm.OnEntityAvailable(pdu, entity.MacAddress{1}, time.Now())
	assert.False(t, called)
}

func TestMutableFieldChangeEmitsUpdatedNotOnline(t *testing.T) {
	sm := newTestSM(t)
	now := time.Now()
	var onlineCount, updatedCount int
	sm.OnRemoteEntityOnline = func(RemoteEntity) { onlineCount++ }
	sm.OnRemoteEntityUpdated = func(RemoteEntity) { updatedCount++ }

	sm.OnEntityAvailable(baseAdp(1, 10, 0), entity.MacAddress{1}, now)

	next := baseAdp(1, 10, 1)
	next.AssociationID = entity.ID(99)
	sm.OnEntityAvailable(next, entity.MacAddress{1}, now.Add(time.Second))

	assert.Equal(t, 1, onlineCount)
	assert.Equal(t, 1, updatedCount)
}

func TestImmutableFieldChangeSimulatesOfflineOnline(t *testing.T) {
	sm := newTestSM(t)
	now := time.Now()
	var events []string
	sm.OnRemoteEntityOnline = func(RemoteEntity) { events = append(events, "online") }
	sm.OnRemoteEntityOffline = func(entity.EntityID) { events = append(events, "offline") }

	sm.OnEntityAvailable(baseAdp(1, 10, 0), entity.MacAddress{1}, now)

	next := baseAdp(1, 10, 1)
	next.EntityModelID = entity.EntityModelID(123)
	sm.OnEntityAvailable(next, entity.MacAddress{1}, now.Add(time.Second))

	require.Equal(t, []string{"online", "offline", "online"}, events)
}

func TestNonIncreasingAvailableIndexSimulatesOfflineOnline(t *testing.T) {
	sm := newTestSM(t)
	now := time.Now()
	var events []string
	sm.OnRemoteEntityOnline = func(RemoteEntity) { events = append(events, "online") }
	sm.OnRemoteEntityOffline = func(entity.EntityID) { events = append(events, "offline") }

	sm.OnEntityAvailable(baseAdp(1, 10, 5), entity.MacAddress{1}, now)
	sm.OnEntityAvailable(baseAdp(1, 10, 5), entity.MacAddress{1}, now.Add(time.Second))

	require.Equal(t, []string{"online", "offline", "online"}, events)
}

func TestNoChangeEmitsNoNotification(t *testing.T) {
	sm := newTestSM(t)
	now := time.Now()
	calls := 0
	sm.OnRemoteEntityOnline = func(RemoteEntity) { calls++ }
	sm.OnRemoteEntityUpdated = func(RemoteEntity) { calls++ }

	sm.OnEntityAvailable(baseAdp(1, 10, 0), entity.MacAddress{1}, now)
	sm.OnEntityAvailable(baseAdp(1, 10, 1), entity.MacAddress{1}, now.Add(time.Second))

	assert.Equal(t, 1, calls)
}

func TestEntityDepartingRemovesAndEmitsOffline(t *testing.T) {
	sm := newTestSM(t)
	now := time.Now()
	var offlineID entity.EntityID
	sm.OnRemoteEntityOffline = func(id entity.EntityID) { offlineID = id }

	sm.OnEntityAvailable(baseAdp(1, 10, 0), entity.MacAddress{1}, now)
	sm.OnEntityDeparting(1)

	assert.Equal(t, entity.EntityID(1), offlineID)
	_, ok := sm.Lookup(1)
	assert.False(t, ok)
}

func TestTickExpiresLastInterfaceAndEmitsOffline(t *testing.T) {
	sm := newTestSM(t)
	now := time.Now()
	offline := false
	sm.OnRemoteEntityOffline = func(entity.EntityID) { offline = true }

	sm.OnEntityAvailable(baseAdp(1, 1, 0), entity.MacAddress{1}, now)
	sm.Tick(now.Add(3 * time.Second))

	assert.True(t, offline)
	_, ok := sm.Lookup(1)
	assert.False(t, ok)
}

func TestTickDoesNothingBeforeTimeout(t *testing.T) {
	sm := newTestSM(t)
	now := time.Now()
	offline := false
	sm.OnRemoteEntityOffline = func(entity.EntityID) { offline = true }

	sm.OnEntityAvailable(baseAdp(1, 31, 0), entity.MacAddress{1}, now)
	sm.Tick(now.Add(time.Second))

	assert.False(t, offline)
}

func TestCheckDiscoveryConsumesPendingFlagOnce(t *testing.T) {
	sm := newTestSM(t)
	sm.probePending.Store(true)
	assert.True(t, sm.CheckDiscovery())
	assert.False(t, sm.CheckDiscovery())
}

func TestCountReflectsKnownEntities(t *testing.T) {
	sm := newTestSM(t)
	assert.Equal(t, 0, sm.Count())

	now := time.Now()
	sm.OnEntityAvailable(baseAdp(1, 10, 0), entity.MacAddress{1}, now)
	assert.Equal(t, 1, sm.Count())

	sm.OnEntityAvailable(baseAdp(2, 10, 0), entity.MacAddress{1}, now)
	assert.Equal(t, 2, sm.Count())

	sm.OnEntityDeparting(entity.EntityID(1))
	assert.Equal(t, 1, sm.Count())
}
