package advertise

import (
	"testing"
	"time"

	"github.com/avdeccgo/avdecc/entity"
	"github.com/avdeccgo/avdecc/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var localMac = entity.MacAddress{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

func TestEnableAdvertisingSendsAvailableOnFirstTick(t *testing.T) {
	sm := New()
	now := time.Now()
	const entityID = entity.EntityID(1)
	sm.EnableAdvertising(entityID, 0, localMac, 10, now)

	out := sm.Tick(now, map[entity.EntityID]EntityFields{entityID: {}})
	require.Len(t, out, 1)
	assert.Equal(t, wire.AdpEntityAvailable, out[0].PDU.MessageType)
	assert.Equal(t, uint32(0), out[0].PDU.AvailableIndex)
}

func TestAvailableIndexPostIncrementsAcrossTicks(t *testing.T) {
	sm := New()
	now := time.Now()
	const entityID = entity.EntityID(1)
	sm.EnableAdvertising(entityID, 0, localMac, 1, now)

	fields := map[entity.EntityID]EntityFields{entityID: {}}
	first := sm.Tick(now, fields)
	require.Len(t, first, 1)
	assert.Equal(t, uint32(0), first[0].PDU.AvailableIndex)

	// Force the next re-announce to be due immediately.
	sm.SetEntityNeedsAdvertise(entityID, now)
	second := sm.Tick(now.Add(2*time.Second), fields)
	require.Len(t, second, 1)
	assert.Equal(t, uint32(1), second[0].PDU.AvailableIndex)
}

func TestTickDoesNothingBeforeNextAdvertiseTime(t *testing.T) {
	sm := New()
	now := time.Now()
	const entityID = entity.EntityID(1)
	sm.EnableAdvertising(entityID, 0, localMac, 31, now)

	fields := map[entity.EntityID]EntityFields{entityID: {}}
	first := sm.Tick(now, fields)
	require.Len(t, first, 1)

	soon := sm.Tick(now.Add(10*time.Millisecond), fields)
	assert.Empty(t, soon)
}

func TestDisableAdvertisingEmitsDepartingOncePerInterface(t *testing.T) {
	sm := New()
	now := time.Now()
	const entityID = entity.EntityID(1)
	sm.EnableAdvertising(entityID, 0, localMac, 10, now)
	sm.EnableAdvertising(entityID, 1, entity.MacAddress{0x02}, 10, now)

	out := sm.DisableAdvertising(entityID, EntityFields{})
	require.Len(t, out, 2)
	for _, o := range out {
		assert.Equal(t, wire.AdpEntityDeparting, o.PDU.MessageType)
	}

	// Already disabled: no further ticks produce PDUs.
	assert.Empty(t, sm.Tick(now.Add(time.Hour), map[entity.EntityID]EntityFields{entityID: {}}))
}

func TestOnEntityDiscoverMatchingEntityIDSchedulesReannounce(t *testing.T) {
	sm := New()
	now := time.Now()
	const entityID = entity.EntityID(42)
	sm.EnableAdvertising(entityID, 0, localMac, 31, now)
	sm.Tick(now, map[entity.EntityID]EntityFields{entityID: {}}) // consume the immediate announce

	sm.OnEntityDiscover(entityID, localMac, now)
	// The discover delay is at most 31*400ms, earlier than the regular
	// re-announce (at least 31*500ms after the first tick).
	out := sm.Tick(now.Add(31*400*time.Millisecond), map[entity.EntityID]EntityFields{entityID: {}})
	assert.NotEmpty(t, out)
}

func TestOnEntityDiscoverWrongDestMacIgnored(t *testing.T) {
	sm := New()
	now := time.Now()
	const entityID = entity.EntityID(42)
	sm.EnableAdvertising(entityID, 0, localMac, 31, now)
	sm.Tick(now, map[entity.EntityID]EntityFields{entityID: {}})

	sm.OnEntityDiscover(entityID, entity.MacAddress{0xFF}, now)
	out := sm.Tick(now.Add(time.Second), map[entity.EntityID]EntityFields{entityID: {}})
	assert.Empty(t, out)
}

func TestOnEntityDiscoverZeroEntityIDMatchesAll(t *testing.T) {
	sm := New()
	now := time.Now()
	const entityID = entity.EntityID(7)
	sm.EnableAdvertising(entityID, 0, localMac, 31, now)
	sm.Tick(now, map[entity.EntityID]EntityFields{entityID: {}})

	sm.OnEntityDiscover(entity.NullID, localMac, now)
	out := sm.Tick(now.Add(31*400*time.Millisecond), map[entity.EntityID]EntityFields{entityID: {}})
	assert.NotEmpty(t, out)
}
