package duties

import (
	"testing"

	"github.com/prysmaticlabs/duties-engine/config"
	"github.com/prysmaticlabs/duties-engine/primitives"
	"github.com/stretchr/testify/assert"
)

func TestActionTracker_PruneBefore(t *testing.T) {
	tr := NewActionTracker(config.Mainnet())
	tr.actions[10] = []trackedAction{{Slot: 10}}
	tr.actions[11] = []trackedAction{{Slot: 11}}
	tr.actions[12] = []trackedAction{{Slot: 12}}

	tr.pruneBefore(11)

	_, ok10 := tr.actions[10]
	_, ok11 := tr.actions[11]
	_, ok12 := tr.actions[12]
	assert.False(t, ok10)
	assert.True(t, ok11)
	assert.True(t, ok12)
}

func TestActionTracker_NextAttestationSlot_SkipsEmptyBatches(t *testing.T) {
	tr := NewActionTracker(config.Mainnet())
	tr.actions[5] = nil // resolved, but no attached validator had a duty that slot.
	tr.actions[6] = []trackedAction{{Slot: 6, ValidatorIdx: 3}}

	got, found := tr.NextAttestationSlot(0)
	assert.True(t, found)
	assert.Equal(t, primitives.Slot(6), got)
}

func TestActionTracker_NextAttestationSlot_NoneFound(t *testing.T) {
	tr := NewActionTracker(config.Mainnet())
	_, found := tr.NextAttestationSlot(0)
	assert.False(t, found)
}

func TestActionTracker_NextAttestationSlot_RespectsFromFloor(t *testing.T) {
	tr := NewActionTracker(config.Mainnet())
	tr.actions[3] = []trackedAction{{Slot: 3, ValidatorIdx: 1}}
	tr.actions[9] = []trackedAction{{Slot: 9, ValidatorIdx: 1}}

	got, found := tr.NextAttestationSlot(5)
	assert.True(t, found)
	assert.Equal(t, primitives.Slot(9), got)
}
