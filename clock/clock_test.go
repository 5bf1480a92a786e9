package clock

import (
	"testing"
	"time"

	"github.com/prysmaticlabs/duties-engine/config"
	"github.com/prysmaticlabs/duties-engine/primitives"
	"github.com/stretchr/testify/assert"
)

func TestGenesisClock_SlotStartAndCurrentSlot(t *testing.T) {
	cfg := config.Mainnet()
	genesis := time.Now().Add(-100 * time.Second)
	c := &GenesisClock{genesis: genesis, cfg: cfg, ch: make(chan primitives.Slot), done: make(chan struct{})}

	assert.Equal(t, genesis, c.SlotStart(0))
	assert.Equal(t, genesis.Add(12*time.Second), c.SlotStart(1))

	// 100 seconds elapsed / 12 seconds per slot = slot 8.
	assert.Equal(t, primitives.Slot(8), c.CurrentSlot())
}

func TestGenesisClock_CurrentSlotBeforeGenesisIsZero(t *testing.T) {
	cfg := config.Mainnet()
	genesis := time.Now().Add(1 * time.Hour)
	c := &GenesisClock{genesis: genesis, cfg: cfg, ch: make(chan primitives.Slot), done: make(chan struct{})}
	assert.Equal(t, primitives.Slot(0), c.CurrentSlot())
}

func TestAttestationDeadline(t *testing.T) {
	cfg := config.Mainnet() // SecondsPerSlot=12, IntervalsPerSlot=3.
	slotStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := AttestationDeadline(cfg, slotStart)
	assert.Equal(t, slotStart.Add(4*time.Second), got)
}

func TestAggregateDeadline(t *testing.T) {
	cfg := config.Mainnet()
	slotStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := AggregateDeadline(cfg, slotStart)
	assert.Equal(t, slotStart.Add(8*time.Second), got)
}
