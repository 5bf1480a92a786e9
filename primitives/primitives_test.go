package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlot_ToEpoch(t *testing.T) {
	assert.Equal(t, Epoch(0), Slot(0).ToEpoch(32))
	assert.Equal(t, Epoch(0), Slot(31).ToEpoch(32))
	assert.Equal(t, Epoch(1), Slot(32).ToEpoch(32))
	assert.Equal(t, Epoch(3), Slot(100).ToEpoch(32))
}

func TestEpoch_StartSlot(t *testing.T) {
	assert.Equal(t, Slot(0), Epoch(0).StartSlot(32))
	assert.Equal(t, Slot(32), Epoch(1).StartSlot(32))
	assert.Equal(t, Slot(320), Epoch(10).StartSlot(32))
}

func TestSlot_String(t *testing.T) {
	assert.Equal(t, "42", Slot(42).String())
}

func TestEpoch_String(t *testing.T) {
	assert.Equal(t, "7", Epoch(7).String())
}
