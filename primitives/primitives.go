// Package primitives defines the monotonic integer types shared across the
// duties engine: slots, epochs, validator and committee indices.
package primitives

import "fmt"

// Slot is a monotonically increasing beacon-chain slot number.
type Slot uint64

// Epoch is a monotonically increasing beacon-chain epoch number.
type Epoch uint64

// ValidatorIndex identifies a validator's position in the beacon state's
// validator registry.
type ValidatorIndex uint64

// CommitteeIndex identifies a committee within a slot.
type CommitteeIndex uint64

// SubnetID identifies a gossip subnet (attestation or sync-committee).
type SubnetID uint64

// ToEpoch returns the epoch containing s, given slotsPerEpoch.
func (s Slot) ToEpoch(slotsPerEpoch Slot) Epoch {
	return Epoch(uint64(s) / uint64(slotsPerEpoch))
}

// StartSlot returns the first slot of epoch e.
func (e Epoch) StartSlot(slotsPerEpoch Slot) Slot {
	return Slot(uint64(e) * uint64(slotsPerEpoch))
}

func (s Slot) String() string {
	return fmt.Sprintf("%d", uint64(s))
}

func (e Epoch) String() string {
	return fmt.Sprintf("%d", uint64(e))
}
