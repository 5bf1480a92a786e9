package duties

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/prysmaticlabs/duties-engine/config"
	"github.com/prysmaticlabs/duties-engine/primitives"
)

// computeSubnetForAttestation implements compute_subnet_for_attestation
// from the consensus spec exactly, per spec.md §4.3's requirement that the
// formula match and not be cached across slots.
func computeSubnetForAttestation(cfg *config.EngineConfig, committeesPerSlot uint64, slot primitives.Slot, committeeIndex primitives.CommitteeIndex) uint64 {
	slotsSinceEpochStart := uint64(slot) % uint64(cfg.SlotsPerEpoch)
	committeesSinceEpochStart := committeesPerSlot * slotsSinceEpochStart
	return (committeesSinceEpochStart + uint64(committeeIndex)) % cfg.AttestationSubnetCount
}

// isAggregator implements is_aggregator: a validator is an aggregator for
// its committee iff the low 8 bytes of hash(slot_signature), taken as a
// little-endian integer, are divisible by the selection modulo.
func isAggregator(cfg *config.EngineConfig, committeeSize uint64, slotSignature []byte) bool {
	modulo := committeeSize / cfg.TargetAggregatorsPerCommittee
	if modulo == 0 {
		modulo = 1
	}
	return selectionHashMod(slotSignature, modulo) == 0
}

// isSyncCommitteeAggregator implements is_sync_committee_aggregator for a
// per-subcommittee selection proof.
func isSyncCommitteeAggregator(cfg *config.EngineConfig, proof []byte) bool {
	modulo := (cfg.SyncCommitteeSize / cfg.SyncCommitteeSubnetCount) / cfg.TargetAggregatorsPerSyncSubcommittee
	if modulo == 0 {
		modulo = 1
	}
	return selectionHashMod(proof, modulo) == 0
}

func selectionHashMod(sig []byte, modulo uint64) uint64 {
	h := sha256.Sum256(sig)
	return binary.LittleEndian.Uint64(h[:8]) % modulo
}

// syncCommitteePeriod returns the sync-committee period containing epoch.
func syncCommitteePeriod(cfg *config.EngineConfig, epoch primitives.Epoch) uint64 {
	return uint64(epoch) / uint64(cfg.EpochsPerSyncCommitteePeriod)
}

// subcommitteeIndex returns the subcommittee index of the membership at
// positionInCommittee within a sync committee of size cfg.SyncCommitteeSize
// (a validator may appear more than once in the committee, but here we're
// given a single membership position).
func subcommitteeIndex(cfg *config.EngineConfig, positionInCommittee uint64) uint64 {
	subcommitteeSize := cfg.SyncCommitteeSize / cfg.SyncCommitteeSubnetCount
	return positionInCommittee / subcommitteeSize
}
