package duties

import (
	"testing"

	"github.com/prysmaticlabs/duties-engine/config"
	"github.com/prysmaticlabs/duties-engine/primitives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSubnetForAttestation(t *testing.T) {
	cfg := config.Mainnet()
	tests := []struct {
		name              string
		committeesPerSlot uint64
		slot              primitives.Slot
		committeeIndex    primitives.CommitteeIndex
		want              uint64
	}{
		{"slot 0 committee 0", 4, 0, 0, 0},
		{"slot 0 committee 3", 4, 0, 3, 3},
		{"second slot of epoch", 4, 1, 0, 4},
		{"wraps past subnet count", 64, 1, 0, 0},
		{"wraps with nonzero committee", 64, 1, 5, (64 + 5) % cfg.AttestationSubnetCount},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := computeSubnetForAttestation(cfg, tc.committeesPerSlot, tc.slot, tc.committeeIndex)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIsAggregator_ModuloOneAlwaysSelects(t *testing.T) {
	cfg := config.Mainnet()
	// A committee small enough that committee_size /
	// target_aggregators_per_committee (1/16) rounds the modulo down to zero, which must be clamped
	// to 1 (every member is an aggregator) rather than panicking on a
	// divide-by-zero.
	got := isAggregator(cfg, 1, []byte("any signature bytes"))
	assert.True(t, got)
}

func TestIsAggregator_Deterministic(t *testing.T) {
	cfg := config.Mainnet()
	sig := []byte("a fixed deterministic signature value")
	first := isAggregator(cfg, 128, sig)
	second := isAggregator(cfg, 128, sig)
	assert.Equal(t, first, second, "same inputs must yield the same selection outcome")
}

func TestIsSyncCommitteeAggregator_ModuloClampedToOne(t *testing.T) {
	cfg := config.Mainnet()
	cfg.SyncCommitteeSize = 4
	cfg.SyncCommitteeSubnetCount = 4
	cfg.TargetAggregatorsPerSyncSubcommittee = 16
	// subcommitteeSize = 1, modulo = 1/16 = 0, clamped to 1.
	assert.True(t, isSyncCommitteeAggregator(cfg, []byte("proof")))
}

func TestSyncCommitteePeriod(t *testing.T) {
	cfg := config.Mainnet()
	require.Equal(t, uint64(256), uint64(cfg.EpochsPerSyncCommitteePeriod))

	assert.Equal(t, uint64(0), syncCommitteePeriod(cfg, 0))
	assert.Equal(t, uint64(0), syncCommitteePeriod(cfg, 255))
	assert.Equal(t, uint64(1), syncCommitteePeriod(cfg, 256))
	assert.Equal(t, uint64(2), syncCommitteePeriod(cfg, 513))
}

func TestSubcommitteeIndex(t *testing.T) {
	cfg := config.Mainnet() // SyncCommitteeSize=512, SyncCommitteeSubnetCount=4 -> 128 per subcommittee.
	assert.Equal(t, uint64(0), subcommitteeIndex(cfg, 0))
	assert.Equal(t, uint64(0), subcommitteeIndex(cfg, 127))
	assert.Equal(t, uint64(1), subcommitteeIndex(cfg, 128))
	assert.Equal(t, uint64(3), subcommitteeIndex(cfg, 511))
}

func TestPositionInCommittee(t *testing.T) {
	committee := []primitives.ValidatorIndex{5, 9, 2, 7}
	assert.Equal(t, 0, positionInCommittee(committee, 5))
	assert.Equal(t, 2, positionInCommittee(committee, 2))
	assert.Equal(t, -1, positionInCommittee(committee, 42))
}

func TestResolveGraffiti(t *testing.T) {
	fallback := [32]byte{}
	copy(fallback[:], "default graffiti")

	out := resolveGraffiti("", fallback)
	assert.Equal(t, fallback, out)

	out = resolveGraffiti("validator override", fallback)
	var want [32]byte
	copy(want[:], "validator override")
	assert.Equal(t, want, out)
}
