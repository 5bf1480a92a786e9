// Package chainview declares the interface the duty engine uses to read the
// fork-choice-selected chain view. The concrete implementation (fork choice,
// state cache, per-epoch shuffling) lives outside this module — spec.md §1
// lists the fork-choice / chain DAG as an external collaborator referenced
// only by interface.
package chainview

import (
	"context"

	types "github.com/prysmaticlabs/duties-engine/consensus-types"
	"github.com/prysmaticlabs/duties-engine/keys"
	"github.com/prysmaticlabs/duties-engine/primitives"
)

// BlockRef is an opaque handle to a block known to the chain view: its
// root, slot, and (lazily) the state built by advancing to it. The engine
// never inspects a BlockRef's internals directly; it passes it back into
// ChainView methods.
type BlockRef interface {
	Root() types.Root
	Slot() primitives.Slot
}

// Committee is the resolved set of validator indices assigned to vote in a
// given committee at a given slot.
type Committee struct {
	Index      primitives.CommitteeIndex
	Slot       primitives.Slot
	Validators []primitives.ValidatorIndex
}

// EpochRef is the read-only view of an epoch's committees, proposer
// schedule, and sync-committee membership, per spec.md §3.
type EpochRef struct {
	Epoch                primitives.Epoch
	CommitteesPerSlot    uint64
	Committees           []Committee // for the epoch's slots; each entry carries its own Slot and Index
	ProposerForSlot      map[primitives.Slot]primitives.ValidatorIndex
	ValidatorPubkeys     map[primitives.ValidatorIndex]keys.ValidatorKey
	CurrentSyncCommittee []primitives.ValidatorIndex
	NextSyncCommittee    []primitives.ValidatorIndex

	// JustifiedCheckpoint is the checkpoint the chain view considers
	// justified as of this epoch's head, per spec.md §4.3 step 5: "build
	// AttestationData (source = justified checkpoint, target = epoch
	// boundary root ...)". The attestation's Source is always this value,
	// never synthesized locally from the epoch number alone.
	JustifiedCheckpoint types.Checkpoint
}

// CommitteeForIndex returns the first committee in Committees whose Index is
// idx, if any. It does not filter by slot: when Committees holds several
// slots, the match is the first such committee in slice order.
func (e *EpochRef) CommitteeForIndex(idx primitives.CommitteeIndex) (Committee, bool) {
	for _, c := range e.Committees {
		if c.Index == idx {
			return c, true
		}
	}
	return Committee{}, false
}

// ChainView is the read interface into the fork-choice-selected chain,
// consumed by the duty engine per spec.md §6.
type ChainView interface {
	// Head returns the current fork-choice head.
	Head(ctx context.Context) (BlockRef, error)

	// ExpectBlock returns a channel that receives the new head once a block
	// for slot arrives and is imported, or is closed without a value if ctx
	// is canceled first. Used by the attestation-wait race in spec.md §4.1.
	ExpectBlock(ctx context.Context, slot primitives.Slot) <-chan BlockRef

	// AtSlot rewinds/advances a block reference to the view as of slot s
	// (spec.md §4.3 step 2: attestation_head = head.at_slot(slot)).
	AtSlot(ctx context.Context, head BlockRef, s primitives.Slot) (BlockRef, error)

	// GetProposer resolves the proposer for slot, given head.
	GetProposer(ctx context.Context, head BlockRef, slot primitives.Slot) (primitives.ValidatorIndex, bool, error)

	// GetEpochRef resolves committees/proposers/sync-committee membership
	// for (head, epoch), including the checkpoint the view currently
	// considers justified (EpochRef.JustifiedCheckpoint). preferCached
	// allows the caller to accept a slightly stale but already-computed
	// shuffling when latency matters more than absolute freshness (e.g.
	// ActionTracker lookahead).
	GetEpochRef(ctx context.Context, head BlockRef, epoch primitives.Epoch, preferCached bool) (*EpochRef, error)

	// ForkAtEpoch returns the fork version active at the given epoch.
	ForkAtEpoch(epoch primitives.Epoch) types.ForkVersion

	// ForkNameAtEpoch returns the fork tag active at the given epoch, used
	// to select the block/aggregate variant to build.
	ForkNameAtEpoch(epoch primitives.Epoch) types.Fork

	// GenesisValidatorsRoot returns the chain's genesis validators root.
	GenesisValidatorsRoot() types.Root

	// SyncCommitteeParticipants returns the validator indices making up the
	// sync committee active for the given slot.
	SyncCommitteeParticipants(ctx context.Context, slot primitives.Slot) ([]primitives.ValidatorIndex, error)

	// WithUpdatedState clones head's state, advances it to target, and
	// invokes fn with a StateHandle over the clone. Mirrors spec.md §6's
	// with_updated_state(cloned_state, head.at_slot(s)) { ... }: the clone
	// is released when fn returns.
	WithUpdatedState(ctx context.Context, head BlockRef, target primitives.Slot, fn func(StateHandle) error) error
}

// StateHandle is the narrow read/write surface into a cloned beacon state
// that block assembly needs. Real state-transition logic (processing slots,
// applying operations) lives in the state-transition package this engine
// orchestrates but does not implement (spec.md §1 Non-goals).
type StateHandle interface {
	Slot() primitives.Slot
	ValidatorCount() int
	AdvanceToSlot(ctx context.Context, slot primitives.Slot) error
	Eth1Data() (*types.Eth1Data, error)
}

// BlockProcessor stores a signed block into the chain DAG after it has
// already been broadcast, per spec.md §4.2 step 9: "Broadcast ... before
// inserting into the local chain store."
type BlockProcessor interface {
	StoreBlock(ctx context.Context, block *types.SignedBeaconBlock) (accepted bool, newHead BlockRef, err error)
}

// NodeHealth is an optional richer liveness signal a ChainView
// implementation may also satisfy, used to decide sync status beyond the
// simple slot-lag check. spec.md §9 flags the baseline "isSynced" check as a
// placeholder and leaves a better heuristic to the implementer; this
// interface is that hook. When a ChainView does not implement it, the
// engine falls back to the slot-lag check alone.
type NodeHealth interface {
	ConnectedPeers() int
	SecondsSinceLastBlock() float64
}

// BalanceFetcher is an optional interface a ChainView may satisfy to supply
// validator balances for the engine's balance-gauge sweep. When absent, the
// sweep is skipped.
type BalanceFetcher interface {
	HeadValidatorBalance(ctx context.Context, idx primitives.ValidatorIndex) (uint64, error)
}
