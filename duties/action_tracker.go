package duties

import (
	"context"
	"sync"

	"github.com/prysmaticlabs/duties-engine/config"
	types "github.com/prysmaticlabs/duties-engine/consensus-types"
	"github.com/prysmaticlabs/duties-engine/primitives"
	"github.com/prysmaticlabs/duties-engine/validator"
)

// trackedAction is one (slot, subnet, validator) attestation duty resolved
// ahead of time, per spec.md §4.8.
type trackedAction struct {
	Slot          primitives.Slot
	Subnet        uint64
	ValidatorIdx  primitives.ValidatorIndex
	IsAggregator  bool
}

// ActionTracker pre-resolves subnet subscriptions and aggregator selections
// for the upcoming lookahead window, so subnet subscription and peer
// discovery can happen ahead of the slot that needs them, per spec.md §4.8.
type ActionTracker struct {
	cfg *config.EngineConfig

	mu      sync.Mutex
	actions map[primitives.Slot][]trackedAction
}

// NewActionTracker returns an empty tracker.
func NewActionTracker(cfg *config.EngineConfig) *ActionTracker {
	return &ActionTracker{cfg: cfg, actions: make(map[primitives.Slot][]trackedAction)}
}

// RegisterDuties resolves committees for every slot in
// [wallSlot, wallSlot+SUBNET_SUBSCRIPTION_LEAD_TIME_SLOTS) and records each
// attached member's subnet and aggregator status, per spec.md §4.8.
func (t *ActionTracker) RegisterDuties(ctx context.Context, e *DutyEngine, wallSlot primitives.Slot) error {
	head, err := e.chain.Head(ctx)
	if err != nil {
		return err
	}

	for s := wallSlot; s < wallSlot+t.cfg.SubnetSubscriptionLeadTimeSlots; s++ {
		epoch := s.ToEpoch(t.cfg.SlotsPerEpoch)
		ref, err := e.chain.GetEpochRef(ctx, head, epoch, true)
		if err != nil || ref == nil {
			continue
		}

		fork := e.chain.ForkAtEpoch(epoch)
		genesisRoot := e.chain.GenesisValidatorsRoot()
		slotRoot := types.ComputeSigningRoot(types.DomainSelectionProof, fork, genesisRoot, uint64(s), types.Root{})

		var batch []trackedAction
		for _, committee := range ref.Committees {
			if committee.Slot != s {
				continue
			}
			subnet := computeSubnetForAttestation(t.cfg, ref.CommitteesPerSlot, s, committee.Index)
			for _, idx := range committee.Validators {
				pubkey, ok := ref.ValidatorPubkeys[idx]
				if !ok {
					continue
				}
				handle, ok := e.registry.Get(pubkey)
				if !ok {
					continue
				}
				isAgg := t.resolveIsAggregator(ctx, handle, slotRoot, uint64(len(committee.Validators)))
				batch = append(batch, trackedAction{
					Slot:         s,
					Subnet:       subnet,
					ValidatorIdx: idx,
					IsAggregator: isAgg,
				})
			}
		}

		t.mu.Lock()
		t.actions[s] = batch
		t.mu.Unlock()
	}

	t.pruneBefore(wallSlot)
	return nil
}

// resolveIsAggregator requests a slot signature from the validator's signer
// and evaluates the aggregator-selection predicate against it. Signer
// failures are treated as "not an aggregator" rather than aborting
// registration for the rest of the slot's committee.
func (t *ActionTracker) resolveIsAggregator(ctx context.Context, handle *validator.Handle, slotRoot types.Root, committeeSize uint64) bool {
	sig, err := handle.Signer.Sign(ctx, validator.KindAggregationSlot, slotRoot)
	if err != nil {
		return false
	}
	return isAggregator(t.cfg, committeeSize, sig.Marshal())
}

// pruneBefore discards tracked batches for slots before floor, bounding the
// tracker's memory use to the lookahead window.
func (t *ActionTracker) pruneBefore(floor primitives.Slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for s := range t.actions {
		if s < floor {
			delete(t.actions, s)
		}
	}
}

// NextAttestationSlot returns the earliest tracked slot at or after from
// that has at least one recorded attestation duty, per spec.md §4.8.
func (t *ActionTracker) NextAttestationSlot(from primitives.Slot) (primitives.Slot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	best, found := primitives.Slot(0), false
	for s, batch := range t.actions {
		if s < from || len(batch) == 0 {
			continue
		}
		if !found || s < best {
			best, found = s, true
		}
	}
	return best, found
}

// NextProposalSlot returns the earliest slot at or after from for which the
// given validator is the resolved proposer. Proposer resolution is not part
// of the tracked attestation batches, so this walks the chain view directly
// for the lookahead window only.
func (t *ActionTracker) NextProposalSlot(ctx context.Context, e *DutyEngine, from primitives.Slot, idx primitives.ValidatorIndex) (primitives.Slot, bool) {
	head, err := e.chain.Head(ctx)
	if err != nil {
		return 0, false
	}
	for s := from; s < from+t.cfg.SubnetSubscriptionLeadTimeSlots; s++ {
		proposer, attached, err := e.chain.GetProposer(ctx, head, s)
		if err != nil || !attached {
			continue
		}
		if proposer == idx {
			return s, true
		}
	}
	return 0, false
}
