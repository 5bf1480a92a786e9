package duties

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/duties-engine/chainview"
	types "github.com/prysmaticlabs/duties-engine/consensus-types"
	"github.com/prysmaticlabs/duties-engine/keys"
	"github.com/prysmaticlabs/duties-engine/primitives"
	"github.com/prysmaticlabs/duties-engine/validator"
	"github.com/sirupsen/logrus"
)

// propose implements spec.md §4.2. It returns the new head on success, or
// the prior head on any skip/abort.
func (e *DutyEngine) propose(ctx context.Context, head chainview.BlockRef, slot primitives.Slot) chainview.BlockRef {
	if head.Slot() >= slot {
		log.WithError(ErrHeadAheadOfSlot).WithFields(logrus.Fields{"headSlot": head.Slot(), "slot": slot}).Debug("Chain already advanced past proposal slot, skipping")
		return head
	}

	proposerIdx, attached, err := e.chain.GetProposer(ctx, head, slot)
	if err != nil {
		log.WithError(err).WithField("slot", slot).Error("Could not resolve proposer")
		return head
	}
	if !attached {
		log.WithError(ErrNoProposer).WithField("slot", slot).Debug("No proposer resolved for this slot")
		return head
	}
	handle, ok := e.registry.GetByIndex(e.epochValidatorPubkeys(ctx, head, slot), proposerIdx)
	if !ok {
		log.WithError(ErrNoProposer).WithField("slot", slot).Debug("Resolved proposer is not a locally attached validator")
		return head
	}

	logEntry := log.WithFields(logrus.Fields{"slot": slot, "pubkey": handle.Pubkey.ShortString()})

	epoch := slot.ToEpoch(e.cfg.SlotsPerEpoch)
	fork := e.chain.ForkAtEpoch(epoch)
	genesisRoot := e.chain.GenesisValidatorsRoot()

	randaoRoot := types.ComputeSigningRoot(types.DomainRandao, fork, genesisRoot, uint64(epoch), types.Root{})
	randaoReveal, err := handle.Signer.Sign(ctx, validator.KindRandaoReveal, randaoRoot)
	if err != nil {
		logEntry.WithError(errors.Wrap(ErrSignerFailure, err.Error())).Error("Failed to obtain randao reveal from signer")
		blocksProposeFailedTotal.WithLabelValues(handle.Pubkey.ShortString(), "signer_failure").Inc()
		return head
	}

	block, err := e.makeBlockForSlot(ctx, head, slot, proposerIdx, e.chain.ForkNameAtEpoch(epoch), randaoReveal.Marshal(), resolveGraffiti(handle.Graffiti, e.graffiti))
	if err != nil {
		logEntry.WithError(err).Error("Failed to assemble block")
		blocksProposeFailedTotal.WithLabelValues(handle.Pubkey.ShortString(), "assembly_failed").Inc()
		return head
	}

	blockRoot, err := e.hashBlock(block)
	if err != nil {
		logEntry.WithError(err).Error("Failed to hash block")
		blocksProposeFailedTotal.WithLabelValues(handle.Pubkey.ShortString(), "hash_failed").Inc()
		return head
	}
	signingRoot := types.ComputeSigningRoot(types.DomainBeaconProposer, fork, genesisRoot, uint64(slot), blockRoot)

	if err := e.protector.RegisterBlock(proposerIdx, handle.Pubkey, slot, signingRoot); err != nil {
		logEntry.WithError(errors.Wrap(ErrSlashingProtectionTripped, err.Error())).Warn("Slashing protection rejected block proposal")
		blocksProposeFailedTotal.WithLabelValues(handle.Pubkey.ShortString(), "slashing_protection_tripped").Inc()
		return head
	}

	sig, err := handle.Signer.Sign(ctx, validator.KindBlock, signingRoot)
	if err != nil {
		logEntry.WithError(errors.Wrap(ErrSignerFailure, err.Error())).Error("Failed to sign block")
		blocksProposeFailedTotal.WithLabelValues(handle.Pubkey.ShortString(), "signer_failure").Inc()
		return head
	}
	signed := &types.SignedBeaconBlock{Block: block, Signature: sig.Marshal()}

	// Broadcast before storing locally, for ASAP propagation, per spec.md
	// §4.2 step 9.
	if err := e.broadcastBlock(ctx, signed); err != nil {
		logEntry.WithError(err).Error("Failed to broadcast block")
		blocksProposeFailedTotal.WithLabelValues(handle.Pubkey.ShortString(), "broadcast_failed").Inc()
		return head
	}
	blocksProposedTotal.WithLabelValues(handle.Pubkey.ShortString()).Inc()

	accepted, newHead, err := e.blockProcessor.StoreBlock(ctx, signed)
	if err != nil || !accepted {
		logEntry.WithError(err).Warn("Block broadcast but local store rejected it")
		return head
	}
	logEntry.WithField("blockRoot", blockRoot).Info("Proposed new beacon block")
	return newHead
}

// broadcastBlock dumps and broadcasts the self-produced block. It does not
// run the block through gossip validation first.
func (e *DutyEngine) broadcastBlock(ctx context.Context, signed *types.SignedBeaconBlock) error {
	// Gossip validation of full blocks is ordinarily performed by the sync
	// package's block-processing path, not the attestation/aggregate
	// validator exposed in this engine's gossip.Validator interface; the
	// engine still dumps and broadcasts unconditionally here and lets
	// BlockProcessor.StoreBlock perform the authoritative check.
	e.maybeDump("block", signed)
	return e.net.BroadcastBlock(ctx, signed)
}

// hashBlock computes hash_tree_root(block) via the injected Hasher, per
// spec.md §4.2 step 6.
func (e *DutyEngine) hashBlock(block *types.BeaconBlock) (types.Root, error) {
	return e.hasher.HashTreeRoot(block)
}

// makeBlockForSlot implements make_block_for(head, slot) from spec.md §4.2
// step 5.
func (e *DutyEngine) makeBlockForSlot(ctx context.Context, head chainview.BlockRef, slot primitives.Slot, proposerIdx primitives.ValidatorIndex, fork types.Fork, randaoReveal []byte, graffitiBytes [32]byte) (*types.BeaconBlock, error) {
	var block *types.BeaconBlock
	err := e.chain.WithUpdatedState(ctx, head, slot, func(state chainview.StateHandle) error {
		// Advance to slot-1 (skip the last state-root calculation), then to
		// slot, mirroring spec.md's two-step advance.
		if slot > 0 {
			if err := state.AdvanceToSlot(ctx, slot-1); err != nil {
				return err
			}
		}
		if err := state.AdvanceToSlot(ctx, slot); err != nil {
			return err
		}

		eth1Data, err := state.Eth1Data()
		if err != nil {
			return ErrEth1DepositsUnavailable
		}

		attestations, err := e.attPool.GetAttestationsForBlock(ctx, state)
		if err != nil {
			log.WithError(errors.Wrap(ErrPoolMiss, err.Error())).WithField("slot", slot).Debug("No attestations available for block, proposing without them")
			attestations = nil
		}
		exits, err := e.exitPool.GetBeaconBlockExits(ctx, state)
		if err != nil {
			log.WithError(errors.Wrap(ErrPoolMiss, err.Error())).WithField("slot", slot).Debug("No voluntary exits available for block, proposing without them")
			exits = nil
		}

		body := &types.BeaconBlockBody{
			RandaoReveal:   randaoReveal,
			Eth1Data:       eth1Data,
			Graffiti:       graffitiBytes,
			Attestations:   attestations,
			VoluntaryExits: exits,
		}
		if fork.SupportsSyncCommittees() {
			agg, err := e.syncPool.ProduceSyncAggregate(ctx, head.Root())
			if err != nil || agg == nil {
				agg = &types.SyncAggregate{}
			}
			body.SyncAggregate = agg
		}

		block = &types.BeaconBlock{
			Fork:          fork,
			Slot:          slot,
			ProposerIndex: proposerIdx,
			ParentRoot:    head.Root(),
			Body:          body,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

// resolveGraffiti converts a validator's configured graffiti string to the
// fixed 32-byte field, falling back to the engine-wide default when the
// validator has none set. Per spec.md §3, per-validator graffiti overrides
// the default regardless of signer kind.
func resolveGraffiti(validatorGraffiti string, fallback [32]byte) [32]byte {
	if validatorGraffiti == "" {
		return fallback
	}
	var out [32]byte
	copy(out[:], validatorGraffiti)
	return out
}

// epochValidatorPubkeys resolves the index->pubkey map for the epoch
// containing slot, used to back-fill a proposer handle's lazily-populated
// index.
func (e *DutyEngine) epochValidatorPubkeys(ctx context.Context, head chainview.BlockRef, slot primitives.Slot) map[primitives.ValidatorIndex]keys.ValidatorKey {
	epoch := slot.ToEpoch(e.cfg.SlotsPerEpoch)
	ref, err := e.chain.GetEpochRef(ctx, head, epoch, true)
	if err != nil || ref == nil {
		return nil
	}
	return ref.ValidatorPubkeys
}
