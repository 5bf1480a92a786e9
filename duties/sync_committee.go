package duties

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/duties-engine/chainview"
	"github.com/prysmaticlabs/duties-engine/clock"
	types "github.com/prysmaticlabs/duties-engine/consensus-types"
	"github.com/prysmaticlabs/duties-engine/primitives"
	"github.com/prysmaticlabs/duties-engine/validator"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// syncCommitteeMessages implements spec.md §4.5's message path: the sync
// committee active at slot+1 owns slot's message, per the spec's off-by-one
// committee-period boundary note.
func (e *DutyEngine) syncCommitteeMessages(ctx context.Context, head chainview.BlockRef, slot primitives.Slot) {
	epoch := slot.ToEpoch(e.cfg.SlotsPerEpoch)
	if !e.chain.ForkNameAtEpoch(epoch).SupportsSyncCommittees() {
		return
	}

	deadline := clock.SyncMessageDeadline(e.cfg, e.beaconClock.SlotStart(slot))

	members, err := e.chain.SyncCommitteeParticipants(ctx, slot+1)
	if err != nil {
		log.WithError(err).WithField("slot", slot).Error("Could not resolve sync committee membership")
		return
	}

	ref, err := e.chain.GetEpochRef(ctx, head, epoch, true)
	if err != nil || ref == nil {
		log.WithError(err).WithField("slot", slot).Error("Could not resolve epoch reference for sync committee messages")
		return
	}

	fork := e.chain.ForkAtEpoch(epoch)
	genesisRoot := e.chain.GenesisValidatorsRoot()
	objectRoot := head.Root()
	signingRoot := types.ComputeSigningRoot(types.DomainSyncCommittee, fork, genesisRoot, uint64(slot), objectRoot)

	for position, idx := range members {
		pubkey, ok := ref.ValidatorPubkeys[idx]
		if !ok {
			continue
		}
		handle, ok := e.registry.Get(pubkey)
		if !ok {
			continue
		}
		if _, known := handle.Index(); !known {
			handle.SetIndex(idx)
		}
		go e.sendSyncCommitteeMessage(ctx, handle, idx, head, slot, signingRoot, subcommitteeIndex(e.cfg, uint64(position)), deadline)
	}
}

func (e *DutyEngine) sendSyncCommitteeMessage(ctx context.Context, handle *validator.Handle, idx primitives.ValidatorIndex, head chainview.BlockRef, slot primitives.Slot, signingRoot types.Root, subcommittee uint64, deadline time.Time) {
	logEntry := log.WithFields(logrus.Fields{"slot": slot, "pubkey": handle.Pubkey.ShortString()})

	sig, err := handle.Signer.Sign(ctx, validator.KindSyncCommitteeMessage, signingRoot)
	if err != nil {
		logEntry.WithError(errors.Wrap(ErrSignerFailure, err.Error())).Error("Failed to sign sync committee message")
		return
	}
	msg := &types.SyncCommitteeMessage{Slot: slot, BeaconBlockRoot: head.Root(), ValidatorIndex: idx, Signature: sig.Marshal()}

	e.maybeDump("sync_committee_message", msg)
	if err := e.net.BroadcastSyncCommitteeMessage(ctx, subcommittee, msg); err != nil {
		logEntry.WithError(err).Error("Failed to broadcast sync committee message")
		return
	}
	if err := e.syncPool.SaveSyncCommitteeMessage(ctx, msg); err != nil {
		logEntry.WithError(err).Warn("Broadcast sync committee message but could not save it locally")
	}
	syncMessagesSubmittedTotal.WithLabelValues(handle.Pubkey.ShortString()).Inc()
	sendDelaySeconds.WithLabelValues("sync_committee_message").Observe(time.Since(deadline).Seconds())
}

// syncCommitteeContributions implements spec.md §4.5's contribution path.
func (e *DutyEngine) syncCommitteeContributions(ctx context.Context, head chainview.BlockRef, slot primitives.Slot) {
	epoch := slot.ToEpoch(e.cfg.SlotsPerEpoch)
	if !e.chain.ForkNameAtEpoch(epoch).SupportsSyncCommittees() {
		return
	}

	members, err := e.chain.SyncCommitteeParticipants(ctx, slot)
	if err != nil {
		log.WithError(err).WithField("slot", slot).Error("Could not resolve sync committee membership")
		return
	}
	ref, err := e.chain.GetEpochRef(ctx, head, epoch, true)
	if err != nil || ref == nil {
		log.WithError(err).WithField("slot", slot).Error("Could not resolve epoch reference for sync committee contributions")
		return
	}

	fork := e.chain.ForkAtEpoch(epoch)
	genesisRoot := e.chain.GenesisValidatorsRoot()
	proofRoot := types.ComputeSigningRoot(types.DomainSyncCommitteeSelectionProof, fork, genesisRoot, uint64(slot), types.Root{})

	g, gctx := errgroup.WithContext(ctx)
	for position, idx := range members {
		position, idx := position, idx
		pubkey, ok := ref.ValidatorPubkeys[idx]
		if !ok {
			continue
		}
		handle, ok := e.registry.Get(pubkey)
		if !ok {
			continue
		}
		subcommittee := subcommitteeIndex(e.cfg, uint64(position))
		g.Go(func() error {
			e.contributeOne(gctx, handle, idx, head, slot, proofRoot, subcommittee)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *DutyEngine) contributeOne(ctx context.Context, handle *validator.Handle, idx primitives.ValidatorIndex, head chainview.BlockRef, slot primitives.Slot, proofRoot types.Root, subcommittee uint64) {
	logEntry := log.WithFields(logrus.Fields{"slot": slot, "pubkey": handle.Pubkey.ShortString()})

	proof, err := handle.Signer.Sign(ctx, validator.KindSyncCommitteeSelectionProof, proofRoot)
	if err != nil {
		logEntry.WithError(errors.Wrap(ErrSignerFailure, err.Error())).Error("Failed to obtain sync committee selection proof")
		return
	}
	proofBytes := proof.Marshal()
	if !isSyncCommitteeAggregator(e.cfg, proofBytes) {
		return
	}

	contribution, found, err := e.syncPool.ProduceContribution(ctx, slot, head.Root(), subcommittee)
	if err != nil || !found {
		logEntry.WithError(ErrPoolMiss).WithField("subcommittee", subcommittee).Debug("No sync committee contribution available for subcommittee")
		return
	}

	msg := &types.ContributionAndProof{AggregatorIndex: idx, Contribution: contribution, SelectionProof: proofBytes}
	objectRoot, err := e.hasher.HashTreeRoot(msg)
	if err != nil {
		logEntry.WithError(err).Error("Could not hash contribution-and-proof")
		return
	}

	epoch := slot.ToEpoch(e.cfg.SlotsPerEpoch)
	fork := e.chain.ForkAtEpoch(epoch)
	genesisRoot := e.chain.GenesisValidatorsRoot()
	signingRoot := types.ComputeSigningRoot(types.DomainContributionAndProof, fork, genesisRoot, uint64(slot), objectRoot)

	sig, err := handle.Signer.Sign(ctx, validator.KindContributionAndProof, signingRoot)
	if err != nil {
		logEntry.WithError(errors.Wrap(ErrSignerFailure, err.Error())).Error("Failed to sign contribution-and-proof")
		return
	}
	signed := &types.SignedContributionAndProof{Message: msg, Signature: sig.Marshal()}

	e.maybeDump("contribution_and_proof", signed)
	if err := e.net.BroadcastContributionAndProof(ctx, signed); err != nil {
		logEntry.WithError(err).Error("Failed to broadcast contribution-and-proof")
		return
	}
	syncContributionsSubmittedTotal.WithLabelValues(handle.Pubkey.ShortString()).Inc()
}

// SyncMessageSubmissionResult is one element of SendSyncCommitteeMessages's
// order-preserving result vector, per spec.md §4.6.
type SyncMessageSubmissionResult struct {
	Err error
}

// SendSyncCommitteeMessages implements the bulk external-API path of
// spec.md §4.6: partition by sync-committee period, reject out-of-range
// indices and memberships, dispatch per-subcommittee sends concurrently,
// and preserve input order in the result.
func (e *DutyEngine) SendSyncCommitteeMessages(ctx context.Context, head chainview.BlockRef, headStateValidatorCount int, msgs []*types.SyncCommitteeMessage) []SyncMessageSubmissionResult {
	results := make([]SyncMessageSubmissionResult, len(msgs))

	headSlot := head.Slot()
	curPeriod := syncCommitteePeriod(e.cfg, headSlot.ToEpoch(e.cfg.SlotsPerEpoch))
	nxtPeriod := curPeriod + 1

	g, gctx := errgroup.WithContext(ctx)
	for i, msg := range msgs {
		i, msg := i, msg
		if int(msg.ValidatorIndex) >= headStateValidatorCount {
			results[i] = SyncMessageSubmissionResult{Err: errors.Errorf("validator index %d out of range", msg.ValidatorIndex)}
			continue
		}
		msgPeriod := syncCommitteePeriod(e.cfg, msg.Slot.ToEpoch(e.cfg.SlotsPerEpoch))
		if msgPeriod != curPeriod && msgPeriod != nxtPeriod {
			results[i] = SyncMessageSubmissionResult{Err: errors.Errorf("slot %d is outside the current or next sync committee period", msg.Slot)}
			continue
		}

		members, err := e.chain.SyncCommitteeParticipants(ctx, msg.Slot)
		if err != nil {
			results[i] = SyncMessageSubmissionResult{Err: err}
			continue
		}
		position := -1
		for p, idx := range members {
			if idx == msg.ValidatorIndex {
				position = p
				break
			}
		}
		if position < 0 {
			results[i] = SyncMessageSubmissionResult{Err: errors.Errorf("validator index %d is not a member of the sync committee for slot %d", msg.ValidatorIndex, msg.Slot)}
			continue
		}
		subcommittee := subcommitteeIndex(e.cfg, uint64(position))

		result, err := e.gossipValidator.ValidateSyncCommitteeMessage(gctx, msg)
		if err != nil {
			results[i] = SyncMessageSubmissionResult{Err: err}
			continue
		}
		if !result.Broadcastable() {
			results[i] = SyncMessageSubmissionResult{Err: &GossipRejectedError{Reason: "sync committee message rejected by gossip validation"}}
			continue
		}

		g.Go(func() error {
			results[i] = SyncMessageSubmissionResult{Err: e.net.BroadcastSyncCommitteeMessage(gctx, subcommittee, msg)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
