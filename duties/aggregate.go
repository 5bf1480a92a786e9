package duties

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/duties-engine/chainview"
	types "github.com/prysmaticlabs/duties-engine/consensus-types"
	"github.com/prysmaticlabs/duties-engine/primitives"
	"github.com/prysmaticlabs/duties-engine/validator"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// aggregate implements spec.md §4.4: every attached committee member
// requests a slot-signature selection proof; those selected as aggregators
// for their committee sign and broadcast the aggregated attestation.
func (e *DutyEngine) aggregate(ctx context.Context, head chainview.BlockRef, slot primitives.Slot) {
	epoch := slot.ToEpoch(e.cfg.SlotsPerEpoch)
	ref, err := e.chain.GetEpochRef(ctx, head, epoch, true)
	if err != nil || ref == nil {
		log.WithError(err).WithField("slot", slot).Error("Could not resolve epoch reference for aggregation")
		return
	}

	fork := e.chain.ForkAtEpoch(epoch)
	genesisRoot := e.chain.GenesisValidatorsRoot()
	slotRoot := types.ComputeSigningRoot(types.DomainSelectionProof, fork, genesisRoot, uint64(slot), types.Root{})

	g, gctx := errgroup.WithContext(ctx)
	for _, committee := range ref.Committees {
		if committee.Slot != slot {
			continue
		}
		committee := committee
		for _, idx := range committee.Validators {
			idx := idx
			pubkey, ok := ref.ValidatorPubkeys[idx]
			if !ok {
				continue
			}
			handle, ok := e.registry.Get(pubkey)
			if !ok {
				continue
			}
			g.Go(func() error {
				e.aggregateOne(gctx, handle, idx, committee, ref, slot, slotRoot)
				return nil
			})
		}
	}
	_ = g.Wait()
}

func (e *DutyEngine) aggregateOne(ctx context.Context, handle *validator.Handle, idx primitives.ValidatorIndex, committee chainview.Committee, ref *chainview.EpochRef, slot primitives.Slot, slotRoot types.Root) {
	logEntry := log.WithFields(logrus.Fields{"slot": slot, "pubkey": handle.Pubkey.ShortString()})

	proof, err := handle.Signer.Sign(ctx, validator.KindAggregationSlot, slotRoot)
	if err != nil {
		logEntry.WithError(errors.Wrap(ErrSignerFailure, err.Error())).Error("Failed to obtain slot-signature selection proof")
		return
	}
	proofBytes := proof.Marshal()
	if !isAggregator(e.cfg, uint64(len(committee.Validators)), proofBytes) {
		return
	}

	agg, found, err := e.attPool.GetAggregatedAttestation(ctx, slot, committee.Index)
	if err != nil || !found {
		logEntry.WithError(ErrPoolMiss).WithField("committeeIndex", committee.Index).Debug("No aggregated attestation available for committee")
		return
	}

	msg := &types.AggregateAndProof{AggregatorIndex: idx, Aggregate: agg, SelectionProof: proofBytes}
	objectRoot, err := e.hasher.HashTreeRoot(msg)
	if err != nil {
		logEntry.WithError(err).Error("Could not hash aggregate-and-proof")
		return
	}

	epoch := slot.ToEpoch(e.cfg.SlotsPerEpoch)
	fork := e.chain.ForkAtEpoch(epoch)
	genesisRoot := e.chain.GenesisValidatorsRoot()
	signingRoot := types.ComputeSigningRoot(types.DomainAggregateAndProof, fork, genesisRoot, uint64(slot), objectRoot)

	sig, err := handle.Signer.Sign(ctx, validator.KindAggregateAndProof, signingRoot)
	if err != nil {
		logEntry.WithError(errors.Wrap(ErrSignerFailure, err.Error())).Error("Failed to sign aggregate-and-proof")
		return
	}
	signed := &types.SignedAggregateAndProof{Message: msg, Signature: sig.Marshal()}

	e.maybeDump("aggregate_and_proof", signed)
	if err := e.net.BroadcastAggregateAndProof(ctx, signed); err != nil {
		logEntry.WithError(err).Error("Failed to broadcast aggregate-and-proof")
		return
	}
	aggregationsSubmittedTotal.WithLabelValues(handle.Pubkey.ShortString()).Inc()
}
