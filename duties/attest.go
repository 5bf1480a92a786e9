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
	bitfield "github.com/prysmaticlabs/go-bitfield"
	"github.com/sirupsen/logrus"
)

// attest implements spec.md §4.3: for every attached validator assigned to
// a committee at slot, build, slash-protect, sign, and broadcast an
// attestation.
func (e *DutyEngine) attest(ctx context.Context, head chainview.BlockRef, slot primitives.Slot) {
	// Step 1: staleness gate, per spec.md §4.3: "If slot + SLOTS_PER_EPOCH
	// < head.slot -> too old; skip." A head this far ahead means the
	// engine is replaying a slot the network has long since moved past.
	if slot+e.cfg.SlotsPerEpoch < head.Slot() {
		log.WithError(ErrHeadAheadOfSlot).WithFields(logrus.Fields{"headSlot": head.Slot(), "slot": slot}).Debug("Attestation slot too old, skipping")
		return
	}

	deadline := clock.AttestationDeadline(e.cfg, e.beaconClock.SlotStart(slot))

	attestationHead, err := e.chain.AtSlot(ctx, head, slot)
	if err != nil {
		log.WithError(err).WithField("slot", slot).Error("Could not resolve attestation-time chain view")
		return
	}

	epoch := slot.ToEpoch(e.cfg.SlotsPerEpoch)
	ref, err := e.chain.GetEpochRef(ctx, attestationHead, epoch, false)
	if err != nil || ref == nil {
		log.WithError(err).WithField("slot", slot).Error("Could not resolve epoch reference for attestation")
		return
	}

	for _, committee := range ref.Committees {
		if committee.Slot != slot {
			continue
		}
		for _, idx := range committee.Validators {
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
			go e.attestOne(ctx, handle, idx, committee, attestationHead, ref, slot, deadline)
		}
	}
}

// attestOne signs and broadcasts a single validator's attestation. Run as a
// fire-and-forget goroutine per validator, per spec.md §4.3, so one slow or
// failing signer cannot delay another validator's attestation.
func (e *DutyEngine) attestOne(ctx context.Context, handle *validator.Handle, idx primitives.ValidatorIndex, committee chainview.Committee, head chainview.BlockRef, ref *chainview.EpochRef, slot primitives.Slot, deadline time.Time) {
	logEntry := log.WithFields(logrus.Fields{"slot": slot, "pubkey": handle.Pubkey.ShortString()})

	epoch := slot.ToEpoch(e.cfg.SlotsPerEpoch)
	data := &types.AttestationData{
		Slot:            slot,
		CommitteeIndex:  committee.Index,
		BeaconBlockRoot: head.Root(),
		Source:          ref.JustifiedCheckpoint,
		Target:          types.Checkpoint{Epoch: epoch, Root: head.Root()},
	}

	fork := e.chain.ForkAtEpoch(epoch)
	genesisRoot := e.chain.GenesisValidatorsRoot()
	objectRoot, err := e.hasher.HashTreeRoot(data)
	if err != nil {
		logEntry.WithError(err).Error("Could not hash attestation data")
		attestationsFailedTotal.WithLabelValues(handle.Pubkey.ShortString(), "hash_failed").Inc()
		return
	}
	signingRoot := types.ComputeSigningRoot(types.DomainBeaconAttester, fork, genesisRoot, uint64(epoch), objectRoot)

	if err := e.protector.RegisterAttestation(idx, handle.Pubkey, data.Source.Epoch, data.Target.Epoch, signingRoot); err != nil {
		logEntry.WithError(errors.Wrap(ErrSlashingProtectionTripped, err.Error())).Warn("Slashing protection rejected attestation")
		attestationsFailedTotal.WithLabelValues(handle.Pubkey.ShortString(), "slashing_protection_tripped").Inc()
		return
	}

	sig, err := handle.Signer.Sign(ctx, validator.KindAttestation, signingRoot)
	if err != nil {
		logEntry.WithError(errors.Wrap(ErrSignerFailure, err.Error())).Error("Failed to sign attestation")
		attestationsFailedTotal.WithLabelValues(handle.Pubkey.ShortString(), "signer_failure").Inc()
		return
	}

	pos := positionInCommittee(committee.Validators, idx)
	bits := bitfield.NewBitlist(uint64(len(committee.Validators)))
	if pos >= 0 {
		bits.SetBitAt(uint64(pos), true)
	}
	att := &types.Attestation{Data: data, AggregationBits: bits, Signature: sig.Marshal()}

	subnet := computeSubnetForAttestation(e.cfg, ref.CommitteesPerSlot, slot, committee.Index)
	e.maybeDump("attestation", att)
	if err := e.net.BroadcastAttestation(ctx, subnet, att); err != nil {
		logEntry.WithError(err).Error("Failed to broadcast attestation")
		attestationsFailedTotal.WithLabelValues(handle.Pubkey.ShortString(), "broadcast_failed").Inc()
		return
	}
	attestationsSubmittedTotal.WithLabelValues(handle.Pubkey.ShortString()).Inc()
	sendDelaySeconds.WithLabelValues("attestation").Observe(time.Since(deadline).Seconds())
}

// positionInCommittee returns idx's offset within committee, or -1 if absent.
func positionInCommittee(committee []primitives.ValidatorIndex, idx primitives.ValidatorIndex) int {
	for i, v := range committee {
		if v == idx {
			return i
		}
	}
	return -1
}
