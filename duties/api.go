package duties

import (
	"context"

	types "github.com/prysmaticlabs/duties-engine/consensus-types"
)

// validateAndBroadcast runs validate, then broadcasts iff the result is
// broadcast-eligible, returning a *GossipRejectedError otherwise. This is
// the shared shape of every send_* entrypoint in spec.md §6.
func validateAndBroadcast(validate func() (broadcastable bool, rejectReason string, err error), broadcast func() error) error {
	broadcastable, reason, err := validate()
	if err != nil {
		return err
	}
	if !broadcastable {
		return &GossipRejectedError{Reason: reason}
	}
	return broadcast()
}

// SendAttestation implements spec.md §6's send_attestation.
func (e *DutyEngine) SendAttestation(ctx context.Context, subnet uint64, att *types.Attestation) error {
	return validateAndBroadcast(
		func() (bool, string, error) {
			result, err := e.gossipValidator.ValidateAttestation(ctx, att)
			return result.Broadcastable(), "attestation rejected by gossip validation", err
		},
		func() error {
			e.maybeDump("attestation", att)
			return e.net.BroadcastAttestation(ctx, subnet, att)
		},
	)
}

// SendAggregateAndProof implements spec.md §6's send_aggregate_and_proof.
func (e *DutyEngine) SendAggregateAndProof(ctx context.Context, a *types.SignedAggregateAndProof) error {
	return validateAndBroadcast(
		func() (bool, string, error) {
			result, err := e.gossipValidator.ValidateAggregateAndProof(ctx, a)
			return result.Broadcastable(), "aggregate-and-proof rejected by gossip validation", err
		},
		func() error {
			e.maybeDump("aggregate_and_proof", a)
			return e.net.BroadcastAggregateAndProof(ctx, a)
		},
	)
}

// SendVoluntaryExit implements spec.md §6's send_voluntary_exit.
func (e *DutyEngine) SendVoluntaryExit(ctx context.Context, ex *types.SignedVoluntaryExit) error {
	return validateAndBroadcast(
		func() (bool, string, error) {
			result, err := e.gossipValidator.ValidateVoluntaryExit(ctx, ex)
			return result.Broadcastable(), "voluntary exit rejected by gossip validation", err
		},
		func() error {
			e.maybeDump("voluntary_exit", ex)
			return e.net.BroadcastVoluntaryExit(ctx, ex)
		},
	)
}

// SendAttesterSlashing implements spec.md §6's send_attester_slashing.
func (e *DutyEngine) SendAttesterSlashing(ctx context.Context, s *types.AttesterSlashing) error {
	return validateAndBroadcast(
		func() (bool, string, error) {
			result, err := e.gossipValidator.ValidateAttesterSlashing(ctx, s)
			return result.Broadcastable(), "attester slashing rejected by gossip validation", err
		},
		func() error {
			e.maybeDump("attester_slashing", s)
			return e.net.BroadcastAttesterSlashing(ctx, s)
		},
	)
}

// SendProposerSlashing implements spec.md §6's send_proposer_slashing.
func (e *DutyEngine) SendProposerSlashing(ctx context.Context, s *types.ProposerSlashing) error {
	return validateAndBroadcast(
		func() (bool, string, error) {
			result, err := e.gossipValidator.ValidateProposerSlashing(ctx, s)
			return result.Broadcastable(), "proposer slashing rejected by gossip validation", err
		},
		func() error {
			e.maybeDump("proposer_slashing", s)
			return e.net.BroadcastProposerSlashing(ctx, s)
		},
	)
}

// SendSyncCommitteeContribution implements spec.md §6's
// send_sync_committee_contribution.
func (e *DutyEngine) SendSyncCommitteeContribution(ctx context.Context, c *types.SignedContributionAndProof) error {
	return validateAndBroadcast(
		func() (bool, string, error) {
			result, err := e.gossipValidator.ValidateContributionAndProof(ctx, c)
			return result.Broadcastable(), "sync committee contribution rejected by gossip validation", err
		},
		func() error {
			e.maybeDump("contribution_and_proof", c)
			return e.net.BroadcastContributionAndProof(ctx, c)
		},
	)
}

// SendBeaconBlock implements spec.md §6's send_beacon_block: gossip-validate
// via the block path is the BlockProcessor's job (full block gossip
// validation is not part of the narrow gossip.Validator surface this engine
// owns), broadcast unconditionally, then store and report acceptance.
func (e *DutyEngine) SendBeaconBlock(ctx context.Context, block *types.SignedBeaconBlock) (accepted bool, err error) {
	e.maybeDump("block", block)
	if err := e.net.BroadcastBlock(ctx, block); err != nil {
		return false, err
	}
	accepted, newHead, err := e.blockProcessor.StoreBlock(ctx, block)
	if err != nil {
		return false, err
	}
	if accepted {
		e.setHead(newHead)
	}
	return accepted, nil
}
