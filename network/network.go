// Package network declares the gossip-broadcast surface the duty engine
// drives after a message clears gossip validation. The concrete p2p stack
// lives outside this module (spec.md §1 Non-goals: networking transport).
package network

import (
	"context"

	types "github.com/prysmaticlabs/duties-engine/consensus-types"
)

// Network broadcasts already-validated, already-signed messages on their
// topic. Each method corresponds to one of spec.md §6's named topics.
type Network interface {
	BroadcastAttestation(ctx context.Context, subnet uint64, att *types.Attestation) error
	BroadcastAggregateAndProof(ctx context.Context, a *types.SignedAggregateAndProof) error
	BroadcastSyncCommitteeMessage(ctx context.Context, subnet uint64, msg *types.SyncCommitteeMessage) error
	BroadcastContributionAndProof(ctx context.Context, c *types.SignedContributionAndProof) error
	BroadcastVoluntaryExit(ctx context.Context, e *types.SignedVoluntaryExit) error
	BroadcastAttesterSlashing(ctx context.Context, s *types.AttesterSlashing) error
	BroadcastProposerSlashing(ctx context.Context, s *types.ProposerSlashing) error
	BroadcastBlock(ctx context.Context, b *types.SignedBeaconBlock) error
}
