// Package gossip declares the validation result and validator interface
// self-produced messages must pass through before broadcast, per spec.md
// §1 and §6: "gossip validation paths that must be invoked even for locally
// produced messages."
package gossip

import (
	"context"

	types "github.com/prysmaticlabs/duties-engine/consensus-types"
)

// ValidationResult distinguishes the three gossip outcomes. Both Accept and
// Ignore are broadcast-eligible for self-produced messages (spec.md §6);
// Reject is not.
type ValidationResult uint8

const (
	Accept ValidationResult = iota
	Ignore
	Reject
)

// Broadcastable reports whether a self-produced message with this result
// may still go out on the wire.
func (r ValidationResult) Broadcastable() bool {
	return r == Accept || r == Ignore
}

// Validator re-validates locally produced messages before they are
// broadcast, mirroring the checks a remote peer's message would undergo.
type Validator interface {
	ValidateAttestation(ctx context.Context, att *types.Attestation) (ValidationResult, error)
	ValidateSyncCommitteeMessage(ctx context.Context, msg *types.SyncCommitteeMessage) (ValidationResult, error)
	ValidateContributionAndProof(ctx context.Context, c *types.SignedContributionAndProof) (ValidationResult, error)
	ValidateAggregateAndProof(ctx context.Context, a *types.SignedAggregateAndProof) (ValidationResult, error)
	ValidateVoluntaryExit(ctx context.Context, e *types.SignedVoluntaryExit) (ValidationResult, error)
	ValidateAttesterSlashing(ctx context.Context, s *types.AttesterSlashing) (ValidationResult, error)
	ValidateProposerSlashing(ctx context.Context, s *types.ProposerSlashing) (ValidationResult, error)
}
