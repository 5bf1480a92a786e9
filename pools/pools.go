// Package pools declares the interfaces to the attestation, exit, and
// sync-committee message pools the duty engine reads from when assembling
// blocks, aggregates, and contributions. Concrete pool implementations live
// outside this module — spec.md §1 lists them as external collaborators.
package pools

import (
	"context"

	types "github.com/prysmaticlabs/duties-engine/consensus-types"
	"github.com/prysmaticlabs/duties-engine/chainview"
	"github.com/prysmaticlabs/duties-engine/primitives"
)

// AttestationPool supplies attestations for block inclusion and aggregated
// attestations for the aggregation duty.
type AttestationPool interface {
	GetAttestationsForBlock(ctx context.Context, state chainview.StateHandle) ([]*types.Attestation, error)
	GetAggregatedAttestation(ctx context.Context, slot primitives.Slot, committeeIndex primitives.CommitteeIndex) (*types.Attestation, bool, error)
}

// ExitPool supplies voluntary exits for block inclusion.
type ExitPool interface {
	GetBeaconBlockExits(ctx context.Context, state chainview.StateHandle) ([]*types.SignedVoluntaryExit, error)
}

// SyncCommitteeMsgPool supplies the sync aggregate for block inclusion and
// produces subcommittee contributions for the contribution duty.
type SyncCommitteeMsgPool interface {
	ProduceSyncAggregate(ctx context.Context, blockRoot types.Root) (*types.SyncAggregate, error)
	ProduceContribution(ctx context.Context, slot primitives.Slot, blockRoot types.Root, subcommitteeIndex uint64) (*types.SyncCommitteeContribution, bool, error)
	SaveSyncCommitteeMessage(ctx context.Context, msg *types.SyncCommitteeMessage) error
}
