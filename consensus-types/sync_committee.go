package types

import "github.com/prysmaticlabs/duties-engine/primitives"

// SyncCommitteeMessage is a single validator's vote on the current head,
// signed for inclusion in the active sync committee's aggregate. Altair
// onward only, per spec.md §4.5.
type SyncCommitteeMessage struct {
	Slot           primitives.Slot
	BeaconBlockRoot Root
	ValidatorIndex primitives.ValidatorIndex
	Signature      []byte
}

// SyncCommitteeContribution aggregates SyncCommitteeMessages from a single
// subcommittee for one slot and block root.
type SyncCommitteeContribution struct {
	Slot              primitives.Slot
	BeaconBlockRoot   Root
	SubcommitteeIndex uint64
	AggregationBits   []byte
	Signature         []byte
}

// ContributionAndProof wraps a contribution with the aggregator's selection
// proof, mirroring AggregateAndProof for the sync-committee path.
type ContributionAndProof struct {
	AggregatorIndex primitives.ValidatorIndex
	Contribution    *SyncCommitteeContribution
	SelectionProof  []byte
}

// SignedContributionAndProof is a ContributionAndProof plus the
// aggregator's signature over it.
type SignedContributionAndProof struct {
	Message   *ContributionAndProof
	Signature []byte
}
