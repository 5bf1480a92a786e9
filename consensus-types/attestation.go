package types

import (
	"github.com/prysmaticlabs/duties-engine/primitives"
	bitfield "github.com/prysmaticlabs/go-bitfield"
)

// Checkpoint is a (epoch, root) pair used for the source/target of an
// AttestationData.
type Checkpoint struct {
	Epoch primitives.Epoch
	Root  Root
}

// AttestationData is the unsigned content a validator votes on for a slot.
type AttestationData struct {
	Slot            primitives.Slot
	CommitteeIndex  primitives.CommitteeIndex
	BeaconBlockRoot Root
	Source          Checkpoint
	Target          Checkpoint
}

// Attestation is a signed vote from a single committee member, identified
// within the committee by its position in AggregationBits.
type Attestation struct {
	Data            *AttestationData
	AggregationBits bitfield.Bitlist
	Signature       []byte
}

// AggregateAndProof wraps an aggregated attestation with the aggregator's
// selection proof, per spec.md §4.4 step 3.
type AggregateAndProof struct {
	AggregatorIndex primitives.ValidatorIndex
	Aggregate       *Attestation
	SelectionProof  []byte
}

// SignedAggregateAndProof is an AggregateAndProof plus the aggregator's
// signature over it.
type SignedAggregateAndProof struct {
	Message   *AggregateAndProof
	Signature []byte
}
