package types

import "github.com/prysmaticlabs/duties-engine/primitives"

// VoluntaryExit signals a validator's intent to leave the active set.
type VoluntaryExit struct {
	Epoch          primitives.Epoch
	ValidatorIndex primitives.ValidatorIndex
}

// SignedVoluntaryExit is a VoluntaryExit plus the exiting validator's
// signature.
type SignedVoluntaryExit struct {
	Exit      *VoluntaryExit
	Signature []byte
}

// AttesterSlashing proves two conflicting signed attestations by the same
// validator set. The engine only relays these to gossip/network; it never
// constructs them itself.
type AttesterSlashing struct {
	Attestation1 *IndexedAttestation
	Attestation2 *IndexedAttestation
}

// IndexedAttestation is an attestation resolved to explicit validator
// indices rather than a committee-relative bitlist, as required to prove a
// slashing.
type IndexedAttestation struct {
	AttestingIndices []primitives.ValidatorIndex
	Data             *AttestationData
	Signature        []byte
}

// ProposerSlashing proves two conflicting signed block headers by the same
// proposer.
type ProposerSlashing struct {
	Header1 *SignedBeaconBlockHeader
	Header2 *SignedBeaconBlockHeader
}

// BeaconBlockHeader is the fork-independent skeleton of a beacon block,
// used for slashing proofs.
type BeaconBlockHeader struct {
	Slot          primitives.Slot
	ProposerIndex primitives.ValidatorIndex
	ParentRoot    Root
	StateRoot     Root
	BodyRoot      Root
}

// SignedBeaconBlockHeader is a BeaconBlockHeader plus its proposer's
// signature.
type SignedBeaconBlockHeader struct {
	Header    *BeaconBlockHeader
	Signature []byte
}
