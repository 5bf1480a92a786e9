// Package validator implements the attached-validator registry: the map
// from public key to a handle that dispatches signing either locally or
// through a remote signer, per spec.md §4.7.
package validator

import (
	"context"

	types "github.com/prysmaticlabs/duties-engine/consensus-types"
	"github.com/prysmaticlabs/duties-engine/crypto/bls"
)

// LocalSecretKey is the local-keystore secret key interface a KeystoreDescriptor
// carries for Local validators.
type LocalSecretKey = bls.SecretKey

// SigningRequestKind tags what a Sign call is signing over, so a remote
// signer implementation can pick the right web3signer request shape without
// the caller needing to know it.
type SigningRequestKind uint8

const (
	KindRandaoReveal SigningRequestKind = iota
	KindBlock
	KindAttestation
	KindAggregationSlot
	KindAggregateAndProof
	KindSyncCommitteeMessage
	KindSyncCommitteeSelectionProof
	KindContributionAndProof
	KindVoluntaryExit
)

func (k SigningRequestKind) String() string {
	switch k {
	case KindRandaoReveal:
		return "RANDAO_REVEAL"
	case KindBlock:
		return "BLOCK"
	case KindAttestation:
		return "ATTESTATION"
	case KindAggregationSlot:
		return "AGGREGATION_SLOT"
	case KindAggregateAndProof:
		return "AGGREGATE_AND_PROOF"
	case KindSyncCommitteeMessage:
		return "SYNC_COMMITTEE_MESSAGE"
	case KindSyncCommitteeSelectionProof:
		return "SYNC_COMMITTEE_SELECTION_PROOF"
	case KindContributionAndProof:
		return "SYNC_COMMITTEE_CONTRIBUTION_AND_PROOF"
	case KindVoluntaryExit:
		return "VOLUNTARY_EXIT"
	default:
		return "UNKNOWN"
	}
}

// Signer is satisfied by both the local and remote signing backends. Every
// duty path in this engine signs by calling Sign with the signing root it
// computed and the kind of message that root belongs to; the signer never
// sees more of the message than the root plus enough metadata to build a
// remote request.
type Signer interface {
	Sign(ctx context.Context, kind SigningRequestKind, signingRoot types.Root) (bls.Signature, error)
	PublicKey() bls.PublicKey
}
