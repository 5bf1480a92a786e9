package types

import "github.com/prysmaticlabs/duties-engine/primitives"

// Eth1Data is the block proposer's vote on the ETH1 deposit contract state.
type Eth1Data struct {
	DepositRoot  Root
	DepositCount uint64
	BlockHash    Root
}

// SyncAggregate is the aggregated sync-committee signature included in an
// Altair-or-later block body. Phase0 blocks carry none (the body's field
// stays nil); an Altair-or-later block whose pool produced no aggregate
// carries an empty one (nil bits, nil signature).
type SyncAggregate struct {
	SyncCommitteeBits      []byte
	SyncCommitteeSignature []byte
}

// ExecutionPayloadRef is an opaque handle to a Bellatrix-or-later execution
// payload. The engine never constructs or validates payload contents — that
// is the execution-layer payload provider's job (spec.md §1, out of scope,
// referenced only by interface) — it only carries whatever the provider
// handed back so the block body can reference it.
type ExecutionPayloadRef struct {
	BlockHash Root
	Opaque    interface{}
}

// BeaconBlockBody carries the fork-specific payload of a block. Fields that
// don't apply to a given fork are left at their zero value; BeaconBlock.Fork
// says which fields are meaningful.
type BeaconBlockBody struct {
	RandaoReveal      []byte
	Eth1Data          *Eth1Data
	Graffiti          [32]byte
	ProposerSlashings []*ProposerSlashing
	AttesterSlashings []*AttesterSlashing
	Attestations      []*Attestation
	VoluntaryExits    []*SignedVoluntaryExit

	// Altair+
	SyncAggregate *SyncAggregate

	// Bellatrix+
	ExecutionPayload *ExecutionPayloadRef
}

// BeaconBlock is the fork-tagged block skeleton described in spec.md §3:
// "Each variant carries the same skeleton ... with fork-specific body
// fields." Represented as a single struct carrying a Fork tag rather than
// an inheritance hierarchy, per spec.md §9's design note.
type BeaconBlock struct {
	Fork          Fork
	Slot          primitives.Slot
	ProposerIndex primitives.ValidatorIndex
	ParentRoot    Root
	StateRoot     Root
	Body          *BeaconBlockBody
}

// SignedBeaconBlock is a BeaconBlock plus the proposer's signature over its
// signing root.
type SignedBeaconBlock struct {
	Block     *BeaconBlock
	Signature []byte
}
