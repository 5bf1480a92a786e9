// Package slashing implements the append-only slashing-protection store:
// the safety-critical interlock described in spec.md §3 and §4.9. Every Ok
// write is made durable (fsync-on-commit) before the caller may proceed to
// request a signature, per spec.md §4.9 and §9's durability note.
package slashing

import (
	"fmt"

	"github.com/prysmaticlabs/duties-engine/keys"
	"github.com/prysmaticlabs/duties-engine/primitives"
)

// ExistingProposal describes a prior block proposal record, returned when a
// new proposal registration conflicts with it.
type ExistingProposal struct {
	Slot        primitives.Slot
	SigningRoot [32]byte
}

// ConflictKind distinguishes why an attestation registration was rejected.
type ConflictKind uint8

const (
	// DoubleVote: a different attestation already exists for this target
	// epoch.
	DoubleVote ConflictKind = iota
	// SurroundedByExisting: the new attestation is surrounded by one
	// already on record (existing.source < new.source && new.target < existing.target).
	SurroundedByExisting
	// SurroundsExisting: the new attestation surrounds one already on
	// record (new.source < existing.source && existing.target < new.target).
	SurroundsExisting
)

func (c ConflictKind) String() string {
	switch c {
	case DoubleVote:
		return "double_vote"
	case SurroundedByExisting:
		return "surrounded_by_existing"
	case SurroundsExisting:
		return "surrounds_existing"
	default:
		return "unknown"
	}
}

// AttestationConflict is returned by RegisterAttestation on rejection.
type AttestationConflict struct {
	Kind     ConflictKind
	Existing struct {
		Source, Target primitives.Epoch
		SigningRoot    [32]byte
	}
}

func (e *AttestationConflict) Error() string {
	return fmt.Sprintf("slashing protection: %s (existing source=%d target=%d)", e.Kind, e.Existing.Source, e.Existing.Target)
}

// ProposalConflict is returned by RegisterBlock on rejection.
type ProposalConflict struct {
	Existing ExistingProposal
}

func (e *ProposalConflict) Error() string {
	return fmt.Sprintf("slashing protection: conflicting proposal already recorded at slot %d", e.Existing.Slot)
}

// Protector answers "may this validator sign X" and durably records that it
// did, per spec.md §4.9.
type Protector interface {
	// RegisterBlock records a block proposal at (idx, slot) with the given
	// signing root. Returns a *ProposalConflict if a prior record exists
	// for (idx, slot) with a different signing root; an identical replay
	// is idempotent and returns nil.
	RegisterBlock(idx primitives.ValidatorIndex, pubkey keys.ValidatorKey, slot primitives.Slot, signingRoot [32]byte) error

	// RegisterAttestation records an attestation vote (source, target) for
	// idx with the given signing root. Returns an *AttestationConflict on
	// a double vote or surround vote; an identical replay for the same
	// target is idempotent and returns nil.
	RegisterAttestation(idx primitives.ValidatorIndex, pubkey keys.ValidatorKey, source, target primitives.Epoch, signingRoot [32]byte) error

	// Close releases the underlying store.
	Close() error
}
