package types

import (
	"crypto/sha256"
	"encoding/binary"
)

// Root is a 32-byte merkle root, used both as a hash-tree-root and as a
// signing root.
type Root [32]byte

// hashConcat folds a sequence of byte slices into a single 32-byte root.
//
// This stands in for the real SSZ merkleization that production Prysm gets
// from machine-generated hashers (ferranbt/fastssz via `sszgen`, see
// DESIGN.md). Reproducing that generator's output by hand would not be
// faithful to any real encoding, so the engine instead depends on an
// injected Hasher for anything that needs a real hash_tree_root; this helper
// is only used for the engine's own composite signing roots (fork +
// genesis root + slot + object root), which spec.md §4.2 step 6 defines
// directly as a concatenation, not as a merkleized SSZ container.
func hashConcat(parts ...[]byte) Root {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var r Root
	copy(r[:], h.Sum(nil))
	return r
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// ComputeSigningRoot builds the signing root the slashing protector and the
// signer both operate over, per spec.md §4.2 step 6:
// "signing_root over (fork, genesis_root, slot, block_root)", domain-separated
// per the Domain constants in fork.go so a signature produced for one duty
// kind can never be replayed as a valid signature for another.
func ComputeSigningRoot(domain Domain, fork ForkVersion, genesisValidatorsRoot Root, slot uint64, objectRoot Root) Root {
	return hashConcat(domain[:], fork[:], genesisValidatorsRoot[:], uint64Bytes(slot), objectRoot[:])
}

// Hasher computes the real hash_tree_root of a block or attestation body.
// The duty engine never implements SSZ merkleization itself (that is state
// transition / encoding machinery, out of scope per spec.md §1's Non-goals);
// it is handed a Hasher by whatever component owns the consensus-types
// encoding in a full node.
type Hasher interface {
	HashTreeRoot(v interface{}) (Root, error)
}
