// Package bls declares the signing primitives the duties engine depends on.
// Concrete key material and signature verification are provided by whatever
// signing backend (local keystore, remote signer) is wired in at startup;
// this package only fixes the shapes the engine programs against.
package bls

// SecretKey is satisfied by a local keystore's private key material.
type SecretKey interface {
	PublicKey() PublicKey
	Sign(msg []byte) Signature
}

// PublicKey identifies a validator's BLS public key.
type PublicKey interface {
	Marshal() []byte
	Copy() PublicKey
}

// Signature is an opaque BLS signature produced by a signing backend.
type Signature interface {
	Marshal() []byte
}

// RawSignature wraps a marshaled signature so call sites that only have
// bytes (e.g. a remote signer's HTTP response) can still satisfy Signature.
type RawSignature []byte

func (r RawSignature) Marshal() []byte { return r }

// RawPublicKey wraps marshaled public-key bytes, for backends (remote
// signers) that identify a validator by its hex pubkey without holding a
// parsed key object.
type RawPublicKey []byte

func (r RawPublicKey) Marshal() []byte { return r }
func (r RawPublicKey) Copy() PublicKey {
	c := make(RawPublicKey, len(r))
	copy(c, r)
	return c
}
