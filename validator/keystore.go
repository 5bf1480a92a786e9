package validator

import "github.com/prysmaticlabs/duties-engine/keys"

// KeystoreKind distinguishes where a validator's signing key lives.
type KeystoreKind uint8

const (
	// Local means the secret key material is held in this process.
	Local KeystoreKind = iota
	// Remote means signing requests are dispatched over HTTP to a
	// remote signer (e.g. a web3signer instance).
	Remote
)

// KeystoreDescriptor is the configuration-time record for one attached
// validator, per spec.md §3.
type KeystoreDescriptor struct {
	Kind KeystoreKind
	Pubkey keys.ValidatorKey

	// Local-only.
	SecretKey LocalSecretKey

	// Remote-only.
	RemoteURL             string
	IgnoreSSLVerification bool

	// Graffiti, applied at proposal time regardless of signer kind.
	Graffiti string
}
