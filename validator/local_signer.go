package validator

import (
	"context"

	types "github.com/prysmaticlabs/duties-engine/consensus-types"
	"github.com/prysmaticlabs/duties-engine/crypto/bls"
)

// localSigner signs directly with in-process key material.
type localSigner struct {
	secret LocalSecretKey
}

func newLocalSigner(secret LocalSecretKey) Signer {
	return &localSigner{secret: secret}
}

func (s *localSigner) Sign(_ context.Context, _ SigningRequestKind, signingRoot types.Root) (bls.Signature, error) {
	return s.secret.Sign(signingRoot[:]), nil
}

func (s *localSigner) PublicKey() bls.PublicKey {
	return s.secret.PublicKey()
}
