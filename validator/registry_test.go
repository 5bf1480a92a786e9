package validator

import (
	"context"
	"testing"

	types "github.com/prysmaticlabs/duties-engine/consensus-types"
	"github.com/prysmaticlabs/duties-engine/crypto/bls"
	"github.com/prysmaticlabs/duties-engine/keys"
	"github.com/prysmaticlabs/duties-engine/primitives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretKey struct {
	pub bls.PublicKey
}

func (f *fakeSecretKey) PublicKey() bls.PublicKey { return f.pub }
func (f *fakeSecretKey) Sign(msg []byte) bls.Signature {
	return bls.RawSignature(append([]byte{}, msg...))
}

func testPubkey(b byte) keys.ValidatorKey {
	raw := make([]byte, 48)
	raw[0] = b
	k, _ := keys.FromBytes(raw)
	return k
}

func TestRegistry_AddLocal_BackfillsIndexWhenKnown(t *testing.T) {
	r := NewRegistry()
	pubkey := testPubkey(1)
	desc := KeystoreDescriptor{
		Kind:      Local,
		Pubkey:    pubkey,
		SecretKey: &fakeSecretKey{pub: bls.RawPublicKey(pubkey.Bytes())},
	}
	stateValidators := map[keys.ValidatorKey]primitives.ValidatorIndex{pubkey: 7}

	h := r.AddLocal(desc, stateValidators)
	idx, known := h.Index()
	require.True(t, known)
	assert.Equal(t, primitives.ValidatorIndex(7), idx)
}

func TestRegistry_AddLocal_UnknownIndexLeftUnset(t *testing.T) {
	r := NewRegistry()
	pubkey := testPubkey(2)
	desc := KeystoreDescriptor{
		Kind:      Local,
		Pubkey:    pubkey,
		SecretKey: &fakeSecretKey{pub: bls.RawPublicKey(pubkey.Bytes())},
	}

	h := r.AddLocal(desc, nil)
	_, known := h.Index()
	assert.False(t, known)
}

func TestRegistry_AddRemote_EmptyURLRejected(t *testing.T) {
	r := NewRegistry()
	pubkey := testPubkey(3)
	_, err := r.AddRemote(KeystoreDescriptor{Kind: Remote, Pubkey: pubkey}, nil)
	assert.Error(t, err)
	_, ok := r.Get(pubkey)
	assert.False(t, ok, "rejected registration must not land in the registry")
}

func TestRegistry_GetByIndex_BackfillsIndexOnFirstSighting(t *testing.T) {
	r := NewRegistry()
	pubkey := testPubkey(4)
	desc := KeystoreDescriptor{
		Kind:      Local,
		Pubkey:    pubkey,
		SecretKey: &fakeSecretKey{pub: bls.RawPublicKey(pubkey.Bytes())},
	}
	r.AddLocal(desc, nil)

	stateValidators := map[primitives.ValidatorIndex]keys.ValidatorKey{9: pubkey}
	h, ok := r.GetByIndex(stateValidators, 9)
	require.True(t, ok)
	idx, known := h.Index()
	require.True(t, known)
	assert.Equal(t, primitives.ValidatorIndex(9), idx)
}

func TestRegistry_Len_And_Each(t *testing.T) {
	r := NewRegistry()
	for i := byte(1); i <= 3; i++ {
		pubkey := testPubkey(i)
		r.AddLocal(KeystoreDescriptor{
			Kind:      Local,
			Pubkey:    pubkey,
			SecretKey: &fakeSecretKey{pub: bls.RawPublicKey(pubkey.Bytes())},
		}, nil)
	}
	assert.Equal(t, 3, r.Len())

	seen := map[keys.ValidatorKey]bool{}
	r.Each(func(k keys.ValidatorKey, h *Handle) {
		seen[k] = true
		assert.NotNil(t, h.Signer)
	})
	assert.Len(t, seen, 3)
}

func TestHandle_SetIndex_PanicsOnReassignment(t *testing.T) {
	h := &Handle{Pubkey: testPubkey(5)}
	h.SetIndex(1)
	h.SetIndex(1) // same value, no panic.
	assert.Panics(t, func() { h.SetIndex(2) })
}

func TestLocalSigner_Sign(t *testing.T) {
	pubkey := testPubkey(6)
	signer := newLocalSigner(&fakeSecretKey{pub: bls.RawPublicKey(pubkey.Bytes())})

	var root types.Root
	root[0] = 0xCC
	sig, err := signer.Sign(context.Background(), KindAttestation, root)
	require.NoError(t, err)
	assert.Equal(t, root[:], sig.Marshal())
}
