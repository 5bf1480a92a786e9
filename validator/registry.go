package validator

import (
	"net/url"
	"sync"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/duties-engine/crypto/bls"
	"github.com/prysmaticlabs/duties-engine/keys"
	"github.com/prysmaticlabs/duties-engine/primitives"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "validator")

func blsRawPubkey(k keys.ValidatorKey) bls.PublicKey {
	return bls.RawPublicKey(k.Bytes())
}

// Registry maps public keys to attached-validator handles, per spec.md
// §4.7. It is the engine's single source of truth for "which validators do
// I sign for".
type Registry struct {
	mu      sync.RWMutex
	handles map[keys.ValidatorKey]*Handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[keys.ValidatorKey]*Handle)}
}

// AddLocal resolves desc's ValidatorIndex by scanning stateValidators and
// registers a locally-signing handle. Absence from stateValidators is
// permitted (the deposit hasn't been processed yet) and only logged, per
// spec.md §4.7.
func (r *Registry) AddLocal(desc KeystoreDescriptor, stateValidators map[keys.ValidatorKey]primitives.ValidatorIndex) *Handle {
	h := &Handle{
		Pubkey:   desc.Pubkey,
		Graffiti: desc.Graffiti,
		Signer:   newLocalSigner(desc.SecretKey),
	}
	if idx, ok := stateValidators[desc.Pubkey]; ok {
		h.SetIndex(idx)
	} else {
		log.WithField("pubkey", desc.Pubkey.ShortString()).Info("Local validator not yet observed in beacon state; index pending activation")
	}
	r.AddHandle(h)
	return h
}

// AddRemote constructs a REST-backed signing handle. On URL resolution
// failure it warns and drops the validator rather than aborting startup,
// per spec.md §4.7.
func (r *Registry) AddRemote(desc KeystoreDescriptor, stateValidators map[keys.ValidatorKey]primitives.ValidatorIndex) (*Handle, error) {
	if desc.RemoteURL == "" {
		log.WithField("pubkey", desc.Pubkey.ShortString()).Warn("Remote validator has no signer URL configured, dropping")
		return nil, errors.New("remote signer URL is empty")
	}
	if u, err := url.Parse(desc.RemoteURL); err != nil || u.Scheme == "" || u.Host == "" {
		log.WithField("pubkey", desc.Pubkey.ShortString()).Warn("Remote validator signer URL could not be parsed, dropping")
		return nil, errors.Errorf("invalid remote signer URL %q", desc.RemoteURL)
	}
	localSigner := newRemoteSigner(blsRawPubkey(desc.Pubkey), desc.RemoteURL, desc.IgnoreSSLVerification)
	h := &Handle{
		Pubkey:   desc.Pubkey,
		Graffiti: desc.Graffiti,
		Signer:   localSigner,
	}
	if idx, ok := stateValidators[desc.Pubkey]; ok {
		h.SetIndex(idx)
	} else {
		log.WithField("pubkey", desc.Pubkey.ShortString()).Info("Remote validator not yet observed in beacon state; index pending activation")
	}
	r.AddHandle(h)
	return h, nil
}

// AddHandle inserts a fully constructed handle, keyed by its pubkey. Shares
// the locking AddLocal/AddRemote use for their own insertion, for callers
// that build a Handle around a signing backend Registry has no constructor
// for (e.g. an HSM-backed Signer, or a test double).
func (r *Registry) AddHandle(h *Handle) {
	r.mu.Lock()
	r.handles[h.Pubkey] = h
	r.mu.Unlock()
}

// Get returns the handle for pubkey, if attached.
func (r *Registry) Get(pubkey keys.ValidatorKey) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[pubkey]
	return h, ok
}

// GetByIndex returns the handle for idx, resolving pubkey via
// stateValidators and lazily backfilling the handle's index on first
// activation sighting, per spec.md §4.7.
func (r *Registry) GetByIndex(stateValidators map[primitives.ValidatorIndex]keys.ValidatorKey, idx primitives.ValidatorIndex) (*Handle, bool) {
	pubkey, ok := stateValidators[idx]
	if !ok {
		return nil, false
	}
	h, ok := r.Get(pubkey)
	if !ok {
		return nil, false
	}
	if _, known := h.Index(); !known {
		h.SetIndex(idx)
	}
	return h, true
}

// Len returns the number of attached validators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Each iterates (pubkey, handle) pairs. Order is not guaranteed to match
// any external sequence, per spec.md §4.7.
func (r *Registry) Each(fn func(keys.ValidatorKey, *Handle)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k, h := range r.handles {
		fn(k, h)
	}
}
