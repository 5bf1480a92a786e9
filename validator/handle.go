package validator

import (
	"fmt"
	"sync"

	"github.com/prysmaticlabs/duties-engine/keys"
	"github.com/prysmaticlabs/duties-engine/primitives"
)

// Handle is an attached validator: its identity, its signing backend, and a
// lazily-populated index. Per spec.md §3 and §9's design note, the index is
// interior-mutable with a monotonic-set contract: once set it must never
// change, and a divergent reassignment is a programmer error, not a
// recoverable one.
type Handle struct {
	Pubkey   keys.ValidatorKey
	Graffiti string
	Signer   Signer

	mu    sync.RWMutex
	index *primitives.ValidatorIndex
}

// Index returns the validator's index, if known yet.
func (h *Handle) Index() (primitives.ValidatorIndex, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.index == nil {
		return 0, false
	}
	return *h.index, true
}

// SetIndex records idx as this validator's index. Called once, on first
// activation sighting. A later call with a different value indicates state
// corruption (the same pubkey resolving to two different indices) and
// panics rather than silently accepting the new value, per spec.md §3's
// invariant.
func (h *Handle) SetIndex(idx primitives.ValidatorIndex) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == nil {
		h.index = &idx
		return
	}
	if *h.index != idx {
		panic(fmt.Sprintf("validator %s: index reassignment from %d to %d, state corruption", h.Pubkey, *h.index, idx))
	}
}
