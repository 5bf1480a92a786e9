package duties

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prysmaticlabs/duties-engine/chainview"
	"github.com/prysmaticlabs/duties-engine/clock"
	"github.com/prysmaticlabs/duties-engine/config"
	types "github.com/prysmaticlabs/duties-engine/consensus-types"
	"github.com/prysmaticlabs/duties-engine/crypto/bls"
	"github.com/prysmaticlabs/duties-engine/keys"
	"github.com/prysmaticlabs/duties-engine/primitives"
	"github.com/prysmaticlabs/duties-engine/slashing"
	"github.com/prysmaticlabs/duties-engine/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBlockRef is the engine-level test stand-in for chainview.BlockRef.
type fakeBlockRef struct {
	root types.Root
	slot primitives.Slot
}

func (f fakeBlockRef) Root() types.Root      { return f.root }
func (f fakeBlockRef) Slot() primitives.Slot { return f.slot }

// fakeChainView implements chainview.ChainView with fixed, test-configured
// answers. It does not model fork choice or state transition at all — every
// test wires exactly the committee/proposer/fork facts its scenario needs.
type fakeChainView struct {
	mu sync.Mutex

	head fakeBlockRef

	proposerIdx      primitives.ValidatorIndex
	proposerAttached bool
	proposerErr      error

	epochRef *chainview.EpochRef

	fork        types.Fork
	forkVersion types.ForkVersion
	genesisRoot types.Root

	stateValidatorCount int
	eth1Data            *types.Eth1Data
	eth1Err             error
}

func (c *fakeChainView) Head(context.Context) (chainview.BlockRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, nil
}

// ExpectBlock is never observed to deliver a block in these tests; every
// caller races it against a deadline computed from a genesis far enough in
// the past that the deadline has already elapsed, so returning a nil
// channel here deterministically resolves that race via the deadline arm.
func (c *fakeChainView) ExpectBlock(context.Context, primitives.Slot) <-chan chainview.BlockRef {
	return nil
}

func (c *fakeChainView) AtSlot(_ context.Context, head chainview.BlockRef, _ primitives.Slot) (chainview.BlockRef, error) {
	return head, nil
}

func (c *fakeChainView) GetProposer(context.Context, chainview.BlockRef, primitives.Slot) (primitives.ValidatorIndex, bool, error) {
	return c.proposerIdx, c.proposerAttached, c.proposerErr
}

func (c *fakeChainView) GetEpochRef(context.Context, chainview.BlockRef, primitives.Epoch, bool) (*chainview.EpochRef, error) {
	return c.epochRef, nil
}

func (c *fakeChainView) ForkAtEpoch(primitives.Epoch) types.ForkVersion { return c.forkVersion }
func (c *fakeChainView) ForkNameAtEpoch(primitives.Epoch) types.Fork    { return c.fork }
func (c *fakeChainView) GenesisValidatorsRoot() types.Root             { return c.genesisRoot }

func (c *fakeChainView) SyncCommitteeParticipants(context.Context, primitives.Slot) ([]primitives.ValidatorIndex, error) {
	panic("not used by this test")
}

func (c *fakeChainView) WithUpdatedState(ctx context.Context, _ chainview.BlockRef, target primitives.Slot, fn func(chainview.StateHandle) error) error {
	return fn(&fakeStateHandle{slot: target, validatorCount: c.stateValidatorCount, eth1Data: c.eth1Data, eth1Err: c.eth1Err})
}

type fakeStateHandle struct {
	slot           primitives.Slot
	validatorCount int
	eth1Data       *types.Eth1Data
	eth1Err        error
}

func (s *fakeStateHandle) Slot() primitives.Slot      { return s.slot }
func (s *fakeStateHandle) ValidatorCount() int        { return s.validatorCount }
func (s *fakeStateHandle) AdvanceToSlot(_ context.Context, slot primitives.Slot) error {
	s.slot = slot
	return nil
}
func (s *fakeStateHandle) Eth1Data() (*types.Eth1Data, error) { return s.eth1Data, s.eth1Err }

// fakeBlockProcessor advances the chain head to the slot of whatever block
// it is handed, so a sequence of proposals (as in a catch-up run) actually
// walks the head forward slot by slot instead of freezing it.
type fakeBlockProcessor struct {
	mu      sync.Mutex
	stored  []*types.SignedBeaconBlock
	reject  bool
	storeErr error
}

func (p *fakeBlockProcessor) StoreBlock(_ context.Context, block *types.SignedBeaconBlock) (bool, chainview.BlockRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stored = append(p.stored, block)
	if p.storeErr != nil {
		return false, nil, p.storeErr
	}
	if p.reject {
		return false, nil, nil
	}
	var root types.Root
	root[0] = byte(block.Block.Slot)
	return true, fakeBlockRef{root: root, slot: block.Block.Slot}, nil
}

// fakeClock anchors genesis far enough in the past that every deadline this
// test computes from it has already elapsed, so the engine's deadline waits
// in runAttestationAndSyncPhase/runAggregatePhase return immediately instead
// of actually sleeping.
type fakeClock struct {
	genesis time.Time
}

func (c *fakeClock) Now() clock.BeaconTime                     { return clock.BeaconTime{Time: time.Now()} }
func (c *fakeClock) GenesisTime() time.Time                    { return c.genesis }
func (c *fakeClock) SlotStart(slot primitives.Slot) time.Time {
	return c.genesis.Add(time.Duration(uint64(slot)*12) * time.Second)
}
func (c *fakeClock) CurrentSlot() primitives.Slot { panic("not used by this test") }
func (c *fakeClock) C() <-chan primitives.Slot     { panic("not used by this test") }
func (c *fakeClock) Done()                         {}

func newFakeClock() *fakeClock {
	return &fakeClock{genesis: time.Unix(0, 0)}
}

// fakeSigner is a validator.Signer double: it records every kind it was
// asked to sign, and either signs deterministically (derived from the
// signing root, so distinct roots never collide) or returns a fixed error,
// simulating an unreachable or misbehaving remote signer.
type fakeSigner struct {
	mu  sync.Mutex
	pub bls.PublicKey
	err error

	signedKinds []validator.SigningRequestKind
}

func (s *fakeSigner) Sign(_ context.Context, kind validator.SigningRequestKind, signingRoot types.Root) (bls.Signature, error) {
	s.mu.Lock()
	s.signedKinds = append(s.signedKinds, kind)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return bls.RawSignature(append([]byte{}, signingRoot[:]...)), nil
}

func (s *fakeSigner) PublicKey() bls.PublicKey { return s.pub }

// fakeHasher hands out a fresh, distinct root on every call, so two blocks
// or attestations built from different pool contents never collide on the
// signing root the slashing protector keys its conflict check on.
type fakeHasher struct {
	mu sync.Mutex
	n  byte
}

func (h *fakeHasher) HashTreeRoot(interface{}) (types.Root, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.n++
	var r types.Root
	r[0] = h.n
	return r, nil
}

type fakeAttPool struct {
	attestationsForBlock []*types.Attestation
	attestationsErr      error
	aggregated           *types.Attestation
	aggregatedFound      bool
}

func (p *fakeAttPool) GetAttestationsForBlock(context.Context, chainview.StateHandle) ([]*types.Attestation, error) {
	return p.attestationsForBlock, p.attestationsErr
}

func (p *fakeAttPool) GetAggregatedAttestation(context.Context, primitives.Slot, primitives.CommitteeIndex) (*types.Attestation, bool, error) {
	return p.aggregated, p.aggregatedFound, nil
}

type fakeExitPool struct{}

func (fakeExitPool) GetBeaconBlockExits(context.Context, chainview.StateHandle) ([]*types.SignedVoluntaryExit, error) {
	return nil, nil
}

// engineFakeNetwork records every broadcast an engine-level test cares
// about; every Broadcast* method this package's tests never exercise
// panics, mirroring api_test.go's fakeNetwork convention (kept as a
// separate type since the two fakes cover disjoint method subsets and
// share a test package).
type engineFakeNetwork struct {
	mu                     sync.Mutex
	blocksBroadcast        []*types.SignedBeaconBlock
	attestationsBroadcast  []*types.Attestation
}

func (n *engineFakeNetwork) BroadcastBlock(_ context.Context, b *types.SignedBeaconBlock) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.blocksBroadcast = append(n.blocksBroadcast, b)
	return nil
}

func (n *engineFakeNetwork) BroadcastAttestation(_ context.Context, _ uint64, att *types.Attestation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.attestationsBroadcast = append(n.attestationsBroadcast, att)
	return nil
}

func (n *engineFakeNetwork) blockCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.blocksBroadcast)
}

func (n *engineFakeNetwork) attestationCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.attestationsBroadcast)
}

func (n *engineFakeNetwork) BroadcastAggregateAndProof(context.Context, *types.SignedAggregateAndProof) error {
	panic("not used by this test")
}
func (n *engineFakeNetwork) BroadcastSyncCommitteeMessage(context.Context, uint64, *types.SyncCommitteeMessage) error {
	panic("not used by this test")
}
func (n *engineFakeNetwork) BroadcastContributionAndProof(context.Context, *types.SignedContributionAndProof) error {
	panic("not used by this test")
}
func (n *engineFakeNetwork) BroadcastVoluntaryExit(context.Context, *types.SignedVoluntaryExit) error {
	panic("not used by this test")
}
func (n *engineFakeNetwork) BroadcastAttesterSlashing(context.Context, *types.AttesterSlashing) error {
	panic("not used by this test")
}
func (n *engineFakeNetwork) BroadcastProposerSlashing(context.Context, *types.ProposerSlashing) error {
	panic("not used by this test")
}

func testValidatorKey(b byte) keys.ValidatorKey {
	raw := make([]byte, 48)
	raw[0] = b
	k, _ := keys.FromBytes(raw)
	return k
}

func openTestProtector(t *testing.T) *slashing.BoltProtector {
	dir := t.TempDir()
	p, err := slashing.OpenBoltProtector(filepath.Join(dir, "slashing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// attachHandle builds and registers a Handle around signer, bypassing
// AddLocal/AddRemote since both force their own signer construction; tests
// need the fakeSigner wired directly to control error injection.
func attachHandle(reg *validator.Registry, pubkey keys.ValidatorKey, idx primitives.ValidatorIndex, signer validator.Signer) *validator.Handle {
	h := &validator.Handle{Pubkey: pubkey, Signer: signer}
	h.SetIndex(idx)
	reg.AddHandle(h)
	return h
}

// TestEngine_Propose_HappyPath covers spec.md §8 scenario 1: an attached
// validator proposing into an empty slashing-protection history signs,
// broadcasts, and stores a block, advancing the returned head.
func TestEngine_Propose_HappyPath(t *testing.T) {
	pubkey := testValidatorKey(1)
	idx := primitives.ValidatorIndex(7)
	reg := validator.NewRegistry()
	attachHandle(reg, pubkey, idx, &fakeSigner{pub: bls.RawPublicKey(pubkey.Bytes())})

	chain := &fakeChainView{
		head:             fakeBlockRef{slot: 99},
		proposerIdx:      idx,
		proposerAttached: true,
		fork:             types.Phase0,
		epochRef: &chainview.EpochRef{
			ValidatorPubkeys: map[primitives.ValidatorIndex]keys.ValidatorKey{idx: pubkey},
		},
	}
	net := &engineFakeNetwork{}
	blockProc := &fakeBlockProcessor{}

	e := New(Config{
		Chain:          chain,
		BlockProcessor: blockProc,
		AttPool:        &fakeAttPool{},
		ExitPool:       fakeExitPool{},
		Network:        net,
		Protector:      openTestProtector(t),
		Registry:       reg,
		Hasher:         &fakeHasher{},
		Clock:          newFakeClock(),
		EngineConfig:   config.Mainnet(),
	})

	newHead := e.propose(context.Background(), chain.head, 100)

	assert.Equal(t, primitives.Slot(100), newHead.Slot())
	assert.Equal(t, 1, net.blockCount())
	assert.Len(t, blockProc.stored, 1)
	assert.Equal(t, idx, blockProc.stored[0].Block.ProposerIndex)
}

// TestEngine_Propose_DoubleProposalShortCircuits covers spec.md §8 scenario
// 2: proposing twice for the same (validator, slot) with differing block
// content trips the slashing gate on the second attempt and never reaches a
// second broadcast.
func TestEngine_Propose_DoubleProposalShortCircuits(t *testing.T) {
	pubkey := testValidatorKey(2)
	idx := primitives.ValidatorIndex(3)
	reg := validator.NewRegistry()
	attachHandle(reg, pubkey, idx, &fakeSigner{pub: bls.RawPublicKey(pubkey.Bytes())})

	chain := &fakeChainView{
		head:             fakeBlockRef{slot: 99},
		proposerIdx:      idx,
		proposerAttached: true,
		fork:             types.Phase0,
		epochRef: &chainview.EpochRef{
			ValidatorPubkeys: map[primitives.ValidatorIndex]keys.ValidatorKey{idx: pubkey},
		},
	}
	net := &engineFakeNetwork{}
	blockProc := &fakeBlockProcessor{}

	e := New(Config{
		Chain:          chain,
		BlockProcessor: blockProc,
		AttPool:        &fakeAttPool{},
		ExitPool:       fakeExitPool{},
		Network:        net,
		Protector:      openTestProtector(t),
		Registry:       reg,
		Hasher:         &fakeHasher{}, // increments: the two calls get distinct block roots.
		Clock:          newFakeClock(),
		EngineConfig:   config.Mainnet(),
	})

	first := e.propose(context.Background(), chain.head, 100)
	assert.Equal(t, primitives.Slot(100), first.Slot())
	assert.Equal(t, 1, net.blockCount())

	second := e.propose(context.Background(), chain.head, 100)
	assert.Equal(t, chain.head, second, "second attempt must short-circuit and return the original head unchanged")
	assert.Equal(t, 1, net.blockCount(), "slashing gate must prevent a second broadcast")
	assert.Len(t, blockProc.stored, 1, "slashing gate runs before the block ever reaches the store")
}

// TestEngine_OnSlot_CatchUp covers spec.md §8 scenario 4: a gap between
// last_slot and current_slot runs propose+attest for every slot in between,
// in order, before the final slot's full attestation/aggregate phases run.
func TestEngine_OnSlot_CatchUp(t *testing.T) {
	pubkey := testValidatorKey(3)
	idx := primitives.ValidatorIndex(1)
	reg := validator.NewRegistry()
	attachHandle(reg, pubkey, idx, &fakeSigner{pub: bls.RawPublicKey(pubkey.Bytes())})

	const finalSlot = primitives.Slot(100)
	chain := &fakeChainView{
		head:             fakeBlockRef{slot: 95},
		proposerIdx:      idx,
		proposerAttached: true,
		fork:             types.Phase0,
		epochRef: &chainview.EpochRef{
			CommitteesPerSlot: 1,
			Committees: []chainview.Committee{
				{Index: 0, Slot: finalSlot, Validators: []primitives.ValidatorIndex{idx}},
			},
			ValidatorPubkeys:    map[primitives.ValidatorIndex]keys.ValidatorKey{idx: pubkey},
			JustifiedCheckpoint: types.Checkpoint{Epoch: 2},
		},
	}
	net := &engineFakeNetwork{}
	blockProc := &fakeBlockProcessor{}

	e := New(Config{
		Chain:          chain,
		BlockProcessor: blockProc,
		AttPool:        &fakeAttPool{}, // GetAggregatedAttestation "not found": aggregate phase is a no-op.
		ExitPool:       fakeExitPool{},
		Network:        net,
		Protector:      openTestProtector(t),
		Registry:       reg,
		Hasher:           &fakeHasher{},
		Clock:            newFakeClock(),
		EngineConfig:     config.Mainnet(),
		SyncHorizonSlots: 10,
	})

	e.OnSlot(context.Background(), 95, finalSlot)

	require.Eventually(t, func() bool { return net.attestationCount() == 1 }, time.Second, time.Millisecond)

	// Slots 96-100 each get a proposal; only slot 100 has a matching
	// committee to attest against.
	require.Len(t, blockProc.stored, 5)
	gotSlots := make([]primitives.Slot, len(blockProc.stored))
	for i, b := range blockProc.stored {
		gotSlots[i] = b.Block.Slot
	}
	assert.Equal(t, []primitives.Slot{96, 97, 98, 99, 100}, gotSlots, "catch-up must propose every skipped slot in order")
	assert.Equal(t, 1, net.attestationCount())
}

// TestEngine_Attest_RemoteSignerFailureIsolatesOtherValidators covers
// spec.md §8 scenario 6: one attached validator's signer fails; every other
// attached validator in the same committee still completes its attestation.
func TestEngine_Attest_RemoteSignerFailureIsolatesOtherValidators(t *testing.T) {
	failingPubkey := testValidatorKey(4)
	okPubkey := testValidatorKey(5)
	failingIdx := primitives.ValidatorIndex(10)
	okIdx := primitives.ValidatorIndex(11)

	reg := validator.NewRegistry()
	attachHandle(reg, failingPubkey, failingIdx, &fakeSigner{
		pub: bls.RawPublicKey(failingPubkey.Bytes()),
		err: assert.AnError,
	})
	attachHandle(reg, okPubkey, okIdx, &fakeSigner{pub: bls.RawPublicKey(okPubkey.Bytes())})

	const slot = primitives.Slot(200)
	chain := &fakeChainView{
		head: fakeBlockRef{slot: slot - 1},
		fork: types.Phase0,
		epochRef: &chainview.EpochRef{
			CommitteesPerSlot: 1,
			Committees: []chainview.Committee{
				{Index: 0, Slot: slot, Validators: []primitives.ValidatorIndex{failingIdx, okIdx}},
			},
			ValidatorPubkeys: map[primitives.ValidatorIndex]keys.ValidatorKey{
				failingIdx: failingPubkey,
				okIdx:      okPubkey,
			},
			JustifiedCheckpoint: types.Checkpoint{Epoch: 6},
		},
	}
	net := &engineFakeNetwork{}

	e := New(Config{
		Chain:        chain,
		Network:      net,
		Protector:    openTestProtector(t),
		Registry:     reg,
		Hasher:       &fakeHasher{},
		Clock:        newFakeClock(),
		EngineConfig: config.Mainnet(),
	})

	e.attest(context.Background(), chain.head, slot)

	require.Eventually(t, func() bool { return net.attestationCount() == 1 }, time.Second, time.Millisecond)
	// Give the failing validator's goroutine a chance to have run too; it
	// must never produce a broadcast of its own.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, net.attestationCount(), "the signer failure must drop only that validator's attestation")
}
