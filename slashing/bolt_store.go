package slashing

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/duties-engine/keys"
	"github.com/prysmaticlabs/duties-engine/primitives"
	bolt "go.etcd.io/bbolt"
)

var (
	proposalsBucket    = []byte("proposals")
	attestationsBucket = []byte("attestations")
)

// BoltProtector is the durable, append-only slashing-protection store
// backed by bbolt, grounded on validator/db/kv's boltdb-based validator
// database. bbolt fsyncs every write transaction on commit unless NoSync is
// set, which this store never does — every Ok-returning write is durable on
// disk before RegisterBlock/RegisterAttestation returns, satisfying
// spec.md §4.9's "crash-atomic before the signature is released" contract.
type BoltProtector struct {
	db *bolt.DB
}

// OpenBoltProtector opens (creating if needed) a bbolt-backed protection
// store at path.
func OpenBoltProtector(path string) (*BoltProtector, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open slashing protection database")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(proposalsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(attestationsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize slashing protection buckets")
	}
	return &BoltProtector{db: db}, nil
}

func (s *BoltProtector) Close() error {
	return s.db.Close()
}

func pubkeyBucketName(pubkey keys.ValidatorKey) []byte {
	return []byte(hex.EncodeToString(pubkey[:]))
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// RegisterBlock implements Protector.
func (s *BoltProtector) RegisterBlock(_ primitives.ValidatorIndex, pubkey keys.ValidatorKey, slot primitives.Slot, signingRoot [32]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(proposalsBucket)
		bucket, err := root.CreateBucketIfNotExists(pubkeyBucketName(pubkey))
		if err != nil {
			return err
		}
		key := be64(uint64(slot))
		if existing := bucket.Get(key); existing != nil {
			if bytes.Equal(existing, signingRoot[:]) {
				return nil // idempotent replay, e.g. after a restart.
			}
			var conflict ExistingProposal
			conflict.Slot = slot
			copy(conflict.SigningRoot[:], existing)
			return &ProposalConflict{Existing: conflict}
		}
		return bucket.Put(key, signingRoot[:])
	})
}

// RegisterAttestation implements Protector.
func (s *BoltProtector) RegisterAttestation(_ primitives.ValidatorIndex, pubkey keys.ValidatorKey, source, target primitives.Epoch, signingRoot [32]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(attestationsBucket)
		bucket, err := root.CreateBucketIfNotExists(pubkeyBucketName(pubkey))
		if err != nil {
			return err
		}

		targetKey := be64(uint64(target))
		if existing := bucket.Get(targetKey); existing != nil {
			existingSource := binary.BigEndian.Uint64(existing[:8])
			existingRoot := existing[8:40]
			if bytes.Equal(existingRoot, signingRoot[:]) {
				return nil // idempotent replay for the same target epoch.
			}
			conflict := &AttestationConflict{Kind: DoubleVote}
			conflict.Existing.Source = primitives.Epoch(existingSource)
			conflict.Existing.Target = target
			copy(conflict.Existing.SigningRoot[:], existingRoot)
			return conflict
		}

		// No double vote; check every recorded attestation for a surround
		// in either direction, per spec.md §3's invariant.
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			existingTarget := primitives.Epoch(binary.BigEndian.Uint64(k))
			existingSource := primitives.Epoch(binary.BigEndian.Uint64(v[:8]))

			var kind ConflictKind
			conflict := false
			switch {
			case existingSource < source && target < existingTarget:
				kind, conflict = SurroundedByExisting, true
			case source < existingSource && existingTarget < target:
				kind, conflict = SurroundsExisting, true
			}
			if conflict {
				out := &AttestationConflict{Kind: kind}
				out.Existing.Source = existingSource
				out.Existing.Target = existingTarget
				copy(out.Existing.SigningRoot[:], v[8:40])
				return out
			}
		}

		val := make([]byte, 40)
		binary.BigEndian.PutUint64(val[:8], uint64(source))
		copy(val[8:], signingRoot[:])
		return bucket.Put(targetKey, val)
	})
}

var _ Protector = (*BoltProtector)(nil)
