package slashing

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prysmaticlabs/duties-engine/keys"
	"github.com/prysmaticlabs/duties-engine/primitives"
	bolt "go.etcd.io/bbolt"
)

// InterchangeDocument is the EIP-3076 interchange JSON format, supplemented
// per SPEC_FULL.md so an operator can migrate a validator between engine
// instances without re-exposing it to re-signing risk. Grounded on
// validator/slashing-protection/local/standard-protection-format.
type InterchangeDocument struct {
	Metadata struct {
		InterchangeFormatVersion string `json:"interchange_format_version"`
		GenesisValidatorsRoot    string `json:"genesis_validators_root"`
	} `json:"metadata"`
	Data []interchangeValidatorRecord `json:"data"`
}

type interchangeValidatorRecord struct {
	Pubkey             string                      `json:"pubkey"`
	SignedBlocks       []interchangeBlock          `json:"signed_blocks"`
	SignedAttestations []interchangeAttestation    `json:"signed_attestations"`
}

type interchangeBlock struct {
	Slot        string `json:"slot"`
	SigningRoot string `json:"signing_root,omitempty"`
}

type interchangeAttestation struct {
	SourceEpoch string `json:"source_epoch"`
	TargetEpoch string `json:"target_epoch"`
	SigningRoot string `json:"signing_root,omitempty"`
}

// ExportInterchange produces an EIP-3076 document covering every validator
// in the store.
func (s *BoltProtector) ExportInterchange(genesisValidatorsRoot [32]byte) (*InterchangeDocument, error) {
	doc := &InterchangeDocument{}
	doc.Metadata.InterchangeFormatVersion = "5"
	doc.Metadata.GenesisValidatorsRoot = "0x" + hex.EncodeToString(genesisValidatorsRoot[:])

	err := s.db.View(func(tx *bolt.Tx) error {
		records := make(map[string]*interchangeValidatorRecord)
		getRecord := func(pubkeyHex string) *interchangeValidatorRecord {
			if r, ok := records[pubkeyHex]; ok {
				return r
			}
			r := &interchangeValidatorRecord{Pubkey: "0x" + pubkeyHex}
			records[pubkeyHex] = r
			return r
		}

		proposals := tx.Bucket(proposalsBucket)
		if err := proposals.ForEach(func(pubkeyHex, v []byte) error {
			if v != nil {
				return nil // not a nested per-pubkey bucket.
			}
			b := proposals.Bucket(pubkeyHex)
			r := getRecord(string(pubkeyHex))
			return b.ForEach(func(k, v []byte) error {
				r.SignedBlocks = append(r.SignedBlocks, interchangeBlock{
					Slot:        decimal(binary.BigEndian.Uint64(k)),
					SigningRoot: "0x" + hex.EncodeToString(v),
				})
				return nil
			})
		}); err != nil {
			return err
		}

		attestations := tx.Bucket(attestationsBucket)
		if err := attestations.ForEach(func(pubkeyHex, v []byte) error {
			if v != nil {
				return nil
			}
			b := attestations.Bucket(pubkeyHex)
			r := getRecord(string(pubkeyHex))
			return b.ForEach(func(k, v []byte) error {
				r.SignedAttestations = append(r.SignedAttestations, interchangeAttestation{
					SourceEpoch: decimal(binary.BigEndian.Uint64(v[:8])),
					TargetEpoch: decimal(binary.BigEndian.Uint64(k)),
					SigningRoot: "0x" + hex.EncodeToString(v[8:40]),
				})
				return nil
			})
		}); err != nil {
			return err
		}

		for _, r := range records {
			doc.Data = append(doc.Data, *r)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to export slashing protection interchange")
	}
	return doc, nil
}

// ImportInterchange loads a previously exported document, refusing to
// overwrite a conflicting existing record (the same safety check
// RegisterBlock/RegisterAttestation apply on the normal signing path).
func (s *BoltProtector) ImportInterchange(doc *InterchangeDocument) error {
	for _, rec := range doc.Data {
		pubkeyBytes, err := hex.DecodeString(trimHex(rec.Pubkey))
		if err != nil {
			return errors.Wrapf(err, "invalid pubkey %q in interchange document", rec.Pubkey)
		}
		pubkey, ok := keys.FromBytes(pubkeyBytes)
		if !ok {
			return errors.Errorf("invalid pubkey length %q in interchange document", rec.Pubkey)
		}
		for _, b := range rec.SignedBlocks {
			slot, err := parseUint(b.Slot)
			if err != nil {
				return err
			}
			var root [32]byte
			if b.SigningRoot != "" {
				rb, err := hex.DecodeString(trimHex(b.SigningRoot))
				if err != nil {
					return err
				}
				copy(root[:], rb)
			}
			if err := s.RegisterBlock(0, pubkey, primitives.Slot(slot), root); err != nil {
				if _, ok := err.(*ProposalConflict); ok {
					continue // conflicting history already present; the stored record is kept and this one skipped.
				}
				return err
			}
		}
		for _, a := range rec.SignedAttestations {
			source, err := parseUint(a.SourceEpoch)
			if err != nil {
				return err
			}
			target, err := parseUint(a.TargetEpoch)
			if err != nil {
				return err
			}
			var root [32]byte
			if a.SigningRoot != "" {
				rb, err := hex.DecodeString(trimHex(a.SigningRoot))
				if err != nil {
					return err
				}
				copy(root[:], rb)
			}
			if err := s.RegisterAttestation(0, pubkey, primitives.Epoch(source), primitives.Epoch(target), root); err != nil {
				if _, ok := err.(*AttestationConflict); ok {
					continue
				}
				return err
			}
		}
	}
	return nil
}

func trimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func decimal(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
