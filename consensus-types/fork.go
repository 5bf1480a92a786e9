package types

// Fork names the consensus-layer fork a block, state, or aggregate belongs
// to. The duty engine dispatches on this tag rather than using interface
// inheritance, per spec.md's design note on forked variants.
type Fork uint8

const (
	Phase0 Fork = iota
	Altair
	Bellatrix
	Capella
	Deneb
)

func (f Fork) String() string {
	switch f {
	case Phase0:
		return "phase0"
	case Altair:
		return "altair"
	case Bellatrix:
		return "bellatrix"
	case Capella:
		return "capella"
	case Deneb:
		return "deneb"
	default:
		return "unknown"
	}
}

// SupportsSyncCommittees reports whether the fork carries sync-committee
// messages and contributions (Altair onward).
func (f Fork) SupportsSyncCommittees() bool {
	return f >= Altair
}

// ForkVersion is a 4-byte domain-separation tag, distinct per fork.
type ForkVersion [4]byte

// Domain identifies the signature domain (attester, proposer, randao, ...).
type Domain [4]byte

var (
	DomainBeaconProposer              = Domain{0x00, 0x00, 0x00, 0x00}
	DomainBeaconAttester              = Domain{0x01, 0x00, 0x00, 0x00}
	DomainRandao                      = Domain{0x02, 0x00, 0x00, 0x00}
	DomainSelectionProof              = Domain{0x05, 0x00, 0x00, 0x00}
	DomainAggregateAndProof           = Domain{0x06, 0x00, 0x00, 0x00}
	DomainSyncCommittee               = Domain{0x07, 0x00, 0x00, 0x00}
	DomainSyncCommitteeSelectionProof = Domain{0x08, 0x00, 0x00, 0x00}
	DomainContributionAndProof        = Domain{0x09, 0x00, 0x00, 0x00}
)
