package duties

import "github.com/pkg/errors"

// Engine-internal error kinds, per spec.md §7. These are gate denials or
// per-duty abort reasons; none of them ever tears down the engine loop.
var (
	ErrNotSynced                 = errors.New("not synced")
	ErrDoppelganger               = errors.New("doppelganger detection window active")
	ErrHeadBehindSlot             = errors.New("head behind requested slot")
	ErrHeadAheadOfSlot            = errors.New("head already advanced past requested slot")
	ErrEth1DepositsUnavailable    = errors.New("eth1 deposits unavailable")
	ErrSlashingProtectionTripped = errors.New("slashing protection tripped")
	ErrSignerFailure              = errors.New("signer failure")
	ErrPoolMiss                   = errors.New("no content available from pool")
	ErrNoProposer                  = errors.New("no proposer resolved, or proposer not locally attached")
)

// GossipRejectedError wraps a gossip-validation rejection reason for
// external API submissions, per spec.md §7: "returned to caller verbatim."
type GossipRejectedError struct {
	Reason string
}

func (e *GossipRejectedError) Error() string {
	return "gossip rejected: " + e.Reason
}
