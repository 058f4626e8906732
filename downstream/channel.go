// Package downstream declares the narrow capability interfaces the
// controller holds for its child (the interconnect/rank/bank/subarray
// timing model) and its parent (the host). Per Design Note §9, the
// controller never downcasts into the child's object graph; it only
// calls these capabilities.
package downstream

import (
	"github.com/sarchlab/cyclemem/request"
)

// FailReason explains why a command was not issuable.
type FailReason struct {
	Reason string
}

// Channel is the capability surface of the downstream interconnect.
// The controller holds exactly one Channel for its child; it is
// accessed only through these methods (spec §6, Design Note §9).
type Channel interface {
	// IsIssuable reports whether cmd is timing-legal to issue right
	// now. fail, if non-nil, is populated with the reason when the
	// result is false.
	IsIssuable(cmd *request.Request, fail *FailReason) bool

	// IssueCommand commits cmd to the channel. The caller must have
	// already set cmd.IssueCycle.
	IssueCommand(cmd *request.Request)

	IsRankIdle(rank uint64) bool
	CanPowerDown(op request.Type, rank uint64) bool
	CanPowerUp(rank uint64) bool
	PowerDown(op request.Type, rank uint64)
	PowerUp(rank uint64)

	// Cycle advances the channel by n ticks.
	Cycle(n uint64)

	// QuerySubArrayState reports whether the sub-array addressed by
	// tuple is mid-write, supporting write-pausing (spec §4.3, §9;
	// SPEC_FULL.md §4.12) without the controller downcasting into a
	// SubArray type.
	QuerySubArrayState(rank, bank, subarray uint64) SubArrayState
}

// SubArrayState is the write-pausing-relevant state of one sub-array.
type SubArrayState struct {
	IsWriting bool
}

// Completer is the capability surface of the controller's parent (the
// host). It regains ownership of host-owned requests once they
// complete.
type Completer interface {
	RequestComplete(req *request.Request)
}
