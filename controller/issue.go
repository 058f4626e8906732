package controller

import "github.com/sarchlab/cyclemem/request"

// IssueMemoryCommands lowers a selected transaction into device
// commands appended to its bank's command queue (spec §4.4). The
// scheduler primitives' conditions for req's category are assumed to
// still hold; IssueMemoryCommands re-derives the bank's actual state
// and returns false if it no longer matches any of the three cases,
// signaling that the bank changed since selection.
func (c *Comp) IssueMemoryCommands(req *request.Request) bool {
	b := c.bankIdx(req)
	sa := c.subArrayIdx(req)
	row := req.Address.Row
	mux := muxLevel(req, c.cfg.RBSize)

	switch {
	case c.isClosedBankState(b):
		c.issueClosedBank(req, b, sa, row, mux)
		return true

	case c.isDifferentRowState(b, sa, row, mux):
		c.issueRowConflict(req, b, sa, row, mux)
		return true

	case c.isRowHitState(b, sa, row, mux):
		c.issueRowHit(req, b, sa)
		return true

	default:
		return false
	}
}

func (c *Comp) isClosedBankState(b int) bool {
	return !c.state.Bank.ActivateQueued[b] && len(c.bankQueues[b]) == 0
}

func (c *Comp) isDifferentRowState(b, sa int, row, mux uint64) bool {
	if !c.state.Bank.ActivateQueued[b] || len(c.bankQueues[b]) != 0 {
		return false
	}
	return !c.state.SubArray.Active[sa] ||
		c.state.SubArray.EffectiveRow[sa] != row ||
		c.state.SubArray.EffectiveMuxedRow[sa] != mux
}

func (c *Comp) isRowHitState(b, sa int, row, mux uint64) bool {
	return c.state.Bank.ActivateQueued[b] &&
		c.state.SubArray.Active[sa] &&
		c.state.SubArray.EffectiveRow[sa] == row &&
		c.state.SubArray.EffectiveMuxedRow[sa] == mux
}

func (c *Comp) issueClosedBank(req *request.Request, b, sa int, row, mux uint64) {
	c.state.Bank.ActivateQueued[b] = true
	c.state.SubArray.Active[sa] = true
	c.state.SubArray.EffectiveRow[sa] = row
	c.state.SubArray.EffectiveMuxedRow[sa] = mux
	c.state.SubArray.StarvationCounter[sa] = 0

	req.IssueCycle = c.clock.GetCurrentCycle()

	c.bankQueues[b] = append(c.bankQueues[b], c.factory.MakeActivateRequestFromTrigger(req))
	c.appendAccessOrClose(req, b, sa)
}

func (c *Comp) issueRowConflict(req *request.Request, b, sa int, row, mux uint64) {
	c.state.SubArray.StarvationCounter[sa] = 0
	c.state.Bank.ActivateQueued[b] = true

	req.IssueCycle = c.clock.GetCurrentCycle()

	if c.state.SubArray.Active[sa] {
		oldRow := c.state.SubArray.EffectiveRow[sa]
		precharge := c.factory.MakePrechargeRequest(oldRow, 0, req.Address.Bank, req.Address.Rank, req.Address.SubArray)
		c.bankQueues[b] = append(c.bankQueues[b], precharge)
	}

	c.bankQueues[b] = append(c.bankQueues[b], c.factory.MakeActivateRequestFromTrigger(req))

	c.state.SubArray.Active[sa] = true
	c.state.SubArray.EffectiveRow[sa] = row
	c.state.SubArray.EffectiveMuxedRow[sa] = mux

	c.appendAccessOrClose(req, b, sa)
}

// appendAccessOrClose appends req to its bank's command queue as a
// plain access, or, if it carries FLAG_LAST_REQUEST, as the implicit
// -precharge variant that also closes the row immediately (spec §4.3,
// §4.4). Every branch of IssueMemoryCommands that can produce a
// FLAG_LAST_REQUEST winner routes through this so the flag's effect
// does not depend on which of the three cases selected it.
func (c *Comp) appendAccessOrClose(req *request.Request, b, sa int) {
	if !req.IsLastRequest() {
		c.bankQueues[b] = append(c.bankQueues[b], req)
		return
	}

	c.bankQueues[b] = append(c.bankQueues[b], c.factory.MakeImplicitPrechargeRequest(req))
	c.clearSubArray(b, sa)

	if !c.anySubArrayActive(req.Address.Rank, req.Address.Bank) {
		c.state.Bank.ActivateQueued[b] = false
	}
}

func (c *Comp) issueRowHit(req *request.Request, b, sa int) {
	c.state.SubArray.StarvationCounter[sa]++

	req.IssueCycle = c.clock.GetCurrentCycle()

	// A row-hit can only be the last request under relaxed close-page;
	// restricted close-page always precharges immediately after
	// ACTIVATE and should never reach a second, hit, access (spec
	// §4.4, §7).
	if req.IsLastRequest() && c.cfg.ClosePage == ClosePageRestricted {
		panic("controller: row-buffer hit reached under restricted close-page")
	}

	c.appendAccessOrClose(req, b, sa)
}

func (c *Comp) clearSubArray(b, sa int) {
	c.state.SubArray.Active[sa] = false
	c.state.SubArray.EffectiveRow[sa] = c.rowSentinel()
	c.state.SubArray.EffectiveMuxedRow[sa] = c.rowSentinel()
}

func (c *Comp) anySubArrayActive(rank, bank uint64) bool {
	for s := uint64(0); s < c.state.Topo.SubArrayNum; s++ {
		if c.state.SubArray.Active[c.state.SubArrayIndex(rank, bank, s)] {
			return true
		}
	}
	return false
}
