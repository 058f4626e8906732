package controller

import (
	"github.com/sarchlab/cyclemem/cycle"
	"github.com/sarchlab/cyclemem/downstream"
)

// refreshPulse is the payload of a KindRefreshPulse event: the
// (rank, group) pair due for its periodic delayed-refresh-counter
// bump (spec §4.6; original MemoryController::RefreshTimer).
type refreshPulse struct {
	Rank  uint64
	Group uint64
}

// Handle implements cycle.Handler so the controller can be its own
// refresh-pulse handler: pulses are self-rescheduling events on the
// controller's own clock (spec §4.6, §4.9).
func (c *Comp) Handle(e cycle.Event) {
	if e.Kind() != cycle.KindRefreshPulse {
		return
	}

	p := e.Payload().(refreshPulse)
	c.ProcessRefreshPulse(p.Rank, p.Group)
}

// initRefresh partitions BANKS into groups of BanksPerRefresh banks,
// derives tREFI and refreshSlice from TREFW/ROWS/RefreshRows, and
// schedules every (rank, group)'s first pulse staggered one
// refreshSlice apart so refresh traffic never bursts across the whole
// channel at once (spec §4.6).
func (c *Comp) initRefresh() {
	if !c.cfg.UseRefresh {
		return
	}

	groups := c.cfg.refreshGroupCount()
	c.refreshBankNum = groups

	pulsesPerWindow := c.cfg.Rows / c.cfg.RefreshRows
	c.tREFI = cycle.Cycle(c.cfg.TREFW / pulsesPerWindow)
	c.refreshSlice = c.tREFI / cycle.Cycle(c.cfg.Ranks*groups)

	now := c.clock.GetCurrentCycle()
	slice := cycle.Cycle(0)

	for rank := uint64(0); rank < c.cfg.Ranks; rank++ {
		for group := uint64(0); group < groups; group++ {
			at := now + c.tREFI + slice
			c.clock.InsertEvent(cycle.KindRefreshPulse, c, refreshPulse{Rank: rank, Group: group}, at)
			slice += c.refreshSlice
		}
	}
}

// ProcessRefreshPulse bumps (rank, group)'s delayed-refresh counter,
// marks its banks as needing refresh once the counter reaches
// DelayedRefreshThreshold, and reschedules itself tREFI cycles out
// (spec §4.6).
func (c *Comp) ProcessRefreshPulse(rank, group uint64) {
	c.IncrementRefreshCounter(rank, group)

	if c.NeedRefresh(rank, group) {
		c.SetRefresh(rank, group)
	}

	next := c.clock.GetCurrentCycle() + c.tREFI
	c.clock.InsertEvent(cycle.KindRefreshPulse, c, refreshPulse{Rank: rank, Group: group}, next)
}

// HandleRefresh services at most one refresh group per call, scanning
// (rank, group) round-robin from (nextRefreshRank, nextRefreshGroup).
// A group that needs refresh but cannot issue yet has its active banks
// explicitly precharged instead, so the REFRESH eventually becomes
// issuable, and the scan continues to the next due group in the same
// call; a group that successfully issues its REFRESH counts as this
// tick's one device command and the call returns immediately (spec
// §4.5, §4.6).
func (c *Comp) HandleRefresh() bool {
	groups := c.refreshBankNum
	if groups == 0 {
		return false
	}

	total := c.cfg.Ranks * groups
	for i := uint64(0); i < total; i++ {
		rank, group := c.nextRefreshRank, c.nextRefreshGroup
		c.advanceRefreshScan()

		if !c.NeedRefresh(rank, group) || !c.IsRefreshBankQueueEmpty(rank, group) {
			continue
		}

		headBank := group * c.cfg.BanksPerRefresh
		refreshCmd := c.factory.MakeRefreshRequest(0, 0, headBank, rank, 0)

		var fail downstream.FailReason
		if !c.channel.IsIssuable(refreshCmd, &fail) {
			c.prechargeGroup(rank, group)
			continue
		}

		refreshCmd.IssueCycle = c.clock.GetCurrentCycle()
		c.channel.IssueCommand(refreshCmd)

		c.DecrementRefreshCounter(rank, group)
		if !c.NeedRefresh(rank, group) {
			c.ResetRefresh(rank, group)
		}

		return true
	}

	return false
}

func (c *Comp) advanceRefreshScan() {
	c.nextRefreshGroup++
	if c.nextRefreshGroup == c.refreshBankNum {
		c.nextRefreshGroup = 0
		c.nextRefreshRank = (c.nextRefreshRank + 1) % c.cfg.Ranks
	}
}

// prechargeGroup appends an explicit PRECHARGE_ALL for every active
// bank in (rank, group) and clears its sub-array state, clearing the
// way for the pending REFRESH (spec §4.6).
func (c *Comp) prechargeGroup(rank, group uint64) {
	for _, bank := range c.banksInGroup(group) {
		b := c.state.BankIndex(rank, bank)
		if !c.state.Bank.ActivateQueued[b] {
			continue
		}

		cmd := c.factory.MakePrechargeAllRequest(0, 0, bank, rank, 0)
		cmd.IssueCycle = c.clock.GetCurrentCycle()
		c.bankQueues[b] = append(c.bankQueues[b], cmd)

		for sa := uint64(0); sa < c.state.Topo.SubArrayNum; sa++ {
			c.clearSubArray(b, c.state.SubArrayIndex(rank, bank, sa))
		}

		c.state.Bank.ActivateQueued[b] = false
	}
}

func (c *Comp) banksInGroup(group uint64) []uint64 {
	banks := make([]uint64, c.cfg.BanksPerRefresh)
	for i := range banks {
		banks[i] = group*c.cfg.BanksPerRefresh + uint64(i)
	}
	return banks
}

// NeedRefresh reports whether (rank, group)'s delayed-refresh counter
// has reached DelayedRefreshThreshold.
func (c *Comp) NeedRefresh(rank, group uint64) bool {
	g := c.state.RefreshGroupIndex(rank, group)
	return c.state.RefreshGroup.DelayedRefreshCounter[g] >= c.cfg.DelayedRefreshThreshold
}

// SetRefresh marks every bank in (rank, group) as needing refresh,
// gating FindClosedBankRequest/FindOldestReadyRequest/FindStarvedRequest
// from scheduling new ACTIVATEs there until ResetRefresh clears it.
func (c *Comp) SetRefresh(rank, group uint64) {
	for _, bank := range c.banksInGroup(group) {
		c.state.Bank.BankNeedRefresh[c.state.BankIndex(rank, bank)] = true
	}
}

// ResetRefresh clears the refresh gate on every bank in (rank, group).
func (c *Comp) ResetRefresh(rank, group uint64) {
	for _, bank := range c.banksInGroup(group) {
		c.state.Bank.BankNeedRefresh[c.state.BankIndex(rank, bank)] = false
	}
}

// IncrementRefreshCounter bumps (rank, group)'s delayed-refresh
// counter by one pulse.
func (c *Comp) IncrementRefreshCounter(rank, group uint64) {
	g := c.state.RefreshGroupIndex(rank, group)
	c.state.RefreshGroup.DelayedRefreshCounter[g]++
}

// DecrementRefreshCounter consumes one owed refresh from (rank,
// group)'s counter after a REFRESH issues.
func (c *Comp) DecrementRefreshCounter(rank, group uint64) {
	g := c.state.RefreshGroupIndex(rank, group)
	if c.state.RefreshGroup.DelayedRefreshCounter[g] > 0 {
		c.state.RefreshGroup.DelayedRefreshCounter[g]--
	}
}

// IsRefreshBankQueueEmpty reports whether every bank in (rank, group)
// has an empty command queue, the precondition HandleRefresh requires
// before it will consider issuing that group's REFRESH.
func (c *Comp) IsRefreshBankQueueEmpty(rank, group uint64) bool {
	for _, bank := range c.banksInGroup(group) {
		if len(c.bankQueues[c.state.BankIndex(rank, bank)]) != 0 {
			return false
		}
	}
	return true
}
