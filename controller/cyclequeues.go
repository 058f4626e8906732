package controller

import (
	"github.com/sarchlab/cyclemem/cycle"
	"github.com/sarchlab/cyclemem/downstream"
)

// CycleCommandQueues is the per-tick issue loop (spec §4.5): low
// power management, then refresh, then at most one device command
// issued to the channel across the whole controller. The deadlock
// watchdog runs only on a tick where neither refresh nor the bank scan
// issued a command; it then returns a *DeadlockError if any bank's
// queue head has waited past DeadlockTimer. Callers must not suppress
// it silently (spec §7).
func (c *Comp) CycleCommandQueues() error {
	if c.cfg.UseLowPower {
		c.HandleLowPower()
	}

	if c.cfg.UseRefresh {
		if c.HandleRefresh() {
			return nil
		}
	}

	if c.scanAndIssue() {
		return nil
	}

	return c.checkDeadlock()
}

// scanAndIssue scans (rank, bank) starting at (curRank, curBank) in
// round-robin order, issuing the first issuable queue head it finds.
func (c *Comp) scanAndIssue() bool {
	for rankIdx := uint64(0); rankIdx < c.cfg.Ranks; rankIdx++ {
		rank := (c.curRank + rankIdx) % c.cfg.Ranks

		for bankIdx := uint64(0); bankIdx < c.cfg.Banks; bankIdx++ {
			bank := (c.curBank + bankIdx) % c.cfg.Banks
			b := c.state.BankIndex(rank, bank)

			queue := c.bankQueues[b]
			if len(queue) == 0 {
				continue
			}

			head := queue[0]
			var fail downstream.FailReason
			if c.channel.IsIssuable(head, &fail) {
				head.IssueCycle = c.clock.GetCurrentCycle()
				c.channel.IssueCommand(head)
				c.bankQueues[b] = queue[1:]
				c.moveRankBank()
				return true
			}
		}
	}

	return false
}

// checkDeadlock implements the watchdog: any non-empty queue whose
// head has been waiting longer than DeadlockTimer cycles since it was
// queued is a fatal deadlock (spec §4.5, §7, §8 scenario 5).
func (c *Comp) checkDeadlock() error {
	now := c.clock.GetCurrentCycle()

	for rank := uint64(0); rank < c.cfg.Ranks; rank++ {
		for bank := uint64(0); bank < c.cfg.Banks; bank++ {
			b := c.state.BankIndex(rank, bank)
			queue := c.bankQueues[b]
			if len(queue) == 0 {
				continue
			}

			head := queue[0]
			if now-head.IssueCycle > cycle.Cycle(c.cfg.DeadlockTimer) {
				return &DeadlockError{
					Rank:     rank,
					Bank:     bank,
					Command:  head,
					QueuedAt: head.IssueCycle,
					Now:      now,
				}
			}
		}
	}

	return nil
}

// moveRankBank advances (curRank, curBank) according to ScheduleScheme
// (spec §4.5): fixed scheduling never advances; rank-first advances
// rank and carries into bank on wrap; bank-first is the mirror image.
func (c *Comp) moveRankBank() {
	switch c.cfg.ScheduleScheme {
	case ScheduleRankFirst:
		c.curRank++
		if c.curRank == c.cfg.Ranks {
			c.curRank = 0
			c.curBank = (c.curBank + 1) % c.cfg.Banks
		}
	case ScheduleBankFirst:
		c.curBank++
		if c.curBank == c.cfg.Banks {
			c.curBank = 0
			c.curRank = (c.curRank + 1) % c.cfg.Ranks
		}
	}
}
