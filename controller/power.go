package controller

import "github.com/sarchlab/cyclemem/request"

// HandleLowPower runs the low-power manager over every rank. A rank
// with any bank-group due for refresh is forced back up (if it is
// down and the channel allows it) ahead of everything else, since a
// powered-down rank cannot take the REFRESH the engine owes it;
// otherwise, ranks already down are brought back up once they have
// pending work and the channel allows it, and ranks still up are
// powered down once the channel allows it (spec §4.7).
func (c *Comp) HandleLowPower() {
	for rank := uint64(0); rank < c.cfg.Ranks; rank++ {
		if c.rankNeedsRefresh(rank) {
			if c.state.Rank.PowerDown[rank] && c.channel.CanPowerUp(rank) {
				c.PowerUp(rank)
			}
			continue
		}

		if c.state.Rank.PowerDown[rank] {
			if c.rankHasPendingWork(rank) && c.channel.CanPowerUp(rank) {
				c.PowerUp(rank)
			}
			continue
		}

		if c.rankHasPendingWork(rank) {
			continue
		}

		op := c.powerDownOp(rank)
		if c.channel.CanPowerDown(op, rank) {
			c.PowerDown(op, rank)
		}
	}
}

// powerDownOp picks which powerdown command a rank should receive:
// active power-down (spec §4.7) if any of its banks is still open,
// otherwise the precharge power-down variant selected by
// Config.PowerDownMode.
func (c *Comp) powerDownOp(rank uint64) request.Type {
	if c.rankHasActiveBank(rank) {
		return request.POWERDOWN_PDA
	}

	if c.cfg.PowerDownMode == PowerDownFastExit {
		return request.POWERDOWN_PDPF
	}
	return request.POWERDOWN_PDPS
}

// PowerDown issues op to rank through the channel and marks it down in
// scheduling state.
func (c *Comp) PowerDown(op request.Type, rank uint64) {
	c.channel.PowerDown(op, rank)
	c.state.Rank.PowerDown[rank] = true
}

// PowerUp issues POWERUP to rank through the channel and clears its
// down state.
func (c *Comp) PowerUp(rank uint64) {
	c.channel.PowerUp(rank)
	c.state.Rank.PowerDown[rank] = false
}

// rankHasActiveBank reports whether any bank owned by rank currently
// has an open row.
func (c *Comp) rankHasActiveBank(rank uint64) bool {
	for bank := uint64(0); bank < c.cfg.Banks; bank++ {
		if c.state.Bank.ActivateQueued[c.state.BankIndex(rank, bank)] {
			return true
		}
	}
	return false
}

// rankHasPendingWork reports whether rank has any queued device
// command, which disqualifies it from being powered down (and, if
// already down, is reason enough to try powering it back up).
func (c *Comp) rankHasPendingWork(rank uint64) bool {
	for bank := uint64(0); bank < c.cfg.Banks; bank++ {
		if len(c.bankQueues[c.state.BankIndex(rank, bank)]) != 0 {
			return true
		}
	}
	return false
}

// rankNeedsRefresh reports whether any bank-group owned by rank has
// reached its delayed-refresh threshold. HandleLowPower uses this to
// force a powered-down rank back up ahead of the refresh engine's next
// HandleRefresh call (spec §4.7).
func (c *Comp) rankNeedsRefresh(rank uint64) bool {
	if !c.cfg.UseRefresh {
		return false
	}

	for group := uint64(0); group < c.refreshBankNum; group++ {
		if c.NeedRefresh(rank, group) {
			return true
		}
	}
	return false
}
