package controller

import "github.com/sarchlab/cyclemem/request"

// RequestComplete implements downstream.Completer: the channel calls
// it when a command finishes. A completing REFRESH is the same
// self-rescheduling pulse the periodic timer drives, so it is handed
// to ProcessRefreshPulse (the counter was already decremented
// synchronously at issue time in HandleRefresh); other
// controller-owned commands (ACTIVATE, PRECHARGE, ...) are simply
// retired; host-owned requests are handed back up to the parent
// Completer (spec §4.8). A host-owned request completing with no
// parent wired is a setup bug, not a runtime condition callers can
// recover from, so it panics rather than surfacing a
// silently-ignorable error (spec §7, "ownership error").
func (c *Comp) RequestComplete(req *request.Request) {
	if req.Type == request.REFRESH {
		rank := req.Address.Rank
		group := c.refreshGroupIndexForBank(req.Address.Bank)
		c.ProcessRefreshPulse(rank, group)
		return
	}

	if req.Owner == request.OwnerController {
		return
	}

	if c.parent == nil {
		panic("controller: completing request is host-owned and no parent is wired")
	}

	c.parent.RequestComplete(req)
}

func (c *Comp) refreshGroupIndexForBank(bank uint64) uint64 {
	return bank / c.cfg.BanksPerRefresh
}
