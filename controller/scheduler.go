package controller

import "github.com/sarchlab/cyclemem/request"

// Predicate is a user-supplied filter a selection primitive ANDs with
// its own condition. A nil Predicate behaves as always-true (the
// original's DummyPredicate, spec §4.3).
type Predicate func(req *request.Request) bool

func applyPredicate(pred Predicate, req *request.Request) bool {
	if pred == nil {
		return true
	}
	return pred(req)
}

func muxLevel(req *request.Request, rbSize uint64) uint64 {
	if rbSize == 0 {
		return req.Address.Col
	}
	return req.Address.Col / rbSize
}

// removeAt deletes the element at index i from the queue, preserving
// the order of the rest (matches std::list::erase semantics: O(1)
// conceptually, O(n) here since the underlying queue is a slice).
func removeAt(q TransactionQueue, i int) TransactionQueue {
	copy(q[i:], q[i+1:])
	return q[:len(q)-1]
}

// isLastRequest implements spec §4.3's FLAG_LAST_REQUEST rule: always
// true under restricted close-page, never true under open-page, and
// under relaxed close-page true only when no other transaction
// remaining in the queue shares the winner's (rank, bank, row,
// subarray).
func (c *Comp) isLastRequest(remaining TransactionQueue, winner *request.Request) bool {
	switch c.cfg.ClosePage {
	case ClosePageOpen:
		return false
	case ClosePageRestricted:
		return true
	default: // ClosePageRelaxed
		for _, other := range remaining {
			a, b := winner.Address, other.Address
			if a.Rank == b.Rank && a.Bank == b.Bank && a.Row == b.Row && a.SubArray == b.SubArray {
				return false
			}
		}
		return true
	}
}

func (c *Comp) bankIdx(req *request.Request) int {
	return c.state.BankIndex(req.Address.Rank, req.Address.Bank)
}

func (c *Comp) subArrayIdx(req *request.Request) int {
	return c.state.SubArrayIndex(req.Address.Rank, req.Address.Bank, req.Address.SubArray)
}

func (c *Comp) bankQueueEmpty(req *request.Request) bool {
	return len(c.bankQueues[c.bankIdx(req)]) == 0
}

func (c *Comp) refreshGated(req *request.Request) bool {
	return c.state.Bank.BankNeedRefresh[c.bankIdx(req)]
}

// selectFirst scans queue for the first request satisfying cond,
// removes it, tags it with FLAG_LAST_REQUEST per policy, and returns
// it. It is the shared body of the five singular Find* primitives
// (spec §4.3).
func (c *Comp) selectFirst(
	queue TransactionQueue,
	pred Predicate,
	cond func(req *request.Request) bool,
) (TransactionQueue, *request.Request, bool) {
	for i, req := range queue {
		if cond(req) && applyPredicate(pred, req) {
			rest := removeAt(queue, i)
			if c.isLastRequest(rest, req) {
				req.SetLastRequest(true)
			}
			return rest, req, true
		}
	}
	return queue, nil, false
}

// selectAll drains every request satisfying cond from queue. Plural
// variants never set FLAG_LAST_REQUEST (spec §4.3).
func (c *Comp) selectAll(
	queue TransactionQueue,
	pred Predicate,
	cond func(req *request.Request) bool,
) (TransactionQueue, []*request.Request) {
	var selected []*request.Request
	kept := queue[:0:0]

	for _, req := range queue {
		if cond(req) && applyPredicate(pred, req) {
			selected = append(selected, req)
		} else {
			kept = append(kept, req)
		}
	}

	return kept, selected
}

// FindRowBufferHit selects the first request in queue whose target
// sub-array is open at exactly the requested row and mux level, with
// nothing already queued ahead of it on that bank (spec §4.3).
func (c *Comp) FindRowBufferHit(queue TransactionQueue, pred Predicate) (TransactionQueue, *request.Request, bool) {
	return c.selectFirst(queue, pred, c.isRowBufferHit)
}

func (c *Comp) isRowBufferHit(req *request.Request) bool {
	sa := c.subArrayIdx(req)
	return c.state.SubArray.Active[sa] &&
		c.state.SubArray.EffectiveRow[sa] == req.Address.Row &&
		c.state.SubArray.EffectiveMuxedRow[sa] == muxLevel(req, c.cfg.RBSize) &&
		!c.refreshGated(req) &&
		c.bankQueueEmpty(req)
}

// FindWriteStalledRead selects a READ that row-buffer-hits a
// sub-array currently mid-write, pausing the write so the read can
// proceed (spec §4.3, §9; SPEC_FULL.md §4.12). It is a no-op unless
// WritePausing is enabled.
func (c *Comp) FindWriteStalledRead(queue TransactionQueue, pred Predicate) (TransactionQueue, *request.Request, bool) {
	if !c.cfg.WritePausing {
		return queue, nil, false
	}

	return c.selectFirst(queue, pred, func(req *request.Request) bool {
		if req.Type != request.READ {
			return false
		}
		if !c.isRowBufferHit(req) {
			return false
		}

		sub := c.channel.QuerySubArrayState(req.Address.Rank, req.Address.Bank, req.Address.SubArray)
		if !sub.IsWriting {
			return false
		}

		return c.channel.IsIssuable(req, nil)
	})
}

// FindStarvedRequest selects the first request whose bank is active
// but whose target sub-array is closed or open at a different row or
// mux level, once that sub-array's starvation counter has reached the
// threshold, ahead of further row-buffer hits on that sub-array (spec
// §4.3).
func (c *Comp) FindStarvedRequest(queue TransactionQueue, pred Predicate) (TransactionQueue, *request.Request, bool) {
	return c.selectFirst(queue, pred, c.isStarved)
}

func (c *Comp) isStarved(req *request.Request) bool {
	b := c.bankIdx(req)
	sa := c.subArrayIdx(req)

	rowOrMuxMiss := !c.state.SubArray.Active[sa] ||
		c.state.SubArray.EffectiveRow[sa] != req.Address.Row ||
		c.state.SubArray.EffectiveMuxedRow[sa] != muxLevel(req, c.cfg.RBSize)

	return c.state.Bank.ActivateQueued[b] &&
		rowOrMuxMiss &&
		!c.refreshGated(req) &&
		c.state.SubArray.StarvationCounter[sa] >= c.cfg.starvationThreshold() &&
		c.bankQueueEmpty(req)
}

// FindOldestReadyRequest selects the first request targeting any
// already-active bank (row-hit or not), oldest first by queue
// position (spec §4.3).
func (c *Comp) FindOldestReadyRequest(queue TransactionQueue, pred Predicate) (TransactionQueue, *request.Request, bool) {
	return c.selectFirst(queue, pred, c.isOldestReady)
}

func (c *Comp) isOldestReady(req *request.Request) bool {
	b := c.bankIdx(req)
	return c.state.Bank.ActivateQueued[b] && !c.refreshGated(req) && c.bankQueueEmpty(req)
}

// FindClosedBankRequest selects the first request targeting a bank
// that is not currently active (spec §4.3).
func (c *Comp) FindClosedBankRequest(queue TransactionQueue, pred Predicate) (TransactionQueue, *request.Request, bool) {
	return c.selectFirst(queue, pred, c.isClosedBank)
}

func (c *Comp) isClosedBank(req *request.Request) bool {
	b := c.bankIdx(req)
	return !c.state.Bank.ActivateQueued[b] && !c.refreshGated(req) && c.bankQueueEmpty(req)
}

// FindRowBufferHits is the plural variant of FindRowBufferHit: it
// drains every matching request instead of stopping at the first
// (spec §4.3).
func (c *Comp) FindRowBufferHits(queue TransactionQueue, pred Predicate) (TransactionQueue, []*request.Request) {
	return c.selectAll(queue, pred, c.isRowBufferHit)
}

// FindStarvedRequests is the plural variant of FindStarvedRequest.
func (c *Comp) FindStarvedRequests(queue TransactionQueue, pred Predicate) (TransactionQueue, []*request.Request) {
	return c.selectAll(queue, pred, c.isStarved)
}

// FindOldestReadyRequests is the plural variant of
// FindOldestReadyRequest.
func (c *Comp) FindOldestReadyRequests(queue TransactionQueue, pred Predicate) (TransactionQueue, []*request.Request) {
	return c.selectAll(queue, pred, c.isOldestReady)
}

// FindClosedBankRequests is the plural variant of
// FindClosedBankRequest.
func (c *Comp) FindClosedBankRequests(queue TransactionQueue, pred Predicate) (TransactionQueue, []*request.Request) {
	return c.selectAll(queue, pred, c.isClosedBank)
}
