package controller

import "github.com/sarchlab/cyclemem/request"

// SelectAndIssue runs one scheduling scan: for each transaction queue,
// try the selection primitives in priority order and on the first
// hit, lower the winning transaction into device commands via
// IssueMemoryCommands. It returns true if a transaction was dispatched
// this tick.
//
// Starved requests are checked before row-buffer hits and
// write-stalled reads: FindRowBufferHit's and FindWriteStalledRead's
// conditions only ever match a request to the currently open row, so
// once a sub-array's starvation counter reaches threshold the request
// waiting on a different row must preempt any further same-row hits,
// not merely win when no hit happens to be queued. Checking starved
// first is what makes that bound hold instead of depending on the hit
// queue going empty by chance.
func (c *Comp) SelectAndIssue() bool {
	for qi := range c.transactionQueues {
		queue := c.transactionQueues[qi]
		if len(queue) == 0 {
			continue
		}

		newQueue, winner, ok := c.selectWinner(queue)
		if !ok {
			continue
		}

		c.transactionQueues[qi] = newQueue
		c.IssueMemoryCommands(winner)

		return true
	}

	return false
}

func (c *Comp) selectWinner(queue TransactionQueue) (TransactionQueue, *request.Request, bool) {
	if q, req, ok := c.FindStarvedRequest(queue, nil); ok {
		return q, req, true
	}

	if q, req, ok := c.FindRowBufferHit(queue, nil); ok {
		return q, req, true
	}

	if q, req, ok := c.FindWriteStalledRead(queue, nil); ok {
		return q, req, true
	}

	if q, req, ok := c.FindOldestReadyRequest(queue, nil); ok {
		return q, req, true
	}

	if q, req, ok := c.FindClosedBankRequest(queue, nil); ok {
		return q, req, true
	}

	return queue, nil, false
}
