// Package controller implements the memory controller core: the
// per-bank command-queue scheduler, the refresh engine, and the
// low-power manager (spec §4). It is the "hard part" this repository
// exists to implement; everything else (cycle, request, addr,
// downstream) supports it.
package controller

import (
	"github.com/sarchlab/cyclemem/addr"
	"github.com/sarchlab/cyclemem/controller/internal/state"
	"github.com/sarchlab/cyclemem/cycle"
	"github.com/sarchlab/cyclemem/downstream"
	"github.com/sarchlab/cyclemem/request"
)

// TransactionQueue is an ordered sequence of pending host transactions
// for one scheduling class (spec §3). Selection primitives remove
// from the middle of this slice, so it behaves like the original's
// std::list rather than a strict FIFO.
type TransactionQueue []*request.Request

// QueueAssigner decides which transaction queue a newly arrived
// request belongs to. The default (AssignToSingleQueue) puts
// everything in queue 0.
type QueueAssigner func(req *request.Request, numQueues int) int

// AssignToSingleQueue is the default QueueAssigner: one global queue.
func AssignToSingleQueue(_ *request.Request, _ int) int { return 0 }

// AssignByRank routes a transaction to the queue matching its decoded
// rank, for controllers configured with one queue per rank.
func AssignByRank(req *request.Request, numQueues int) int {
	r := int(req.Address.Rank)
	if r >= numQueues {
		return numQueues - 1
	}
	return r
}

// Comp is the memory controller core. It holds no payload storage
// (spec §1 non-goals) and is driven exclusively by Cycle.
type Comp struct {
	cfg Config

	clock   *cycle.Clock
	decoder *addr.Translator
	channel downstream.Channel
	parent  downstream.Completer
	factory *request.Factory

	state *state.State

	transactionQueues []TransactionQueue
	assignQueue       QueueAssigner

	bankQueues [][]*request.Request // flat, indexed by state.BankIndex

	curRank, curBank                  uint64
	nextRefreshRank, nextRefreshGroup uint64

	refreshBankNum uint64 // number of refresh groups per rank (BANKS/BanksPerRefresh)
	tREFI          cycle.Cycle
	refreshSlice   cycle.Cycle
}

// rowSentinel is the value effectiveRow/effectiveMuxedRow take when a
// sub-array is closed ("ROWS" in spec §3).
func (c *Comp) rowSentinel() uint64 {
	return c.cfg.Rows
}

// InitQueues (re)initializes the transaction queues to numQueues empty
// queues, discarding any previous queues (spec §4, "Transaction
// queue").
func (c *Comp) InitQueues(numQueues int) {
	c.transactionQueues = make([]TransactionQueue, numQueues)
}

// AddTransaction enqueues req into the transaction queue its
// QueueAssigner selects, stamping its arrival cycle and decoding its
// physical address into the (channel, rank, bank, row, column,
// subarray) tuple the scheduler reasons about.
func (c *Comp) AddTransaction(req *request.Request) {
	req.ArrivalCycle = c.clock.GetCurrentCycle()

	tuple := c.decoder.Translate(req.Address.Physical)
	req.Address.Row = tuple.Row
	req.Address.Col = tuple.Col
	req.Address.Bank = tuple.Bank
	req.Address.Rank = tuple.Rank
	req.Address.Channel = tuple.Channel
	req.Address.SubArray = tuple.SubArray

	assign := c.assignQueue
	if assign == nil {
		assign = AssignToSingleQueue
	}

	q := assign(req, len(c.transactionQueues))
	c.transactionQueues[q] = append(c.transactionQueues[q], req)
}

// Cycle advances the downstream channel by n ticks and forwards the
// controller's own clock by the same amount, running the scheduling
// loop once per tick (spec §2: "Cycle(n) advances the downstream by n
// ticks"). Each tick first tries to schedule one new transaction into
// the per-bank command queues (SelectAndIssue), then runs the device
// -facing issue loop (CycleCommandQueues), which is the stage actually
// bound to the "at most one command per tick" constraint.
func (c *Comp) Cycle(n uint64) error {
	for i := uint64(0); i < n; i++ {
		c.clock.Step()
		c.channel.Cycle(1)

		c.SelectAndIssue()

		if err := c.CycleCommandQueues(); err != nil {
			return err
		}
	}

	return nil
}
