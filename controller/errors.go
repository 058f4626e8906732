package controller

import (
	"fmt"

	"github.com/sarchlab/cyclemem/cycle"
	"github.com/sarchlab/cyclemem/request"
)

// DeadlockError is returned by CycleCommandQueues when a per-bank
// command queue's head has been waiting longer than DeadlockTimer
// cycles. Design Note §9 reframes the original's
// raise(SIGSTOP); exit(1) as a structured error the outer driver
// decides how to handle, instead of a silently-unsuppressable abort.
type DeadlockError struct {
	Rank, Bank uint64
	Command    *request.Request
	QueuedAt   cycle.Cycle
	Now        cycle.Cycle
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf(
		"controller: deadlock watchdog: bank %d rank %d command %s queued at cycle %d has not issued by cycle %d",
		e.Bank, e.Rank, e.Command.Type, e.QueuedAt, e.Now,
	)
}
