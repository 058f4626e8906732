package request

import "github.com/sarchlab/cyclemem/cycle"

// ReverseTranslator is the minimal capability the factory needs from
// the address translator: composing a tuple back into a physical
// address. It is declared here (rather than importing package addr)
// so request stays a leaf package with no dependency on addressing
// policy.
type ReverseTranslator interface {
	ReverseTranslate(row, col, bank, rank, channel, subarray uint64) uint64
}

// Factory creates controller-owned command records. It is the Go
// shape of the original's MemoryController::Make*Request family
// (spec §4.2): every command it produces is owned by the controller
// and stamped with the current cycle.
type Factory struct {
	Clock   *cycle.Clock
	IDGen   cycle.IDGenerator
	Decoder ReverseTranslator
}

func (f *Factory) newOwned(t Type) *Request {
	return &Request{
		ID:         f.IDGen.Generate(),
		Type:       t,
		IssueCycle: f.Clock.GetCurrentCycle(),
		Owner:      OwnerController,
	}
}

// MakeActivateRequestFromTrigger builds an ACTIVATE command cloning
// the address of triggerRequest.
func (f *Factory) MakeActivateRequestFromTrigger(trigger *Request) *Request {
	r := f.newOwned(ACTIVATE)
	r.Address = trigger.Address
	return r
}

// MakeActivateRequest builds an ACTIVATE command for an explicit
// tuple, composing the physical address via the decoder.
func (f *Factory) MakeActivateRequest(row, col, bank, rank, subarray uint64) *Request {
	return f.makeTupleRequest(ACTIVATE, row, col, bank, rank, subarray)
}

// MakePrechargeRequestFromTrigger builds a PRECHARGE command cloning
// the address of triggerRequest.
func (f *Factory) MakePrechargeRequestFromTrigger(trigger *Request) *Request {
	r := f.newOwned(PRECHARGE)
	r.Address = trigger.Address
	return r
}

// MakePrechargeRequest builds a PRECHARGE command for an explicit
// tuple.
func (f *Factory) MakePrechargeRequest(row, col, bank, rank, subarray uint64) *Request {
	return f.makeTupleRequest(PRECHARGE, row, col, bank, rank, subarray)
}

// MakePrechargeAllRequest builds a PRECHARGE_ALL command for an
// explicit tuple (the row/col fields are meaningless for this
// command but kept for address-decoding symmetry with the original).
func (f *Factory) MakePrechargeAllRequest(row, col, bank, rank, subarray uint64) *Request {
	return f.makeTupleRequest(PRECHARGE_ALL, row, col, bank, rank, subarray)
}

// MakeRefreshRequest builds a REFRESH command targeting the head bank
// of a refresh bank-group.
func (f *Factory) MakeRefreshRequest(row, col, bank, rank, subarray uint64) *Request {
	return f.makeTupleRequest(REFRESH, row, col, bank, rank, subarray)
}

func (f *Factory) makeTupleRequest(t Type, row, col, bank, rank, subarray uint64) *Request {
	r := f.newOwned(t)
	r.Address = Address{
		Physical: f.Decoder.ReverseTranslate(row, col, bank, rank, 0, subarray),
		Row:      row,
		Col:      col,
		Bank:     bank,
		Rank:     rank,
		SubArray: subarray,
	}
	return r
}

// MakeImplicitPrechargeRequest mutates a READ/WRITE into
// READ_PRECHARGE/WRITE_PRECHARGE in place. The trigger request is the
// survivor: no new Request is allocated, matching the original's
// in-place type rewrite (spec §4.2). Calling it again on an already
// -precharged request is a no-op, satisfying the idempotence law in
// spec §8.
func (f *Factory) MakeImplicitPrechargeRequest(trigger *Request) *Request {
	switch trigger.Type {
	case READ:
		trigger.Type = READ_PRECHARGE
	case WRITE:
		trigger.Type = WRITE_PRECHARGE
	}

	trigger.IssueCycle = f.Clock.GetCurrentCycle()

	return trigger
}
