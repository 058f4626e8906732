package controller

import (
	"github.com/sarchlab/cyclemem/addr"
	"github.com/sarchlab/cyclemem/controller/internal/state"
	"github.com/sarchlab/cyclemem/cycle"
	"github.com/sarchlab/cyclemem/downstream"
	"github.com/sarchlab/cyclemem/request"
)

// Builder builds a Comp. Every With* method returns a new Builder
// value so calls chain; Build is the only method that allocates the
// Comp itself.
type Builder struct {
	cfg Config

	clock   *cycle.Clock
	idGen   cycle.IDGenerator
	channel downstream.Channel
	parent  downstream.Completer

	queueAssigner QueueAssigner
	numQueues     int
}

// MakeBuilder creates a builder with default configuration: a single
// transaction queue, no refresh, no low power, open-page policy, a
// sequential ID generator, and the default R:RK:BK:CH:C field order
// (overridden by WithFieldOrder or WithAddressMappingScheme).
func MakeBuilder() Builder {
	return Builder{
		cfg: Config{
			ClosePage:      ClosePageOpen,
			ScheduleScheme: ScheduleFixed,
			DeadlockTimer:  1000,
			RowOrder:       5,
			RankOrder:      4,
			BankOrder:      3,
			ChannelOrder:   2,
			ColOrder:       1,
		},
		idGen:         cycle.NewSequentialIDGenerator(),
		queueAssigner: AssignToSingleQueue,
		numQueues:     1,
	}
}

// WithConfig replaces the whole Config at once.
func (b Builder) WithConfig(cfg Config) Builder {
	b.cfg = cfg
	return b
}

// WithTopology sets the rank/bank/row/column counts.
func (b Builder) WithTopology(ranks, banks, rows, cols uint64) Builder {
	b.cfg.Ranks = ranks
	b.cfg.Banks = banks
	b.cfg.Rows = rows
	b.cfg.Cols = cols
	return b
}

// WithMATHeight configures row-buffer sub-array splitting.
func (b Builder) WithMATHeight(height uint64) Builder {
	b.cfg.MATHeight = height
	return b
}

// WithRBSize sets the row-buffer mux granularity in columns.
func (b Builder) WithRBSize(size uint64) Builder {
	b.cfg.RBSize = size
	return b
}

// WithClosePage sets the row-buffer management policy.
func (b Builder) WithClosePage(p ClosePage) Builder {
	b.cfg.ClosePage = p
	return b
}

// WithScheduleScheme sets the round-robin (rank, bank) scan policy.
func (b Builder) WithScheduleScheme(s ScheduleScheme) Builder {
	b.cfg.ScheduleScheme = s
	return b
}

// WithDeadlockTimer sets the number of cycles a queue head may wait
// before CycleCommandQueues reports a DeadlockError.
func (b Builder) WithDeadlockTimer(n uint64) Builder {
	b.cfg.DeadlockTimer = n
	return b
}

// WithRefresh enables the refresh engine with the given bank-group
// size, refresh window, rows-per-refresh, and delayed-refresh
// threshold.
func (b Builder) WithRefresh(banksPerRefresh, trefw, refreshRows, delayedThreshold uint64) Builder {
	b.cfg.UseRefresh = true
	b.cfg.BanksPerRefresh = banksPerRefresh
	b.cfg.TREFW = trefw
	b.cfg.RefreshRows = refreshRows
	b.cfg.DelayedRefreshThreshold = delayedThreshold
	return b
}

// WithLowPower enables the low-power manager in the given exit-latency
// mode. initPD seeds every rank as already powered down.
func (b Builder) WithLowPower(mode PowerDownMode, initPD bool) Builder {
	b.cfg.UseLowPower = true
	b.cfg.PowerDownMode = mode
	b.cfg.InitPD = initPD
	return b
}

// WithWritePausing enables the write-stalled-read scheduling primitive.
func (b Builder) WithWritePausing(enabled bool) Builder {
	b.cfg.WritePausing = enabled
	return b
}

// WithStarvationThreshold overrides DefaultStarvationThreshold.
func (b Builder) WithStarvationThreshold(n uint64) Builder {
	b.cfg.StarvationThreshold = n
	return b
}

// WithAddressMappingScheme sets the colon-separated field-order scheme
// the address translator uses (addr.Translator.SetAddressMappingScheme).
func (b Builder) WithAddressMappingScheme(scheme string) Builder {
	b.cfg.AddressMappingScheme = scheme
	return b
}

// WithFieldOrder sets the MSB->LSB field order directly, bypassing the
// colon-separated scheme string.
func (b Builder) WithFieldOrder(rowOrder, colOrder, bankOrder, rankOrder, channelOrder int) Builder {
	b.cfg.RowOrder = rowOrder
	b.cfg.ColOrder = colOrder
	b.cfg.BankOrder = bankOrder
	b.cfg.RankOrder = rankOrder
	b.cfg.ChannelOrder = channelOrder
	return b
}

// WithClock sets the shared discrete-event clock. If not called, Build
// allocates a fresh one starting at cycle 0.
func (b Builder) WithClock(clk *cycle.Clock) Builder {
	b.clock = clk
	return b
}

// WithIDGenerator overrides the default sequential ID generator.
func (b Builder) WithIDGenerator(gen cycle.IDGenerator) Builder {
	b.idGen = gen
	return b
}

// WithChannel sets the downstream capability the controller issues
// commands against.
func (b Builder) WithChannel(ch downstream.Channel) Builder {
	b.channel = ch
	return b
}

// WithParent sets the host-side Completer that regains ownership of
// host-owned requests once they complete.
func (b Builder) WithParent(p downstream.Completer) Builder {
	b.parent = p
	return b
}

// WithQueues sets the number of transaction queues and the assigner
// used to route new transactions among them.
func (b Builder) WithQueues(n int, assigner QueueAssigner) Builder {
	b.numQueues = n
	b.queueAssigner = assigner
	return b
}

// Build validates the accumulated configuration and constructs a
// *Comp. It panics on a *ConfigError (invalid topology, refresh or
// power-down settings, or a missing channel), and on the address
// translator's error for a bad field order or mapping scheme: invalid
// configuration is a setup bug the caller must fix before running, not
// a condition to recover from at run time (spec §7).
func (b Builder) Build() *Comp {
	if err := b.cfg.Validate(); err != nil {
		panic(err)
	}

	if b.channel == nil {
		panic(configErrorf(ErrMissingChannel, "a downstream Channel must be set via WithChannel"))
	}

	clk := b.clock
	if clk == nil {
		clk = cycle.NewClock()
	}

	decoder, err := addr.NewTranslator(
		bitWidth(b.cfg.Rows), bitWidth(b.cfg.Cols), bitWidth(b.cfg.Banks), bitWidth(b.cfg.Ranks), 0,
		b.cfg.RowOrder, b.cfg.ColOrder, b.cfg.BankOrder, b.cfg.RankOrder, b.cfg.ChannelOrder,
		addr.WithMATHeight(b.cfg.MATHeight),
	)
	if err != nil {
		panic(err)
	}

	if b.cfg.AddressMappingScheme != "" {
		if err := decoder.SetAddressMappingScheme(b.cfg.AddressMappingScheme); err != nil {
			panic(err)
		}
	}

	topo := state.Topology{
		Ranks:         b.cfg.Ranks,
		Banks:         b.cfg.Banks,
		Rows:          b.cfg.Rows,
		SubArrayNum:   b.cfg.subArrayNum(),
		RefreshGroups: b.cfg.refreshGroupCount(),
	}

	c := &Comp{
		cfg:     b.cfg,
		clock:   clk,
		decoder: decoder,
		channel: b.channel,
		parent:  b.parent,
		factory: &request.Factory{Clock: clk, IDGen: b.idGen, Decoder: decoder},
		state:   state.New(topo, b.cfg.Rows),
		assignQueue: b.queueAssigner,
	}

	c.bankQueues = make([][]*request.Request, b.cfg.Ranks*b.cfg.Banks)
	c.InitQueues(b.numQueues)

	if b.cfg.UseLowPower && b.cfg.InitPD {
		for rank := uint64(0); rank < b.cfg.Ranks; rank++ {
			c.state.Rank.PowerDown[rank] = true
		}
	}

	c.initRefresh()

	return c
}

// bitWidth returns the number of bits needed to address count distinct
// values (ceil(log2(count))).
func bitWidth(count uint64) uint {
	if count <= 1 {
		return 0
	}

	var bits uint
	for n := count - 1; n > 0; n >>= 1 {
		bits++
	}
	return bits
}
