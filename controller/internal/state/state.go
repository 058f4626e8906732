// Package state holds the flat per-bank/per-subarray/per-refresh-group
// scheduling state the controller mutates every cycle. Ground: Design
// Note §9 ("prefer a single flat buffer ... with index helper").
package state

// Topology captures the dimension counts needed to size and index the
// flat state buffers.
type Topology struct {
	Ranks          uint64
	Banks          uint64
	Rows           uint64
	SubArrayNum    uint64
	RefreshGroups  uint64 // BANKS / BanksPerRefresh; 0 if refresh disabled
}

// Bank holds per-(rank,bank) scheduling state.
type Bank struct {
	ActivateQueued  []bool
	BankNeedRefresh []bool
}

// SubArray holds per-(rank,bank,subarray) scheduling state.
type SubArray struct {
	Active             []bool
	EffectiveRow       []uint64
	EffectiveMuxedRow  []uint64
	StarvationCounter  []uint64
}

// RefreshGroup holds per-(rank,group) refresh counters.
type RefreshGroup struct {
	DelayedRefreshCounter []uint64
}

// Rank holds per-rank power state.
type Rank struct {
	PowerDown []bool
}

// State bundles every flat buffer plus the topology used to index
// them.
type State struct {
	Topo Topology

	Bank         Bank
	SubArray     SubArray
	RefreshGroup RefreshGroup
	Rank         Rank
}

// New allocates a zero-valued State for the given topology. rowSentinel
// is the value ("ROWS") used to mark a closed row/mux level.
func New(topo Topology, rowSentinel uint64) *State {
	nBankSlots := topo.Ranks * topo.Banks
	nSubArraySlots := nBankSlots * topo.SubArrayNum
	nRefreshSlots := topo.Ranks * topo.RefreshGroups

	s := &State{
		Topo: topo,
		Bank: Bank{
			ActivateQueued:  make([]bool, nBankSlots),
			BankNeedRefresh: make([]bool, nBankSlots),
		},
		SubArray: SubArray{
			Active:            make([]bool, nSubArraySlots),
			EffectiveRow:      make([]uint64, nSubArraySlots),
			EffectiveMuxedRow: make([]uint64, nSubArraySlots),
			StarvationCounter: make([]uint64, nSubArraySlots),
		},
		RefreshGroup: RefreshGroup{
			DelayedRefreshCounter: make([]uint64, nRefreshSlots),
		},
		Rank: Rank{
			PowerDown: make([]bool, topo.Ranks),
		},
	}

	for i := range s.SubArray.EffectiveRow {
		s.SubArray.EffectiveRow[i] = rowSentinel
		s.SubArray.EffectiveMuxedRow[i] = rowSentinel
	}

	return s
}

// BankIndex returns the flat index for (rank, bank).
func (s *State) BankIndex(rank, bank uint64) int {
	return int(rank*s.Topo.Banks + bank)
}

// SubArrayIndex returns the flat index for (rank, bank, subarray).
func (s *State) SubArrayIndex(rank, bank, subarray uint64) int {
	return int((rank*s.Topo.Banks+bank)*s.Topo.SubArrayNum + subarray)
}

// RefreshGroupIndex returns the flat index for (rank, group).
func (s *State) RefreshGroupIndex(rank, group uint64) int {
	return int(rank*s.Topo.RefreshGroups + group)
}
