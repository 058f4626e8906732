package cycle

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// An IDGenerator hands out string identifiers for requests as they are
// created.
type IDGenerator interface {
	Generate() string
}

// NewSequentialIDGenerator returns an ID generator producing "1", "2",
// "3", ... in allocation order. This is the default: the controller is
// single-threaded and deterministic, so IDs should be too, and a
// sequential counter is the only generator that makes two runs of the
// same trace diffable.
func NewSequentialIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

type sequentialIDGenerator struct {
	next uint64
}

func (g *sequentialIDGenerator) Generate() string {
	n := atomic.AddUint64(&g.next, 1)
	return strconv.FormatUint(n, 10)
}

// NewGloballyUniqueIDGenerator returns an ID generator backed by
// rs/xid. The IDs it produces are globally unique but not tied to
// allocation order, which is useful for correlating requests across
// independent runs or external trace stores but unsuitable for a run
// that needs to be byte-for-byte reproducible.
func NewGloballyUniqueIDGenerator() IDGenerator {
	return &xidGenerator{}
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}
