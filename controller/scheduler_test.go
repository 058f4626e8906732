package controller_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cyclemem/controller"
	"github.com/sarchlab/cyclemem/downstream"
	"github.com/sarchlab/cyclemem/request"
)

// openRow1 drives a single-bank controller through a closed-bank
// ACTIVATE and access for row 1, leaving the bank active at row 1
// with its starvation counter at zero, without relying on any
// particular scheduling priority under test.
func openRow1(c *controller.Comp) {
	c.AddTransaction(hostRequest(request.READ, 1))
	Expect(c.Cycle(2)).To(Succeed())
}

var _ = Describe("Selection primitives", func() {
	var (
		mockCtrl *gomock.Controller
		ch       *MockChannel
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		ch = NewMockChannel(mockCtrl)
		ch.EXPECT().Cycle(gomock.Any()).AnyTimes()
		ch.EXPECT().IsIssuable(gomock.Any(), gomock.Any()).Return(true).AnyTimes()
		ch.EXPECT().IssueCommand(gomock.Any()).AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("FindClosedBankRequest matches a request on a bank that was never activated", func() {
		c := newOpenPageComp(ch, controller.ClosePageOpen)
		c.InitQueues(1)

		req := &request.Request{Type: request.READ, Address: request.Address{Row: 3}}
		queue := controller.TransactionQueue{req}

		rest, winner, ok := c.FindClosedBankRequest(queue, nil)

		Expect(ok).To(BeTrue())
		Expect(winner).To(BeIdenticalTo(req))
		Expect(rest).To(BeEmpty())
	})

	It("FindRowBufferHit matches a request to the currently open row", func() {
		c := newOpenPageComp(ch, controller.ClosePageOpen)
		c.InitQueues(1)
		openRow1(c)

		hit := &request.Request{Type: request.READ, Address: request.Address{Row: 1}}
		queue := controller.TransactionQueue{hit}

		rest, winner, ok := c.FindRowBufferHit(queue, nil)

		Expect(ok).To(BeTrue())
		Expect(winner).To(BeIdenticalTo(hit))
		Expect(rest).To(BeEmpty())
	})

	It("FindRowBufferHit does not match a request to a different row", func() {
		c := newOpenPageComp(ch, controller.ClosePageOpen)
		c.InitQueues(1)
		openRow1(c)

		miss := &request.Request{Type: request.READ, Address: request.Address{Row: 2}}
		queue := controller.TransactionQueue{miss}

		_, _, ok := c.FindRowBufferHit(queue, nil)

		Expect(ok).To(BeFalse())
	})

	It("FindOldestReadyRequest matches any request on an active bank, hit or not", func() {
		c := newOpenPageComp(ch, controller.ClosePageOpen)
		c.InitQueues(1)
		openRow1(c)

		miss := &request.Request{Type: request.READ, Address: request.Address{Row: 2}}
		queue := controller.TransactionQueue{miss}

		rest, winner, ok := c.FindOldestReadyRequest(queue, nil)

		Expect(ok).To(BeTrue())
		Expect(winner).To(BeIdenticalTo(miss))
		Expect(rest).To(BeEmpty())
	})

	It("FindOldestReadyRequest does not match against a bank that was never activated", func() {
		c := newOpenPageComp(ch, controller.ClosePageOpen)
		c.InitQueues(1)

		req := &request.Request{Type: request.READ, Address: request.Address{Row: 3}}
		queue := controller.TransactionQueue{req}

		_, _, ok := c.FindOldestReadyRequest(queue, nil)

		Expect(ok).To(BeFalse())
	})

	It("FindStarvedRequest only matches once the sub-array's counter reaches threshold", func() {
		c := controller.MakeBuilder().
			WithTopology(1, 1, 16, 8).
			WithClosePage(controller.ClosePageOpen).
			WithStarvationThreshold(1).
			WithDeadlockTimer(20).
			WithChannel(ch).
			Build()
		c.InitQueues(1)
		openRow1(c)

		miss := &request.Request{Type: request.READ, Address: request.Address{Row: 2}}
		queue := controller.TransactionQueue{miss}

		_, _, before := c.FindStarvedRequest(queue, nil)
		Expect(before).To(BeFalse(), "starvation counter is still zero, nothing is starved yet")

		// Retire one more row-1 hit to push the counter to the
		// threshold.
		c.AddTransaction(hostRequest(request.READ, 1))
		Expect(c.Cycle(1)).To(Succeed())

		_, winner, after := c.FindStarvedRequest(queue, nil)
		Expect(after).To(BeTrue())
		Expect(winner).To(BeIdenticalTo(miss))
	})

	It("FindWriteStalledRead is a no-op when WritePausing is disabled", func() {
		c := newOpenPageComp(ch, controller.ClosePageOpen)
		c.InitQueues(1)
		openRow1(c)

		hit := &request.Request{Type: request.READ, Address: request.Address{Row: 1}}
		queue := controller.TransactionQueue{hit}

		_, _, ok := c.FindWriteStalledRead(queue, nil)

		Expect(ok).To(BeFalse())
	})

	It("FindWriteStalledRead matches a same-row READ whose sub-array is mid-write", func() {
		writingCh := NewMockChannel(mockCtrl)
		writingCh.EXPECT().Cycle(gomock.Any()).AnyTimes()
		writingCh.EXPECT().IsIssuable(gomock.Any(), gomock.Any()).Return(true).AnyTimes()
		writingCh.EXPECT().IssueCommand(gomock.Any()).AnyTimes()
		writingCh.EXPECT().QuerySubArrayState(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(downstream.SubArrayState{IsWriting: true}).AnyTimes()

		c := controller.MakeBuilder().
			WithTopology(1, 1, 16, 8).
			WithClosePage(controller.ClosePageOpen).
			WithWritePausing(true).
			WithDeadlockTimer(20).
			WithChannel(writingCh).
			Build()
		c.InitQueues(1)
		openRow1(c)

		hit := &request.Request{Type: request.READ, Address: request.Address{Row: 1}}
		queue := controller.TransactionQueue{hit}

		rest, winner, ok := c.FindWriteStalledRead(queue, nil)

		Expect(ok).To(BeTrue())
		Expect(winner).To(BeIdenticalTo(hit))
		Expect(rest).To(BeEmpty())
	})

	It("closed-bank requests drain bank by bank under fixed round-robin scheduling", func() {
		scanCh := NewMockChannel(mockCtrl)
		scanCh.EXPECT().Cycle(gomock.Any()).AnyTimes()
		scanCh.EXPECT().IsIssuable(gomock.Any(), gomock.Any()).Return(true).AnyTimes()

		var issued []request.Type
		scanCh.EXPECT().IssueCommand(gomock.Any()).Do(func(cmd *request.Request) {
			issued = append(issued, cmd.Type)
		}).AnyTimes()

		c := controller.MakeBuilder().
			WithTopology(1, 2, 16, 8).
			WithScheduleScheme(controller.ScheduleFixed).
			WithDeadlockTimer(20).
			WithChannel(scanCh).
			Build()
		c.InitQueues(1)

		// Under the builder's default R:RK:BK:CH:C field order with
		// this topology, row occupies bits [4:7] and bank bit 3, so
		// (row=1, bank=0) and (row=2, bank=1) decode from 1<<4 and
		// (2<<4)|(1<<3).
		bank0Req := &request.Request{
			Type:    request.READ,
			Owner:   request.OwnerHost,
			Address: request.Address{Physical: 1 << 4},
		}
		bank1Req := &request.Request{
			Type:    request.READ,
			Owner:   request.OwnerHost,
			Address: request.Address{Physical: (2 << 4) | (1 << 3)},
		}

		c.AddTransaction(bank0Req)
		c.AddTransaction(bank1Req)

		Expect(c.Cycle(4)).To(Succeed())

		Expect(issued).To(Equal([]request.Type{
			request.ACTIVATE, request.READ, request.ACTIVATE, request.READ,
		}))
	})
})
