package controller_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cyclemem/controller"
	"github.com/sarchlab/cyclemem/downstream"
	"github.com/sarchlab/cyclemem/request"
)

// withRefreshComp builds a single-bank controller (1 rank, 1 bank, 16
// rows, 8 columns) with one refresh group covering the bank and a
// delayed-refresh threshold of 1 so that group's very first pulse is
// already due. TREFW=1600 and RefreshRows=2 work out to tREFI=200
// (pulsesPerWindow = Rows/RefreshRows = 8, tREFI = TREFW/8), so the
// group's first pulse lands at cycle 200 (now + tREFI + 0·refreshSlice,
// the only group in the only rank).
func withRefreshComp(ch *MockChannel) *controller.Comp {
	c := controller.MakeBuilder().
		WithTopology(1, 1, 16, 8).
		WithRefresh(1, 1600, 2, 1).
		WithDeadlockTimer(250).
		WithChannel(ch).
		Build()
	c.InitQueues(1)
	return c
}

const firstRefreshPulseCycle = 200

var _ = Describe("Refresh engine", func() {
	var (
		mockCtrl *gomock.Controller
		ch       *MockChannel
		issued   []*request.Request
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		ch = NewMockChannel(mockCtrl)
		issued = nil

		ch.EXPECT().Cycle(gomock.Any()).AnyTimes()
		ch.EXPECT().IsIssuable(gomock.Any(), gomock.Any()).Return(true).AnyTimes()
		ch.EXPECT().IssueCommand(gomock.Any()).Do(func(cmd *request.Request) {
			issued = append(issued, cmd)
		}).AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	issuedTypes := func() []request.Type {
		var types []request.Type
		for _, r := range issued {
			types = append(types, r.Type)
		}
		return types
	}

	It("issues the due group's REFRESH only once its pulse's tREFI cycles have elapsed, then stays quiet until the next pulse or a completion re-arms it", func() {
		c := withRefreshComp(ch)

		// Before the pulse fires, nothing is due yet.
		Expect(c.Cycle(firstRefreshPulseCycle - 1)).To(Succeed())
		Expect(issuedTypes()).To(BeEmpty())

		// The pulse lands on this tick and bumps the counter to
		// threshold; its bank queue is empty, so HandleRefresh issues
		// REFRESH immediately and decrements the counter right there,
		// in the same call, rather than waiting on any later
		// completion.
		Expect(c.Cycle(1)).To(Succeed())
		Expect(issuedTypes()).To(Equal([]request.Type{request.REFRESH}))

		// The issue-time decrement already cleared the gate, and the
		// next periodic pulse is tREFI (200) cycles out, so with no
		// completion reported in between nothing else is due for a
		// good while.
		Expect(c.Cycle(5)).To(Succeed())
		Expect(issuedTypes()).To(Equal([]request.Type{request.REFRESH}),
			"the gate was already cleared at issue time, and no pulse or completion has re-armed it")
	})

	It("lets a READ queued before the pulse issue ungated, then issues the due REFRESH once the pulse fires", func() {
		c := withRefreshComp(ch)

		c.AddTransaction(hostRequest(request.READ, 1))

		// Ticks up to the pulse: the READ has nowhere due to gate on
		// yet, so it is free to schedule and issue its own ACTIVATE
		// and READ well before the pulse ever fires.
		Expect(c.Cycle(firstRefreshPulseCycle - 1)).To(Succeed())
		Expect(issuedTypes()).To(Equal([]request.Type{
			request.ACTIVATE,
			request.READ,
		}))

		// The pulse fires this tick and gates bank 0; with the queue
		// now empty and the bank idle again, HandleRefresh issues the
		// due REFRESH and clears the gate synchronously.
		Expect(c.Cycle(1)).To(Succeed())
		Expect(issuedTypes()).To(Equal([]request.Type{
			request.ACTIVATE,
			request.READ,
			request.REFRESH,
		}))
	})

	It("re-arms the same (rank, group) pulse on completion, via the same ProcessRefreshPulse the periodic timer uses", func() {
		c := withRefreshComp(ch)

		Expect(c.Cycle(firstRefreshPulseCycle)).To(Succeed())
		Expect(issuedTypes()).To(Equal([]request.Type{request.REFRESH}))

		// The REFRESH command itself eventually completes downstream;
		// RequestComplete dispatches it to ProcessRefreshPulse exactly
		// as if it were another periodic pulse, bumping the counter
		// back up to threshold and re-setting the gate immediately
		// (no bank queue traffic needed to observe this, since
		// IsRefreshBankQueueEmpty is trivially true with nothing
		// queued).
		c.RequestComplete(issued[0])

		Expect(c.Cycle(1)).To(Succeed())
		Expect(issuedTypes()).To(Equal([]request.Type{
			request.REFRESH,
			request.REFRESH,
		}), "the completion re-armed the group, so HandleRefresh has another due REFRESH to issue")
	})

	It("skips an unissuable due group and keeps scanning the rest of the scan order in the same call", func() {
		// Two single-bank groups sharing one rank (BanksPerRefresh=1
		// puts each of the topology's two banks in its own group).
		// RefreshRows equal to Rows collapses pulsesPerWindow to 1, so
		// tREFI is just TREFW; TREFW=1 makes tREFI=1 and refreshSlice
		// (tREFI / (Ranks·groups) = 1/2) floor to 0, landing both
		// groups' first pulses on the very same cycle-1 tick.
		ch2 := NewMockChannel(mockCtrl)
		var localIssued []*request.Request

		// Group 0's REFRESH is never issuable; group 1's is. With the
		// scan starting at group 0, HandleRefresh must not abort after
		// group 0 fails — it has to continue on to group 1 in the same
		// call and issue its REFRESH.
		refusedGroup0 := false
		ch2.EXPECT().Cycle(gomock.Any()).AnyTimes()
		ch2.EXPECT().IsIssuable(gomock.Any(), gomock.Any()).DoAndReturn(
			func(cmd *request.Request, fail *downstream.FailReason) bool {
				if cmd.Type == request.REFRESH && cmd.Address.Bank == 0 && !refusedGroup0 {
					refusedGroup0 = true
					return false
				}
				return true
			}).AnyTimes()
		ch2.EXPECT().IssueCommand(gomock.Any()).Do(func(cmd *request.Request) {
			localIssued = append(localIssued, cmd)
		}).AnyTimes()

		c := controller.MakeBuilder().
			WithTopology(1, 2, 16, 8).
			WithRefresh(1, 1, 16, 1).
			WithDeadlockTimer(20).
			WithChannel(ch2).
			Build()
		c.InitQueues(1)

		Expect(c.Cycle(1)).To(Succeed())

		Expect(refusedGroup0).To(BeTrue(), "group 0's REFRESH must have been attempted and refused")
		var localTypes []request.Type
		for _, r := range localIssued {
			localTypes = append(localTypes, r.Type)
		}
		Expect(localTypes).To(ContainElement(request.REFRESH),
			"group 1's REFRESH must still issue in the same call that group 0 was refused in")
	})
})
