package controller_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/cyclemem/controller"
)

var _ = Describe("Builder", func() {
	var mockCtrl *gomock.Controller

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("panics with a ConfigError on zero topology", func() {
		Expect(func() {
			controller.MakeBuilder().
				WithChannel(NewMockChannel(mockCtrl)).
				Build()
		}).To(PanicWith(MatchError(controller.ErrBadTopology)))
	})

	It("panics when BanksPerRefresh does not divide BANKS", func() {
		Expect(func() {
			controller.MakeBuilder().
				WithTopology(1, 3, 16, 8).
				WithRefresh(2, 64, 2, 4).
				WithChannel(NewMockChannel(mockCtrl)).
				Build()
		}).To(PanicWith(MatchError(controller.ErrBadRefreshConfig)))
	})

	It("panics when no channel is wired", func() {
		Expect(func() {
			controller.MakeBuilder().
				WithTopology(1, 1, 16, 8).
				Build()
		}).To(PanicWith(MatchError(controller.ErrMissingChannel)))
	})

	It("builds successfully with a minimal valid configuration", func() {
		var c *controller.Comp
		Expect(func() {
			c = controller.MakeBuilder().
				WithTopology(1, 1, 16, 8).
				WithChannel(NewMockChannel(mockCtrl)).
				Build()
		}).NotTo(Panic())
		Expect(c).NotTo(BeNil())
	})
})
