package hooking

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	gomock "go.uber.org/mock/gomock"
)

var (
	posSubmit = &HookPos{Name: "Submit"}
	posIssue  = &HookPos{Name: "Issue"}
	posRetire = &HookPos{Name: "Retire"}
)

var _ = Describe("HookableBase", func() {
	var (
		mockCtrl *gomock.Controller
		base     *HookableBase
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		base = &HookableBase{}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should invoke registered hooks", func() {
		hook := NewMockHook(mockCtrl)
		base.AcceptHook(hook)

		ctx := HookCtx{Pos: posSubmit, Item: uint64(1)}
		hook.EXPECT().Func(ctx)

		base.InvokeHook(ctx)

		Expect(base.NumHooks()).To(Equal(1))
	})

	It("should panic on duplicated hook", func() {
		hook := NewMockHook(mockCtrl)
		base.AcceptHook(hook)

		Expect(func() { base.AcceptHook(hook) }).To(Panic())
	})

	It("should accept function hooks", func() {
		count := 0
		base.AcceptHook(HookFunc(func(HookCtx) { count++ }))
		base.AcceptHook(HookFunc(func(HookCtx) { count++ }))

		base.InvokeHook(HookCtx{Pos: posRetire})

		Expect(count).To(Equal(2))
	})

	It("should forward hooks", func() {
		hook := NewMockHook(mockCtrl)
		base.AcceptHook(hook)
		other := &HookableBase{}

		Forward(base, other)

		Expect(other.Hooks()).To(ConsistOf(hook))
	})
})

var _ = Describe("LogHook", func() {
	var (
		out    *bytes.Buffer
		logger *logrus.Logger
	)

	BeforeEach(func() {
		out = new(bytes.Buffer)
		logger = logrus.New()
		logger.SetOutput(out)
		logger.SetLevel(logrus.DebugLevel)
	})

	It("should log the position and item", func() {
		h := NewLogHook(logger, logrus.InfoLevel)

		h.Func(HookCtx{Pos: posIssue, Item: "vault issue"})

		Expect(out.String()).To(ContainSubstring("pos=Issue"))
		Expect(out.String()).To(ContainSubstring("vault issue"))
	})

	It("should skip positions it is not interested in", func() {
		h := NewLogHook(logger, logrus.InfoLevel, posRetire)

		h.Func(HookCtx{Pos: posIssue, Item: "ignored"})

		Expect(out.String()).To(BeEmpty())
	})

	It("should not log below the logger level", func() {
		logger.SetLevel(logrus.WarnLevel)
		h := NewLogHook(logger, logrus.DebugLevel)

		h.Func(HookCtx{Pos: posIssue, Item: "quiet"})

		Expect(out.String()).To(BeEmpty())
	})
})
