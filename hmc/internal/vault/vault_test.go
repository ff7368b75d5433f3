package vault

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Vault", func() {
	var (
		mockCtrl *gomock.Controller
		upstream *MockUpstream
		cfg      *config.Config
		v        *Comp
		issued   []signal.CommandKind
		retired  []*signal.Trace
		received *signal.Packet
	)

	build := func() {
		v = MakeBuilder().
			WithConfig(cfg).
			WithUpstream(upstream).
			Build("Vault[0]")

		v.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			switch ctx.Pos {
			case signal.HookPosCommandIssue:
				issue := ctx.Item.(signal.CommandIssue)
				issued = append(issued, issue.Command.Kind)
			case signal.HookPosTransactionRetire:
				retired = append(retired, ctx.Item.(*signal.Trace))
			}
		}))
	}

	run := func(cycles int, until func() bool) {
		for i := 0; i < cycles && !until(); i++ {
			v.Tick()
			v.DRAM().Tick()
		}
	}

	responded := func() bool { return received != nil }

	expectResponse := func() {
		upstream.EXPECT().
			ReceiveUp(gomock.Any()).
			DoAndReturn(func(p *signal.Packet) bool {
				received = p
				return true
			})
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		upstream = NewMockUpstream(mockCtrl)
		cfg = config.Default()
		issued = nil
		retired = nil
		received = nil
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("closed page", func() {
		BeforeEach(func() {
			build()
		})

		It("should answer a read", func() {
			trace := &signal.Trace{}
			p := signal.NewRequest(signal.CmdRD32, 3<<10, 5, 32, trace, nil)
			expectResponse()

			Expect(v.ReceiveDown(p)).To(BeTrue())
			run(300, responded)

			Expect(received.Cmd).To(Equal(signal.CmdRDRS))
			Expect(received.Length).To(Equal(2))
			Expect(received.Tag).To(Equal(uint16(5)))
			Expect(received.Trace).To(BeIdenticalTo(trace))
			Expect(trace.VaultFullLat).NotTo(BeZero())
			Expect(issued).To(Equal([]signal.CommandKind{
				signal.CmdActivate, signal.CmdReadPrecharge,
			}))
			Expect(v.Busy()).To(BeFalse())
		})

		It("should answer a write", func() {
			p := signal.NewRequest(signal.CmdWR32, 0, 6, 32,
				&signal.Trace{}, nil)
			expectResponse()

			Expect(v.ReceiveDown(p)).To(BeTrue())
			run(300, responded)

			Expect(received.Cmd).To(Equal(signal.CmdWRRS))
			Expect(received.Length).To(Equal(1))
		})

		It("should retire a posted write without a response", func() {
			trace := &signal.Trace{}
			p := signal.NewRequest(signal.CmdPWR32, 0, 6, 32, trace, nil)

			Expect(v.ReceiveDown(p)).To(BeTrue())
			run(300, func() bool { return len(retired) > 0 })

			Expect(retired).To(ConsistOf(trace))
			Expect(trace.Complete()).To(BeTrue())
			Expect(v.Busy()).To(BeFalse())
		})

		It("should retire a segmented posted write once", func() {
			trace := &signal.Trace{Segments: 2}
			for i, addr := range []uint64{0, 1 << 10} {
				p := signal.NewRequest(signal.CmdPWR32, addr, 6, 32, trace, nil)
				p.Segment = true

				Expect(v.ReceiveDown(p)).To(BeTrue(), "segment %d", i)
			}

			run(300, func() bool { return !v.Busy() && len(retired) > 0 })

			Expect(retired).To(HaveLen(1))
			Expect(trace.Segments).To(Equal(0))
		})

		It("should read, operate and write back an atomic", func() {
			p := signal.NewRequest(signal.CmdADDS16R, 0, 9, 16,
				&signal.Trace{}, nil)
			expectResponse()

			Expect(v.ReceiveDown(p)).To(BeTrue())
			run(300, responded)

			Expect(issued).To(Equal([]signal.CommandKind{
				signal.CmdActivate, signal.CmdRead, signal.CmdWritePrecharge,
			}))
			Expect(received.Cmd).To(Equal(signal.CmdRDRS))
			Expect(received.Length).To(Equal(2))
			Expect(received.AtomicFlag).To(BeTrue())
		})

		It("should answer a compare without writing back", func() {
			p := signal.NewRequest(signal.CmdEQ8, 0, 9, 16,
				&signal.Trace{}, nil)
			expectResponse()

			Expect(v.ReceiveDown(p)).To(BeTrue())
			run(300, responded)

			Expect(issued).To(Equal([]signal.CommandKind{
				signal.CmdActivate, signal.CmdReadPrecharge,
			}))
			Expect(received.Cmd).To(Equal(signal.CmdWRRS))
			Expect(received.Length).To(Equal(1))
			Expect(received.AtomicFlag).To(BeTrue())
		})

		It("should retire a posted atomic after its write-back", func() {
			trace := &signal.Trace{}
			p := signal.NewRequest(signal.CmdPINC8, 0, 9, 16, trace, nil)

			Expect(v.ReceiveDown(p)).To(BeTrue())
			run(300, func() bool { return len(retired) > 0 })

			Expect(issued).To(Equal([]signal.CommandKind{
				signal.CmdActivate, signal.CmdRead, signal.CmdWritePrecharge,
			}))
			Expect(retired).To(ConsistOf(trace))
		})

		It("should hold responses the crossbar cannot take", func() {
			p := signal.NewRequest(signal.CmdRD32, 0, 5, 32,
				&signal.Trace{}, nil)
			upstream.EXPECT().ReceiveUp(gomock.Any()).Return(false).MinTimes(1)

			Expect(v.ReceiveDown(p)).To(BeTrue())
			run(300, func() bool { return !v.UpBuffer().Empty() })
			v.Tick()

			Expect(v.UpBuffer().Size()).To(Equal(2))
		})

		It("should reject requests when the buffer is full", func() {
			for tag := uint16(0); tag < 16; tag++ {
				p := signal.NewRequest(signal.CmdWR32, 0, tag, 32, nil, nil)
				Expect(v.ReceiveDown(p)).To(BeTrue())
			}

			p := signal.NewRequest(signal.CmdWR32, 0, 16, 32, nil, nil)
			Expect(v.ReceiveDown(p)).To(BeFalse())
		})

		It("should reserve room for responses", func() {
			Expect(v.CanReserve(cfg.MaxVaultBuf)).To(BeTrue())
			Expect(v.CanReserve(cfg.MaxVaultBuf + 1)).To(BeFalse())
		})

		It("should panic on read data nobody asked for", func() {
			Expect(func() {
				v.ReturnCommand(&signal.Command{
					Kind: signal.CmdReadData,
					Tag:  9,
					Last: true,
				})
			}).To(Panic())
		})

		It("should power down when idle", func() {
			run(10, func() bool { return false })

			Expect(v.PoweredDown()).To(BeTrue())
		})
	})

	It("should refresh periodically", func() {
		cfg.RefreshPeriod = 80
		cfg.UseLowPower = false
		build()

		run(50, func() bool { return len(issued) > 0 })

		Expect(issued).To(ContainElement(signal.CmdRefresh))
	})

	It("should close rows only when nothing needs them in open page mode",
		func() {
			cfg.OpenPage = true
			build()

			p := signal.NewRequest(signal.CmdRD32, 0, 5, 32,
				&signal.Trace{}, nil)
			expectResponse()

			Expect(v.ReceiveDown(p)).To(BeTrue())
			run(300, func() bool { return responded() && len(issued) >= 3 })

			Expect(issued).To(Equal([]signal.CommandKind{
				signal.CmdActivate, signal.CmdRead, signal.CmdPrecharge,
			}))
			Expect(received.Cmd).To(Equal(signal.CmdRDRS))
		})
})
