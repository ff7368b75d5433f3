package link

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Link", func() {
	var (
		mockCtrl *gomock.Controller
		errs     *MockErrorModel
		cfg      *config.Config
		m        *Master
		s        *Slave
		l        *Link
	)

	build := func() {
		b := MakeBuilder().WithConfig(cfg).WithErrorModel(errs)
		m = b.BuildMaster("HostMaster", HostSide)
		s = b.BuildSlave("DeviceSlave", DeviceSide)
		l = b.Build("DownLink", m, s)
	}

	queue := func(p *signal.Packet) {
		p.BufPopDelay = 0
		m.TxQueue().Push(p)
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		errs = NewMockErrorModel(mockCtrl)
		cfg = config.Default()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should take eight link cycles to move one FLIT over 16 lanes", func() {
		build()
		trace := &signal.Trace{}
		p := signal.NewRequest(signal.CmdRD32, 0x40, 3, 32, trace, nil)
		queue(p)
		errs.EXPECT().Corrupts(p).Return(false)

		for i := 0; i < 7; i++ {
			l.Tick(false)
			Expect(l.InFlight()).To(BeIdenticalTo(p))
		}

		Expect(s.Pending()).To(Equal(0))

		l.Tick(false)

		Expect(l.InFlight()).To(BeNil())
		Expect(s.Pending()).To(Equal(1))
		Expect(p.BufPopDelay).To(Equal(1))
		Expect(l.Counters().Requests).To(Equal(uint64(1)))
		Expect(l.Counters().Reads).To(Equal(uint64(1)))
		Expect(l.Counters().TransmittedBytes).To(Equal(uint64(16)))
		Expect(l.Downstream()).To(BeTrue())
	})

	It("should scale the transfer time with the width", func() {
		cfg.LinkWidth = 8
		build()
		p := signal.NewRequest(signal.CmdWR64, 0x40, 3, 64, nil, nil)
		queue(p)
		errs.EXPECT().Corrupts(p).Return(false)

		for i := 0; i < 79; i++ {
			l.Tick(false)
		}

		Expect(s.Pending()).To(Equal(0))

		l.Tick(false)

		Expect(s.Pending()).To(Equal(1))
		Expect(l.Counters().Writes).To(Equal(uint64(1)))
		Expect(l.Counters().DataBytes).To(Equal(uint64(64)))
		Expect(l.Counters().TransmittedBytes).To(Equal(uint64(80)))
	})

	It("should flip the CRC of a corrupted packet", func() {
		build()
		p := signal.NewFlow(signal.CmdTRET)
		p.StampCRC()
		queue(p)
		errs.EXPECT().Corrupts(p).Return(true)

		var transfer signal.LinkTransfer
		l.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			transfer = ctx.Item.(signal.LinkTransfer)
		}))

		for i := 0; i < 8; i++ {
			l.Tick(false)
		}

		Expect(p.CRCValid()).To(BeFalse())
		Expect(transfer.Corrupted).To(BeTrue())
		Expect(transfer.Packet).To(BeIdenticalTo(p))
		Expect(l.Counters().Flows).To(Equal(uint64(1)))
	})

	It("should hold back requests while a retry is starting", func() {
		build()
		m.state = StartRetry
		p := signal.NewRequest(signal.CmdRD32, 0x40, 3, 32, nil, nil)
		queue(p)

		l.Tick(true)

		Expect(l.InFlight()).To(BeNil())
		Expect(m.TxQueue().Size()).To(Equal(1))
	})

	It("should only count down pop delays on the last link cycle", func() {
		build()
		p := signal.NewFlow(signal.CmdPRET)
		m.TxQueue().Push(p)

		l.Tick(false)
		Expect(p.BufPopDelay).To(Equal(1))

		l.Tick(true)
		Expect(p.BufPopDelay).To(Equal(0))
		Expect(l.InFlight()).To(BeNil())
	})

	It("should measure the link latency of responses", func() {
		b := MakeBuilder().WithConfig(cfg).WithErrorModel(errs)
		m = b.BuildMaster("DeviceMaster", DeviceSide)
		s = b.BuildSlave("HostSlave", HostSide)
		l = b.Build("UpLink", m, s)

		trace := &signal.Trace{LinkTransmitTime: 2}
		p := signal.NewResponse(signal.CmdRDRS, 3, 3, trace, nil)
		queue(p)
		errs.EXPECT().Corrupts(p).Return(false)

		for i := 0; i < 10; i++ {
			s.Tick()
		}

		for i := 0; i < 24; i++ {
			l.Tick(false)
		}

		Expect(l.Downstream()).To(BeFalse())
		Expect(trace.LinkFullLat).To(Equal(uint64(8)))
		Expect(l.Counters().Responses).To(Equal(uint64(1)))
	})
})
