package link

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
	"go.uber.org/mock/gomock"
)

// corruptFirstRequests corrupts the first n requests that cross the wire.
type corruptFirstRequests struct {
	n int
}

func (c *corruptFirstRequests) Corrupts(p *signal.Packet) bool {
	if p.Type != signal.Request || c.n == 0 {
		return false
	}

	c.n--

	return true
}

// linkPair is both directions of one link between a host and a cube.
type linkPair struct {
	hostMaster, devMaster *Master
	hostSlave, devSlave   *Slave
	down, up              *Link
}

const linkCyclesPerStep = 8

func newLinkPair(cfg *config.Config, errs ErrorModel) *linkPair {
	b := MakeBuilder().WithConfig(cfg).WithErrorModel(errs)
	p := &linkPair{
		hostMaster: b.BuildMaster("HostMaster", HostSide),
		devMaster:  b.BuildMaster("DeviceMaster", DeviceSide),
		hostSlave:  b.BuildSlave("HostSlave", HostSide),
		devSlave:   b.BuildSlave("DeviceSlave", DeviceSide),
	}

	p.down = b.WithErrorModel(errs).Build("DownLink", p.hostMaster, p.devSlave)
	p.up = b.WithErrorModel(NoErrors{}).Build("UpLink", p.devMaster, p.hostSlave)

	Pair(p.hostMaster, p.hostSlave)
	Pair(p.devMaster, p.devSlave)

	return p
}

func (p *linkPair) step() {
	p.hostMaster.Tick()

	for i := 0; i < linkCyclesPerStep; i++ {
		p.down.Tick(i == linkCyclesPerStep-1)
	}

	p.devSlave.Tick()
	p.devMaster.Tick()

	for i := 0; i < linkCyclesPerStep; i++ {
		p.up.Tick(i == linkCyclesPerStep-1)
	}

	p.hostSlave.Tick()
}

func (p *linkPair) run(n int) {
	for i := 0; i < n; i++ {
		p.step()
	}
}

// transitions lists the state changes of one master or slave as "FROM>TO".
func transitions(
	changes []signal.LinkStateChange,
	master, downstream bool,
) []string {
	var out []string

	for _, c := range changes {
		if c.Master == master && c.Downstream == downstream {
			out = append(out, c.From+">"+c.To)
		}
	}

	return out
}

func (p *linkPair) settled() bool {
	return p.hostMaster.Idle() && p.devMaster.Idle() &&
		p.down.InFlight() == nil && p.up.InFlight() == nil
}

var _ = Describe("Link protocol", func() {
	var (
		mockCtrl *gomock.Controller
		cube     *MockDownstreamPort
		host     *MockUpstreamPort
		cfg      *config.Config
		received []uint16
	)

	connect := func(p *linkPair) {
		p.devSlave.ConnectDown(cube)
		p.hostSlave.ConnectUp(host)
	}

	read := func(tag uint16) *signal.Packet {
		return signal.NewRequest(signal.CmdRD32, uint64(tag)<<5, tag, 32,
			nil, nil)
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		cube = NewMockDownstreamPort(mockCtrl)
		host = NewMockUpstreamPort(mockCtrl)
		cfg = config.Default()
		received = nil
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	acceptAll := func() {
		cube.EXPECT().ReceiveDown(gomock.Any()).
			DoAndReturn(func(p *signal.Packet) bool {
				received = append(received, p.Tag)
				return true
			}).AnyTimes()
	}

	It("should deliver requests and settle pointers and tokens", func() {
		p := newLinkPair(cfg, NoErrors{})
		connect(p)
		acceptAll()

		for i := uint16(1); i <= 3; i++ {
			Expect(p.hostMaster.Receive(read(i))).To(BeTrue())
		}

		p.run(40)

		Expect(received).To(Equal([]uint16{1, 2, 3}))
		Expect(p.settled()).To(BeTrue())
		Expect(p.hostMaster.Tokens()).To(Equal(cfg.MaxLinkBuf))
		Expect(p.devSlave.Errors()).To(Equal(uint64(0)))
	})

	It("should stop sending when the other end runs out of room", func() {
		cfg.MaxLinkBuf = 2
		p := newLinkPair(cfg, NoErrors{})
		connect(p)

		accepting := false
		cube.EXPECT().ReceiveDown(gomock.Any()).
			DoAndReturn(func(pkt *signal.Packet) bool {
				if !accepting {
					return false
				}

				received = append(received, pkt.Tag)

				return true
			}).AnyTimes()

		p.hostMaster.Receive(read(1))
		p.hostMaster.Receive(read(2))
		p.run(10)
		p.hostMaster.Receive(read(3))
		p.run(10)

		Expect(p.hostMaster.Tokens()).To(Equal(0))
		Expect(p.hostMaster.SendBuffer().Size()).To(Equal(1))
		Expect(p.devSlave.RecvBuffer().Size()).To(Equal(2))

		accepting = true
		p.run(30)

		Expect(received).To(Equal([]uint16{1, 2, 3}))
		Expect(p.settled()).To(BeTrue())
	})

	It("should replay packets after a corrupted transfer", func() {
		p := newLinkPair(cfg, &corruptFirstRequests{n: 1})
		connect(p)
		acceptAll()

		var (
			finished []signal.RetryEvent
			changes  []signal.LinkStateChange
		)

		hook := hooking.HookFunc(func(ctx hooking.HookCtx) {
			switch ctx.Pos {
			case signal.HookPosRetryFinish:
				finished = append(finished, ctx.Item.(signal.RetryEvent))
			case signal.HookPosLinkState:
				changes = append(changes, ctx.Item.(signal.LinkStateChange))
			}
		})
		p.hostMaster.AcceptHook(hook)
		p.devMaster.AcceptHook(hook)
		p.devSlave.AcceptHook(hook)

		p.hostMaster.Receive(read(1))
		p.hostMaster.Receive(read(2))
		p.run(60)

		Expect(transitions(changes, true, false)).To(Equal([]string{
			"ACTIVE>START_RETRY", "START_RETRY>ACTIVE",
		}))
		Expect(transitions(changes, true, true)).To(Equal([]string{
			"ACTIVE>LINK_RETRY", "LINK_RETRY>ACTIVE",
		}))
		Expect(transitions(changes, false, true)).To(Equal([]string{
			"ACTIVE>START_RETRY", "START_RETRY>ACTIVE",
		}))
		Expect(changes[0].To).To(Equal("START_RETRY"))
		Expect(changes[0].Master).To(BeTrue())

		Expect(p.devSlave.Errors()).To(Equal(uint64(1)))
		Expect(received).To(Equal([]uint16{1, 2}))
		Expect(finished).To(HaveLen(1))
		Expect(finished[0].Attempts).To(Equal(1))
		Expect(finished[0].Downstream).To(BeFalse())
		Expect(p.hostMaster.State()).To(Equal(Active))
		Expect(p.devMaster.State()).To(Equal(Active))
		Expect(p.devSlave.State()).To(Equal(Active))
		Expect(p.settled()).To(BeTrue())
	})

	Context("power", func() {
		BeforeEach(func() {
			cfg.TSME = 1
			cfg.TPSC = 1
			cfg.TResp1 = 1
			cfg.TResp2 = 1
		})

		It("should put an idle link to sleep and wake it again", func() {
			p := newLinkPair(cfg, NoErrors{})
			connect(p)
			acceptAll()

			Expect(p.hostMaster.Sleep()).To(BeTrue())
			p.run(20)

			Expect(p.hostMaster.State()).To(Equal(Sleep))
			Expect(p.devMaster.State()).To(Equal(Sleep))
			Expect(p.devSlave.State()).To(Equal(Sleep))
			Expect(p.hostMaster.Available()).To(BeFalse())
			Expect(p.hostMaster.SleepCycles()).To(BeNumerically(">", 0))

			Expect(p.hostMaster.Wake()).To(BeTrue())
			p.run(80)

			Expect(p.hostMaster.State()).To(Equal(Active))
			Expect(p.devMaster.State()).To(Equal(Active))
			Expect(p.devSlave.State()).To(Equal(Active))
			Expect(p.hostSlave.State()).To(Equal(Active))

			p.hostMaster.Receive(read(7))
			p.run(30)

			Expect(received).To(Equal([]uint16{7}))
			Expect(p.settled()).To(BeTrue())
		})
	})
})
