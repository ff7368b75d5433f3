package stats_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/hmcsim/stats"
)

type fakeLinks struct {
	hooking.HookableBase
	links []hmc.LinkStatus
}

func (f *fakeLinks) Links() []hmc.LinkStatus {
	return f.links
}

func transfer(link int, down bool, p *signal.Packet) hooking.HookCtx {
	return hooking.HookCtx{
		Pos: signal.HookPosLinkTransfer,
		Item: signal.LinkTransfer{
			Link:       link,
			Downstream: down,
			Packet:     p,
		},
	}
}

func epoch(
	src *fakeLinks,
	index, cycle uint64,
	final bool,
) hooking.HookCtx {
	return hooking.HookCtx{
		Domain: src,
		Pos:    signal.HookPosEpoch,
		Item:   signal.Epoch{Index: index, Cycle: cycle, Final: final},
	}
}

var _ = Describe("Collector", func() {
	var (
		c       *stats.Collector
		src     *fakeLinks
		reports []stats.Report
	)

	BeforeEach(func() {
		c = stats.NewCollector(2, 0.5)
		src = &fakeLinks{links: []hmc.LinkStatus{{ID: 0}, {ID: 1}}}
		reports = nil
		c.OnReport(func(r stats.Report) { reports = append(reports, r) })
	})

	It("should count link traffic by direction", func() {
		rd := &signal.Packet{Type: signal.Request, Cmd: signal.CmdRD32, Length: 1}
		wr := &signal.Packet{
			Type: signal.Request, Cmd: signal.CmdWR32, Length: 3, DataSize: 32,
		}
		rs := &signal.Packet{
			Type: signal.Response, Cmd: signal.CmdRDRS, Length: 3, DataSize: 32,
		}

		c.Func(transfer(1, true, rd))
		c.Func(transfer(1, true, wr))
		c.Func(transfer(1, false, rs))
		c.Func(transfer(0, false, signal.NewFlow(signal.CmdTRET)))

		r := c.Final()

		Expect(r.Links[1].Down.Requests).To(Equal(uint64(2)))
		Expect(r.Links[1].Down.Reads).To(Equal(uint64(1)))
		Expect(r.Links[1].Down.Writes).To(Equal(uint64(1)))
		Expect(r.Links[1].Down.TransmittedBytes).To(Equal(uint64(64)))
		Expect(r.Links[1].Down.DataBytes).To(Equal(uint64(wr.DataBytes())))
		Expect(r.Links[1].Up.Responses).To(Equal(uint64(1)))
		Expect(r.Links[0].Up.Flows).To(Equal(uint64(1)))
	})

	It("should count errors and retries", func() {
		c.Func(hooking.HookCtx{
			Pos:  signal.HookPosLinkError,
			Item: signal.RetryEvent{Link: 0, Downstream: true},
		})
		c.Func(hooking.HookCtx{
			Pos:  signal.HookPosRetryFinish,
			Item: signal.RetryEvent{Link: 0, Latency: 40},
		})
		c.Func(hooking.HookCtx{
			Pos:  signal.HookPosRetryAbandoned,
			Item: signal.RetryEvent{Link: 1},
		})

		r := c.Final()

		Expect(r.Errors()).To(Equal(uint64(1)))
		Expect(r.Links[0].Down.Errors).To(Equal(uint64(1)))
		Expect(r.RetryLatency.Mean).To(Equal(40.0))
		Expect(r.Links[1].RetryFailures).To(Equal(uint64(1)))
	})

	It("should record latencies of acknowledged transactions only", func() {
		c.Func(hooking.HookCtx{
			Pos: signal.HookPosTransactionRetire,
			Item: &signal.Trace{
				Kind:         signal.DataRead,
				TranFullLat:  100,
				LinkFullLat:  10,
				VaultFullLat: 50,
			},
		})
		c.Func(hooking.HookCtx{
			Pos:  signal.HookPosTransactionRetire,
			Item: &signal.Trace{Kind: signal.PostedDataWrite, Posted: true},
		})
		c.Func(hooking.HookCtx{
			Pos:  signal.HookPosTransactionRetire,
			Item: &signal.Trace{Kind: signal.AtomicINC8, TranFullLat: 60},
		})

		r := c.Final()

		Expect(r.Reads).To(Equal(uint64(1)))
		Expect(r.Writes).To(Equal(uint64(1)))
		Expect(r.Atomics).To(Equal(uint64(1)))
		Expect(r.TransactionLatency.Count).To(Equal(uint64(2)))
		Expect(r.TransactionLatency.Mean).To(Equal(80.0))
		Expect(r.VaultLatency.Max).To(Equal(50.0))
	})

	It("should split epochs and keep totals", func() {
		rd := &signal.Packet{Type: signal.Request, Cmd: signal.CmdRD32, Length: 1}

		c.Func(transfer(0, true, rd))
		c.Func(epoch(src, 0, 100, false))
		c.Func(transfer(0, true, rd))
		c.Func(transfer(0, true, rd))
		c.Func(epoch(src, 1, 150, true))

		Expect(reports).To(HaveLen(3))
		Expect(reports[0].Links[0].Down.Requests).To(Equal(uint64(1)))
		Expect(reports[0].Cycles()).To(Equal(uint64(100)))
		Expect(reports[1].Links[0].Down.Requests).To(Equal(uint64(2)))
		Expect(reports[1].StartCycle).To(Equal(uint64(100)))
		Expect(reports[2].Final).To(BeTrue())
		Expect(reports[2].Links[0].Down.Requests).To(Equal(uint64(3)))
		Expect(reports[2].Cycles()).To(Equal(uint64(150)))
		Expect(c.Final()).To(Equal(reports[2]))
	})

	It("should skip an empty last epoch", func() {
		c.Func(epoch(src, 0, 100, false))
		c.Func(epoch(src, 1, 100, true))

		Expect(reports).To(HaveLen(2))
		Expect(reports[1].Final).To(BeTrue())
	})

	It("should take sleep time from the link source", func() {
		src.links[1].SleepCycles = 30
		c.Func(epoch(src, 0, 100, false))

		src.links[1].SleepCycles = 50
		src.links[1].DownCycles = 5
		c.Func(epoch(src, 1, 200, true))

		Expect(reports[0].Links[1].SleepCycles).To(Equal(uint64(30)))
		Expect(reports[1].Links[1].SleepCycles).To(Equal(uint64(20)))
		Expect(reports[1].Links[1].DownCycles).To(Equal(uint64(5)))
		Expect(c.Final().Links[1].SleepCycles).To(Equal(uint64(50)))
	})

	It("should estimate link power from sleep and down time", func() {
		c.SetPowerModel(stats.PowerModel{
			PowPerLane: 10,
			LinkSpeed:  30,
			SleepPow:   20,
			DownPow:    2,
		})

		src.links[0].SleepCycles = 50
		src.links[1].DownCycles = 100
		c.Func(epoch(src, 0, 100, true))

		p := c.Final().LinkPower

		Expect(p.Active).To(BeNumerically("~", 150, 1e-9))
		Expect(p.Sleep).To(BeNumerically("~", 30, 1e-9))
		Expect(p.Down).To(BeNumerically("~", 6, 1e-9))
		Expect(p.Total()).To(BeNumerically("~", 186, 1e-9))
		Expect(p.SleepRatio).To(BeNumerically("~", 25, 1e-9))
		Expect(p.DownRatio).To(BeNumerically("~", 50, 1e-9))
	})

	It("should leave the power at zero without a model", func() {
		c.Func(epoch(src, 0, 100, true))

		Expect(c.Final().LinkPower).To(Equal(stats.LinkPower{}))
	})

	It("should sample the bandwidth of each link", func() {
		var samples []stats.BandwidthSample
		c.OnSample(func(b stats.BandwidthSample) {
			samples = append(samples, b)
		})

		rs := &signal.Packet{
			Type: signal.Response, Cmd: signal.CmdRDRS, Length: 3, DataSize: 32,
		}
		sample := func(index, cycle uint64) hooking.HookCtx {
			return hooking.HookCtx{
				Pos:  signal.HookPosSample,
				Item: signal.Sample{Index: index, Cycle: cycle},
			}
		}

		c.Func(transfer(1, false, rs))
		c.Func(sample(1, 100))
		c.Func(sample(2, 200))

		want := stats.Bandwidth(uint64(rs.DataBytes()), 100, 0.5)

		Expect(samples).To(HaveLen(2))
		Expect(samples[0].Links).To(Equal([]float64{0, want}))
		Expect(samples[0].Bandwidth).To(Equal(want))
		Expect(samples[1].StartCycle).To(Equal(uint64(100)))
		Expect(samples[1].Bandwidth).To(BeZero())
	})

	It("should collect from a running simulator", func() {
		cfg := config.Default()
		sim := hmc.MakeBuilder().WithConfig(cfg).Build("HMC")
		c = stats.NewCollector(cfg.NumLinks, sim.ClockPeriod())
		sim.AcceptHook(c)

		Expect(sim.Submit(signal.DataRead, 0x0, 32)).To(BeTrue())
		Expect(sim.Submit(signal.DataWrite, 0x400, 64)).To(BeTrue())

		for i := 0; i < 5000 && !sim.Drained(); i++ {
			sim.Advance()
		}

		Expect(sim.Close()).To(Succeed())

		r := c.Final()

		Expect(r.Final).To(BeTrue())
		Expect(r.Reads).To(Equal(uint64(1)))
		Expect(r.Writes).To(Equal(uint64(1)))
		Expect(r.TransactionLatency.Count).To(Equal(uint64(2)))
		Expect(r.TransactionLatency.Min).To(BeNumerically(">", 0))
		Expect(r.Bandwidth).To(BeNumerically(">", 0))
	})
})

var _ = Describe("Log", func() {
	It("should print the window and the busy links", func() {
		logger, hook := logtest.NewNullLogger()

		stats.Log(logger, stats.Report{
			Final:    true,
			EndCycle: 10,
			Reads:    4,
			Links: []stats.LinkReport{
				{ID: 0, Down: stats.Direction{TransmittedBytes: 16}},
				{ID: 1},
			},
		})

		Expect(hook.Entries).To(HaveLen(2))
		Expect(hook.Entries[0].Message).To(Equal("final"))
		Expect(hook.Entries[0].Level).To(Equal(logrus.InfoLevel))
		Expect(hook.Entries[0].Data["reads"]).To(Equal(uint64(4)))
		Expect(hook.Entries[1].Data["link"]).To(Equal(0))
	})
})
