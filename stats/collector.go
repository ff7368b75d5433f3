// Package stats turns the hook events of a simulator into per-epoch and
// whole-run statistics.
package stats

import (
	"github.com/sarchlab/hmcsim/hmc"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
)

// LinkSource reports the state of the links. The simulator is one.
type LinkSource interface {
	Links() []hmc.LinkStatus
}

type window struct {
	down, up []Direction
	failures []uint64
	sleep    []uint64
	off      []uint64

	reads, writes, atomics uint64

	transaction, link, vault, retry Series
}

func newWindow(links int) *window {
	return &window{
		down:     make([]Direction, links),
		up:       make([]Direction, links),
		failures: make([]uint64, links),
		sleep:    make([]uint64, links),
		off:      make([]uint64, links),
	}
}

// Collector is a hook that gathers statistics. Register it with
// Simulator.AcceptHook.
type Collector struct {
	periodNS float64
	power    PowerModel

	epoch *window
	total *window

	lastSleep []uint64
	lastOff   []uint64

	start   uint64
	now     uint64
	final   *Report
	reports []func(Report)

	sampleStart uint64
	sampledData []uint64
	samples     []func(BandwidthSample)
}

// NewCollector creates a collector for a cube with numLinks links driven by
// a host clock of periodNS nanoseconds.
func NewCollector(numLinks int, periodNS float64) *Collector {
	return &Collector{
		periodNS:  periodNS,
		epoch:     newWindow(numLinks),
		total:     newWindow(numLinks),
		lastSleep: make([]uint64, numLinks),
		lastOff:   make([]uint64, numLinks),

		sampledData: make([]uint64, numLinks),
	}
}

// SetPowerModel sets how the link power of a report is estimated. Without a
// model the estimate is zero.
func (c *Collector) SetPowerModel(m PowerModel) {
	c.power = m
}

// OnReport registers a function that receives every epoch report and the
// final report.
func (c *Collector) OnReport(f func(Report)) {
	c.reports = append(c.reports, f)
}

// OnSample registers a function that receives every bandwidth sample.
func (c *Collector) OnSample(f func(BandwidthSample)) {
	c.samples = append(c.samples, f)
}

// Func handles a hook event.
func (c *Collector) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case signal.HookPosLinkTransfer:
		c.transfer(ctx.Item.(signal.LinkTransfer))
	case signal.HookPosLinkError:
		c.linkError(ctx.Item.(signal.RetryEvent))
	case signal.HookPosRetryFinish:
		e := ctx.Item.(signal.RetryEvent)
		c.each(func(w *window) { w.retry.Add(e.Latency) })
	case signal.HookPosRetryAbandoned:
		e := ctx.Item.(signal.RetryEvent)
		c.each(func(w *window) { w.failures[e.Link]++ })
	case signal.HookPosTransactionRetire:
		c.retire(ctx.Item.(*signal.Trace))
	case signal.HookPosEpoch:
		src, _ := ctx.Domain.(LinkSource)
		c.endEpoch(ctx.Item.(signal.Epoch), src)
	case signal.HookPosSample:
		c.endSample(ctx.Item.(signal.Sample))
	}
}

func (c *Collector) each(f func(w *window)) {
	f(c.epoch)
	f(c.total)
}

func direction(w *window, link int, downstream bool) *Direction {
	if downstream {
		return &w.down[link]
	}

	return &w.up[link]
}

func (c *Collector) transfer(t signal.LinkTransfer) {
	p := t.Packet

	c.each(func(w *window) {
		d := direction(w, t.Link, t.Downstream)
		d.TransmittedBytes += uint64(p.Length * signal.FlitBytes)

		if p.Length > 1 {
			d.DataBytes += uint64(p.DataBytes())
		}

		switch p.Type {
		case signal.Request:
			d.Requests++

			switch {
			case p.Cmd.IsWrite():
				d.Writes++
			case p.Cmd.IsRead():
				d.Reads++
			default:
				d.Atomics++
			}
		case signal.Response:
			d.Responses++
		case signal.Flow:
			d.Flows++
		}
	})
}

func (c *Collector) linkError(e signal.RetryEvent) {
	c.each(func(w *window) {
		direction(w, e.Link, e.Downstream).Errors++
	})
}

func (c *Collector) retire(t *signal.Trace) {
	c.each(func(w *window) {
		switch {
		case t.Kind.IsRead():
			w.reads++
		case t.Kind.IsWrite():
			w.writes++
		default:
			w.atomics++
		}

		if t.Posted {
			return
		}

		w.transaction.Add(t.TranFullLat)
		w.link.Add(t.LinkFullLat)
		w.vault.Add(t.VaultFullLat)
	})
}

func (c *Collector) samplePower(src LinkSource) {
	if src == nil {
		return
	}

	for _, l := range src.Links() {
		if l.ID >= len(c.lastSleep) {
			continue
		}

		sleep := l.SleepCycles - c.lastSleep[l.ID]
		off := l.DownCycles - c.lastOff[l.ID]
		c.lastSleep[l.ID] = l.SleepCycles
		c.lastOff[l.ID] = l.DownCycles

		c.each(func(w *window) {
			w.sleep[l.ID] += sleep
			w.off[l.ID] += off
		})
	}
}

func (c *Collector) endEpoch(e signal.Epoch, src LinkSource) {
	c.samplePower(src)
	c.now = e.Cycle

	if e.Cycle > c.start || !e.Final {
		c.publish(c.report(c.epoch, e.Index, c.start, e.Cycle, false))
	}

	c.epoch = newWindow(len(c.lastSleep))
	c.start = e.Cycle

	if e.Final {
		r := c.Final()
		c.final = &r
		c.publish(r)
	}
}

func (c *Collector) endSample(e signal.Sample) {
	b := BandwidthSample{
		Index:      e.Index,
		StartCycle: c.sampleStart,
		EndCycle:   e.Cycle,
		Links:      make([]float64, len(c.sampledData)),
	}

	cycles := e.Cycle - c.sampleStart
	all := uint64(0)

	for i := range c.sampledData {
		data := c.total.down[i].DataBytes + c.total.up[i].DataBytes
		moved := data - c.sampledData[i]
		c.sampledData[i] = data

		b.Links[i] = Bandwidth(moved, cycles, c.periodNS)
		all += moved
	}

	b.Bandwidth = Bandwidth(all, cycles, c.periodNS)
	c.sampleStart = e.Cycle

	for _, f := range c.samples {
		f(b)
	}
}

func (c *Collector) publish(r Report) {
	for _, f := range c.reports {
		f(r)
	}
}

// Final returns the statistics of the whole run up to the last epoch seen.
func (c *Collector) Final() Report {
	if c.final != nil {
		return *c.final
	}

	return c.report(c.total, 0, 0, c.now, true)
}

func (c *Collector) report(
	w *window,
	index, start, end uint64,
	final bool,
) Report {
	r := Report{
		Index:              index,
		Final:              final,
		StartCycle:         start,
		EndCycle:           end,
		Reads:              w.reads,
		Writes:             w.writes,
		Atomics:            w.atomics,
		TransactionLatency: w.transaction.Summary(),
		LinkLatency:        w.link.Summary(),
		VaultLatency:       w.vault.Summary(),
		RetryLatency:       w.retry.Summary(),
	}

	cycles := end - start
	data := uint64(0)

	for i := range w.down {
		r.Links = append(r.Links, LinkReport{
			ID:            i,
			Down:          w.down[i],
			Up:            w.up[i],
			RetryFailures: w.failures[i],
			SleepCycles:   w.sleep[i],
			DownCycles:    w.off[i],
			DownBandwidth: Bandwidth(w.down[i].DataBytes, cycles, c.periodNS),
			UpBandwidth:   Bandwidth(w.up[i].DataBytes, cycles, c.periodNS),
		})

		data += w.down[i].DataBytes + w.up[i].DataBytes
	}

	r.Bandwidth = Bandwidth(data, cycles, c.periodNS)
	r.LinkPower = c.power.Estimate(r.Links, cycles)

	return r
}
