package link

import (
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
)

// Counters are the traffic totals of one link direction.
type Counters struct {
	TransmittedBytes uint64
	DataBytes        uint64
	Requests         uint64
	Responses        uint64
	Flows            uint64
	Reads            uint64
	Writes           uint64
	Atomics          uint64
}

// A Link is one direction of a serialized link. It carries one packet at a
// time from a master to a slave.
type Link struct {
	hooking.HookableBase

	name      string
	id        int
	linkWidth int

	master *Master
	slave  *Slave
	errors ErrorModel

	inFlight  *signal.Packet
	countdown int
	counters  Counters
}

// Name returns the name of the link.
func (l *Link) Name() string {
	return l.name
}

// ID returns the index of the link.
func (l *Link) ID() int {
	return l.id
}

// Downstream tells if the link carries requests from the host to the cube.
func (l *Link) Downstream() bool {
	return l.master.side == HostSide
}

// Master returns the sending end.
func (l *Link) Master() *Master {
	return l.master
}

// Slave returns the receiving end.
func (l *Link) Slave() *Slave {
	return l.slave
}

// Counters returns the traffic totals so far.
func (l *Link) Counters() Counters {
	return l.counters
}

// InFlight returns the packet on the wire, if any.
func (l *Link) InFlight() *signal.Packet {
	return l.inFlight
}

// Tick runs one link cycle. The pop delays of the waiting packets only
// count down on the last link cycle of a host cycle.
func (l *Link) Tick(last bool) bool {
	madeProgress := false

	madeProgress = l.start() || madeProgress
	madeProgress = l.transmit() || madeProgress

	if last {
		l.master.tickTxQueue()
	}

	return madeProgress
}

func (l *Link) start() bool {
	if l.inFlight != nil {
		return false
	}

	head, ok := l.master.txQueue.Head()
	if !ok || head.BufPopDelay > 0 || !l.master.canTransmit(head) {
		return false
	}

	l.master.txQueue.Pop()
	l.inFlight = head
	l.countdown = head.Length * signal.FlitBytes * 8 / l.linkWidth
	l.count(head)

	return true
}

func (l *Link) transmit() bool {
	if l.inFlight == nil {
		return false
	}

	l.countdown--
	if l.countdown > 0 {
		return true
	}

	p := l.inFlight
	l.inFlight = nil

	corrupted := l.errors.Corrupts(p)
	if corrupted {
		p.CRC = ^p.CRC
	}

	if p.Type == signal.Response && p.Trace != nil {
		p.Trace.LinkFullLat = l.slave.Now() - p.Trace.LinkTransmitTime
	}

	p.BufPopDelay = 1
	l.slave.Deliver(p)

	if l.NumHooks() > 0 {
		l.InvokeHook(hooking.HookCtx{
			Domain: l,
			Pos:    signal.HookPosLinkTransfer,
			Item: signal.LinkTransfer{
				Link:       l.id,
				Downstream: l.Downstream(),
				Packet:     p,
				Corrupted:  corrupted,
				Cycle:      l.master.Now(),
			},
		})
	}

	return true
}

func (l *Link) count(p *signal.Packet) {
	l.counters.TransmittedBytes += uint64(p.Length * signal.FlitBytes)
	if p.Length > 1 {
		l.counters.DataBytes += uint64(p.DataBytes())
	}

	switch p.Type {
	case signal.Request:
		l.counters.Requests++

		if p.Trace != nil {
			p.Trace.LinkTransmitTime = l.master.Now()
		}

		switch {
		case p.Cmd.IsWrite():
			l.counters.Writes++
		case p.Cmd.IsRead():
			l.counters.Reads++
		default:
			l.counters.Atomics++
		}
	case signal.Response:
		l.counters.Responses++
	case signal.Flow:
		l.counters.Flows++
	}
}
