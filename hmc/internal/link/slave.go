package link

import (
	"log"
	"math"

	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
	"github.com/sarchlab/hmcsim/sim/queueing"
)

// A DownstreamPort takes the requests a device-side slave receives.
type DownstreamPort interface {
	ReceiveDown(p *signal.Packet) bool
}

// An UpstreamPort takes the responses a host-side slave receives.
type UpstreamPort interface {
	ReceiveUp(p *signal.Packet) bool
}

type rxEntry struct {
	packet         *signal.Packet
	pointerChecked bool
}

// A Slave is the receiving end of a link. It checks the CRC and sequence
// number of every packet, feeds retry pointers and tokens to its local
// master, and forwards good packets.
type Slave struct {
	hooking.HookableBase

	name string
	id   int
	side Side
	now  uint64

	rx         []*rxEntry
	recvBuffer *queueing.Buffer[*signal.Packet]

	state State
	seq   uint8

	crcCheck     bool
	crcCalCycle  float64
	crcStarted   bool
	crcCountdown uint64

	errors uint64

	master  *Master
	forward func(p *signal.Packet) bool
}

// Name returns the name of the slave.
func (s *Slave) Name() string {
	return s.name
}

// ID returns the index of the link.
func (s *Slave) ID() int {
	return s.id
}

// Side returns the end of the link the slave sits on.
func (s *Slave) Side() Side {
	return s.side
}

// Now returns the current cycle of the slave.
func (s *Slave) Now() uint64 {
	return s.now
}

// State returns the retry or power state.
func (s *Slave) State() State {
	return s.state
}

// Errors returns the number of corrupted or out-of-order packets found.
func (s *Slave) Errors() uint64 {
	return s.errors
}

// Master returns the master on the same side of the link pair.
func (s *Slave) Master() *Master {
	return s.master
}

// RecvBuffer returns the checked packets waiting to be forwarded.
func (s *Slave) RecvBuffer() *queueing.Buffer[*signal.Packet] {
	return s.recvBuffer
}

// Pending returns the number of packets off the wire and not yet checked.
func (s *Slave) Pending() int {
	return len(s.rx)
}

// Idle tells if the slave holds nothing.
func (s *Slave) Idle() bool {
	return len(s.rx) == 0 && s.recvBuffer.Empty()
}

// ConnectDown sets where a device-side slave forwards requests.
func (s *Slave) ConnectDown(d DownstreamPort) {
	s.forward = d.ReceiveDown
}

// ConnectUp sets where a host-side slave forwards responses.
func (s *Slave) ConnectUp(u UpstreamPort) {
	s.forward = u.ReceiveUp
}

// Deliver takes a packet off the wire.
func (s *Slave) Deliver(p *signal.Packet) {
	s.rx = append(s.rx, &rxEntry{packet: p})
}

// Tick checks the packets that came off the wire and forwards one good
// packet.
func (s *Slave) Tick() bool {
	madeProgress := false

	madeProgress = s.processRx() || madeProgress
	madeProgress = s.checkSleep() || madeProgress
	madeProgress = s.forwardHead() || madeProgress

	s.recvBuffer.ForEach(func(_ int, p *signal.Packet) bool {
		if p.BufPopDelay > 0 {
			p.BufPopDelay--
		}

		return true
	})

	for _, e := range s.rx {
		if e.packet.BufPopDelay > 0 {
			e.packet.BufPopDelay--
		}
	}

	s.now++

	return madeProgress
}

func (s *Slave) removeRx(i int) {
	s.rx = append(s.rx[:i], s.rx[i+1:]...)
}

func (s *Slave) processRx() bool {
	madeProgress := false

	for i := 0; i < len(s.rx); {
		e := s.rx[i]
		p := e.packet

		if p.BufPopDelay > 0 {
			i++
			continue
		}

		if p.Cmd == signal.CmdNULL {
			s.retrain()
			s.removeRx(i)
			madeProgress = true

			continue
		}

		if p.Cmd == signal.CmdIRTRY {
			s.handleIRTRY(p)
			s.removeRx(i)

			return true
		}

		if s.state == StartRetry {
			s.removeRx(i)
			return true
		}

		if !e.pointerChecked {
			e.pointerChecked = true
			s.master.UpdateRetryPointer(p.RRP)

			if p.Cmd == signal.CmdPRET {
				s.removeRx(i)
				return true
			}
		}

		if p.Cmd == signal.CmdQUIET {
			s.handleQuiet()
			s.removeRx(i)

			return true
		}

		return s.checkPacket(i) || madeProgress
	}

	return madeProgress
}

func (s *Slave) retrain() {
	m := s.master

	switch {
	case s.side == DeviceSide && m.state == Sleep:
		m.beginRetrain(Retrain1, m.now+m.power.resp1)
	case s.side == HostSide && m.state == Retrain1:
		m.beginRetrain(Retrain2, m.now)
	case s.side == DeviceSide && m.state == Retrain1:
		m.beginRetrain(Retrain2, m.now+m.power.resp2)
	case m.state == Retrain2:
		s.setState(Active)
		m.FinishRetrain()
	}
}

func (s *Slave) handleIRTRY(p *signal.Packet) {
	m := s.master
	m.UpdateRetryPointer(p.RRP)

	switch p.FRP {
	case 1:
		if m.state != LinkRetry {
			m.LinkRetry()
		}
	case 2:
		if m.state == StartRetry || (m.state == LinkRetry && m.retryTiming) {
			m.FinishRetry()
			s.resume()
		}
	}
}

func (s *Slave) handleQuiet() {
	switch {
	case s.master.state == Wait:
		s.master.confirmSleep()
	case s.side == DeviceSide:
		s.setState(Wait)
	}
}

func (s *Slave) checkPacket(i int) bool {
	p := s.rx[i].packet

	if s.crcCheck {
		if !s.crcStarted {
			s.crcStarted = true
			s.crcCountdown = uint64(
				math.Ceil(s.crcCalCycle * float64(p.Length)))
		}

		if s.crcCountdown > 0 {
			s.crcCountdown--
			return true
		}
	}

	s.crcStarted = false

	if !s.noError(p) {
		s.abort(p)
		return true
	}

	s.master.ReturnRetryPointer(p.FRP)
	s.master.UpdateToken(p.RTC)
	s.removeRx(i)

	if p.Cmd == signal.CmdTRET {
		return true
	}

	if !s.recvBuffer.CanPush(p.Slots()) {
		log.Panicf("%s: receive buffer overflow by %s", s.name, p)
	}

	s.recvBuffer.Push(p)

	return true
}

func (s *Slave) noError(p *signal.Packet) bool {
	expected := s.seq
	s.seq = (s.seq + 1) % 8

	if s.crcCheck && !p.CRCValid() {
		return false
	}

	return p.Seq == expected
}

func (s *Slave) abort(p *signal.Packet) {
	s.errors++
	if p.Trace != nil {
		p.Trace.Retries++
	}

	if s.NumHooks() > 0 {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    signal.HookPosLinkError,
			Item: signal.RetryEvent{
				Link:       s.id,
				Downstream: s.side == DeviceSide,
				Cycle:      s.now,
			},
			Detail: p,
		})
	}

	s.master.StartRetry(p.Clone())
	s.rx = nil
	s.setState(StartRetry)
}

// resume leaves error abort mode and restarts the sequence check.
func (s *Slave) resume() {
	s.setState(Active)
	s.seq = 0
}

func (s *Slave) checkSleep() bool {
	if s.state != Wait || !s.master.Drained() {
		return false
	}

	s.setState(Sleep)
	s.master.enterSleep()

	return true
}

func (s *Slave) forwardHead() bool {
	head, ok := s.recvBuffer.Head()
	if !ok || s.forward == nil || !s.forward(head) {
		return false
	}

	s.recvBuffer.Pop()
	s.master.ReturnTokens(head.Length)

	return true
}

func (s *Slave) setState(st State) {
	if s.state == st {
		return
	}

	from := s.state
	s.state = st

	if s.NumHooks() > 0 {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    signal.HookPosLinkState,
			Item: signal.LinkStateChange{
				Link:       s.id,
				Downstream: s.side == DeviceSide,
				From:       from.String(),
				To:         st.String(),
				Cycle:      s.now,
			},
		})
	}
}
