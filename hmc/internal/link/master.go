package link

import (
	"log"
	"math"

	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
	"github.com/sarchlab/hmcsim/sim/queueing"
)

// retrainNulls is the number of NULL FLITs a master sends before it carries
// traffic again after retraining.
const retrainNulls = 32

// powerTiming holds the link power timers in cycles of the master's clock.
type powerTiming struct {
	sme, pst, op, psc uint64
	resp1, resp2      uint64
}

// A Master is the sending end of a link. It stamps sequence numbers, retry
// pointers and CRCs on outgoing packets, keeps a copy of every framed packet
// until the other end acknowledges it, and spends flow-control tokens.
type Master struct {
	hooking.HookableBase

	name string
	id   int
	side Side
	now  uint64

	capacity   int
	sendBuffer *queueing.Buffer[*signal.Packet]
	txQueue    *queueing.Buffer[*signal.Packet]
	backup     []*signal.Packet
	retryBuf   *queueing.Ring[*signal.Packet]

	maxTokens int
	tokens    int
	latestRRP uint16
	seq       uint8

	crcCheck     bool
	crcCalCycle  float64
	crcStarted   bool
	crcCountdown uint64

	numIRTRY        int
	attemptLimit    int
	retryTimeout    uint64
	retryTiming     bool
	retryTimer      uint64
	retryAttempts   int
	readyStartRetry bool
	retryStart      *signal.Packet
	retryFailures   uint64
	hostPerCycle    float64

	state          State
	firstNull      bool
	retrainTransit uint64
	power          powerTiming
	powerCountdown uint64
	idleCycles     uint64
	asleepFor      uint64
	sleepCycles    uint64
	downCycles     uint64

	slave *Slave
}

// Name returns the name of the master.
func (m *Master) Name() string {
	return m.name
}

// ID returns the index of the link.
func (m *Master) ID() int {
	return m.id
}

// Side returns the end of the link the master sits on.
func (m *Master) Side() Side {
	return m.side
}

// Now returns the current cycle of the master.
func (m *Master) Now() uint64 {
	return m.now
}

// State returns the retry or power state.
func (m *Master) State() State {
	return m.state
}

// Tokens returns the free slots the master believes the other end has.
func (m *Master) Tokens() int {
	return m.tokens
}

// SendBuffer returns the packets waiting to be framed.
func (m *Master) SendBuffer() *queueing.Buffer[*signal.Packet] {
	return m.sendBuffer
}

// TxQueue returns the framed packets waiting for the wire.
func (m *Master) TxQueue() *queueing.Buffer[*signal.Packet] {
	return m.txQueue
}

// RetryBuffer returns the copies of the packets not yet acknowledged.
func (m *Master) RetryBuffer() *queueing.Ring[*signal.Packet] {
	return m.retryBuf
}

// Slave returns the slave on the same side of the link pair.
func (m *Master) Slave() *Slave {
	return m.slave
}

// RetryFailures returns the number of retries given up.
func (m *Master) RetryFailures() uint64 {
	return m.retryFailures
}

// IdleCycles returns how long the master has been active with nothing to do.
func (m *Master) IdleCycles() uint64 {
	return m.idleCycles
}

// AsleepFor returns how long the master has been asleep.
func (m *Master) AsleepFor() uint64 {
	return m.asleepFor
}

// SleepCycles returns the total number of cycles spent asleep.
func (m *Master) SleepCycles() uint64 {
	return m.sleepCycles
}

// DownCycles returns the total number of cycles spent powered down.
func (m *Master) DownCycles() uint64 {
	return m.downCycles
}

// Occupancy returns the slots queued in the send buffer and on the way to
// the wire.
func (m *Master) Occupancy() int {
	return m.sendBuffer.Size() + m.txQueue.Size()
}

// Available tells if the master takes new packets.
func (m *Master) Available() bool {
	return m.state == Active
}

// Receive takes a packet to send. It returns false if the send buffer is
// full.
func (m *Master) Receive(p *signal.Packet) bool {
	if m.sendBuffer.Size()+p.Slots() > m.capacity {
		return false
	}

	m.sendBuffer.Push(p)

	return true
}

// Drained tells if every packet the master sent has been acknowledged and
// paid back.
func (m *Master) Drained() bool {
	return m.sendBuffer.Empty() &&
		m.retryBuf.Empty() &&
		m.tokens == m.maxTokens
}

// Idle tells if nothing moves through the link pair in either direction.
func (m *Master) Idle() bool {
	if !m.Drained() || !m.txQueue.Empty() || len(m.backup) > 0 {
		return false
	}

	return m.slave == nil || m.slave.Idle()
}

// Tick frames the next packet and advances the retry and power timers.
func (m *Master) Tick() bool {
	madeProgress := false

	madeProgress = m.frame() || madeProgress
	madeProgress = m.endLinkRetry() || madeProgress
	madeProgress = m.countRetryTimer() || madeProgress
	madeProgress = m.sendTrainingNull() || madeProgress
	madeProgress = m.advancePower() || madeProgress

	m.sendBuffer.ForEach(func(_ int, p *signal.Packet) bool {
		if p.BufPopDelay > 0 {
			p.BufPopDelay--
		}

		return true
	})

	m.now++

	return madeProgress
}

func (m *Master) frame() bool {
	head, ok := m.sendBuffer.Head()
	if !ok || head.BufPopDelay > 0 || !m.txQueue.Empty() {
		return false
	}

	if head.Type != signal.Flow && m.tokens < head.Length {
		return false
	}

	if !m.retryBuf.HasSpace(head.Length) {
		return false
	}

	if m.crcCheck {
		if !m.crcStarted {
			m.crcStarted = true
			m.crcCountdown = uint64(
				math.Ceil(m.crcCalCycle * float64(head.Length)))
		}

		if m.crcCountdown > 0 {
			m.crcCountdown--
			return true
		}
	}

	m.stampAndQueue()

	return true
}

func (m *Master) stampAndQueue() {
	p := m.sendBuffer.Pop()

	p.Seq = m.seq
	m.seq = (m.seq + 1) % 8
	p.RRP = m.latestRRP
	p.FRP = uint16((m.retryBuf.WritePointer() + p.Length) %
		m.retryBuf.Capacity())

	m.crcStarted = false
	if m.crcCheck {
		p.StampCRC()
	}

	if p.Type != signal.Flow {
		m.tokens -= p.Length
	}

	archived := p.Clone()
	archived.BufPopDelay = 0
	m.retryBuf.Archive(archived)

	p.BufPopDelay = 1
	m.txQueue.Push(p)
}

// flowDelay is the pop delay of flow packets the master creates. The host
// side creates them in the same cycle they can leave.
func (m *Master) flowDelay() int {
	if m.side == HostSide {
		return 0
	}

	return 1
}

func (m *Master) newIRTRY(frp uint16) *signal.Packet {
	p := signal.NewFlow(signal.CmdIRTRY)
	p.RRP = m.latestRRP
	p.FRP = frp
	p.BufPopDelay = m.flowDelay()

	return p
}

// UpdateRetryPointer releases the archived packets the other end has
// acknowledged.
func (m *Master) UpdateRetryPointer(rrp uint16) {
	m.retryBuf.Release(int(rrp))
}

// ReturnRetryPointer acknowledges everything up to frp to the other end. The
// pointer rides on the next packet, or on a PRET if there is none.
func (m *Master) ReturnRetryPointer(frp uint16) {
	m.latestRRP = frp

	if head, ok := m.sendBuffer.Head(); ok {
		head.RRP = frp
		return
	}

	pret := signal.NewFlow(signal.CmdPRET)
	pret.RRP = frp
	pret.BufPopDelay = m.flowDelay()
	m.txQueue.Push(pret)
}

// UpdateToken adds the tokens the other end returned.
func (m *Master) UpdateToken(rtc uint8) {
	if rtc == 0 {
		return
	}

	m.tokens += int(rtc)
	if m.tokens > m.maxTokens {
		log.Panicf("%s: token count %d exceeds %d", m.name, m.tokens,
			m.maxTokens)
	}
}

// ReturnTokens hands n tokens back to the other end, on the first queued
// packet that can leave, or on a TRET.
func (m *Master) ReturnTokens(n int) {
	target := -1

	m.sendBuffer.ForEach(func(i int, p *signal.Packet) bool {
		if p.Cmd == signal.CmdPRET || p.Cmd == signal.CmdIRTRY {
			return true
		}

		if p.Length <= m.tokens {
			target = i
		}

		return false
	})

	if target >= 0 {
		m.sendBuffer.Item(target).RTC += uint8(n)
		return
	}

	tret := signal.NewFlow(signal.CmdTRET)
	tret.RTC = uint8(n)
	tret.BufPopDelay = m.flowDelay()

	switch {
	case m.state == LinkRetry:
		m.backup = append(m.backup, tret)
	case m.crcStarted:
		head, _ := m.sendBuffer.Head()
		m.sendBuffer.Insert(head.Length, tret)
	default:
		m.sendBuffer.PushFront(tret)
	}
}

// StartRetry asks the other end to resend, after the local slave found an
// error in p.
func (m *Master) StartRetry(p *signal.Packet) {
	if m.retryStart != nil {
		log.Panicf("%s: a retry is already pending for %s", m.name,
			m.retryStart)
	}

	m.retryStart = p
	m.startRetry()
}

func (m *Master) startRetry() {
	m.retryTiming = true
	m.retryTimer = 0

	if m.state == LinkRetry {
		m.readyStartRetry = true
		return
	}

	for i := 0; i < m.numIRTRY; i++ {
		m.txQueue.PushFront(m.newIRTRY(1))
	}

	m.setState(StartRetry)
}

// LinkRetry resends every unacknowledged packet because the other end found
// an error.
func (m *Master) LinkRetry() {
	m.crcStarted = false
	m.crcCountdown = 0

	for i := 0; i < m.numIRTRY; i++ {
		m.txQueue.Push(m.newIRTRY(2))
	}

	m.seq = 0
	m.backup = append(m.backup, m.sendBuffer.TakeAll()...)

	for _, p := range m.retryBuf.Rewind() {
		p.BufPopDelay = m.flowDelay()
		if p.Type != signal.Flow {
			m.tokens += p.Length
		}

		m.sendBuffer.Push(p)
	}

	m.setState(LinkRetry)
}

// FinishRetry ends a retry the local slave started. A replay in progress
// keeps going.
func (m *Master) FinishRetry() {
	latency := uint64(math.Ceil(float64(m.retryTimer) * m.hostPerCycle))
	attempts := m.retryAttempts

	if m.state != LinkRetry {
		m.setState(Active)
	}

	m.retryStart = nil
	m.readyStartRetry = false
	m.retryAttempts = 1
	m.retryTiming = false
	m.retryTimer = 0

	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    signal.HookPosRetryFinish,
			Item:   m.retryEvent(attempts, latency),
		})
	}
}

func (m *Master) retryEvent(attempts int, latency uint64) signal.RetryEvent {
	return signal.RetryEvent{
		Link:       m.id,
		Downstream: m.side == HostSide,
		Attempts:   attempts,
		Latency:    latency,
		Cycle:      m.now,
	}
}

func (m *Master) endLinkRetry() bool {
	if m.state != LinkRetry ||
		!m.sendBuffer.Empty() ||
		!m.txQueue.Empty() {
		return false
	}

	if m.readyStartRetry {
		m.readyStartRetry = false

		for i := 0; i < m.numIRTRY; i++ {
			m.txQueue.Push(m.newIRTRY(1))
		}

		m.setState(StartRetry)
	} else {
		m.setState(Active)
	}

	for _, p := range m.backup {
		m.sendBuffer.Push(p)
	}

	m.backup = nil

	return true
}

func (m *Master) countRetryTimer() bool {
	if !m.retryTiming {
		return false
	}

	m.retryTimer++
	if m.retryTimer <= m.retryTimeout {
		return false
	}

	if m.retryAttempts >= m.attemptLimit {
		m.abandonRetry()
		return true
	}

	m.retryAttempts++
	m.startRetry()

	return true
}

func (m *Master) abandonRetry() {
	event := m.retryEvent(m.retryAttempts,
		uint64(math.Ceil(float64(m.retryTimer)*m.hostPerCycle)))

	m.FinishRetry()
	m.retryFailures++

	if m.slave != nil {
		m.slave.resume()
	}

	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    signal.HookPosRetryAbandoned,
			Item:   event,
		})
	}
}

func (m *Master) sendTrainingNull() bool {
	if m.state != Retrain1 && m.state != Retrain2 {
		return false
	}

	if !m.firstNull || m.now < m.retrainTransit {
		return false
	}

	m.txQueue.Push(signal.NewFlow(signal.CmdNULL))
	m.firstNull = false

	return true
}

// beginRetrain moves to a retraining phase and sends one NULL once the
// transit cycle is reached.
func (m *Master) beginRetrain(s State, transit uint64) {
	m.firstNull = true
	m.retrainTransit = transit
	m.setState(s)
}

// FinishRetrain makes the link usable again after retraining.
func (m *Master) FinishRetrain() {
	m.setState(Active)

	for i := 0; i < retrainNulls; i++ {
		m.txQueue.Push(signal.NewFlow(signal.CmdNULL))
	}
}

func (m *Master) sendQuiet() {
	quiet := signal.NewFlow(signal.CmdQUIET)
	quiet.RRP = m.latestRRP
	m.txQueue.Push(quiet)
}

// Sleep starts the handshake that puts an idle link to sleep. It returns
// false if the link is not idle and active.
func (m *Master) Sleep() bool {
	if m.state != Active || !m.Idle() {
		return false
	}

	m.sendQuiet()
	m.setState(Wait)

	return true
}

// enterSleep is the device end of the sleep handshake.
func (m *Master) enterSleep() {
	m.asleepFor = 0
	m.setState(Sleep)
	m.sendQuiet()
}

// PowerDown takes a sleeping link further down. It returns false if the link
// is not asleep.
func (m *Master) PowerDown() bool {
	if m.state != Sleep {
		return false
	}

	m.powerCountdown = m.power.pst
	m.setState(TransitionToDown)

	return true
}

// Wake starts retraining a sleeping or powered-down link. It returns false
// if the link is in neither state.
func (m *Master) Wake() bool {
	switch m.state {
	case Sleep:
		m.powerCountdown = m.power.psc
	case Down:
		m.powerCountdown = m.power.pst + m.power.op
	default:
		return false
	}

	m.setState(TransitionToRetrain)

	return true
}

func (m *Master) advancePower() bool {
	madeProgress := false

	switch m.state {
	case Confirm:
		m.powerCountdown = m.power.sme
		m.setState(TransitionToSleep)
		madeProgress = true
	case TransitionToSleep, TransitionToDown, TransitionToRetrain:
		if m.powerCountdown > 0 {
			m.powerCountdown--
		}

		if m.powerCountdown == 0 {
			m.finishPowerTransition()
		}

		madeProgress = true
	}

	switch {
	case m.state == Down:
		m.downCycles++
		m.asleepFor++
	case m.state == Sleep || m.state == TransitionToDown:
		m.sleepCycles++
		m.asleepFor++
	}

	if m.state == Active && m.Idle() {
		m.idleCycles++
	} else {
		m.idleCycles = 0
	}

	return madeProgress
}

func (m *Master) finishPowerTransition() {
	switch m.state {
	case TransitionToSleep:
		m.asleepFor = 0
		m.setState(Sleep)
	case TransitionToDown:
		m.setState(Down)
	case TransitionToRetrain:
		m.beginRetrain(Retrain1, m.now)
	}
}

func (m *Master) confirmSleep() {
	m.setState(Confirm)
}

func (m *Master) setState(s State) {
	if m.state == s {
		return
	}

	from := m.state
	m.state = s

	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    signal.HookPosLinkState,
			Item: signal.LinkStateChange{
				Link:       m.id,
				Downstream: m.side == HostSide,
				Master:     true,
				From:       from.String(),
				To:         s.String(),
				Cycle:      m.now,
			},
		})
	}
}

// canTransmit tells if the head of the transmit queue may go on the wire.
// Flow packets keep moving during power handshakes.
func (m *Master) canTransmit(head *signal.Packet) bool {
	switch m.state {
	case Active, LinkRetry, Wait, Confirm:
		return true
	case StartRetry:
		return head.Cmd == signal.CmdIRTRY && head.FRP == 1
	}

	return head.Type == signal.Flow
}

func (m *Master) tickTxQueue() {
	m.txQueue.ForEach(func(_ int, p *signal.Packet) bool {
		if p.BufPopDelay > 0 {
			p.BufPopDelay--
		}

		return true
	})
}
