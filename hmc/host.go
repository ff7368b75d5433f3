package hmc

import (
	"log"
	"math/bits"
	"math/rand"

	"github.com/sarchlab/hmcsim/hmc/internal/link"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
	"github.com/sarchlab/hmcsim/sim/queueing"
)

// CompletionFunc is called with the address of a finished transaction and
// the host cycle it finished in.
type CompletionFunc func(addr uint64, cycle uint64)

// hostController packetizes the transactions the host submits, spreads them
// over the down links, and reports the responses that come back.
type hostController struct {
	hooking.HookableBase

	name string
	now  uint64

	queue     *queueing.Buffer[*signal.Transaction]
	tags      signal.TagCounter
	nextID    uint64
	nextLink  int
	blockBits uint
	rng       *rand.Rand

	masters  []*link.Master
	inFlight int

	readDone  CompletionFunc
	writeDone CompletionFunc

	// waiting is told the queue length whenever a transaction waits.
	waiting func(n int)
}

func newHostController(
	name string,
	queueSize int,
	blockSize int,
	rng *rand.Rand,
) *hostController {
	return &hostController{
		name:      name,
		queue:     queueing.NewBuffer[*signal.Transaction](name+".Queue", queueSize),
		blockBits: uint(bits.TrailingZeros(uint(blockSize))),
		rng:       rng,
	}
}

// Name returns the name of the host controller.
func (h *hostController) Name() string {
	return h.name
}

func (h *hostController) canAccept() bool {
	return h.queue.CanPush(1)
}

// submit queues a transaction. It panics if the transaction cannot be
// turned into a request packet.
func (h *hostController) submit(t *signal.Transaction) bool {
	if _, err := t.Kind.PacketCommand(t.Size); err != nil {
		log.Panicf("%s: cannot send %s: %v", h.name, t, err)
	}

	if !h.queue.CanPush(1) {
		return false
	}

	if t.Trace == nil {
		t.Trace = &signal.Trace{
			TransactionID: t.ID,
			Kind:          t.Kind,
			Addr:          t.Addr,
			Size:          t.Size,
		}
	}

	h.queue.Push(t)

	return true
}

func (h *hostController) newTransaction(
	kind signal.TransactionKind,
	addr uint64,
	size int,
) *signal.Transaction {
	t := signal.NewTransaction(h.nextID, kind, addr, size)
	h.nextID++

	return t
}

func (h *hostController) tick() bool {
	madeProgress := h.issue()
	h.now++

	return madeProgress
}

func (h *hostController) issue() bool {
	t, ok := h.queue.Head()
	if !ok {
		return false
	}

	if h.waiting != nil {
		h.waiting(h.queue.Size())
	}

	cmd, _ := t.Kind.PacketCommand(t.Size)
	tag := h.tags.Next()
	p := signal.NewRequest(cmd, t.Addr, tag, t.Size, t.Trace, h.rng)

	if !h.send(p) {
		h.tags.Rollback()
		return false
	}

	h.queue.Pop()
	t.Trace.TranTransmitTime = h.now

	if cmd.IsPosted() {
		t.Trace.Posted = true
		h.complete(t.Trace, false)
	} else {
		h.inFlight++
	}

	return true
}

// send hands p to a link master. A request to a block that still has a
// request waiting on some link goes on that link, so that the two stay in
// order. Other requests go round robin over the active links.
func (h *hostController) send(p *signal.Packet) bool {
	if i := h.dependentLink(p.Addr); i >= 0 {
		return h.sendOn(i, p)
	}

	for n := 0; n < len(h.masters); n++ {
		i := (h.nextLink + n) % len(h.masters)
		if h.sendOn(i, p) {
			h.nextLink = (i + 1) % len(h.masters)
			return true
		}
	}

	return false
}

func (h *hostController) sendOn(i int, p *signal.Packet) bool {
	m := h.masters[i]
	if !m.Available() {
		return false
	}

	p.SourceLink = uint8(i)

	return m.Receive(p)
}

func (h *hostController) dependentLink(addr uint64) int {
	block := addr >> h.blockBits

	for i, m := range h.masters {
		found := false

		m.SendBuffer().ForEach(func(_ int, q *signal.Packet) bool {
			if q.Type == signal.Request && q.Addr>>h.blockBits == block {
				found = true
				return false
			}

			return true
		})

		if found {
			return i
		}
	}

	return -1
}

// ReceiveUp takes a response from an up-link slave.
func (h *hostController) ReceiveUp(p *signal.Packet) bool {
	if p.Trace == nil {
		log.Panicf("%s: response %s carries no trace", h.name, p)
	}

	if h.inFlight == 0 {
		log.Panicf("%s: response %s with nothing in flight", h.name, p)
	}

	h.inFlight--
	p.Trace.TranFullLat = h.now - p.Trace.TranTransmitTime

	switch p.Cmd {
	case signal.CmdRDRS:
		h.complete(p.Trace, true)
	case signal.CmdWRRS:
		h.complete(p.Trace, false)
	default:
		log.Panicf("%s: unexpected response %s", h.name, p)
	}

	return true
}

func (h *hostController) complete(t *signal.Trace, read bool) {
	if !t.Posted {
		t.MustBeComplete()
	}

	done := h.writeDone
	if read {
		done = h.readDone
	}

	if done != nil {
		done(t.Addr, h.now)
	}

	// A posted trace retires in its vault, once the write is done.
	if h.NumHooks() > 0 && !t.Posted {
		h.InvokeHook(hooking.HookCtx{
			Domain: h,
			Pos:    signal.HookPosTransactionRetire,
			Item:   t,
		})
	}
}

func (h *hostController) idle() bool {
	return h.queue.Empty() && h.inFlight == 0
}
