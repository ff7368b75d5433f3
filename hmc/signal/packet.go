// Package signal defines the values that travel through a memory cube:
// packets on the links, transactions from the host, and the DRAM commands a
// vault issues.
package signal

import (
	"fmt"
	"math/rand"
)

// PacketType tells requests, responses and link-level flow packets apart.
type PacketType uint8

// Packet types.
const (
	Request PacketType = iota
	Response
	Flow
)

func (t PacketType) String() string {
	switch t {
	case Request:
		return "REQUEST"
	case Response:
		return "RESPONSE"
	case Flow:
		return "FLOW"
	}

	return fmt.Sprintf("PacketType(%d)", uint8(t))
}

// AddressMask keeps the 34 address bits a request header can carry.
const AddressMask = uint64(1)<<34 - 1

// TagSpace is the number of distinct tags.
const TagSpace = 2048

// A Packet is the unit that moves across a link. A packet of Length FLITs
// occupies Length consecutive slots in every buffer it passes through.
type Packet struct {
	Type PacketType
	Cmd  PacketCommand

	Addr   uint64 // ADRS
	Cub    uint8  // CUB
	Tag    uint16 // TAG
	Length int    // LNG, in FLITs

	SourceLink  uint8  // SLID
	Seq         uint8  // SEQ
	FRP         uint16 // forward retry pointer
	RRP         uint16 // return retry pointer
	RTC         uint8  // returned token count
	CRC         uint32 // CRC
	Poisoned    bool   // Pb
	AtomicFlag  bool   // AF
	ErrStat     uint8  // ERRSTAT
	DataInvalid bool   // DINV

	Payload []uint64

	// DataSize is the number of bytes a request accesses.
	DataSize int

	// Segment marks a piece of a request split by the crossbar.
	Segment bool

	// BufPopDelay is the number of cycles left before a buffer may hand the
	// packet on.
	BufPopDelay int

	Trace *Trace
}

// Slots returns the number of buffer slots the packet occupies.
func (p *Packet) Slots() int {
	return p.Length
}

// NewRequest creates a request packet. A random source fills the payload of
// requests that carry data; a nil source leaves the payload empty.
func NewRequest(
	cmd PacketCommand,
	addr uint64,
	tag uint16,
	size int,
	trace *Trace,
	rng *rand.Rand,
) *Packet {
	p := &Packet{
		Type:        Request,
		Cmd:         cmd,
		Addr:        addr & AddressMask,
		Tag:         tag % TagSpace,
		Length:      RequestLength(cmd, size),
		DataSize:    size,
		BufPopDelay: 1,
		Trace:       trace,
	}

	if cmd.CarriesWriteData() {
		p.Payload = randomPayload(p.Length, rng)
	}

	return p
}

// NewResponse creates a response packet for the request with the given tag.
func NewResponse(
	cmd PacketCommand,
	tag uint16,
	length int,
	trace *Trace,
	rng *rand.Rand,
) *Packet {
	p := &Packet{
		Type:        Response,
		Cmd:         cmd,
		Tag:         tag % TagSpace,
		Length:      length,
		BufPopDelay: 1,
		Trace:       trace,
	}

	if cmd == CmdRDRS {
		p.Payload = randomPayload(length, rng)
	}

	return p
}

// NewFlow creates a single-FLIT flow packet. Flow packets always carry tag 0.
func NewFlow(cmd PacketCommand) *Packet {
	if !cmd.IsFlow() {
		panic(fmt.Sprintf("%s is not a flow command", cmd))
	}

	return &Packet{
		Type:        Flow,
		Cmd:         cmd,
		Length:      1,
		BufPopDelay: 1,
	}
}

func randomPayload(length int, rng *rand.Rand) []uint64 {
	if rng == nil || length <= 1 {
		return nil
	}

	words := make([]uint64, (length-1)*2)
	for i := range words {
		words[i] = rng.Uint64()
	}

	return words
}

// Clone returns a copy that shares the trace but not the payload.
func (p *Packet) Clone() *Packet {
	c := *p
	if p.Payload != nil {
		c.Payload = append([]uint64(nil), p.Payload...)
	}

	return &c
}

// DataBytes returns the number of payload bytes on the wire.
func (p *Packet) DataBytes() int {
	return (p.Length - 1) * FlitBytes
}

func (p *Packet) String() string {
	return fmt.Sprintf("[P%d-%s]", p.Tag, p.Cmd)
}

// A TagCounter hands out packet tags. A tag whose packet was not accepted
// can be given back so that the next packet reuses it.
type TagCounter struct {
	next uint32
}

// Next returns a new tag.
func (c *TagCounter) Next() uint16 {
	tag := uint16(c.next % TagSpace)
	c.next++

	return tag
}

// Rollback returns the most recent tag.
func (c *TagCounter) Rollback() {
	if c.next == 0 {
		panic("tag counter rolled back past zero")
	}

	c.next--
}
