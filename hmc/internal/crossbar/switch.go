// Package crossbar connects the links of a memory cube to its vaults.
package crossbar

import (
	"log"
	"math/bits"

	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/queueing"
)

// A Vault takes request packets.
type Vault interface {
	ReceiveDown(p *signal.Packet) bool
}

// An UpLink is the device-side master of a link that carries responses back
// to the host.
type UpLink interface {
	// Receive takes a response. It returns false if the link is full.
	Receive(p *signal.Packet) bool

	// Available tells if the link can take responses now.
	Available() bool

	// Occupancy returns the number of slots the link has queued.
	Occupancy() int
}

// Switch routes requests to vaults by address and spreads responses over the
// links.
type Switch struct {
	name string
	now  uint64

	downBuffer  *queueing.Buffer[*signal.Packet]
	upBuffer    *queueing.Buffer[*signal.Packet]
	bufPopDelay int

	vaults    []Vault
	links     []UpLink
	priority  config.LinkPriority
	blockSize int
	blockBits uint

	inServiceLink int
	stash         map[uint16]*reassembly
}

// Name returns the name of the switch.
func (s *Switch) Name() string {
	return s.name
}

// Now returns the current cycle of the switch.
func (s *Switch) Now() uint64 {
	return s.now
}

// DownBuffer returns the buffer of requests waiting for a vault.
func (s *Switch) DownBuffer() *queueing.Buffer[*signal.Packet] {
	return s.downBuffer
}

// UpBuffer returns the buffer of responses waiting for a link.
func (s *Switch) UpBuffer() *queueing.Buffer[*signal.Packet] {
	return s.upBuffer
}

// ConnectVaults sets the vaults, indexed by vault number.
func (s *Switch) ConnectVaults(vaults ...Vault) {
	s.vaults = vaults
}

// ConnectLinks sets the links responses can go to.
func (s *Switch) ConnectLinks(links ...UpLink) {
	s.links = links
}

// Busy tells if the switch holds any packet.
func (s *Switch) Busy() bool {
	return !s.downBuffer.Empty() || !s.upBuffer.Empty() || len(s.stash) > 0
}

// VaultOf returns the vault that serves addr.
func (s *Switch) VaultOf(addr uint64) int {
	return int((addr >> s.blockBits) & uint64(len(s.vaults)-1))
}

// ReceiveDown takes a request from a link. A request larger than the
// maximum block size is split into segments, which must all fit at once.
func (s *Switch) ReceiveDown(p *signal.Packet) bool {
	packets := []*signal.Packet{p}
	if p.Type == signal.Request && p.DataSize > s.blockSize {
		packets = split(p, s.blockSize)
	}

	slots := 0
	for _, pkt := range packets {
		slots += pkt.Slots()
	}

	if !s.downBuffer.CanPush(slots) {
		return false
	}

	if len(packets) > 1 {
		if !p.Cmd.IsPosted() {
			s.stash[p.Tag] = &reassembly{expected: len(packets)}
		}

		if p.Trace != nil {
			p.Trace.Segments = len(packets)
		}
	}

	if s.downBuffer.Empty() {
		s.bufPopDelay = 1
	}

	for _, pkt := range packets {
		s.downBuffer.Push(pkt)
	}

	return true
}

// ReceiveUp takes a response from a vault. Responses to segments are held
// until the response to the last segment arrives.
func (s *Switch) ReceiveUp(p *signal.Packet) bool {
	if !p.Segment {
		if !s.upBuffer.CanPush(p.Slots()) {
			return false
		}

		s.upBuffer.Push(p)

		return true
	}

	r, found := s.stash[p.Tag]
	if !found {
		log.Panicf("%s: no segmented request matches %s", s.name, p)
	}

	r.received = append(r.received, p)
	r.bytes += p.DataSize

	if !r.complete() {
		return true
	}

	rsp := r.combine()

	if !s.upBuffer.CanPush(rsp.Slots()) {
		r.received = r.received[:len(r.received)-1]
		r.bytes -= p.DataSize

		return false
	}

	delete(s.stash, p.Tag)
	s.upBuffer.Push(rsp)

	return true
}

// Tick moves requests to vaults and responses to links.
func (s *Switch) Tick() bool {
	madeProgress := false

	madeProgress = s.dispatchDown() || madeProgress
	madeProgress = s.dispatchUp() || madeProgress

	s.now++

	if s.bufPopDelay > 0 {
		s.bufPopDelay--
	}

	return madeProgress
}

func (s *Switch) dispatchDown() bool {
	if s.bufPopDelay > 0 {
		return false
	}

	madeProgress := false

	for i := 0; i < s.downBuffer.Size(); {
		p := s.downBuffer.Item(i)

		if s.vaults[s.VaultOf(p.Addr)].ReceiveDown(p) {
			s.downBuffer.Remove(i)
			madeProgress = true

			continue
		}

		i += p.Slots()
	}

	return madeProgress
}

func (s *Switch) dispatchUp() bool {
	madeProgress := false

	for i := 0; i < s.upBuffer.Size(); {
		p := s.upBuffer.Item(i)

		if s.sendToLink(p) {
			s.upBuffer.Remove(i)
			madeProgress = true

			continue
		}

		i += p.Slots()
	}

	return madeProgress
}

func (s *Switch) sendToLink(p *signal.Packet) bool {
	if s.priority == config.BufferAware {
		l := s.leastOccupiedLink()
		return l >= 0 && s.links[l].Receive(p)
	}

	for range s.links {
		s.inServiceLink = (s.inServiceLink + 1) % len(s.links)

		link := s.links[s.inServiceLink]
		if !link.Available() {
			continue
		}

		if link.Receive(p) {
			return true
		}
	}

	return false
}

func (s *Switch) leastOccupiedLink() int {
	best := -1
	bestOccupancy := 0

	for i, link := range s.links {
		if !link.Available() {
			continue
		}

		occupancy := link.Occupancy()
		if best < 0 || occupancy < bestOccupancy {
			best = i
			bestOccupancy = occupancy
		}
	}

	return best
}

func blockBits(blockSize int) uint {
	if blockSize <= 0 || blockSize&(blockSize-1) != 0 {
		log.Panicf("max block size %d is not a power of two", blockSize)
	}

	return uint(bits.TrailingZeros(uint(blockSize)))
}
