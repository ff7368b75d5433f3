package link

import (
	"math"
	"math/rand"

	"github.com/sarchlab/hmcsim/hmc/signal"
)

// An ErrorModel decides whether a packet is corrupted on the wire.
type ErrorModel interface {
	Corrupts(p *signal.Packet) bool
}

// BitErrorModel flips a packet with the probability that at least one of its
// bits is wrong under a fixed bit error rate.
type BitErrorModel struct {
	rng *rand.Rand
	ber float64
}

// NewBitErrorModel creates a model with a bit error rate of 10^exponent.
func NewBitErrorModel(exponent int, rng *rand.Rand) *BitErrorModel {
	return &BitErrorModel{
		rng: rng,
		ber: math.Pow(10, float64(exponent)),
	}
}

// Probability returns the chance that a packet of the given length in FLITs
// has at least one bit error.
func (m *BitErrorModel) Probability(length int) float64 {
	if m.ber <= 0 {
		return 0
	}

	if m.ber >= 1 {
		return 1
	}

	bits := float64(signal.FlitBytes * 8 * length)

	return -math.Expm1(bits * math.Log1p(-m.ber))
}

// Corrupts draws whether the packet is hit by an error.
func (m *BitErrorModel) Corrupts(p *signal.Packet) bool {
	pr := m.Probability(p.Length)
	if pr == 0 {
		return false
	}

	return m.rng.Float64() < pr
}

// NoErrors never corrupts anything.
type NoErrors struct{}

// Corrupts returns false.
func (NoErrors) Corrupts(*signal.Packet) bool {
	return false
}
