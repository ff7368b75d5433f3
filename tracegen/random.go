package tracegen

import (
	"math/rand"

	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/signal"
)

// RandomSource issues reads and writes to random addresses.
type RandomSource struct {
	rng        *rand.Rand
	util       float64
	rwRatio    float64
	size       int
	randomSize bool
}

// NewRandomSource creates a random source. Each cycle it issues a request
// with probability util. rwRatio is the percentage of reads.
func NewRandomSource(rng *rand.Rand, util, rwRatio float64, size int) *RandomSource {
	return &RandomSource{
		rng:     rng,
		util:    util,
		rwRatio: rwRatio,
		size:    size,
	}
}

// WithRandomSize makes the source pick every request size among the valid
// transaction sizes.
func (s *RandomSource) WithRandomSize() *RandomSource {
	s.randomSize = true
	return s
}

// Next never ends.
func (s *RandomSource) Next(now uint64) (Request, bool, error) {
	if s.rng.Intn(10000)+1 > int(s.util*10000) {
		return Request{}, false, nil
	}

	addr := s.rng.Uint64()

	kind := signal.DataWrite
	if addr%101 <= uint64(s.rwRatio) {
		kind = signal.DataRead
	}

	size := s.size
	if s.randomSize {
		sizes := config.ValidTransactionSizes
		size = sizes[s.rng.Intn(len(sizes))]
	}

	return Request{Cycle: now, Kind: kind, Addr: addr, Size: size}, true, nil
}

// Generate produces the requests of cycles in [0, cycles).
func (s *RandomSource) Generate(cycles uint64) []Request {
	var reqs []Request

	for now := uint64(0); now < cycles; now++ {
		if req, ok, _ := s.Next(now); ok {
			reqs = append(reqs, req)
		}
	}

	return reqs
}
