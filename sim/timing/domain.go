package timing

import (
	"log"
)

const alignEpsilonNS = 1e-9

// A Domain tracks how many ticks of a secondary clock fall into each tick of
// the host clock. Both counters restart whenever the two clocks line up, so
// ratios that are not whole numbers never drift.
type Domain struct {
	name string

	hostNS   float64
	periodNS float64

	hostTicks uint64
	ticks     uint64
	total     uint64
}

// NewDomain creates a domain with the given period, driven by a host clock of
// hostPeriodNS.
func NewDomain(name string, hostPeriodNS, periodNS float64) *Domain {
	d := &Domain{
		name:     name,
		hostNS:   hostPeriodNS,
		periodNS: periodNS,
	}

	if hostPeriodNS <= 0 || periodNS <= 0 {
		log.Panicf("clock domain %s has a non-positive period", name)
	}

	return d
}

// Name returns the name of the domain.
func (d *Domain) Name() string {
	return d.name
}

// Steps returns how many ticks the domain makes before the end of the next
// host tick. It must be called exactly once per host tick.
func (d *Domain) Steps() int {
	d.hostTicks++
	hostTime := float64(d.hostTicks) * d.hostNS

	n := 0
	for float64(d.ticks+1)*d.periodNS <= hostTime+alignEpsilonNS {
		d.ticks++
		n++
	}

	diff := float64(d.ticks)*d.periodNS - hostTime
	if diff < alignEpsilonNS && diff > -alignEpsilonNS {
		d.ticks = 0
		d.hostTicks = 0
	}

	d.total += uint64(n)

	return n
}

// Now returns the number of ticks the domain has made in total.
func (d *Domain) Now() uint64 {
	return d.total
}
