// Package timing provides clock arithmetic for a simulator that runs several
// clock domains from one host clock.
package timing

import (
	"log"
	"math"
)

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// FreqFromPeriodNS returns the frequency whose period is the given number of
// nanoseconds.
func FreqFromPeriodNS(ns float64) Freq {
	if ns <= 0 || math.IsNaN(ns) {
		log.Panicf("invalid clock period %f ns", ns)
	}

	return Freq(1e9 / ns)
}

// PeriodNS returns the time between two consecutive ticks in nanoseconds.
func (f Freq) PeriodNS() float64 {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return 1e9 / float64(f)
}

// Cycles converts a duration in nanoseconds to the number of whole cycles
// needed to cover it. Any non-zero duration takes at least one cycle.
func (f Freq) Cycles(ns float64) uint64 {
	if ns <= 0 {
		return 0
	}

	n := math.Ceil(math.Round(ns/f.PeriodNS()*1e6) / 1e6)
	if n < 1 {
		n = 1
	}

	return uint64(n)
}

// Ticker is anything that advances by one cycle of its own clock.
type Ticker interface {
	// Tick updates the state and reports whether anything changed.
	Tick() (madeProgress bool)
}

// TimeTeller tells the current cycle of a clock.
type TimeTeller interface {
	Now() uint64
}
