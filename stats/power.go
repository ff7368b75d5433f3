package stats

import (
	"github.com/sarchlab/hmcsim/config"
)

// PowerModel prices a lane of link time in each power mode.
type PowerModel struct {
	// PowPerLane is the active power of one lane per Gb/s, in mW.
	PowPerLane float64
	LinkSpeed  float64

	// SleepPow and DownPow are percentages of the active power.
	SleepPow float64
	DownPow  float64
}

// PowerModelOf takes the link power parameters of cfg.
func PowerModelOf(cfg *config.Config) PowerModel {
	return PowerModel{
		PowPerLane: cfg.PowPerLane,
		LinkSpeed:  cfg.LinkSpeed,
		SleepPow:   cfg.SleepPow,
		DownPow:    cfg.DownPow,
	}
}

// LinkPower is the average power the links drew over a report window, in mW.
// The ratios are the mean share of time a link spent in a mode, in percent.
type LinkPower struct {
	Active float64 `json:"active"`
	Sleep  float64 `json:"sleep"`
	Down   float64 `json:"down"`

	SleepRatio float64 `json:"sleep_ratio"`
	DownRatio  float64 `json:"down_ratio"`
}

// Total returns the power drawn in all modes.
func (p LinkPower) Total() float64 {
	return p.Active + p.Sleep + p.Down
}

// Estimate spreads the cycles of the window over the modes of each link.
// Cycles a link spent neither asleep nor down count as active.
func (m PowerModel) Estimate(links []LinkReport, cycles uint64) LinkPower {
	var p LinkPower

	if cycles == 0 || len(links) == 0 {
		return p
	}

	active := m.PowPerLane * m.LinkSpeed
	window := float64(cycles)

	var actCycles, sleepCycles, downCycles float64

	for _, l := range links {
		low := min(l.SleepCycles+l.DownCycles, cycles)

		actCycles += float64(cycles - low)
		sleepCycles += float64(l.SleepCycles)
		downCycles += float64(l.DownCycles)
	}

	p.Active = actCycles * active / window
	p.Sleep = sleepCycles * active * m.SleepPow / 100 / window
	p.Down = downCycles * active * m.DownPow / 100 / window

	n := float64(len(links))
	p.SleepRatio = sleepCycles / window / n * 100
	p.DownRatio = downCycles / window / n * 100

	return p
}
