package config

import (
	"math"
)

// Timing holds the DRAM timing parameters converted to DRAM clock cycles.
type Timing struct {
	CWL, CL, AL  uint64
	RL, WL, BL   uint64
	TRAS, TRCD   uint64
	TRRD, TRC    uint64
	TRP, TCCD    uint64
	TRTP, TWTR   uint64
	TWR, TRTRS   uint64
	TRFC, TFAW   uint64
	TCKE, TXP    uint64
	TCMD         uint64
	ReadToPre    uint64
	WriteToPre   uint64
	ReadToWrite  uint64
	ReadAutoPre  uint64
	WriteAutoPre uint64
	WriteToReadB uint64

	RefreshPeriod uint64
}

func clk(ns, tCK float64) uint64 {
	if ns <= 0 {
		return 0
	}

	return uint64(math.Ceil(math.Round(ns/tCK*1e6) / 1e6))
}

// DeriveTiming converts the DRAM timing of c into clock cycles.
func (c *Config) DeriveTiming() Timing {
	t := Timing{
		CWL:   clk(c.CWL, c.TCK),
		CL:    clk(c.CL, c.TCK),
		AL:    clk(c.AL, c.TCK),
		TRAS:  clk(c.TRAS, c.TCK),
		TRCD:  clk(c.TRCD, c.TCK),
		TRRD:  clk(c.TRRD, c.TCK),
		TRC:   clk(c.TRC, c.TCK),
		TRP:   clk(c.TRP, c.TCK),
		TCCD:  clk(c.TCCD, c.TCK),
		TRTP:  clk(c.TRTP, c.TCK),
		TWTR:  clk(c.TWTR, c.TCK),
		TWR:   clk(c.TWR, c.TCK),
		TRTRS: clk(c.TRTRS, c.TCK),
		TRFC:  clk(c.TRFC, c.TCK),
		TFAW:  clk(c.TFAW, c.TCK),
		TCKE:  clk(c.TCKE, c.TCK),
		TXP:   clk(c.TXP, c.TCK),
		TCMD:  clk(c.TCMD, c.TCK),

		RefreshPeriod: clk(c.RefreshPeriod, c.TCK),
	}

	if t.TCMD == 0 {
		t.TCMD = 1
	}

	t.RL = t.AL + t.CL
	t.WL = t.AL + t.CWL
	t.BL = uint64(c.MaxBlockSize() / 32)

	t.ReadToPre = t.AL + t.BL/2 + max(t.TRTP, t.TCCD) - t.TCCD
	t.WriteToPre = t.WL + t.BL/2 + t.TWR
	t.ReadAutoPre = t.AL + t.TRTP + t.TRP
	t.WriteAutoPre = t.WL + t.BL/2 + t.TWR + t.TRP
	t.WriteToReadB = t.WL + t.BL/2 + t.TWTR

	// Write data must not reach the vault data bus while read data of
	// a wide burst is still coming back.
	turnaround := max(t.TCCD+2, t.BL+1)
	if t.RL+turnaround > t.WL {
		t.ReadToWrite = t.RL + turnaround - t.WL
	}

	return t
}

// HostCycles converts nanoseconds to host clock cycles, rounding up.
func (c *Config) HostCycles(ns float64) uint64 {
	return clk(ns, c.CPUClockPeriod)
}

// DRAMCycles converts nanoseconds to DRAM clock cycles, rounding up.
func (c *Config) DRAMCycles(ns float64) uint64 {
	return clk(ns, c.TCK)
}
