package hmc

import (
	"github.com/sarchlab/hmcsim/hmc/internal/crossbar"
	"github.com/sarchlab/hmcsim/hmc/internal/link"
	"github.com/sarchlab/hmcsim/hmc/internal/vault"
)

// cube is the device side of the simulator: the link ends inside the cube,
// the crossbar and the vaults. Everything in it runs on the DRAM clock.
type cube struct {
	slaves   []*link.Slave
	masters  []*link.Master
	crossbar *crossbar.Switch
	vaults   []*vault.Comp
}

// tick runs one DRAM cycle, from the down-link slaves to the up-link
// masters.
func (c *cube) tick() bool {
	madeProgress := false

	for _, s := range c.slaves {
		madeProgress = s.Tick() || madeProgress
	}

	madeProgress = c.crossbar.Tick() || madeProgress

	for _, v := range c.vaults {
		madeProgress = v.Tick() || madeProgress
	}

	for _, v := range c.vaults {
		madeProgress = v.DRAM().Tick() || madeProgress
	}

	for _, m := range c.masters {
		madeProgress = m.Tick() || madeProgress
	}

	return madeProgress
}

func (c *cube) busy() bool {
	if c.crossbar.Busy() {
		return true
	}

	for _, v := range c.vaults {
		if v.Busy() {
			return true
		}
	}

	return false
}
