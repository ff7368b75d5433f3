package vault

import (
	"math/rand"

	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/internal/cmdq"
	"github.com/sarchlab/hmcsim/hmc/internal/org"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/queueing"
)

// Builder can build vault controllers.
type Builder struct {
	cfg      *config.Config
	id       int
	upstream Upstream
	rng      *rand.Rand
}

// MakeBuilder creates a builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg: config.Default(),
	}
}

// WithConfig sets the configuration of the cube the vault belongs to.
func (b Builder) WithConfig(cfg *config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithID sets the index of the vault. It staggers the refreshes of the
// vaults.
func (b Builder) WithID(id int) Builder {
	b.id = id
	return b
}

// WithUpstream sets where responses go.
func (b Builder) WithUpstream(u Upstream) Builder {
	b.upstream = u
	return b
}

// WithRand sets the random source of response payloads.
func (b Builder) WithRand(rng *rand.Rand) Builder {
	b.rng = rng
	return b
}

// Build creates a vault controller together with its DRAM and command queue.
func (b Builder) Build(name string) *Comp {
	cfg := b.cfg
	t := cfg.DeriveTiming()

	c := &Comp{
		name:     name,
		id:       b.id,
		upstream: b.upstream,
		rng:      b.rng,
		timing:   t,

		hostPerDRAM:   cfg.TCK / cfg.CPUClockPeriod,
		useLowPower:   cfg.UseLowPower,
		refreshPeriod: t.RefreshPeriod,

		pendingReads: make(map[uint16]int),
	}

	c.downBuffer = queueing.NewBuffer[*signal.Packet](
		name+".DownBuffer", cfg.MaxVaultBuf)
	c.upBuffer = queueing.NewBuffer[*signal.Packet](
		name+".UpBuffer", cfg.MaxVaultBuf)

	c.creator = CommandCreator{
		Mapper: NewAddressMapper(cfg.MaxBlockSize(),
			cfg.NumVaults, cfg.NumBanks, cfg.NumRows, cfg.NumCols),
		OpenPage:   cfg.OpenPage,
		BurstBytes: int(max(t.BL, 1)) * 32,
	}

	dram := org.NewDevice(name+".DRAM", cfg.NumBanks, t)
	dram.SetReturner(c)
	c.dram = dram

	q := cmdq.NewCommandQueue(name+".CmdQueue",
		cfg.NumBanks, cfg.MaxCmdQueue, cfg.QuePerBank)
	q.OpenPage = cfg.OpenPage
	q.MaxRowAccesses = cfg.MaxRowAccesses
	q.TFAW = t.TFAW
	q.Banks = dram
	q.Budget = c
	q.Clock = c
	c.cmdQueue = q

	if cfg.NumVaults > 0 {
		c.refreshCountdown = t.RefreshPeriod /
			uint64(cfg.NumVaults) * uint64(b.id+1)
	}

	return c
}
