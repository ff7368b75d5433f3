package hmc

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/internal/crossbar"
	"github.com/sarchlab/hmcsim/hmc/internal/link"
	"github.com/sarchlab/hmcsim/hmc/internal/vault"
	"github.com/sarchlab/hmcsim/sim/timing"
)

// An ErrorModel decides whether a packet is corrupted on a link.
type ErrorModel = link.ErrorModel

// ErrorModelFunc picks the error model of one direction of a link.
type ErrorModelFunc func(linkID int, downstream bool) ErrorModel

// Builder can build simulators.
type Builder struct {
	cfg    *config.Config
	errors ErrorModelFunc
}

// MakeBuilder creates a builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg: config.Default(),
	}
}

// WithConfig sets the configuration of the cube.
func (b Builder) WithConfig(cfg *config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithErrorModel replaces the bit error model of the links.
func (b Builder) WithErrorModel(f ErrorModelFunc) Builder {
	b.errors = f
	return b
}

// New validates cfg and builds a simulator with it.
func New(cfg *config.Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return MakeBuilder().WithConfig(cfg).Build("HMC"), nil
}

// Build creates a simulator. It panics if the configuration is invalid.
func (b Builder) Build(name string) *Simulator {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		log.Panicf("%s: %v", name, err)
	}

	s := &Simulator{
		name: name,
		cfg:  cfg,
		linkClock: timing.NewDomain(name+".LinkClock",
			cfg.CPUClockPeriod, cfg.LinkPeriod()),
		dramClock: timing.NewDomain(name+".DRAMClock",
			cfg.CPUClockPeriod, cfg.TCK),
		epoch: cfg.LogEpoch,
	}

	if cfg.BandwidthPlot && cfg.PlotSampling > 0 {
		s.sampling = uint64(cfg.PlotSampling)
	}

	s.host = newHostController(name+".Host", cfg.MaxReqBuf,
		cfg.MaxBlockSize(), rand.New(rand.NewSource(cfg.Seed)))

	xbar := crossbar.MakeBuilder().WithConfig(cfg).Build(name + ".Crossbar")
	s.cube = &cube{crossbar: xbar}

	b.buildVaults(s)
	b.buildLinks(s)

	s.host.masters = s.hostMasters
	s.power = newPowerManager(cfg, s.hostMasters, s.downLinks, s.upLinks)
	s.host.waiting = s.power.demand

	return s
}

func (b Builder) buildVaults(s *Simulator) {
	cfg := b.cfg
	vaults := make([]crossbar.Vault, 0, cfg.NumVaults)

	for i := 0; i < cfg.NumVaults; i++ {
		v := vault.MakeBuilder().
			WithConfig(cfg).
			WithID(i).
			WithUpstream(s.cube.crossbar).
			WithRand(rand.New(rand.NewSource(cfg.Seed + int64(1024+i)))).
			Build(fmt.Sprintf("%s.Vault[%d]", s.name, i))

		s.cube.vaults = append(s.cube.vaults, v)
		vaults = append(vaults, v)
	}

	s.cube.crossbar.ConnectVaults(vaults...)
}

func (b Builder) buildLinks(s *Simulator) {
	cfg := b.cfg
	upLinks := make([]crossbar.UpLink, 0, cfg.NumLinks)

	for i := 0; i < cfg.NumLinks; i++ {
		prefix := fmt.Sprintf("%s.Link[%d]", s.name, i)
		lb := link.MakeBuilder().WithConfig(cfg).WithID(i)

		hostMaster := lb.BuildMaster(prefix+".HostMaster", link.HostSide)
		hostSlave := lb.BuildSlave(prefix+".HostSlave", link.HostSide)
		devMaster := lb.BuildMaster(prefix+".DeviceMaster", link.DeviceSide)
		devSlave := lb.BuildSlave(prefix+".DeviceSlave", link.DeviceSide)

		down := b.wire(lb, i, true).Build(prefix+".Down", hostMaster, devSlave)
		up := b.wire(lb, i, false).Build(prefix+".Up", devMaster, hostSlave)

		link.Pair(hostMaster, hostSlave)
		link.Pair(devMaster, devSlave)
		devSlave.ConnectDown(s.cube.crossbar)
		hostSlave.ConnectUp(s.host)

		s.hostMasters = append(s.hostMasters, hostMaster)
		s.hostSlaves = append(s.hostSlaves, hostSlave)
		s.downLinks = append(s.downLinks, down)
		s.upLinks = append(s.upLinks, up)
		s.cube.slaves = append(s.cube.slaves, devSlave)
		s.cube.masters = append(s.cube.masters, devMaster)
		upLinks = append(upLinks, devMaster)
	}

	s.cube.crossbar.ConnectLinks(upLinks...)
}

// wire prepares the builder of one link direction. Each direction draws its
// bit errors from its own random source.
func (b Builder) wire(lb link.Builder, id int, downstream bool) link.Builder {
	if b.errors != nil {
		return lb.WithErrorModel(b.errors(id, downstream))
	}

	stream := int64(2 * id)
	if !downstream {
		stream++
	}

	return lb.WithRand(rand.New(rand.NewSource(b.cfg.Seed + stream)))
}
