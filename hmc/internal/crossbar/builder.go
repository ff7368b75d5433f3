package crossbar

import (
	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/queueing"
)

// Builder can build crossbar switches.
type Builder struct {
	cfg *config.Config
}

// MakeBuilder creates a builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{cfg: config.Default()}
}

// WithConfig sets the configuration of the cube.
func (b Builder) WithConfig(cfg *config.Config) Builder {
	b.cfg = cfg
	return b
}

// Build creates a switch. Vaults and links are connected afterwards.
func (b Builder) Build(name string) *Switch {
	blockSize := b.cfg.MaxBlockSize()

	return &Switch{
		name: name,
		downBuffer: queueing.NewBuffer[*signal.Packet](
			name+".DownBuffer", b.cfg.MaxCrossBuf),
		upBuffer: queueing.NewBuffer[*signal.Packet](
			name+".UpBuffer", b.cfg.MaxCrossBuf),
		priority:      b.cfg.LinkPriority,
		blockSize:     blockSize,
		blockBits:     blockBits(blockSize),
		inServiceLink: -1,
		stash:         make(map[uint16]*reassembly),
	}
}
