package link

import (
	"math/rand"

	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/queueing"
	"github.com/sarchlab/hmcsim/sim/timing"
)

// Builder can build link masters, slaves and the links between them.
type Builder struct {
	cfg    *config.Config
	id     int
	errors ErrorModel
	rng    *rand.Rand
}

// MakeBuilder creates a builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		cfg: config.Default(),
	}
}

// WithConfig sets the configuration of the cube the link belongs to.
func (b Builder) WithConfig(cfg *config.Config) Builder {
	b.cfg = cfg
	return b
}

// WithID sets the index of the link.
func (b Builder) WithID(id int) Builder {
	b.id = id
	return b
}

// WithErrorModel replaces the bit error model of the link.
func (b Builder) WithErrorModel(m ErrorModel) Builder {
	b.errors = m
	return b
}

// WithRand sets the random source of the bit error model.
func (b Builder) WithRand(rng *rand.Rand) Builder {
	b.rng = rng
	return b
}

func (b Builder) periodNS(side Side) float64 {
	if side == HostSide {
		return b.cfg.CPUClockPeriod
	}

	return b.cfg.TCK
}

// BuildMaster creates the master on the given side. Host-side masters run on
// the host clock and device-side masters on the DRAM clock.
func (b Builder) BuildMaster(name string, side Side) *Master {
	cfg := b.cfg
	period := b.periodNS(side)
	clock := timing.FreqFromPeriodNS(period)

	return &Master{
		name: name,
		id:   b.id,
		side: side,

		capacity:   cfg.MaxLinkBuf,
		sendBuffer: queueing.NewBuffer[*signal.Packet](name+".SendBuffer", 0),
		txQueue:    queueing.NewBuffer[*signal.Packet](name+".TxQueue", 0),
		retryBuf: queueing.NewRing[*signal.Packet](
			name+".RetryBuffer", cfg.MaxRetryBuf),

		maxTokens: cfg.MaxLinkBuf,
		tokens:    cfg.MaxLinkBuf,

		crcCheck:    cfg.CRCCheck,
		crcCalCycle: cfg.CRCCalCycle,

		numIRTRY:      cfg.NumIRTRY,
		attemptLimit:  cfg.RetryAttemptLimit,
		retryTimeout:  uint64(cfg.MaxRetryBuf) * 4,
		retryAttempts: 1,
		hostPerCycle:  period / cfg.CPUClockPeriod,

		power: powerTiming{
			sme:   clock.Cycles(cfg.TSME),
			pst:   clock.Cycles(cfg.TPST),
			op:    clock.Cycles(cfg.TOP),
			psc:   clock.Cycles(cfg.TPSC),
			resp1: clock.Cycles(cfg.TResp1),
			resp2: clock.Cycles(cfg.TResp2),
		},
	}
}

// BuildSlave creates the slave on the given side.
func (b Builder) BuildSlave(name string, side Side) *Slave {
	return &Slave{
		name: name,
		id:   b.id,
		side: side,

		recvBuffer: queueing.NewBuffer[*signal.Packet](
			name+".RecvBuffer", b.cfg.MaxLinkBuf),

		crcCheck:    b.cfg.CRCCheck,
		crcCalCycle: b.cfg.CRCCalCycle,
	}
}

// Build creates the wire from a master to the slave at the other end.
func (b Builder) Build(name string, m *Master, s *Slave) *Link {
	errors := b.errors
	if errors == nil {
		rng := b.rng
		if rng == nil {
			rng = rand.New(rand.NewSource(b.cfg.Seed + int64(b.id)))
		}

		errors = NewBitErrorModel(b.cfg.LinkBER, rng)
	}

	return &Link{
		name:      name,
		id:        b.id,
		linkWidth: b.cfg.LinkWidth,
		master:    m,
		slave:     s,
		errors:    errors,
	}
}

// Pair joins the master and the slave that sit on the same side of a link,
// so that the slave can hand retry pointers and tokens to the master.
func Pair(m *Master, s *Slave) {
	m.slave = s
	s.master = m
}
