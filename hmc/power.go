package hmc

import (
	"math"

	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/internal/link"
)

// powerManager decides which links sleep. It only drives the host-side
// masters; the device side follows through the link handshakes.
type powerManager struct {
	policy   config.LinkPowerPolicy
	awakeReq int

	masters []*link.Master
	down    []*link.Link
	up      []*link.Link

	quiesce     uint64
	stagger     uint64
	sleepToDown uint64

	epoch       uint64
	epochBytes  float64
	lastDown    []uint64
	lastUp      []uint64
	linkScaling float64
	mshrScaling float64
	mshr        int

	now        uint64
	lastChange uint64
	changed    bool
}

func newPowerManager(cfg *config.Config, masters []*link.Master,
	down, up []*link.Link,
) *powerManager {
	epoch := cfg.HostCycles(cfg.LinkEpoch)
	if epoch == 0 {
		epoch = 1
	}

	// Bytes one link direction can move in an epoch.
	bytesPerNS := float64(cfg.LinkWidth) * cfg.LinkSpeed / 8
	epochNS := float64(epoch) * cfg.CPUClockPeriod

	return &powerManager{
		policy:      cfg.LinkPower,
		awakeReq:    cfg.AwakeReq,
		masters:     masters,
		down:        down,
		up:          up,
		quiesce:     cfg.HostCycles(cfg.TQuiesce),
		stagger:     cfg.HostCycles(cfg.TSS),
		sleepToDown: cfg.HostCycles(cfg.TSD),
		epoch:       epoch,
		epochBytes:  bytesPerNS * epochNS,
		lastDown:    make([]uint64, len(masters)),
		lastUp:      make([]uint64, len(masters)),
		linkScaling: cfg.LinkScaling,
		mshrScaling: cfg.MSHRScaling,
	}
}

func (pm *powerManager) tick() bool {
	madeProgress := false

	switch pm.policy {
	case config.QuiesceSleep:
		madeProgress = pm.quiesceIdleLinks()
		madeProgress = pm.powerDownSleepingLinks() || madeProgress
	case config.LinkMonitor, config.MSHR, config.Autonomous:
		if pm.now > 0 && pm.now%pm.epoch == 0 {
			madeProgress = pm.resize(pm.required())
		}
	}

	pm.now++

	return madeProgress
}

func (pm *powerManager) mayChange() bool {
	return !pm.changed || pm.now-pm.lastChange >= pm.stagger
}

func (pm *powerManager) markChange() {
	pm.changed = true
	pm.lastChange = pm.now
}

func (pm *powerManager) awake() int {
	n := 0

	for _, m := range pm.masters {
		if !m.State().Asleep() {
			n++
		}
	}

	return n
}

func (pm *powerManager) quiesceIdleLinks() bool {
	if !pm.mayChange() || pm.awake() <= 1 {
		return false
	}

	for _, m := range pm.masters {
		if m.IdleCycles() >= pm.quiesce && m.Sleep() {
			pm.markChange()
			return true
		}
	}

	return false
}

func (pm *powerManager) powerDownSleepingLinks() bool {
	if !pm.mayChange() {
		return false
	}

	for _, m := range pm.masters {
		if m.State() != link.Sleep && m.State() != link.Down {
			return false
		}
	}

	for _, m := range pm.masters {
		if m.AsleepFor() >= pm.sleepToDown && m.PowerDown() {
			pm.markChange()
			return true
		}
	}

	return false
}

// required returns the number of links the traffic of the last epoch asks
// for.
func (pm *powerManager) required() int {
	byTraffic := 0
	byMSHR := 0

	if pm.policy != config.MSHR {
		byTraffic = int(math.Ceil(pm.utilization() / pm.linkScaling))
	}

	if pm.policy != config.LinkMonitor {
		byMSHR = int(math.Ceil(float64(pm.mshr) * pm.mshrScaling))
	}

	n := max(byTraffic, byMSHR)

	return min(max(n, 1), len(pm.masters))
}

// utilization sums, over the links, the busier direction's share of the
// link bandwidth during the last epoch.
func (pm *powerManager) utilization() float64 {
	total := 0.0

	for i := range pm.masters {
		down := pm.down[i].Counters().TransmittedBytes
		up := pm.up[i].Counters().TransmittedBytes
		moved := max(down-pm.lastDown[i], up-pm.lastUp[i])
		pm.lastDown[i] = down
		pm.lastUp[i] = up

		total += float64(moved) / pm.epochBytes
	}

	return total
}

func (pm *powerManager) resize(required int) bool {
	awake := pm.awake()

	switch {
	case awake > required:
		for i := len(pm.masters) - 1; i >= 0; i-- {
			if pm.masters[i].Sleep() {
				return true
			}
		}
	case awake < required:
		return pm.wakeOne()
	}

	return false
}

// demand reacts to queued requests. It wakes a link once enough requests
// wait, or when every link is asleep.
func (pm *powerManager) demand(waiting int) {
	if pm.policy == config.NoManagement {
		return
	}

	if pm.awake() > 0 && waiting < pm.awakeReq {
		return
	}

	for _, m := range pm.masters {
		if m.State().Retraining() {
			return
		}
	}

	pm.wakeOne()
}

func (pm *powerManager) wakeOne() bool {
	for _, m := range pm.masters {
		if m.Wake() {
			pm.markChange()
			return true
		}
	}

	return false
}

func (pm *powerManager) updateMSHR(n int) {
	pm.mshr = n
}
