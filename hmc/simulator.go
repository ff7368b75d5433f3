// Package hmc is a cycle-accurate model of a Hybrid Memory Cube. A host
// submits transactions, advances the model one host cycle at a time, and is
// told when each transaction completes.
package hmc

import (
	"context"
	"fmt"

	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/internal/link"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
	"github.com/sarchlab/hmcsim/sim/timing"
)

// Simulator is a memory cube together with the host controller that drives
// its links.
type Simulator struct {
	hooking.HookableBase

	name string
	cfg  *config.Config
	now  uint64

	host  *hostController
	cube  *cube
	power *powerManager

	hostMasters []*link.Master
	hostSlaves  []*link.Slave
	downLinks   []*link.Link
	upLinks     []*link.Link

	linkClock *timing.Domain
	dramClock *timing.Domain

	epoch      uint64
	epochIndex uint64
	sampling   uint64
	closed     bool
}

// Name returns the name of the simulator.
func (s *Simulator) Name() string {
	return s.name
}

// Config returns the configuration the simulator was built with.
func (s *Simulator) Config() *config.Config {
	return s.cfg
}

// Now returns the number of host cycles simulated so far.
func (s *Simulator) Now() uint64 {
	return s.now
}

// ClockPeriod returns the period in nanoseconds a host should pace its
// requests with.
func (s *Simulator) ClockPeriod() float64 {
	return s.cfg.EffectiveClockPeriod()
}

// QueueSize returns the depth of the host request queue.
func (s *Simulator) QueueSize() int {
	return s.cfg.MaxReqBuf
}

// BurstSize returns the number of bytes a vault moves in one burst.
func (s *Simulator) BurstSize() int {
	return int(s.cfg.DeriveTiming().BL) * 32
}

// OnReadComplete sets the function called when a read completes.
func (s *Simulator) OnReadComplete(f CompletionFunc) {
	s.host.readDone = f
}

// OnWriteComplete sets the function called when a write completes. Posted
// writes complete as soon as they are handed to a link.
func (s *Simulator) OnWriteComplete(f CompletionFunc) {
	s.host.writeDone = f
}

// UpdateMSHR tells the link power manager how many misses the host has
// outstanding.
func (s *Simulator) UpdateMSHR(n int) {
	s.power.updateMSHR(n)
}

// CanAccept tells if Submit would take a transaction now.
func (s *Simulator) CanAccept() bool {
	return s.host.canAccept()
}

// Submit queues a transaction. A size of 0 uses the configured transaction
// size. It returns false if the host queue is full.
func (s *Simulator) Submit(
	kind signal.TransactionKind,
	addr uint64,
	size int,
) bool {
	if size == 0 {
		size = s.cfg.TransactionSize
	}

	if !s.host.canAccept() {
		return false
	}

	return s.host.submit(s.host.newTransaction(kind, addr, size))
}

// SubmitTransaction queues a transaction built by the caller.
func (s *Simulator) SubmitTransaction(t *signal.Transaction) bool {
	if t.Size == 0 {
		t.Size = s.cfg.TransactionSize
	}

	return s.host.submit(t)
}

// Advance simulates one host cycle.
func (s *Simulator) Advance() {
	if s.closed {
		panic(fmt.Errorf("%s: advanced after close", s.name))
	}

	s.host.tick()

	for _, m := range s.hostMasters {
		m.Tick()
	}

	linkSteps := s.linkClock.Steps()
	tickLinks(s.downLinks, linkSteps)

	for i, n := 0, s.dramClock.Steps(); i < n; i++ {
		s.cube.tick()
	}

	tickLinks(s.upLinks, linkSteps)

	for _, sl := range s.hostSlaves {
		sl.Tick()
	}

	s.power.tick()
	s.now++

	if s.sampling > 0 && s.now%s.sampling == 0 {
		s.endSample()
	}

	if s.now%s.epoch == 0 {
		s.endEpoch(false)
	}
}

func tickLinks(links []*link.Link, steps int) {
	for i := 0; i < steps; i++ {
		last := i == steps-1
		for _, l := range links {
			l.Tick(last)
		}
	}
}

// AdvanceN simulates n host cycles. It stops early with the context's error
// if the context is cancelled.
func (s *Simulator) AdvanceN(ctx context.Context, n uint64) error {
	for i := uint64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.Advance()
	}

	return nil
}

// Drained tells if no transaction is queued or in flight and every link has
// settled.
func (s *Simulator) Drained() bool {
	if !s.host.idle() || s.cube.busy() {
		return false
	}

	for i, m := range s.hostMasters {
		if !m.Idle() || !s.cube.masters[i].Idle() {
			return false
		}

		if s.downLinks[i].InFlight() != nil || s.upLinks[i].InFlight() != nil {
			return false
		}
	}

	return true
}

// Close reports the last epoch. The simulator cannot advance afterwards.
func (s *Simulator) Close() error {
	if s.closed {
		return fmt.Errorf("%s: already closed", s.name)
	}

	s.endEpoch(true)
	s.closed = true

	return nil
}

func (s *Simulator) endEpoch(final bool) {
	if s.NumHooks() > 0 {
		s.InvokeHook(hooking.HookCtx{
			Domain: s,
			Pos:    signal.HookPosEpoch,
			Item: signal.Epoch{
				Index: s.epochIndex,
				Cycle: s.now,
				Final: final,
			},
		})
	}

	s.epochIndex++
}

// AcceptHook registers a hook on the simulator and on every component in it.
func (s *Simulator) AcceptHook(hook hooking.Hook) {
	s.HookableBase.AcceptHook(hook)
	s.host.AcceptHook(hook)

	for i := range s.hostMasters {
		s.hostMasters[i].AcceptHook(hook)
		s.hostSlaves[i].AcceptHook(hook)
		s.downLinks[i].AcceptHook(hook)
		s.upLinks[i].AcceptHook(hook)
		s.cube.masters[i].AcceptHook(hook)
		s.cube.slaves[i].AcceptHook(hook)
	}

	for _, v := range s.cube.vaults {
		v.AcceptHook(hook)
		v.DRAM().AcceptHook(hook)
	}
}

func (s *Simulator) endSample() {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    signal.HookPosSample,
		Item: signal.Sample{
			Index: s.now / s.sampling,
			Cycle: s.now,
		},
	})
}
