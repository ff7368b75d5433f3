package org

import (
	"log"

	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
)

// HookPosBankState marks a cycle at the end of which the state of at least
// one bank differs from the previous cycle. The item is the slice of banks.
var HookPosBankState = &hooking.HookPos{Name: "BankState"}

// A DataReturner receives the read data a device sends back.
type DataReturner interface {
	ReturnCommand(cmd *signal.Command)
}

// A Device is the DRAM under one vault controller.
type Device interface {
	hooking.Hookable

	Name() string
	Now() uint64
	NumBanks() int
	Bank(i int) *Bank

	// ReceiveCommand applies a command issued by the vault controller.
	ReceiveCommand(cmd *signal.Command)

	// PowerDown puts the device into power-down mode if every bank is idle.
	PowerDown() bool

	// PowerUp starts to wake the device from power-down mode.
	PowerUp()

	Tick() bool
}

type readReturn struct {
	cmd       *signal.Command
	countdown uint64
}

// DeviceImpl implements Device.
type DeviceImpl struct {
	hooking.HookableBase

	name     string
	timing   config.Timing
	returner DataReturner
	now      uint64

	banks         []*Bank
	previousState []BankState

	readData       *signal.Command
	dataCyclesLeft uint64
	readReturns    []readReturn
}

// NewDevice creates a device with numBanks idle banks.
func NewDevice(name string, numBanks int, t config.Timing) *DeviceImpl {
	d := &DeviceImpl{
		name:          name,
		timing:        t,
		banks:         make([]*Bank, numBanks),
		previousState: make([]BankState, numBanks),
	}

	for i := range d.banks {
		d.banks[i] = NewBank(i)
	}

	return d
}

// SetReturner sets where read data goes.
func (d *DeviceImpl) SetReturner(r DataReturner) {
	d.returner = r
}

// Name returns the name of the device.
func (d *DeviceImpl) Name() string {
	return d.name
}

// Now returns the current DRAM cycle.
func (d *DeviceImpl) Now() uint64 {
	return d.now
}

// NumBanks returns the number of banks.
func (d *DeviceImpl) NumBanks() int {
	return len(d.banks)
}

// Bank returns bank i.
func (d *DeviceImpl) Bank(i int) *Bank {
	return d.banks[i]
}

// ReceiveCommand applies a command issued by the vault controller.
func (d *DeviceImpl) ReceiveCommand(cmd *signal.Command) {
	t := &d.timing
	now := d.now

	switch cmd.Kind {
	case signal.CmdActivate:
		d.activate(cmd)
	case signal.CmdRead, signal.CmdReadPrecharge:
		b := d.banks[cmd.Bank]
		b.LastCommand = cmd.Kind

		if cmd.Kind == signal.CmdRead {
			atLeast(&b.NextPrecharge, now+t.ReadToPre)
		} else {
			atLeast(&b.NextActivate, now+t.ReadAutoPre)
			b.StateChangeCountdown = max(t.ReadToPre, 1)
		}

		for _, other := range d.banks {
			atLeast(&other.NextRead, now+max(t.TCCD, t.BL))
			atLeast(&other.NextWrite, now+t.ReadToWrite)
		}

		if cmd.Kind == signal.CmdReadPrecharge {
			atLeast(&b.NextRead, b.NextActivate)
			atLeast(&b.NextWrite, b.NextActivate)
		}

		d.readReturns = append(d.readReturns, readReturn{
			cmd:       cmd.Clone(signal.CmdReadData),
			countdown: t.RL,
		})
	case signal.CmdWrite, signal.CmdWritePrecharge:
		b := d.banks[cmd.Bank]
		b.LastCommand = cmd.Kind

		if cmd.Kind == signal.CmdWrite {
			atLeast(&b.NextPrecharge, now+t.WriteToPre)
		} else {
			atLeast(&b.NextActivate, now+t.WriteAutoPre)
			b.StateChangeCountdown = max(t.WriteToPre, 1)
		}

		for _, other := range d.banks {
			atLeast(&other.NextWrite, now+max(t.BL, t.TCCD))
			atLeast(&other.NextRead, now+t.WriteToReadB)
		}

		if cmd.Kind == signal.CmdWritePrecharge {
			atLeast(&b.NextRead, b.NextActivate)
			atLeast(&b.NextWrite, b.NextActivate)
		}
	case signal.CmdWriteData:
	case signal.CmdPrecharge:
		b := d.banks[cmd.Bank]
		b.State = BankPrecharging
		b.LastCommand = signal.CmdPrecharge
		b.OpenRow = 0
		b.StateChangeCountdown = t.TRP
		atLeast(&b.NextActivate, now+t.TRP)
	case signal.CmdRefresh:
		for _, b := range d.banks {
			atLeast(&b.NextActivate, now+t.TRFC)
			b.State = BankRefreshing
			b.LastCommand = signal.CmdRefresh
			b.StateChangeCountdown = t.TRFC
		}
	default:
		log.Panicf("%s: cannot execute command %s", d.name, cmd)
	}
}

func (d *DeviceImpl) activate(cmd *signal.Command) {
	t := &d.timing
	now := d.now
	b := d.banks[cmd.Bank]

	b.State = BankRowActive
	b.LastCommand = signal.CmdActivate
	b.OpenRow = cmd.Row

	atLeast(&b.NextActivate, now+t.TRC)
	atLeast(&b.NextPrecharge, now+t.TRAS)
	atLeast(&b.NextRead, now+t.TRCD-min(t.AL, t.TRCD))
	atLeast(&b.NextWrite, now+t.TRCD-min(t.AL, t.TRCD))

	for _, other := range d.banks {
		if other != b {
			atLeast(&other.NextActivate, now+t.TRRD)
		}
	}
}

// PowerDown puts every bank into power-down mode if all of them are idle.
func (d *DeviceImpl) PowerDown() bool {
	for _, b := range d.banks {
		if b.State != BankIdle {
			return false
		}
	}

	for _, b := range d.banks {
		b.State = BankPowerDown
		atLeast(&b.NextPowerUp, d.now+d.timing.TCKE)
	}

	return true
}

// PowerUp wakes every bank. The banks can be activated after tXP.
func (d *DeviceImpl) PowerUp() {
	for _, b := range d.banks {
		b.LastCommand = signal.CmdPowerDownExit
		b.State = BankAwaking
		b.StateChangeCountdown = max(d.timing.TXP, 1)
		atLeast(&b.NextActivate, d.now+d.timing.TXP)
	}
}

// Tick advances the device by one DRAM cycle.
func (d *DeviceImpl) Tick() bool {
	madeProgress := false

	for _, b := range d.banks {
		if b.StateChangeCountdown > 0 {
			b.tick(d.timing.TRP)
			madeProgress = true
		}
	}

	madeProgress = d.returnReadData() || madeProgress

	d.reportStateChange()
	d.now++

	return madeProgress
}

func (d *DeviceImpl) returnReadData() bool {
	madeProgress := false

	if d.readData != nil {
		madeProgress = true

		d.dataCyclesLeft--
		if d.dataCyclesLeft == 0 {
			d.returner.ReturnCommand(d.readData)
			d.readData = nil
		}
	}

	if len(d.readReturns) > 0 && d.readReturns[0].countdown == 0 {
		if d.readData != nil {
			log.Panicf("%s: read data bus collision", d.name)
		}

		d.readData = d.readReturns[0].cmd
		d.dataCyclesLeft = max(d.timing.BL, 1)
		d.readReturns = d.readReturns[1:]
		madeProgress = true
	}

	for i := range d.readReturns {
		if d.readReturns[i].countdown > 0 {
			d.readReturns[i].countdown--
		}

		madeProgress = true
	}

	return madeProgress
}

func (d *DeviceImpl) reportStateChange() {
	if d.NumHooks() == 0 {
		return
	}

	changed := false

	for i, b := range d.banks {
		if d.previousState[i] != b.State {
			d.previousState[i] = b.State
			changed = true
		}
	}

	if changed {
		d.InvokeHook(hooking.HookCtx{
			Domain: d,
			Pos:    HookPosBankState,
			Item:   d.banks,
		})
	}
}
