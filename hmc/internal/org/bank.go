// Package org models the banks of the DRAM dies stacked under a vault.
package org

import (
	"fmt"

	"github.com/sarchlab/hmcsim/hmc/signal"
)

// BankState is the state of a DRAM bank.
type BankState int

// Bank states.
const (
	BankIdle BankState = iota
	BankRowActive
	BankPrecharging
	BankRefreshing
	BankPowerDown
	BankAwaking
)

var bankStateNames = [...]string{
	"Idle", "Actv", "Prch", "Refr", "Pwdw", "Awak",
}

func (s BankState) String() string {
	if s < 0 || int(s) >= len(bankStateNames) {
		return fmt.Sprintf("BankState(%d)", int(s))
	}

	return bankStateNames[s]
}

// A Bank holds the state of one bank and the earliest cycle at which each
// kind of command may be issued to it. The Next fields only ever grow.
type Bank struct {
	ID      int
	State   BankState
	OpenRow uint64

	NextActivate  uint64
	NextRead      uint64
	NextWrite     uint64
	NextPrecharge uint64
	NextPowerUp   uint64

	LastCommand          signal.CommandKind
	StateChangeCountdown uint64
}

// NewBank creates an idle bank.
func NewBank(id int) *Bank {
	return &Bank{
		ID:          id,
		State:       BankIdle,
		LastCommand: signal.CmdPrecharge,
	}
}

func (b *Bank) String() string {
	if b.State == BankRowActive {
		return fmt.Sprintf("[%s-%d]", b.State, b.OpenRow)
	}

	return fmt.Sprintf("[%s]", b.State)
}

func atLeast(counter *uint64, v uint64) {
	if v > *counter {
		*counter = v
	}
}

// tick advances the state change countdown by one cycle. Auto-precharging
// commands and the timed states leave their state when the countdown ends.
func (b *Bank) tick(tRP uint64) {
	if b.StateChangeCountdown == 0 {
		return
	}

	b.StateChangeCountdown--
	if b.StateChangeCountdown > 0 {
		return
	}

	switch b.LastCommand {
	case signal.CmdReadPrecharge, signal.CmdWritePrecharge:
		b.State = BankPrecharging
		b.LastCommand = signal.CmdPrecharge
		b.StateChangeCountdown = tRP
	case signal.CmdRefresh, signal.CmdPrecharge, signal.CmdPowerDownExit:
		b.State = BankIdle
	}
}
