// Package cmdq provides the command queue that sits between a vault
// controller and its DRAM.
package cmdq

import (
	"github.com/sarchlab/hmcsim/hmc/internal/org"
	"github.com/sarchlab/hmcsim/hmc/signal"
)

// A CommandQueue holds the commands of a vault and decides which one goes
// to the DRAM next.
type CommandQueue interface {
	// CanAccept tells if n more commands fit in the queue of the bank.
	CanAccept(bank, n int) bool

	// Accept appends a command to the queue of the bank.
	Accept(bank int, cmd *signal.Command)

	// AcceptWriteBack queues the write half of an atomic. It goes ahead of
	// everything else and does not take a queue entry.
	AcceptWriteBack(cmd *signal.Command)

	// GetCommandToIssue returns the command to issue in this cycle, or nil.
	GetCommandToIssue() *signal.Command

	// RequestRefresh asks the queue to refresh the DRAM as soon as it can.
	RequestRefresh()
	RefreshPending() bool

	// Unlock frees a bank locked by an atomic that needs no write-back.
	Unlock(bank int)

	Empty() bool
	Tick() bool
}

// BankSource gives access to the bank states of a DRAM.
type BankSource interface {
	NumBanks() int
	Bank(i int) *org.Bank
}

// A ResponseBudget tells if the upstream buffer has room for the response of
// a command about to be issued.
type ResponseBudget interface {
	CanReserve(flits int) bool
}
