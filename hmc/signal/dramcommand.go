package signal

import (
	"fmt"
)

// CommandKind is the kind of a DRAM command.
type CommandKind uint8

// DRAM command kinds.
const (
	CmdActivate CommandKind = iota
	CmdRead
	CmdReadPrecharge
	CmdWrite
	CmdWritePrecharge
	CmdPrecharge
	CmdRefresh
	CmdReadData
	CmdWriteData
	CmdPowerDownEntry
	CmdPowerDownExit
	NumCmdKind
)

var commandKindNames = [...]string{
	"ACT", "READ", "READ_P", "WRITE", "WRITE_P", "PRE", "REF",
	"READ_DATA", "WRITE_DATA", "PDE", "PDX",
}

func (k CommandKind) String() string {
	if k >= NumCmdKind {
		return fmt.Sprintf("CommandKind(%d)", uint8(k))
	}

	return commandKindNames[k]
}

// IsRead tells if the kind reads from an open row.
func (k CommandKind) IsRead() bool {
	return k == CmdRead || k == CmdReadPrecharge
}

// IsWrite tells if the kind writes to an open row.
func (k CommandKind) IsWrite() bool {
	return k == CmdWrite || k == CmdWritePrecharge
}

// IsColumn tells if the kind accesses a column of an open row.
func (k CommandKind) IsColumn() bool {
	return k.IsRead() || k.IsWrite()
}

// A Command is what a vault controller sends to its DRAM.
type Command struct {
	Kind CommandKind
	Tag  uint16

	Bank   int
	Row    uint64
	Column uint64

	// DataSize is the number of bytes the command moves.
	DataSize int

	// PacketCmd is the command of the request the command was made for.
	PacketCmd PacketCommand

	// ResponseLength is the LNG of the response the request will produce.
	ResponseLength int

	Atomic  bool
	Posted  bool
	Segment bool
	Last    bool

	// WriteBack marks the write half of an atomic.
	WriteBack bool

	Trace *Trace
}

func (c *Command) String() string {
	return fmt.Sprintf("[C%d-%s B%d R%d C%d]",
		c.Tag, c.Kind, c.Bank, c.Row, c.Column)
}

// Slots returns 1. A command always takes one queue entry.
func (c *Command) Slots() int {
	return 1
}

// Clone returns a copy of the command with a different kind.
func (c *Command) Clone(kind CommandKind) *Command {
	clone := *c
	clone.Kind = kind

	return &clone
}
