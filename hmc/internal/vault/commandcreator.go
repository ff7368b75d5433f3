package vault

import (
	"log"

	"github.com/sarchlab/hmcsim/hmc/signal"
)

// A CommandCreator converts a request packet into the DRAM commands that
// serve it: an activate followed by one column command per burst.
type CommandCreator struct {
	Mapper   AddressMapper
	OpenPage bool

	// BurstBytes is the number of bytes one column command moves.
	BurstBytes int
}

// Create returns the commands for p. Only the final column command is marked
// last.
func (c CommandCreator) Create(p *signal.Packet) []*signal.Command {
	loc := c.Mapper.Map(p.Addr)

	size := p.DataSize
	if size == 0 {
		size = p.Cmd.DataSize()
	}

	kind := c.columnKind(p.Cmd)

	n := 1
	if !p.Cmd.IsAtomic() && c.BurstBytes > 0 {
		n = (size + c.BurstBytes - 1) / c.BurstBytes
	}

	proto := signal.Command{
		Tag:            p.Tag,
		Bank:           loc.Bank,
		Row:            loc.Row,
		Column:         loc.Column,
		DataSize:       size,
		PacketCmd:      p.Cmd,
		ResponseLength: ResponseLength(p.Cmd, size),
		Atomic:         p.Cmd.IsAtomic(),
		Posted:         p.Cmd.IsPosted(),
		Segment:        p.Segment,
		Trace:          p.Trace,
	}

	cmds := make([]*signal.Command, 0, n+1)
	cmds = append(cmds, proto.Clone(signal.CmdActivate))

	for i := 0; i < n; i++ {
		cmd := proto.Clone(kind)
		cmd.Last = i == n-1
		cmds = append(cmds, cmd)
	}

	return cmds
}

func (c CommandCreator) columnKind(cmd signal.PacketCommand) signal.CommandKind {
	switch {
	case cmd.IsRead():
		if c.OpenPage {
			return signal.CmdRead
		}

		return signal.CmdReadPrecharge
	case cmd.IsWrite():
		if c.OpenPage {
			return signal.CmdWrite
		}

		return signal.CmdWritePrecharge
	case cmd.IsAtomic():
		// The row stays open for the write-back unless nothing is written.
		if cmd.IsCompareOnly() && !c.OpenPage {
			return signal.CmdReadPrecharge
		}

		return signal.CmdRead
	}

	log.Panicf("vault cannot serve packet command %s", cmd)

	return 0
}

// WriteBackKind returns the command that writes an atomic result back.
func (c CommandCreator) WriteBackKind() signal.CommandKind {
	if c.OpenPage {
		return signal.CmdWrite
	}

	return signal.CmdWritePrecharge
}

// ResponseLength returns the LNG of the response to a request, or 0 if the
// request is not answered.
func ResponseLength(cmd signal.PacketCommand, size int) int {
	switch {
	case cmd.IsPosted():
		return 0
	case cmd.IsRead():
		return signal.ReadResponseLength(size)
	case cmd.ReturnsData():
		return 2
	default:
		return 1
	}
}
