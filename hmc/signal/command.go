package signal

import (
	"fmt"
)

// PacketCommand is the 7-bit command field of a packet header.
type PacketCommand uint8

// Flow commands.
const (
	CmdNULL  PacketCommand = 0
	CmdPRET  PacketCommand = 1
	CmdTRET  PacketCommand = 2
	CmdIRTRY PacketCommand = 3
	CmdQUIET PacketCommand = 4
)

// Write request commands.
const (
	CmdWR16  PacketCommand = 8
	CmdWR32  PacketCommand = 9
	CmdWR48  PacketCommand = 10
	CmdWR64  PacketCommand = 11
	CmdWR80  PacketCommand = 12
	CmdWR96  PacketCommand = 13
	CmdWR112 PacketCommand = 14
	CmdWR128 PacketCommand = 15
	CmdMDWR  PacketCommand = 16
	CmdWR256 PacketCommand = 79

	CmdPWR16  PacketCommand = 24
	CmdPWR32  PacketCommand = 25
	CmdPWR48  PacketCommand = 26
	CmdPWR64  PacketCommand = 27
	CmdPWR80  PacketCommand = 28
	CmdPWR96  PacketCommand = 29
	CmdPWR112 PacketCommand = 30
	CmdPWR128 PacketCommand = 31
	CmdPWR256 PacketCommand = 95
)

// Read request commands.
const (
	CmdRD16  PacketCommand = 48
	CmdRD32  PacketCommand = 49
	CmdRD48  PacketCommand = 50
	CmdRD64  PacketCommand = 51
	CmdRD80  PacketCommand = 52
	CmdRD96  PacketCommand = 53
	CmdRD112 PacketCommand = 54
	CmdRD128 PacketCommand = 55
	CmdRD256 PacketCommand = 119
	CmdMDRD  PacketCommand = 40
)

// Atomic request commands.
const (
	Cmd2ADD8     PacketCommand = 18
	CmdADD16     PacketCommand = 19
	CmdP2ADD8    PacketCommand = 34
	CmdPADD16    PacketCommand = 35
	Cmd2ADDS8R   PacketCommand = 82
	CmdADDS16R   PacketCommand = 83
	CmdINC8      PacketCommand = 80
	CmdPINC8     PacketCommand = 84
	CmdXOR16     PacketCommand = 64
	CmdOR16      PacketCommand = 65
	CmdNOR16     PacketCommand = 66
	CmdAND16     PacketCommand = 67
	CmdNAND16    PacketCommand = 68
	CmdCASGT8    PacketCommand = 96
	CmdCASLT8    PacketCommand = 97
	CmdCASGT16   PacketCommand = 98
	CmdCASLT16   PacketCommand = 99
	CmdCASEQ8    PacketCommand = 100
	CmdCASZERO16 PacketCommand = 101
	CmdEQ16      PacketCommand = 104
	CmdEQ8       PacketCommand = 105
	CmdBWR       PacketCommand = 17
	CmdPBWR      PacketCommand = 33
	CmdBWR8R     PacketCommand = 81
	CmdSWAP16    PacketCommand = 106
)

// Response commands.
const (
	CmdRDRS   PacketCommand = 56
	CmdWRRS   PacketCommand = 57
	CmdMDRDRS PacketCommand = 58
	CmdMDWRRS PacketCommand = 59
	CmdERROR  PacketCommand = 62
)

type commandInfo struct {
	name     string
	dataSize int
	read     bool
	write    bool
	posted   bool
	atomic   bool
	flow     bool
	response bool
}

var commandTable = map[PacketCommand]commandInfo{
	CmdNULL:  {name: "NULL", flow: true},
	CmdPRET:  {name: "PRET", flow: true},
	CmdTRET:  {name: "TRET", flow: true},
	CmdIRTRY: {name: "IRTRY", flow: true},
	CmdQUIET: {name: "QUIET", flow: true},

	CmdWR16:  {name: "WR16", dataSize: 16, write: true},
	CmdWR32:  {name: "WR32", dataSize: 32, write: true},
	CmdWR48:  {name: "WR48", dataSize: 48, write: true},
	CmdWR64:  {name: "WR64", dataSize: 64, write: true},
	CmdWR80:  {name: "WR80", dataSize: 80, write: true},
	CmdWR96:  {name: "WR96", dataSize: 96, write: true},
	CmdWR112: {name: "WR112", dataSize: 112, write: true},
	CmdWR128: {name: "WR128", dataSize: 128, write: true},
	CmdWR256: {name: "WR256", dataSize: 256, write: true},
	CmdMDWR:  {name: "MD_WR", dataSize: 16, write: true},

	CmdPWR16:  {name: "P_WR16", dataSize: 16, write: true, posted: true},
	CmdPWR32:  {name: "P_WR32", dataSize: 32, write: true, posted: true},
	CmdPWR48:  {name: "P_WR48", dataSize: 48, write: true, posted: true},
	CmdPWR64:  {name: "P_WR64", dataSize: 64, write: true, posted: true},
	CmdPWR80:  {name: "P_WR80", dataSize: 80, write: true, posted: true},
	CmdPWR96:  {name: "P_WR96", dataSize: 96, write: true, posted: true},
	CmdPWR112: {name: "P_WR112", dataSize: 112, write: true, posted: true},
	CmdPWR128: {name: "P_WR128", dataSize: 128, write: true, posted: true},
	CmdPWR256: {name: "P_WR256", dataSize: 256, write: true, posted: true},

	CmdRD16:  {name: "RD16", dataSize: 16, read: true},
	CmdRD32:  {name: "RD32", dataSize: 32, read: true},
	CmdRD48:  {name: "RD48", dataSize: 48, read: true},
	CmdRD64:  {name: "RD64", dataSize: 64, read: true},
	CmdRD80:  {name: "RD80", dataSize: 80, read: true},
	CmdRD96:  {name: "RD96", dataSize: 96, read: true},
	CmdRD112: {name: "RD112", dataSize: 112, read: true},
	CmdRD128: {name: "RD128", dataSize: 128, read: true},
	CmdRD256: {name: "RD256", dataSize: 256, read: true},
	CmdMDRD:  {name: "MD_RD", dataSize: 16, read: true},

	Cmd2ADD8:     {name: "2ADD8", dataSize: 16, atomic: true},
	CmdADD16:     {name: "ADD16", dataSize: 16, atomic: true},
	CmdP2ADD8:    {name: "P_2ADD8", dataSize: 16, atomic: true, posted: true},
	CmdPADD16:    {name: "P_ADD16", dataSize: 16, atomic: true, posted: true},
	Cmd2ADDS8R:   {name: "2ADDS8R", dataSize: 16, atomic: true},
	CmdADDS16R:   {name: "ADDS16R", dataSize: 16, atomic: true},
	CmdINC8:      {name: "INC8", dataSize: 16, atomic: true},
	CmdPINC8:     {name: "P_INC8", dataSize: 16, atomic: true, posted: true},
	CmdXOR16:     {name: "XOR16", dataSize: 16, atomic: true},
	CmdOR16:      {name: "OR16", dataSize: 16, atomic: true},
	CmdNOR16:     {name: "NOR16", dataSize: 16, atomic: true},
	CmdAND16:     {name: "AND16", dataSize: 16, atomic: true},
	CmdNAND16:    {name: "NAND16", dataSize: 16, atomic: true},
	CmdCASGT8:    {name: "CASGT8", dataSize: 16, atomic: true},
	CmdCASLT8:    {name: "CASLT8", dataSize: 16, atomic: true},
	CmdCASGT16:   {name: "CASGT16", dataSize: 16, atomic: true},
	CmdCASLT16:   {name: "CASLT16", dataSize: 16, atomic: true},
	CmdCASEQ8:    {name: "CASEQ8", dataSize: 16, atomic: true},
	CmdCASZERO16: {name: "CASZERO16", dataSize: 16, atomic: true},
	CmdEQ16:      {name: "EQ16", dataSize: 16, atomic: true},
	CmdEQ8:       {name: "EQ8", dataSize: 16, atomic: true},
	CmdBWR:       {name: "BWR", dataSize: 16, atomic: true},
	CmdPBWR:      {name: "P_BWR", dataSize: 16, atomic: true, posted: true},
	CmdBWR8R:     {name: "BWR8R", dataSize: 16, atomic: true},
	CmdSWAP16:    {name: "SWAP16", dataSize: 16, atomic: true},

	CmdRDRS:   {name: "RD_RS", response: true},
	CmdWRRS:   {name: "WR_RS", response: true},
	CmdMDRDRS: {name: "MD_RD_RS", response: true},
	CmdMDWRRS: {name: "MD_WR_RS", response: true},
	CmdERROR:  {name: "ERROR", response: true},
}

func (c PacketCommand) info() commandInfo {
	info, ok := commandTable[c]
	if !ok {
		panic(fmt.Sprintf("unknown packet command %d", uint8(c)))
	}

	return info
}

// Known tells if c is a defined command code.
func (c PacketCommand) Known() bool {
	_, ok := commandTable[c]
	return ok
}

func (c PacketCommand) String() string {
	info, ok := commandTable[c]
	if !ok {
		return fmt.Sprintf("CMD(%d)", uint8(c))
	}

	return info.name
}

// IsRead tells if c is a read request.
func (c PacketCommand) IsRead() bool { return c.info().read }

// IsWrite tells if c is a write request, posted or not.
func (c PacketCommand) IsWrite() bool { return c.info().write }

// IsAtomic tells if c is an atomic request.
func (c PacketCommand) IsAtomic() bool { return c.info().atomic }

// IsPosted tells if c expects no response.
func (c PacketCommand) IsPosted() bool { return c.info().posted }

// IsFlow tells if c is a link-level flow command.
func (c PacketCommand) IsFlow() bool { return c.info().flow }

// IsResponse tells if c is a response command.
func (c PacketCommand) IsResponse() bool { return c.info().response }

// DataSize returns the number of bytes a request command accesses.
func (c PacketCommand) DataSize() int { return c.info().dataSize }

// CarriesWriteData tells if the request has a data payload going to memory.
func (c PacketCommand) CarriesWriteData() bool {
	info := c.info()
	return info.write || info.atomic
}

// ReturnsData tells if an atomic returns the original memory contents,
// which sets the atomic flag of its response.
func (c PacketCommand) ReturnsData() bool {
	switch c {
	case Cmd2ADDS8R, CmdADDS16R, CmdBWR8R, CmdSWAP16,
		CmdXOR16, CmdOR16, CmdNOR16, CmdAND16, CmdNAND16,
		CmdCASGT8, CmdCASLT8, CmdCASGT16, CmdCASLT16,
		CmdCASEQ8, CmdCASZERO16:
		return true
	}

	return false
}

// IsCompareOnly tells if an atomic reads and compares without writing back.
func (c PacketCommand) IsCompareOnly() bool {
	return c == CmdEQ8 || c == CmdEQ16
}

var (
	readBySize = map[int]PacketCommand{
		16: CmdRD16, 32: CmdRD32, 48: CmdRD48, 64: CmdRD64, 80: CmdRD80,
		96: CmdRD96, 112: CmdRD112, 128: CmdRD128, 256: CmdRD256,
	}
	writeBySize = map[int]PacketCommand{
		16: CmdWR16, 32: CmdWR32, 48: CmdWR48, 64: CmdWR64, 80: CmdWR80,
		96: CmdWR96, 112: CmdWR112, 128: CmdWR128, 256: CmdWR256,
	}
	postedWriteBySize = map[int]PacketCommand{
		16: CmdPWR16, 32: CmdPWR32, 48: CmdPWR48, 64: CmdPWR64,
		80: CmdPWR80, 96: CmdPWR96, 112: CmdPWR112, 128: CmdPWR128,
		256: CmdPWR256,
	}
)

// ReadCommand returns the read command for a request size.
func ReadCommand(size int) (PacketCommand, error) {
	return lookupBySize(readBySize, size)
}

// WriteCommand returns the write command for a request size.
func WriteCommand(size int) (PacketCommand, error) {
	return lookupBySize(writeBySize, size)
}

// PostedWriteCommand returns the posted write command for a request size.
func PostedWriteCommand(size int) (PacketCommand, error) {
	return lookupBySize(postedWriteBySize, size)
}

func lookupBySize(
	table map[int]PacketCommand,
	size int,
) (PacketCommand, error) {
	cmd, ok := table[size]
	if !ok {
		return 0, fmt.Errorf("invalid request size %d", size)
	}

	return cmd, nil
}

// FlitBytes is the size of one flow unit.
const FlitBytes = 16

// DataFlits returns the number of data FLITs that carry size bytes of read
// or write data.
func DataFlits(size int) int {
	return (size + 31) / 32
}

// RequestLength returns the LNG field of a request.
func RequestLength(cmd PacketCommand, size int) int {
	switch {
	case cmd.IsRead():
		return 1
	case cmd == CmdINC8 || cmd == CmdPINC8:
		return 1
	case cmd.IsAtomic():
		return 2
	case cmd.IsWrite():
		return DataFlits(size) + 1
	case cmd.IsFlow():
		return 1
	}

	panic(fmt.Sprintf("%s is not a request", cmd))
}

// ReadResponseLength returns the LNG of a read response carrying size bytes.
func ReadResponseLength(size int) int {
	return DataFlits(size) + 1
}
