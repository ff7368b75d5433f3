package signal

import (
	"fmt"
	"strings"
)

// TransactionKind is the operation a host asks the cube to perform.
type TransactionKind uint8

// Transaction kinds.
const (
	DataRead TransactionKind = iota
	DataWrite
	PostedDataWrite
	Atomic2ADD8
	AtomicADD16
	AtomicP2ADD8
	AtomicPADD16
	Atomic2ADDS8R
	AtomicADDS16R
	AtomicINC8
	AtomicPINC8
	AtomicXOR16
	AtomicOR16
	AtomicNOR16
	AtomicAND16
	AtomicNAND16
	AtomicCASGT8
	AtomicCASLT8
	AtomicCASGT16
	AtomicCASLT16
	AtomicCASEQ8
	AtomicCASZERO16
	AtomicEQ16
	AtomicEQ8
	AtomicBWR
	AtomicPBWR
	AtomicBWR8R
	AtomicSWAP16
)

type kindInfo struct {
	name string
	cmd  PacketCommand
}

var kindTable = []kindInfo{
	DataRead:        {"READ", 0},
	DataWrite:       {"WRITE", 0},
	PostedDataWrite: {"P_WRITE", 0},
	Atomic2ADD8:     {"2ADD8", Cmd2ADD8},
	AtomicADD16:     {"ADD16", CmdADD16},
	AtomicP2ADD8:    {"P_2ADD8", CmdP2ADD8},
	AtomicPADD16:    {"P_ADD16", CmdPADD16},
	Atomic2ADDS8R:   {"2ADDS8R", Cmd2ADDS8R},
	AtomicADDS16R:   {"ADDS16R", CmdADDS16R},
	AtomicINC8:      {"INC8", CmdINC8},
	AtomicPINC8:     {"P_INC8", CmdPINC8},
	AtomicXOR16:     {"XOR16", CmdXOR16},
	AtomicOR16:      {"OR16", CmdOR16},
	AtomicNOR16:     {"NOR16", CmdNOR16},
	AtomicAND16:     {"AND16", CmdAND16},
	AtomicNAND16:    {"NAND16", CmdNAND16},
	AtomicCASGT8:    {"CASGT8", CmdCASGT8},
	AtomicCASLT8:    {"CASLT8", CmdCASLT8},
	AtomicCASGT16:   {"CASGT16", CmdCASGT16},
	AtomicCASLT16:   {"CASLT16", CmdCASLT16},
	AtomicCASEQ8:    {"CASEQ8", CmdCASEQ8},
	AtomicCASZERO16: {"CASZERO16", CmdCASZERO16},
	AtomicEQ16:      {"EQ16", CmdEQ16},
	AtomicEQ8:       {"EQ8", CmdEQ8},
	AtomicBWR:       {"BWR", CmdBWR},
	AtomicPBWR:      {"P_BWR", CmdPBWR},
	AtomicBWR8R:     {"BWR8R", CmdBWR8R},
	AtomicSWAP16:    {"SWAP16", CmdSWAP16},
}

func (k TransactionKind) String() string {
	if int(k) >= len(kindTable) {
		return fmt.Sprintf("TransactionKind(%d)", uint8(k))
	}

	return kindTable[k].name
}

// ParseKind converts a trace-file operation name into a kind.
func ParseKind(name string) (TransactionKind, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for k, info := range kindTable {
		if info.name == upper {
			return TransactionKind(k), nil
		}
	}

	return 0, fmt.Errorf("unknown transaction kind %q", name)
}

// IsRead tells if the kind is a plain read.
func (k TransactionKind) IsRead() bool {
	return k == DataRead
}

// IsWrite tells if the kind is a plain write, posted or not.
func (k TransactionKind) IsWrite() bool {
	return k == DataWrite || k == PostedDataWrite
}

// IsAtomic tells if the kind is an atomic operation.
func (k TransactionKind) IsAtomic() bool {
	return k >= Atomic2ADD8 && int(k) < len(kindTable)
}

// PacketCommand returns the request command for a transaction of the given
// size.
func (k TransactionKind) PacketCommand(size int) (PacketCommand, error) {
	switch k {
	case DataRead:
		return ReadCommand(size)
	case DataWrite:
		return WriteCommand(size)
	case PostedDataWrite:
		return PostedWriteCommand(size)
	}

	if !k.IsAtomic() {
		return 0, fmt.Errorf("unknown transaction kind %d", uint8(k))
	}

	return kindTable[k].cmd, nil
}

// A Transaction is a request submitted by the host.
type Transaction struct {
	ID    uint64
	Kind  TransactionKind
	Addr  uint64
	Size  int
	Trace *Trace
}

// NewTransaction creates a transaction with a fresh trace. Atomics always
// access 16 bytes.
func NewTransaction(
	id uint64,
	kind TransactionKind,
	addr uint64,
	size int,
) *Transaction {
	if kind.IsAtomic() {
		size = 16
	}

	t := &Transaction{
		ID:   id,
		Kind: kind,
		Addr: addr,
		Size: size,
	}

	t.Trace = &Trace{
		TransactionID: id,
		Kind:          kind,
		Addr:          addr,
		Size:          size,
	}

	return t
}

// Slots returns 1. A transaction takes one entry of the host queue.
func (t *Transaction) Slots() int {
	return 1
}

func (t *Transaction) String() string {
	return fmt.Sprintf("[T%d-%s 0x%x %dB]", t.ID, t.Kind, t.Addr, t.Size)
}
