package vault

import (
	"log"
	"math/bits"
)

// A Location is the place inside a vault that an address maps to.
type Location struct {
	Bank   int
	Row    uint64
	Column uint64
}

// An AddressMapper splits a cube address into bank, column and row. From the
// least significant bit up, an address holds the offset inside a block, the
// vault, the bank, the column and the row.
type AddressMapper struct {
	blockBits uint
	vaultBits uint
	bankBits  uint
	colBits   uint

	numBanks uint64
	numRows  uint64
	numCols  uint64
}

func log2(n int, what string) uint {
	if n <= 0 || n&(n-1) != 0 {
		log.Panicf("%s must be a power of two, got %d", what, n)
	}

	return uint(bits.TrailingZeros(uint(n)))
}

// NewAddressMapper creates a mapper. Every argument must be a power of two.
func NewAddressMapper(
	maxBlockSize, numVaults, numBanks, numRows, numCols int,
) AddressMapper {
	log2(numRows, "number of rows")

	return AddressMapper{
		blockBits: log2(maxBlockSize, "max block size"),
		vaultBits: log2(numVaults, "number of vaults"),
		bankBits:  log2(numBanks, "number of banks"),
		colBits:   log2(numCols, "number of columns"),
		numBanks:  uint64(numBanks),
		numRows:   uint64(numRows),
		numCols:   uint64(numCols),
	}
}

// Map returns the location of addr.
func (m AddressMapper) Map(addr uint64) Location {
	addr >>= m.blockBits + m.vaultBits

	bank := addr & (m.numBanks - 1)
	addr >>= m.bankBits

	col := (addr & ((m.numCols - 1) >> m.blockBits)) << m.blockBits
	if m.colBits > m.blockBits {
		addr >>= m.colBits - m.blockBits
	}

	row := addr & (m.numRows - 1)

	return Location{
		Bank:   int(bank),
		Row:    row,
		Column: col,
	}
}
