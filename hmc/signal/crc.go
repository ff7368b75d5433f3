package signal

// CRC32KPolynomial is the reflected CRC-32K polynomial.
const CRC32KPolynomial = 0xEB31D82E

var crcTable = makeCRCTable(CRC32KPolynomial)

func makeCRCTable(poly uint32) [256]uint32 {
	var table [256]uint32

	for i := range table {
		k := uint32(i)
		for j := 0; j < 8; j++ {
			if k&1 == 1 {
				k = (k >> 1) ^ poly
			} else {
				k >>= 1
			}
		}

		table[i] = k
	}

	return table
}

// UpdateCRC continues a CRC-32K computation over data.
func UpdateCRC(crc uint32, data []byte) uint32 {
	crc = ^crc
	for _, b := range data {
		crc = crcTable[(crc^uint32(b))&0xFF] ^ (crc >> 8)
	}

	return ^crc
}

// Header packs the header word of the packet.
func (p *Packet) Header() uint64 {
	var w uint64

	put := func(bits uint, v uint64) {
		w = w<<bits | v&(uint64(1)<<bits-1)
	}

	if p.Type == Response {
		put(3, uint64(p.Cub))
		put(19, 0)
		put(3, uint64(p.SourceLink))
		put(5, 0)
		put(1, boolBit(p.AtomicFlag))
		put(10, 0)
	} else {
		put(3, uint64(p.Cub))
		put(3, 0)
		put(34, p.Addr)
		put(1, 0)
	}

	put(11, uint64(p.Tag))
	put(5, uint64(p.Length))
	put(7, uint64(p.Cmd))

	return w
}

// Tail packs the tail word of the packet with the given CRC value.
func (p *Packet) Tail(crc uint32) uint64 {
	var w uint64

	put := func(bits uint, v uint64) {
		w = w<<bits | v&(uint64(1)<<bits-1)
	}

	put(32, uint64(crc))
	put(3, uint64(p.RTC))

	if p.Type == Response {
		put(7, uint64(p.ErrStat))
		put(1, boolBit(p.DataInvalid))
	} else {
		put(3, uint64(p.SourceLink))
		put(4, 0)
		put(1, boolBit(p.Poisoned))
	}

	put(3, uint64(p.Seq))
	put(9, uint64(p.FRP))
	put(9, uint64(p.RRP))

	return w
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}

	return 0
}

// ComputeCRC returns the CRC over the header, the payload and the tail with
// its CRC field zeroed. Each 64-bit word is fed least significant byte
// first.
func (p *Packet) ComputeCRC() uint32 {
	n := p.Length * 2
	words := make([]uint64, n)
	words[0] = p.Header()

	copy(words[1:n-1], p.Payload)

	words[n-1] = p.Tail(0)

	var (
		crc uint32
		buf [8]byte
	)

	for _, w := range words {
		for i := 0; i < 8; i++ {
			buf[i] = byte(w)
			w >>= 8
		}

		crc = UpdateCRC(crc, buf[:])
	}

	return crc
}

// StampCRC computes the CRC and stores it in the packet.
func (p *Packet) StampCRC() {
	p.CRC = p.ComputeCRC()
}

// CRCValid tells if the stored CRC matches the packet contents.
func (p *Packet) CRCValid() bool {
	return p.CRC == p.ComputeCRC()
}
