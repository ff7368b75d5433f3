package crossbar

import (
	"log"

	"github.com/sarchlab/hmcsim/hmc/signal"
)

func segmentCommand(
	cmd signal.PacketCommand,
	size int,
) (signal.PacketCommand, error) {
	switch {
	case cmd.IsRead():
		return signal.ReadCommand(size)
	case cmd.IsPosted():
		return signal.PostedWriteCommand(size)
	default:
		return signal.WriteCommand(size)
	}
}

// split cuts a request that is larger than blockSize into requests of at
// most blockSize bytes at consecutive block addresses. The pieces share the
// tag and the trace of the original.
func split(p *signal.Packet, blockSize int) []*signal.Packet {
	n := (p.DataSize + blockSize - 1) / blockSize
	segments := make([]*signal.Packet, 0, n)

	for i := 0; i < n; i++ {
		offset := i * blockSize
		size := min(blockSize, p.DataSize-offset)

		cmd, err := segmentCommand(p.Cmd, size)
		if err != nil {
			log.Panicf("cannot segment %s: %v", p, err)
		}

		seg := signal.NewRequest(cmd, p.Addr+uint64(offset), p.Tag, size,
			p.Trace, nil)
		seg.Cub = p.Cub
		seg.SourceLink = p.SourceLink
		seg.Segment = true
		seg.Payload = slicePayload(p.Payload, offset, size)

		segments = append(segments, seg)
	}

	return segments
}

// slicePayload returns the payload words that carry the size bytes starting
// at offset, padded to whole FLITs.
func slicePayload(payload []uint64, offset, size int) []uint64 {
	if payload == nil {
		return nil
	}

	from := offset / 8
	to := min(from+signal.DataFlits(size)*signal.FlitBytes/8, len(payload))

	if from >= to {
		return nil
	}

	return append([]uint64(nil), payload[from:to]...)
}

// A reassembly collects the responses to the segments of one request.
type reassembly struct {
	expected int
	received []*signal.Packet
	bytes    int
}

func (r *reassembly) complete() bool {
	return len(r.received) == r.expected
}

// combine merges the segment responses into the response the unsegmented
// request would have received.
func (r *reassembly) combine() *signal.Packet {
	first := r.received[0]

	if first.Cmd != signal.CmdRDRS {
		return signal.NewResponse(signal.CmdWRRS, first.Tag, 1,
			first.Trace, nil)
	}

	rsp := signal.NewResponse(signal.CmdRDRS, first.Tag,
		signal.ReadResponseLength(r.bytes), first.Trace, nil)

	for _, seg := range r.received {
		rsp.Payload = append(rsp.Payload, seg.Payload...)
	}

	rsp.DataSize = r.bytes

	return rsp
}
