package hmc

import (
	"github.com/sarchlab/hmcsim/hmc/internal/link"
)

// Traffic counts what one direction of a link has carried.
type Traffic struct {
	TransmittedBytes uint64 `json:"transmitted_bytes"`
	DataBytes        uint64 `json:"data_bytes"`
	Requests         uint64 `json:"requests"`
	Responses        uint64 `json:"responses"`
	Flows            uint64 `json:"flows"`
	Reads            uint64 `json:"reads"`
	Writes           uint64 `json:"writes"`
	Atomics          uint64 `json:"atomics"`
}

func trafficOf(c link.Counters) Traffic {
	return Traffic{
		TransmittedBytes: c.TransmittedBytes,
		DataBytes:        c.DataBytes,
		Requests:         c.Requests,
		Responses:        c.Responses,
		Flows:            c.Flows,
		Reads:            c.Reads,
		Writes:           c.Writes,
		Atomics:          c.Atomics,
	}
}

// LinkEnd is the state of the master and the slave on one side of a link.
type LinkEnd struct {
	MasterState   string `json:"master_state"`
	SlaveState    string `json:"slave_state"`
	Tokens        int    `json:"tokens"`
	SendBuffer    int    `json:"send_buffer"`
	RetryBuffer   int    `json:"retry_buffer"`
	Errors        uint64 `json:"errors"`
	RetryFailures uint64 `json:"retry_failures"`
}

func endOf(m *link.Master, s *link.Slave) LinkEnd {
	return LinkEnd{
		MasterState:   m.State().String(),
		SlaveState:    s.State().String(),
		Tokens:        m.Tokens(),
		SendBuffer:    m.SendBuffer().Size(),
		RetryBuffer:   m.RetryBuffer().Size(),
		Errors:        s.Errors(),
		RetryFailures: m.RetryFailures(),
	}
}

// LinkStatus is a snapshot of one link.
type LinkStatus struct {
	ID          int     `json:"id"`
	Host        LinkEnd `json:"host"`
	Device      LinkEnd `json:"device"`
	Down        Traffic `json:"down"`
	Up          Traffic `json:"up"`
	SleepCycles uint64  `json:"sleep_cycles"`
	DownCycles  uint64  `json:"down_cycles"`
}

// VaultStatus is a snapshot of one vault.
type VaultStatus struct {
	ID          int      `json:"id"`
	Busy        bool     `json:"busy"`
	PoweredDown bool     `json:"powered_down"`
	DownBuffer  int      `json:"down_buffer"`
	UpBuffer    int      `json:"up_buffer"`
	Banks       []string `json:"banks"`
}

// Links returns a snapshot of every link.
func (s *Simulator) Links() []LinkStatus {
	out := make([]LinkStatus, 0, len(s.hostMasters))

	for i, m := range s.hostMasters {
		out = append(out, LinkStatus{
			ID:          i,
			Host:        endOf(m, s.hostSlaves[i]),
			Device:      endOf(s.cube.masters[i], s.cube.slaves[i]),
			Down:        trafficOf(s.downLinks[i].Counters()),
			Up:          trafficOf(s.upLinks[i].Counters()),
			SleepCycles: m.SleepCycles(),
			DownCycles:  m.DownCycles(),
		})
	}

	return out
}

// Vaults returns a snapshot of every vault.
func (s *Simulator) Vaults() []VaultStatus {
	out := make([]VaultStatus, 0, len(s.cube.vaults))

	for _, v := range s.cube.vaults {
		dram := v.DRAM()
		banks := make([]string, dram.NumBanks())

		for i := range banks {
			banks[i] = dram.Bank(i).State.String()
		}

		out = append(out, VaultStatus{
			ID:          v.ID(),
			Busy:        v.Busy(),
			PoweredDown: v.PoweredDown(),
			DownBuffer:  v.DownBuffer().Size(),
			UpBuffer:    v.UpBuffer().Size(),
			Banks:       banks,
		})
	}

	return out
}

// A Buffer is a queue whose occupancy can be watched.
type Buffer interface {
	Name() string
	Size() int
	Capacity() int
}

// Buffers lists the bounded buffers along the request and response paths.
func (s *Simulator) Buffers() []Buffer {
	out := []Buffer{s.host.queue}

	for i, m := range s.hostMasters {
		out = append(out,
			m.RetryBuffer(),
			s.hostSlaves[i].RecvBuffer(),
			s.cube.masters[i].RetryBuffer(),
			s.cube.slaves[i].RecvBuffer())
	}

	out = append(out, s.cube.crossbar.DownBuffer(), s.cube.crossbar.UpBuffer())

	for _, v := range s.cube.vaults {
		out = append(out, v.DownBuffer(), v.UpBuffer())
	}

	return out
}
