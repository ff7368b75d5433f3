package stats

// Direction counts the traffic of one direction of a link.
type Direction struct {
	TransmittedBytes uint64 `json:"transmitted_bytes"`
	DataBytes        uint64 `json:"data_bytes"`
	Requests         uint64 `json:"requests"`
	Responses        uint64 `json:"responses"`
	Flows            uint64 `json:"flows"`
	Reads            uint64 `json:"reads"`
	Writes           uint64 `json:"writes"`
	Atomics          uint64 `json:"atomics"`
	Errors           uint64 `json:"errors"`
}

// LinkReport is what one link did during a report window.
type LinkReport struct {
	ID            int       `json:"id"`
	Down          Direction `json:"down"`
	Up            Direction `json:"up"`
	RetryFailures uint64    `json:"retry_failures"`
	SleepCycles   uint64    `json:"sleep_cycles"`
	DownCycles    uint64    `json:"down_cycles"`

	// Data bandwidth in GB/s.
	DownBandwidth float64 `json:"down_bandwidth"`
	UpBandwidth   float64 `json:"up_bandwidth"`
}

// Report summarizes a window of host cycles. Epoch reports cover one
// LOG_EPOCH; the final report covers the whole run.
type Report struct {
	Index      uint64 `json:"index"`
	Final      bool   `json:"final"`
	StartCycle uint64 `json:"start_cycle"`
	EndCycle   uint64 `json:"end_cycle"`

	Reads   uint64 `json:"reads"`
	Writes  uint64 `json:"writes"`
	Atomics uint64 `json:"atomics"`

	TransactionLatency Summary `json:"transaction_latency"`
	LinkLatency        Summary `json:"link_latency"`
	VaultLatency       Summary `json:"vault_latency"`
	RetryLatency       Summary `json:"retry_latency"`

	Links []LinkReport `json:"links"`

	// Data bandwidth of all links in both directions, in GB/s.
	Bandwidth float64 `json:"bandwidth"`

	LinkPower LinkPower `json:"link_power"`
}

// BandwidthSample is the data bandwidth over one sampling window, in GB/s.
// Links holds both directions of each link added together.
type BandwidthSample struct {
	Index      uint64    `json:"index"`
	StartCycle uint64    `json:"start_cycle"`
	EndCycle   uint64    `json:"end_cycle"`
	Links      []float64 `json:"links"`
	Bandwidth  float64   `json:"bandwidth"`
}

// Cycles returns the length of the report window.
func (r Report) Cycles() uint64 {
	return r.EndCycle - r.StartCycle
}

// Errors returns the link errors detected during the window.
func (r Report) Errors() uint64 {
	n := uint64(0)

	for _, l := range r.Links {
		n += l.Down.Errors + l.Up.Errors
	}

	return n
}

// Bandwidth converts bytes moved over cycles host cycles of periodNS
// nanoseconds into GB/s, with a GB of 2^30 bytes.
func Bandwidth(bytes, cycles uint64, periodNS float64) float64 {
	if cycles == 0 || periodNS <= 0 {
		return 0
	}

	seconds := float64(cycles) * periodNS * 1e-9

	return float64(bytes) / seconds / (1 << 30)
}
