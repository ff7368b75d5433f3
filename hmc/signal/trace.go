package signal

import (
	"fmt"
)

// A Trace follows one transaction through the cube and records how long
// each stage took. Host and link times are in host cycles; vault times are
// in DRAM cycles.
type Trace struct {
	TransactionID uint64
	Kind          TransactionKind
	Addr          uint64
	Size          int

	TranTransmitTime uint64
	TranFullLat      uint64

	LinkTransmitTime uint64
	LinkFullLat      uint64

	VaultIssued    bool
	VaultIssueTime uint64
	VaultFullLat   uint64

	// Segments is the number of crossbar segments still outstanding.
	Segments int

	// Retries counts link retries the transaction's packets went through.
	Retries int

	// Posted transactions retire when the host hands them to a link and
	// never get a response.
	Posted bool
}

// MarkVaultIssue stamps the first command issued for the transaction.
func (t *Trace) MarkVaultIssue(now uint64) {
	if t.VaultIssued {
		return
	}

	t.VaultIssued = true
	t.VaultIssueTime = now
}

// MarkVaultDone stamps the end of the vault stage.
func (t *Trace) MarkVaultDone(now uint64) {
	t.VaultFullLat = now - t.VaultIssueTime
}

// Complete tells if every latency of the trace has been recorded.
func (t *Trace) Complete() bool {
	return t.TranFullLat != 0 && t.LinkFullLat != 0 && t.VaultFullLat != 0
}

// MustBeComplete panics if a latency is missing. A retired transaction
// without all of its latencies means the model lost track of it.
func (t *Trace) MustBeComplete() {
	if !t.Complete() {
		panic(fmt.Sprintf(
			"transaction %d retired with a zero latency "+
				"(tran %d, link %d, vault %d)",
			t.TransactionID, t.TranFullLat, t.LinkFullLat, t.VaultFullLat))
	}
}
