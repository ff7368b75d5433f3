package signal

import (
	"github.com/sarchlab/hmcsim/sim/hooking"
)

// Hook positions invoked by the cube.
var (
	// HookPosLinkTransfer fires when a link finishes moving a packet.
	HookPosLinkTransfer = &hooking.HookPos{Name: "LinkTransfer"}

	// HookPosLinkState fires when a link master or slave changes state.
	HookPosLinkState = &hooking.HookPos{Name: "LinkState"}

	// HookPosLinkError fires when a slave finds a CRC or sequence error.
	HookPosLinkError = &hooking.HookPos{Name: "LinkError"}

	// HookPosRetryFinish fires when a link retry completes.
	HookPosRetryFinish = &hooking.HookPos{Name: "RetryFinish"}

	// HookPosRetryAbandoned fires when a link gives up retrying.
	HookPosRetryAbandoned = &hooking.HookPos{Name: "RetryAbandoned"}

	// HookPosCommandIssue fires when a vault issues a DRAM command.
	HookPosCommandIssue = &hooking.HookPos{Name: "CommandIssue"}

	// HookPosTransactionRetire fires when a transaction leaves the
	// simulator with all of its latencies recorded.
	HookPosTransactionRetire = &hooking.HookPos{Name: "TransactionRetire"}

	// HookPosEpoch fires at the end of each statistics epoch.
	HookPosEpoch = &hooking.HookPos{Name: "Epoch"}

	// HookPosSample fires every PLOT_SAMPLING cycles when bandwidth
	// plotting is on.
	HookPosSample = &hooking.HookPos{Name: "Sample"}
)

// LinkTransfer describes a packet that crossed a link.
type LinkTransfer struct {
	Link       int
	Downstream bool
	Packet     *Packet
	Corrupted  bool
	Cycle      uint64
}

// LinkStateChange describes a power or retry state transition.
type LinkStateChange struct {
	Link       int
	Downstream bool
	Master     bool
	From, To   string
	Cycle      uint64
}

// RetryEvent describes a link error or the end of a retry sequence.
type RetryEvent struct {
	Link       int
	Downstream bool
	Attempts   int
	Latency    uint64
	Cycle      uint64
}

// CommandIssue describes a DRAM command leaving a command queue.
type CommandIssue struct {
	Vault   int
	Command *Command
	Cycle   uint64
}

// Epoch marks the end of a statistics epoch. The final epoch is reported when
// the simulator closes.
type Epoch struct {
	Index uint64
	Cycle uint64
	Final bool
}

// Sample marks the end of a bandwidth sampling window.
type Sample struct {
	Index uint64
	Cycle uint64
}
