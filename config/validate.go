package config

import (
	"errors"
	"fmt"
)

// ValidTransactionSizes lists the request sizes a cube accepts, in bytes.
var ValidTransactionSizes = []int{16, 32, 48, 64, 80, 96, 112, 128, 256}

// IsValidSize tells if size is one of ValidTransactionSizes.
func IsValidSize(size int) bool {
	for _, s := range ValidTransactionSizes {
		if s == size {
			return true
		}
	}

	return false
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Validate reports every problem with c in a single error.
func (c *Config) Validate() error {
	var errs []error

	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	for _, f := range []struct {
		name string
		n    int
	}{
		{"NUM_VAULTS", c.NumVaults},
		{"NUM_BANKS", c.NumBanks},
		{"NUM_ROWS", c.NumRows},
		{"NUM_COLS", c.NumCols},
	} {
		check(isPowerOfTwo(f.n),
			"%s must be a power of two, got %d", f.name, f.n)
	}

	check(c.CPUClockPeriod > 0, "CPU_CLK_PERIOD must be positive")
	check(c.TCK > 0, "tCK must be positive")
	check(c.LinkSpeed > 0, "LINK_SPEED must be positive")

	if c.CPUClockPeriod > 0 && c.LinkSpeed > 0 {
		check(c.CPUClockPeriod >= c.LinkPeriod(),
			"CPU_CLK_PERIOD %.4f ns is shorter than the link period %.4f ns",
			c.CPUClockPeriod, c.LinkPeriod())
	}

	check(IsValidSize(c.TransactionSize),
		"TRANSACTION_SIZE %d is not a valid request size", c.TransactionSize)
	check(c.LinkWidth == 4 || c.LinkWidth == 8 || c.LinkWidth == 16,
		"LINK_WIDTH must be 4, 8 or 16, got %d", c.LinkWidth)
	check(c.NumLinks > 0, "NUM_LINKS must be positive")
	check(c.MaxReqBuf > 0, "MAX_REQ_BUF must be positive")
	check(c.MaxLinkBuf >= 17, "MAX_LINK_BUF must hold a 256-byte packet")
	check(c.MaxRetryBuf >= 18, "MAX_RETRY_BUF must hold a 256-byte packet")
	check(c.MaxRetryBuf <= 512, "MAX_RETRY_BUF must fit the 9-bit pointers")
	check(c.MaxVaultBuf >= 17, "MAX_VLT_BUF must hold a 256-byte packet")
	check(c.MaxCrossBuf >= 17, "MAX_CROSS_BUF must hold a 256-byte packet")
	if c.MaxBlockSize() > 0 {
		check(c.MaxCmdQueue >= 256/c.MaxBlockSize(),
			"MAX_CMD_QUE must hold the segments of a 256-byte request")
	}
	check(c.NumIRTRY > 0, "NUM_OF_IRTRY must be positive")
	check(c.RetryAttemptLimit > 0, "RETRY_ATTEMPT_LIMIT must be positive")
	check(c.LinkBER < 0, "LINK_BER is an exponent and must be negative")
	check(c.CRCCalCycle >= 0, "CRC_CAL_CYCLE must not be negative")
	check(c.MaxRowAccesses >= c.MaxBlockSize()/32,
		"MAX_ROW_ACCESSES must cover one block")
	check(c.LogEpoch > 0, "LOG_EPOCH must be positive")
	check(!c.BandwidthPlot || c.PlotSampling > 0,
		"PLOT_SAMPLING must be positive when BANDWIDTH_PLOT is set")
	check(c.AwakeReq > 0, "AWAKE_REQ must be positive")
	check(c.LinkEpoch > 0, "LINK_EPOCH must be positive")
	check(c.LinkScaling > 0, "LINK_SCALING must be positive")
	check(c.MSHRScaling > 0, "MSHR_SCALING must be positive")

	switch c.LinkPriority {
	case RoundRobin, BufferAware:
	default:
		check(false, "unknown LINK_PRIORITY %q", c.LinkPriority)
	}

	switch c.LinkPower {
	case NoManagement, QuiesceSleep, MSHR, LinkMonitor, Autonomous:
	default:
		check(false, "unknown LINK_POWER %q", c.LinkPower)
	}

	switch c.AddressMapping {
	case MaxBlock32B, MaxBlock64B, MaxBlock128B, MaxBlock256B:
	default:
		check(false, "unknown ADDRESS_MAPPING %d", c.AddressMapping)
	}

	return errors.Join(errs...)
}
