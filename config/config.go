// Package config holds the parameters of a simulated memory cube and the
// loaders that fill them in from INI files, YAML files and the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// LinkPriority selects how responses are spread over the links.
type LinkPriority string

// Link priority schemes.
const (
	RoundRobin  LinkPriority = "ROUND_ROBIN"
	BufferAware LinkPriority = "BUFFER_AWARE"
)

// UnmarshalText accepts the scheme names used in configuration files.
func (p *LinkPriority) UnmarshalText(text []byte) error {
	switch v := LinkPriority(strings.ToUpper(string(text))); v {
	case RoundRobin, BufferAware:
		*p = v
		return nil
	default:
		return fmt.Errorf("unknown link priority %q", text)
	}
}

// LinkPowerPolicy selects how link power states are managed.
type LinkPowerPolicy string

// Link power policies.
const (
	NoManagement LinkPowerPolicy = "NO_MANAGEMENT"
	QuiesceSleep LinkPowerPolicy = "QUIESCE_SLEEP"
	MSHR         LinkPowerPolicy = "MSHR"
	LinkMonitor  LinkPowerPolicy = "LINK_MONITOR"
	Autonomous   LinkPowerPolicy = "AUTONOMOUS"
)

// UnmarshalText accepts the policy names used in configuration files.
func (p *LinkPowerPolicy) UnmarshalText(text []byte) error {
	switch v := LinkPowerPolicy(strings.ToUpper(string(text))); v {
	case NoManagement, QuiesceSleep, MSHR, LinkMonitor, Autonomous:
		*p = v
		return nil
	default:
		return fmt.Errorf("unknown link power policy %q", text)
	}
}

// MappingScheme is the maximum block size in bytes. It decides how addresses
// are interleaved over vaults and how large a single vault access can be.
type MappingScheme int

// Address mapping schemes.
const (
	MaxBlock32B  MappingScheme = 32
	MaxBlock64B  MappingScheme = 64
	MaxBlock128B MappingScheme = 128
	MaxBlock256B MappingScheme = 256
)

// UnmarshalText accepts either MAX_BLOCK_<n>B or a plain byte count.
func (m *MappingScheme) UnmarshalText(text []byte) error {
	s := strings.ToUpper(strings.TrimSpace(string(text)))
	s = strings.TrimSuffix(strings.TrimPrefix(s, "MAX_BLOCK_"), "B")

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("unknown address mapping %q", text)
	}

	switch MappingScheme(n) {
	case MaxBlock32B, MaxBlock64B, MaxBlock128B, MaxBlock256B:
		*m = MappingScheme(n)
		return nil
	default:
		return fmt.Errorf("unknown address mapping %q", text)
	}
}

// Config is the complete, immutable description of a simulated cube. Time
// values are in nanoseconds unless their name says otherwise.
type Config struct {
	LogEpoch      uint64 `ini:"LOG_EPOCH" yaml:"log_epoch"`
	DebugSim      bool   `ini:"DEBUG_SIM" yaml:"debug_sim"`
	OnlyCR        bool   `ini:"ONLY_CR" yaml:"only_cr"`
	StateSim      bool   `ini:"STATE_SIM" yaml:"state_sim"`
	PlotSampling  int    `ini:"PLOT_SAMPLING" yaml:"plot_sampling"`
	BandwidthPlot bool   `ini:"BANDWIDTH_PLOT" yaml:"bandwidth_plot"`
	Seed          int64  `ini:"SEED" yaml:"seed"`

	CPUClockPeriod    float64         `ini:"CPU_CLK_PERIOD" yaml:"cpu_clk_period"`
	TransactionSize   int             `ini:"TRANSACTION_SIZE" yaml:"transaction_size"`
	MaxReqBuf         int             `ini:"MAX_REQ_BUF" yaml:"max_req_buf"`
	NumLinks          int             `ini:"NUM_LINKS" yaml:"num_links"`
	LinkWidth         int             `ini:"LINK_WIDTH" yaml:"link_width"`
	LinkSpeed         float64         `ini:"LINK_SPEED" yaml:"link_speed"`
	MaxLinkBuf        int             `ini:"MAX_LINK_BUF" yaml:"max_link_buf"`
	MaxRetryBuf       int             `ini:"MAX_RETRY_BUF" yaml:"max_retry_buf"`
	MaxVaultBuf       int             `ini:"MAX_VLT_BUF" yaml:"max_vlt_buf"`
	MaxCrossBuf       int             `ini:"MAX_CROSS_BUF" yaml:"max_cross_buf"`
	MaxCmdQueue       int             `ini:"MAX_CMD_QUE" yaml:"max_cmd_que"`
	CRCCheck          bool            `ini:"CRC_CHECK" yaml:"crc_check"`
	CRCCalCycle       float64         `ini:"CRC_CAL_CYCLE" yaml:"crc_cal_cycle"`
	NumIRTRY          int             `ini:"NUM_OF_IRTRY" yaml:"num_of_irtry"`
	RetryAttemptLimit int             `ini:"RETRY_ATTEMPT_LIMIT" yaml:"retry_attempt_limit"`
	LinkBER           int             `ini:"LINK_BER" yaml:"link_ber"`
	LinkPriority      LinkPriority    `ini:"LINK_PRIORITY" yaml:"link_priority"`
	LinkPower         LinkPowerPolicy `ini:"LINK_POWER" yaml:"link_power"`
	AwakeReq          int             `ini:"AWAKE_REQ" yaml:"awake_req"`
	LinkEpoch         float64         `ini:"LINK_EPOCH" yaml:"link_epoch"`
	MSHRScaling       float64         `ini:"MSHR_SCALING" yaml:"mshr_scaling"`
	LinkScaling       float64         `ini:"LINK_SCALING" yaml:"link_scaling"`
	PowPerLane        float64         `ini:"PowPerLane" yaml:"pow_per_lane"`
	SleepPow          float64         `ini:"SleepPow" yaml:"sleep_pow"`
	DownPow           float64         `ini:"DownPow" yaml:"down_pow"`

	// Link power timing. tSREF and tTXD are read so that existing
	// configuration files load, but no link state uses them.
	TPST     float64 `ini:"tPST" yaml:"t_pst"`
	TSME     float64 `ini:"tSME" yaml:"t_sme"`
	TSS      float64 `ini:"tSS" yaml:"t_ss"`
	TSD      float64 `ini:"tSD" yaml:"t_sd"`
	TSREF    float64 `ini:"tSREF" yaml:"t_sref"`
	TOP      float64 `ini:"tOP" yaml:"t_op"`
	TQuiesce float64 `ini:"tQUIESCE" yaml:"t_quiesce"`
	TTXD     float64 `ini:"tTXD" yaml:"t_txd"`
	TResp1   float64 `ini:"tRESP1" yaml:"t_resp1"`
	TResp2   float64 `ini:"tRESP2" yaml:"t_resp2"`
	TPSC     float64 `ini:"tPSC" yaml:"t_psc"`

	MemoryDensity  int           `ini:"MEMORY_DENSITY" yaml:"memory_density"`
	NumVaults      int           `ini:"NUM_VAULTS" yaml:"num_vaults"`
	NumBanks       int           `ini:"NUM_BANKS" yaml:"num_banks"`
	NumRows        int           `ini:"NUM_ROWS" yaml:"num_rows"`
	NumCols        int           `ini:"NUM_COLS" yaml:"num_cols"`
	AddressMapping MappingScheme `ini:"ADDRESS_MAPPING" yaml:"address_mapping"`
	QuePerBank     bool          `ini:"QUE_PER_BANK" yaml:"que_per_bank"`
	OpenPage       bool          `ini:"OPEN_PAGE" yaml:"open_page"`
	MaxRowAccesses int           `ini:"MAX_ROW_ACCESSES" yaml:"max_row_accesses"`
	UseLowPower    bool          `ini:"USE_LOW_POWER" yaml:"use_low_power"`
	RefreshPeriod  float64       `ini:"REFRESH_PERIOD" yaml:"refresh_period"`

	// DRAM timing.
	TCK   float64 `ini:"tCK" yaml:"t_ck"`
	CWL   float64 `ini:"CWL" yaml:"cwl"`
	CL    float64 `ini:"CL" yaml:"cl"`
	AL    float64 `ini:"AL" yaml:"al"`
	TRAS  float64 `ini:"tRAS" yaml:"t_ras"`
	TRCD  float64 `ini:"tRCD" yaml:"t_rcd"`
	TRRD  float64 `ini:"tRRD" yaml:"t_rrd"`
	TRC   float64 `ini:"tRC" yaml:"t_rc"`
	TRP   float64 `ini:"tRP" yaml:"t_rp"`
	TCCD  float64 `ini:"tCCD" yaml:"t_ccd"`
	TRTP  float64 `ini:"tRTP" yaml:"t_rtp"`
	TWTR  float64 `ini:"tWTR" yaml:"t_wtr"`
	TWR   float64 `ini:"tWR" yaml:"t_wr"`
	TRTRS float64 `ini:"tRTRS" yaml:"t_rtrs"` // one rank per vault, unused
	TRFC  float64 `ini:"tRFC" yaml:"t_rfc"`
	TFAW  float64 `ini:"tFAW" yaml:"t_faw"`
	TCKE  float64 `ini:"tCKE" yaml:"t_cke"`
	TXP   float64 `ini:"tXP" yaml:"t_xp"`
	TCMD  float64 `ini:"tCMD" yaml:"t_cmd"`
}

// Default returns the configuration of a 4 GB cube with four full-width
// 30 Gb/s links.
func Default() *Config {
	return &Config{
		LogEpoch:      1000000,
		PlotSampling:  10000,
		BandwidthPlot: true,
		Seed:          1,

		CPUClockPeriod:    0.5,
		TransactionSize:   32,
		MaxReqBuf:         4,
		NumLinks:          4,
		LinkWidth:         16,
		LinkSpeed:         30,
		MaxLinkBuf:        32,
		MaxRetryBuf:       32,
		MaxVaultBuf:       32,
		MaxCrossBuf:       64,
		MaxCmdQueue:       16,
		CRCCheck:          true,
		CRCCalCycle:       0.01,
		NumIRTRY:          2,
		RetryAttemptLimit: 2,
		LinkBER:           -10,
		LinkPriority:      RoundRobin,
		LinkPower:         NoManagement,
		AwakeReq:          2,
		LinkEpoch:         10000,
		MSHRScaling:       0.25,
		LinkScaling:       0.5,
		PowPerLane:        10,
		SleepPow:          20,
		DownPow:           2,

		TPST:     80,
		TSME:     500,
		TSS:      500,
		TSD:      200,
		TSREF:    1000,
		TOP:      1000,
		TQuiesce: 100,
		TTXD:     5,
		TResp1:   1000,
		TResp2:   1200,
		TPSC:     200,

		MemoryDensity:  4,
		NumVaults:      32,
		NumBanks:       8,
		NumRows:        16384,
		NumCols:        1024,
		AddressMapping: MaxBlock32B,
		QuePerBank:     true,
		OpenPage:       false,
		MaxRowAccesses: 8,
		UseLowPower:    true,
		RefreshPeriod:  7800,

		TCK:   0.8,
		CWL:   3.2,
		CL:    9.9,
		AL:    0,
		TRAS:  21.6,
		TRCD:  10.2,
		TRRD:  3.2,
		TRC:   32,
		TRP:   7.7,
		TCCD:  3.2,
		TRTP:  4.9,
		TWTR:  4.9,
		TWR:   8,
		TRTRS: 0.8,
		TRFC:  59,
		TFAW:  19.2,
		TCKE:  3.6,
		TXP:   3.2,
		TCMD:  0.8,
	}
}

// Clone returns a copy that can be modified without affecting c.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// LinkPeriod returns the duration of one link unit interval in nanoseconds.
func (c *Config) LinkPeriod() float64 {
	return 1 / c.LinkSpeed
}

// MaxBlockSize returns the maximum block size in bytes.
func (c *Config) MaxBlockSize() int {
	return int(c.AddressMapping)
}

// Capacity returns the number of bytes the vaults hold. A column is one byte
// wide.
func (c *Config) Capacity() uint64 {
	return uint64(c.NumVaults) * uint64(c.NumBanks) *
		uint64(c.NumRows) * uint64(c.NumCols)
}

// DensityMatches tells if the geometry holds MEMORY_DENSITY gigabytes. A
// density of zero matches any geometry.
func (c *Config) DensityMatches() bool {
	return c.MemoryDensity <= 0 || c.Capacity() == uint64(c.MemoryDensity)<<30
}

// EffectiveClockPeriod is the period a host should pace its requests with,
// the slower of the host clock and the DRAM clock.
func (c *Config) EffectiveClockPeriod() float64 {
	if c.TCK > c.CPUClockPeriod {
		return c.TCK
	}

	return c.CPUClockPeriod
}
