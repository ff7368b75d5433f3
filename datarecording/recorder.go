package datarecording

import (
	"github.com/rs/xid"
	"github.com/sarchlab/hmcsim/hmc/signal"
	"github.com/sarchlab/hmcsim/sim/hooking"
	"github.com/sarchlab/hmcsim/stats"
)

// Tables written by a Recorder.
const (
	TransactionTable = "transactions"
	EpochTable       = "epochs"
	LinkTable        = "link_epochs"
	BandwidthTable   = "bandwidth_samples"
)

// TransactionEntry is a retired transaction.
type TransactionEntry struct {
	RunID        string
	ID           uint64
	Kind         string
	Addr         uint64
	Size         int
	Posted       bool
	IssueCycle   uint64
	Latency      uint64
	LinkLatency  uint64
	VaultLatency uint64
	Retries      int
}

// EpochEntry is the summary of one report window.
type EpochEntry struct {
	RunID        string
	Epoch        uint64
	Final        bool
	StartCycle   uint64
	EndCycle     uint64
	Reads        uint64
	Writes       uint64
	Atomics      uint64
	Errors       uint64
	Bandwidth    float64
	TranLatMean  float64
	TranLatStd   float64
	TranLatMax   float64
	LinkLatMean  float64
	VaultLatMean float64
	RetryLatMean float64
	ActivePower  float64
	SleepPower   float64
	DownPower    float64
	SleepRatio   float64
	DownRatio    float64
}

// LinkEntry is what one link did during one report window.
type LinkEntry struct {
	RunID         string
	Epoch         uint64
	Final         bool
	Link          int
	DownBytes     uint64
	UpBytes       uint64
	DownDataBytes uint64
	UpDataBytes   uint64
	Requests      uint64
	Responses     uint64
	Flows         uint64
	Errors        uint64
	RetryFailures uint64
	SleepCycles   uint64
	DownCycles    uint64
	DownBandwidth float64
	UpBandwidth   float64
}

// BandwidthEntry is the data bandwidth of one link over one sampling window.
// The row with Link -1 is the whole cube.
type BandwidthEntry struct {
	RunID      string
	Sample     uint64
	StartCycle uint64
	EndCycle   uint64
	Link       int
	Bandwidth  float64
}

// Recorder writes the transactions and the statistics of one run. It is a
// hook for the transactions; reports arrive through RecordReport.
type Recorder struct {
	recorder DataRecorder
	runID    string
	info     *runInfoRecorder
}

// NewRecorder creates the tables of a run in r. The fields of cfg are
// recorded as run properties.
func NewRecorder(r DataRecorder, cfg any) *Recorder {
	rec := &Recorder{
		recorder: r,
		runID:    xid.New().String(),
	}

	r.CreateTable(TransactionTable, TransactionEntry{})
	r.CreateTable(EpochTable, EpochEntry{})
	r.CreateTable(LinkTable, LinkEntry{})
	r.CreateTable(BandwidthTable, BandwidthEntry{})

	rec.info = newRunInfoRecorder(r)
	rec.info.start(rec.runID)

	if cfg != nil {
		rec.info.config(cfg)
	}

	return rec
}

// RunID returns the identifier that tags every row of the run.
func (r *Recorder) RunID() string {
	return r.runID
}

// Func records retired transactions.
func (r *Recorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != signal.HookPosTransactionRetire {
		return
	}

	t := ctx.Item.(*signal.Trace)

	r.recorder.InsertData(TransactionTable, TransactionEntry{
		RunID:        r.runID,
		ID:           t.TransactionID,
		Kind:         t.Kind.String(),
		Addr:         t.Addr,
		Size:         t.Size,
		Posted:       t.Posted,
		IssueCycle:   t.TranTransmitTime,
		Latency:      t.TranFullLat,
		LinkLatency:  t.LinkFullLat,
		VaultLatency: t.VaultFullLat,
		Retries:      t.Retries,
	})
}

// RecordReport records an epoch or final report.
func (r *Recorder) RecordReport(rep stats.Report) {
	r.recorder.InsertData(EpochTable, EpochEntry{
		RunID:        r.runID,
		Epoch:        rep.Index,
		Final:        rep.Final,
		StartCycle:   rep.StartCycle,
		EndCycle:     rep.EndCycle,
		Reads:        rep.Reads,
		Writes:       rep.Writes,
		Atomics:      rep.Atomics,
		Errors:       rep.Errors(),
		Bandwidth:    rep.Bandwidth,
		TranLatMean:  rep.TransactionLatency.Mean,
		TranLatStd:   rep.TransactionLatency.Std,
		TranLatMax:   rep.TransactionLatency.Max,
		LinkLatMean:  rep.LinkLatency.Mean,
		VaultLatMean: rep.VaultLatency.Mean,
		RetryLatMean: rep.RetryLatency.Mean,
		ActivePower:  rep.LinkPower.Active,
		SleepPower:   rep.LinkPower.Sleep,
		DownPower:    rep.LinkPower.Down,
		SleepRatio:   rep.LinkPower.SleepRatio,
		DownRatio:    rep.LinkPower.DownRatio,
	})

	for _, l := range rep.Links {
		r.recorder.InsertData(LinkTable, LinkEntry{
			RunID:         r.runID,
			Epoch:         rep.Index,
			Final:         rep.Final,
			Link:          l.ID,
			DownBytes:     l.Down.TransmittedBytes,
			UpBytes:       l.Up.TransmittedBytes,
			DownDataBytes: l.Down.DataBytes,
			UpDataBytes:   l.Up.DataBytes,
			Requests:      l.Down.Requests,
			Responses:     l.Up.Responses,
			Flows:         l.Down.Flows + l.Up.Flows,
			Errors:        l.Down.Errors + l.Up.Errors,
			RetryFailures: l.RetryFailures,
			SleepCycles:   l.SleepCycles,
			DownCycles:    l.DownCycles,
			DownBandwidth: l.DownBandwidth,
			UpBandwidth:   l.UpBandwidth,
		})
	}
}

// RecordSample records a bandwidth sample.
func (r *Recorder) RecordSample(b stats.BandwidthSample) {
	entry := BandwidthEntry{
		RunID:      r.runID,
		Sample:     b.Index,
		StartCycle: b.StartCycle,
		EndCycle:   b.EndCycle,
	}

	for i, bw := range b.Links {
		entry.Link = i
		entry.Bandwidth = bw
		r.recorder.InsertData(BandwidthTable, entry)
	}

	entry.Link = -1
	entry.Bandwidth = b.Bandwidth
	r.recorder.InsertData(BandwidthTable, entry)
}

// Close records the end of the run and closes the database.
func (r *Recorder) Close() error {
	r.info.end()

	return r.recorder.Close()
}
