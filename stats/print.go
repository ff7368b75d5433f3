package stats

import (
	"github.com/sirupsen/logrus"
)

// Log prints a report, one entry for the window and one per link that
// carried traffic or slept.
func Log(logger logrus.FieldLogger, r Report) {
	title := "epoch"
	if r.Final {
		title = "final"
	}

	logger.WithFields(logrus.Fields{
		"index":          r.Index,
		"cycles":         r.Cycles(),
		"reads":          r.Reads,
		"writes":         r.Writes,
		"atomics":        r.Atomics,
		"errors":         r.Errors(),
		"bandwidth_gbps": r.Bandwidth,
		"tran_lat_mean":  r.TransactionLatency.Mean,
		"tran_lat_std":   r.TransactionLatency.Std,
		"tran_lat_max":   r.TransactionLatency.Max,
		"link_lat_mean":  r.LinkLatency.Mean,
		"vault_lat_mean": r.VaultLatency.Mean,
		"retry_lat_mean": r.RetryLatency.Mean,
		"link_power_mw":  r.LinkPower.Total(),
		"sleep_ratio":    r.LinkPower.SleepRatio,
		"down_ratio":     r.LinkPower.DownRatio,
	}).Info(title)

	for _, l := range r.Links {
		if l.Down.TransmittedBytes == 0 && l.Up.TransmittedBytes == 0 &&
			l.SleepCycles == 0 && l.DownCycles == 0 {
			continue
		}

		logger.WithFields(logrus.Fields{
			"link":           l.ID,
			"down_gbps":      l.DownBandwidth,
			"up_gbps":        l.UpBandwidth,
			"requests":       l.Down.Requests,
			"responses":      l.Up.Responses,
			"flows":          l.Down.Flows + l.Up.Flows,
			"errors":         l.Down.Errors + l.Up.Errors,
			"retry_failures": l.RetryFailures,
			"sleep_cycles":   l.SleepCycles,
			"down_cycles":    l.DownCycles,
		}).Info(title + " link")
	}
}
