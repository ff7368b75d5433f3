package monitoring

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/xid"
)

// A ProgressBar tracks how many of a known number of units, such as host
// cycles, a run has finished. Waiting counts the units queued behind it, such
// as requests the host has not taken yet.
type ProgressBar struct {
	mu sync.Mutex

	id       string
	name     string
	start    time.Time
	total    uint64
	finished uint64
	waiting  int
}

func newProgressBar(name string, total uint64) *ProgressBar {
	return &ProgressBar{
		id:    xid.New().String(),
		name:  name,
		start: time.Now(),
		total: total,
	}
}

// IncrementFinished adds to the number of finished units.
func (b *ProgressBar) IncrementFinished(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.finished += n
}

// SetWaiting sets the number of waiting units.
func (b *ProgressBar) SetWaiting(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.waiting = n
}

type progressRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
	Waiting   int       `json:"waiting"`
	Rate      float64   `json:"rate"`
	ETA       float64   `json:"eta"`
}

func (b *ProgressBar) snapshot(now time.Time) progressRsp {
	b.mu.Lock()
	defer b.mu.Unlock()

	rsp := progressRsp{
		ID:        b.id,
		Name:      b.name,
		StartTime: b.start,
		Total:     b.total,
		Finished:  b.finished,
		Waiting:   b.waiting,
	}

	elapsed := now.Sub(b.start).Seconds()
	if elapsed > 0 {
		rsp.Rate = float64(b.finished) / elapsed
	}

	if rsp.Rate > 0 && b.total > b.finished {
		rsp.ETA = float64(b.total-b.finished) / rsp.Rate
	}

	return rsp
}

// MarshalJSON reports the bar along with its rate in units per second and
// the seconds left.
func (b *ProgressBar) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.snapshot(time.Now()))
}
