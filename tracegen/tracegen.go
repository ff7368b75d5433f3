// Package tracegen produces the host workloads that drive a cube: random
// traffic and trace files.
package tracegen

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/hmcsim/hmc/signal"
)

// A Request is one transaction of a workload, to be issued no earlier than
// Cycle.
type Request struct {
	Cycle uint64
	Kind  signal.TransactionKind
	Addr  uint64
	Size  int
}

func (r Request) String() string {
	return fmt.Sprintf("%d 0x%016x %s %d", r.Cycle, r.Addr, r.Kind, r.Size)
}

// A Source produces the requests of a workload.
type Source interface {
	// Next returns the next request known at cycle now. It returns false if
	// no request is available this cycle and io.EOF once the workload is
	// exhausted.
	Next(now uint64) (Request, bool, error)
}

// A Submitter takes transactions. hmc.Simulator is one.
type Submitter interface {
	Submit(kind signal.TransactionKind, addr uint64, size int) bool
}

// Driver feeds the requests of a source into a submitter in order. It keeps
// at most depth requests waiting; a depth of 0 means no limit.
type Driver struct {
	src     Source
	depth   int
	backlog []Request
	done    bool

	issued uint64
}

// NewDriver creates a driver.
func NewDriver(src Source, depth int) *Driver {
	return &Driver{src: src, depth: depth}
}

// Tick polls the source and submits the oldest waiting request if its cycle
// has come. It reports if a request was submitted.
func (d *Driver) Tick(now uint64, sub Submitter) (bool, error) {
	if err := d.poll(now); err != nil {
		return false, err
	}

	if len(d.backlog) == 0 {
		return false, nil
	}

	head := d.backlog[0]
	if head.Cycle > now {
		return false, nil
	}

	if !sub.Submit(head.Kind, head.Addr, head.Size) {
		return false, nil
	}

	d.backlog = d.backlog[1:]
	d.issued++

	return true, nil
}

func (d *Driver) poll(now uint64) error {
	if d.done || (d.depth > 0 && len(d.backlog) >= d.depth) {
		return nil
	}

	req, ok, err := d.src.Next(now)
	if errors.Is(err, io.EOF) {
		d.done = true
		return nil
	}

	if err != nil {
		return err
	}

	if ok {
		d.backlog = append(d.backlog, req)
	}

	return nil
}

// Issued returns the number of requests submitted so far.
func (d *Driver) Issued() uint64 {
	return d.issued
}

// Pending returns the number of requests waiting to be submitted.
func (d *Driver) Pending() int {
	return len(d.backlog)
}

// Exhausted tells if the source has ended and every request was submitted.
func (d *Driver) Exhausted() bool {
	return d.done && len(d.backlog) == 0
}
