package tracegen

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Writer writes requests in the trace-file format.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes one request as a trace line.
func (w *Writer) Write(req Request) error {
	_, err := fmt.Fprintf(w.w, "%d 0x%016x %s %d\n",
		req.Cycle, req.Addr, req.Kind, req.Size)

	return err
}

// Flush writes any buffered lines.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// CreateTraceFile creates the first hmcsim_trace_noN.trc that does not yet
// exist in dir.
func CreateTraceFile(dir string) (*os.File, error) {
	for n := 0; ; n++ {
		name := filepath.Join(dir, fmt.Sprintf("hmcsim_trace_no%d.trc", n))

		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("cannot create trace file: %w", err)
		}

		return f, nil
	}
}
