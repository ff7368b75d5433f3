package tracegen

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/hmcsim/config"
	"github.com/sarchlab/hmcsim/hmc/signal"
)

// Reader parses a trace file. Each line is
//
//	<cycle> 0x<address> <operation> [size]
//
// where the operation is READ, WRITE, P_WRITE or an atomic name. A missing
// size takes the default size.
type Reader struct {
	scanner     *bufio.Scanner
	line        int
	defaultSize int
}

// NewReader creates a reader.
func NewReader(r io.Reader, defaultSize int) *Reader {
	return &Reader{
		scanner:     bufio.NewScanner(r),
		defaultSize: defaultSize,
	}
}

// Next returns the next request of the file, whatever the cycle now.
func (r *Reader) Next(now uint64) (Request, bool, error) {
	for r.scanner.Scan() {
		r.line++

		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			logrus.WithFields(logrus.Fields{
				"line":  r.line,
				"cycle": now,
			}).Warn("skipping empty trace line")

			continue
		}

		req, err := ParseLine(text, r.defaultSize)
		if err != nil {
			return Request{}, false, fmt.Errorf("line %d: %w", r.line, err)
		}

		return req, true, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Request{}, false, err
	}

	return Request{}, false, io.EOF
}

// ReadAll returns every request of the file.
func (r *Reader) ReadAll() ([]Request, error) {
	var reqs []Request

	for {
		req, _, err := r.Next(0)
		if err == io.EOF {
			return reqs, nil
		}

		if err != nil {
			return nil, err
		}

		reqs = append(reqs, req)
	}
}

// ParseLine parses one trace line.
func ParseLine(line string, defaultSize int) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 || len(fields) > 4 {
		return Request{}, fmt.Errorf("malformed trace line %q", line)
	}

	cycle, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Request{}, fmt.Errorf("bad cycle %q", fields[0])
	}

	hex, ok := strings.CutPrefix(strings.ToLower(fields[1]), "0x")
	if !ok {
		return Request{}, fmt.Errorf("address %q is not hexadecimal", fields[1])
	}

	addr, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return Request{}, fmt.Errorf("bad address %q", fields[1])
	}

	kind, err := signal.ParseKind(fields[2])
	if err != nil {
		return Request{}, err
	}

	size := defaultSize
	if len(fields) == 4 {
		size, err = strconv.Atoi(fields[3])
		if err != nil || size <= 0 {
			return Request{}, fmt.Errorf("bad size %q", fields[3])
		}
	}

	if !kind.IsAtomic() && !config.IsValidSize(size) {
		return Request{}, fmt.Errorf("%s of %d bytes is not a valid request",
			kind, size)
	}

	return Request{Cycle: cycle, Kind: kind, Addr: addr, Size: size}, nil
}
