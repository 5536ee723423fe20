// Package report implements the line protocol workers use to hand their final
// counters to the coordinator.
//
// Every worker writes exactly one message of the form
//
//	<success> <failed> <bytes>\n
//
// where each field is a non-negative decimal integer. The coordinator is the
// only reader and expects one message per spawned worker.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// MaxLineSize bounds a single message. Three int64 values plus separators fit
// well below PIPE_BUF, so a single write is atomic on POSIX pipes.
const MaxLineSize = 128

// ErrMalformed is returned when a message does not hold exactly three
// non-negative integers.
var ErrMalformed = errors.New("malformed report line")

// Result holds the counters produced by a single worker.
type Result struct {
	Success int64 `json:"success" yaml:"success"`
	Failed  int64 `json:"failed" yaml:"failed"`
	Bytes   int64 `json:"bytes" yaml:"bytes"`
}

// Requests returns the number of counted request attempts.
func (r Result) Requests() int64 {
	return r.Success + r.Failed
}

// Add returns the field-wise sum of r and other.
func (r Result) Add(other Result) Result {
	return Result{
		Success: r.Success + other.Success,
		Failed:  r.Failed + other.Failed,
		Bytes:   r.Bytes + other.Bytes,
	}
}

func (r Result) valid() bool {
	return r.Success >= 0 && r.Failed >= 0 && r.Bytes >= 0
}

// MarshalText renders r in wire format, including the trailing newline.
func (r Result) MarshalText() ([]byte, error) {
	if !r.valid() {
		return nil, fmt.Errorf("%w: negative counter in %+v", ErrMalformed, r)
	}
	buf := make([]byte, 0, 64)
	buf = strconv.AppendInt(buf, r.Success, 10)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, r.Failed, 10)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, r.Bytes, 10)
	buf = append(buf, '\n')
	return buf, nil
}

// Parse decodes a single message. Surrounding whitespace is ignored.
func Parse(line string) (Result, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Result{}, fmt.Errorf("%w: want 3 fields, got %q", ErrMalformed, line)
	}
	var values [3]int64
	for i, f := range fields {
		if f[0] == '+' || f[0] == '-' {
			return Result{}, fmt.Errorf("%w: field %d is %q", ErrMalformed, i, f)
		}
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return Result{}, fmt.Errorf("%w: field %d: %v", ErrMalformed, i, err)
		}
		values[i] = v
	}
	return Result{Success: values[0], Failed: values[1], Bytes: values[2]}, nil
}

// LineWriter serialises report messages onto a shared writer. Each message is
// emitted with a single Write call under a lock so concurrent workers never
// interleave their lines.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineWriter wraps w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// Write encodes and writes one message.
func (l *LineWriter) Write(r Result) error {
	buf, err := r.MarshalText()
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	n, err := l.w.Write(buf)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("write report: %w", io.ErrShortWrite)
	}
	return nil
}

// Reader decodes messages from the shared channel.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, MaxLineSize), MaxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns the next message. It returns io.EOF when the channel is closed
// cleanly, ErrMalformed for a garbled line, or the underlying read error.
func (r *Reader) Next() (Result, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return Result{}, err
		}
		return Result{}, io.EOF
	}
	return Parse(r.scanner.Text())
}

// Collection is what the coordinator managed to read from the channel.
type Collection struct {
	Results  []Result
	Expected int
	// Err explains why reading stopped before Expected messages arrived.
	Err error
}

// Lost reports how many expected messages never arrived intact.
func (c Collection) Lost() int {
	if lost := c.Expected - len(c.Results); lost > 0 {
		return lost
	}
	return 0
}

// Collect reads up to expected messages from r. The first EOF, read error or
// malformed line ends collection.
func Collect(r io.Reader, expected int) Collection {
	c := Collection{Expected: expected}
	if expected <= 0 {
		return c
	}
	c.Results = make([]Result, 0, expected)
	reader := NewReader(r)
	for len(c.Results) < expected {
		res, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			c.Err = err
			return c
		}
		c.Results = append(c.Results, res)
	}
	return c
}
