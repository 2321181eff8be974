package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when a read is abandoned because its context
// ended.
var ErrInputCancelled = errors.New("input canceled")

type lineResult struct {
	err  error
	line string
}

// LineReader hands out operator input one trimmed line at a time. A single
// goroutine owns the source, so a line typed after a cancelled read is
// delivered to the next ReadLine instead of being lost.
type LineReader struct {
	src   *bufio.Reader
	lines chan lineResult
	start sync.Once
}

// NewLineReader wraps src. Nothing is read until the first ReadLine.
func NewLineReader(src io.Reader) *LineReader {
	if src == nil {
		panic("reader cannot be nil")
	}
	return &LineReader{
		src:   bufio.NewReader(src),
		lines: make(chan lineResult),
	}
}

func (r *LineReader) pump() {
	defer close(r.lines)
	for {
		line, err := r.src.ReadString('\n')
		if line != "" {
			r.lines <- lineResult{line: strings.TrimSpace(line)}
		}
		if err != nil {
			r.lines <- lineResult{err: err}
			return
		}
	}
}

// ReadLine returns the next line. A final line without a newline is returned
// before io.EOF.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}
	r.start.Do(func() { go r.pump() })

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}
