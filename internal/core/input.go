package core

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

// LineSource yields one line of operator input per call.
type LineSource interface {
	ReadLine(ctx context.Context) (string, error)
}

// InputPool bounds the number of goroutines blocked on operator reads.
type InputPool struct {
	slots chan struct{}
}

// NewInputPool creates a pool with n slots. n below 1 is treated as 1.
func NewInputPool(n int) *InputPool {
	if n < 1 {
		n = 1
	}
	return &InputPool{slots: make(chan struct{}, n)}
}

func (p *InputPool) acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *InputPool) release() { <-p.slots }

type lineResult struct {
	line string
	err  error
}

// LineReader reads lines from a stream on pool goroutines so callers can
// give up on a read when their context ends. A line that arrives after its
// caller gave up is handed to the next caller instead of being dropped.
type LineReader struct {
	pool *InputPool
	br   *bufio.Reader

	// turn serializes callers; it is a channel so waiting honours ctx.
	turn    chan struct{}
	pending chan lineResult
	eof     bool
}

// NewLineReader wraps r. The pool may be shared between readers.
func NewLineReader(r io.Reader, pool *InputPool) *LineReader {
	if pool == nil {
		pool = NewInputPool(1)
	}
	return &LineReader{
		pool: pool,
		br:   bufio.NewReader(r),
		turn: make(chan struct{}, 1),
	}
}

// ReadLine returns the next line without its trailing newline. It returns
// io.EOF once the stream is exhausted.
func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case l.turn <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.turn }()

	if l.eof {
		return "", io.EOF
	}
	if l.pending == nil {
		if err := l.pool.acquire(ctx); err != nil {
			return "", err
		}
		ch := make(chan lineResult, 1)
		l.pending = ch
		go func() {
			defer l.pool.release()
			line, err := l.br.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				ch <- lineResult{err: err}
				return
			}
			if err != nil && line == "" {
				ch <- lineResult{err: io.EOF}
				return
			}
			ch <- lineResult{line: strings.TrimRight(line, "\r\n")}
		}()
	}

	select {
	case r := <-l.pending:
		l.pending = nil
		if errors.Is(r.err, io.EOF) {
			l.eof = true
		}
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
