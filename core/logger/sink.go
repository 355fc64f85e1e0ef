package logger

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

var errSinkClosed = errors.New("logger: sink closed")

// sinkOp is either a line to write or a flush barrier.
type sinkOp struct {
	line []byte
	ack  chan error
}

// sink fans formatted lines out to its writers from a single goroutine so
// handlers never block on slow output.
type sink struct {
	ops    chan sinkOp
	done   chan struct{}
	outs   []io.Writer
	closed atomic.Bool
	once   sync.Once

	mu  sync.Mutex
	err error
}

func newSink(outs ...io.Writer) *sink {
	s := &sink{
		ops:  make(chan sinkOp, 256),
		done: make(chan struct{}),
	}
	for _, w := range outs {
		if w != nil {
			s.outs = append(s.outs, w)
		}
	}
	go s.run()
	return s
}

func (s *sink) run() {
	defer close(s.done)
	for op := range s.ops {
		if op.ack != nil {
			op.ack <- s.failure()
			continue
		}
		for _, w := range s.outs {
			if _, err := w.Write(op.line); err != nil {
				s.record(err)
				break
			}
		}
	}
}

// Write queues a copy of p.
func (s *sink) Write(p []byte) error {
	if s.closed.Load() {
		return errSinkClosed
	}
	if err := s.failure(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	s.ops <- sinkOp{line: append([]byte(nil), p...)}
	return nil
}

// Flush returns once every line queued before it has been written.
func (s *sink) Flush() error {
	if s.closed.Load() {
		return s.failure()
	}
	ack := make(chan error, 1)
	s.ops <- sinkOp{ack: ack}
	return <-ack
}

// Close drains the queue and returns the first write error.
func (s *sink) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ops)
	})
	<-s.done
	return s.failure()
}

func (s *sink) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *sink) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
