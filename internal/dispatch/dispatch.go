// Package dispatch abstracts the hand-off of completion callbacks to a
// UI-affine execution context, so pipeline code never touches a UI toolkit
// directly and tests can run callbacks synchronously.
package dispatch

import (
	"sync"

	"github.com/ytget/manga-reader/internal/logger"
)

// Executor runs actions on some execution context.
type Executor interface {
	Submit(action func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(action func())

// Submit calls f(action).
func (f ExecutorFunc) Submit(action func()) { f(action) }

// Immediate runs actions synchronously on the caller's goroutine.
type Immediate struct{}

// Submit runs action right away.
func (Immediate) Submit(action func()) { action() }

// Serial runs actions one at a time, in submission order, on a single
// goroutine. It stands in for a UI thread in headless front-ends.
type Serial struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewSerial starts a serial executor.
func NewSerial() *Serial {
	s := &Serial{done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

// Submit enqueues action. Actions submitted after Close are dropped.
func (s *Serial) Submit(action func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, action)
	s.cond.Signal()
}

// Close drains pending actions and stops the loop.
func (s *Serial) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
	<-s.done
}

func (s *Serial) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		action := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		run(action)
	}
}

// run isolates a panicking action so the loop keeps serving.
func run(action func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatched action panicked", "panic", r)
		}
	}()
	action()
}
