package orchestrator

import (
	"errors"
	"sync"
	"time"

	"github.com/valpere/perekladach/internal/translator"
)

var (
	ErrSinkClosed  = errors.New("sink closed")
	ErrSinkTimeout = errors.New("sink emit timed out")
)

// DefaultEmitTimeout bounds how long one Emit on a ChannelSink waits for
// buffer space.
const DefaultEmitTimeout = 5 * time.Second

// Sink receives stream events. Emit is called concurrently from one
// goroutine per provider and must accept each event as a whole.
type Sink interface {
	Emit(ev translator.StreamEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev translator.StreamEvent) error

func (f SinkFunc) Emit(ev translator.StreamEvent) error {
	return f(ev)
}

// ChannelSink delivers events on a bounded channel. When the consumer falls
// behind, Emit gives up after the emit timeout instead of stalling the
// provider task.
type ChannelSink struct {
	events  chan translator.StreamEvent
	done    chan struct{}
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func NewChannelSink(buffer int, timeout time.Duration) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	if timeout <= 0 {
		timeout = DefaultEmitTimeout
	}
	return &ChannelSink{
		events:  make(chan translator.StreamEvent, buffer),
		done:    make(chan struct{}),
		timeout: timeout,
	}
}

// Events is closed by Close.
func (s *ChannelSink) Events() <-chan translator.StreamEvent {
	return s.events
}

func (s *ChannelSink) Emit(ev translator.StreamEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}

	select {
	case s.events <- ev:
		return nil
	default:
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrSinkClosed
	case <-timer.C:
		return ErrSinkTimeout
	}
}

// Close releases blocked emitters and closes the event channel. Later
// emits fail with ErrSinkClosed.
func (s *ChannelSink) Close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
}
