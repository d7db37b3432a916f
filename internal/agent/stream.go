package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-democracy/em/go/orchestrator/internal/metrics"
)

// TurnStream multiplexes concurrently produced branch events into one ordered
// output. Each publisher's own events keep their relative order; events from
// different branches interleave fairly but non-deterministically.
type TurnStream struct {
	ch     chan Event
	ctx    context.Context
	mu     sync.Mutex
	seq    uint64
	closed bool
}

func newTurnStream(ctx context.Context, buffer int) *TurnStream {
	return &TurnStream{ch: make(chan Event, buffer), ctx: ctx}
}

// Events is the consumer side of the turn. The channel closes after the
// terminal event, or without one if the turn was cancelled.
func (s *TurnStream) Events() <-chan Event { return s.ch }

// publish stamps and delivers one event. After cancellation it drops events
// silently: a disconnected client must not receive anything further.
func (s *TurnStream) publish(evt Event) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	// The lock is held across the send so assigned sequence numbers leave the
	// stream in order. Publishers serialize here; branch work stays parallel.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	evt.Seq = s.seq
	s.seq++
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	evt.Timestamp = time.Now()

	select {
	case s.ch <- evt:
		metrics.EventsEmitted.WithLabelValues(string(evt.Type)).Inc()
	case <-s.ctx.Done():
	}
}

// close ends the stream; safe to call once after the terminal event.
func (s *TurnStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
