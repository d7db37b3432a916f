package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(s *TurnStream) []Event {
	var events []Event
	for evt := range s.Events() {
		events = append(events, evt)
	}
	return events
}

func TestStreamPreservesPerPublisherOrder(t *testing.T) {
	s := newTurnStream(context.Background(), 1024)

	const publishers, perPublisher = 4, 50
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			target := fmt.Sprintf("P%d", p)
			for i := 0; i < perPublisher; i++ {
				s.publish(Event{
					Type:   EventTargetAnswerDelta,
					Target: target,
					Delta:  fmt.Sprintf("%d", i),
				})
			}
		}()
	}
	go func() {
		wg.Wait()
		s.close()
	}()

	events := drain(s)
	require.Len(t, events, publishers*perPublisher)

	// Global sequence numbers are strictly increasing in delivery order.
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}

	// Each publisher's own events arrive in the order it published them.
	next := map[string]int{}
	for _, evt := range events {
		assert.Equal(t, fmt.Sprintf("%d", next[evt.Target]), evt.Delta,
			"out-of-order delivery for %s", evt.Target)
		next[evt.Target]++
	}
}

func TestStreamStampsIDAndTimestamp(t *testing.T) {
	s := newTurnStream(context.Background(), 1)
	s.publish(Event{Type: EventDone})
	s.close()

	events := drain(s)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestStreamDropsEventsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTurnStream(ctx, 8)

	s.publish(Event{Type: EventAnswerDelta, Delta: "before"})
	cancel()
	s.publish(Event{Type: EventAnswerDelta, Delta: "after"})
	s.close()

	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, "before", events[0].Delta)
}

func TestStreamPublishAfterCloseIsSafe(t *testing.T) {
	s := newTurnStream(context.Background(), 8)
	s.publish(Event{Type: EventAnswerDelta, Delta: "only"})
	s.close()

	assert.NotPanics(t, func() {
		s.publish(Event{Type: EventDone})
		s.close()
	})

	events := drain(s)
	require.Len(t, events, 1)
	assert.Equal(t, "only", events[0].Delta)
}
