package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/pkg/events"
)

type publisherStub struct {
	mu       sync.Mutex
	failures int
	calls    int
	queues   []string
	payloads []interface{}
	done     chan struct{}
}

func (p *publisherStub) Publish(_ context.Context, queue string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("broker unavailable")
	}
	p.queues = append(p.queues, queue)
	p.payloads = append(p.payloads, payload)
	close(p.done)
	return nil
}

func TestEventDispatcherPublishesWithRetry(t *testing.T) {
	publisher := &publisherStub{failures: 1, done: make(chan struct{})}
	dispatcher := NewEventDispatcher(publisher, EventDispatcherConfig{Queue: "timetable.generated", Retries: 2, RetryDelay: time.Millisecond}, nil)
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	dispatcher.TimetableGenerated(events.TimetableGenerated{RunID: "run-1", SchoolID: "school-1"})

	select {
	case <-publisher.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	assert.Equal(t, 2, publisher.calls)
	require.Len(t, publisher.payloads, 1)
	assert.Equal(t, "timetable.generated", publisher.queues[0])
	evt, ok := publisher.payloads[0].(events.TimetableGenerated)
	require.True(t, ok)
	assert.Equal(t, "run-1", evt.RunID)
}

func TestEventDispatcherNotStartedDropsEvent(t *testing.T) {
	publisher := &publisherStub{done: make(chan struct{})}
	dispatcher := NewEventDispatcher(publisher, EventDispatcherConfig{}, nil)

	assert.NotPanics(t, func() {
		dispatcher.TimetableGenerated(events.TimetableGenerated{RunID: "run-1"})
	})
	assert.Zero(t, publisher.calls)

	var nilDispatcher *EventDispatcher
	assert.NotPanics(t, func() {
		nilDispatcher.TimetableGenerated(events.TimetableGenerated{})
		nilDispatcher.Stop()
	})
}
