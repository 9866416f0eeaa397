package sink_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronicle/audit"
	"chronicle/sink"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]audit.Record
	err     error
}

func (c *captureSink) Write(_ context.Context, records []audit.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, records)
	return c.err
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func batch(n int) []audit.Record {
	records := make([]audit.Record, n)
	for i := range records {
		records[i] = audit.Record{ID: uuid.New(), ChangeType: "Added", TableName: "widgets"}
	}
	return records
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestWorker_FansOutToAllSinks(t *testing.T) {
	first := &captureSink{}
	second := &captureSink{}
	w := sink.NewWorker(4, discardLogger(), first, second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	w.Publish(batch(3))

	waitFor(t, func() bool { return first.count() == 1 && second.count() == 1 })
	assert.Len(t, first.batches[0], 3)

	cancel()
	<-done
}

func TestWorker_OneFailingSinkDoesNotStarveOthers(t *testing.T) {
	failing := &captureSink{err: errors.New("broker down")}
	healthy := &captureSink{}
	w := sink.NewWorker(4, discardLogger(), failing, healthy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	w.Publish(batch(1))
	w.Publish(batch(1))

	waitFor(t, func() bool { return healthy.count() == 2 })
}

func TestWorker_PublishNeverBlocks(t *testing.T) {
	// No Run loop draining: the buffer fills and later batches drop.
	w := sink.NewWorker(1, discardLogger(), &captureSink{})
	for range 10 {
		w.Publish(batch(1))
	}
	// Reaching this point is the assertion.
}

func TestWorker_EmptyBatchIsIgnored(t *testing.T) {
	s := &captureSink{}
	w := sink.NewWorker(1, discardLogger(), s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	w.Publish(nil)
	w.Publish(batch(1))

	waitFor(t, func() bool { return s.count() == 1 })
	require.Len(t, s.batches[0], 1)
}
