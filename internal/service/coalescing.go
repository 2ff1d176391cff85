package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/runboardhq/runboard/internal/models"
)

// requestCoalescer deduplicates concurrent provider reads for the same
// series key. The first caller performs the read; followers wait on the
// in-flight result up to the configured timeout.
type requestCoalescer struct {
	mu       sync.Mutex
	inflight map[string]*coalescedCall
	timeout  time.Duration
}

type coalescedCall struct {
	done   chan struct{}
	result models.ScalarSeries
	err    error
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inflight: make(map[string]*coalescedCall),
		timeout:  timeout,
	}
}

// GetOrDo executes fn for the key, or waits for an already in-flight call
// with the same key and returns its result. Waiting is bounded by the
// coalescer timeout and the caller's context.
func (c *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func() (models.ScalarSeries, error)) (models.ScalarSeries, error) {
	c.mu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		// Wait for the in-flight call to complete
		select {
		case <-call.done:
			return call.result, call.err
		case <-time.After(c.timeout):
			return models.ScalarSeries{}, fmt.Errorf("coalesced wait for %s timed out after %s", key, c.timeout)
		case <-ctx.Done():
			return models.ScalarSeries{}, ctx.Err()
		}
	}

	call := &coalescedCall{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	call.result, call.err = fn()

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(call.done)

	return call.result, call.err
}
