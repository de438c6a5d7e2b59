package service

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ticker runs a function on a fixed interval until stopped. It carries the
// Start/Stop state shared by the periodic services.
type ticker struct {
	interval time.Duration
	tick     func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *ticker) start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return fmt.Errorf("service already running")
	}
	if t.interval <= 0 {
		return fmt.Errorf("invalid interval %s", t.interval)
	}

	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	go t.loop(ctx, t.done)
	return nil
}

// stop cancels the loop and waits for the running tick to return.
func (t *ticker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil
}

func (t *ticker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			t.tick(ctx)
		}
	}
}
