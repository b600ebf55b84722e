package client

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/lni/dragonboat/v4/logger"
)

var heartbeatLogger = logger.GetLogger("heartbeat")

// Pinger sends a cheap request to the server
type Pinger interface {
	Ping(ctx context.Context) error
}

// Heartbeat pings the server in a fixed interval so that a dead connection is
// noticed (and replaced by the next ping) before a caller needs it. Failed
// pings are logged and otherwise ignored.
type Heartbeat struct {
	pinger   Pinger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// StartHeartbeat starts the heartbeat loop in the background. A nil clock uses
// the wall clock.
func StartHeartbeat(pinger Pinger, interval time.Duration, clk clock.Clock) *Heartbeat {
	if clk == nil {
		clk = clock.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Heartbeat{
		pinger:   pinger,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	// Create the ticker before returning so the first tick is relative to now
	ticker := clk.Ticker(interval)
	go h.run(ctx, ticker)

	heartbeatLogger.Debugf("Heartbeat started with interval %s", interval)
	return h
}

// Stop ends the loop, a ping in flight is cancelled. Stop blocks until the loop
// has returned and may be called more than once.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(h.cancel)
	<-h.done
}

func (h *Heartbeat) run(ctx context.Context, ticker *clock.Ticker) {
	defer close(h.done)
	defer ticker.Stop()

	consecutiveFailures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := h.pinger.Ping(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			consecutiveFailures++
			heartbeatFailures.Inc()
			heartbeatLogger.Warningf("Heartbeat failed (%d consecutive): %v", consecutiveFailures, err)
			continue
		}

		if consecutiveFailures > 0 {
			heartbeatLogger.Infof("Heartbeat recovered after %d failures", consecutiveFailures)
		}
		consecutiveFailures = 0
	}
}
