package checkin

import (
	"log"
	"sync"
	"time"
)

// DefaultBroadcastInterval is used when no interval is configured.
const DefaultBroadcastInterval = 30 * time.Second

// Broadcaster periodically re-broadcasts the active-session snapshot to the
// admin room. Broadcast failures are logged and the next tick retries
// implicitly, since the snapshot is recomputed from scratch every time.
//
// Each process instance runs its own Broadcaster; in a horizontally scaled
// deployment that produces duplicate, identical snapshots, which clients
// absorb because the event is a full-state replacement.
type Broadcaster struct {
	tracker  *Tracker
	interval time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewBroadcaster returns a stopped Broadcaster. A non-positive interval
// falls back to DefaultBroadcastInterval.
func NewBroadcaster(t *Tracker, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	return &Broadcaster{
		tracker:  t,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the ticker goroutine. Calling Start more than once is a
// no-op.
func (b *Broadcaster) Start() {
	b.startOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(b.interval)
			defer ticker.Stop()
			for {
				select {
				case <-b.done:
					return
				case <-ticker.C:
					if err := b.tracker.BroadcastActiveSessions(); err != nil {
						log.Printf("[checkin] periodic broadcast failed: %v", err)
					}
				}
			}
		}()
	})
}

// Stop terminates the ticker goroutine. Idempotent.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
}
