package search

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/session"
)

// subscriberBuffer sizes each subscriber's snapshot channel. A slow
// consumer can fall this many snapshots behind before sends start timing
// out; snapshots are cumulative so dropped intermediates lose nothing.
const subscriberBuffer = 16

// sendTimeout bounds how long a broadcast waits on one subscriber before
// giving up on that snapshot for them.
const sendTimeout = 100 * time.Millisecond

// Subscriber is one consumer of session snapshots, typically an SSE
// connection in the API layer.
type Subscriber struct {
	ID string
	Ch chan session.Snapshot

	ctx    context.Context
	cancel context.CancelFunc
}

func newSubscriber(parent context.Context) *Subscriber {
	ctx, cancel := context.WithCancel(parent)
	return &Subscriber{
		ID:     uuid.NewString(),
		Ch:     make(chan session.Snapshot, subscriberBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Send delivers a snapshot without ever blocking the event loop for long.
// Returns false when the subscriber is gone or persistently slow.
func (s *Subscriber) Send(snap session.Snapshot) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}

	select {
	case s.Ch <- snap:
		return true
	case <-s.ctx.Done():
		return false
	case <-time.After(sendTimeout):
		return false
	}
}

// Done reports the subscriber's cancellation channel, for select loops.
func (s *Subscriber) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Close detaches the subscriber. Safe to call more than once.
func (s *Subscriber) Close() {
	s.cancel()
}
