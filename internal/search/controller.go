package search

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/config"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/logger"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/session"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/streaming"
)

// ErrSearchActive is returned by Start while another run is in flight.
// One run at a time: the producer backend drives a single browser session.
var ErrSearchActive = errors.New("search: a search is already in flight")

// Controller owns the lifecycle of search runs: the exclusive submission
// guard, the stream-reading goroutine, cancellation, and snapshot fanout.
type Controller struct {
	client   ProducerClient
	logger   *logger.Logger
	defaults *config.SearchDefaults

	streamTimeout time.Duration
	cancelTimeout time.Duration

	mu        sync.Mutex
	state     *session.State
	active    bool
	cancelled bool
	cancelRun context.CancelFunc
	body      io.ReadCloser
	startedAt time.Time

	subMu       sync.RWMutex
	subscribers map[string]*Subscriber
}

// NewController wires a controller from config. The producer client is an
// interface so tests can substitute a scripted stream.
func NewController(client ProducerClient, cfg *config.Config, log *logger.Logger) *Controller {
	return &Controller{
		client:        client,
		logger:        log.WithComponent("search-controller"),
		defaults:      cfg.SearchDefaults,
		streamTimeout: cfg.ProducerStreamTimeout,
		cancelTimeout: cfg.ProducerCancelTimeout,
		state:         session.New(""),
		subscribers:   make(map[string]*Subscriber),
	}
}

// Start submits a search. It acquires the exclusive run guard, spawns the
// stream-reading goroutine and returns the new run's id immediately; the
// run's progress flows to subscribers as snapshots.
//
// Returns ErrSearchActive when a run is already in flight, or a validation
// error for a bad request. The guard is only taken once the request has
// validated, so a rejected submission never blocks a later one.
func (c *Controller) Start(req Request) (string, error) {
	req.ApplyDefaults(c.defaults)
	if err := req.Validate(); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return "", ErrSearchActive
	}
	searchID := uuid.NewString()
	runCtx, cancel := context.WithTimeout(context.Background(), c.streamTimeout)
	c.active = true
	c.cancelled = false
	c.cancelRun = cancel
	c.body = nil
	c.startedAt = time.Now()
	c.state = session.New(searchID)
	c.state.Phase = session.PhaseScraping
	snap := c.state.Snapshot()
	c.mu.Unlock()

	runsStartedTotal.Inc()
	c.broadcast(snap)

	go c.run(runCtx, req, searchID)
	return searchID, nil
}

// run is the single goroutine that consumes one producer stream.
func (c *Controller) run(ctx context.Context, req Request, searchID string) {
	log := c.logger.WithContext(logger.WithSearchID(context.Background(), searchID))
	log.Info("starting search run",
		"query", req.Query,
		"zip_code", req.ZipCode,
		"radius", req.Radius)

	body, err := c.client.StartStream(ctx, req)
	if err != nil {
		c.finishRun(searchID, err, log)
		return
	}

	c.mu.Lock()
	if c.cancelled || c.state.SearchID != searchID {
		// Cancelled between Start and the stream opening.
		c.mu.Unlock()
		body.Close()
		return
	}
	c.body = body
	c.mu.Unlock()

	reader := streaming.NewReader(body, log)
	err = reader.Run(ctx, func(event streaming.Event) error {
		return c.handleEvent(searchID, event)
	})
	body.Close()
	c.finishRun(searchID, err, log)
}

// handleEvent folds one event into the session under the lock and fans the
// resulting snapshot out. Returning ErrStop ends the read loop once the
// session is terminal; trailing producer lines are then irrelevant.
//
// The event is bound to the run that read it: a chunk the transport
// delivered concurrently with Cancel, or a reader outliving its run, must
// never touch the reset session or a newer run's state.
func (c *Controller) handleEvent(searchID string, event streaming.Event) error {
	c.mu.Lock()
	if c.cancelled || c.state.SearchID != searchID {
		c.mu.Unlock()
		droppedEventsTotal.Inc()
		return streaming.ErrStop
	}
	wasTerminal := c.state.Phase.Terminal()
	changed := c.state.Apply(event)
	terminal := c.state.Phase.Terminal()
	var snap session.Snapshot
	if changed {
		snap = c.state.Snapshot()
	}
	c.mu.Unlock()

	if wasTerminal {
		droppedEventsTotal.Inc()
		return streaming.ErrStop
	}
	eventsTotal.WithLabelValues(string(event.Kind())).Inc()

	if changed {
		c.broadcast(snap)
	}
	if terminal {
		return streaming.ErrStop
	}
	return nil
}

// finishRun settles the session once the read loop exits. Cancellation is
// already fully handled by Cancel; everything else maps onto the terminal
// phase the events produced, or a generic error when the stream died short
// of one.
func (c *Controller) finishRun(searchID string, runErr error, log *logger.Logger) {
	c.mu.Lock()
	if c.cancelled || c.state.SearchID != searchID {
		c.mu.Unlock()
		return
	}

	terminal := c.state.Phase.Terminal()
	if !terminal {
		// The stream ended without a terminal event: transport failure,
		// undecodable line, or run timeout.
		msg := "search stream ended unexpectedly"
		if runErr != nil {
			msg = runErr.Error()
		}
		c.failLocked(msg)
	}
	phase := c.state.Phase
	snap := c.state.Snapshot()
	elapsed := time.Since(c.startedAt)
	cancel := c.cancelRun
	c.active = false
	c.body = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	runDurationSeconds.Observe(elapsed.Seconds())
	switch phase {
	case session.PhaseDone:
		runsCompletedTotal.Inc()
		log.Info("search run completed", "elapsed", elapsed.String())
	case session.PhaseError:
		runsFailedTotal.Inc()
		if runErr != nil {
			log.Error("search run failed", "error", runErr, "elapsed", elapsed.String())
		} else {
			log.Warn("search run ended in error phase", "elapsed", elapsed.String())
		}
	}
	if !terminal {
		c.broadcast(snap)
	}
}

// failLocked moves the session to the generic error phase. Caller holds mu.
func (c *Controller) failLocked(message string) {
	c.state.Phase = session.PhaseError
	c.state.ErrorKind = session.ErrorKindGeneric
	c.state.ErrorMessage = message
	c.state.CurrentItem = nil
}

// Cancel stops the active run: it marks the session cancelled, tears down
// the stream read, notifies the producer in the background, and resets the
// controller to the idle pre-search state.
//
// Idempotent: with no run in flight, or when called again for the same run,
// it does nothing and notifies the producer at most once per run.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if !c.active || c.cancelled {
		c.mu.Unlock()
		return
	}
	c.cancelled = true
	cancel := c.cancelRun
	body := c.body
	searchID := c.state.SearchID
	elapsed := time.Since(c.startedAt)

	c.state.MarkCancelled()
	c.state = session.New("")
	idle := c.state.Snapshot()
	c.active = false
	c.body = nil
	c.mu.Unlock()

	// Unblock the reader goroutine: context first, then the body close for
	// a read already sitting in the kernel.
	if cancel != nil {
		cancel()
	}
	if body != nil {
		body.Close()
	}

	// Fire-and-forget: the user is already back at the form, the producer
	// notification must never delay or fail that.
	go func() {
		ctx, done := context.WithTimeout(context.Background(), c.cancelTimeout)
		defer done()
		if err := c.client.NotifyCancel(ctx); err != nil {
			c.logger.Warn("producer cancel notification failed", "error", err)
		}
	}()

	runsCancelledTotal.Inc()
	runDurationSeconds.Observe(elapsed.Seconds())
	c.logger.Info("search run cancelled", "search_id", searchID, "elapsed", elapsed.String())
	c.broadcast(idle)
}

// Snapshot returns the current session snapshot.
func (c *Controller) Snapshot() session.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Snapshot()
}

// Active reports whether a run currently holds the submission guard.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Subscribe registers a snapshot consumer and primes it with the current
// state so late joiners render immediately. The subscriber detaches when
// ctx ends or Close is called; Unsubscribe removes it from the fanout set.
func (c *Controller) Subscribe(ctx context.Context) *Subscriber {
	sub := newSubscriber(ctx)

	c.subMu.Lock()
	c.subscribers[sub.ID] = sub
	c.subMu.Unlock()
	subscribersGauge.Inc()

	sub.Send(c.Snapshot())
	return sub
}

// Unsubscribe detaches and forgets a subscriber.
func (c *Controller) Unsubscribe(id string) {
	c.subMu.Lock()
	sub, ok := c.subscribers[id]
	if ok {
		delete(c.subscribers, id)
	}
	c.subMu.Unlock()

	if ok {
		sub.Close()
		subscribersGauge.Dec()
	}
}

func (c *Controller) broadcast(snap session.Snapshot) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, sub := range c.subscribers {
		if !sub.Send(snap) {
			c.logger.Debug("subscriber missed snapshot", "subscriber_id", sub.ID)
		}
	}
}
