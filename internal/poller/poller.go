// Package poller runs the board refresh periodically for as long as someone is watching.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrAlreadyRunning is returned by Start when the poller is running
var ErrAlreadyRunning = errors.New("poller already running")

// Task is the work performed on every tick
type Task func(ctx context.Context) error

// Poller runs a task immediately and then once per interval until stopped
type Poller struct {
	interval time.Duration
	task     Task
	log      logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a poller. Failures of task are logged and do not stop the loop.
func New(interval time.Duration, task Task, log logrus.FieldLogger) *Poller {
	return &Poller{
		interval: interval,
		task:     task,
		log:      log,
	}
}

// Start launches the polling loop. It runs until ctx is done or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.run(ctx, done)

	p.log.WithField("interval", p.interval.String()).Info("Polling started")
	return nil
}

// Stop cancels the polling loop and waits for an in-flight task to return.
// Stopping a poller that is not running is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.log.Info("Polling stopped")
}

// Running reports whether the polling loop is active
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if err := p.task(ctx); err != nil && ctx.Err() == nil {
		p.log.WithError(err).Warn("Polling task failed")
	}
}

// Shared binds a poller to the number of viewers interested in its results.
// The first Acquire starts the poller and the last Release stops it.
type Shared struct {
	poller *Poller
	base   context.Context

	mu      sync.Mutex
	viewers int
}

// NewShared wraps poller. base bounds the poller's lifetime independently of any viewer.
func NewShared(base context.Context, poller *Poller) *Shared {
	return &Shared{poller: poller, base: base}
}

// Acquire registers a viewer
func (s *Shared) Acquire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewers++
	if s.viewers == 1 {
		if err := s.poller.Start(s.base); err != nil {
			s.poller.log.WithError(err).Debug("Poller was started elsewhere")
		}
	}
}

// Release unregisters a viewer
func (s *Shared) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.viewers == 0 {
		return
	}
	s.viewers--
	if s.viewers == 0 {
		s.poller.Stop()
	}
}

// Viewers returns the number of registered viewers
func (s *Shared) Viewers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewers
}
