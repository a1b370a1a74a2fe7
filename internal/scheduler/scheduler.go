package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"golang.org/x/sync/errgroup"

	"github.com/hazz-dev/healthwatch/internal/checker"
	"github.com/hazz-dev/healthwatch/internal/config"
	"github.com/hazz-dev/healthwatch/internal/state"
)

// ErrRoundInProgress is returned by RunRound when another round has not
// finished yet. The caller's round is skipped, not queued.
var ErrRoundInProgress = errors.New("round already in progress")

// Store defines the state operations required by the scheduler.
type Store interface {
	Targets() []config.Target
	Apply(name string, res checker.Result, at time.Time) (prev, next state.Record, err error)
}

// Event describes one applied probe result.
type Event struct {
	RoundID  string
	Target   config.Target
	Result   checker.Result
	Previous state.Record
	Current  state.Record
}

// RoundSummary describes a finished round.
type RoundSummary struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Up       int
	Down     int
}

// Duration is the wall-clock length of the round.
func (r RoundSummary) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Scheduler probes every target once per round and records the results.
type Scheduler struct {
	store    Store
	checker  checker.Checker
	interval time.Duration
	clk      clock.Clock
	logger   *slog.Logger

	onResult []func(Event)
	onRound  []func(RoundSummary)
	// idle runs each time the loop starts waiting for the next round.
	idle func()

	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a new Scheduler. Pass nil logger to use the default logger.
func New(store Store, c checker.Checker, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		checker:  c,
		interval: interval,
		clk:      clock.New(),
		logger:   logger,
	}
}

// SetClock replaces the clock used to timestamp results and to time the
// interval between rounds.
func (s *Scheduler) SetClock(clk clock.Clock) {
	s.clk = clk
}

// OnResult registers a callback invoked after each result is applied.
// Callbacks run on the probe goroutine and may be called concurrently for
// different targets. Register before Start.
func (s *Scheduler) OnResult(fn func(Event)) {
	s.onResult = append(s.onResult, fn)
}

// OnRound registers a callback invoked after each completed round.
func (s *Scheduler) OnRound(fn func(RoundSummary)) {
	s.onRound = append(s.onRound, fn)
}

// Start runs the first round immediately and then one round per interval,
// measured from the end of the previous round. It is non-blocking; the
// loop stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the loop started by Start has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := s.RunRound(ctx); err != nil {
			if errors.Is(err, ErrRoundInProgress) {
				s.logger.Warn("round skipped", "reason", err)
			} else if !errors.Is(err, context.Canceled) {
				s.logger.Error("running round", "error", err)
			}
		}

		// Armed only once the round has returned.
		timer := s.clk.NewTimer(s.interval)
		if s.idle != nil {
			s.idle()
		}
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunRound probes all targets concurrently and waits for every probe to
// finish. Each result is applied to the store as soon as its probe
// completes. A failing probe never affects the others. Results of probes
// aborted because ctx was cancelled are discarded.
func (s *Scheduler) RunRound(ctx context.Context) (RoundSummary, error) {
	if err := ctx.Err(); err != nil {
		return RoundSummary{}, err
	}
	if !s.running.CompareAndSwap(false, true) {
		return RoundSummary{}, ErrRoundInProgress
	}
	defer s.running.Store(false)

	summary := RoundSummary{
		ID:      uuid.NewString(),
		Started: s.clk.Now(),
	}
	logger := s.logger.With("round_id", summary.ID)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, target := range s.store.Targets() {
		g.Go(func() error {
			res := s.probe(ctx, target)
			if ctx.Err() != nil {
				return nil
			}

			prev, next, err := s.store.Apply(target.Name, res, s.clk.Now())
			if err != nil {
				logger.Error("recording result", "target", target.Name, "error", err)
				return nil
			}

			logger.Info("check result",
				"target", target.Name,
				"status", res.Status(),
				"status_code", res.StatusCode,
				"response_time", res.Latency,
				"error", res.Error,
			)

			mu.Lock()
			if res.Success {
				summary.Up++
			} else {
				summary.Down++
			}
			mu.Unlock()

			ev := Event{RoundID: summary.ID, Target: target, Result: res, Previous: prev, Current: next}
			for _, fn := range s.onResult {
				fn(ev)
			}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return RoundSummary{}, err
	}

	summary.Finished = s.clk.Now()
	logger.Info("round complete", "up", summary.Up, "down", summary.Down, "duration", summary.Duration())
	for _, fn := range s.onRound {
		fn(summary)
	}
	return summary, nil
}

// probe runs the checker and turns a panic into a failed result.
func (s *Scheduler) probe(ctx context.Context, target config.Target) (res checker.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("checker panicked", "target", target.Name, "panic", r)
			res = checker.Result{Target: target.Name, Error: fmt.Sprintf("checker panic: %v", r)}
		}
	}()
	return s.checker.Check(ctx, target)
}
