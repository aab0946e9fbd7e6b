// Package poll provides the periodic-fetch primitive every client loop
// runs on: cancellable tasks keyed by resource, with jitter so client
// fleets don't align, and exponential backoff on consecutive failures.
package poll

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task runs one fetch. Returning an error backs the task off; the next
// success resets it. Tasks never overlap themselves: the next tick is
// scheduled only after the previous run returns.
type Task func(ctx context.Context) error

const (
	jitterFraction = 0.2
	maxBackoffMult = 8
)

type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]context.CancelFunc
	wg    sync.WaitGroup
	log   zerolog.Logger

	closed bool
}

func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		tasks: make(map[string]context.CancelFunc),
		log:   log,
	}
}

// Start runs task immediately and then on every interval. Starting a
// key that is already running replaces the old task, so a view that
// switches target can never leak the previous loop.
func (s *Scheduler) Start(key string, interval time.Duration, task Task) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if cancel, ok := s.tasks[key]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.tasks[key] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, key, interval, task)
}

// Stop cancels the task for key, if any.
func (s *Scheduler) Stop(key string) {
	s.mu.Lock()
	if cancel, ok := s.tasks[key]; ok {
		cancel()
		delete(s.tasks, key)
	}
	s.mu.Unlock()
}

// Running reports whether a task exists for key.
func (s *Scheduler) Running(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Close cancels every task and waits for the loops to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for key, cancel := range s.tasks {
		cancel()
		delete(s.tasks, key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, key string, interval time.Duration, task Task) {
	defer s.wg.Done()

	fails := 0
	for {
		if err := task(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			fails++
			s.log.Warn().Err(err).Str("task", key).Int("fails", fails).Msg("poll failed")
		} else {
			fails = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(NextDelay(interval, fails)):
		}
	}
}

// NextDelay is the wait before the next run: the base interval doubled
// per consecutive failure (capped), with ±20% jitter.
func NextDelay(interval time.Duration, fails int) time.Duration {
	d := interval
	mult := 1
	for i := 0; i < fails && mult < maxBackoffMult; i++ {
		mult *= 2
	}
	d *= time.Duration(mult)

	jitter := 1 + jitterFraction*(2*rand.Float64()-1)
	return time.Duration(float64(d) * jitter)
}
