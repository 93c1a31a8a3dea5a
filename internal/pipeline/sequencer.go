package pipeline

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/quantafons/bus-telemetry/internal/models"
)

// ErrShuttingDown is returned to callers whose sample arrives after the
// intake has been closed.
var ErrShuttingDown = errors.New("telemetry intake is shutting down")

type job struct {
	ctx     context.Context
	vehicle *models.Vehicle
	sample  *models.TelemetrySample
	reply   chan error
}

// Sequencer serializes sample processing per vehicle while letting distinct
// vehicles proceed in parallel. Each lane is a single-consumer goroutine
// owning a buffered channel; a vehicle always hashes to the same lane, so
// its samples are handled one at a time in arrival order and the
// read-previous-then-classify step can never race.
type Sequencer struct {
	lanes   []chan *job
	process func(*job)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewSequencer starts laneCount lanes feeding the given processing function.
func NewSequencer(laneCount, laneBuffer int, process func(*job)) *Sequencer {
	if laneCount < 1 {
		laneCount = 1
	}
	s := &Sequencer{
		lanes:   make([]chan *job, laneCount),
		process: process,
	}
	for i := range s.lanes {
		ch := make(chan *job, laneBuffer)
		s.lanes[i] = ch
		s.wg.Add(1)
		go s.runLane(ch)
	}
	return s
}

func (s *Sequencer) runLane(ch <-chan *job) {
	defer s.wg.Done()
	for j := range ch {
		s.process(j)
	}
}

// Submit routes a job to its vehicle's lane and waits for the outcome, so
// the caller observes validation-independent failures (store errors)
// synchronously and can retry.
func (s *Sequencer) Submit(ctx context.Context, vehicle *models.Vehicle, sample *models.TelemetrySample) error {
	j := &job{
		ctx:     ctx,
		vehicle: vehicle,
		sample:  sample,
		reply:   make(chan error, 1),
	}

	// The read lock spans the send so Close cannot close a lane while a
	// submission is in flight.
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrShuttingDown
	}
	lane := s.lanes[s.laneFor(sample.VehicleID)]
	select {
	case lane <- j:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-j.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sequencer) laneFor(vehicleID string) int {
	h := fnv.New32a()
	h.Write([]byte(vehicleID))
	return int(h.Sum32() % uint32(len(s.lanes)))
}

// Close stops the intake and waits for lanes to drain their queued jobs, so
// no sample is abandoned mid-processing on shutdown.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, ch := range s.lanes {
		close(ch)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
