// Package scan assembles the per-packet sample stream into whole
// rotations. The LD06 has no index pulse; a rotation boundary is inferred
// from the interpolated angles wrapping past 0°.
package scan

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arcline-data/lidard/internal/ld06"
	"github.com/arcline-data/lidard/internal/timeutil"
)

const (
	// wrapHighDeg and wrapLowDeg bracket the 0° crossing: a sample below
	// wrapLowDeg following one above wrapHighDeg marks a candidate
	// rotation boundary.
	wrapHighDeg = 350.0
	wrapLowDeg  = 10.0

	// minCoverageDeg is the angular travel a buffered rotation must have
	// accumulated before a boundary completes it. Partial rotations
	// (start-up, dropped chunks) are discarded rather than emitted.
	minCoverageDeg = 340.0

	// maxRotationSamples bounds buffer growth when the angle stream never
	// wraps (stalled motor reporting a frozen angle).
	maxRotationSamples = 8192

	// rotationQueueDepth is the completed-rotation handoff buffer. The
	// consumer (persistence, live streaming) falling behind costs whole
	// rotations, not samples.
	rotationQueueDepth = 8
)

// Rotation is one full revolution of assembled samples.
type Rotation struct {
	ID          uuid.UUID     `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Samples     []ld06.Sample `json:"samples"`
	Summary     Summary       `json:"summary"`
}

// Config controls Assembler construction.
type Config struct {
	// OnRotation is invoked for every completed rotation from a worker
	// goroutine started by Start. Optional.
	OnRotation func(*Rotation)

	// Clock supplies timestamps; defaults to the wall clock.
	Clock timeutil.Clock
}

// Assembler accumulates decoded samples and cuts them into rotations at
// the 0° crossing. Add is safe for a single producer; the completion
// callback runs on a separate worker so slow consumers never stall the
// decode path.
type Assembler struct {
	mu        sync.Mutex
	clock     timeutil.Clock
	current   []ld06.Sample
	startedAt time.Time
	lastAngle float64
	coverage  float64
	haveLast  bool

	onRotation func(*Rotation)
	rotations  chan *Rotation

	completed int64
	discarded int64
	dropped   int64
}

// NewAssembler creates an Assembler with the given configuration.
func NewAssembler(cfg Config) *Assembler {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Assembler{
		clock:      clock,
		onRotation: cfg.OnRotation,
		rotations:  make(chan *Rotation, rotationQueueDepth),
	}
}

// Start launches the callback worker. It returns immediately; the worker
// exits when the context is cancelled.
func (a *Assembler) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case rot := <-a.rotations:
				if a.onRotation != nil {
					a.onRotation(rot)
				}
			}
		}
	}()
}

// Add feeds decoded samples into the current rotation. Samples arrive in
// packet order with monotonically increasing angles modulo the wrap.
func (a *Assembler) Add(samples []ld06.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range samples {
		if a.haveLast && a.lastAngle > wrapHighDeg && s.Angle < wrapLowDeg {
			a.completeLocked()
		}

		if len(a.current) == 0 {
			a.startedAt = a.clock.Now()
		}
		if a.haveLast {
			delta := s.Angle - a.lastAngle
			if delta < 0 {
				delta += 360.0
			}
			a.coverage += delta
		}
		a.current = append(a.current, s)
		a.lastAngle = s.Angle
		a.haveLast = true

		if len(a.current) > maxRotationSamples {
			log.Printf("scan: discarding oversized rotation buffer (%d samples, %.1f° coverage)",
				len(a.current), a.coverage)
			a.resetLocked()
		}
	}
}

// completeLocked finalizes the buffered rotation if it covers enough of
// the circle, then resets for the next one. Caller holds a.mu.
func (a *Assembler) completeLocked() {
	if a.coverage < minCoverageDeg {
		if len(a.current) > 0 {
			a.discarded++
		}
		a.resetLocked()
		return
	}

	samples := make([]ld06.Sample, len(a.current))
	copy(samples, a.current)
	rot := &Rotation{
		ID:          uuid.New(),
		StartedAt:   a.startedAt,
		CompletedAt: a.clock.Now(),
		Samples:     samples,
		Summary:     Summarize(samples, a.coverage),
	}
	a.resetLocked()
	a.completed++

	select {
	case a.rotations <- rot:
	default:
		// consumer is behind; losing a rotation beats stalling decode
		a.dropped++
	}
}

func (a *Assembler) resetLocked() {
	a.current = a.current[:0]
	a.coverage = 0
	a.haveLast = false
}

// Counts returns the number of rotations completed, discarded as partial,
// and dropped on a full queue since construction.
func (a *Assembler) Counts() (completed, discarded, dropped int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed, a.discarded, a.dropped
}

// Pending returns the number of samples buffered in the rotation under
// assembly.
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.current)
}
