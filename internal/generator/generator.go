// Package generator produces the mock calendar served by the calendar service.
package generator

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/keycal/keycal/internal/domain"
)

const (
	MinEvents = 3
	MaxEvents = 6

	// Horizon bounds how far ahead of now an event may be scheduled.
	Horizon = 72 * time.Hour
)

// TaskNames is the set event titles are drawn from.
var TaskNames = []string{
	"Team meeting",
	"Doctor appointment",
	"Project review",
	"Client call",
	"One-on-one meeting",
	"Lunch with team",
	"Code review",
	"Product demo",
	"Client feedback session",
	"Design brainstorming",
}

// ErrGeneration matches any *GenerationError via errors.Is.
var ErrGeneration = errors.New("calendar event generation failed")

// GenerationError reports that a batch could not be completed.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("Error occurred while generating calendar events: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}

// Rand is the randomness provider used by the Generator.
// IntN returns a value in [0, n).
type Rand interface {
	IntN(n int) (int, error)
}

// Generator builds randomized, time-ordered event batches.
type Generator struct {
	rand  Rand
	clock func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces time.Now as the reference for "now".
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// New creates a Generator drawing from r.
func New(r Rand, opts ...Option) *Generator {
	g := &Generator{
		rand:  r,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type draft struct {
	title string
	at    time.Time
}

// Generate returns between MinEvents and MaxEvents events scheduled within
// Horizon of now, rounded to quarter hours, sorted by time and numbered
// from 1. On failure no events are returned.
func (g *Generator) Generate() ([]domain.Event, error) {
	slog.Info("generating calendar events")

	n, err := g.intN(MaxEvents - MinEvents + 1)
	if err != nil {
		return nil, &GenerationError{Err: fmt.Errorf("draw event count: %w", err)}
	}
	count := MinEvents + n

	now := wallClock(g.clock())
	drafts := make([]draft, 0, count)
	for range count {
		ti, err := g.intN(len(TaskNames))
		if err != nil {
			return nil, &GenerationError{Err: fmt.Errorf("draw title: %w", err)}
		}
		offset, err := g.intN(int(Horizon / time.Minute))
		if err != nil {
			return nil, &GenerationError{Err: fmt.Errorf("draw offset: %w", err)}
		}

		at := RoundToQuarterHour(now.Add(time.Duration(offset) * time.Minute))
		drafts = append(drafts, draft{title: TaskNames[ti], at: at})
		slog.Debug("created event", "title", TaskNames[ti], "time", at.Format(domain.TimeLayout))
	}

	slices.SortStableFunc(drafts, func(a, b draft) int {
		return a.at.Compare(b.at)
	})

	events := make([]domain.Event, len(drafts))
	for i, d := range drafts {
		events[i] = domain.Event{
			ID:    int64(i + 1),
			Title: d.title,
			Time:  domain.NewLocalTime(d.at),
		}
	}

	slog.Info("generated calendar events", "count", len(events))
	return events, nil
}

// intN draws from the provider and rejects out-of-range values so a faulty
// source can never produce a malformed batch.
func (g *Generator) intN(n int) (int, error) {
	if g.rand == nil {
		return 0, errors.New("no random source configured")
	}
	v, err := g.rand.IntN(n)
	if err != nil {
		return 0, err
	}
	if v < 0 || v >= n {
		return 0, fmt.Errorf("random source returned %d outside [0, %d)", v, n)
	}
	return v, nil
}

// wallClock drops the zone from t, keeping its calendar fields to the
// minute. Offsets added to the result cannot land in a DST gap or fold.
func wallClock(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, _ := t.Clock()
	return time.Date(y, mo, d, h, mi, 0, 0, time.UTC)
}

// RoundToQuarterHour moves t to a quarter-hour boundary. Minutes 0-7 past a
// boundary round down and 8-14 round up; seconds are left as they are.
func RoundToQuarterHour(t time.Time) time.Time {
	m := t.Minute() % 15
	if m < 8 {
		return t.Add(-time.Duration(m) * time.Minute)
	}
	return t.Add(time.Duration(15-m) * time.Minute)
}
