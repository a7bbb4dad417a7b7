package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/codekids/quiz-backend/internal/quiz"
)

// ErrNotConfigured is returned when no export destination is set up.
var ErrNotConfigured = errors.New("export destination not configured")

// Exporter delivers one completed result to an external destination. nil means delivered.
type Exporter interface {
	Name() string
	Export(ctx context.Context, sessionID uuid.UUID, result quiz.Result) error
}

// Multi fans a result out to every configured exporter and fails if any of them fails.
type Multi struct {
	exporters []Exporter
}

// NewMulti skips nil exporters.
func NewMulti(exporters ...Exporter) *Multi {
	m := &Multi{}
	for _, e := range exporters {
		if e != nil {
			m.exporters = append(m.exporters, e)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of destinations.
func (m *Multi) Len() int { return len(m.exporters) }

// Delivery is the outcome of one destination for one result.
type Delivery struct {
	Destination string
	Err         error
}

// Deliver runs every exporter whose name is not in done, even after a failure, and reports
// each outcome in order. Retries pass the destinations that already succeeded as done.
func (m *Multi) Deliver(ctx context.Context, sessionID uuid.UUID, result quiz.Result, done []string) []Delivery {
	skip := make(map[string]bool, len(done))
	for _, name := range done {
		skip[name] = true
	}
	var out []Delivery
	for _, e := range m.exporters {
		if skip[e.Name()] {
			continue
		}
		out = append(out, Delivery{Destination: e.Name(), Err: e.Export(ctx, sessionID, result)})
	}
	return out
}

// Export runs every exporter even after a failure.
func (m *Multi) Export(ctx context.Context, sessionID uuid.UUID, result quiz.Result) error {
	if len(m.exporters) == 0 {
		return ErrNotConfigured
	}
	return JoinFailures(m.Deliver(ctx, sessionID, result, nil))
}

// JoinFailures combines the failed deliveries into one error, nil when all succeeded.
func JoinFailures(deliveries []Delivery) error {
	var errs []error
	for _, d := range deliveries {
		if d.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Destination, d.Err))
		}
	}
	return errors.Join(errs...)
}
