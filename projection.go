package eventstore

import (
	"context"
	"fmt"
	"iter"

	"golang.org/x/sync/errgroup"
)

// EventReader represents a readable event log.
// This package offers EventStore as EventReader implementation
type EventReader interface {
	GetEvents(ctx context.Context, fromEventID int64, opts ...ReadOpt) iter.Seq2[Event, error]
}

// ProjectorOpt represents projector option
type ProjectorOpt func(*Projector)

// WithProjectorLogger sets the logger projection failures are reported to
func WithProjectorLogger(l Logger) ProjectorOpt {
	return func(p *Projector) {
		p.logger = l
	}
}

// NewProjector constructs a Projector
func NewProjector(r EventReader, opts ...ProjectorOpt) *Projector {
	p := Projector{
		reader: r,
		logger: NoOpLogger{},
	}

	for _, opt := range opts {
		opt(&p)
	}

	return &p
}

// Projector replays the event log to each individual projection.
// Every Run reads the events stored after the given event id once and
// feeds them to all projections concurrently. Each projection sees the
// events in id order
type Projector struct {
	reader      EventReader
	projections []Projection
	logger      Logger
}

// Projection represents a projection that should be able to handle
// projected events
type Projection func(Event) error

// Add effectively registers a projection with the projector
// Make sure to add all of your projections before calling Run
func (p *Projector) Add(projections ...Projection) {
	p.projections = append(p.projections, projections...)
}

// Run projects all events with id greater than fromEventID and returns the
// id of the last projected event, which is the fromEventID of the next Run.
// If any projection fails the run is stopped and the error returned
func (p *Projector) Run(ctx context.Context, fromEventID int64) (int64, error) {
	if len(p.projections) == 0 {
		return fromEventID, nil
	}

	g, ctx := errgroup.WithContext(ctx)

	feeds := make([]chan Event, len(p.projections))

	for i, projection := range p.projections {
		feeds[i] = make(chan Event, 64)

		g.Go(func() error {
			return p.project(ctx, i, projection, feeds[i])
		})
	}

	last := fromEventID

	g.Go(func() error {
		defer func() {
			for _, feed := range feeds {
				close(feed)
			}
		}()

		for evt, err := range p.reader.GetEvents(ctx, fromEventID) {
			if err != nil {
				return err
			}

			for _, feed := range feeds {
				select {
				case feed <- evt:
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			last = evt.ID
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fromEventID, err
	}

	return last, nil
}

func (p *Projector) project(ctx context.Context, i int, projection Projection, feed <-chan Event) error {
	for evt := range feed {
		if err := projection(evt); err != nil {
			p.logger.Error(ctx, "projection failed",
				"projection", i,
				"event_id", evt.ID,
				"error", err)

			return fmt.Errorf("projection %d failed on event %d: %w", i, evt.ID, err)
		}
	}

	return nil
}
