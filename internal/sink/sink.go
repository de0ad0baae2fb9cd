// Package sink renders sampling frames: console text, JSON lines, a live
// terminal dashboard and a chart image.
package sink

import (
	"context"
	"errors"

	"github.com/monify-labs/telemon/pkg/models"
)

// Sink is the interface for presenting one frame per tick
type Sink interface {
	// Present renders frame. Frames are owned by the caller for the duration
	// of the call only; sinks that keep one must copy it.
	Present(ctx context.Context, frame *models.Frame) error

	// Close flushes the sink and releases resources
	Close() error
}

// Multi fans every frame out to each sink in order
type Multi []Sink

// Present presents frame to every sink. All sinks are tried; errors are joined.
func (m Multi) Present(ctx context.Context, frame *models.Frame) error {
	var errs []error
	for _, s := range m {
		if err := s.Present(ctx, frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
