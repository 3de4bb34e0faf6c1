//go:build !linux

package paddle

import (
	"context"

	"keyerd/internal/logging"
)

// EvdevSource is only implemented on Linux.
type EvdevSource struct{}

// EvdevOption configures an EvdevSource.
type EvdevOption func(*EvdevSource)

// WithGrab is a no-op outside Linux.
func WithGrab() EvdevOption { return func(*EvdevSource) {} }

// WithLogger is a no-op outside Linux.
func WithLogger(*logging.Logger) EvdevOption { return func(*EvdevSource) {} }

// NewEvdevSource returns ErrNotAvailable.
func NewEvdevSource(path string, m Mapping, opts ...EvdevOption) (*EvdevSource, error) {
	return nil, ErrNotAvailable
}

func (s *EvdevSource) Events() <-chan Event            { return nil }
func (s *EvdevSource) Start(ctx context.Context) error { return ErrNotAvailable }
func (s *EvdevSource) Stop() error                     { return nil }
