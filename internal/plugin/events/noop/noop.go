package noop

import (
	"context"

	"github.com/chirino/social-service/internal/registry/events"
)

func init() {
	events.Register(events.Plugin{
		Name: "none",
		Loader: func(ctx context.Context) (events.Publisher, error) {
			return &noopPublisher{}, nil
		},
	})
}

type noopPublisher struct{}

func (n *noopPublisher) Publish(_ context.Context, _ events.Event) error { return nil }
func (n *noopPublisher) Close() error                                  { return nil }

var _ events.Publisher = (*noopPublisher)(nil)
