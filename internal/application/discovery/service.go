package discovery

import (
	"context"
	"net/url"

	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
	"github.com/baechuer/cityevents/services/discovery-service/internal/query"
)

// EventSource is the upstream catalogue. The ticketmaster client implements it.
type EventSource interface {
	SearchEvents(ctx context.Context, q url.Values) (*domain.EventPage, error)
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
}

// Pages 0..randomPages-1 are sampled so reloads show different events.
const randomPages = 5

type Service struct {
	src     EventSource
	builder *query.Builder
	rnd     Rand
}

// NewService wires the view services. rnd nil uses math/rand/v2; a shared
// Service needs a rnd that is safe for concurrent use.
func NewService(src EventSource, builder *query.Builder, rnd Rand) *Service {
	if rnd == nil {
		rnd = globalRand{}
	}
	if builder == nil {
		builder = query.NewBuilder(nil)
	}
	return &Service{src: src, builder: builder, rnd: rnd}
}
