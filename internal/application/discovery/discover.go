package discovery

import (
	"context"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
	"github.com/baechuer/cityevents/services/discovery-service/internal/logger"
	"github.com/baechuer/cityevents/services/discovery-service/internal/query"
)

// Upstream classification names of the three carousel pools.
const (
	ClassMusic  = "Music"
	ClassSports = "Sports"
	ClassArts   = "Arts & Theatre"
)

// Discover fetches one random page of each pool concurrently and curates
// them. Any pool failure aborts the others and the result.
func (s *Service) Discover(ctx context.Context) ([]domain.Event, error) {
	page := s.rnd.IntN(randomPages)

	var pools Pools
	g, gctx := errgroup.WithContext(ctx)
	fetch := func(class string, dst *[]domain.Event) {
		g.Go(func() error {
			res, err := s.src.SearchEvents(gctx, poolQuery(class, page))
			if err != nil {
				return err
			}
			*dst = res.Events()
			return nil
		})
	}
	fetch(ClassMusic, &pools.Music)
	fetch(ClassSports, &pools.Sports)
	fetch(ClassArts, &pools.Arts)

	if err := g.Wait(); err != nil {
		// the parent context wins over a sibling's cancellation echo
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	curated := Curate(pools, s.rnd)
	logger.Ctx(ctx).Debug().
		Int("page", page).
		Int("music", len(pools.Music)).
		Int("sports", len(pools.Sports)).
		Int("arts", len(pools.Arts)).
		Int("curated", len(curated)).
		Msg("discover_curated")
	return curated, nil
}

func poolQuery(class string, page int) url.Values {
	q := url.Values{}
	q.Set("countryCode", query.CountryCode)
	q.Set("size", strconv.Itoa(query.PageSize))
	q.Set("sort", query.SortRelevant)
	q.Set("page", strconv.Itoa(page))
	q.Set("classificationName", class)
	return q
}
