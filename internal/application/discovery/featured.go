package discovery

import (
	"context"
	"net/url"
	"strconv"

	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
	"github.com/baechuer/cityevents/services/discovery-service/internal/query"
)

const featuredPoolSize = 200

// HeroView is the full-bleed featured event on the landing page.
type HeroView struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Image        string `json:"image,omitempty"`
	LocationLine string `json:"locationLine,omitempty"`
	DetailsPath  string `json:"detailsPath"`
}

// Featured picks one event at random from a random relevance page.
func (s *Service) Featured(ctx context.Context) (*HeroView, error) {
	q := url.Values{}
	q.Set("countryCode", query.CountryCode)
	q.Set("size", strconv.Itoa(featuredPoolSize))
	q.Set("sort", query.SortRelevant)
	q.Set("page", strconv.Itoa(s.rnd.IntN(randomPages)))
	q.Set("locale", "*")

	res, err := s.src.SearchEvents(ctx, q)
	if err != nil {
		return nil, err
	}
	events := res.Events()
	if len(events) == 0 {
		return nil, domain.ErrNotFound("No events found.")
	}

	e := events[s.rnd.IntN(len(events))]
	return &HeroView{
		ID:           e.ID,
		Name:         e.Name,
		URL:          e.URL,
		Image:        pickImage(e.Images, heroImage),
		LocationLine: heroLocationLine(e),
		DetailsPath:  detailsPath(e.ID),
	}, nil
}
