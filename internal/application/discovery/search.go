package discovery

import (
	"context"

	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
	"github.com/baechuer/cityevents/services/discovery-service/internal/query"
)

type SearchView struct {
	Title         string          `json:"title"`
	Events        []EventCard     `json:"events"`
	Page          domain.PageInfo `json:"page"`
	LocationChip  string          `json:"locationChip,omitempty"`
	DatesChip     string          `json:"datesChip,omitempty"`
	StartDateTime string          `json:"startDateTime,omitempty"`
	EndDateTime   string          `json:"endDateTime,omitempty"`
}

// Search runs one results page for the SPA's search state.
func (s *Service) Search(ctx context.Context, in query.Search) (*SearchView, error) {
	res, err := s.src.SearchEvents(ctx, s.builder.Build(ctx, in))
	if err != nil {
		return nil, err
	}

	view := &SearchView{
		Title:        searchTitle(in),
		Events:       NewEventCards(res.Events()),
		Page:         res.Info(in.Page),
		LocationChip: locationChip(in.Location),
		DatesChip:    datesChip(in.Dates),
	}
	if in.Dates != nil {
		view.StartDateTime = in.Dates.StartParam()
		view.EndDateTime = in.Dates.EndParam()
	}
	return view, nil
}
