package discovery

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
	"github.com/baechuer/cityevents/services/discovery-service/internal/logger"
	"github.com/baechuer/cityevents/services/discovery-service/internal/query"
)

const relatedLimit = 12

type DetailsView struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Date        string      `json:"date,omitempty"`
	Venue       string      `json:"venue,omitempty"`
	Image       string      `json:"image,omitempty"`
	Description string      `json:"description"`
	BuyURL      string      `json:"buyUrl,omitempty"`
	Related     []EventCard `json:"related"`
}

// Details loads one event plus a row of related events. A failing related
// lookup leaves Related empty instead of failing the page.
func (s *Service) Details(ctx context.Context, id string) (*DetailsView, error) {
	if id == "" {
		return nil, domain.ErrValidation("event id is required")
	}

	e, err := s.src.GetEvent(ctx, id)
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) && appErr.Code == domain.CodeNotFound {
			return nil, &domain.AppError{Code: domain.CodeNotFound, Message: "Event not found", Err: err}
		}
		return nil, err
	}

	view := &DetailsView{
		ID:          id,
		Title:       e.Name,
		Date:        longDate(e.Dates.Start),
		Venue:       detailsVenueLine(e.FirstVenue()),
		Image:       pickImage(e.Images, cardImage),
		Description: description(*e),
		BuyURL:      e.URL,
		Related:     []EventCard{},
	}

	related, err := s.related(ctx, id, *e)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", id).Msg("related_events_failed")
		return view, nil
	}
	view.Related = newRelatedCards(related)
	return view, nil
}

func (s *Service) related(ctx context.Context, id string, e domain.Event) ([]domain.Event, error) {
	q := url.Values{}
	q.Set("countryCode", query.CountryCode)
	q.Set("size", strconv.Itoa(relatedLimit))

	a := e.FirstAttraction()
	switch {
	case a != nil && a.ID != "":
		q.Set("attractionId", a.ID)
		q.Set("sort", "date,asc")
	default:
		keyword := e.Name
		if a != nil && a.Name != "" {
			keyword = a.Name
		}
		if keyword == "" {
			return nil, nil
		}
		q.Set("keyword", keyword)
		q.Set("sort", query.SortRelevant)
	}

	res, err := s.src.SearchEvents(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Event, 0, relatedLimit)
	for _, ev := range res.Events() {
		if ev.ID == id {
			continue
		}
		out = append(out, ev)
		if len(out) == relatedLimit {
			break
		}
	}
	return out, nil
}

func description(e domain.Event) string {
	switch {
	case e.Info != "":
		return e.Info
	case e.PleaseNote != "":
		return e.PleaseNote
	default:
		return NoDescription
	}
}
