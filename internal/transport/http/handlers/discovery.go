package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baechuer/cityevents/services/discovery-service/internal/application/discovery"
	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
	"github.com/baechuer/cityevents/services/discovery-service/internal/query"
	"github.com/baechuer/cityevents/services/discovery-service/internal/transport/http/response"
)

type DiscoveryHandler struct {
	svc *discovery.Service
}

func NewDiscoveryHandler(svc *discovery.Service) *DiscoveryHandler {
	return &DiscoveryHandler{svc: svc}
}

type eventsResp struct {
	Events []discovery.EventCard `json:"events"`
}

// Discover serves the curated carousel.
func (h *DiscoveryHandler) Discover(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Discover(r.Context())
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, eventsResp{Events: discovery.NewEventCards(events)})
}

func (h *DiscoveryHandler) Featured(w http.ResponseWriter, r *http.Request) {
	hero, err := h.svc.Featured(r.Context())
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, hero)
}

func (h *DiscoveryHandler) Search(w http.ResponseWriter, r *http.Request) {
	s, err := query.FromValues(r.URL.Query())
	if err != nil {
		if errors.Is(err, query.ErrInvalidPage) {
			response.Err(w, r, domain.ErrValidationMeta("invalid query param", map[string]string{
				"page": "must be an integer",
			}))
			return
		}
		response.Err(w, r, err)
		return
	}
	if err := validateQuery(s); err != nil {
		response.Err(w, r, err)
		return
	}

	view, err := h.svc.Search(r.Context(), s)
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, view)
}

func (h *DiscoveryHandler) Details(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Details(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, view)
}
