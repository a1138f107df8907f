package discovery

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
	"github.com/baechuer/cityevents/services/discovery-service/internal/geo"
	"github.com/baechuer/cityevents/services/discovery-service/internal/query"
)

const (
	shortDateLayout = "Jan 2, 2006"
	longDateLayout  = "Monday, January 2, 2006"

	// DetailsFallbackPath is where cards for id-less events link to.
	DetailsFallbackPath = "/eventdetails"

	NoDescription = "No description available for this event."
)

// Minimum image sizes per surface.
var (
	cardImage    = imageSpec{minWidth: 1000, minHeight: 500}
	heroImage    = imageSpec{minWidth: 1200, minHeight: 600}
	relatedImage = imageSpec{minWidth: 800, minHeight: 450}
)

type imageSpec struct {
	minWidth  int
	minHeight int
}

// EventCard is the tile shown in the carousel, search grid and related row.
type EventCard struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Image       string `json:"image,omitempty"`
	Venue       string `json:"venue,omitempty"`
	Date        string `json:"date,omitempty"`
	DetailsPath string `json:"detailsPath"`
}

func NewEventCard(e domain.Event) EventCard {
	return newEventCard(e, cardImage)
}

func newEventCard(e domain.Event, img imageSpec) EventCard {
	return EventCard{
		ID:          e.ID,
		Name:        e.Name,
		URL:         e.URL,
		Image:       pickImage(e.Images, img),
		Venue:       cardVenueLine(e.FirstVenue()),
		Date:        shortDate(e.Dates.Start.LocalDate),
		DetailsPath: detailsPath(e.ID),
	}
}

func NewEventCards(events []domain.Event) []EventCard {
	return newEventCards(events, cardImage)
}

// newRelatedCards shapes the smaller tiles of the details page's related row.
func newRelatedCards(events []domain.Event) []EventCard {
	return newEventCards(events, relatedImage)
}

func newEventCards(events []domain.Event, img imageSpec) []EventCard {
	cards := make([]EventCard, 0, len(events))
	for _, e := range events {
		cards = append(cards, newEventCard(e, img))
	}
	return cards
}

// pickImage returns the widest image meeting the minimum size, else the first image.
func pickImage(images []domain.Image, spec imageSpec) string {
	if len(images) == 0 {
		return ""
	}
	large := make([]domain.Image, 0, len(images))
	for _, img := range images {
		if img.Width >= spec.minWidth && img.Height >= spec.minHeight {
			large = append(large, img)
		}
	}
	if len(large) > 0 {
		sort.SliceStable(large, func(i, j int) bool { return large[i].Width > large[j].Width })
		if large[0].URL != "" {
			return large[0].URL
		}
	}
	return images[0].URL
}

// cityState renders "City, ST", or just the city when the state is unknown.
func cityState(v *domain.Venue) string {
	city, st := v.CityName(), v.StateCode()
	if city != "" && st != "" {
		return city + ", " + st
	}
	return city
}

// cardVenueLine renders "Venue • City, ST".
func cardVenueLine(v *domain.Venue) string {
	if v == nil {
		return ""
	}
	return joinNonEmpty(" • ", v.Name, cityState(v))
}

// detailsVenueLine renders "Venue, City, ST".
func detailsVenueLine(v *domain.Venue) string {
	if v == nil {
		return ""
	}
	return joinNonEmpty(", ", v.Name, cityState(v))
}

// heroLocationLine renders "Mar 1, 2025 • Venue • City, ST".
func heroLocationLine(e domain.Event) string {
	v := e.FirstVenue()
	var name string
	if v != nil {
		name = v.Name
	}
	place := joinNonEmpty(", ", v.CityName(), v.StateCode())
	return joinNonEmpty(" • ", shortDate(e.Dates.Start.LocalDate), name, place)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// shortDate formats a YYYY-MM-DD local date as "Mar 1, 2025". Unparseable input is returned as-is.
func shortDate(localDate string) string {
	if localDate == "" {
		return ""
	}
	d, err := time.Parse("2006-01-02", localDate)
	if err != nil {
		return localDate
	}
	return d.Format(shortDateLayout)
}

// longDate formats the event day as "Saturday, October 12, 2025".
// The venue-local date is preferred over the UTC instant.
func longDate(start domain.DateStart) string {
	if start.LocalDate != "" {
		if d, err := time.Parse("2006-01-02", start.LocalDate); err == nil {
			return d.Format(longDateLayout)
		}
	}
	if start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, start.DateTime); err == nil {
			return t.UTC().Format(longDateLayout)
		}
		return start.DateTime
	}
	return start.LocalDate
}

func detailsPath(id string) string {
	if id == "" {
		return DetailsFallbackPath
	}
	return "/event/" + url.PathEscape(id)
}

// searchTitle is the results heading.
func searchTitle(s query.Search) string {
	switch {
	case s.Keyword != "":
		return "Results for “" + s.Keyword + "”"
	case s.Location != "" || s.Dates != nil:
		return "Results"
	default:
		return "Search"
	}
}

func locationChip(loc string) string {
	switch {
	case loc == "":
		return ""
	case geo.IsZip(loc):
		return "ZIP: " + loc
	default:
		return "City: " + loc
	}
}

// datesChip renders "Mar 1, 2025 – Mar 5, 2025".
func datesChip(r *query.DateRange) string {
	if r == nil {
		return ""
	}
	return r.Start.UTC().Format(shortDateLayout) + " – " + r.End.UTC().Format(shortDateLayout)
}
