package domain

// Event mirrors the subset of a Ticketmaster Discovery event this service reads.
// Values are decoded once per request and never mutated afterwards.
type Event struct {
	ID              string           `json:"id,omitempty"`
	Name            string           `json:"name"`
	URL             string           `json:"url"`
	Info            string           `json:"info,omitempty"`
	PleaseNote      string           `json:"pleaseNote,omitempty"`
	Images          []Image          `json:"images,omitempty"`
	Dates           Dates            `json:"dates"`
	Classifications []Classification `json:"classifications,omitempty"`
	Embedded        *EventEmbedded   `json:"_embedded,omitempty"`
}

type Image struct {
	URL    string `json:"url"`
	Ratio  string `json:"ratio,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Dates struct {
	Start DateStart `json:"start"`
}

type DateStart struct {
	LocalDate string `json:"localDate,omitempty"`
	LocalTime string `json:"localTime,omitempty"`
	DateTime  string `json:"dateTime,omitempty"`
}

type Classification struct {
	Segment *NamedRef `json:"segment,omitempty"`
}

type NamedRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type EventEmbedded struct {
	Venues      []Venue      `json:"venues,omitempty"`
	Attractions []Attraction `json:"attractions,omitempty"`
}

type Venue struct {
	Name  string    `json:"name,omitempty"`
	City  *CityRef  `json:"city,omitempty"`
	State *StateRef `json:"state,omitempty"`
}

type CityRef struct {
	Name string `json:"name,omitempty"`
}

type StateRef struct {
	StateCode string `json:"stateCode,omitempty"`
}

type Attraction struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// FirstVenue returns nil when the event carries no venue.
func (e Event) FirstVenue() *Venue {
	if e.Embedded == nil || len(e.Embedded.Venues) == 0 {
		return nil
	}
	return &e.Embedded.Venues[0]
}

func (e Event) FirstAttraction() *Attraction {
	if e.Embedded == nil || len(e.Embedded.Attractions) == 0 {
		return nil
	}
	return &e.Embedded.Attractions[0]
}

// Identity is the id, or the purchase URL for events the upstream returned without one.
func (e Event) Identity() string {
	if e.ID != "" {
		return e.ID
	}
	return e.URL
}

func (v *Venue) CityName() string {
	if v == nil || v.City == nil {
		return ""
	}
	return v.City.Name
}

func (v *Venue) StateCode() string {
	if v == nil || v.State == nil {
		return ""
	}
	return v.State.StateCode
}

// EventPage is the search envelope returned by /discovery/v2/events.json.
type EventPage struct {
	Embedded *EventList `json:"_embedded,omitempty"`
	Page     *PageMeta  `json:"page,omitempty"`
}

type EventList struct {
	Events []Event `json:"events"`
}

type PageMeta struct {
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
}

func (p *EventPage) Events() []Event {
	if p == nil || p.Embedded == nil {
		return nil
	}
	return p.Embedded.Events
}

// PageInfo drives pagination controls.
type PageInfo struct {
	Number     int `json:"number"`
	TotalPages int `json:"totalPages"`
}

// Info falls back to {requested, requested+1} when the upstream omits the page object.
func (p *EventPage) Info(requested int) PageInfo {
	if p == nil || p.Page == nil {
		return PageInfo{Number: requested, TotalPages: requested + 1}
	}
	return PageInfo{Number: p.Page.Number, TotalPages: p.Page.TotalPages}
}
