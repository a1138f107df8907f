package query

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/baechuer/cityevents/services/discovery-service/internal/geo"
)

const (
	PageSize     = 24
	SortRelevant = "relevance,desc"
	CountryCode  = "US"
	SearchRadius = "50"
	RadiusUnit   = "miles"
)

// Segment ids for the category tags the SPA sends as cat=.
var segments = map[string]string{
	"music":  "KZFzniwnSyZfZ7v7nJ",
	"sports": "KZFzniwnSyZfZ7v7nE",
	"arts":   "KZFzniwnSyZfZ7v7na",
}

// SegmentID maps a category tag to its upstream segment id.
func SegmentID(category string) (string, bool) {
	id, ok := segments[strings.ToLower(strings.TrimSpace(category))]
	return id, ok
}

// Search is the search page state as carried in the SPA's URL.
type Search struct {
	Keyword  string     `query:"q" validate:"max=200"`
	Location string     `query:"city" validate:"max=100"`
	Category string     `query:"cat" validate:"omitempty,oneof=music sports arts"`
	Page     int        `query:"page" validate:"gte=0,lte=1000"`
	Dates    *DateRange `query:"dates" validate:"-"`
}

type Builder struct {
	zips geo.Resolver
}

func NewBuilder(zips geo.Resolver) *Builder {
	return &Builder{zips: zips}
}

// Build returns the upstream query for s. The API key is added by the client.
// A zip the resolver cannot place falls back to a postalCode filter.
func (b *Builder) Build(ctx context.Context, s Search) url.Values {
	q := url.Values{}
	set := q.Set

	set("countryCode", CountryCode)
	set("size", strconv.Itoa(PageSize))
	set("sort", SortRelevant)
	set("page", strconv.Itoa(s.Page))

	if kw := strings.TrimSpace(s.Keyword); kw != "" {
		set("keyword", kw)
	}

	if loc := strings.TrimSpace(s.Location); loc != "" {
		if geo.IsZip(loc) {
			zip5 := geo.Zip5(loc)
			if z, ok := b.lookup(ctx, zip5); ok {
				set("latlong", formatCoord(z.Latitude)+","+formatCoord(z.Longitude))
				set("radius", SearchRadius)
				set("unit", RadiusUnit)
			} else {
				set("postalCode", zip5)
			}
		} else {
			set("city", loc)
		}
	}

	if s.Dates != nil {
		set("startDateTime", s.Dates.StartParam())
		set("endDateTime", s.Dates.EndParam())
	}

	if seg, ok := SegmentID(s.Category); ok {
		set("segmentId", seg)
	}
	return q
}

func (b *Builder) lookup(ctx context.Context, zip string) (geo.ZipInfo, bool) {
	if b == nil || b.zips == nil {
		return geo.ZipInfo{}, false
	}
	return b.zips.Resolve(ctx, zip)
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ErrInvalidPage is returned by FromValues when page is not an integer.
var ErrInvalidPage = errors.New("page must be an integer")

// FromValues reads the search state from the SPA query string
// (q, city, cat, page and the date params).
func FromValues(v url.Values) (Search, error) {
	s := Search{
		Keyword:  strings.TrimSpace(v.Get("q")),
		Location: strings.TrimSpace(v.Get("city")),
		Category: strings.ToLower(strings.TrimSpace(v.Get("cat"))),
	}
	if raw := strings.TrimSpace(v.Get("page")); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return s, ErrInvalidPage
		}
		s.Page = p
	}
	if r, ok := ResolveDateRange(v); ok {
		s.Dates = &r
	}
	return s, nil
}
