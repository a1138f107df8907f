package discovery

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
)

// Checked in this order; the first one found after the start of the name wins.
var titleSeparators = []string{" - ", " at ", " @ "}

var marketingWords = regexp.MustCompile(`(?i)\b(live|tour|suite reservation|vip|experience|show|tickets)\b`)

// ArtistKey identifies the performer behind a listing, so that
// "Coldplay - Music of the Spheres Tour" and "Coldplay at SoFi" collide.
func ArtistKey(e domain.Event) string {
	if a := e.FirstAttraction(); a != nil && a.Name != "" {
		return normalizeKey(a.Name)
	}

	title := e.Name
	for _, sep := range titleSeparators {
		if idx := indexFold(title, sep); idx > 0 {
			title = title[:idx]
			break
		}
	}
	title = marketingWords.ReplaceAllString(title, "")
	return normalizeKey(title)
}

func VenueKey(e domain.Event) string {
	v := e.FirstVenue()
	if v == nil {
		return ""
	}
	return normalizeKey(v.Name)
}

// CityKey is "city, ST" normalized, so it reads "austin tx".
func CityKey(e domain.Event) string {
	v := e.FirstVenue()
	parts := make([]string, 0, 2)
	for _, p := range []string{v.CityName(), v.StateCode()} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return normalizeKey(strings.Join(parts, ", "))
}

// normalizeKey lowercases s and collapses every run of characters that are
// neither letters nor digits into one space.
func normalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// indexFold is a case-insensitive strings.Index for an ASCII needle.
func indexFold(s, needle string) int {
	n := len(needle)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], needle) {
			return i
		}
	}
	return -1
}
