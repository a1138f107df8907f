package discovery

import (
	"math/rand/v2"

	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
)

const (
	CuratedSize = 12

	MusicQuota  = 6
	SportsQuota = 3
	ArtsQuota   = 3

	// Caps for the final pass. Product asked for strict one-of-each.
	MaxPerArtist = 1
	MaxPerVenue  = 1
	MaxPerCity   = 1
)

// Rand is the randomness the curation needs. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

// globalRand uses the math/rand/v2 top-level functions, which are safe for concurrent use.
type globalRand struct{}

func (globalRand) IntN(n int) int                      { return rand.IntN(n) }
func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// Pools are the three category result sets the carousel mixes.
type Pools struct {
	Music  []domain.Event
	Sports []domain.Event
	Arts   []domain.Event
}

// DedupeBy keeps the first event for each key, in input order.
// Events with an empty key are all kept.
func DedupeBy(events []domain.Event, key func(domain.Event) string) []domain.Event {
	seen := make(map[string]struct{}, len(events))
	out := make([]domain.Event, 0, len(events))
	for _, e := range events {
		k := key(e)
		if k != "" {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, e)
	}
	return out
}

// Curate builds the carousel set: per-pool artist dedupe, quota mix,
// backfill from the union, then a one-per-key cap pass. At most CuratedSize events.
func Curate(p Pools, rnd Rand) []domain.Event {
	if rnd == nil {
		rnd = globalRand{}
	}

	music := DedupeBy(p.Music, ArtistKey)
	sports := DedupeBy(p.Sports, ArtistKey)
	arts := DedupeBy(p.Arts, ArtistKey)

	candidates := make([]domain.Event, 0, CuratedSize)
	candidates = append(candidates, pick(music, MusicQuota, rnd)...)
	candidates = append(candidates, pick(sports, SportsQuota, rnd)...)
	candidates = append(candidates, pick(arts, ArtsQuota, rnd)...)

	if len(candidates) < CuratedSize {
		chosen := make(map[string]struct{}, len(candidates))
		for _, e := range candidates {
			chosen[e.Identity()] = struct{}{}
		}

		union := make([]domain.Event, 0, len(music)+len(sports)+len(arts))
		union = append(union, music...)
		union = append(union, sports...)
		union = append(union, arts...)
		union = DedupeBy(union, ArtistKey)

		left := make([]domain.Event, 0, len(union))
		for _, e := range union {
			if _, ok := chosen[e.Identity()]; ok {
				continue
			}
			chosen[e.Identity()] = struct{}{}
			left = append(left, e)
		}
		candidates = append(candidates, pick(left, CuratedSize-len(candidates), rnd)...)
	}

	return capRepeats(candidates)
}

// pick shuffles a copy of events and returns its first n entries.
func pick(events []domain.Event, n int, rnd Rand) []domain.Event {
	if n <= 0 || len(events) == 0 {
		return nil
	}
	cp := append([]domain.Event(nil), events...)
	rnd.Shuffle(len(cp), func(i, j int) { cp[i], cp[j] = cp[j], cp[i] })
	if n > len(cp) {
		n = len(cp)
	}
	return cp[:n]
}

func capRepeats(candidates []domain.Event) []domain.Event {
	artists := map[string]int{}
	venues := map[string]int{}
	cities := map[string]int{}

	out := make([]domain.Event, 0, CuratedSize)
	for _, e := range candidates {
		a, v, c := ArtistKey(e), VenueKey(e), CityKey(e)

		if a != "" && artists[a] >= MaxPerArtist {
			continue
		}
		if v != "" && venues[v] >= MaxPerVenue {
			continue
		}
		if c != "" && cities[c] >= MaxPerCity {
			continue
		}

		if a != "" {
			artists[a]++
		}
		if v != "" {
			venues[v]++
		}
		if c != "" {
			cities[c]++
		}
		out = append(out, e)
		if len(out) >= CuratedSize {
			break
		}
	}
	return out
}
