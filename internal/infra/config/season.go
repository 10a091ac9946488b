package config

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

const (
	SeasonSpring = "spring"
	SeasonSummer = "summer"
	SeasonFall   = "fall"
	SeasonWinter = "winter"
)

// SeasonBoundary is the month/day a season starts. Zero fields fall back to the defaults.
type SeasonBoundary struct {
	StartMonth int `mapstructure:"start_month" yaml:"start_month"`
	StartDay   int `mapstructure:"start_day" yaml:"start_day"`
}

// Seasons maps season names to their configured boundaries.
type Seasons map[string]SeasonBoundary

var defaultSeasons = map[string]SeasonBoundary{
	SeasonSpring: {StartMonth: 3, StartDay: 20},
	SeasonSummer: {StartMonth: 6, StartDay: 21},
	SeasonFall:   {StartMonth: 9, StartDay: 22},
	SeasonWinter: {StartMonth: 12, StartDay: 21},
}

var seasonOrder = []string{SeasonSpring, SeasonSummer, SeasonFall, SeasonWinter}

// Boundary returns the start of the named season, applying defaults per field.
func (s Seasons) Boundary(season string) SeasonBoundary {
	b := defaultSeasons[season]
	if cfg, ok := s[season]; ok {
		if cfg.StartMonth != 0 {
			b.StartMonth = cfg.StartMonth
		}
		if cfg.StartDay != 0 {
			b.StartDay = cfg.StartDay
		}
	}
	return b
}

// Current returns the season containing now: the latest boundary not after
// today, or the last boundary of the year when today precedes all of them.
func (s Seasons) Current(now time.Time) string {
	type named struct {
		name string
		SeasonBoundary
	}
	bounds := make([]named, 0, len(seasonOrder))
	for _, name := range seasonOrder {
		bounds = append(bounds, named{name, s.Boundary(name)})
	}
	slices.SortStableFunc(bounds, func(a, b named) int {
		if c := cmp.Compare(a.StartMonth, b.StartMonth); c != 0 {
			return c
		}
		return cmp.Compare(a.StartDay, b.StartDay)
	})

	month, day := int(now.Month()), now.Day()
	current := bounds[len(bounds)-1].name
	for _, b := range bounds {
		if month > b.StartMonth || (month == b.StartMonth && day >= b.StartDay) {
			current = b.name
		}
	}
	return current
}

// Start returns midnight of the day the current season began, in now's location.
// Winter observed before March is anchored to the previous calendar year.
func (s Seasons) Start(now time.Time) (string, time.Time) {
	season := s.Current(now)
	year := now.Year()
	if season == SeasonWinter && now.Month() < time.March {
		year--
	}
	b := s.Boundary(season)
	return season, time.Date(year, time.Month(b.StartMonth), b.StartDay, 0, 0, 0, 0, now.Location())
}

// Title returns the season name with a capital first letter ("Winter").
func Title(season string) string {
	if season == "" {
		return season
	}
	return strings.ToUpper(season[:1]) + season[1:]
}
