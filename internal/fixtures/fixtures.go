package fixtures

import (
	"sort"
	"strings"
	"time"

	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
)

// PlayedBuffer is how long after kick-off a match counts as finished.
const PlayedBuffer = 2 * time.Hour

// Fixture is one scheduled match.
type Fixture struct {
	Season  int           `json:"season"`
	Round   int           `json:"round"`
	Home    rugby.Country `json:"home"`
	Away    rugby.Country `json:"away"`
	KickOff time.Time     `json:"kick_off"`
}

// Played reports whether kick-off plus PlayedBuffer is before now.
func (f Fixture) Played(now time.Time) bool {
	return now.After(f.KickOff.Add(PlayedBuffer))
}

func (f Fixture) involves(country rugby.Country) bool {
	return strings.EqualFold(string(f.Home), string(country)) || strings.EqualFold(string(f.Away), string(country))
}

func kickOff(month time.Month, day, hour, minute int) time.Time {
	return time.Date(2026, month, day, hour, minute, 0, 0, time.UTC)
}

// SixNations2026 holds the 2026 championship in UTC.
var SixNations2026 = []Fixture{
	{2026, 1, rugby.France, rugby.Ireland, kickOff(time.February, 5, 20, 10)},
	{2026, 1, rugby.Italy, rugby.Scotland, kickOff(time.February, 7, 14, 10)},
	{2026, 1, rugby.England, rugby.Wales, kickOff(time.February, 7, 16, 40)},

	{2026, 2, rugby.Ireland, rugby.Italy, kickOff(time.February, 14, 14, 10)},
	{2026, 2, rugby.Scotland, rugby.England, kickOff(time.February, 14, 16, 40)},
	{2026, 2, rugby.Wales, rugby.France, kickOff(time.February, 15, 15, 10)},

	{2026, 3, rugby.England, rugby.Ireland, kickOff(time.February, 21, 14, 10)},
	{2026, 3, rugby.Wales, rugby.Scotland, kickOff(time.February, 21, 16, 40)},
	{2026, 3, rugby.France, rugby.Italy, kickOff(time.February, 22, 15, 10)},

	{2026, 4, rugby.Ireland, rugby.Wales, kickOff(time.March, 6, 20, 10)},
	{2026, 4, rugby.Scotland, rugby.France, kickOff(time.March, 7, 14, 10)},
	{2026, 4, rugby.Italy, rugby.England, kickOff(time.March, 7, 16, 40)},

	{2026, 5, rugby.Ireland, rugby.Scotland, kickOff(time.March, 14, 14, 10)},
	{2026, 5, rugby.Wales, rugby.Italy, kickOff(time.March, 14, 16, 40)},
	{2026, 5, rugby.France, rugby.England, kickOff(time.March, 14, 20, 10)},
}

// Schedule answers fixture questions against a clock.
type Schedule struct {
	fixtures []Fixture
	now      func() time.Time
}

// NewSchedule uses time.Now when now is nil.
func NewSchedule(fixtures []Fixture, now func() time.Time) *Schedule {
	if now == nil {
		now = time.Now
	}
	return &Schedule{fixtures: fixtures, now: now}
}

// Default is the 2026 schedule on the wall clock.
func Default() *Schedule {
	return NewSchedule(SixNations2026, nil)
}

// RoundFixtures returns a round's matches sorted by kick-off.
func (s *Schedule) RoundFixtures(season, round int) []Fixture {
	out := make([]Fixture, 0, 3)
	for _, f := range s.fixtures {
		if f.Season == season && f.Round == round {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KickOff.Before(out[j].KickOff) })
	return out
}

// Rounds lists the distinct rounds of a season in order.
func (s *Schedule) Rounds(season int) []int {
	seen := map[int]bool{}
	rounds := []int{}
	for _, f := range s.fixtures {
		if f.Season == season && !seen[f.Round] {
			seen[f.Round] = true
			rounds = append(rounds, f.Round)
		}
	}
	sort.Ints(rounds)
	return rounds
}

// Find matches home and away case-insensitively.
func (s *Schedule) Find(season, round int, home, away string) (Fixture, bool) {
	for _, f := range s.fixtures {
		if f.Season == season && f.Round == round &&
			strings.EqualFold(string(f.Home), home) && strings.EqualFold(string(f.Away), away) {
			return f, true
		}
	}
	return Fixture{}, false
}

// IsMatchPlayed is false for unknown matches.
func (s *Schedule) IsMatchPlayed(season, round int, home, away string) bool {
	f, ok := s.Find(season, round, home, away)
	if !ok {
		return false
	}
	return f.Played(s.now())
}

// UpcomingMatches returns a round's matches that are not yet played.
func (s *Schedule) UpcomingMatches(season, round int) []Fixture {
	now := s.now()
	out := []Fixture{}
	for _, f := range s.RoundFixtures(season, round) {
		if !f.Played(now) {
			out = append(out, f)
		}
	}
	return out
}

// FixtureFor returns country's opponent in a round and whether it is at home.
func (s *Schedule) FixtureFor(season, round int, country rugby.Country) (opponent rugby.Country, home bool, ok bool) {
	for _, f := range s.RoundFixtures(season, round) {
		if !f.involves(country) {
			continue
		}
		if strings.EqualFold(string(f.Home), string(country)) {
			return f.Away, true, true
		}
		return f.Home, false, true
	}
	return "", false, false
}

// CurrentRound is the earliest round with an unfinished match, or the last
// round once the season is over. Zero when the season has no fixtures.
func (s *Schedule) CurrentRound(season int) int {
	now := s.now()
	rounds := s.Rounds(season)
	for _, r := range rounds {
		fixtures := s.RoundFixtures(season, r)
		if !fixtures[len(fixtures)-1].Played(now) {
			return r
		}
	}
	if len(rounds) == 0 {
		return 0
	}
	return rounds[len(rounds)-1]
}
