package fixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
)

func at(t time.Time) *Schedule {
	return NewSchedule(SixNations2026, func() time.Time { return t })
}

func TestSchedule_Shape(t *testing.T) {
	assert.Len(t, SixNations2026, 15)
	s := Default()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, s.Rounds(2026))
	for _, r := range s.Rounds(2026) {
		assert.Len(t, s.RoundFixtures(2026, r), 3)
	}
	assert.Empty(t, s.Rounds(2025))
}

func TestRoundFixtures_SortedByKickOff(t *testing.T) {
	fx := Default().RoundFixtures(2026, 1)
	require.Len(t, fx, 3)
	assert.Equal(t, rugby.France, fx[0].Home)
	assert.Equal(t, rugby.Italy, fx[1].Home)
	assert.Equal(t, rugby.England, fx[2].Home)
}

func TestIsMatchPlayed(t *testing.T) {
	after := at(time.Date(2026, 2, 5, 22, 11, 0, 0, time.UTC))
	assert.True(t, after.IsMatchPlayed(2026, 1, "France", "Ireland"))

	before := at(time.Date(2026, 2, 5, 22, 9, 0, 0, time.UTC))
	assert.False(t, before.IsMatchPlayed(2026, 1, "France", "Ireland"))

	assert.False(t, after.IsMatchPlayed(2026, 1, "Argentina", "Japan"))
}

func TestIsMatchPlayed_CaseInsensitive(t *testing.T) {
	s := at(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	assert.True(t, s.IsMatchPlayed(2026, 1, "france", "ireland"))
	assert.True(t, s.IsMatchPlayed(2026, 1, "FRANCE", "IRELAND"))
}

func TestUpcomingMatches(t *testing.T) {
	done := at(time.Date(2026, 2, 7, 18, 41, 0, 0, time.UTC))
	assert.Empty(t, done.UpcomingMatches(2026, 1))

	partial := at(time.Date(2026, 2, 21, 16, 11, 0, 0, time.UTC))
	upcoming := partial.UpcomingMatches(2026, 3)
	require.Len(t, upcoming, 2)
	assert.Equal(t, rugby.Wales, upcoming[0].Home)
	assert.Equal(t, rugby.France, upcoming[1].Home)
}

func TestFixtureFor(t *testing.T) {
	s := Default()

	opp, home, ok := s.FixtureFor(2026, 1, rugby.Ireland)
	require.True(t, ok)
	assert.Equal(t, rugby.France, opp)
	assert.False(t, home)

	opp, home, ok = s.FixtureFor(2026, 4, rugby.Ireland)
	require.True(t, ok)
	assert.Equal(t, rugby.Wales, opp)
	assert.True(t, home)

	_, _, ok = s.FixtureFor(2026, 9, rugby.Ireland)
	assert.False(t, ok)
}

func TestCurrentRound(t *testing.T) {
	assert.Equal(t, 1, at(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).CurrentRound(2026))
	assert.Equal(t, 2, at(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)).CurrentRound(2026))
	assert.Equal(t, 5, at(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)).CurrentRound(2026))
	assert.Equal(t, 0, Default().CurrentRound(2030))
}
