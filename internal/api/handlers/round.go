package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/fixtures"
	"github.com/stitts-dev/fantasy-rugby/internal/services"
	"github.com/stitts-dev/fantasy-rugby/pkg/utils"
)

// RoundHandler serves the fixture list and per-round data checks.
type RoundHandler struct {
	schedule   *fixtures.Schedule
	validation *services.ValidationService
	rounds     RoundResolver
	logger     *logrus.Logger
}

func NewRoundHandler(schedule *fixtures.Schedule, validation *services.ValidationService, rounds RoundResolver, logger *logrus.Logger) *RoundHandler {
	return &RoundHandler{
		schedule:   schedule,
		validation: validation,
		rounds:     rounds,
		logger:     logger,
	}
}

type fixtureView struct {
	fixtures.Fixture
	Played bool `json:"played"`
}

type fixturesResponse struct {
	Season       int           `json:"season"`
	CurrentRound int           `json:"current_round"`
	Fixtures     []fixtureView `json:"fixtures"`
}

// GetFixtures lists a season's fixtures, or one round's with ?round=.
func (h *RoundHandler) GetFixtures(c *gin.Context) {
	season, err := optionalInt(c, "season")
	if err != nil {
		utils.SendValidationError(c, "Invalid season", err.Error())
		return
	}
	if season == 0 {
		season = h.rounds.Season
	}
	round, err := optionalInt(c, "round")
	if err != nil {
		utils.SendValidationError(c, "Invalid round", err.Error())
		return
	}

	rounds := h.schedule.Rounds(season)
	if round > 0 {
		rounds = []int{round}
	}

	views := []fixtureView{}
	for _, r := range rounds {
		for _, f := range h.schedule.RoundFixtures(season, r) {
			views = append(views, fixtureView{
				Fixture: f,
				Played:  h.schedule.IsMatchPlayed(f.Season, f.Round, string(f.Home), string(f.Away)),
			})
		}
	}

	utils.SendSuccess(c, fixturesResponse{
		Season:       season,
		CurrentRound: h.schedule.CurrentRound(season),
		Fixtures:     views,
	})
}

type currentRoundResponse struct {
	Season   int           `json:"season"`
	Round    int           `json:"round"`
	Upcoming int           `json:"upcoming"`
	Fixtures []fixtureView `json:"fixtures"`
}

// GetCurrentRound returns the earliest round with a match still to play, or
// the last round once the season is over.
func (h *RoundHandler) GetCurrentRound(c *gin.Context) {
	season, err := optionalInt(c, "season")
	if err != nil {
		utils.SendValidationError(c, "Invalid season", err.Error())
		return
	}
	if season == 0 {
		season = h.rounds.Season
	}

	round := h.schedule.CurrentRound(season)
	if round == 0 {
		utils.SendNotFound(c, "No fixtures for season")
		return
	}

	views := []fixtureView{}
	for _, f := range h.schedule.RoundFixtures(season, round) {
		views = append(views, fixtureView{
			Fixture: f,
			Played:  h.schedule.IsMatchPlayed(f.Season, f.Round, string(f.Home), string(f.Away)),
		})
	}
	utils.SendSuccess(c, currentRoundResponse{
		Season:   season,
		Round:    round,
		Upcoming: len(h.schedule.UpcomingMatches(season, round)),
		Fixtures: views,
	})
}

// GetValidation reports data-quality warnings for a round.
func (h *RoundHandler) GetValidation(c *gin.Context) {
	round, ok := idParam(c, "round")
	if !ok {
		return
	}
	season, err := optionalInt(c, "season")
	if err != nil {
		utils.SendValidationError(c, "Invalid season", err.Error())
		return
	}
	season, _, err = h.rounds.Resolve(season, int(round))
	if err != nil {
		utils.SendValidationError(c, "Invalid round", err.Error())
		return
	}

	report, err := h.validation.ValidateRound(c.Request.Context(), season, int(round))
	if err != nil {
		sendServiceError(c, h.logger, err, "Round not found")
		return
	}
	utils.SendSuccess(c, report)
}
