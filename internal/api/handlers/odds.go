package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/services"
	"github.com/stitts-dev/fantasy-rugby/pkg/utils"
)

type OddsHandler struct {
	odds   *services.OddsService
	rounds RoundResolver
	logger *logrus.Logger
}

func NewOddsHandler(odds *services.OddsService, rounds RoundResolver, logger *logrus.Logger) *OddsHandler {
	return &OddsHandler{odds: odds, rounds: rounds, logger: logger}
}

// SaveTryScorerOdds stores a scraped try-scorer market, reporting names it
// could not match.
func (h *OddsHandler) SaveTryScorerOdds(c *gin.Context) {
	var req services.TryScorerOddsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.odds.UpsertTryScorerOdds(c.Request.Context(), req)
	if err != nil {
		sendServiceError(c, h.logger, err, "Odds not found")
		return
	}
	utils.SendSuccess(c, result)
}

func (h *OddsHandler) SaveMatchOdds(c *gin.Context) {
	var req services.MatchOddsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.odds.UpsertMatchOdds(c.Request.Context(), req)
	if err != nil {
		sendServiceError(c, h.logger, err, "Odds not found")
		return
	}
	utils.SendSuccess(c, result)
}

func (h *OddsHandler) GetOdds(c *gin.Context) {
	season, round, err := h.rounds.FromQuery(c)
	if err != nil {
		utils.SendValidationError(c, "Invalid round", err.Error())
		return
	}

	odds, err := h.odds.ListRound(c.Request.Context(), season, round)
	if err != nil {
		sendServiceError(c, h.logger, err, "Odds not found")
		return
	}
	utils.SendSuccessWithMeta(c, odds, &utils.Meta{Total: int64(len(odds))})
}

// GetTryScorers groups a round's priced players by fixture with their
// anytime-try odds and expected try points.
func (h *OddsHandler) GetTryScorers(c *gin.Context) {
	season, round, err := h.rounds.FromQuery(c)
	if err != nil {
		utils.SendValidationError(c, "Invalid round", err.Error())
		return
	}
	matches := h.rounds.Schedule.RoundFixtures(season, round)
	if len(matches) == 0 {
		utils.SendNotFound(c, "Round not found")
		return
	}

	boards, err := h.odds.TryScorers(c.Request.Context(), season, round, matches)
	if err != nil {
		sendServiceError(c, h.logger, err, "Round not found")
		return
	}
	utils.SendSuccess(c, boards)
}
