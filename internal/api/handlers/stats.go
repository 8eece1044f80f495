package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/scoring"
	"github.com/stitts-dev/fantasy-rugby/internal/services"
	"github.com/stitts-dev/fantasy-rugby/pkg/utils"
)

const (
	defaultHistoryLimit = 10
	formWindow          = 5
)

type StatsHandler struct {
	stats  *services.StatsService
	logger *logrus.Logger
}

func NewStatsHandler(stats *services.StatsService, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

type matchStatsRequest struct {
	PlayerID       uint      `json:"player_id" binding:"required"`
	Season         int       `json:"season" binding:"required,min=2000"`
	Round          int       `json:"round" binding:"required,min=1"`
	MatchDate      time.Time `json:"match_date" binding:"required"`
	Opponent       string    `json:"opponent" binding:"required"`
	HomeAway       string    `json:"home_away" binding:"required,oneof=home away"`
	Started        bool      `json:"started"`
	MinutesPlayed  *int      `json:"minutes_played" binding:"omitempty,min=0,max=100"`
	ActualPosition *string   `json:"actual_position"`
	CleanBreaks    int       `json:"clean_breaks" binding:"min=0"`
	TacklesMissed  int       `json:"tackles_missed" binding:"min=0"`
	scoring.PlayerStats
}

func (r matchStatsRequest) toModel() *models.MatchStats {
	s := r.PlayerStats
	return &models.MatchStats{
		PlayerID:          r.PlayerID,
		Season:            r.Season,
		Round:             r.Round,
		MatchDate:         r.MatchDate,
		Opponent:          r.Opponent,
		HomeAway:          r.HomeAway,
		Started:           r.Started,
		MinutesPlayed:     r.MinutesPlayed,
		ActualPosition:    r.ActualPosition,
		Tries:             s.Tries,
		TryAssists:        s.TryAssists,
		Conversions:       s.Conversions,
		PenaltiesKicked:   s.PenaltiesKicked,
		DropGoals:         s.DropGoals,
		DefendersBeaten:   s.DefendersBeaten,
		MetresCarried:     s.MetresCarried,
		CleanBreaks:       r.CleanBreaks,
		Offloads:          s.Offloads,
		Fifty22Kicks:      s.Fifty22Kicks,
		TacklesMade:       s.TacklesMade,
		TacklesMissed:     r.TacklesMissed,
		TurnoversWon:      s.TurnoversWon,
		LineoutSteals:     s.LineoutSteals,
		ScrumsWon:         s.ScrumsWon,
		PenaltiesConceded: s.PenaltiesConceded,
		YellowCards:       s.YellowCards,
		RedCards:          s.RedCards,
		PlayerOfMatch:     s.PlayerOfMatch,
	}
}

// RecordMatch scores and stores a stat line. Re-posting the same player and
// round replaces the earlier line.
func (h *StatsHandler) RecordMatch(c *gin.Context) {
	var req matchStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	recorded, err := h.stats.RecordMatch(c.Request.Context(), req.toModel())
	if err != nil {
		sendServiceError(c, h.logger, err, "Player not found")
		return
	}
	utils.SendCreated(c, recorded)
}

type playerStatsResponse struct {
	PlayerID   uint                  `json:"player_id"`
	RecentForm services.Form         `json:"recent_form"`
	Derived    services.DerivedStats `json:"derived"`
	Matches    []models.MatchStats   `json:"matches"`
}

// GetPlayerStats returns a player's history, recent form and derived stats.
func (h *StatsHandler) GetPlayerStats(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			utils.SendValidationError(c, "Invalid limit", raw)
			return
		}
		limit = v
	}

	ctx := c.Request.Context()
	derived, err := h.stats.DerivedStats(ctx, id)
	if err != nil {
		sendServiceError(c, h.logger, err, "Player not found")
		return
	}
	form, err := h.stats.RecentForm(ctx, id, formWindow)
	if err != nil {
		sendServiceError(c, h.logger, err, "Player not found")
		return
	}
	matches, err := h.stats.History(ctx, id, limit)
	if err != nil {
		sendServiceError(c, h.logger, err, "Player not found")
		return
	}

	utils.SendSuccess(c, playerStatsResponse{
		PlayerID:   id,
		RecentForm: form,
		Derived:    derived,
		Matches:    matches,
	})
}

// GetLeaderboard ranks players by ?stat= within each position or country.
func (h *StatsHandler) GetLeaderboard(c *gin.Context) {
	season, err := optionalInt(c, "season")
	if err != nil {
		utils.SendValidationError(c, "Invalid season", err.Error())
		return
	}
	limit, err := optionalInt(c, "limit")
	if err != nil {
		utils.SendValidationError(c, "Invalid limit", err.Error())
		return
	}

	boards, err := h.stats.Leaderboard(c.Request.Context(), services.LeaderboardQuery{
		Stat:    c.DefaultQuery("stat", "fantasy_points"),
		GroupBy: c.DefaultQuery("group_by", services.GroupByPosition),
		Season:  season,
		Limit:   limit,
	})
	if err != nil {
		sendServiceError(c, h.logger, err, "Stats not found")
		return
	}
	utils.SendSuccess(c, boards)
}
