package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/services"
	"github.com/stitts-dev/fantasy-rugby/pkg/utils"
)

type PlayerHandler struct {
	roster *services.RosterService
	cache  *services.CacheService
	rounds RoundResolver
	logger *logrus.Logger
}

func NewPlayerHandler(roster *services.RosterService, cache *services.CacheService, rounds RoundResolver, logger *logrus.Logger) *PlayerHandler {
	return &PlayerHandler{
		roster: roster,
		cache:  cache,
		rounds: rounds,
		logger: logger,
	}
}

// GetPlayers lists players with their price, selection and prediction for
// a round.
func (h *PlayerHandler) GetPlayers(c *gin.Context) {
	season, round, err := h.rounds.FromQuery(c)
	if err != nil {
		utils.SendValidationError(c, "Invalid round", err.Error())
		return
	}

	filter := services.PlayerFilter{
		Season:   season,
		Round:    round,
		Country:  c.Query("country"),
		Position: c.Query("position"),
	}
	if filter.MinPrice, err = optionalFloat(c, "min_price"); err != nil {
		utils.SendValidationError(c, "Invalid filter", err.Error())
		return
	}
	if filter.MaxPrice, err = optionalFloat(c, "max_price"); err != nil {
		utils.SendValidationError(c, "Invalid filter", err.Error())
		return
	}
	if filter.IsAvailable, err = optionalBool(c, "available"); err != nil {
		utils.SendValidationError(c, "Invalid filter", err.Error())
		return
	}

	players, err := h.roster.ListPlayers(c.Request.Context(), filter)
	if err != nil {
		sendServiceError(c, h.logger, err, "Players not found")
		return
	}

	utils.SendSuccessWithMeta(c, players, &utils.Meta{Total: int64(len(players))})
}

// GetPlayer returns a single player with recent matches and derived stats.
func (h *PlayerHandler) GetPlayer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	season, round, err := h.rounds.FromQuery(c)
	if err != nil {
		utils.SendValidationError(c, "Invalid round", err.Error())
		return
	}

	player, err := h.roster.GetPlayer(c.Request.Context(), id, season, round)
	if err != nil {
		sendServiceError(c, h.logger, err, "Player not found")
		return
	}
	utils.SendSuccess(c, player)
}

// ComparePlayers lines up ?ids=1,2,3 side by side for a round.
func (h *PlayerHandler) ComparePlayers(c *gin.Context) {
	raw := c.Query("ids")
	if raw == "" {
		utils.SendValidationError(c, "Invalid ids", "ids is required")
		return
	}
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil || id == 0 {
			utils.SendValidationError(c, "Invalid ids", raw)
			return
		}
		ids = append(ids, uint(id))
	}
	season, round, err := h.rounds.FromQuery(c)
	if err != nil {
		utils.SendValidationError(c, "Invalid round", err.Error())
		return
	}

	players, err := h.roster.ComparePlayers(c.Request.Context(), ids, season, round)
	if err != nil {
		sendServiceError(c, h.logger, err, "Player not found")
		return
	}
	utils.SendSuccess(c, players)
}

type createPlayerRequest struct {
	Name            string  `json:"name" binding:"required"`
	Country         string  `json:"country" binding:"required"`
	FantasyPosition string  `json:"fantasy_position" binding:"required"`
	Club            *string `json:"club"`
	IsKicker        bool    `json:"is_kicker"`
}

func (h *PlayerHandler) CreatePlayer(c *gin.Context) {
	var req createPlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	player := models.Player{
		Name:            req.Name,
		Country:         req.Country,
		FantasyPosition: req.FantasyPosition,
		Club:            req.Club,
		IsKicker:        req.IsKicker,
	}
	if err := h.roster.CreatePlayer(c.Request.Context(), &player); err != nil {
		sendServiceError(c, h.logger, err, "Player not found")
		return
	}
	utils.SendCreated(c, player)
}

// UpsertPrice sets a player's price for a round and drops cached teams for
// that round.
func (h *PlayerHandler) UpsertPrice(c *gin.Context) {
	var req services.PriceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	price, err := h.roster.UpsertPrice(c.Request.Context(), req)
	if err != nil {
		sendServiceError(c, h.logger, err, "Player not found")
		return
	}
	h.invalidate(c, req.Season, req.Round)
	utils.SendSuccess(c, price)
}

func (h *PlayerHandler) UpsertSelection(c *gin.Context) {
	var req services.SelectionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	sel, err := h.roster.UpsertSelection(c.Request.Context(), req)
	if err != nil {
		sendServiceError(c, h.logger, err, "Player not found")
		return
	}
	h.invalidate(c, req.Season, req.Round)
	utils.SendSuccess(c, sel)
}

func (h *PlayerHandler) invalidate(c *gin.Context, season, round int) {
	if err := h.cache.InvalidateRound(c.Request.Context(), season, round); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"season": season,
			"round":  round,
		}).Warn("Failed to invalidate optimise cache")
	}
}
