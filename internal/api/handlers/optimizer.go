package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/stitts-dev/fantasy-rugby/internal/api/middleware"
	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/optimizer"
	"github.com/stitts-dev/fantasy-rugby/internal/services"
	"github.com/stitts-dev/fantasy-rugby/pkg/config"
	"github.com/stitts-dev/fantasy-rugby/pkg/database"
	"github.com/stitts-dev/fantasy-rugby/pkg/logger"
	"github.com/stitts-dev/fantasy-rugby/pkg/utils"
)

type OptimizerHandler struct {
	db        *database.DB
	roster    *services.RosterService
	optimiser *optimizer.TeamOptimiser
	cache     *services.CacheService
	rounds    RoundResolver
	config    *config.Config
	logger    *logrus.Logger
}

func NewOptimizerHandler(
	db *database.DB,
	roster *services.RosterService,
	optimiser *optimizer.TeamOptimiser,
	cache *services.CacheService,
	rounds RoundResolver,
	cfg *config.Config,
	logger *logrus.Logger,
) *OptimizerHandler {
	return &OptimizerHandler{
		db:        db,
		roster:    roster,
		optimiser: optimiser,
		cache:     cache,
		rounds:    rounds,
		config:    cfg,
		logger:    logger,
	}
}

// constraintsRequest carries the optional knobs shared by both endpoints.
// Missing values fall back to the configured defaults.
type constraintsRequest struct {
	Budget          *float64 `json:"budget" binding:"omitempty,gt=0"`
	MaxPerCountry   *int     `json:"max_per_country" binding:"omitempty,min=1"`
	LockedPlayers   []uint   `json:"locked_players"`
	ExcludedPlayers []uint   `json:"excluded_players"`
	IncludeBench    *bool    `json:"include_bench"`
}

func (r constraintsRequest) toRequest(cfg *config.Config) optimizer.Request {
	req := optimizer.DefaultRequest()
	req.Budget = cfg.DefaultBudget
	req.MaxPerCountry = cfg.DefaultMaxPerCountry
	if r.Budget != nil {
		req.Budget = *r.Budget
	}
	if r.MaxPerCountry != nil {
		req.MaxPerCountry = *r.MaxPerCountry
	}
	if r.IncludeBench != nil {
		req.IncludeBench = *r.IncludeBench
	}
	req.LockedPlayers = r.LockedPlayers
	req.ExcludedPlayers = r.ExcludedPlayers
	return req
}

type optimiseRequest struct {
	Season int `json:"season" binding:"omitempty,min=2000"`
	Round  int `json:"round" binding:"omitempty,min=1"`
	constraintsRequest
}

type customOptimiseRequest struct {
	Players []optimizer.OptimiserPlayer `json:"players" binding:"required,min=1"`
	constraintsRequest
}

// OptimiseResponse wraps a team with the round it was picked for.
type OptimiseResponse struct {
	Season     int                      `json:"season,omitempty"`
	Round      int                      `json:"round,omitempty"`
	Candidates int                      `json:"candidates"`
	Cached     bool                     `json:"cached"`
	Team       *optimizer.OptimisedTeam `json:"team"`
}

// Optimise picks a team from the round's priced, predicted players. An empty
// body optimises the current round with default constraints.
func (h *OptimizerHandler) Optimise(c *gin.Context) {
	var body optimiseRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	season, round, err := h.rounds.Resolve(body.Season, body.Round)
	if err != nil {
		utils.SendValidationError(c, "Invalid round", err.Error())
		return
	}

	req := body.toRequest(h.config)
	requestID := c.GetString(middleware.RequestIDKey)
	log := logger.WithOptimisationContext(requestID, season, round)

	cacheKey := services.OptimiseCacheKey(season, round, req)
	var cached OptimiseResponse
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil {
		cached.Cached = true
		log.Debug("Serving cached optimisation")
		utils.SendSuccess(c, cached)
		return
	} else if !errors.Is(err, services.ErrCacheMiss) {
		log.WithError(err).Warn("Optimise cache lookup failed")
	}

	players, err := h.roster.OptimiserPlayers(c.Request.Context(), season, round)
	if err != nil {
		sendServiceError(c, h.logger, err, "Round not found")
		return
	}

	started := time.Now()
	team := h.optimiser.Optimise(c.Request.Context(), players, req)
	resp := OptimiseResponse{
		Season:     season,
		Round:      round,
		Candidates: len(players),
		Team:       team,
	}

	log.WithFields(logrus.Fields{
		"candidates":    len(players),
		"solver_status": team.SolverStatus,
		"total_points":  team.TotalPredictedPoints,
		"total_cost":    team.TotalCost,
	}).Info("Team optimised")

	if team.Feasible() {
		if err := h.cache.Set(c.Request.Context(), cacheKey, resp, h.config.OptimizeCacheTTL); err != nil {
			log.WithError(err).Warn("Failed to cache optimisation")
		}
	}
	h.audit(requestID, season, round, req, resp, time.Since(started))

	utils.SendSuccess(c, resp)
}

// OptimiseCustom picks a team from a caller-supplied pool. Nothing is read
// from or written to the database.
func (h *OptimizerHandler) OptimiseCustom(c *gin.Context) {
	var body customOptimiseRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	team := h.optimiser.Optimise(c.Request.Context(), body.Players, body.toRequest(h.config))
	utils.SendSuccess(c, OptimiseResponse{Candidates: len(body.Players), Team: team})
}

func (h *OptimizerHandler) audit(requestID string, season, round int, req optimizer.Request, resp OptimiseResponse, took time.Duration) {
	reqJSON, _ := json.Marshal(req)
	respJSON, _ := json.Marshal(resp.Team)

	run := models.OptimisationRun{
		RequestID:            requestID,
		Season:               season,
		Round:                round,
		Budget:               req.Budget,
		MaxPerCountry:        req.MaxPerCountry,
		Candidates:           resp.Candidates,
		SolverStatus:         string(resp.Team.SolverStatus),
		TotalCost:            resp.Team.TotalCost,
		TotalPredictedPoints: resp.Team.TotalPredictedPoints,
		DurationMs:           took.Milliseconds(),
		Request:              datatypes.JSON(reqJSON),
		Response:             datatypes.JSON(respJSON),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.db.WithContext(ctx).Create(&run).Error; err != nil {
		h.logger.WithError(err).WithField("request_id", requestID).Warn("Failed to record optimisation run")
	}
}
