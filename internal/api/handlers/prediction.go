package handlers

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/models"
	"github.com/stitts-dev/fantasy-rugby/internal/services"
	"github.com/stitts-dev/fantasy-rugby/pkg/utils"
)

type PredictionHandler struct {
	predictions *services.PredictionService
	tracker     *services.JobTracker
	rounds      RoundResolver
	logger      *logrus.Logger
}

func NewPredictionHandler(predictions *services.PredictionService, tracker *services.JobTracker, rounds RoundResolver, logger *logrus.Logger) *PredictionHandler {
	return &PredictionHandler{
		predictions: predictions,
		tracker:     tracker,
		rounds:      rounds,
		logger:      logger,
	}
}

// GetPredictions lists stored predictions for a round.
func (h *PredictionHandler) GetPredictions(c *gin.Context) {
	season, round, err := h.rounds.FromQuery(c)
	if err != nil {
		utils.SendValidationError(c, "Invalid round", err.Error())
		return
	}
	minPredicted, err := optionalFloat(c, "min_predicted")
	if err != nil {
		utils.SendValidationError(c, "Invalid filter", err.Error())
		return
	}

	views, err := h.predictions.List(c.Request.Context(), services.PredictionFilter{
		Season:       season,
		Round:        round,
		Position:     c.Query("position"),
		MinPredicted: minPredicted,
		SortBy:       c.DefaultQuery("sort_by", services.SortByPoints),
	})
	if err != nil {
		sendServiceError(c, h.logger, err, "Predictions not found")
		return
	}
	utils.SendSuccessWithMeta(c, views, &utils.Meta{Total: int64(len(views))})
}

// GetPrediction explains one player's prediction, computing it on the fly
// when none is stored.
func (h *PredictionHandler) GetPrediction(c *gin.Context) {
	id, ok := idParam(c, "playerId")
	if !ok {
		return
	}
	season, round, err := h.rounds.FromQuery(c)
	if err != nil {
		utils.SendValidationError(c, "Invalid round", err.Error())
		return
	}

	detail, err := h.predictions.Detail(c.Request.Context(), id, season, round)
	if err != nil {
		sendServiceError(c, h.logger, err, "Player not found")
		return
	}
	utils.SendSuccess(c, detail)
}

type generateRequest struct {
	Season int `json:"season" binding:"omitempty,min=2000"`
	Round  int `json:"round" binding:"omitempty,min=1"`
}

// Generate predicts every selected player for a round. With async=true the
// work runs as a background job and the job is returned with 202.
func (h *PredictionHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}
	async, err := optionalBool(c, "async")
	if err != nil {
		utils.SendValidationError(c, "Invalid request", err.Error())
		return
	}

	season, round, err := h.rounds.Resolve(req.Season, req.Round)
	if err != nil {
		utils.SendValidationError(c, "Invalid round", err.Error())
		return
	}

	if async != nil && *async {
		job, err := h.tracker.Start(c.Request.Context(), models.JobKindPredictions, season, round, func(ctx context.Context) (interface{}, error) {
			return h.predictions.GenerateForRound(ctx, season, round)
		})
		if err != nil {
			sendServiceError(c, h.logger, err, "Job not found")
			return
		}
		utils.SendAccepted(c, job)
		return
	}

	result, err := h.predictions.GenerateForRound(c.Request.Context(), season, round)
	if err != nil {
		sendServiceError(c, h.logger, err, "Round not found")
		return
	}
	utils.SendSuccess(c, result)
}
