package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/fantasy-rugby/internal/rugby"
	"github.com/stitts-dev/fantasy-rugby/internal/scoring"
	"github.com/stitts-dev/fantasy-rugby/pkg/utils"
)

type ScoringHandler struct{}

func NewScoringHandler() *ScoringHandler {
	return &ScoringHandler{}
}

type calculateRequest struct {
	scoring.PlayerStats
	// Position overrides is_forward when given.
	Position string `json:"position"`
}

type calculateResponse struct {
	TotalPoints float64           `json:"total_points"`
	IsForward   bool              `json:"is_forward"`
	Breakdown   scoring.Breakdown `json:"breakdown"`
}

// Calculate scores a single stat line without storing it.
func (h *ScoringHandler) Calculate(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	stats := req.PlayerStats
	if req.Position != "" {
		position, err := rugby.ParsePosition(req.Position)
		if err != nil {
			utils.SendValidationError(c, "Invalid position", err.Error())
			return
		}
		stats.IsForward = position.IsForward()
	}

	breakdown := scoring.CalculateBreakdown(stats)
	utils.SendSuccess(c, calculateResponse{
		TotalPoints: breakdown.Total,
		IsForward:   stats.IsForward,
		Breakdown:   breakdown,
	})
}
