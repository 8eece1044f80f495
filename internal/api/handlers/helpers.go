package handlers

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/api/middleware"
	"github.com/stitts-dev/fantasy-rugby/internal/fixtures"
	"github.com/stitts-dev/fantasy-rugby/internal/services"
	"github.com/stitts-dev/fantasy-rugby/pkg/utils"
)

// RoundResolver fills in the season and round a request leaves out.
type RoundResolver struct {
	Season   int
	Schedule *fixtures.Schedule
}

// Resolve defaults season to the configured one and round to the current
// round of that season.
func (r RoundResolver) Resolve(season, round int) (int, int, error) {
	if season == 0 {
		season = r.Season
	}
	if round == 0 {
		round = r.Schedule.CurrentRound(season)
	}
	if round < 1 {
		return 0, 0, fmt.Errorf("no fixtures for season %d", season)
	}
	return season, round, nil
}

// FromQuery reads optional season and round query parameters.
func (r RoundResolver) FromQuery(c *gin.Context) (int, int, error) {
	season, err := optionalInt(c, "season")
	if err != nil {
		return 0, 0, err
	}
	round, err := optionalInt(c, "round")
	if err != nil {
		return 0, 0, err
	}
	return r.Resolve(season, round)
}

func optionalInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func optionalFloat(c *gin.Context, name string) (*float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return &v, nil
}

func optionalBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return &v, nil
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		utils.SendValidationError(c, "Invalid "+name, c.Param(name))
		return 0, false
	}
	return uint(id), true
}

// sendServiceError maps service sentinels onto HTTP responses.
func sendServiceError(c *gin.Context, logger *logrus.Logger, err error, notFound string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.SendNotFound(c, notFound)
	case errors.Is(err, services.ErrInvalidInput):
		utils.SendValidationError(c, "Invalid request", err.Error())
	case errors.Is(err, services.ErrConflict):
		utils.SendConflict(c, "Conflict", err.Error())
	default:
		logger.WithFields(logrus.Fields{
			"request_id": c.GetString(middleware.RequestIDKey),
			"path":       c.Request.URL.Path,
		}).WithError(err).Error("Request failed")
		_ = c.Error(err)
		utils.SendInternalError(c, "Internal server error")
	}
}
