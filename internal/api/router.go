package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/api/handlers"
	"github.com/stitts-dev/fantasy-rugby/internal/api/middleware"
	"github.com/stitts-dev/fantasy-rugby/internal/fixtures"
	"github.com/stitts-dev/fantasy-rugby/internal/optimizer"
	"github.com/stitts-dev/fantasy-rugby/internal/predictor"
	"github.com/stitts-dev/fantasy-rugby/internal/services"
	"github.com/stitts-dev/fantasy-rugby/pkg/config"
	"github.com/stitts-dev/fantasy-rugby/pkg/database"
	"github.com/stitts-dev/fantasy-rugby/pkg/utils"
)

// Dependencies is everything the HTTP layer needs.
type Dependencies struct {
	Config   *config.Config
	DB       *database.DB
	Logger   *logrus.Logger
	Cache    *services.CacheService
	Schedule *fixtures.Schedule

	Predictor   *predictor.Predictor
	Optimiser   *optimizer.TeamOptimiser
	Stats       *services.StatsService
	Roster      *services.RosterService
	Predictions *services.PredictionService
	Odds        *services.OddsService
	Validation  *services.ValidationService
	Tracker     *services.JobTracker
	Hub         *services.JobHub
}

// NewDependencies builds the services on top of the shared infrastructure.
// A nil hub disables job streaming.
func NewDependencies(
	cfg *config.Config,
	db *database.DB,
	cache *services.CacheService,
	jobs services.JobStore,
	hub *services.JobHub,
	p *predictor.Predictor,
	schedule *fixtures.Schedule,
	logger *logrus.Logger,
) Dependencies {
	if schedule == nil {
		schedule = fixtures.Default()
	}
	stats := services.NewStatsService(db, logger)
	return Dependencies{
		Config:      cfg,
		DB:          db,
		Logger:      logger,
		Cache:       cache,
		Schedule:    schedule,
		Predictor:   p,
		Optimiser:   optimizer.NewTeamOptimiser(logger, cfg.OptimizerMaxNodes, cfg.OptimizationDeadline()),
		Stats:       stats,
		Roster:      services.NewRosterService(db, stats, logger),
		Predictions: services.NewPredictionService(db, p, stats, schedule, cache, logger),
		Odds:        services.NewOddsService(db, cache, logger),
		Validation:  services.NewValidationService(db, schedule, logger),
		Tracker:     services.NewJobTracker(jobs, hub, logger),
		Hub:         hub,
	}
}

// NewRouter builds the gin engine with middleware, /health and /api/v1.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORS(deps.Config.CorsOrigins))

	health := handlers.NewHealthHandler(deps.DB, deps.Cache, deps.Predictor)
	router.GET("/health", health.GetHealth)

	SetupRoutes(router.Group("/api/v1"), deps)

	router.NoRoute(func(c *gin.Context) {
		utils.SendNotFound(c, "Route not found")
	})
	return router
}

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, deps Dependencies) {
	rounds := handlers.RoundResolver{Season: deps.Config.CurrentSeason, Schedule: deps.Schedule}

	optimizerHandler := handlers.NewOptimizerHandler(deps.DB, deps.Roster, deps.Optimiser, deps.Cache, rounds, deps.Config, deps.Logger)
	playerHandler := handlers.NewPlayerHandler(deps.Roster, deps.Cache, rounds, deps.Logger)
	predictionHandler := handlers.NewPredictionHandler(deps.Predictions, deps.Tracker, rounds, deps.Logger)
	scoringHandler := handlers.NewScoringHandler()
	statsHandler := handlers.NewStatsHandler(deps.Stats, deps.Logger)
	oddsHandler := handlers.NewOddsHandler(deps.Odds, rounds, deps.Logger)
	roundHandler := handlers.NewRoundHandler(deps.Schedule, deps.Validation, rounds, deps.Logger)
	jobHandler := handlers.NewJobHandler(deps.Tracker, deps.Hub, deps.Logger)

	// Optimisation endpoints share one per-IP token bucket
	optimise := group.Group("/optimise")
	optimise.Use(middleware.RateLimit(deps.Config.OptimizeRateLimit, deps.Config.OptimizeRateBurst))
	{
		optimise.POST("", optimizerHandler.Optimise)
		optimise.POST("/custom", optimizerHandler.OptimiseCustom)
	}

	// Roster endpoints
	group.GET("/players", playerHandler.GetPlayers)
	group.GET("/players/compare", playerHandler.ComparePlayers)
	group.GET("/players/:id", playerHandler.GetPlayer)
	group.POST("/players", playerHandler.CreatePlayer)
	group.POST("/prices", playerHandler.UpsertPrice)
	group.POST("/selections", playerHandler.UpsertSelection)

	// Prediction endpoints
	group.GET("/predictions", predictionHandler.GetPredictions)
	group.GET("/predictions/:playerId", predictionHandler.GetPrediction)
	group.POST("/predictions/generate", predictionHandler.Generate)

	group.POST("/scoring/calculate", scoringHandler.Calculate)

	group.POST("/stats/matches", statsHandler.RecordMatch)
	group.GET("/stats/players/:id", statsHandler.GetPlayerStats)
	group.GET("/stats/leaderboard", statsHandler.GetLeaderboard)

	group.POST("/odds/try-scorer", oddsHandler.SaveTryScorerOdds)
	group.POST("/odds/match", oddsHandler.SaveMatchOdds)
	group.GET("/odds", oddsHandler.GetOdds)

	group.GET("/fixtures", roundHandler.GetFixtures)
	group.GET("/matches/current-round", roundHandler.GetCurrentRound)
	group.GET("/matches/tryscorers", oddsHandler.GetTryScorers)
	group.GET("/rounds/:round/validation", roundHandler.GetValidation)

	group.GET("/jobs", jobHandler.ListJobs)
	group.GET("/jobs/:id", jobHandler.GetJob)
	if deps.Hub != nil {
		group.GET("/ws/jobs", jobHandler.StreamJobs)
	}
}
