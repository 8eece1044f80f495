package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	JobKindPredictions = "predictions"
	JobKindOptimise    = "optimise"
)

// Job tracks a background task started over the API or by the scheduler.
type Job struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	Kind            string         `gorm:"size:30;not null;index" json:"kind"`
	Status          string         `gorm:"size:20;not null;default:'in_progress';index" json:"status"`
	Season          int            `json:"season"`
	Round           int            `json:"round"`
	Result          datatypes.JSON `json:"result,omitempty"`
	Error           string         `gorm:"type:text" json:"error,omitempty"`
	StartedAt       time.Time      `gorm:"not null" json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	DurationSeconds *float64       `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (Job) TableName() string {
	return "jobs"
}

// Done reports whether the job reached a terminal status.
func (j Job) Done() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// OptimisationRun is the audit record of one optimise request.
type OptimisationRun struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	RequestID            string         `gorm:"size:36;index" json:"request_id"`
	Season               int            `gorm:"not null;index:idx_run_season_round" json:"season"`
	Round                int            `gorm:"not null;index:idx_run_season_round" json:"round"`
	Budget               float64        `json:"budget"`
	MaxPerCountry        int            `json:"max_per_country"`
	Candidates           int            `json:"candidates"`
	SolverStatus         string         `gorm:"size:20" json:"solver_status"`
	TotalCost            float64        `json:"total_cost"`
	TotalPredictedPoints float64        `json:"total_predicted_points"`
	DurationMs           int64          `json:"duration_ms"`
	Request              datatypes.JSON `json:"request"`
	Response             datatypes.JSON `json:"response"`
	CreatedAt            time.Time      `json:"created_at"`
}

func (OptimisationRun) TableName() string {
	return "optimisation_runs"
}

// All lists every model for AutoMigrate, parents first.
func All() []interface{} {
	return []interface{}{
		&Player{},
		&FantasyPrice{},
		&TeamSelection{},
		&Prediction{},
		&MatchStats{},
		&Odds{},
		&MatchOdds{},
		&Job{},
		&OptimisationRun{},
	}
}
