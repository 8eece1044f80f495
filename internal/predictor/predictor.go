package predictor

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/fantasy-rugby/internal/scoring"
)

const (
	HeuristicVersion = "heuristic_v1"

	// z for a two-sided 90% interval
	confidenceZ = 1.645
	minStd      = 3.0
	stdFraction = 0.2

	forwardDefault = 12.0
	backDefault    = 15.0
	kickerBonus    = 3.0
	benchFactor    = 0.4
	awayFactor     = 0.95
	tryDamping     = 0.3
)

// Features are recent-form inputs for one player and one round.
type Features struct {
	TriesLast3         float64  `json:"tries_last_3"`
	TriesLast5         float64  `json:"tries_last_5"`
	TacklesLast3       float64  `json:"tackles_last_3"`
	TacklesLast5       float64  `json:"tackles_last_5"`
	MetresLast3        float64  `json:"metres_last_3"`
	MetresLast5        float64  `json:"metres_last_5"`
	TurnoversLast3     float64  `json:"turnovers_last_3"`
	FantasyPointsLast3 float64  `json:"fantasy_points_last_3"`
	FantasyPointsLast5 float64  `json:"fantasy_points_last_5"`
	IsKicker           bool     `json:"is_kicker"`
	IsForward          bool     `json:"is_forward"`
	IsHome             bool     `json:"is_home"`
	IsStarting         bool     `json:"is_starting"`
	AnytimeTryOdds     *float64 `json:"anytime_try_odds,omitempty"`
}

// DefaultFeatures mirrors a player with no history who starts at home.
func DefaultFeatures() Features {
	return Features{IsHome: true, IsStarting: true}
}

// Vector lays the features out in FeatureNames order.
func (f Features) Vector() []float64 {
	odds := 0.0
	if f.AnytimeTryOdds != nil {
		odds = *f.AnytimeTryOdds
	}
	return []float64{
		f.TriesLast3,
		f.TriesLast5,
		f.TacklesLast3,
		f.TacklesLast5,
		f.MetresLast3,
		f.MetresLast5,
		f.TurnoversLast3,
		f.FantasyPointsLast3,
		f.FantasyPointsLast5,
		boolToFloat(f.IsKicker),
		boolToFloat(f.IsForward),
		boolToFloat(f.IsHome),
		boolToFloat(f.IsStarting),
		odds,
	}
}

// Result is a point estimate with an approximate 90% interval.
type Result struct {
	PredictedPoints float64 `json:"predicted_points"`
	ConfidenceLower float64 `json:"confidence_lower"`
	ConfidenceUpper float64 `json:"confidence_upper"`
	ModelVersion    string  `json:"model_version"`
}

// Predictor turns Features into predicted fantasy points. It delegates to a
// trained Model when one is loaded and falls back to a form heuristic.
type Predictor struct {
	model  Model
	logger *logrus.Logger
}

// New loads the artifact at modelPath. A missing or broken artifact is not an
// error: the predictor runs on the heuristic.
func New(modelPath string, logger *logrus.Logger) *Predictor {
	p := &Predictor{logger: logger}
	if modelPath == "" {
		return p
	}

	m, err := LoadLinearModel(modelPath)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"model_path": modelPath,
			"error":      err.Error(),
		}).Info("No usable prediction model, using heuristic")
		return p
	}

	logger.WithFields(logrus.Fields{
		"model_path":    modelPath,
		"model_version": m.Version(),
	}).Info("Loaded prediction model")
	p.model = m
	return p
}

// NewWithModel wraps an already constructed model; nil selects the heuristic.
func NewWithModel(model Model, logger *logrus.Logger) *Predictor {
	return &Predictor{model: model, logger: logger}
}

// HasModel reports whether predictions come from a trained model.
func (p *Predictor) HasModel() bool {
	return p.model != nil
}

// ModelVersion is stored alongside each prediction.
func (p *Predictor) ModelVersion() string {
	if p.model == nil {
		return HeuristicVersion
	}
	return p.model.Version()
}

func (p *Predictor) Predict(f Features) Result {
	if p.model == nil {
		return Heuristic(f)
	}

	prediction, err := p.model.Predict(f.Vector())
	if err != nil {
		p.logger.WithError(err).Warn("Model prediction failed, using heuristic")
		return Heuristic(f)
	}

	lower, upper := interval(prediction)
	return Result{
		PredictedPoints: prediction,
		ConfidenceLower: lower,
		ConfidenceUpper: upper,
		ModelVersion:    p.model.Version(),
	}
}

func (p *Predictor) PredictBatch(features []Features) []Result {
	results := make([]Result, len(features))
	for i, f := range features {
		results[i] = p.Predict(f)
	}
	return results
}

// FeatureImportance is empty when no model is loaded.
func (p *Predictor) FeatureImportance() map[string]float64 {
	if p.model == nil {
		return map[string]float64{}
	}
	return p.model.FeatureImportance()
}

// Heuristic predicts from recent fantasy points with position, role, venue
// and try-odds adjustments.
func Heuristic(f Features) Result {
	base := f.FantasyPointsLast3*0.6 + f.FantasyPointsLast5*0.4

	if base == 0 {
		if f.IsForward {
			base = forwardDefault
		} else {
			base = backDefault
		}
	}

	if f.IsKicker {
		base += kickerBonus
	}
	if !f.IsStarting {
		base *= benchFactor
	}
	if !f.IsHome {
		base *= awayFactor
	}

	if f.AnytimeTryOdds != nil && *f.AnytimeTryOdds > 0 {
		tryProb := 1.0 / *f.AnytimeTryOdds
		tryValue := float64(scoring.BackTryPoints)
		if f.IsForward {
			tryValue = scoring.ForwardTryPoints
		}
		base += tryProb * tryValue * tryDamping
	}

	lower, upper := interval(base)
	return Result{
		PredictedPoints: round2(base),
		ConfidenceLower: round2(lower),
		ConfidenceUpper: round2(upper),
		ModelVersion:    HeuristicVersion,
	}
}

// interval assumes std is 20% of the estimate, floored at 3 points.
func interval(prediction float64) (float64, float64) {
	std := math.Max(minStd, prediction*stdFraction)
	return prediction - confidenceZ*std, prediction + confidenceZ*std
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
