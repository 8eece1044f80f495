package predictor

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/floats"
)

// FeatureNames is the column order of Features.Vector.
var FeatureNames = []string{
	"tries_last_3", "tries_last_5", "tackles_last_3", "tackles_last_5",
	"metres_last_3", "metres_last_5", "turnovers_last_3",
	"fantasy_points_last_3", "fantasy_points_last_5",
	"is_kicker", "is_forward", "is_home", "is_starting", "anytime_try_odds",
}

// Model is a trained regressor over Features.Vector.
type Model interface {
	Predict(x []float64) (float64, error)
	Version() string
	FeatureImportance() map[string]float64
}

// LinearModel is the on-disk artifact produced by the training notebook:
// a linear regression exported as JSON.
type LinearModel struct {
	ModelVersion string             `json:"version"`
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
	Importances  map[string]float64 `json:"feature_importances,omitempty"`

	weights []float64
}

// LoadLinearModel reads and validates a model artifact.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	if err := m.compile(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *LinearModel) compile() error {
	if len(m.Coefficients) == 0 {
		return fmt.Errorf("model artifact has no coefficients")
	}
	known := make(map[string]bool, len(FeatureNames))
	for _, name := range FeatureNames {
		known[name] = true
	}
	for name := range m.Coefficients {
		if !known[name] {
			return fmt.Errorf("model artifact references unknown feature %q", name)
		}
	}

	m.weights = make([]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		m.weights[i] = m.Coefficients[name]
	}
	if m.ModelVersion == "" {
		m.ModelVersion = "linear"
	}
	return nil
}

func (m *LinearModel) Predict(x []float64) (float64, error) {
	if m.weights == nil {
		if err := m.compile(); err != nil {
			return 0, err
		}
	}
	if len(x) != len(m.weights) {
		return 0, fmt.Errorf("expected %d features, got %d", len(m.weights), len(x))
	}
	return m.Intercept + floats.Dot(m.weights, x), nil
}

func (m *LinearModel) Version() string {
	return m.ModelVersion
}

// FeatureImportance returns the exported importances, falling back to
// normalised absolute coefficients.
func (m *LinearModel) FeatureImportance() map[string]float64 {
	if len(m.Importances) > 0 {
		out := make(map[string]float64, len(m.Importances))
		for k, v := range m.Importances {
			out[k] = v
		}
		return out
	}

	abs := make([]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		v := m.Coefficients[name]
		if v < 0 {
			v = -v
		}
		abs[i] = v
	}
	total := floats.Sum(abs)
	out := make(map[string]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		if total > 0 {
			out[name] = abs[i] / total
		} else {
			out[name] = 0
		}
	}
	return out
}
