package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/f1-predictor/internal/features"
)

// Input bounds for the numeric race parameters.
const (
	MinGrid  = 1
	MaxGrid  = 20
	MinRound = 1
	MaxRound = 24
)

// PredictionRequest holds the race parameters submitted for one prediction
type PredictionRequest struct {
	Grid   int    `json:"grid" validate:"min=1,max=20"`
	Round  int    `json:"round" validate:"min=1,max=24"`
	Driver string `json:"driver" validate:"required"`
	Team   string `json:"team" validate:"required"`
	Race   string `json:"race" validate:"required"`
}

// DefaultPredictionRequest returns the form defaults
func DefaultPredictionRequest() PredictionRequest {
	return PredictionRequest{Grid: MinGrid, Round: MinRound}
}

// Input converts the request into the feature builder input
func (r PredictionRequest) Input() features.Input {
	return features.Input{
		Grid:   r.Grid,
		Round:  r.Round,
		Driver: r.Driver,
		Team:   r.Team,
		Race:   r.Race,
	}
}

// String returns a compact description used in logs
func (r PredictionRequest) String() string {
	return fmt.Sprintf("grid=%d round=%d driver=%q team=%q race=%q", r.Grid, r.Round, r.Driver, r.Team, r.Race)
}

// PredictionResult represents the classifier's answer for one request
type PredictionResult struct {
	ID           uuid.UUID           `json:"id"`
	Request      PredictionRequest   `json:"request"`
	Probability  float64             `json:"probability" validate:"gte=0,lte=1"`
	Percentage   string              `json:"percentage"`
	Matches      []features.Match    `json:"matches"`
	Unmatched    []features.Category `json:"unmatched,omitempty"`
	Vector       *features.Vector    `json:"vector,omitempty"`
	ModelVersion string              `json:"model_version,omitempty"`
	Classifier   string              `json:"classifier"`
	CacheHit     bool                `json:"cache_hit"`
	PredictedAt  time.Time           `json:"predicted_at"`
}

// Message returns the user-facing result line
func (p *PredictionResult) Message() string {
	return fmt.Sprintf("Winning Probability: %s", p.Percentage)
}
