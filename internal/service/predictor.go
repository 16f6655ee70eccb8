// Package service turns race choices into win probabilities.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/f1-predictor/internal/artifact"
	"github.com/yourusername/f1-predictor/internal/features"
	"github.com/yourusername/f1-predictor/internal/logger"
	"github.com/yourusername/f1-predictor/internal/metrics"
	"github.com/yourusername/f1-predictor/internal/ml"
	"github.com/yourusername/f1-predictor/internal/models"
)

// PredictorOptions tunes a Predictor.
type PredictorOptions struct {
	// ModelVersion overrides the version declared in the artifact.
	ModelVersion string
	// ExposeVector attaches the built feature vector to each result.
	ExposeVector bool
}

// Predictor holds the loaded artifact and classifier. It is immutable after
// construction and safe for concurrent use.
type Predictor struct {
	artifact     *artifact.Artifact
	schema       *features.Schema
	choices      features.Choices
	classifier   ml.Classifier
	cache        *ml.PredictionCache
	validate     *validator.Validate
	modelVersion string
	exposeVector bool
	logger       *logrus.Logger
	predLogger   *logger.PredictionLogger
}

// NewPredictor creates a predictor. cache may be nil to disable caching.
func NewPredictor(a *artifact.Artifact, classifier ml.Classifier, cache *ml.PredictionCache, opts PredictorOptions, log *logrus.Logger) *Predictor {
	if log == nil {
		log = logrus.New()
	}

	version := opts.ModelVersion
	if version == "" {
		version = a.Model.Version
	}

	p := &Predictor{
		artifact:     a,
		schema:       a.Schema(),
		choices:      features.Resolve(a.Schema()),
		classifier:   classifier,
		cache:        cache,
		validate:     newRequestValidator(),
		modelVersion: version,
		exposeVector: opts.ExposeVector,
		logger:       log,
		predLogger:   logger.NewPredictionLogger(log),
	}

	fallback := make([]string, 0, len(p.choices.Fallback))
	for _, cat := range p.choices.Fallback {
		fallback = append(fallback, string(cat))
	}
	p.predLogger.LogSchemaResolved(p.schema.Len(), len(p.choices.Drivers), len(p.choices.Teams), len(p.choices.Races), fallback)
	metrics.UpdateSchemaColumns(p.schema.Len())

	return p
}

// Choices returns the selectable drivers, teams and races.
func (p *Predictor) Choices() features.Choices {
	return p.choices
}

// Schema returns the feature schema of the loaded artifact.
func (p *Predictor) Schema() *features.Schema {
	return p.schema
}

// ModelVersion returns the version reported with each prediction.
func (p *Predictor) ModelVersion() string {
	return p.modelVersion
}

// ClassifierName returns the name of the active classifier.
func (p *Predictor) ClassifierName() string {
	return p.classifier.Name()
}

// Predict builds the feature vector for req and scores it. Failures are
// returned as *PredictionError.
func (p *Predictor) Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error) {
	start := time.Now()
	requestID := uuid.New()

	if err := p.validateRequest(req); err != nil {
		p.predLogger.LogPredictionError(requestID.String(), p.classifier.Name(), string(KindInvalidRequest), err)
		return nil, err
	}

	vec, report := features.Build(req.Input(), p.schema)
	for _, cat := range report.Unmatched() {
		p.predLogger.LogUnmatched(requestID.String(), string(cat), req.Input().Value(cat))
		metrics.RecordUnmatched(string(cat))
	}

	probability, cacheHit, err := p.score(ctx, req, vec)
	if err != nil {
		perr := p.classifyError(err)
		p.predLogger.LogPredictionError(requestID.String(), p.classifier.Name(), string(perr.Kind), err)
		return nil, perr
	}

	result := &models.PredictionResult{
		ID:           requestID,
		Request:      req,
		Probability:  probability,
		Percentage:   FormatPercentage(probability),
		Matches:      report.Matches,
		Unmatched:    report.Unmatched(),
		ModelVersion: p.modelVersion,
		Classifier:   p.classifier.Name(),
		CacheHit:     cacheHit,
		PredictedAt:  time.Now().UTC(),
	}
	if p.exposeVector {
		result.Vector = vec
	}

	latency := float64(time.Since(start).Microseconds()) / 1000
	p.predLogger.LogPrediction(requestID.String(), p.classifier.Name(), probability, len(vec.Active()), cacheHit, latency)

	return result, nil
}

// score returns the classifier probability, consulting the cache first.
func (p *Predictor) score(ctx context.Context, req models.PredictionRequest, vec *features.Vector) (float64, bool, error) {
	key := ml.CacheKey{
		Grid:         req.Grid,
		Round:        req.Round,
		Driver:       req.Driver,
		Team:         req.Team,
		Race:         req.Race,
		Classifier:   p.classifier.Name(),
		ModelVersion: p.modelVersion,
	}

	if p.cache != nil {
		if probability, ok := p.cache.Get(key); ok {
			ml.PredictionsTotal.WithLabelValues(p.classifier.Name(), ml.OutcomeCached).Inc()
			return probability, true, nil
		}
	}

	probability, err := p.classifier.PredictProba(ctx, vec.Columns(), vec.Values())
	if err != nil {
		return 0, false, err
	}

	if p.cache != nil {
		p.cache.Set(key, probability)
	}
	return probability, false, nil
}

func (p *Predictor) classifyError(err error) *PredictionError {
	if column, ok := ml.MissingColumn(err); ok {
		return newMissingColumnError(column, err)
	}
	return newGenericError(err)
}

// Close releases classifier resources.
func (p *Predictor) Close() error {
	if closer, ok := p.classifier.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// FormatPercentage renders a probability as a percentage with two decimals.
// The probability is scaled in float64 before rounding.
func FormatPercentage(probability float64) string {
	return decimal.NewFromFloat(probability*100).StringFixed(2) + "%"
}

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (p *Predictor) validateRequest(req models.PredictionRequest) error {
	err := p.validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return &PredictionError{
			Kind:    KindInvalidRequest,
			Message: fmt.Sprintf("Invalid request: %v", err),
			Err:     fmt.Errorf("%w: %v", models.ErrInvalidRequest, err),
		}
	}

	problems := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required":
			problems = append(problems, fmt.Sprintf("%s is required", fe.Field()))
		case "min", "max":
			problems = append(problems, fmt.Sprintf("%s must be between %s", fe.Field(), boundsFor(fe.Field())))
		default:
			problems = append(problems, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	message := strings.Join(problems, "; ")

	return &PredictionError{
		Kind:    KindInvalidRequest,
		Message: "Invalid request: " + message,
		Err:     fmt.Errorf("%w: %s", models.ErrInvalidRequest, message),
	}
}

func boundsFor(field string) string {
	switch field {
	case "grid":
		return fmt.Sprintf("%d and %d", models.MinGrid, models.MaxGrid)
	case "round":
		return fmt.Sprintf("%d and %d", models.MinRound, models.MaxRound)
	default:
		return "the allowed bounds"
	}
}
