package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/f1-predictor/internal/artifact"
	"github.com/yourusername/f1-predictor/internal/config"
	"github.com/yourusername/f1-predictor/internal/metrics"
	"github.com/yourusername/f1-predictor/internal/ml"
)

// Bootstrap loads the artifact through loader and wires the configured
// classifier and cache. An artifact failure is returned unwrapped so callers
// can render artifact.BlockingMessage.
func Bootstrap(cfg *config.Config, loader *artifact.Loader, log *logrus.Logger) (*Predictor, error) {
	a, err := loader.Get()
	if err != nil {
		metrics.UpdateArtifactLoaded(false)
		log.WithError(err).WithField("path", loader.Path()).Error("Failed to load model artifact")
		return nil, err
	}
	metrics.UpdateArtifactLoaded(true)
	if dups := a.Duplicates(); len(dups) > 0 {
		log.WithField("columns", dups).Warn("Model artifact lists duplicate feature columns; keeping first occurrence")
	}

	classifier, err := ml.NewClassifier(&cfg.Classifier, a.Model, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	if (cfg.Classifier.Backend == ml.BackendHTTP || cfg.Classifier.Backend == ml.BackendGRPC) && cfg.Classifier.BreakerFailures > 0 {
		classifier = ml.NewBreakerClassifier(classifier, ml.BreakerConfig{
			MaxFailureCount:   cfg.Classifier.BreakerFailures,
			FailureTimeWindow: cfg.BreakerWindow(),
			CooldownPeriod:    cfg.BreakerCooldown(),
		}, log)
	}

	var cache *ml.PredictionCache
	if cfg.Cache.Enabled {
		cache = ml.NewPredictionCache(cfg.CacheTTL(), cfg.Cache.MaxSize)
	}

	log.WithFields(logrus.Fields{
		"artifact":   loader.Path(),
		"classifier": classifier.Name(),
		"columns":    a.Schema().Len(),
		"cache":      cfg.Cache.Enabled,
	}).Info("Predictor initialized")

	return NewPredictor(a, ml.Instrument(classifier), cache, PredictorOptions{
		ModelVersion: cfg.Classifier.ModelVersion,
		ExposeVector: cfg.Server.ExposeVector,
	}, log), nil
}
