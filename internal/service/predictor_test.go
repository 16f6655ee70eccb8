package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/f1-predictor/internal/artifact"
	"github.com/yourusername/f1-predictor/internal/config"
	"github.com/yourusername/f1-predictor/internal/features"
	"github.com/yourusername/f1-predictor/internal/ml"
	"github.com/yourusername/f1-predictor/internal/models"
)

const testArtifactJSON = `{
  "model": {
    "type": "logistic",
    "version": "2024.1",
    "intercept": -1.0,
    "coefficients": {
      "Grid": -0.1,
      "Round": 0.0,
      "Driver_Max Verstappen": 1.5,
      "Team_Red Bull": 0.5,
      "Race_Bahrain Grand Prix": 0.0
    }
  },
  "features": ["Grid", "Round", "Driver_Max Verstappen", "Team_Red Bull", "Race_Bahrain Grand Prix"]
}`

// MockClassifier mocks a classifier backend
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Name() string {
	return "mock"
}

func (m *MockClassifier) PredictProba(ctx context.Context, columns []string, row []float64) (float64, error) {
	args := m.Called(ctx, columns, row)
	return args.Get(0).(float64), args.Error(1)
}

func testArtifact(t *testing.T) *artifact.Artifact {
	t.Helper()
	a, err := artifact.Decode([]byte(testArtifactJSON))
	require.NoError(t, err)
	return a
}

func testLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	return log, buf
}

func verstappenRequest() models.PredictionRequest {
	return models.PredictionRequest{
		Grid:   3,
		Round:  1,
		Driver: "Max Verstappen",
		Team:   "Red Bull",
		Race:   "Bahrain Grand Prix",
	}
}

func TestPredictorChoices(t *testing.T) {
	log, _ := testLogger()
	p := NewPredictor(testArtifact(t), &MockClassifier{}, nil, PredictorOptions{}, log)

	choices := p.Choices()
	assert.Equal(t, []string{"Max Verstappen"}, choices.Drivers)
	assert.Equal(t, []string{"Red Bull"}, choices.Teams)
	assert.Equal(t, []string{"Bahrain Grand Prix"}, choices.Races)
	assert.Empty(t, choices.Fallback)
	assert.Equal(t, 5, p.Schema().Len())
	assert.Equal(t, "2024.1", p.ModelVersion())
}

func TestPredictSendsBuiltVector(t *testing.T) {
	log, _ := testLogger()
	clf := &MockClassifier{}
	columns := []string{"Grid", "Round", "Driver_Max Verstappen", "Team_Red Bull", "Race_Bahrain Grand Prix"}
	clf.On("PredictProba", mock.Anything, columns, []float64{3, 1, 1, 1, 1}).Return(0.1234, nil).Once()

	p := NewPredictor(testArtifact(t), clf, nil, PredictorOptions{ExposeVector: true}, log)

	result, err := p.Predict(context.Background(), verstappenRequest())
	require.NoError(t, err)

	assert.Equal(t, 0.1234, result.Probability)
	assert.Equal(t, "12.34%", result.Percentage)
	assert.Equal(t, "Winning Probability: 12.34%", result.Message())
	assert.Equal(t, "mock", result.Classifier)
	assert.Empty(t, result.Unmatched)
	require.NotNil(t, result.Vector)
	assert.Equal(t, map[string]float64{
		"Grid":                    3,
		"Round":                   1,
		"Driver_Max Verstappen":   1,
		"Team_Red Bull":           1,
		"Race_Bahrain Grand Prix": 1,
	}, result.Vector.Map())
	clf.AssertExpectations(t)
}

func TestPredictWithLogisticModel(t *testing.T) {
	log, _ := testLogger()
	a := testArtifact(t)
	clf, err := ml.NewModelClassifier(a.Model)
	require.NoError(t, err)

	p := NewPredictor(a, clf, nil, PredictorOptions{}, log)

	result, err := p.Predict(context.Background(), verstappenRequest())
	require.NoError(t, err)

	// sigmoid(-1 - 0.3 + 1.5 + 0.5) = sigmoid(0.7)
	assert.InDelta(t, 0.668188, result.Probability, 1e-6)
	assert.Equal(t, "66.82%", result.Percentage)
	assert.Nil(t, result.Vector)
}

func TestPredictUnmatchedCategoryIsNotAnError(t *testing.T) {
	log, buf := testLogger()
	clf := &MockClassifier{}
	clf.On("PredictProba", mock.Anything, mock.Anything, []float64{3, 1, 0, 1, 1}).Return(0.05, nil).Once()

	p := NewPredictor(testArtifact(t), clf, nil, PredictorOptions{}, log)

	req := verstappenRequest()
	req.Driver = "Unknown Rookie"
	result, err := p.Predict(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []features.Category{features.CategoryDriver}, result.Unmatched)
	assert.Contains(t, buf.String(), "Choice matched no feature column")
	clf.AssertExpectations(t)
}

func TestPredictMissingColumn(t *testing.T) {
	log, _ := testLogger()
	clf := &MockClassifier{}
	clf.On("PredictProba", mock.Anything, mock.Anything, mock.Anything).
		Return(0.0, &ml.MissingColumnError{Column: "Driver_Lando Norris"})

	p := NewPredictor(testArtifact(t), clf, nil, PredictorOptions{}, log)

	result, err := p.Predict(context.Background(), verstappenRequest())
	assert.Nil(t, result)

	var perr *PredictionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindMissingColumn, perr.Kind)
	assert.Equal(t, "Driver_Lando Norris", perr.Column)
	assert.Equal(t, "Missing feature column: 'Driver_Lando Norris'. Please verify model features.", err.Error())

	column, ok := ml.MissingColumn(err)
	assert.True(t, ok)
	assert.Equal(t, "Driver_Lando Norris", column)
}

func TestPredictGenericError(t *testing.T) {
	log, _ := testLogger()
	clf := &MockClassifier{}
	clf.On("PredictProba", mock.Anything, mock.Anything, mock.Anything).
		Return(0.0, errors.New("connection reset"))

	p := NewPredictor(testArtifact(t), clf, nil, PredictorOptions{}, log)

	_, err := p.Predict(context.Background(), verstappenRequest())

	var perr *PredictionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindGeneric, perr.Kind)
	assert.Equal(t, "Prediction error: connection reset", err.Error())
}

func TestPredictorRemainsUsableAfterError(t *testing.T) {
	log, _ := testLogger()
	clf := &MockClassifier{}
	clf.On("PredictProba", mock.Anything, mock.Anything, mock.Anything).Return(0.0, errors.New("transient")).Once()
	clf.On("PredictProba", mock.Anything, mock.Anything, mock.Anything).Return(0.5, nil).Once()

	p := NewPredictor(testArtifact(t), clf, nil, PredictorOptions{}, log)

	_, err := p.Predict(context.Background(), verstappenRequest())
	require.Error(t, err)

	result, err := p.Predict(context.Background(), verstappenRequest())
	require.NoError(t, err)
	assert.Equal(t, "50.00%", result.Percentage)
}

func TestPredictInvalidRequest(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *models.PredictionRequest)
		message string
	}{
		{name: "grid too high", mutate: func(r *models.PredictionRequest) { r.Grid = 21 }, message: "grid must be between 1 and 20"},
		{name: "grid zero", mutate: func(r *models.PredictionRequest) { r.Grid = 0 }, message: "grid must be between 1 and 20"},
		{name: "round zero", mutate: func(r *models.PredictionRequest) { r.Round = 0 }, message: "round must be between 1 and 24"},
		{name: "round too high", mutate: func(r *models.PredictionRequest) { r.Round = 25 }, message: "round must be between 1 and 24"},
		{name: "driver missing", mutate: func(r *models.PredictionRequest) { r.Driver = "" }, message: "driver is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, _ := testLogger()
			clf := &MockClassifier{}
			p := NewPredictor(testArtifact(t), clf, nil, PredictorOptions{}, log)

			req := verstappenRequest()
			tt.mutate(&req)
			_, err := p.Predict(context.Background(), req)

			var perr *PredictionError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, KindInvalidRequest, perr.Kind)
			assert.Contains(t, perr.Message, tt.message)
			assert.ErrorIs(t, err, models.ErrInvalidRequest)
			clf.AssertNotCalled(t, "PredictProba", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPredictIsIdempotentAndCached(t *testing.T) {
	log, _ := testLogger()
	clf := &MockClassifier{}
	clf.On("PredictProba", mock.Anything, mock.Anything, mock.Anything).Return(0.42, nil).Once()

	cache := ml.NewPredictionCache(time.Minute, 10)
	p := NewPredictor(testArtifact(t), clf, cache, PredictorOptions{}, log)

	first, err := p.Predict(context.Background(), verstappenRequest())
	require.NoError(t, err)
	second, err := p.Predict(context.Background(), verstappenRequest())
	require.NoError(t, err)

	assert.False(t, first.CacheHit)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Probability, second.Probability)
	assert.Equal(t, first.Percentage, second.Percentage)
	assert.NotEqual(t, first.ID, second.ID)
	clf.AssertNumberOfCalls(t, "PredictProba", 1)
}

func TestFormatPercentage(t *testing.T) {
	tests := []struct {
		probability float64
		want        string
	}{
		{0, "0.00%"},
		{1, "100.00%"},
		{0.1234, "12.34%"},
		{0.5, "50.00%"},
		{0.00005, "0.01%"},
		{0.123449, "12.34%"},
		{0.01235, "1.23%"},
		{0.10125, "10.12%"},
		{0.56785, "56.78%"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPercentage(tt.probability))
	}
}

func TestBootstrap(t *testing.T) {
	log, _ := testLogger()
	cfg := &config.Config{
		Classifier: config.ClassifierConfig{Backend: ml.BackendArtifact, TimeoutSeconds: 1},
		Cache:      config.CacheConfig{Enabled: true, TTLSeconds: 60, MaxSize: 10},
	}

	p, err := Bootstrap(cfg, artifact.NewLoader("../artifact/testdata/f1_model.json"), log)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, ml.ModelTypeLogistic, p.ClassifierName())
	assert.Contains(t, p.Choices().Drivers, "Max Verstappen")

	result, err := p.Predict(context.Background(), models.PredictionRequest{
		Grid: 1, Round: 5, Driver: "Max Verstappen", Team: "Red Bull Racing", Race: "Monaco Grand Prix",
	})
	require.NoError(t, err)
	assert.Equal(t, "69.00%", result.Percentage)
}

func TestBootstrapMissingArtifact(t *testing.T) {
	log, _ := testLogger()
	cfg := &config.Config{Classifier: config.ClassifierConfig{Backend: ml.BackendArtifact}}

	p, err := Bootstrap(cfg, artifact.NewLoader(filepath.Join(t.TempDir(), "f1_model.json")), log)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, artifact.ErrArtifactNotFound)
}

func TestBootstrapRemoteClassifierTripsBreaker(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	log, _ := testLogger()
	cfg := &config.Config{
		Classifier: config.ClassifierConfig{
			Backend:                ml.BackendHTTP,
			URL:                    srv.URL,
			TimeoutSeconds:         1,
			BreakerFailures:        2,
			BreakerWindowSeconds:   60,
			BreakerCooldownSeconds: 60,
		},
	}

	p, err := Bootstrap(cfg, artifact.NewLoader("../artifact/testdata/f1_model.json"), log)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, ml.BackendHTTP, p.ClassifierName())

	req := models.PredictionRequest{Grid: 1, Round: 1, Driver: "Max Verstappen", Team: "Mercedes", Race: "Monaco Grand Prix"}
	for i := 0; i < 3; i++ {
		_, err := p.Predict(context.Background(), req)
		var perr *PredictionError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, KindGeneric, perr.Kind)
		assert.ErrorIs(t, err, ml.ErrClassifierUnavailable)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
