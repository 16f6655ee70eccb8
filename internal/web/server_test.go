package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/f1-predictor/internal/artifact"
	"github.com/yourusername/f1-predictor/internal/config"
	"github.com/yourusername/f1-predictor/internal/ml"
	"github.com/yourusername/f1-predictor/internal/models"
	"github.com/yourusername/f1-predictor/internal/service"
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

// Same schema, but the model was trained with an extra driver column.
const driftedArtifactJSON = `{
  "model": {
    "type": "logistic",
    "intercept": 0,
    "coefficients": {"Grid": 0, "Round": 0, "Driver_Lando Norris": 1}
  },
  "features": ["Grid", "Round"]
}`

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(&strings.Builder{})
	return log
}

func newTestPredictor(t *testing.T, raw string) *service.Predictor {
	t.Helper()
	a, err := artifact.Decode([]byte(raw))
	require.NoError(t, err)
	clf, err := ml.NewModelClassifier(a.Model)
	require.NoError(t, err)
	return service.NewPredictor(a, clf, nil, service.PredictorOptions{}, testLogger())
}

func newTestServer(t *testing.T, raw string) *Server {
	t.Helper()
	return NewServer(config.ServerConfig{Address: ":0"}, newTestPredictor(t, raw), nil, testLogger())
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestFormRendersChoicesAndDefaults(t *testing.T) {
	s := newTestServer(t, testArtifactJSON)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Predict Probability")
	assert.Contains(t, body, "<option>Max Verstappen</option>")
	assert.Contains(t, body, "<option>Bahrain Grand Prix</option>")
	assert.Contains(t, body, `name="grid" min="1" max="20" value="1"`)
	assert.Contains(t, body, `name="round" min="1" max="24" value="1"`)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestFormShowsFallbackWarning(t *testing.T) {
	s := newTestServer(t, `{"model":{"type":"logistic","intercept":0,"coefficients":{"Grid":0}},"features":["Grid"]}`)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Model schema lacks columns for: driver, team, race")
	assert.Contains(t, w.Body.String(), "<option>Lewis Hamilton</option>")
}

func TestFormPredict(t *testing.T) {
	s := newTestServer(t, testArtifactJSON)

	form := url.Values{
		"grid":   {"3"},
		"round":  {"1"},
		"driver": {"Max Verstappen"},
		"team":   {"Red Bull"},
		"race":   {"Bahrain Grand Prix"},
	}
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(s, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Winning Probability: 66.82%")
	assert.Contains(t, w.Body.String(), "<option selected>Max Verstappen</option>")
}

func TestFormPredictMissingColumnKeepsFormUsable(t *testing.T) {
	s := newTestServer(t, driftedArtifactJSON)

	form := url.Values{"grid": {"2"}, "round": {"3"}, "driver": {"Lewis Hamilton"}, "team": {"Ferrari"}, "race": {"Monaco Grand Prix"}}
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(s, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Missing feature column: &#39;Driver_Lando Norris&#39;. Please verify model features.")
	assert.Contains(t, w.Body.String(), "Predict Probability")
}

func TestFormPredictRejectsNonNumericGrid(t *testing.T) {
	s := newTestServer(t, testArtifactJSON)

	form := url.Values{"grid": {"pole"}, "round": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := serve(s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "grid must be a whole number")
}

func TestAPIChoicesAndSchema(t *testing.T) {
	s := newTestServer(t, testArtifactJSON)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/choices", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var choices ChoicesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &choices))
	assert.Equal(t, []string{"Max Verstappen"}, choices.Drivers)
	assert.Empty(t, choices.Fallback)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/api/v1/schema", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var schema SchemaResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &schema))
	assert.Equal(t, "Grid", schema.Columns[0])
	assert.Len(t, schema.Columns, 5)
	assert.Equal(t, "2024.1", schema.ModelVersion)
	assert.Equal(t, "logistic", schema.Classifier)
}

func TestAPIPredict(t *testing.T) {
	s := newTestServer(t, testArtifactJSON)

	body := `{"grid":3,"round":1,"driver":"Max Verstappen","team":"Red Bull","race":"Bahrain Grand Prix"}`
	w := serve(s, httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var result models.PredictionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "66.82%", result.Percentage)
	assert.InDelta(t, 0.668188, result.Probability, 1e-6)
	assert.Len(t, result.Matches, 3)
}

func TestAPIPredictErrors(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		body   string
		status int
		kind   string
		column string
	}{
		{
			name:   "malformed json",
			raw:    testArtifactJSON,
			body:   `{"grid":`,
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
		{
			name:   "unknown field",
			raw:    testArtifactJSON,
			body:   `{"grid":3,"round":1,"driver":"A","team":"B","race":"C","weather":"wet"}`,
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
		{
			name:   "grid out of range",
			raw:    testArtifactJSON,
			body:   `{"grid":30,"round":1,"driver":"A","team":"B","race":"C"}`,
			status: http.StatusBadRequest,
			kind:   "invalid_request",
		},
		{
			name:   "missing column",
			raw:    driftedArtifactJSON,
			body:   `{"grid":3,"round":1,"driver":"A","team":"B","race":"C"}`,
			status: http.StatusUnprocessableEntity,
			kind:   "missing_column",
			column: "Driver_Lando Norris",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.raw)

			w := serve(s, httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(tt.body)))
			require.Equal(t, tt.status, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.kind, resp.Error)
			assert.Equal(t, tt.column, resp.Column)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestBlockedServer(t *testing.T) {
	_, loadErr := artifact.Load("testdata/does-not-exist.json")
	require.Error(t, loadErr)

	s := NewServer(config.ServerConfig{Address: ":0"}, nil, loadErr, testLogger())

	for _, path := range []string{"/", "/predict", "/anything"} {
		w := serve(s, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Contains(t, w.Body.String(), "Model file not found")
		assert.NotContains(t, w.Body.String(), "Predict Probability")
	}

	w := serve(s, httptest.NewRequest(http.MethodPost, "/api/v1/predict", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Error)
}

func TestRateLimit(t *testing.T) {
	s := NewServer(config.ServerConfig{RateLimitPerSecond: 0.001, RateLimitBurst: 1},
		newTestPredictor(t, testArtifactJSON), nil, testLogger())
	handler := s.Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/choices", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/choices", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestWebsocketPredict(t *testing.T) {
	s := newTestServer(t, testArtifactJSON)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/predict"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(models.PredictionRequest{
		Grid: 3, Round: 1, Driver: "Max Verstappen", Team: "Red Bull", Race: "Bahrain Grand Prix",
	}))
	var result models.PredictionResult
	require.NoError(t, conn.ReadJSON(&result))
	assert.Equal(t, "66.82%", result.Percentage)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var resp ErrorResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "invalid_request", resp.Error)

	// The connection stays usable after an error.
	require.NoError(t, conn.WriteJSON(models.PredictionRequest{
		Grid: 20, Round: 24, Driver: "Max Verstappen", Team: "Red Bull", Race: "Bahrain Grand Prix",
	}))
	result = models.PredictionResult{}
	require.NoError(t, conn.ReadJSON(&result))
	assert.NotEmpty(t, result.Percentage)
}
