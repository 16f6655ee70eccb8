// Package web serves the prediction form, the JSON API and the prediction websocket.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/f1-predictor/internal/artifact"
	"github.com/yourusername/f1-predictor/internal/config"
	"github.com/yourusername/f1-predictor/internal/features"
	"github.com/yourusername/f1-predictor/internal/logger"
	"github.com/yourusername/f1-predictor/internal/metrics"
	"github.com/yourusername/f1-predictor/internal/models"
	"github.com/yourusername/f1-predictor/internal/service"
)

// Prediction channels recorded in metrics
const (
	ChannelForm      = "form"
	ChannelAPI       = "api"
	ChannelWebsocket = "websocket"
)

const maxRequestBytes = 1 << 16

// Predictor is the prediction surface the server needs.
type Predictor interface {
	Choices() features.Choices
	Schema() *features.Schema
	ModelVersion() string
	ClassifierName() string
	Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error)
}

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Column  string `json:"column,omitempty"`
}

// ChoicesResponse lists the selectable values.
type ChoicesResponse struct {
	Drivers  []string `json:"drivers"`
	Teams    []string `json:"teams"`
	Races    []string `json:"races"`
	Fallback []string `json:"fallback,omitempty"`
}

// SchemaResponse describes the loaded feature schema.
type SchemaResponse struct {
	Columns      []string `json:"columns"`
	ModelVersion string   `json:"model_version,omitempty"`
	Classifier   string   `json:"classifier"`
}

// Server is the user-facing HTTP server.
type Server struct {
	cfg        config.ServerConfig
	predictor  Predictor
	startupErr error
	logger     *logrus.Logger
	audit      *logger.AuditLogger
	limiter    *rate.Limiter
	upgrader   websocket.Upgrader
	server     *http.Server
}

// NewServer creates the server. When startupErr is non-nil every route
// answers with the blocking message and predictor may be nil.
func NewServer(cfg config.ServerConfig, predictor Predictor, startupErr error, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}

	var limiter *rate.Limiter
	if cfg.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst)
	}

	return &Server{
		cfg:        cfg,
		predictor:  predictor,
		startupErr: startupErr,
		logger:     log,
		audit:      logger.NewAuditLogger(log),
		limiter:    limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handler returns the routed and wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.startupErr != nil {
		mux.HandleFunc("/", s.handleBlocked)
	} else {
		mux.HandleFunc("GET /{$}", s.handleForm)
		mux.HandleFunc("POST /predict", s.handleFormPredict)
		mux.HandleFunc("GET /api/v1/choices", s.handleChoices)
		mux.HandleFunc("GET /api/v1/schema", s.handleSchema)
		mux.HandleFunc("POST /api/v1/predict", s.handleAPIPredict)
		mux.HandleFunc("GET /ws/predict", s.handleWebsocket)
	}
	return s.withAudit(s.withRateLimit(s.limiter, mux))
}

// Start starts the server in the background and shuts it down when ctx ends.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.WithFields(logrus.Fields{
			"address": s.cfg.Address,
			"blocked": s.startupErr != nil,
		}).Info("Prediction server starting")

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("Prediction server error")
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("Prediction server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

type formPage struct {
	Request  models.PredictionRequest
	Choices  features.Choices
	Fallback []features.Category
	Result   *models.PredictionResult
	Error    string
	MinGrid  int
	MaxGrid  int
	MinRound int
	MaxRound int
}

func (s *Server) newFormPage(req models.PredictionRequest) *formPage {
	choices := s.predictor.Choices()
	return &formPage{
		Request:  req,
		Choices:  choices,
		Fallback: choices.Fallback,
		MinGrid:  models.MinGrid,
		MaxGrid:  models.MaxGrid,
		MinRound: models.MinRound,
		MaxRound: models.MaxRound,
	}
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	s.renderForm(w, http.StatusOK, s.newFormPage(models.DefaultPredictionRequest()))
}

func (s *Server) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, err := parseForm(r)
	if err != nil {
		page := s.newFormPage(models.DefaultPredictionRequest())
		page.Error = err.Error()
		metrics.RecordPrediction(ChannelForm, string(service.KindInvalidRequest), time.Since(start).Seconds())
		s.renderForm(w, http.StatusBadRequest, page)
		return
	}

	page := s.newFormPage(req)
	result, err := s.predictor.Predict(r.Context(), req)
	if err != nil {
		page.Error = err.Error()
		kind := errorKind(err)
		metrics.RecordPrediction(ChannelForm, string(kind), time.Since(start).Seconds())
		// The form stays usable after a failed prediction.
		s.renderForm(w, http.StatusOK, page)
		return
	}

	page.Result = result
	metrics.RecordPrediction(ChannelForm, "success", time.Since(start).Seconds())
	s.renderForm(w, http.StatusOK, page)
}

func (s *Server) renderForm(w http.ResponseWriter, status int, page *formPage) {
	metrics.RecordFormRender()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := formTemplate.ExecuteTemplate(w, "layout", page); err != nil {
		s.logger.WithError(err).Error("Failed to render form")
	}
}

func (s *Server) handleBlocked(w http.ResponseWriter, r *http.Request) {
	message := artifact.BlockingMessage(s.startupErr)
	metrics.RecordBlocked()
	s.audit.LogBlocked(r.URL.Path, s.startupErr.Error())

	if isMachinePath(r.URL.Path) {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "not_ready", Message: message})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := blockedTemplate.ExecuteTemplate(w, "layout", struct{ Message string }{message}); err != nil {
		s.logger.WithError(err).Error("Failed to render blocking page")
	}
}

func (s *Server) handleChoices(w http.ResponseWriter, r *http.Request) {
	choices := s.predictor.Choices()
	resp := ChoicesResponse{
		Drivers: choices.Drivers,
		Teams:   choices.Teams,
		Races:   choices.Races,
	}
	for _, cat := range choices.Fallback {
		resp.Fallback = append(resp.Fallback, string(cat))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SchemaResponse{
		Columns:      s.predictor.Schema().Columns(),
		ModelVersion: s.predictor.ModelVersion(),
		Classifier:   s.predictor.ClassifierName(),
	})
}

func (s *Server) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.PredictionRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		metrics.RecordPrediction(ChannelAPI, string(service.KindInvalidRequest), time.Since(start).Seconds())
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   string(service.KindInvalidRequest),
			Message: "Invalid request: " + err.Error(),
		})
		return
	}

	result, err := s.predictor.Predict(r.Context(), req)
	if err != nil {
		kind := errorKind(err)
		metrics.RecordPrediction(ChannelAPI, string(kind), time.Since(start).Seconds())
		writeJSON(w, statusForKind(kind), errorResponse(err))
		return
	}

	metrics.RecordPrediction(ChannelAPI, "success", time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithField("request_id", requestIDFrom(r.Context()))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.WebsocketOpened()
	defer metrics.WebsocketClosed()

	conn.SetReadLimit(maxRequestBytes)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Websocket closed unexpectedly")
			}
			return
		}

		start := time.Now()
		var req models.PredictionRequest
		if err := json.Unmarshal(data, &req); err != nil {
			metrics.RecordPrediction(ChannelWebsocket, string(service.KindInvalidRequest), time.Since(start).Seconds())
			if err := conn.WriteJSON(ErrorResponse{Error: string(service.KindInvalidRequest), Message: "Invalid request: " + err.Error()}); err != nil {
				return
			}
			continue
		}

		result, err := s.predictor.Predict(r.Context(), req)
		var reply interface{} = result
		if err != nil {
			metrics.RecordPrediction(ChannelWebsocket, string(errorKind(err)), time.Since(start).Seconds())
			reply = errorResponse(err)
		} else {
			metrics.RecordPrediction(ChannelWebsocket, "success", time.Since(start).Seconds())
		}

		if err := conn.WriteJSON(reply); err != nil {
			log.WithError(err).Warn("Websocket write failed")
			return
		}
	}
}

// parseForm reads a prediction request from submitted form values.
func parseForm(r *http.Request) (models.PredictionRequest, error) {
	req := models.DefaultPredictionRequest()
	if err := r.ParseForm(); err != nil {
		return req, &service.PredictionError{Kind: service.KindInvalidRequest, Message: "Invalid request: " + err.Error(), Err: err}
	}

	grid, err := strconv.Atoi(strings.TrimSpace(r.PostForm.Get("grid")))
	if err != nil {
		return req, &service.PredictionError{Kind: service.KindInvalidRequest, Message: "Invalid request: grid must be a whole number", Err: err}
	}
	round, err := strconv.Atoi(strings.TrimSpace(r.PostForm.Get("round")))
	if err != nil {
		return req, &service.PredictionError{Kind: service.KindInvalidRequest, Message: "Invalid request: round must be a whole number", Err: err}
	}

	req.Grid = grid
	req.Round = round
	req.Driver = r.PostForm.Get("driver")
	req.Team = r.PostForm.Get("team")
	req.Race = r.PostForm.Get("race")
	return req, nil
}

func errorKind(err error) service.ErrorKind {
	var perr *service.PredictionError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return service.KindGeneric
}

func errorResponse(err error) ErrorResponse {
	var perr *service.PredictionError
	if errors.As(err, &perr) {
		return ErrorResponse{Error: string(perr.Kind), Message: perr.Message, Column: perr.Column}
	}
	return ErrorResponse{Error: string(service.KindGeneric), Message: "Prediction error: " + err.Error()}
}

func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindInvalidRequest:
		return http.StatusBadRequest
	case service.KindMissingColumn:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isMachinePath(path string) bool {
	return strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/ws/")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
