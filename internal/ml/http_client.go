// Package ml provides HTTP client for a remote classifier service.
package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/f1-predictor/internal/config"
)

const predictProbaPath = "/v1/predict_proba"

// HTTPClassifier delegates predictions to a remote classifier over HTTP
type HTTPClassifier struct {
	client  *retryablehttp.Client
	baseURL string
	apiKey  string
	logger  *logrus.Logger
}

// PredictProbaRequest is the payload sent to the remote classifier
type PredictProbaRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// PredictProbaResponse is the remote classifier's answer; each row holds
// the probabilities of the negative and positive class.
type PredictProbaResponse struct {
	Probabilities [][]float64 `json:"probabilities"`
}

// ErrorResponse is returned by the remote classifier for rejected requests
type ErrorResponse struct {
	Error   string `json:"error"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewHTTPClassifier creates a new HTTP classifier client
func NewHTTPClassifier(cfg *config.ClassifierConfig, logger *logrus.Logger) *HTTPClassifier {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	retryClient.RetryMax = cfg.RetryAttempts
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.CheckRetry = classifierRetryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = &retryLogger{entry: logger.WithField("component", "classifier_http")}

	return &HTTPClassifier{
		client:  retryClient,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// Name returns the classifier name
func (c *HTTPClassifier) Name() string {
	return BackendHTTP
}

// PredictProba asks the remote classifier for the positive-class probability
func (c *HTTPClassifier) PredictProba(ctx context.Context, columns []string, row []float64) (float64, error) {
	if err := checkRow(columns, row); err != nil {
		return 0, err
	}

	jsonData, err := json.Marshal(PredictProbaRequest{Columns: columns, Rows: [][]float64{row}})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+predictProbaPath, bytes.NewReader(jsonData))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return 0, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, decodeHTTPError(resp.StatusCode, body)
	}

	var out PredictProbaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(out.Probabilities) != 1 || len(out.Probabilities[0]) < 2 {
		return 0, fmt.Errorf("%w: expected one row with two class probabilities", ErrInvalidResponse)
	}

	return checkProbability(out.Probabilities[0][1])
}

// decodeHTTPError maps an error response onto the package errors
func decodeHTTPError(status int, body []byte) error {
	var apiErr ErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	if status == http.StatusUnprocessableEntity && apiErr.Error == "missing_column" && apiErr.Column != "" {
		return &MissingColumnError{Column: apiErr.Column}
	}
	if status == http.StatusServiceUnavailable {
		return fmt.Errorf("%w: status %d", ErrClassifierUnavailable, status)
	}

	detail := apiErr.Message
	if detail == "" {
		detail = strings.TrimSpace(string(body))
	}
	return fmt.Errorf("%w: status %d: %s", ErrInvalidResponse, status, detail)
}

// classifierRetryPolicy retries network errors and transient server statuses
func classifierRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, err
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// retryLogger adapts logrus to retryablehttp.LeveledLogger
type retryLogger struct {
	entry *logrus.Entry
}

func (l *retryLogger) fields(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Info(msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}
