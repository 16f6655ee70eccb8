// Package ml provides gRPC client for a remote classifier service.
package ml

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// PredictProbaMethod is the full gRPC method name served by the classifier service
const PredictProbaMethod = "/f1predictor.v1.Classifier/PredictProba"

// MissingColumnStatusPrefix prefixes InvalidArgument messages that name a missing column
const MissingColumnStatusPrefix = "missing column: "

// GRPCClassifier delegates predictions to a remote classifier over gRPC.
// Messages are google.protobuf.Struct values:
// request {columns: [string], row: [number]}, response {probability: number}.
type GRPCClassifier struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	logger  *logrus.Logger
}

// NewGRPCClassifier creates a new gRPC classifier client. Extra dial options
// are appended to the defaults.
func NewGRPCClassifier(address string, timeout time.Duration, logger *logrus.Logger, opts ...grpc.DialOption) (*GRPCClassifier, error) {
	keepAlive := keepalive.ClientParameters{
		Time:                30 * time.Second,
		Timeout:             10 * time.Second,
		PermitWithoutStream: true,
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepAlive),
	}, opts...)

	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	if logger != nil {
		logger.WithField("address", address).Info("Classifier gRPC client created")
	}

	return &GRPCClassifier{
		conn:    conn,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Name returns the classifier name
func (c *GRPCClassifier) Name() string {
	return BackendGRPC
}

// PredictProba asks the remote classifier for the positive-class probability
func (c *GRPCClassifier) PredictProba(ctx context.Context, columns []string, row []float64) (float64, error) {
	if err := checkRow(columns, row); err != nil {
		return 0, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := newPredictProbaStruct(columns, row)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, PredictProbaMethod, req, resp); err != nil {
		return 0, mapStatusError(err)
	}

	field, ok := resp.GetFields()["probability"]
	if !ok {
		return 0, fmt.Errorf("%w: response has no probability", ErrInvalidResponse)
	}
	if _, isNumber := field.GetKind().(*structpb.Value_NumberValue); !isNumber {
		return 0, fmt.Errorf("%w: probability is not a number", ErrInvalidResponse)
	}

	return checkProbability(field.GetNumberValue())
}

// Close closes the gRPC connection
func (c *GRPCClassifier) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func newPredictProbaStruct(columns []string, row []float64) (*structpb.Struct, error) {
	cols := make([]interface{}, len(columns))
	for i, col := range columns {
		cols[i] = col
	}
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	return structpb.NewStruct(map[string]interface{}{
		"columns": cols,
		"row":     values,
	})
}

// mapStatusError converts a gRPC status into the package errors
func mapStatusError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", ErrInvalidPrediction, err)
	}

	switch st.Code() {
	case codes.InvalidArgument:
		if col, found := strings.CutPrefix(st.Message(), MissingColumnStatusPrefix); found && col != "" {
			return &MissingColumnError{Column: col}
		}
		return fmt.Errorf("%w: %s", ErrShapeMismatch, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrTimeout, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", ErrClassifierUnavailable, st.Message())
	default:
		return fmt.Errorf("%w: %s: %s", ErrInvalidPrediction, st.Code(), st.Message())
	}
}
