// Package artifact loads the persisted classifier bundle: the trained model,
// its encoder and the ordered feature column list.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/yourusername/f1-predictor/internal/features"
	"github.com/yourusername/f1-predictor/internal/ml"
)

// Artifact is the decoded model bundle.
type Artifact struct {
	Model    ml.ModelSpec    `json:"model"`
	Encoder  json.RawMessage `json:"encoder,omitempty"`
	Features []string        `json:"features"`

	schema     *features.Schema
	duplicates []string
}

// Schema returns the ordered feature schema the model was trained on.
func (a *Artifact) Schema() *features.Schema {
	return a.schema
}

// Duplicates returns feature names that were listed more than once. Only the
// first occurrence of each is kept in the schema.
func (a *Artifact) Duplicates() []string {
	return a.duplicates
}

// Load reads and decodes the artifact at path.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrArtifactUnreadable, err)
	}
	return Decode(data)
}

// Decode parses an artifact from its JSON encoding.
func Decode(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactUnreadable, err)
	}
	if len(a.Features) == 0 {
		return nil, fmt.Errorf("%w: feature list is empty", ErrArtifactUnreadable)
	}

	a.Features, a.duplicates = dedupe(a.Features)

	schema, err := features.NewSchema(a.Features)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactUnreadable, err)
	}
	a.schema = schema

	return &a, nil
}

func dedupe(columns []string) ([]string, []string) {
	seen := make(map[string]struct{}, len(columns))
	kept := make([]string, 0, len(columns))
	var dups []string
	for _, col := range columns {
		if _, ok := seen[col]; ok {
			dups = append(dups, col)
			continue
		}
		seen[col] = struct{}{}
		kept = append(kept, col)
	}
	return kept, dups
}

// Loader loads an artifact once and hands the same result to every caller.
type Loader struct {
	path string

	once     sync.Once
	artifact *Artifact
	err      error
}

// NewLoader creates a loader for the artifact at path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path returns the artifact location.
func (l *Loader) Path() string {
	return l.path
}

// Get returns the artifact, loading it on first use. A failed load is not retried.
func (l *Loader) Get() (*Artifact, error) {
	l.once.Do(func() {
		l.artifact, l.err = Load(l.path)
	})
	return l.artifact, l.err
}

// BlockingMessage returns the operator-facing text shown when the predictor
// cannot start because of err.
func BlockingMessage(err error) string {
	switch {
	case errors.Is(err, ErrArtifactNotFound):
		return "Model file not found. Please ensure the trained model artifact is available."
	case errors.Is(err, ErrArtifactUnreadable):
		return fmt.Sprintf("Error loading model: %v", err)
	case err == nil:
		return ""
	default:
		return fmt.Sprintf("Error loading model: %v", err)
	}
}
