package artifact

import "errors"

var (
	// ErrArtifactNotFound indicates the artifact file does not exist
	ErrArtifactNotFound = errors.New("model artifact not found")

	// ErrArtifactUnreadable indicates the artifact exists but could not be read or decoded
	ErrArtifactUnreadable = errors.New("model artifact unreadable")
)
