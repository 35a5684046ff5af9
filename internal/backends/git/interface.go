package git

import "context"

// Backend represents a generic backend interface
type Backend interface {
	// ID returns the unique identifier for this backend
	ID() string

	// IsAvailable checks if the backend is available and functional
	IsAvailable(ctx context.Context) bool
}

// HistoryBackend is the git surface the analysis depends on
type HistoryBackend interface {
	Backend

	// ListFiles returns the files tracked at HEAD under the project root
	ListFiles(ctx context.Context) ([]string, error)

	// FileHistory returns the changes to a file, oldest first
	FileHistory(ctx context.Context, path string) ([]HistoryEntry, error)
}

var _ HistoryBackend = (*GitAdapter)(nil)
