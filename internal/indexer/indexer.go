package indexer

import (
	"context"
	"fmt"

	"github.com/keinsell/zkk/internal/models"
)

// Outcome is what an index run did with one document.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeNew
	OutcomeUpdated
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNew:
		return "new"
	case OutcomeUpdated:
		return "updated"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// DocumentError is a per-document problem reported as a warning.
type DocumentError struct {
	Path  string
	Stage string
	Err   error
}

func (e DocumentError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e DocumentError) Unwrap() error { return e.Err }

type Result struct {
	Total      int
	New        int
	Updated    int
	Skipped    int
	Purged     int
	Failed     int
	Embeddings int
	Concepts   int
	Warnings   []DocumentError
}

type Indexer interface {
	IndexProject(ctx context.Context, root string) (Result, error)
	Reindex(ctx context.Context, root string) (Result, error)
	IndexProjectProgress(
		ctx context.Context,
		root string,
		force bool,
	) (<-chan models.ProgressEvent, <-chan error)
}
