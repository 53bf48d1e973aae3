package fingerprint

import (
	"time"

	"github.com/keinsell/zkk/internal/util"
)

type ChangeState int

const (
	New ChangeState = iota
	Unchanged
	Changed
)

func (s ChangeState) String() string {
	switch s {
	case New:
		return "new"
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	default:
		return "unknown"
	}
}

// Fingerprint is the (checksum, mtime) pair used for change detection.
// ModTime is stored as Unix nanoseconds so comparisons are exact.
type Fingerprint struct {
	Checksum string
	ModTime  int64
}

func Compute(content []byte, mtime time.Time) Fingerprint {
	return Fingerprint{
		Checksum: util.Digest(string(content)),
		ModTime:  mtime.UnixNano(),
	}
}

// Classify compares a stored fingerprint against a freshly computed one.
// A nil stored fingerprint means the document has never been indexed.
func Classify(stored *Fingerprint, current Fingerprint) ChangeState {
	if stored == nil {
		return New
	}
	if stored.Checksum == current.Checksum && stored.ModTime == current.ModTime {
		return Unchanged
	}
	return Changed
}
