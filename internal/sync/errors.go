package sync

import "errors"

// Stage names the step of a sync cycle an Error occurred in
type Stage string

// Stages of a sync cycle
const (
	StageProbe   Stage = "probe"
	StageLock    Stage = "lock"
	StageFetch   Stage = "fetch"
	StageParse   Stage = "parse"
	StageMerge   Stage = "merge"
	StageWrite   Stage = "write"
	StageUnlock  Stage = "unlock"
	StageRefresh Stage = "refresh"
)

var (
	// ErrEmptyMainDocument is returned by SyncFiles when the main document's
	// root holds no elements. Nothing has been merged or written when it is
	// returned, and the locks taken in the cycle are still held.
	ErrEmptyMainDocument = errors.New("main document is empty")

	// ErrMalformedETag is returned when an ETag is not a quoted entity tag
	ErrMalformedETag = errors.New("malformed ETag")
)

// Error represents a failed step of a sync cycle
type Error struct {
	Err      error
	Message  string
	Stage    Stage
	Resource string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
