package artifacts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAmbiguousDirectories marks artifacts whose files span more than
	// one directory. This guards against malformed uploads and is not
	// expected to trigger in normal operation.
	ErrAmbiguousDirectories = errors.New("artifact files span multiple directories")

	// ErrMissingSummary marks a primary-alignment artifact without the
	// pre-computed HTML summary the submission template consumes.
	ErrMissingSummary = errors.New("artifact has no HTML summary")

	// ErrNoFiles marks an artifact with no usable file paths at all.
	ErrNoFiles = errors.New("artifact has no files")
)

// DirectoryError reports the offending directory set when the
// single-directory invariant is violated.
type DirectoryError struct {
	Dirs []string // sorted
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("%v: %s", ErrAmbiguousDirectories, strings.Join(e.Dirs, ", "))
}

func (e *DirectoryError) Unwrap() error {
	return ErrAmbiguousDirectories
}
