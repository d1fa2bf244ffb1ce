package statree

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key or identifier named in the path does not
// exist at that point in the tree.
var ErrNotFound = errors.New("statree: not found")

// ErrNotTraversable is returned when the path continues past a scalar leaf,
// or a wildcard is applied to a non-array value.
var ErrNotTraversable = errors.New("statree: not traversable")

// ErrTooDeep is returned when wildcard fan-out nesting exceeds MaxFanoutDepth.
var ErrTooDeep = errors.New("statree: wildcard fan-out too deep")

// ResolveError reports where resolution failed. Kind is one of the sentinel
// errors above; Path is the prefix of the query up to and including the
// segment that failed.
type ResolveError struct {
	Kind error
	Path string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Path)
}

func (e *ResolveError) Unwrap() error { return e.Kind }

func resolveErr(kind error, walked []string, seg string) error {
	return &ResolveError{Kind: kind, Path: joinPath(walked, seg)}
}
