package statree

import (
	"net/url"
	"strings"
)

const (
	// selectorSep splits the terminal segment into field selectors.
	selectorSep = ","

	// selfSelector names the whole current context at the terminal segment.
	selfSelector = "self"
)

// IsWildcard reports whether a segment is one of the two wildcard tokens.
// "*" and "all" are synonyms: both fan out over every element of an array.
func IsWildcard(seg string) bool { return seg == "*" || seg == "all" }

// Path is a parsed query path: an ordered sequence of segments. The terminal
// segment may carry comma-separated field selectors; those are split at
// resolve time.
type Path struct {
	segs []string
}

// ParsePath splits a raw URL path on "/", URL-decodes each segment, and
// drops empty segments. An empty or all-slash path parses to the empty Path,
// which resolves to the whole tree.
func ParsePath(raw string) Path {
	parts := strings.Split(raw, "/")
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if dec, err := url.PathUnescape(p); err == nil {
			p = dec
		}
		segs = append(segs, p)
	}
	return Path{segs: segs}
}

// NewPath builds a Path from already-decoded segments.
func NewPath(segs ...string) Path {
	return Path{segs: segs}
}

// Segments returns the decoded segments in order.
func (p Path) Segments() []string { return p.segs }

// IsEmpty reports whether the path has no segments.
func (p Path) IsEmpty() bool { return len(p.segs) == 0 }

// String renders the path with "/" separators, without a leading slash.
func (p Path) String() string { return strings.Join(p.segs, "/") }

// splitSelectors breaks a terminal segment into trimmed, non-empty field
// selectors.
func splitSelectors(seg string) []string {
	parts := strings.Split(seg, selectorSep)
	sels := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sels = append(sels, p)
	}
	return sels
}
