package statree

import (
	"errors"
	"strings"
)

// MaxFanoutDepth bounds nested wildcard fan-out. Resolution of a path whose
// wildcard nesting exceeds this fails with ErrTooDeep.
const MaxFanoutDepth = 4

// Resolve walks root guided by path and returns the sub-value it names.
//
// Non-terminal segments descend: objects by key, arrays by identifier match
// against the element's "name" field. A wildcard segment ("*" or "all") fans
// out over every array element, resolving the remaining path independently
// per element and injecting the element's identifier into each result so the
// caller can tell them apart; element order is preserved.
//
// The terminal segment may carry comma-separated field selectors. A single
// selector on an object yields {selector: value}; two or more yield an object
// containing exactly those fields, in the order they were written. The
// literal "self" returns the current context unchanged. An empty path
// resolves to the whole tree.
//
// Resolution is pure: it never mutates root and never panics on malformed
// input — every failure is a *ResolveError.
func Resolve(root Value, path Path) (Value, error) {
	return resolve(root, path.segs, nil, 0)
}

func resolve(v Value, segs, walked []string, depth int) (Value, error) {
	if len(segs) == 0 {
		return v, nil
	}

	seg := segs[0]
	rest := segs[1:]
	last := len(rest) == 0

	if last && strings.Contains(seg, selectorSep) {
		return selectFields(v, splitSelectors(seg), walked, seg)
	}
	if last && seg == selfSelector {
		return v, nil
	}

	if IsWildcard(seg) {
		if v.kind != KindArray {
			return Value{}, resolveErr(ErrNotTraversable, walked, seg)
		}
		if depth >= MaxFanoutDepth {
			return Value{}, resolveErr(ErrTooDeep, walked, seg)
		}
		results := make([]Value, 0, len(v.elems))
		for _, el := range v.elems {
			if last {
				results = append(results, el)
				continue
			}
			res, err := resolve(el, rest, extend(walked, seg), depth+1)
			if errors.Is(err, ErrTooDeep) {
				return Value{}, err
			}
			if err != nil {
				// Elements are like-shaped in practice; skip the odd one out
				// rather than failing the whole fan-out.
				continue
			}
			results = append(results, attachIdent(res, el))
		}
		if len(results) == 0 {
			return Value{}, resolveErr(ErrNotFound, walked, seg)
		}
		return Array(results...), nil
	}

	switch v.kind {
	case KindObject:
		child, ok := v.Get(seg)
		if !ok {
			return Value{}, resolveErr(ErrNotFound, walked, seg)
		}
		if last {
			return Object(F(seg, child)), nil
		}
		return resolve(child, rest, extend(walked, seg), depth)

	case KindArray:
		el, ok := findByIdent(v, seg)
		if !ok {
			return Value{}, resolveErr(ErrNotFound, walked, seg)
		}
		if last {
			return el, nil
		}
		return resolve(el, rest, extend(walked, seg), depth)

	default:
		return Value{}, resolveErr(ErrNotTraversable, walked, seg)
	}
}

// selectFields builds an object holding exactly the named fields of v, in
// selector order. Every named field must exist.
func selectFields(v Value, sels []string, walked []string, seg string) (Value, error) {
	if len(sels) == 0 {
		return v, nil
	}
	if v.kind != KindObject {
		return Value{}, resolveErr(ErrNotTraversable, walked, seg)
	}
	fields := make([]Field, 0, len(sels))
	for _, sel := range sels {
		val, ok := v.Get(sel)
		if !ok {
			return Value{}, resolveErr(ErrNotFound, walked, sel)
		}
		fields = append(fields, F(sel, val))
	}
	return Object(fields...), nil
}

// findByIdent returns the array element whose identifier field equals name.
func findByIdent(arr Value, name string) (Value, bool) {
	for _, el := range arr.elems {
		if id, ok := el.ident(); ok && id == name {
			return el, true
		}
	}
	return Value{}, false
}

// attachIdent prepends the source element's identifier to an object result so
// fan-out entries stay distinguishable. Non-object results and results that
// already carry the identifier pass through unchanged.
func attachIdent(res Value, src Value) Value {
	id, ok := src.Get(IdentKey)
	if !ok || res.kind != KindObject {
		return res
	}
	if _, has := res.Get(IdentKey); has {
		return res
	}
	fields := make([]Field, 0, len(res.fields)+1)
	fields = append(fields, F(IdentKey, id))
	fields = append(fields, res.fields...)
	return Object(fields...)
}

func extend(walked []string, seg string) []string {
	out := make([]string, 0, len(walked)+1)
	out = append(out, walked...)
	return append(out, seg)
}

func joinPath(walked []string, seg string) string {
	if len(walked) == 0 {
		return seg
	}
	return strings.Join(walked, "/") + "/" + seg
}
