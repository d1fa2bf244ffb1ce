package statree

// Endpoints enumerates every addressable path in the tree, each with a
// leading slash. It is derived from the same tree the resolver walks, so the
// discovery index can never drift from what Resolve accepts.
//
// Objects recurse per key. Array elements are listed by identifier, plus one
// entry per non-identifier field of each element.
func Endpoints(root Value) []string {
	var out []string
	enumerate(root, "", &out)
	return out
}

func enumerate(v Value, prefix string, out *[]string) {
	if v.kind != KindObject {
		return
	}
	for _, f := range v.fields {
		path := prefix + "/" + f.Key
		*out = append(*out, path)

		switch f.Value.kind {
		case KindObject:
			enumerate(f.Value, path, out)
		case KindArray:
			for _, el := range f.Value.elems {
				id, ok := el.ident()
				if !ok {
					continue
				}
				elPath := path + "/" + id
				*out = append(*out, elPath)
				for _, ef := range el.fields {
					if ef.Key == IdentKey {
						continue
					}
					*out = append(*out, elPath+"/"+ef.Key)
				}
			}
		}
	}
}
