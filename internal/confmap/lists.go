package confmap

// Dedup collapses duplicate strings to their first occurrence.
// It returns the de-duplicated list and, in order of detection, every
// value that appeared more than once (listed once per extra
// occurrence so callers can report each duplicate).
func Dedup(list []string) (deduped, duplicates []string) {
	seen := make(map[string]bool, len(list))
	deduped = make([]string, 0, len(list))

	for _, v := range list {
		if seen[v] {
			duplicates = append(duplicates, v)
			continue
		}
		seen[v] = true
		deduped = append(deduped, v)
	}
	return deduped, duplicates
}

// MergeLists appends the elements of src that are not already present
// in dst and returns the result. With prepend set, new elements go in
// front of dst instead, preserving their relative order.
func MergeLists(src, dst []string, prepend bool) []string {
	present := make(map[string]bool, len(dst))
	for _, v := range dst {
		present[v] = true
	}

	var fresh []string
	for _, v := range src {
		if !present[v] {
			present[v] = true
			fresh = append(fresh, v)
		}
	}

	if prepend {
		return append(fresh, dst...)
	}
	return append(dst, fresh...)
}

// Strings converts a YAML-decoded list value ([]any or []string) to
// []string. Non-list values yield nil.
func Strings(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
