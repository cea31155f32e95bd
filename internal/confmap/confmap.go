// Package confmap implements deep merge and diff over generic
// configuration trees (maps of string keys to scalars, lists, or
// nested maps) as parsed from YAML documents.
package confmap

import (
	"fmt"
	"reflect"
)

// Tree is a generic configuration tree as produced by yaml.Unmarshal
// into map[string]any.
type Tree = map[string]any

// Warning records a non-fatal type mismatch observed during a merge,
// e.g. a scalar overwriting a map.
type Warning struct {
	// Path is the dotted key path where the mismatch occurred.
	Path string

	// Old and New describe the clashing value types.
	Old string
	New string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: overwriting %s with %s", w.Path, w.Old, w.New)
}

// Merge deep-merges src into dst and returns dst.
//
// Semantics:
//   - Maps present on both sides merge recursively.
//   - Lists present on both sides become the de-duplicated union:
//     dst order first, new src elements appended. Lists with
//     non-hashable elements (mappings, nested lists) fall back to
//     plain concatenation.
//   - Anything else: the src value replaces the dst value.
//
// src is read-only and never aliased into the result; dst is owned by
// the caller and overwritten in place. A nil dst yields a deep copy
// of src.
func Merge(src, dst Tree) Tree {
	dst, _ = merge(src, dst, true, "")
	return dst
}

// MergeWarn is Merge with type-mismatch reporting. Warnings are
// advisory: the merge always completes.
func MergeWarn(src, dst Tree) (Tree, []Warning) {
	return merge(src, dst, true, "")
}

// MergeNoOverwrite deep-merges src into dst but never replaces a key
// that already exists in dst with a non-map value. Maps still merge
// recursively, so src can fill gaps inside nested sections.
func MergeNoOverwrite(src, dst Tree) Tree {
	dst, _ = merge(src, dst, false, "")
	return dst
}

func merge(src, dst Tree, overwrite bool, path string) (Tree, []Warning) {
	if dst == nil {
		dst = make(Tree, len(src))
	}
	var warnings []Warning

	for key, srcValue := range src {
		keyPath := key
		if path != "" {
			keyPath = path + "." + key
		}

		if srcMap, ok := srcValue.(Tree); ok {
			node, exists := dst[key]
			nodeMap, isMap := node.(Tree)
			if exists && !isMap {
				if !overwrite {
					continue
				}
				warnings = append(warnings, Warning{
					Path: keyPath,
					Old:  typeName(node),
					New:  "mapping",
				})
				nodeMap = nil
			}
			merged, w := merge(srcMap, nodeMap, overwrite, keyPath)
			dst[key] = merged
			warnings = append(warnings, w...)
			continue
		}

		if srcList, ok := srcValue.([]any); ok {
			if dstValue, exists := dst[key]; exists {
				if dstList, isList := dstValue.([]any); isList {
					dst[key] = mergeSeq(dstList, srcList)
					continue
				}
				if !overwrite {
					continue
				}
				warnings = append(warnings, Warning{
					Path: keyPath,
					Old:  typeName(dstValue),
					New:  "sequence",
				})
			}
			dst[key] = CopyValue(srcList)
			continue
		}

		// Scalar (or any other type): src wins.
		if dstValue, exists := dst[key]; exists {
			if !overwrite {
				continue
			}
			if old, new := typeName(dstValue), typeName(srcValue); old != new {
				warnings = append(warnings, Warning{Path: keyPath, Old: old, New: new})
			}
		}
		dst[key] = srcValue
	}

	return dst, warnings
}

// mergeSeq returns dst + new elements of src, keeping the first
// occurrence of each value. When either list carries elements that
// cannot serve as map keys (mappings, nested lists) the result
// degrades to plain concatenation.
func mergeSeq(dst, src []any) []any {
	if !dedupable(dst) || !dedupable(src) {
		out := make([]any, 0, len(dst)+len(src))
		out = append(out, dst...)
		for _, v := range src {
			out = append(out, CopyValue(v))
		}
		return out
	}

	out := make([]any, 0, len(dst)+len(src))
	seen := make(map[any]bool, len(dst)+len(src))
	for _, v := range dst {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range src {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// dedupable reports whether every element of the list is hashable.
func dedupable(list []any) bool {
	for _, v := range list {
		if v == nil {
			continue
		}
		if !reflect.TypeOf(v).Comparable() {
			return false
		}
	}
	return true
}

// Diff returns the minimal sub-tree of current whose values differ
// from (or are absent in) baseline. Nested maps are compared
// recursively; lists and scalars are compared by value and included
// whole when they differ. Applying the result on top of baseline with
// Merge reproduces current's changed keys, and re-applying it is a
// no-op.
func Diff(baseline, current Tree) Tree {
	changes := make(Tree)

	for key, curValue := range current {
		baseValue, exists := baseline[key]
		if !exists {
			changes[key] = CopyValue(curValue)
			continue
		}

		curMap, curIsMap := curValue.(Tree)
		baseMap, baseIsMap := baseValue.(Tree)
		if curIsMap && baseIsMap {
			if sub := Diff(baseMap, curMap); len(sub) > 0 {
				changes[key] = sub
			}
			continue
		}

		if !reflect.DeepEqual(baseValue, curValue) {
			changes[key] = CopyValue(curValue)
		}
	}

	return changes
}

// Copy returns a deep copy of a configuration tree.
func Copy(t Tree) Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = CopyValue(v)
	}
	return out
}

// CopyValue returns a deep copy of any tree value.
func CopyValue(value any) any {
	switch v := value.(type) {
	case Tree:
		return Copy(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = CopyValue(item)
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	default:
		// Scalars are immutable.
		return value
	}
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case Tree, map[any]any:
		return "mapping"
	case []any, []string:
		return "sequence"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int64, uint64, float64:
		return "number"
	default:
		return reflect.TypeOf(value).String()
	}
}
