package country

import (
	"reflect"
	"sort"
)

// Merge applies a partial update onto a copy of base. Nested objects merge
// leaf by leaf; any other value, including a list, replaces the target.
// Keys absent from update are left untouched.
func Merge(base State, update map[string]any) State {
	out := base.Clone()
	mergeInto(out, update)
	return out
}

func mergeInto(dst map[string]any, update map[string]any) {
	for key, value := range update {
		patch, isObject := value.(map[string]any)
		if !isObject {
			dst[key] = copyValue(value)
			continue
		}
		target, ok := dst[key].(map[string]any)
		if !ok {
			dst[key] = copyValue(patch)
			continue
		}
		mergeInto(target, patch)
	}
}

// Change is one leaf difference between two documents. A nil Before means
// the path was added; a nil After means it was removed.
type Change struct {
	Path   string `json:"path"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// Diff reports leaf-level changes from before to after, sorted by path.
// Lists are compared as whole values.
func Diff(before, after State) []Change {
	var changes []Change
	diffMaps("", before, after, &changes)
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

func diffMaps(prefix string, before, after map[string]any, changes *[]Change) {
	for key, prev := range before {
		path := joinPath(prefix, key)
		next, ok := after[key]
		if !ok {
			*changes = append(*changes, Change{Path: path, Before: copyValue(prev)})
			continue
		}
		diffValues(path, prev, next, changes)
	}
	for key, next := range after {
		if _, ok := before[key]; ok {
			continue
		}
		*changes = append(*changes, Change{Path: joinPath(prefix, key), After: copyValue(next)})
	}
}

func diffValues(path string, prev, next any, changes *[]Change) {
	prevMap, prevIsMap := prev.(map[string]any)
	nextMap, nextIsMap := next.(map[string]any)
	if prevIsMap && nextIsMap {
		diffMaps(path, prevMap, nextMap, changes)
		return
	}
	if pf, ok := toFloat(prev); ok {
		if nf, ok := toFloat(next); ok && pf == nf {
			return
		}
	}
	if reflect.DeepEqual(prev, next) {
		return
	}
	*changes = append(*changes, Change{Path: path, Before: copyValue(prev), After: copyValue(next)})
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
