// Package changes defines the canonical change set shared by every file
// source: a map from relative path to an active flag.
package changes

import (
	"maps"
	"slices"

	"github.com/src-d/enry/v2"
)

// Map records, per relative file path, whether the file is present (true:
// added, modified or still there) or was deleted (false).
type Map map[string]bool

// Clone returns an independent copy. Cloning nil yields an empty map.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	maps.Copy(out, m)

	return out
}

// Equal reports whether both maps hold the same keys with the same flags.
func (m Map) Equal(other Map) bool {
	return maps.Equal(m, other)
}

// Active returns the sorted paths flagged present.
func (m Map) Active() []string {
	return m.sortedWhere(true)
}

// Deleted returns the sorted paths flagged deleted.
func (m Map) Deleted() []string {
	return m.sortedWhere(false)
}

// Paths returns every key, sorted.
func (m Map) Paths() []string {
	return slices.Sorted(maps.Keys(m))
}

func (m Map) sortedWhere(flag bool) []string {
	paths := make([]string, 0, len(m))

	for path, active := range m {
		if active == flag {
			paths = append(paths, path)
		}
	}

	slices.Sort(paths)

	return paths
}

// Summary counts the entries of a Map by flag.
type Summary struct {
	Active  int `json:"active"  yaml:"active"`
	Deleted int `json:"deleted" yaml:"deleted"`
}

// Total is the number of entries.
func (s Summary) Total() int {
	return s.Active + s.Deleted
}

// Summary counts active and deleted entries.
func (m Map) Summary() Summary {
	var s Summary

	for _, active := range m {
		if active {
			s.Active++
		} else {
			s.Deleted++
		}
	}

	return s
}

// Filter returns a new Map holding only the paths keep accepts.
func (m Map) Filter(keep func(path string) bool) Map {
	out := make(Map, len(m))

	for path, active := range m {
		if keep(path) {
			out[path] = active
		}
	}

	return out
}

// SkipVendored is a Filter predicate that drops vendored and generated
// dependency trees (vendor/, node_modules/, third_party/ and the like).
func SkipVendored(path string) bool {
	return !enry.IsVendor(path)
}

// Delta returns the entries of next that are new or flipped relative to prev.
// Keys that vanished from next are not reported; a source reports those
// itself as deleted entries before dropping them.
func Delta(prev, next Map) Map {
	out := make(Map)

	for path, active := range next {
		if before, seen := prev[path]; !seen || before != active {
			out[path] = active
		}
	}

	return out
}
