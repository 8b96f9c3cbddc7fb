// Package scheduler orders matches so that nested entries are always
// resolved before the entries that contain them.
package scheduler

import (
	"sort"

	"dirscrub/internal/scan"
)

// Layer is every match at one depth. Matches in a layer never contain each
// other, so they may be deleted concurrently.
type Layer struct {
	Depth   int
	Matches []scan.Match
}

// Schedule buckets matches by depth and returns the layers deepest first.
// Discovery order is kept within a layer. No matches means no layers.
func Schedule(matches []scan.Match) []Layer {
	if len(matches) == 0 {
		return nil
	}

	byDepth := make(map[int][]scan.Match)
	for _, m := range matches {
		byDepth[m.Depth] = append(byDepth[m.Depth], m)
	}

	layers := make([]Layer, 0, len(byDepth))
	for depth, ms := range byDepth {
		layers = append(layers, Layer{Depth: depth, Matches: ms})
	}
	sort.Slice(layers, func(i, j int) bool {
		return layers[i].Depth > layers[j].Depth
	})
	return layers
}

// Count returns the total number of matches across layers
func Count(layers []Layer) int {
	n := 0
	for _, l := range layers {
		n += len(l.Matches)
	}
	return n
}
