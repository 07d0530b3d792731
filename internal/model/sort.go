package model

import (
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// SortField defines what to sort by.
type SortField int

const (
	SortByName SortField = iota
	SortBySize
)

// SortChildren orders children in place. Ties fall back to natural,
// case-insensitive name order so results are stable across runs.
func SortChildren(children []*TreeNode, field SortField) {
	sort.SliceStable(children, func(i, j int) bool {
		a, b := children[i], children[j]
		if field == SortBySize && a.Size != b.Size {
			return a.Size > b.Size
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an == bn {
			return a.Name < b.Name
		}
		return natural.Less(an, bn)
	})
}
