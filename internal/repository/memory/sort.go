package memory

import (
	"cmp"
	"slices"
)

func sortByID[T any](items []T, id func(T) int64) {
	slices.SortFunc(items, func(a, b T) int { return cmp.Compare(id(a), id(b)) })
}
