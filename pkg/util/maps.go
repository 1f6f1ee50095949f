package util

import (
	"sort"
)

// SortedKeys returns the keys of the argument, sorted in ascending order.
func SortedKeys(input map[int]int) []int {
	keys := make([]int, 0, len(input))

	for key := range input {
		keys = append(keys, key)
	}

	sort.Ints(keys)
	return keys
}

// SortedStringKeys returns the keys of the argument, sorted in ascending order.
func SortedStringKeys[V any](input map[string]V) []string {
	keys := make([]string, 0, len(input))

	for key := range input {
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys
}
