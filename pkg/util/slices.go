package util

// CopyInts copies a slice of ints.
func CopyInts(input []int) []int {
	results := make([]int, len(input))
	copy(results, input)
	return results
}

// HasRepeats returns whether the argument slice contains the same value more than once.
func HasRepeats(values []int) bool {
	seen := map[int]struct{}{}

	for _, value := range values {
		if _, ok := seen[value]; ok {
			return true
		}
		seen[value] = struct{}{}
	}

	return false
}

// NewElements returns the elements of updated that aren't in original, in the order
// they appear in updated.
func NewElements(original []int, updated []int) []int {
	originalMap := map[int]struct{}{}
	for _, value := range original {
		originalMap[value] = struct{}{}
	}

	added := []int{}
	for _, value := range updated {
		if _, ok := originalMap[value]; !ok {
			added = append(added, value)
		}
	}

	return added
}
