package util

import "sort"

// ComputeOptimum returns the fair share of numItems over numBuckets, i.e. the floor of
// numItems / numBuckets, along with the number of buckets that are entitled to one extra
// item.
func ComputeOptimum(numBuckets int, numItems int) (int, int) {
	if numBuckets <= 0 {
		return 0, numItems
	}

	return numItems / numBuckets, numItems % numBuckets
}

// SeparateGroups splits the argument groups into over-loaded and under-loaded subsets
// relative to the fair-share band implied by ComputeOptimum(len(groups), total).
//
// Groups are ranked by key, highest first. The first extra groups in that ranking are
// entitled to optimum+1 elements and the rest to optimum. A group is over-loaded if it
// holds more than its entitlement and under-loaded if it holds fewer. The sort is stable,
// so the input order decides ties; callers pass groups sorted by ID.
func SeparateGroups[T any](
	groups []T,
	key func(T) int,
	total int,
) ([]T, []T) {
	optimum, extra := ComputeOptimum(len(groups), total)

	ranked := make([]T, len(groups))
	copy(ranked, groups)
	sort.SliceStable(ranked, func(a, b int) bool {
		return key(ranked[a]) > key(ranked[b])
	})

	over := []T{}
	under := []T{}

	for g, group := range ranked {
		entitlement := optimum
		if g < extra {
			entitlement++
		}

		count := key(group)
		if count > entitlement {
			over = append(over, group)
		} else if count < entitlement {
			under = append(under, group)
		}
	}

	return over, under
}
