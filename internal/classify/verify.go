package classify

import (
	"fmt"
	"sort"
)

// ConsistencyError reports a broken partition out of verification.
// It indicates a defect in the classifier, not bad oracle output, and
// is fatal to the run.
type ConsistencyError struct {
	Expected   int
	Got        int
	Missing    []int
	Duplicated []int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("classification partition broken: expected %d indices, got %d (missing %d, duplicated %d)",
		e.Expected, e.Got, len(e.Missing), len(e.Duplicated))
}

// Verify checks that the collections partition {1..n} exactly and
// normalizes them: duplicate assignments are dropped (first collection
// in name order keeps the index), residual unassigned indices are
// backfilled into the catch-all, and empty collections are removed.
// The classifier already guarantees coverage by construction, so the
// backfill is a defensive second pass; a partition that still fails
// the final assertion is returned as a ConsistencyError.
func Verify(collections map[string][]int, n int) (map[string][]int, error) {
	verified := make(map[string][]int, len(collections))

	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[int]bool, n)
	var duplicated []int
	for _, name := range names {
		var kept []int
		for _, index := range collections[name] {
			if index < 1 || index > n {
				continue
			}
			if seen[index] {
				duplicated = append(duplicated, index)
				continue
			}
			seen[index] = true
			kept = append(kept, index)
		}
		if len(kept) > 0 {
			sort.Ints(kept)
			verified[name] = kept
		}
	}

	var missing []int
	for index := 1; index <= n; index++ {
		if !seen[index] {
			missing = append(missing, index)
		}
	}
	if len(missing) > 0 {
		verified[CatchAllName] = append(verified[CatchAllName], missing...)
		sort.Ints(verified[CatchAllName])
	}

	total := 0
	check := make(map[int]bool, n)
	var stillDuplicated []int
	for _, indices := range verified {
		total += len(indices)
		for _, index := range indices {
			if check[index] {
				stillDuplicated = append(stillDuplicated, index)
			}
			check[index] = true
		}
	}
	if total != n || len(check) != n || len(stillDuplicated) > 0 {
		var stillMissing []int
		for index := 1; index <= n; index++ {
			if !check[index] {
				stillMissing = append(stillMissing, index)
			}
		}
		return nil, &ConsistencyError{
			Expected:   n,
			Got:        total,
			Missing:    stillMissing,
			Duplicated: stillDuplicated,
		}
	}

	return verified, nil
}
