package rerank

// Position-bias mitigation is a pure post-step over an already-ordered
// (by relevance, descending) slice (spec.md §4.6/§9). Reused by
// internal/assemble for its `ordering` option.

// SandwichOrder places the top startCount items at the head, then reverses
// the remainder and appends it, so the weakest items land in the middle and
// the second-best block lands at the very end.
func SandwichOrder[T any](items []T, startCount int) []T {
	if startCount < 0 {
		startCount = 0
	}
	if startCount > len(items) {
		startCount = len(items)
	}
	out := make([]T, 0, len(items))
	out = append(out, items[:startCount]...)
	for i := len(items) - 1; i >= startCount; i-- {
		out = append(out, items[i])
	}
	return out
}

// ReverseSandwichOrder inverts the sandwich bias: weakest items at the two
// edges, strongest item as close to the literal center as integer division
// allows. Per spec.md §9's Open Question, the exact permutation is
// implementation-defined — only the center-landing guarantee is load-bearing
// (see DESIGN.md).
func ReverseSandwichOrder[T any](items []T) []T {
	n := len(items)
	out := make([]T, n)
	left, right := 0, n-1
	// Walk weakest-to-strongest (reverse of the relevance-descending input)
	// so the strongest item is placed last, landing wherever the two
	// pointers meet.
	for i := n - 1; i >= 0; i-- {
		pos := n - 1 - i
		if pos%2 == 0 {
			out[left] = items[i]
			left++
		} else {
			out[right] = items[i]
			right--
		}
	}
	return out
}

// InterleaveOrder alternates head/tail pointers toward the middle:
// items[0], items[n-1], items[1], items[n-2], ...
func InterleaveOrder[T any](items []T) []T {
	n := len(items)
	out := make([]T, 0, n)
	left, right := 0, n-1
	takeLeft := true
	for left <= right {
		if takeLeft {
			out = append(out, items[left])
			left++
		} else {
			out = append(out, items[right])
			right--
		}
		takeLeft = !takeLeft
	}
	return out
}
