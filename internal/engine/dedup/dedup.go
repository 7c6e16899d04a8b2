// Package dedup collapses repeated texts in a batch so each distinct text is
// analyzed once. Classification is deterministic, so a result computed for
// one occurrence holds for all of them.
package dedup

// Batch is a collapsed view of a list of texts.
type Batch struct {
	// Unique holds each distinct text once, in first-occurrence order.
	Unique []string
	// Slots maps every input position to its text's index in Unique.
	Slots []int
}

// Collapse groups identical texts. Matching is exact; texts that differ only
// in case or punctuation are kept apart.
func Collapse(texts []string) Batch {
	b := Batch{
		Slots: make([]int, len(texts)),
	}
	seen := make(map[string]int, len(texts))
	for i, t := range texts {
		slot, ok := seen[t]
		if !ok {
			slot = len(b.Unique)
			seen[t] = slot
			b.Unique = append(b.Unique, t)
		}
		b.Slots[i] = slot
	}
	return b
}

// Duplicates reports how many inputs were folded into an earlier one.
func (b Batch) Duplicates() int {
	return len(b.Slots) - len(b.Unique)
}

// Expand returns one result per input position, given one result per
// Unique entry.
func Expand[T any](b Batch, results []T) []T {
	out := make([]T, len(b.Slots))
	for i, slot := range b.Slots {
		out[i] = results[slot]
	}
	return out
}
