// Package board holds the rank-order algorithms for cards on a board.
// Ranks are 1-indexed and dense: for n cards the ranks are exactly {1..n}.
package board

import "fmt"

// Move reorders ids by removing the element at from and reinserting it at
// to. Indices address the rank-sorted list. Move(i, i) returns the input
// slice unchanged so callers can detect the no-op by identity.
func Move(ids []string, from, to int) ([]string, error) {
	if from < 0 || from >= len(ids) {
		return nil, fmt.Errorf("move: from index %d out of range [0,%d)", from, len(ids))
	}
	if to < 0 || to >= len(ids) {
		return nil, fmt.Errorf("move: to index %d out of range [0,%d)", to, len(ids))
	}
	if from == to {
		return ids, nil
	}

	moved := ids[from]
	rest := make([]string, 0, len(ids)-1)
	rest = append(rest, ids[:from]...)
	rest = append(rest, ids[from+1:]...)

	next := make([]string, 0, len(ids))
	next = append(next, rest[:to]...)
	next = append(next, moved)
	next = append(next, rest[to:]...)
	return next, nil
}

// Dense reports whether ranks form exactly the set {1..n} with no gaps or
// duplicates. The empty list is dense.
func Dense(ranks []int) bool {
	seen := make([]bool, len(ranks))
	for _, rank := range ranks {
		if rank < 1 || rank > len(ranks) {
			return false
		}
		if seen[rank-1] {
			return false
		}
		seen[rank-1] = true
	}
	return true
}
