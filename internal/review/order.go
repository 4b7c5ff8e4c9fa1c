package review

import (
	"fmt"

	"edubrief/internal/model"
)

// ValidateOrder rejects a proposed order that is not exactly the current
// bucket membership: duplicates, unknown ids and omissions all fail.
// Mismatched sets are rejected outright, never silently truncated.
func ValidateOrder(current, proposed []int64) error {
	if len(proposed) != len(current) {
		return fmt.Errorf("%w: have %d ids, got %d", ErrOrderMismatch, len(current), len(proposed))
	}
	members := make(map[int64]bool, len(current))
	for _, id := range current {
		members[id] = false
	}
	for _, id := range proposed {
		seen, ok := members[id]
		if !ok {
			return fmt.Errorf("%w: unknown id %d", ErrOrderMismatch, id)
		}
		if seen {
			return fmt.Errorf("%w: duplicate id %d", ErrOrderMismatch, id)
		}
		members[id] = true
	}
	return nil
}

// ApplyOrder arranges items in the persisted sequence. Items missing from
// the order list keep their fetched relative order and go to the back;
// order entries with no matching item are ignored.
func ApplyOrder(items []model.CandidateArticle, order []int64) []model.CandidateArticle {
	byID := make(map[int64]int, len(items))
	for i, item := range items {
		byID[item.ID] = i
	}

	out := make([]model.CandidateArticle, 0, len(items))
	placed := make(map[int64]struct{}, len(items))
	for _, id := range order {
		if i, ok := byID[id]; ok {
			out = append(out, items[i])
			placed[id] = struct{}{}
		}
	}
	for _, item := range items {
		if _, ok := placed[item.ID]; !ok {
			out = append(out, item)
		}
	}
	return out
}

// MergeOrder reconciles a persisted order list with the bucket's current
// membership after a decide changed it: stale ids are pruned and new ids
// append at the back, preserving their relative order in members.
func MergeOrder(order, members []int64) []int64 {
	current := make(map[int64]struct{}, len(members))
	for _, id := range members {
		current[id] = struct{}{}
	}

	out := make([]int64, 0, len(members))
	kept := make(map[int64]struct{}, len(members))
	for _, id := range order {
		if _, ok := current[id]; !ok {
			continue
		}
		if _, dup := kept[id]; dup {
			continue
		}
		out = append(out, id)
		kept[id] = struct{}{}
	}
	for _, id := range members {
		if _, ok := kept[id]; !ok {
			out = append(out, id)
			kept[id] = struct{}{}
		}
	}
	return out
}

// RemoveFromOrder drops the given ids from an order list, keeping the
// remainder's sequence.
func RemoveFromOrder(order []int64, ids []int64) []int64 {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := make([]int64, 0, len(order))
	for _, id := range order {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
