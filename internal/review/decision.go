package review

import (
	"errors"
	"fmt"
	"sort"

	"edubrief/internal/model"
)

var (
	ErrInvalidStatus     = errors.New("invalid manual status")
	ErrInvalidTrack      = errors.New("invalid report track")
	ErrEmptyDecision     = errors.New("decision names no articles")
	ErrConflictingTarget = errors.New("article named with two target statuses")
	ErrOrderMismatch     = errors.New("order does not match bucket membership")
)

// ValidStatus reports whether s is one of the four manual statuses. No
// other value is ever written; "exported" is an external mark, not a
// status tracked here.
func ValidStatus(s string) bool {
	switch s {
	case model.DecisionPending, model.DecisionSelected, model.DecisionBackup, model.DecisionDiscarded:
		return true
	}
	return false
}

func ValidTrack(t string) bool {
	return t == model.TrackZongbao || t == model.TrackWanbao
}

// Decision is one batch status transition for a single report track. The
// same primitive serves single-card, cluster and bulk moves; a cluster
// decision is nothing more than a Decision naming every member id.
type Decision struct {
	Track     string
	Actor     string
	Selected  []int64
	Backup    []int64
	Discarded []int64
	Pending   []int64
}

// NewDecision builds a single-target decision, the common case for card,
// cluster and bulk controls.
func NewDecision(ids []int64, target, track, actor string) (Decision, error) {
	d := Decision{Track: track, Actor: actor}
	switch target {
	case model.DecisionSelected:
		d.Selected = ids
	case model.DecisionBackup:
		d.Backup = ids
	case model.DecisionDiscarded:
		d.Discarded = ids
	case model.DecisionPending:
		d.Pending = ids
	default:
		return Decision{}, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
	if err := d.Validate(); err != nil {
		return Decision{}, err
	}
	return d, nil
}

// Validate checks the batch invariants: a known track, at least one id,
// and no id appearing under two targets.
func (d Decision) Validate() error {
	if !ValidTrack(d.Track) {
		return fmt.Errorf("%w: %q", ErrInvalidTrack, d.Track)
	}
	seen := make(map[int64]struct{})
	total := 0
	for _, ids := range [][]int64{d.Selected, d.Backup, d.Discarded, d.Pending} {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: id %d", ErrConflictingTarget, id)
			}
			seen[id] = struct{}{}
			total++
		}
	}
	if total == 0 {
		return ErrEmptyDecision
	}
	return nil
}

// IDs returns every article id the decision touches, sorted.
func (d Decision) IDs() []int64 {
	var ids []int64
	ids = append(ids, d.Selected...)
	ids = append(ids, d.Backup...)
	ids = append(ids, d.Discarded...)
	ids = append(ids, d.Pending...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TargetFor reports the target status the decision assigns to id.
func (d Decision) TargetFor(id int64) (string, bool) {
	for _, set := range []struct {
		status string
		ids    []int64
	}{
		{model.DecisionSelected, d.Selected},
		{model.DecisionBackup, d.Backup},
		{model.DecisionDiscarded, d.Discarded},
		{model.DecisionPending, d.Pending},
	} {
		for _, v := range set.ids {
			if v == id {
				return set.status, true
			}
		}
	}
	return "", false
}

// Snapshot captures the pre-decision status of every touched article so a
// single compensating decision can restore it. Undo is single-shot: one
// snapshot, one compensating call, no stack.
type Snapshot struct {
	Track string
	Actor string
	Prev  map[int64]string
}

// CaptureSnapshot records the current status of each id before d is
// applied. Ids with no recorded status snapshot as pending.
func CaptureSnapshot(d Decision, current map[int64]string) Snapshot {
	snap := Snapshot{Track: d.Track, Actor: d.Actor, Prev: make(map[int64]string)}
	for _, id := range d.IDs() {
		status, ok := current[id]
		if !ok || !ValidStatus(status) {
			status = model.DecisionPending
		}
		snap.Prev[id] = status
	}
	return snap
}

// Compensating builds the decision that restores every article in the
// snapshot to its pre-decision status.
func (s Snapshot) Compensating() Decision {
	d := Decision{Track: s.Track, Actor: s.Actor}
	ids := make([]int64, 0, len(s.Prev))
	for id := range s.Prev {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		switch s.Prev[id] {
		case model.DecisionSelected:
			d.Selected = append(d.Selected, id)
		case model.DecisionBackup:
			d.Backup = append(d.Backup, id)
		case model.DecisionDiscarded:
			d.Discarded = append(d.Discarded, id)
		default:
			d.Pending = append(d.Pending, id)
		}
	}
	return d
}

// ClusterStatus derives a cluster's aggregate status: the status all
// members share, or empty when they disagree. Per-member radio state on
// the cluster card always reflects this value.
func ClusterStatus(members []model.CandidateArticle) string {
	if len(members) == 0 {
		return ""
	}
	status := members[0].ManualStatus
	for _, m := range members[1:] {
		if m.ManualStatus != status {
			return ""
		}
	}
	return status
}
