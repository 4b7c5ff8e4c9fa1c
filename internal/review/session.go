package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"edubrief/internal/model"
)

var (
	ErrInFlight       = errors.New("article has a decide call in flight")
	ErrNothingToUndo  = errors.New("nothing to undo")
	ErrUnknownArticle = errors.New("article not in session")
)

const defaultReloadDelay = 120 * time.Millisecond

// command pairs an optimistic local mutation with its rollback. apply runs
// before the store call; compensate runs only when the call fails, so a
// failed request leaves the session looking like nothing happened.
type command struct {
	apply      func()
	compensate func()
}

// Session owns one editor's view of a report track: cached articles,
// per-article statuses and the authoritative selected/backup order lists.
// All state lives here, never in rendered output. Mutations are
// optimistic: local state changes first, the store call follows, and a
// rejected call rolls the local change back.
type Session struct {
	mu    sync.Mutex
	store Store
	actor string
	track string

	items         map[int64]*model.CandidateArticle
	status        map[int64]string
	selectedOrder []int64
	backupOrder   []int64

	inflight map[int64]bool
	lastUndo *Snapshot

	stats model.ReviewStats

	reloadDelay time.Duration
	reloadTimer *time.Timer

	refreshSeq uint64
	appliedSeq uint64
}

func NewSession(store Store, actor, track string) (*Session, error) {
	if !ValidTrack(track) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTrack, track)
	}
	return &Session{
		store:       store,
		actor:       actor,
		track:       track,
		items:       make(map[int64]*model.CandidateArticle),
		status:      make(map[int64]string),
		inflight:    make(map[int64]bool),
		reloadDelay: defaultReloadDelay,
	}, nil
}

func (s *Session) Track() string { return s.track }

// Load fetches the selected and backup buckets for the session's track and
// replaces the cached state wholesale. A load that raced a track switch is
// dropped rather than filed under the new track.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	track := s.track
	s.mu.Unlock()

	selected, err := s.store.FetchReviewItems(ctx, track, model.DecisionSelected, 0)
	if err != nil {
		return fmt.Errorf("load selected: %w", err)
	}
	backup, err := s.store.FetchReviewItems(ctx, track, model.DecisionBackup, 0)
	if err != nil {
		return fmt.Errorf("load backup: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track != track {
		return nil
	}
	s.items = make(map[int64]*model.CandidateArticle, len(selected)+len(backup))
	s.status = make(map[int64]string, len(selected)+len(backup))
	s.selectedOrder = s.selectedOrder[:0]
	s.backupOrder = s.backupOrder[:0]
	for i := range selected {
		item := selected[i]
		s.items[item.ID] = &item
		s.status[item.ID] = model.DecisionSelected
		s.selectedOrder = append(s.selectedOrder, item.ID)
	}
	for i := range backup {
		item := backup[i]
		s.items[item.ID] = &item
		s.status[item.ID] = model.DecisionBackup
		s.backupOrder = append(s.backupOrder, item.ID)
	}
	return nil
}

// SwitchTrack resets the session onto the other report track. Statuses for
// the previous track are untouched server-side; tracks are independent.
func (s *Session) SwitchTrack(ctx context.Context, track string) error {
	if !ValidTrack(track) {
		return fmt.Errorf("%w: %q", ErrInvalidTrack, track)
	}
	s.mu.Lock()
	s.track = track
	s.lastUndo = nil
	s.mu.Unlock()
	return s.Load(ctx)
}

// Items returns the bucket's articles in the authoritative order.
func (s *Session) Items(status string) []model.CandidateArticle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsLocked(status)
}

func (s *Session) itemsLocked(status string) []model.CandidateArticle {
	order := s.orderLocked(status)
	out := make([]model.CandidateArticle, 0, len(order))
	for _, id := range order {
		if item, ok := s.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out
}

func (s *Session) orderLocked(status string) []int64 {
	if status == model.DecisionBackup {
		return s.backupOrder
	}
	return s.selectedOrder
}

// Grouped returns the bucket's articles grouped for the normal review
// rail, in the rail's fixed bucket order.
func (s *Session) Grouped(status string) ([]Bucket, map[Bucket][]model.CandidateArticle) {
	groups := GroupByBucket(s.Items(status))
	return ReviewRailOrder, groups
}

// SortRow is the minimal row shown in sort mode: group label plus title.
type SortRow struct {
	ID     int64
	Bucket Bucket
	Title  string
}

// SortRows returns the flat drag-orderable view of a bucket.
func (s *Session) SortRows(status string) []SortRow {
	items := s.Items(status)
	rows := make([]SortRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, SortRow{ID: item.ID, Bucket: Categorize(item.Article), Title: item.Title})
	}
	return rows
}

// Decide moves the given articles to target in the current track. The same
// call serves a single card, a cluster (all member ids together) and a
// bulk multi-select. The whole batch succeeds or the local state rolls
// back; partial success is never assumed.
func (s *Session) Decide(ctx context.Context, ids []int64, target string) error {
	d, err := NewDecision(ids, target, s.track, s.actor)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for _, id := range ids {
		if s.inflight[id] {
			s.mu.Unlock()
			return fmt.Errorf("%w: id %d", ErrInFlight, id)
		}
	}
	for _, id := range ids {
		s.inflight[id] = true
	}
	snap := CaptureSnapshot(d, s.status)
	cmd := s.decideCommand(d)
	cmd.apply()
	s.mu.Unlock()

	_, err = s.store.Decide(ctx, d)

	s.mu.Lock()
	for _, id := range ids {
		delete(s.inflight, id)
	}
	if err != nil {
		cmd.compensate()
		s.mu.Unlock()
		return fmt.Errorf("decide: %w", err)
	}
	s.lastUndo = &snap
	empty := len(s.selectedOrder) == 0 && len(s.backupOrder) == 0
	s.mu.Unlock()

	s.refreshStats(ctx)
	if empty {
		s.scheduleReload()
	}
	return nil
}

// decideCommand builds the optimistic mutation for d and its exact
// rollback. Caller holds the lock for both apply and compensate.
func (s *Session) decideCommand(d Decision) command {
	prevStatus := make(map[int64]string, len(d.IDs()))
	for _, id := range d.IDs() {
		prevStatus[id] = s.status[id]
	}
	prevSelected := append([]int64(nil), s.selectedOrder...)
	prevBackup := append([]int64(nil), s.backupOrder...)

	return command{
		apply: func() {
			ids := d.IDs()
			s.selectedOrder = RemoveFromOrder(s.selectedOrder, ids)
			s.backupOrder = RemoveFromOrder(s.backupOrder, ids)
			for _, id := range ids {
				target, _ := d.TargetFor(id)
				s.status[id] = target
				switch target {
				case model.DecisionSelected:
					s.selectedOrder = append(s.selectedOrder, id)
				case model.DecisionBackup:
					s.backupOrder = append(s.backupOrder, id)
				}
			}
		},
		compensate: func() {
			for id, status := range prevStatus {
				if status == "" {
					delete(s.status, id)
					continue
				}
				s.status[id] = status
			}
			s.selectedOrder = prevSelected
			s.backupOrder = prevBackup
		},
	}
}

// Undo issues the single compensating decision for the last successful
// decide and refreshes the view. One shot: a second Undo without a new
// decide fails.
func (s *Session) Undo(ctx context.Context) error {
	s.mu.Lock()
	snap := s.lastUndo
	s.lastUndo = nil
	s.mu.Unlock()

	if snap == nil {
		return ErrNothingToUndo
	}
	if _, err := s.store.Decide(ctx, snap.Compensating()); err != nil {
		s.mu.Lock()
		s.lastUndo = snap
		s.mu.Unlock()
		return fmt.Errorf("undo: %w", err)
	}
	return s.Load(ctx)
}

// EditItem persists a summary/source override. Status is untouched; a
// failed save restores the previous text.
func (s *Session) EditItem(ctx context.Context, id int64, summary, llmSource string) error {
	s.mu.Lock()
	item, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: id %d", ErrUnknownArticle, id)
	}
	prevSummary, prevSource := item.Summary, item.LLMSourceDisplay
	item.Summary = summary
	item.LLMSourceDisplay = llmSource
	s.mu.Unlock()

	err := s.store.SaveEdits(ctx, map[int64]Edit{id: {Summary: summary, LLMSource: llmSource}}, s.actor, s.track)
	if err != nil {
		s.mu.Lock()
		if item, ok := s.items[id]; ok {
			item.Summary = prevSummary
			item.LLMSourceDisplay = prevSource
		}
		s.mu.Unlock()
		return fmt.Errorf("save edits: %w", err)
	}
	return nil
}

// EditThenDecide persists the text edit and only then issues the status
// change, so the store always sees the final text before the transition.
func (s *Session) EditThenDecide(ctx context.Context, id int64, summary, llmSource, target string) error {
	if err := s.EditItem(ctx, id, summary, llmSource); err != nil {
		return err
	}
	return s.Decide(ctx, []int64{id}, target)
}

// Reorder persists a drag result for one bucket. The proposed order must
// be exactly the bucket's current membership.
func (s *Session) Reorder(ctx context.Context, status string, orderedIDs []int64) error {
	if status != model.DecisionSelected && status != model.DecisionBackup {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	current := s.orderLocked(status)
	if err := ValidateOrder(current, orderedIDs); err != nil {
		s.mu.Unlock()
		return err
	}
	prev := append([]int64(nil), current...)
	next := append([]int64(nil), orderedIDs...)
	if status == model.DecisionBackup {
		s.backupOrder = next
	} else {
		s.selectedOrder = next
	}
	selectedOrder := append([]int64(nil), s.selectedOrder...)
	backupOrder := append([]int64(nil), s.backupOrder...)
	s.mu.Unlock()

	err := s.store.SaveOrder(ctx, s.track, selectedOrder, backupOrder, s.actor)
	if err != nil {
		s.mu.Lock()
		if status == model.DecisionBackup {
			s.backupOrder = prev
		} else {
			s.selectedOrder = prev
		}
		s.mu.Unlock()
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

// Preview composes the digest text from the session's current view of a
// bucket without touching the store.
func (s *Session) Preview(status string) string {
	return Compose(s.track, s.Items(status))
}

// Export runs the store-side export for the session's track.
func (s *Session) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	req.Track = s.track
	req.Actor = s.actor
	return s.store.Export(ctx, req)
}

// Archive marks articles exported and drops them from the local view.
func (s *Session) Archive(ctx context.Context, ids []int64) (int, error) {
	count, err := s.store.Archive(ctx, ids, s.actor, s.track)
	if err != nil {
		return 0, fmt.Errorf("archive: %w", err)
	}
	s.mu.Lock()
	s.selectedOrder = RemoveFromOrder(s.selectedOrder, ids)
	s.backupOrder = RemoveFromOrder(s.backupOrder, ids)
	for _, id := range ids {
		delete(s.items, id)
		delete(s.status, id)
	}
	s.mu.Unlock()
	return count, nil
}

// Stats returns the last stats the session saw.
func (s *Session) Stats() model.ReviewStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) refreshStats(ctx context.Context) {
	s.mu.Lock()
	track := s.track
	s.mu.Unlock()

	stats, err := s.store.FetchStats(ctx, track)
	if err != nil {
		slog.Warn("stats refresh failed", "track", track, "error", err)
		return
	}
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

// Refresh reloads the view. Concurrent refreshes race under
// last-write-wins: a response is discarded when a later-issued refresh
// already landed, so a force-refresh is never silently overwritten by a
// stale in-flight reload.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.refreshSeq++
	seq := s.refreshSeq
	track := s.track
	s.mu.Unlock()

	selected, err := s.store.FetchReviewItems(ctx, track, model.DecisionSelected, 0)
	if err != nil {
		return fmt.Errorf("refresh selected: %w", err)
	}
	backup, err := s.store.FetchReviewItems(ctx, track, model.DecisionBackup, 0)
	if err != nil {
		return fmt.Errorf("refresh backup: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.appliedSeq || s.track != track {
		return nil
	}
	s.appliedSeq = seq
	s.items = make(map[int64]*model.CandidateArticle, len(selected)+len(backup))
	s.status = make(map[int64]string, len(selected)+len(backup))
	s.selectedOrder = nil
	s.backupOrder = nil
	for i := range selected {
		item := selected[i]
		s.items[item.ID] = &item
		s.status[item.ID] = model.DecisionSelected
		s.selectedOrder = append(s.selectedOrder, item.ID)
	}
	for i := range backup {
		item := backup[i]
		s.items[item.ID] = &item
		s.status[item.ID] = model.DecisionBackup
		s.backupOrder = append(s.backupOrder, item.ID)
	}
	return nil
}

// scheduleReload coalesces "view became empty, reload soon" checks: rapid
// consecutive card removals reset one shared timer instead of firing one
// reload each.
func (s *Session) scheduleReload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reloadTimer != nil {
		s.reloadTimer.Stop()
	}
	s.reloadTimer = time.AfterFunc(s.reloadDelay, func() {
		if err := s.Refresh(context.Background()); err != nil {
			slog.Warn("debounced reload failed", "track", s.track, "error", err)
		}
	})
}
