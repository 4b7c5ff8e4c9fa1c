package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"edubrief/internal/model"
)

type fakeReviewStore struct {
	mu     sync.Mutex
	status map[string]map[int64]string
	orders map[string][]int64
	items  map[int64]model.CandidateArticle
	calls  []string

	decideErr error
	editsErr  error
	orderErr  error

	fetchHook  func(track, decision string)
	decideHook func()
}

func newFakeReviewStore(articles ...model.CandidateArticle) *fakeReviewStore {
	f := &fakeReviewStore{
		status: map[string]map[int64]string{
			model.TrackZongbao: {},
			model.TrackWanbao:  {},
		},
		orders: map[string][]int64{},
		items:  map[int64]model.CandidateArticle{},
	}
	for _, a := range articles {
		f.items[a.ID] = a
		f.status[model.TrackZongbao][a.ID] = model.DecisionPending
		f.status[model.TrackWanbao][a.ID] = model.DecisionPending
	}
	return f
}

// seed marks articles with a status in one track, order list appended in
// the given sequence.
func (f *fakeReviewStore) seed(track, status string, ids ...int64) {
	for _, id := range ids {
		f.status[track][id] = status
	}
	key := track + "|" + status
	f.orders[key] = append(f.orders[key], ids...)
}

func (f *fakeReviewStore) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeReviewStore) FetchCandidates(ctx context.Context, q CandidateQuery) (CandidatePage, error) {
	return CandidatePage{}, nil
}

func (f *fakeReviewStore) FetchReviewItems(ctx context.Context, track, decision string, limit int) ([]model.CandidateArticle, error) {
	if f.fetchHook != nil {
		f.fetchHook(track, decision)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []model.CandidateArticle
	for id, status := range f.status[track] {
		if status == decision {
			item := f.items[id]
			item.ReportTrack = track
			item.ManualStatus = status
			items = append(items, item)
		}
	}
	return ApplyOrder(items, f.orders[track+"|"+decision]), nil
}

func (f *fakeReviewStore) FetchDiscarded(ctx context.Context, track string, limit, offset int) ([]model.CandidateArticle, int, error) {
	return nil, 0, nil
}

func (f *fakeReviewStore) SaveEdits(ctx context.Context, edits map[int64]Edit, actor, track string) error {
	f.record("save_edits")
	if f.editsErr != nil {
		return f.editsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, e := range edits {
		item := f.items[id]
		item.Summary = e.Summary
		item.LLMSourceDisplay = e.LLMSource
		f.items[id] = item
	}
	return nil
}

func (f *fakeReviewStore) Decide(ctx context.Context, d Decision) (DecideCounts, error) {
	ids := d.IDs()
	f.record(fmt.Sprintf("decide:%d", len(ids)))
	if f.decideHook != nil {
		f.decideHook()
	}
	if f.decideErr != nil {
		return DecideCounts{}, f.decideErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, status := range []string{model.DecisionSelected, model.DecisionBackup} {
		key := d.Track + "|" + status
		f.orders[key] = RemoveFromOrder(f.orders[key], ids)
	}
	for _, id := range ids {
		target, _ := d.TargetFor(id)
		f.status[d.Track][id] = target
		if target == model.DecisionSelected || target == model.DecisionBackup {
			key := d.Track + "|" + target
			f.orders[key] = append(f.orders[key], id)
		}
	}
	return DecideCounts{Selected: len(d.Selected), Backup: len(d.Backup), Discarded: len(d.Discarded)}, nil
}

func (f *fakeReviewStore) SaveOrder(ctx context.Context, track string, selectedOrder, backupOrder []int64, actor string) error {
	f.record("save_order")
	if f.orderErr != nil {
		return f.orderErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[track+"|"+model.DecisionSelected] = append([]int64(nil), selectedOrder...)
	f.orders[track+"|"+model.DecisionBackup] = append([]int64(nil), backupOrder...)
	return nil
}

func (f *fakeReviewStore) Restore(ctx context.Context, id int64, target, actor, track string) error {
	return nil
}

func (f *fakeReviewStore) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	return ExportResult{}, nil
}

func (f *fakeReviewStore) Archive(ctx context.Context, ids []int64, actor, track string) (int, error) {
	f.record("archive")
	return len(ids), nil
}

func (f *fakeReviewStore) FetchStats(ctx context.Context, track string) (model.ReviewStats, error) {
	return model.ReviewStats{}, nil
}

func (f *fakeReviewStore) trackStatus(track string, id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[track][id]
}

func newTestSession(t *testing.T, store Store, track string) *Session {
	t.Helper()
	s, err := NewSession(store, "editor", track)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func art(id int64, title string) model.CandidateArticle {
	return model.CandidateArticle{Article: model.Article{ID: id, Title: title, BeijingRelated: true}}
}

func TestSessionLoad(t *testing.T) {
	store := newFakeReviewStore(art(1, "一"), art(2, "二"), art(3, "三"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 2, 1)
	store.seed(model.TrackZongbao, model.DecisionBackup, 3)

	s := newTestSession(t, store, model.TrackZongbao)

	selected := s.Items(model.DecisionSelected)
	if len(selected) != 2 || selected[0].ID != 2 || selected[1].ID != 1 {
		t.Errorf("selected order wrong: %+v", selected)
	}
	if backup := s.Items(model.DecisionBackup); len(backup) != 1 || backup[0].ID != 3 {
		t.Errorf("backup wrong: %+v", backup)
	}
}

func TestSessionDecideRemovesCard(t *testing.T) {
	store := newFakeReviewStore(art(1, "一"), art(2, "二"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1, 2)

	s := newTestSession(t, store, model.TrackZongbao)
	if err := s.Decide(context.Background(), []int64{1}, model.DecisionDiscarded); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	items := s.Items(model.DecisionSelected)
	if len(items) != 1 || items[0].ID != 2 {
		t.Errorf("card 1 must leave the view: %+v", items)
	}
	if got := store.trackStatus(model.TrackZongbao, 1); got != model.DecisionDiscarded {
		t.Errorf("store status = %q, want discarded", got)
	}
}

func TestSessionDecideFailureRollsBack(t *testing.T) {
	store := newFakeReviewStore(art(1, "一"), art(2, "二"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1, 2)
	store.decideErr = errors.New("network down")

	s := newTestSession(t, store, model.TrackZongbao)
	if err := s.Decide(context.Background(), []int64{1}, model.DecisionDiscarded); err == nil {
		t.Fatalf("expected error")
	}

	items := s.Items(model.DecisionSelected)
	if len(items) != 2 || items[0].ID != 1 {
		t.Errorf("failed decide must leave the view untouched: %+v", items)
	}
	if got := store.trackStatus(model.TrackZongbao, 1); got != model.DecisionSelected {
		t.Errorf("store status changed on failure: %q", got)
	}
	if err := s.Undo(context.Background()); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("failed decide must not arm undo, got %v", err)
	}
}

func TestSessionClusterAtomicity(t *testing.T) {
	store := newFakeReviewStore(art(1, "a"), art(2, "b"), art(3, "c"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1, 2, 3)

	s := newTestSession(t, store, model.TrackZongbao)
	if err := s.Decide(context.Background(), []int64{1, 2, 3}, model.DecisionBackup); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	// One batch call, never one per member.
	if len(store.calls) == 0 || store.calls[0] != "decide:3" {
		t.Errorf("cluster decide must be one batch call: %v", store.calls)
	}
	for _, id := range []int64{1, 2, 3} {
		if got := store.trackStatus(model.TrackZongbao, id); got != model.DecisionBackup {
			t.Errorf("member %d = %q, want backup", id, got)
		}
	}
}

func TestSessionTrackIndependence(t *testing.T) {
	store := newFakeReviewStore(art(1, "a"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1)
	store.seed(model.TrackWanbao, model.DecisionSelected, 1)

	s := newTestSession(t, store, model.TrackZongbao)
	if err := s.Decide(context.Background(), []int64{1}, model.DecisionDiscarded); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if got := store.trackStatus(model.TrackWanbao, 1); got != model.DecisionSelected {
		t.Errorf("wanbao status must be untouched, got %q", got)
	}
}

func TestSessionUndoRestoresPriorState(t *testing.T) {
	store := newFakeReviewStore(art(1, "a"), art(2, "b"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1, 2)

	s := newTestSession(t, store, model.TrackZongbao)
	if err := s.Decide(context.Background(), []int64{1}, model.DecisionDiscarded); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if err := s.Undo(context.Background()); err != nil {
		t.Fatalf("Undo: %v", err)
	}

	if got := store.trackStatus(model.TrackZongbao, 1); got != model.DecisionSelected {
		t.Errorf("undo must restore selected, got %q", got)
	}
	found := false
	for _, item := range s.Items(model.DecisionSelected) {
		if item.ID == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("undone item must reappear in its bucket")
	}

	// Single shot.
	if err := s.Undo(context.Background()); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("second undo must fail, got %v", err)
	}
}

func TestSessionOrderRoundTrip(t *testing.T) {
	store := newFakeReviewStore(art(1, "a"), art(2, "b"), art(3, "c"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1, 2, 3)

	s := newTestSession(t, store, model.TrackZongbao)
	if err := s.Reorder(context.Background(), model.DecisionSelected, []int64{3, 1, 2}); err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	// A fresh session reads the persisted sequence verbatim.
	s2 := newTestSession(t, store, model.TrackZongbao)
	items := s2.Items(model.DecisionSelected)
	want := []int64{3, 1, 2}
	for i, item := range items {
		if item.ID != want[i] {
			t.Fatalf("position %d: got id %d, want %d", i, item.ID, want[i])
		}
	}
}

func TestSessionReorderMismatch(t *testing.T) {
	store := newFakeReviewStore(art(1, "a"), art(2, "b"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1, 2)

	s := newTestSession(t, store, model.TrackZongbao)
	if err := s.Reorder(context.Background(), model.DecisionSelected, []int64{1}); !errors.Is(err, ErrOrderMismatch) {
		t.Fatalf("expected ErrOrderMismatch, got %v", err)
	}
	for _, call := range store.calls {
		if call == "save_order" {
			t.Errorf("mismatched order must never reach the store")
		}
	}
}

func TestSessionReorderFailureRollsBack(t *testing.T) {
	store := newFakeReviewStore(art(1, "a"), art(2, "b"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1, 2)
	store.orderErr = errors.New("boom")

	s := newTestSession(t, store, model.TrackZongbao)
	if err := s.Reorder(context.Background(), model.DecisionSelected, []int64{2, 1}); err == nil {
		t.Fatalf("expected error")
	}
	items := s.Items(model.DecisionSelected)
	if items[0].ID != 1 || items[1].ID != 2 {
		t.Errorf("failed reorder must keep the old sequence: %+v", items)
	}
}

func TestSessionEditThenDecideOrdering(t *testing.T) {
	store := newFakeReviewStore(art(1, "a"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1)

	var summaryAtDecide string
	store.decideHook = func() {
		store.mu.Lock()
		summaryAtDecide = store.items[1].Summary
		store.mu.Unlock()
	}

	s := newTestSession(t, store, model.TrackZongbao)
	if err := s.EditThenDecide(context.Background(), 1, "改后摘要", "", model.DecisionBackup); err != nil {
		t.Fatalf("EditThenDecide: %v", err)
	}

	if summaryAtDecide != "改后摘要" {
		t.Errorf("decide observed stale summary %q", summaryAtDecide)
	}
	if len(store.calls) < 2 || store.calls[0] != "save_edits" {
		t.Errorf("edit must be persisted before decide: %v", store.calls)
	}
}

func TestSessionEditFailureRollsBack(t *testing.T) {
	a := art(1, "a")
	a.Summary = "原始摘要"
	store := newFakeReviewStore(a)
	store.seed(model.TrackZongbao, model.DecisionSelected, 1)
	store.editsErr = errors.New("boom")

	s := newTestSession(t, store, model.TrackZongbao)
	if err := s.EditItem(context.Background(), 1, "改后", ""); err == nil {
		t.Fatalf("expected error")
	}
	if got := s.Items(model.DecisionSelected)[0].Summary; got != "原始摘要" {
		t.Errorf("failed edit must restore text, got %q", got)
	}
}

func TestSessionEditDoesNotChangeStatus(t *testing.T) {
	store := newFakeReviewStore(art(1, "a"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1)

	s := newTestSession(t, store, model.TrackZongbao)
	if err := s.EditItem(context.Background(), 1, "新摘要", "新来源"); err != nil {
		t.Fatalf("EditItem: %v", err)
	}
	if got := store.trackStatus(model.TrackZongbao, 1); got != model.DecisionSelected {
		t.Errorf("edit must not change status, got %q", got)
	}
}

func TestSessionInFlightGuard(t *testing.T) {
	store := newFakeReviewStore(art(1, "a"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1)

	entered := make(chan struct{})
	release := make(chan struct{})
	store.decideHook = func() {
		close(entered)
		<-release
	}

	s := newTestSession(t, store, model.TrackZongbao)

	done := make(chan error, 1)
	go func() {
		done <- s.Decide(context.Background(), []int64{1}, model.DecisionBackup)
	}()

	<-entered
	if err := s.Decide(context.Background(), []int64{1}, model.DecisionDiscarded); !errors.Is(err, ErrInFlight) {
		t.Errorf("duplicate submission must be refused, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first decide failed: %v", err)
	}
}

func TestSessionRefreshLastWriteWins(t *testing.T) {
	store := newFakeReviewStore(art(1, "a"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1)

	s := newTestSession(t, store, model.TrackZongbao)

	// The first refresh reads stale selected items, then stalls on its
	// backup fetch while a second refresh lands with newer data.
	firstBlocked := make(chan struct{})
	holdFirst := make(chan struct{})
	var fetchCalls int
	var mu sync.Mutex
	store.fetchHook = func(track, decision string) {
		mu.Lock()
		fetchCalls++
		n := fetchCalls
		mu.Unlock()
		if n == 2 {
			close(firstBlocked)
			<-holdFirst
		}
	}

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Refresh(context.Background())
	}()
	<-firstBlocked

	store.mu.Lock()
	item := store.items[1]
	item.Title = "updated"
	store.items[1] = item
	store.mu.Unlock()
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	close(holdFirst)
	if err := <-firstDone; err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	if got := s.Items(model.DecisionSelected)[0].Title; got != "updated" {
		t.Errorf("stale refresh overwrote newer state: title %q", got)
	}
}

func TestSessionRefreshDiscardedAfterTrackSwitch(t *testing.T) {
	store := newFakeReviewStore(art(1, "综"), art(2, "晚"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1)
	store.seed(model.TrackWanbao, model.DecisionSelected, 2)

	s := newTestSession(t, store, model.TrackZongbao)

	// A refresh stalls mid-fetch while the editor switches tracks; its
	// result belongs to the old track and must not be filed.
	blocked := make(chan struct{})
	hold := make(chan struct{})
	var once sync.Once
	store.fetchHook = func(track, decision string) {
		if track == model.TrackZongbao {
			once.Do(func() { close(blocked) })
			<-hold
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- s.Refresh(context.Background())
	}()
	<-blocked

	if err := s.SwitchTrack(context.Background(), model.TrackWanbao); err != nil {
		t.Fatalf("SwitchTrack: %v", err)
	}

	close(hold)
	if err := <-done; err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	selected := s.Items(model.DecisionSelected)
	if len(selected) != 1 || selected[0].ID != 2 {
		t.Errorf("stale refresh overwrote the switched track: %+v", selected)
	}
}

func TestSessionDebouncedReload(t *testing.T) {
	store := newFakeReviewStore(art(1, "a"))
	store.seed(model.TrackZongbao, model.DecisionSelected, 1)

	var fetches int
	var mu sync.Mutex
	s := newTestSession(t, store, model.TrackZongbao)
	s.reloadDelay = 5 * time.Millisecond
	store.fetchHook = func(track, decision string) {
		mu.Lock()
		fetches++
		mu.Unlock()
	}

	// Last card leaves the view: a coalesced reload should follow.
	if err := s.Decide(context.Background(), []int64{1}, model.DecisionDiscarded); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fetches == 0 {
		t.Errorf("emptied view must trigger a reload")
	}
}
