package review

import (
	"context"

	"edubrief/internal/model"
)

// Edit is a pending text change to one article. Edits never touch the
// manual status; the two are persisted independently.
type Edit struct {
	Summary   string
	LLMSource string
}

type DecideCounts struct {
	Selected  int
	Backup    int
	Discarded int
}

type CandidateQuery struct {
	Region       string
	Sentiment    string
	Track        string
	Cluster      bool
	ForceRefresh bool
	Limit        int
	Offset       int
}

type CandidatePage struct {
	Items []model.CandidateArticle
	Total int
}

type ExportRequest struct {
	ReportTag    string
	Template     string
	Period       int
	TotalPeriod  int
	DryRun       bool
	MarkExported bool
	Track        string
	View         string
	Actor        string
}

type ExportResult struct {
	Content     string
	Count       int
	Period      int
	TotalPeriod int
}

// Store is the candidate store contract the review workflow drives. The
// Postgres repository implements it server-side; the session drives it
// from the editor's side.
type Store interface {
	FetchCandidates(ctx context.Context, q CandidateQuery) (CandidatePage, error)
	FetchReviewItems(ctx context.Context, track, decision string, limit int) ([]model.CandidateArticle, error)
	FetchDiscarded(ctx context.Context, track string, limit, offset int) ([]model.CandidateArticle, int, error)
	SaveEdits(ctx context.Context, edits map[int64]Edit, actor, track string) error
	Decide(ctx context.Context, d Decision) (DecideCounts, error)
	SaveOrder(ctx context.Context, track string, selectedOrder, backupOrder []int64, actor string) error
	Restore(ctx context.Context, id int64, target, actor, track string) error
	Export(ctx context.Context, req ExportRequest) (ExportResult, error)
	Archive(ctx context.Context, ids []int64, actor, track string) (int, error)
	FetchStats(ctx context.Context, track string) (model.ReviewStats, error)
}
