package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"edubrief/internal/model"
	"edubrief/internal/review"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

var ErrArticleMissing = errors.New("article no longer present")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// CandidateRepository is the Candidate Store: it owns the manual decision
// rows keyed by (article_id, report_track), the per-bucket order arrays
// and the export log. It implements review.Store.
type CandidateRepository struct {
	db *sql.DB
}

func NewCandidateRepository(db *sql.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

const candidateColumns = `a.id, a.title, a.url, a.source, a.summary,
	a.llm_source_raw, a.llm_source_display, a.is_beijing_related,
	a.sentiment_label, a.external_importance_score, a.score,
	a.bonus_keywords, a.published_at, a.fetched_at,
	COALESCE(d.status, 'pending'), COALESCE(d.decided_by, ''), d.decided_at`

func scanCandidate(rows interface{ Scan(...any) error }, track string) (model.CandidateArticle, error) {
	var c model.CandidateArticle
	var summary, llmRaw, llmDisplay, sentiment sql.NullString
	var extScore, score sql.NullFloat64
	var keywords pq.StringArray
	var decidedAt sql.NullTime

	err := rows.Scan(
		&c.ID, &c.Title, &c.URL, &c.Source, &summary,
		&llmRaw, &llmDisplay, &c.BeijingRelated,
		&sentiment, &extScore, &score,
		&keywords, &c.PublishedAt, &c.FetchedAt,
		&c.ManualStatus, &c.DecidedBy, &decidedAt,
	)
	if err != nil {
		return c, err
	}

	c.Summary = summary.String
	c.LLMSourceRaw = llmRaw.String
	c.LLMSourceDisplay = llmDisplay.String
	c.SentimentLabel = sentiment.String
	if extScore.Valid {
		v := extScore.Float64
		c.ExternalScore = &v
	}
	if score.Valid {
		v := score.Float64
		c.Score = &v
	}
	c.BonusKeywords = keywords
	if decidedAt.Valid {
		t := decidedAt.Time
		c.DecidedAt = &t
	}
	c.ReportTrack = track
	return c, nil
}

func (r *CandidateRepository) FetchCandidates(ctx context.Context, q review.CandidateQuery) (review.CandidatePage, error) {
	track := q.Track
	if track == "" {
		track = model.TrackZongbao
	}

	base := psql.Select().
		From("article a").
		LeftJoin("review_decision d ON d.article_id = a.id AND d.report_track = ?", track).
		Where(sq.Eq{"a.status": model.StatusScored}).
		Where("COALESCE(d.status, 'pending') = 'pending'").
		Where("d.exported_at IS NULL")

	switch q.Region {
	case "internal":
		base = base.Where(sq.Eq{"a.is_beijing_related": true})
	case "external":
		base = base.Where(sq.Eq{"a.is_beijing_related": false})
	}
	if q.Sentiment != "" {
		if review.IsNegative(q.Sentiment) {
			base = base.Where("LOWER(a.sentiment_label) = 'negative'")
		} else {
			base = base.Where("COALESCE(LOWER(a.sentiment_label), '') <> 'negative'")
		}
	}

	var total int
	countSQL, countArgs, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return review.CandidatePage{}, fmt.Errorf("build count: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return review.CandidatePage{}, err
	}

	query := base.Columns(candidateColumns).
		OrderBy("COALESCE(a.external_importance_score, a.score) DESC NULLS LAST", "a.published_at DESC", "a.id DESC")
	if q.Limit > 0 {
		query = query.Limit(uint64(q.Limit)).Offset(uint64(q.Offset))
	}

	listSQL, listArgs, err := query.ToSql()
	if err != nil {
		return review.CandidatePage{}, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		return review.CandidatePage{}, err
	}
	defer rows.Close()

	var items []model.CandidateArticle
	for rows.Next() {
		c, err := scanCandidate(rows, track)
		if err != nil {
			return review.CandidatePage{}, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return review.CandidatePage{}, err
	}

	return review.CandidatePage{Items: items, Total: total}, nil
}

func (r *CandidateRepository) FetchReviewItems(ctx context.Context, track, decision string, limit int) ([]model.CandidateArticle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM article a
		JOIN review_decision d ON d.article_id = a.id AND d.report_track = $1
		WHERE d.status = $2 AND d.exported_at IS NULL
	`, track, decision)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.CandidateArticle
	for rows.Next() {
		c, err := scanCandidate(rows, track)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	order, err := r.getOrder(ctx, r.db, track, decision)
	if err != nil {
		return nil, err
	}

	items = review.ApplyOrder(items, order)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *CandidateRepository) FetchDiscarded(ctx context.Context, track string, limit, offset int) ([]model.CandidateArticle, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM review_decision d
		WHERE d.report_track = $1 AND d.status = $2 AND d.exported_at IS NULL
	`, track, model.DecisionDiscarded).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+candidateColumns+`
		FROM article a
		JOIN review_decision d ON d.article_id = a.id AND d.report_track = $1
		WHERE d.status = $2 AND d.exported_at IS NULL
		ORDER BY d.decided_at DESC
		LIMIT $3 OFFSET $4
	`, track, model.DecisionDiscarded, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []model.CandidateArticle
	for rows.Next() {
		c, err := scanCandidate(rows, track)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *CandidateRepository) SaveEdits(ctx context.Context, edits map[int64]review.Edit, actor, track string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for id, e := range edits {
		res, err := tx.ExecContext(ctx, `
			UPDATE article SET summary = $1, llm_source_display = $2 WHERE id = $3
		`, e.Summary, e.LLMSource, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: id %d", ErrArticleMissing, id)
		}
	}

	return tx.Commit()
}

// Decide applies one batch status transition atomically: decision upserts
// and order-array maintenance commit together or not at all.
func (r *CandidateRepository) Decide(ctx context.Context, d review.Decision) (review.DecideCounts, error) {
	if err := d.Validate(); err != nil {
		return review.DecideCounts{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return review.DecideCounts{}, err
	}
	defer tx.Rollback()

	ids := d.IDs()
	var present int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM article WHERE id = ANY($1)
	`, pq.Array(ids)).Scan(&present); err != nil {
		return review.DecideCounts{}, err
	}
	if present != len(ids) {
		return review.DecideCounts{}, fmt.Errorf("%w: %d of %d ids", ErrArticleMissing, len(ids)-present, len(ids))
	}

	for _, set := range []struct {
		status string
		ids    []int64
	}{
		{model.DecisionSelected, d.Selected},
		{model.DecisionBackup, d.Backup},
		{model.DecisionDiscarded, d.Discarded},
		{model.DecisionPending, d.Pending},
	} {
		if len(set.ids) == 0 {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO review_decision(article_id, report_track, status, decided_by, decided_at)
			SELECT unnest($1::bigint[]), $2, $3, $4, now()
			ON CONFLICT (article_id, report_track)
			DO UPDATE SET status = EXCLUDED.status, decided_by = EXCLUDED.decided_by, decided_at = EXCLUDED.decided_at
		`, pq.Array(set.ids), d.Track, set.status, d.Actor)
		if err != nil {
			return review.DecideCounts{}, err
		}
	}

	if err := r.maintainOrders(ctx, tx, d); err != nil {
		return review.DecideCounts{}, err
	}

	if err := tx.Commit(); err != nil {
		return review.DecideCounts{}, err
	}

	return review.DecideCounts{
		Selected:  len(d.Selected),
		Backup:    len(d.Backup),
		Discarded: len(d.Discarded),
	}, nil
}

// maintainOrders keeps the two order arrays consistent with bucket
// membership after d: every touched id leaves both arrays, then ids moved
// into selected/backup append at the back in the decision's order.
func (r *CandidateRepository) maintainOrders(ctx context.Context, tx *sql.Tx, d review.Decision) error {
	ids := d.IDs()
	assigned := map[string][]int64{
		model.DecisionSelected: d.Selected,
		model.DecisionBackup:   d.Backup,
	}
	for _, status := range []string{model.DecisionSelected, model.DecisionBackup} {
		order, err := r.getOrderForUpdate(ctx, tx, d.Track, status)
		if err != nil {
			return err
		}
		order = review.RemoveFromOrder(order, ids)
		members := append(append([]int64(nil), order...), assigned[status]...)
		order = review.MergeOrder(order, members)
		if err := r.putOrder(ctx, tx, d.Track, status, order, d.Actor); err != nil {
			return err
		}
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *CandidateRepository) getOrder(ctx context.Context, q queryer, track, status string) ([]int64, error) {
	var order pq.Int64Array
	err := q.QueryRowContext(ctx, `
		SELECT article_ids FROM review_order WHERE report_track = $1 AND status = $2
	`, track, status).Scan(&order)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *CandidateRepository) getOrderForUpdate(ctx context.Context, tx *sql.Tx, track, status string) ([]int64, error) {
	var order pq.Int64Array
	err := tx.QueryRowContext(ctx, `
		SELECT article_ids FROM review_order WHERE report_track = $1 AND status = $2 FOR UPDATE
	`, track, status).Scan(&order)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *CandidateRepository) putOrder(ctx context.Context, tx *sql.Tx, track, status string, order []int64, actor string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO review_order(report_track, status, article_ids, updated_by, updated_at)
		VALUES($1, $2, $3, $4, now())
		ON CONFLICT (report_track, status)
		DO UPDATE SET article_ids = EXCLUDED.article_ids, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`, track, status, pq.Array(order), actor)
	return err
}

// SaveOrder persists explicit sequences for both buckets, last write wins.
// Each proposed sequence must exactly match the bucket's membership.
func (r *CandidateRepository) SaveOrder(ctx context.Context, track string, selectedOrder, backupOrder []int64, actor string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, bucket := range []struct {
		status string
		order  []int64
	}{
		{model.DecisionSelected, selectedOrder},
		{model.DecisionBackup, backupOrder},
	} {
		members, err := r.bucketMembers(ctx, tx, track, bucket.status)
		if err != nil {
			return err
		}
		if err := review.ValidateOrder(members, bucket.order); err != nil {
			return err
		}
		if err := r.putOrder(ctx, tx, track, bucket.status, bucket.order, actor); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *CandidateRepository) bucketMembers(ctx context.Context, tx *sql.Tx, track, status string) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT article_id FROM review_decision
		WHERE report_track = $1 AND status = $2 AND exported_at IS NULL
	`, track, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *CandidateRepository) Restore(ctx context.Context, id int64, target, actor, track string) error {
	d, err := review.NewDecision([]int64{id}, target, track, actor)
	if err != nil {
		return err
	}
	_, err = r.Decide(ctx, d)
	return err
}

// Export composes the digest from the current ordered view and, unless
// dry-run, logs the issue and optionally stamps the articles exported.
func (r *CandidateRepository) Export(ctx context.Context, req review.ExportRequest) (review.ExportResult, error) {
	view := req.View
	if view != model.DecisionBackup {
		view = model.DecisionSelected
	}

	items, err := r.FetchReviewItems(ctx, req.Track, view, 0)
	if err != nil {
		return review.ExportResult{}, err
	}

	period, totalPeriod := req.Period, req.TotalPeriod
	if period <= 0 || totalPeriod <= 0 {
		defPeriod, defTotal, err := r.nextPeriods(ctx, req.Track)
		if err != nil {
			return review.ExportResult{}, err
		}
		if period <= 0 {
			period = defPeriod
		}
		if totalPeriod <= 0 {
			totalPeriod = defTotal
		}
	}

	content := review.Compose(req.Track, items)
	if req.Template != "" {
		header := strings.NewReplacer(
			"{period}", strconv.Itoa(period),
			"{total_period}", strconv.Itoa(totalPeriod),
			"{date}", time.Now().Format("2006年01月02日"),
		).Replace(req.Template)
		content = header + "\n\n" + content
	}

	if !req.DryRun {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return review.ExportResult{}, err
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO export_log(report_track, report_tag, period, total_period, article_count, exported_by)
			VALUES($1, $2, $3, $4, $5, $6)
		`, req.Track, req.ReportTag, period, totalPeriod, len(items), req.Actor)
		if err != nil {
			return review.ExportResult{}, err
		}

		if req.MarkExported && len(items) > 0 {
			ids := make([]int64, len(items))
			for i, item := range items {
				ids[i] = item.ID
			}
			if err := r.markExported(ctx, tx, ids, req.Track); err != nil {
				return review.ExportResult{}, err
			}
		}

		if err := tx.Commit(); err != nil {
			return review.ExportResult{}, err
		}
	}

	return review.ExportResult{
		Content:     content,
		Count:       len(items),
		Period:      period,
		TotalPeriod: totalPeriod,
	}, nil
}

// nextPeriods derives the default issue numbers: period counts this
// year's issues for the track, total_period counts all of them.
func (r *CandidateRepository) nextPeriods(ctx context.Context, track string) (int, int, error) {
	var yearCount, allCount int
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE date_trunc('year', exported_at) = date_trunc('year', now())),
			COUNT(*)
		FROM export_log
		WHERE report_track = $1
	`, track).Scan(&yearCount, &allCount)
	if err != nil {
		return 0, 0, err
	}
	return yearCount + 1, allCount + 1, nil
}

func (r *CandidateRepository) markExported(ctx context.Context, tx *sql.Tx, ids []int64, track string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE review_decision SET exported_at = now()
		WHERE article_id = ANY($1) AND report_track = $2 AND exported_at IS NULL
	`, pq.Array(ids), track)
	if err != nil {
		return err
	}

	for _, status := range []string{model.DecisionSelected, model.DecisionBackup} {
		order, err := r.getOrderForUpdate(ctx, tx, track, status)
		if err != nil {
			return err
		}
		order = review.RemoveFromOrder(order, ids)
		if err := r.putOrder(ctx, tx, track, status, order, "system"); err != nil {
			return err
		}
	}
	return nil
}

// Archive stamps articles exported and drops them from the order lists.
func (r *CandidateRepository) Archive(ctx context.Context, ids []int64, actor, track string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE review_decision SET exported_at = now()
		WHERE article_id = ANY($1) AND report_track = $2 AND exported_at IS NULL
	`, pq.Array(ids), track)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	for _, status := range []string{model.DecisionSelected, model.DecisionBackup} {
		order, err := r.getOrderForUpdate(ctx, tx, track, status)
		if err != nil {
			return 0, err
		}
		order = review.RemoveFromOrder(order, ids)
		if err := r.putOrder(ctx, tx, track, status, order, actor); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *CandidateRepository) FetchStats(ctx context.Context, track string) (model.ReviewStats, error) {
	var stats model.ReviewStats

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM article a
		LEFT JOIN review_decision d ON d.article_id = a.id AND d.report_track = $1
		WHERE a.status = $2 AND COALESCE(d.status, 'pending') = 'pending' AND d.exported_at IS NULL
	`, track, model.StatusScored).Scan(&stats.Pending)
	if err != nil {
		return stats, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM review_decision
		WHERE report_track = $1 AND exported_at IS NULL
		GROUP BY status
	`, track)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, err
		}
		switch status {
		case model.DecisionSelected:
			stats.Selected = n
		case model.DecisionBackup:
			stats.Backup = n
		}
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM review_decision
		WHERE report_track = $1 AND exported_at IS NOT NULL
	`, track).Scan(&stats.Exported)
	return stats, err
}
