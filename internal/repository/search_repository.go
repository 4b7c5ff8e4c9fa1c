package repository

import (
	"context"
	"database/sql"
	"fmt"

	"edubrief/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

type SearchQuery struct {
	Text      string
	Source    string
	Sentiment string
	Status    string
	From      string // YYYY-MM-DD, inclusive
	To        string // YYYY-MM-DD, inclusive
	Page      int
	PerPage   int
}

type SearchPage struct {
	Items   []model.Article
	Total   int
	Page    int
	Pages   int
	PerPage int
}

type SearchRepository struct {
	db *sql.DB
}

func NewSearchRepository(db *sql.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

// Search runs a filtered lookup across the article archive. Text matches
// title and summary with ILIKE, everything else is an exact filter.
func (r *SearchRepository) Search(ctx context.Context, q SearchQuery) (SearchPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 || q.PerPage > 100 {
		q.PerPage = 20
	}

	base := psql.Select().From("article")
	if q.Text != "" {
		pattern := "%" + q.Text + "%"
		base = base.Where(sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"summary": pattern},
		})
	}
	if q.Source != "" {
		base = base.Where(sq.Eq{"source": q.Source})
	}
	if q.Sentiment != "" {
		base = base.Where("LOWER(sentiment_label) = LOWER(?)", q.Sentiment)
	}
	if q.Status != "" {
		base = base.Where(sq.Eq{"status": q.Status})
	}
	if q.From != "" {
		base = base.Where("published_at >= ?::date", q.From)
	}
	if q.To != "" {
		base = base.Where("published_at < ?::date + interval '1 day'", q.To)
	}

	countSQL, countArgs, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return SearchPage{}, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return SearchPage{}, err
	}

	listSQL, listArgs, err := base.
		Columns(`id, title, url, source, summary, llm_source_raw, llm_source_display,
			is_beijing_related, sentiment_label, external_importance_score, score,
			bonus_keywords, published_at, fetched_at, status`).
		OrderBy("published_at DESC", "id DESC").
		Limit(uint64(q.PerPage)).
		Offset(uint64((q.Page - 1) * q.PerPage)).
		ToSql()
	if err != nil {
		return SearchPage{}, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		return SearchPage{}, err
	}
	defer rows.Close()

	var items []model.Article
	for rows.Next() {
		var a model.Article
		var summary, llmRaw, llmDisplay, sentiment sql.NullString
		var extScore, score sql.NullFloat64
		var keywords pq.StringArray
		err := rows.Scan(
			&a.ID, &a.Title, &a.URL, &a.Source, &summary, &llmRaw, &llmDisplay,
			&a.BeijingRelated, &sentiment, &extScore, &score,
			&keywords, &a.PublishedAt, &a.FetchedAt, &a.Status,
		)
		if err != nil {
			return SearchPage{}, err
		}
		a.Summary = summary.String
		a.LLMSourceRaw = llmRaw.String
		a.LLMSourceDisplay = llmDisplay.String
		a.SentimentLabel = sentiment.String
		if extScore.Valid {
			v := extScore.Float64
			a.ExternalScore = &v
		}
		if score.Valid {
			v := score.Float64
			a.Score = &v
		}
		a.BonusKeywords = keywords
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return SearchPage{}, err
	}

	pages := (total + q.PerPage - 1) / q.PerPage
	if pages < 1 {
		pages = 1
	}
	return SearchPage{Items: items, Total: total, Page: q.Page, Pages: pages, PerPage: q.PerPage}, nil
}
