package repository

import (
	"database/sql"
	"edubrief/internal/model"

	"github.com/lib/pq"
)

// ArticleRepository covers the crawl/score pipeline side of the article
// table. The review workflow lives in CandidateRepository.
type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// SaveCandidate inserts a crawled article. Returns false when the URL was
// already stored.
func (r *ArticleRepository) SaveCandidate(article *model.Article) (bool, error) {
	var id int64
	err := r.db.QueryRow(`
		INSERT INTO article(title, url, source, content, summary, published_at, status)
		VALUES($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (url) DO NOTHING
		RETURNING id
	`, article.Title, article.URL, article.Source, article.Content, article.Summary, article.PublishedAt, model.StatusPending).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	article.ID = id
	return true, nil
}

func (r *ArticleRepository) GetByID(id int64) (*model.Article, error) {
	var a model.Article
	err := r.db.QueryRow(`
		SELECT id, title, url, source, content, COALESCE(summary, ''), published_at, fetched_at, status
		FROM article
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Title, &a.URL, &a.Source, &a.Content, &a.Summary, &a.PublishedAt, &a.FetchedAt, &a.Status)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &a, nil
}

func (r *ArticleRepository) GetPending(limit int) ([]model.Article, error) {
	rows, err := r.db.Query(`
		SELECT id, title, url, source, content, COALESCE(summary, ''), published_at, fetched_at, status
		FROM article
		WHERE status = $1
		ORDER BY fetched_at ASC
		LIMIT $2
	`, model.StatusPending, limit)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		var a model.Article
		err := rows.Scan(&a.ID, &a.Title, &a.URL, &a.Source, &a.Content, &a.Summary, &a.PublishedAt, &a.FetchedAt, &a.Status)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return articles, nil
}

func (r *ArticleRepository) UpdateStatus(id int64, status string) error {
	_, err := r.db.Exec(`
		UPDATE article SET status = $1 WHERE id = $2
	`, status, id)
	return err
}

// SaveScore persists the LLM classification fields and marks the article
// scored, in one transaction so a partially scored row never surfaces as
// a candidate.
func (r *ArticleRepository) SaveScore(id int64, summary, llmSource, sentiment string, beijingRelated bool, score float64, keywords []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE article
		SET summary = $1, llm_source_raw = $2, sentiment_label = $3,
			is_beijing_related = $4, score = $5, bonus_keywords = $6,
			status = $7
		WHERE id = $8
	`, summary, llmSource, sentiment, beijingRelated, score, pq.Array(keywords), model.StatusScored, id)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// SaveExternalScore records the separate external-importance signal.
func (r *ArticleRepository) SaveExternalScore(id int64, score float64) error {
	_, err := r.db.Exec(`
		UPDATE article SET external_importance_score = $1 WHERE id = $2
	`, score, id)
	return err
}

func (r *ArticleRepository) SaveError(articleID int64, errMsg string, errType string) error {
	_, err := r.db.Exec(`
		INSERT INTO processing_error(article_id, error_message, error_type)
		VALUES($1, $2, $3)
	`, articleID, errMsg, errType)

	return err
}

func (r *ArticleRepository) GetErrorCount(id int64) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM processing_error
		WHERE article_id = $1
	`, id).Scan(&count)

	return count, err
}
