package repository

import (
	"context"
	"database/sql"

	"edubrief/internal/model"
)

// ExportLogRepository reads the history of issued digests. The
// candidate store appends to export_log; this side only reports it.
type ExportLogRepository struct {
	db *sql.DB
}

func NewExportLogRepository(db *sql.DB) *ExportLogRepository {
	return &ExportLogRepository{db: db}
}

func (r *ExportLogRepository) GetLatest(ctx context.Context, track string) (*model.ExportRecord, error) {
	var rec model.ExportRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, report_track, period, total_period, article_count, exported_by, exported_at
		FROM export_log
		WHERE report_track = $1
		ORDER BY exported_at DESC
		LIMIT 1
	`, track).Scan(&rec.ID, &rec.ReportTrack, &rec.Period, &rec.TotalPeriod, &rec.Count, &rec.ExportedBy, &rec.ExportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *ExportLogRepository) GetHistory(ctx context.Context, track string, limit, offset int) ([]model.ExportRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, report_track, period, total_period, article_count, exported_by, exported_at
		FROM export_log
		WHERE report_track = $1
		ORDER BY exported_at DESC
		LIMIT $2 OFFSET $3
	`, track, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ExportRecord
	for rows.Next() {
		var rec model.ExportRecord
		err := rows.Scan(&rec.ID, &rec.ReportTrack, &rec.Period, &rec.TotalPeriod, &rec.Count, &rec.ExportedBy, &rec.ExportedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (r *ExportLogRepository) GetTotal(ctx context.Context, track string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM export_log WHERE report_track = $1
	`, track).Scan(&total)
	return total, err
}
