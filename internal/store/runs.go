package store

import (
	"context"

	"catalog-ingest/internal/models"
)

// CreateRun opens a run-log row in the running state
func (s *Store) CreateRun(ctx context.Context) (*models.IngestionRun, error) {
	run := &models.IngestionRun{Status: models.RunStatusRunning}
	err := s.db.GetContext(ctx, run, `
		INSERT INTO parser_logs (status, start_time)
		VALUES ($1, NOW())
		RETURNING *`,
		models.RunStatusRunning)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRun writes the terminal status and final counters of a run
func (s *Store) FinishRun(ctx context.Context, runID int64, status string, stats models.RunStats, errMsg *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE parser_logs
		SET status = $1, end_time = NOW(), products_parsed = $2, products_added = $3,
		    products_updated = $4, errors_count = $5, error_message = $6
		WHERE id = $7`,
		status, stats.Parsed, stats.Added, stats.Updated, stats.Errors, errMsg, runID)
	return err
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.IngestionRun, error) {
	runs := []models.IngestionRun{}
	err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM parser_logs ORDER BY created_at DESC, id DESC LIMIT $1", limit)
	return runs, err
}
