package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/logger"
	"tubefetch/internal/models"

	"github.com/Masterminds/squirrel"
)

// HistoryStore records jobs started by this client.
type HistoryStore struct {
	DB  *sql.DB
	now func() time.Time
}

// GetHistoryStore returns a history store instance with injected database.
func GetHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{
		DB:  db,
		now: time.Now,
	}
}

// GetDB returns the database.
func (hs *HistoryStore) GetDB() *sql.DB {
	return hs.DB
}

// AddJob inserts a newly started job. Re-adding a known job id is a no-op.
func (hs *HistoryStore) AddJob(ctx context.Context, job models.ActiveJob) error {
	now := hs.now().UTC()

	query := squirrel.
		Insert(consts.DBJobs).
		Columns(
			consts.QJobJobID,
			consts.QJobURL,
			consts.QJobVariant,
			consts.QJobPhase,
			consts.QJobCreatedAt,
			consts.QJobUpdatedAt,
		).
		Values(
			job.ID,
			job.Source.String(),
			string(job.Source.Variant),
			string(job.Phase),
			now,
			now,
		).
		Suffix("ON CONFLICT(" + consts.QJobJobID + ") DO NOTHING").
		RunWith(hs.DB)

	if _, err := query.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to record job %q: %w", job.ID, err)
	}
	return nil
}

// UpdateJob stores the latest phase and result details of a job.
func (hs *HistoryStore) UpdateJob(ctx context.Context, job models.ActiveJob, st models.RenderState) (err error) {
	tx, err := hs.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Pl.E("Panic rollback failed for job %q: %v", job.ID, rbErr)
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Pl.E("Error rolling back job %q (original error: %v): %v", job.ID, err, rbErr)
			}
		}
	}()

	update := squirrel.
		Update(consts.DBJobs).
		Set(consts.QJobPhase, string(st.Phase)).
		Set(consts.QJobPercent, st.Percent).
		Set(consts.QJobMessage, st.Message).
		Set(consts.QJobUpdatedAt, hs.now().UTC()).
		Where(squirrel.Eq{consts.QJobJobID: job.ID})
	if st.Filename != "" {
		update = update.Set(consts.QJobFilename, st.Filename)
	}

	res, err := update.RunWith(tx).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update job %q: %w", job.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		logger.Pl.D(2, "Job %q is not in the history, nothing updated", job.ID)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetJob returns one recorded job.
func (hs *HistoryStore) GetJob(ctx context.Context, jobID string) (models.HistoryEntry, error) {
	row := historySelect().
		Where(squirrel.Eq{consts.QJobJobID: jobID}).
		RunWith(hs.DB).
		QueryRowContext(ctx)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.HistoryEntry{}, fmt.Errorf("job %q is not in the local history: %w", jobID, err)
	}
	return e, err
}

// ListJobs returns up to limit recorded jobs, newest first.
func (hs *HistoryStore) ListJobs(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = consts.MaxDisplayedJobs
	}

	rows, err := historySelect().
		OrderBy(consts.QJobCreatedAt+" DESC", consts.QJobID+" DESC").
		Limit(uint64(limit)).
		RunWith(hs.DB).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list job history: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Pl.E("Failed to close rows: %v", err)
		}
	}()

	var out []models.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job history: %w", err)
	}
	return out, nil
}

// JobStarted records a job when polling begins. Failures are logged only.
func (hs *HistoryStore) JobStarted(job models.ActiveJob) {
	ctx, cancel := context.WithTimeout(context.Background(), consts.DatabaseTimeout)
	defer cancel()

	if err := hs.AddJob(ctx, job); err != nil {
		logger.Pl.W("Could not save job to history: %v", err)
	}
}

// JobUpdated records the latest state of a job. Failures are logged only.
func (hs *HistoryStore) JobUpdated(job models.ActiveJob, st models.RenderState) {
	ctx, cancel := context.WithTimeout(context.Background(), consts.DatabaseTimeout)
	defer cancel()

	if err := hs.UpdateJob(ctx, job, st); err != nil {
		logger.Pl.W("Could not update job history: %v", err)
	}
}

func historySelect() squirrel.SelectBuilder {
	return squirrel.
		Select(
			consts.QJobID,
			consts.QJobJobID,
			consts.QJobURL,
			consts.QJobVariant,
			consts.QJobPhase,
			consts.QJobPercent,
			consts.QJobFilename,
			consts.QJobMessage,
			consts.QJobCreatedAt,
			consts.QJobUpdatedAt,
		).
		From(consts.DBJobs)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.HistoryEntry, error) {
	var (
		e     models.HistoryEntry
		phase string
	)
	if err := s.Scan(
		&e.ID,
		&e.JobID,
		&e.URL,
		&e.Variant,
		&phase,
		&e.Percent,
		&e.Filename,
		&e.Message,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return models.HistoryEntry{}, err
	}
	e.Phase = models.JobPhase(phase)
	return e, nil
}
