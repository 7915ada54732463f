package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunStatus is the state of an ingestion run in proceso_log.
type RunStatus string

const (
	RunInProgress RunStatus = "EN_PROCESO"
	RunCompleted  RunStatus = "COMPLETADO"
	RunFailed     RunStatus = "FALLIDO"
)

// Run is one proceso_log record.
type Run struct {
	ID         int64
	RunID      string
	TotalFiles int
	Processed  int
	Failed     int
	Block      int
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
}

// StartRun records the start of an ingestion run and returns its row id.
func (s *Store) StartRun(ctx context.Context, runID string, totalFiles int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO proceso_log (run_id, total_archivos, archivos_procesados, archivos_fallidos, bloque_actual, fecha_inicio, status)
		VALUES (?, ?, 0, 0, 0, ?, ?)`,
		runID, totalFiles, time.Now().UnixMilli(), string(RunInProgress))
	if err != nil {
		return 0, fmt.Errorf("failed to record run start: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	return id, nil
}

// UpdateRun records the progress after a block.
func (s *Store) UpdateRun(ctx context.Context, id int64, block, processed, failed int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE proceso_log
		SET bloque_actual = ?, archivos_procesados = ?, archivos_fallidos = ?
		WHERE id = ?`,
		block, processed, failed, id)
	if err != nil {
		return fmt.Errorf("failed to update run %d: %w", id, err)
	}
	return nil
}

// FinishRun stamps the end time and final status.
func (s *Store) FinishRun(ctx context.Context, id int64, status RunStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE proceso_log SET fecha_fin = ?, status = ? WHERE id = ?`,
		time.Now().UnixMilli(), string(status), id)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", id, err)
	}
	return nil
}

// LastRun returns the most recent run, or nil if none was recorded.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	var (
		r        Run
		runID    sql.NullString
		started  int64
		finished sql.NullInt64
		status   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, total_archivos, archivos_procesados, archivos_fallidos, bloque_actual, fecha_inicio, fecha_fin, status
		FROM proceso_log ORDER BY id DESC LIMIT 1`).
		Scan(&r.ID, &runID, &r.TotalFiles, &r.Processed, &r.Failed, &r.Block, &started, &finished, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last run: %w", err)
	}

	r.RunID = runID.String
	r.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		t := time.UnixMilli(finished.Int64)
		r.FinishedAt = &t
	}
	r.Status = RunStatus(status)
	return &r, nil
}
