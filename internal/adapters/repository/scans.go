package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/rotisserie/eris"
)

const scanColumns = `id, status, progress, requested, sources, found, summary, error, origin, triggered_by,
	created_at, started_at, completed_at`

// CreateScan inserts a new job row.
func (s *SQLStore) CreateScan(ctx context.Context, job *model.ScanJob) error {
	requested, err := toJSON(nonNilStrings(job.Requested))
	if err != nil {
		return err
	}
	sources, err := toJSON(nonNilResults(job.Sources))
	if err != nil {
		return err
	}
	summary, err := toJSON(job.Summary)
	if err != nil {
		return err
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	_, err = s.exec(ctx, s.db,
		`INSERT INTO scans (`+scanColumns+`) VALUES (`+placeholders(13)+`)`,
		job.ID, string(job.Status), job.Progress, requested, sources, job.Found, summary, job.Error,
		job.Origin, job.TriggeredBy, millis(job.CreatedAt), millis(job.StartedAt), millis(job.CompletedAt),
	)
	if err != nil {
		return eris.Wrapf(err, "store: insert scan %s", job.ID)
	}
	return nil
}

// UpdateScan overwrites the mutable columns of a job. A job already in a
// terminal state is never overwritten; that write reports ErrConflict.
func (s *SQLStore) UpdateScan(ctx context.Context, job *model.ScanJob) error {
	return s.updateScan(ctx, s.db, job)
}

func (s *SQLStore) updateScan(ctx context.Context, q dbtx, job *model.ScanJob) error {
	sources, err := toJSON(nonNilResults(job.Sources))
	if err != nil {
		return err
	}
	summary, err := toJSON(job.Summary)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, q,
		`UPDATE scans SET status = ?, progress = ?, sources = ?, found = ?, summary = ?, error = ?,
			started_at = ?, completed_at = ? WHERE id = ? AND status NOT IN (?, ?, ?)`,
		string(job.Status), job.Progress, sources, job.Found, summary, job.Error,
		millis(job.StartedAt), millis(job.CompletedAt), job.ID,
		string(model.ScanCompleted), string(model.ScanFailed), string(model.ScanCancelled),
	)
	if err != nil {
		return eris.Wrapf(err, "store: update scan %s", job.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "store: rows affected for scan %s", job.ID)
	}
	if n > 0 {
		return nil
	}
	var status string
	err = q.QueryRowContext(ctx, s.rebind(`SELECT status FROM scans WHERE id = ?`), job.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "scan %s", job.ID)
	}
	if err != nil {
		return eris.Wrapf(err, "store: read scan %s", job.ID)
	}
	return eris.Wrapf(ErrConflict, "scan %s is already %s", job.ID, status)
}

// GetScan loads one job.
func (s *SQLStore) GetScan(ctx context.Context, id string) (*model.ScanJob, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "scan %s", id)
	}
	return job, err
}

// ListScans returns the most recent jobs, newest first.
func (s *SQLStore) ListScans(ctx context.Context, limit int) ([]model.ScanJob, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	rows, err := s.query(ctx, s.db,
		`SELECT `+scanColumns+` FROM scans ORDER BY created_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list scans")
	}
	defer rows.Close()

	out := make([]model.ScanJob, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate scans")
}

// ScanStats aggregates history. since bounds the recent window.
func (s *SQLStore) ScanStats(ctx context.Context, since time.Time) (model.ScanStats, error) {
	stats := model.ScanStats{ByStatus: map[string]int{}}

	var found sql.NullInt64
	err := s.queryRow(ctx, s.db,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0), SUM(found) FROM scans`,
		millis(since),
	).Scan(&stats.Total, &stats.Last24h, &found)
	if err != nil {
		return stats, eris.Wrap(err, "store: scan totals")
	}
	stats.Opportunities = int(found.Int64)

	rows, err := s.query(ctx, s.db, `SELECT status, COUNT(*) FROM scans GROUP BY status`)
	if err != nil {
		return stats, eris.Wrap(err, "store: scans by status")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return stats, eris.Wrap(err, "store: scan status row")
		}
		stats.ByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return stats, eris.Wrap(err, "store: iterate scan status")
	}

	var last sql.NullInt64
	err = s.queryRow(ctx, s.db,
		`SELECT MAX(completed_at) FROM scans WHERE status = ?`, string(model.ScanCompleted),
	).Scan(&last)
	if err != nil {
		return stats, eris.Wrap(err, "store: last completed scan")
	}
	if last.Valid && last.Int64 > 0 {
		t := fromMillis(last.Int64)
		stats.LastCompleted = &t
	}
	return stats, nil
}

// AbandonScans fails every pending or running job.
func (s *SQLStore) AbandonScans(ctx context.Context, reason string) (int, error) {
	res, err := s.exec(ctx, s.db,
		`UPDATE scans SET status = ?, error = ?, completed_at = ? WHERE status IN (?, ?)`,
		string(model.ScanFailed), reason, millis(s.now()),
		string(model.ScanPending), string(model.ScanRunning),
	)
	if err != nil {
		return 0, eris.Wrap(err, "store: abandon scans")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "store: abandon scans rows")
}

// CommitScan writes opportunities, mention links and review entries,
// recomputes ranks and stores the terminal job row in one transaction.
func (s *SQLStore) CommitScan(ctx context.Context, c ScanCommit) error {
	if c.Job == nil {
		return eris.New("store: commit without job")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		for _, u := range c.Upserts {
			if err := s.upsertOpportunity(ctx, tx, u.Opportunity, now); err != nil {
				return err
			}
			for _, key := range u.MentionKeys {
				if _, err := s.exec(ctx, tx,
					`INSERT INTO opportunity_mentions (mention_key, opportunity_id, scan_id, created_at)
						VALUES (?, ?, ?, ?) ON CONFLICT (mention_key) DO NOTHING`,
					key, u.Opportunity.ID, c.Job.ID, millis(now),
				); err != nil {
					return eris.Wrapf(err, "store: link mention %s", key)
				}
				if _, err := s.exec(ctx, tx, `DELETE FROM review_queue WHERE mention_key = ?`, key); err != nil {
					return eris.Wrapf(err, "store: clear review %s", key)
				}
			}
		}
		for i := range c.Review {
			if err := s.insertReview(ctx, tx, &c.Review[i]); err != nil {
				return err
			}
		}
		if err := s.recomputeRanks(ctx, tx); err != nil {
			return err
		}
		return s.updateScan(ctx, tx, c.Job)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.ScanJob, error) {
	var (
		job                         model.ScanJob
		status                      string
		requested, sources, summary string
		created, started, completed int64
	)
	err := row.Scan(&job.ID, &status, &job.Progress, &requested, &sources, &job.Found, &summary, &job.Error,
		&job.Origin, &job.TriggeredBy, &created, &started, &completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: scan job row")
	}
	job.Status = model.ScanStatus(status)
	job.CreatedAt = fromMillis(created)
	job.StartedAt = fromMillis(started)
	job.CompletedAt = fromMillis(completed)
	if err := fromJSON(requested, &job.Requested); err != nil {
		return nil, err
	}
	if err := fromJSON(sources, &job.Sources); err != nil {
		return nil, err
	}
	if err := fromJSON(summary, &job.Summary); err != nil {
		return nil, err
	}
	return &job, nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilResults(v []model.SourceResult) []model.SourceResult {
	if v == nil {
		return []model.SourceResult{}
	}
	return v
}
