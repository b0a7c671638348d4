package repository

import (
	"context"
	"time"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/domain/types"
	"github.com/rotisserie/eris"
)

func (s *SQLStore) insertReview(ctx context.Context, q dbtx, r *model.ReviewItem) error {
	_, err := s.exec(ctx, q,
		`INSERT INTO review_queue (mention_key, scan_id, source, signature, reason, body, url, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (mention_key) DO NOTHING`,
		r.MentionKey, r.ScanID, r.Source, r.Signature, r.Reason, r.Text, r.URL,
		millis(r.CreatedAt), millis(r.ExpiresAt),
	)
	return eris.Wrapf(err, "store: insert review %s", r.MentionKey)
}

// ListReview returns queued mentions, newest first.
func (s *SQLStore) ListReview(ctx context.Context, limit, offset int) (types.Page[model.ReviewItem], error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	var total int
	if err := s.queryRow(ctx, s.db, `SELECT COUNT(*) FROM review_queue`).Scan(&total); err != nil {
		return types.Page[model.ReviewItem]{}, eris.Wrap(err, "store: count review")
	}
	rows, err := s.query(ctx, s.db,
		`SELECT mention_key, scan_id, source, signature, reason, body, url, created_at, expires_at
			FROM review_queue ORDER BY created_at DESC, mention_key ASC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return types.Page[model.ReviewItem]{}, eris.Wrap(err, "store: list review")
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		var (
			r                model.ReviewItem
			created, expires int64
		)
		if err := rows.Scan(&r.MentionKey, &r.ScanID, &r.Source, &r.Signature, &r.Reason, &r.Text, &r.URL,
			&created, &expires); err != nil {
			return types.Page[model.ReviewItem]{}, eris.Wrap(err, "store: review row")
		}
		r.CreatedAt = fromMillis(created)
		r.ExpiresAt = fromMillis(expires)
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return types.Page[model.ReviewItem]{}, eris.Wrap(err, "store: iterate review")
	}
	return types.NewPage(items, total, limit, offset), nil
}

// ExpireReview deletes entries whose expiry is at or before now.
func (s *SQLStore) ExpireReview(ctx context.Context, now time.Time) (int, error) {
	res, err := s.exec(ctx, s.db, `DELETE FROM review_queue WHERE expires_at <= ?`, millis(now))
	if err != nil {
		return 0, eris.Wrap(err, "store: expire review")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "store: expire review rows")
}
