package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/domain/types"
	"github.com/rotisserie/eris"
)

const oppColumns = `id, cluster_key, title, problem, score, rank, validated, recommendation,
	mention_count, last_scan_mentions, trend, source_counts, source_urls,
	revenue_display, revenue_amount, competitor_count, competitor_urls, paid_signal,
	competition_level, complexity, b2b, market_size, problem_score, feasibility_score, why_now_score,
	b2b_override, complexity_override, status, notes, first_seen, last_seen, created_at, updated_at`

const oppColumnCount = 33

// Pipeline owned columns refreshed on every sighting. User fields, overrides,
// first_seen and the original title are preserved.
const oppUpsert = `INSERT INTO opportunities (` + oppColumns + `) VALUES (%s)
	ON CONFLICT (cluster_key) DO UPDATE SET
		score = excluded.score,
		validated = excluded.validated,
		recommendation = excluded.recommendation,
		mention_count = excluded.mention_count,
		last_scan_mentions = excluded.last_scan_mentions,
		trend = excluded.trend,
		source_counts = excluded.source_counts,
		source_urls = excluded.source_urls,
		revenue_display = excluded.revenue_display,
		revenue_amount = excluded.revenue_amount,
		competitor_count = excluded.competitor_count,
		competitor_urls = excluded.competitor_urls,
		paid_signal = excluded.paid_signal,
		competition_level = excluded.competition_level,
		complexity = excluded.complexity,
		b2b = excluded.b2b,
		market_size = excluded.market_size,
		problem_score = excluded.problem_score,
		feasibility_score = excluded.feasibility_score,
		why_now_score = excluded.why_now_score,
		last_seen = excluded.last_seen,
		updated_at = excluded.updated_at`

// Ranks are dense over the visible pool; rejected records get 0.
const rankUpdate = `UPDATE opportunities SET rank = COALESCE((
	SELECT r.rn FROM (
		SELECT id, ROW_NUMBER() OVER (ORDER BY score DESC, mention_count DESC, last_seen DESC, id ASC) AS rn
		FROM opportunities WHERE status <> ?
	) r WHERE r.id = opportunities.id), 0)`

func (s *SQLStore) upsertOpportunity(ctx context.Context, q dbtx, o *model.Opportunity, now time.Time) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	args, err := oppArgs(o)
	if err != nil {
		return err
	}
	if _, err := s.exec(ctx, q, strings.Replace(oppUpsert, "%s", placeholders(oppColumnCount), 1), args...); err != nil {
		return eris.Wrapf(err, "store: upsert opportunity %s", o.ClusterKey)
	}
	return nil
}

func (s *SQLStore) recomputeRanks(ctx context.Context, q dbtx) error {
	if _, err := s.exec(ctx, q, rankUpdate, string(model.StatusRejected)); err != nil {
		return eris.Wrap(err, "store: recompute ranks")
	}
	return nil
}

// GetOpportunity loads one record by id.
func (s *SQLStore) GetOpportunity(ctx context.Context, id string) (*model.Opportunity, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+oppColumns+` FROM opportunities WHERE id = ?`, id)
	o, err := scanOpportunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "opportunity %s", id)
	}
	return o, err
}

// ListOpportunities returns one page of records matching f.
func (s *SQLStore) ListOpportunities(ctx context.Context, f model.OpportunityFilter) (types.Page[model.Opportunity], error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	where, args := opportunityWhere(f)

	var total int
	if err := s.queryRow(ctx, s.db, `SELECT COUNT(*) FROM opportunities`+where, args...).Scan(&total); err != nil {
		return types.Page[model.Opportunity]{}, eris.Wrap(err, "store: count opportunities")
	}

	query := `SELECT ` + oppColumns + ` FROM opportunities` + where + ` ORDER BY ` + opportunityOrder(f.Sort) + ` LIMIT ? OFFSET ?`
	rows, err := s.query(ctx, s.db, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return types.Page[model.Opportunity]{}, eris.Wrap(err, "store: list opportunities")
	}
	defer rows.Close()

	var items []model.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return types.Page[model.Opportunity]{}, err
		}
		items = append(items, *o)
	}
	if err := rows.Err(); err != nil {
		return types.Page[model.Opportunity]{}, eris.Wrap(err, "store: iterate opportunities")
	}
	return types.NewPage(items, total, f.Limit, f.Offset), nil
}

func opportunityWhere(f model.OpportunityFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.MinScore != nil {
		conds = append(conds, "score >= ?")
		args = append(args, *f.MinScore)
	}
	if f.MaxScore != nil {
		conds = append(conds, "score <= ?")
		args = append(args, *f.MaxScore)
	}
	if f.Validated != nil {
		conds = append(conds, "validated = ?")
		args = append(args, boolInt(*f.Validated))
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "last_seen >= ?")
		args = append(args, millis(f.Since))
	}
	if !f.Until.IsZero() {
		conds = append(conds, "last_seen <= ?")
		args = append(args, millis(f.Until))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		conds = append(conds, "(LOWER(title) LIKE ? OR LOWER(problem) LIKE ? OR LOWER(notes) LIKE ?)")
		args = append(args, like, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func opportunityOrder(sort string) string {
	switch sort {
	case "rank":
		return "CASE WHEN rank = 0 THEN 1 ELSE 0 END, rank ASC, id ASC"
	case "mentions":
		return "mention_count DESC, score DESC, id ASC"
	case "recent":
		return "last_seen DESC, id ASC"
	default:
		return "score DESC, mention_count DESC, id ASC"
	}
}

// OpportunitiesByKeys returns existing records indexed by cluster key.
func (s *SQLStore) OpportunitiesByKeys(ctx context.Context, keys []string) (map[string]*model.Opportunity, error) {
	out := make(map[string]*model.Opportunity, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	rows, err := s.query(ctx, s.db,
		`SELECT `+oppColumns+` FROM opportunities WHERE cluster_key IN (`+placeholders(len(keys))+`)`,
		stringArgs(keys)...)
	if err != nil {
		return nil, eris.Wrap(err, "store: opportunities by key")
	}
	defer rows.Close()
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out[o.ClusterKey] = o
	}
	return out, eris.Wrap(rows.Err(), "store: iterate opportunities by key")
}

// AllOpportunities loads every record, best first.
func (s *SQLStore) AllOpportunities(ctx context.Context) ([]*model.Opportunity, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+oppColumns+` FROM opportunities ORDER BY score DESC, id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "store: all opportunities")
	}
	defer rows.Close()
	var out []*model.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate all opportunities")
}

// SaveOpportunities writes the assessment columns of the given records and
// recomputes ranks. User fields, overrides and pipeline signals are left
// alone so a patch landing during a rescore is not reverted.
func (s *SQLStore) SaveOpportunities(ctx context.Context, opps []*model.Opportunity) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		for _, o := range opps {
			o.UpdatedAt = now
			res, err := s.exec(ctx, tx,
				`UPDATE opportunities SET score = ?, validated = ?, recommendation = ?,
					problem_score = ?, feasibility_score = ?, why_now_score = ?,
					competition_level = ?, revenue_display = ?, market_size = ?, updated_at = ?
				WHERE id = ?`,
				o.Score, boolInt(o.Validated), o.Recommendation,
				o.ProblemScore, o.FeasibilityScore, o.WhyNowScore,
				string(o.CompetitionLevel), o.RevenueDisplay, o.MarketSize, millis(o.UpdatedAt),
				o.ID)
			if err != nil {
				return eris.Wrapf(err, "store: save opportunity %s", o.ID)
			}
			if err := checkRowsAffected(res, "opportunity", o.ID); err != nil {
				return err
			}
		}
		return s.recomputeRanks(ctx, tx)
	})
}

// PatchOpportunity writes the user and admin owned columns of o together
// with its assessment and recomputes ranks. Pipeline signals are left alone
// so a scan committed in between is not reverted.
func (s *SQLStore) PatchOpportunity(ctx context.Context, o *model.Opportunity) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		o.UpdatedAt = s.now()
		var override any
		if o.B2BOverride != nil {
			override = boolInt(*o.B2BOverride)
		}
		res, err := s.exec(ctx, tx,
			`UPDATE opportunities SET status = ?, notes = ?, b2b_override = ?, complexity_override = ?,
				score = ?, validated = ?, recommendation = ?, market_size = ?,
				problem_score = ?, feasibility_score = ?, why_now_score = ?, updated_at = ?
			WHERE id = ?`,
			string(o.Status), o.Notes, override, string(o.ComplexityOverride),
			o.Score, boolInt(o.Validated), o.Recommendation, o.MarketSize,
			o.ProblemScore, o.FeasibilityScore, o.WhyNowScore, millis(o.UpdatedAt),
			o.ID)
		if err != nil {
			return eris.Wrapf(err, "store: patch opportunity %s", o.ID)
		}
		if err := checkRowsAffected(res, "opportunity", o.ID); err != nil {
			return err
		}
		return s.recomputeRanks(ctx, tx)
	})
}

// OpportunityStats summarizes the store. highScore is the band cut point.
func (s *SQLStore) OpportunityStats(ctx context.Context, highScore int) (model.OpportunityStats, error) {
	stats := model.OpportunityStats{ByStatus: map[string]int{}}
	var avg sql.NullFloat64
	err := s.queryRow(ctx, s.db,
		`SELECT COUNT(*), COALESCE(SUM(validated), 0), CAST(AVG(score) AS DOUBLE PRECISION),
			COALESCE(SUM(CASE WHEN score >= ? THEN 1 ELSE 0 END), 0) FROM opportunities`,
		highScore,
	).Scan(&stats.Total, &stats.Validated, &avg, &stats.HighScore)
	if err != nil {
		return stats, eris.Wrap(err, "store: opportunity totals")
	}
	stats.AverageScore = avg.Float64

	rows, err := s.query(ctx, s.db, `SELECT status, COUNT(*) FROM opportunities GROUP BY status`)
	if err != nil {
		return stats, eris.Wrap(err, "store: opportunities by status")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return stats, eris.Wrap(err, "store: opportunity status row")
		}
		stats.ByStatus[status] = n
	}
	return stats, eris.Wrap(rows.Err(), "store: iterate opportunity status")
}

// LinkedMentions maps already counted mention keys to their opportunity.
func (s *SQLStore) LinkedMentions(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	rows, err := s.query(ctx, s.db,
		`SELECT mention_key, opportunity_id FROM opportunity_mentions WHERE mention_key IN (`+placeholders(len(keys))+`)`,
		stringArgs(keys)...)
	if err != nil {
		return nil, eris.Wrap(err, "store: linked mentions")
	}
	defer rows.Close()
	for rows.Next() {
		var key, id string
		if err := rows.Scan(&key, &id); err != nil {
			return nil, eris.Wrap(err, "store: linked mention row")
		}
		out[key] = id
	}
	return out, eris.Wrap(rows.Err(), "store: iterate linked mentions")
}

// oppArgs returns the column values in oppColumns order.
func oppArgs(o *model.Opportunity) ([]any, error) {
	counts := o.SourceCounts
	if counts == nil {
		counts = map[string]int{}
	}
	sourceCounts, err := toJSON(counts)
	if err != nil {
		return nil, err
	}
	sourceURLs, err := toJSON(nonNilStrings(o.SourceURLs))
	if err != nil {
		return nil, err
	}
	competitorURLs, err := toJSON(nonNilStrings(o.CompetitorURLs))
	if err != nil {
		return nil, err
	}
	var override any
	if o.B2BOverride != nil {
		override = boolInt(*o.B2BOverride)
	}
	status := o.Status
	if status == "" {
		status = model.StatusNew
	}
	return []any{
		o.ID, o.ClusterKey, o.Title, o.Problem, o.Score, o.Rank, boolInt(o.Validated), o.Recommendation,
		o.MentionCount, o.LastScanMentions, string(o.Trend), sourceCounts, sourceURLs,
		o.RevenueDisplay, o.RevenueAmount, o.CompetitorCount, competitorURLs, boolInt(o.PaidSignal),
		string(o.CompetitionLevel), string(o.Complexity), boolInt(o.B2B), o.MarketSize,
		o.ProblemScore, o.FeasibilityScore, o.WhyNowScore,
		override, string(o.ComplexityOverride), string(status), o.Notes,
		millis(o.FirstSeen), millis(o.LastSeen), millis(o.CreatedAt), millis(o.UpdatedAt),
	}, nil
}

func scanOpportunity(row rowScanner) (*model.Opportunity, error) {
	var (
		o                                          model.Opportunity
		trend, level, complexity, override, status string
		sourceCounts, sourceURLs, competitorURLs   string
		b2bOverride                                sql.NullBool
		firstSeen, lastSeen, created, updated      int64
	)
	err := row.Scan(
		&o.ID, &o.ClusterKey, &o.Title, &o.Problem, &o.Score, &o.Rank, &o.Validated, &o.Recommendation,
		&o.MentionCount, &o.LastScanMentions, &trend, &sourceCounts, &sourceURLs,
		&o.RevenueDisplay, &o.RevenueAmount, &o.CompetitorCount, &competitorURLs, &o.PaidSignal,
		&level, &complexity, &o.B2B, &o.MarketSize, &o.ProblemScore, &o.FeasibilityScore, &o.WhyNowScore,
		&b2bOverride, &override, &status, &o.Notes, &firstSeen, &lastSeen, &created, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "store: opportunity row")
	}
	o.Trend = model.Trend(trend)
	o.CompetitionLevel = model.CompetitionLevel(level)
	o.Complexity = model.Complexity(complexity)
	o.ComplexityOverride = model.Complexity(override)
	o.Status = model.Status(status)
	if b2bOverride.Valid {
		v := b2bOverride.Bool
		o.B2BOverride = &v
	}
	o.FirstSeen = fromMillis(firstSeen)
	o.LastSeen = fromMillis(lastSeen)
	o.CreatedAt = fromMillis(created)
	o.UpdatedAt = fromMillis(updated)
	if err := fromJSON(sourceCounts, &o.SourceCounts); err != nil {
		return nil, err
	}
	if err := fromJSON(sourceURLs, &o.SourceURLs); err != nil {
		return nil, err
	}
	if err := fromJSON(competitorURLs, &o.CompetitorURLs); err != nil {
		return nil, err
	}
	return &o, nil
}
