package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/becomeliminal/analytics-core/model"
)

// PostgresPurchaseStore is the production purchase-store implementation: a
// warehouse table clustered by (user_id, ts), queried with
// parameterised statements (named binds are simulated with pgx's ordinal
// placeholders; no caller input is ever concatenated into query text).
type PostgresPurchaseStore struct {
	pool *pgxpool.Pool
}

// NewPostgresPurchaseStore wraps an existing pool. The pool's lifecycle
// (Close) is the caller's responsibility — this type only ever acquires
// scoped connections from it, never holds one open.
func NewPostgresPurchaseStore(pool *pgxpool.Pool) *PostgresPurchaseStore {
	return &PostgresPurchaseStore{pool: pool}
}

const purchaseItemColumns = `
	item_id, purchase_id, user_id, merchant, item_name, category, subcategory,
	item_text, price, qty, ts, detected_needwant, user_needwant, confidence,
	buyer_city, buyer_state, buyer_country, buyer_postal_code, status, created_at`

func scanPurchaseItem(row pgx.Row) (model.PurchaseItem, error) {
	var it model.PurchaseItem
	var postal *string
	err := row.Scan(
		&it.ItemID, &it.PurchaseID, &it.UserID, &it.Merchant, &it.ItemName, &it.Category, &it.Subcategory,
		&it.ItemText, &it.Price, &it.Qty, &it.TS, &it.DetectedNeedWant, &it.UserNeedWant, &it.Confidence,
		&it.BuyerLocation.City, &it.BuyerLocation.State, &it.BuyerLocation.Country, &postal, &it.Status, &it.CreatedAt,
	)
	if postal != nil {
		it.BuyerLocation.PostalCode = *postal
	}
	return it, err
}

func (p *PostgresPurchaseStore) ListItems(ctx context.Context, q ListItemsQuery) ([]model.PurchaseItem, error) {
	sql := `SELECT ` + purchaseItemColumns + ` FROM purchase_items
		WHERE user_id = $1 AND status = 'active'
		AND ($2::timestamptz IS NULL OR ts >= $2)
		AND ($3::timestamptz IS NULL OR ts < $3)
		ORDER BY ts DESC
		LIMIT $4`
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.pool.Query(ctx, sql, q.UserID, q.Since, q.Until, limit)
	if err != nil {
		return nil, errors.Wrap(err, "store_unavailable: list_items")
	}
	defer rows.Close()
	return collectItems(rows)
}

func (p *PostgresPurchaseStore) ListItemsByCategory(ctx context.Context, userID, category string, since, until *time.Time) ([]model.PurchaseItem, error) {
	sql := `SELECT ` + purchaseItemColumns + ` FROM purchase_items
		WHERE user_id = $1 AND status = 'active' AND category = $2
		AND ($3::timestamptz IS NULL OR ts >= $3)
		AND ($4::timestamptz IS NULL OR ts < $4)
		ORDER BY ts DESC`
	rows, err := p.pool.Query(ctx, sql, userID, category, since, until)
	if err != nil {
		return nil, errors.Wrap(err, "store_unavailable: list_items_by_category")
	}
	defer rows.Close()
	return collectItems(rows)
}

func (p *PostgresPurchaseStore) TopItemsByPrice(ctx context.Context, userID string, weekStart time.Time, n int) ([]model.PurchaseItem, error) {
	sql := `SELECT ` + purchaseItemColumns + ` FROM purchase_items
		WHERE user_id = $1 AND status = 'active' AND ts >= $2 AND ts < $3
		ORDER BY (price * qty) DESC, ts DESC, item_id ASC
		LIMIT $4`
	rows, err := p.pool.Query(ctx, sql, userID, weekStart, weekStart.AddDate(0, 0, 7), n)
	if err != nil {
		return nil, errors.Wrap(err, "store_unavailable: top_items_by_price")
	}
	defer rows.Close()
	return collectItems(rows)
}

func (p *PostgresPurchaseStore) ActiveUsersForWeek(ctx context.Context, weekStart time.Time) ([]string, error) {
	sql := `SELECT DISTINCT user_id FROM purchase_items
		WHERE status = 'active' AND ts >= $1 AND ts < $2
		ORDER BY user_id`
	rows, err := p.pool.Query(ctx, sql, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, errors.Wrap(err, "store_unavailable: active_users_for_week")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, errors.Wrap(err, "store_unavailable: scan user_id")
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func collectItems(rows pgx.Rows) ([]model.PurchaseItem, error) {
	var out []model.PurchaseItem
	for rows.Next() {
		it, err := scanPurchaseItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "store_unavailable: scan purchase_item")
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// PostgresReportStore is the production report-store implementation.
type PostgresReportStore struct {
	pool *pgxpool.Pool
}

// NewPostgresReportStore wraps an existing pool.
func NewPostgresReportStore(pool *pgxpool.Pool) *PostgresReportStore {
	return &PostgresReportStore{pool: pool}
}

// Upsert merges on (user_id, week_start): preserves created_at, refreshes
// updated_at.
func (p *PostgresReportStore) Upsert(ctx context.Context, report *model.WeeklyReport) error {
	findingsJSON, err := marshalFindings(report.Findings)
	if err != nil {
		return errors.Wrap(err, "internal: marshal findings")
	}

	sql := `INSERT INTO weekly_reports (
			report_id, user_id, week_start, week_end, location_city, location_state, location_country,
			items_analyzed, items_with_alternatives, total_savings, findings, mcp_calls_made,
			processing_time_ms, notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
		ON CONFLICT (user_id, week_start) DO UPDATE SET
			report_id = EXCLUDED.report_id,
			week_end = EXCLUDED.week_end,
			location_city = EXCLUDED.location_city,
			location_state = EXCLUDED.location_state,
			location_country = EXCLUDED.location_country,
			items_analyzed = EXCLUDED.items_analyzed,
			items_with_alternatives = EXCLUDED.items_with_alternatives,
			total_savings = EXCLUDED.total_savings,
			findings = EXCLUDED.findings,
			mcp_calls_made = EXCLUDED.mcp_calls_made,
			processing_time_ms = EXCLUDED.processing_time_ms,
			notes = EXCLUDED.notes,
			updated_at = now()
		RETURNING created_at, updated_at`

	row := p.pool.QueryRow(ctx, sql,
		report.ReportID, report.UserID, report.WeekStart, report.WeekEnd,
		report.Location.City, report.Location.State, report.Location.Country,
		report.ItemsAnalyzed, report.ItemsWithAlternatives, report.TotalSavings, findingsJSON,
		report.MCPCallsMade, report.ProcessingTimeMs, report.Notes,
	)
	if err := row.Scan(&report.CreatedAt, &report.UpdatedAt); err != nil {
		// A serialization failure or unique-key race means another writer
		// won this (user, week); everything else is a store failure.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "23505") {
			return ErrPersistConflict
		}
		return errors.Wrap(err, "store_unavailable: upsert weekly_report")
	}
	return nil
}

func (p *PostgresReportStore) Get(ctx context.Context, userID string, weekStart *time.Time) (*model.WeeklyReport, error) {
	var row pgx.Row
	if weekStart != nil {
		row = p.pool.QueryRow(ctx, reportSelectSQL+` WHERE user_id = $1 AND week_start = $2`, userID, *weekStart)
	} else {
		row = p.pool.QueryRow(ctx, reportSelectSQL+` WHERE user_id = $1 ORDER BY week_start DESC LIMIT 1`, userID)
	}
	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "store_unavailable: get weekly_report")
	}
	return report, nil
}

func (p *PostgresReportStore) ListHistory(ctx context.Context, userID string, limit int) ([]model.WeeklyReport, error) {
	if limit <= 0 {
		limit = 4
	}
	rows, err := p.pool.Query(ctx, reportSelectSQL+` WHERE user_id = $1 ORDER BY week_start DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "store_unavailable: list_history")
	}
	defer rows.Close()

	var out []model.WeeklyReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, errors.Wrap(err, "store_unavailable: scan weekly_report")
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

const reportSelectSQL = `SELECT
	report_id, user_id, week_start, week_end, location_city, location_state, location_country,
	items_analyzed, items_with_alternatives, total_savings, findings, mcp_calls_made,
	processing_time_ms, notes, created_at, updated_at
	FROM weekly_reports`

func scanReport(row pgx.Row) (*model.WeeklyReport, error) {
	var r model.WeeklyReport
	var findingsJSON []byte
	err := row.Scan(
		&r.ReportID, &r.UserID, &r.WeekStart, &r.WeekEnd, &r.Location.City, &r.Location.State, &r.Location.Country,
		&r.ItemsAnalyzed, &r.ItemsWithAlternatives, &r.TotalSavings, &findingsJSON, &r.MCPCallsMade,
		&r.ProcessingTimeMs, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	findings, err := unmarshalFindings(findingsJSON)
	if err != nil {
		return nil, err
	}
	r.Findings = findings
	return &r, nil
}
