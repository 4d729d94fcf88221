package store

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/becomeliminal/analytics-core/model"
)

// OpenSQLite opens (creating if needed) a local SQLite database and ensures
// the purchase_items/weekly_reports tables exist. It is the local backend
// for runs and fixtures, selected with store.driver=sqlite and store.dsn
// as the database path; the default driver is the in-memory store.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS purchase_items (
	item_id TEXT PRIMARY KEY,
	purchase_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	merchant TEXT NOT NULL,
	item_name TEXT NOT NULL,
	category TEXT NOT NULL,
	subcategory TEXT NOT NULL,
	item_text TEXT NOT NULL,
	price REAL NOT NULL,
	qty REAL NOT NULL,
	ts INTEGER NOT NULL,
	detected_needwant TEXT NOT NULL,
	user_needwant TEXT NOT NULL,
	confidence REAL NOT NULL,
	buyer_city TEXT NOT NULL,
	buyer_state TEXT NOT NULL,
	buyer_country TEXT NOT NULL,
	buyer_postal_code TEXT,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_purchase_items_user_ts ON purchase_items(user_id, ts);

CREATE TABLE IF NOT EXISTS weekly_reports (
	report_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	week_start INTEGER NOT NULL,
	week_end INTEGER NOT NULL,
	location_city TEXT NOT NULL,
	location_state TEXT NOT NULL,
	location_country TEXT NOT NULL,
	items_analyzed INTEGER NOT NULL,
	items_with_alternatives INTEGER NOT NULL,
	total_savings REAL NOT NULL,
	findings TEXT NOT NULL,
	mcp_calls_made INTEGER NOT NULL,
	processing_time_ms INTEGER NOT NULL,
	notes TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, week_start)
);
`

// SQLitePurchaseStore is a local/dev-grade purchase store.
type SQLitePurchaseStore struct {
	db *sql.DB
}

// NewSQLitePurchaseStore wraps an open database handle.
func NewSQLitePurchaseStore(db *sql.DB) *SQLitePurchaseStore {
	return &SQLitePurchaseStore{db: db}
}

const sqlitePurchaseColumns = `item_id, purchase_id, user_id, merchant, item_name, category, subcategory,
	item_text, price, qty, ts, detected_needwant, user_needwant, confidence,
	buyer_city, buyer_state, buyer_country, buyer_postal_code, status, created_at`

type sqliteRow interface {
	Scan(dest ...interface{}) error
}

func scanSQLitePurchaseItem(row sqliteRow) (model.PurchaseItem, error) {
	var it model.PurchaseItem
	var postal sql.NullString
	var ts, createdAt int64
	err := row.Scan(
		&it.ItemID, &it.PurchaseID, &it.UserID, &it.Merchant, &it.ItemName, &it.Category, &it.Subcategory,
		&it.ItemText, &it.Price, &it.Qty, &ts, &it.DetectedNeedWant, &it.UserNeedWant, &it.Confidence,
		&it.BuyerLocation.City, &it.BuyerLocation.State, &it.BuyerLocation.Country, &postal, &it.Status, &createdAt,
	)
	it.TS = time.Unix(ts, 0).UTC()
	it.CreatedAt = time.Unix(createdAt, 0).UTC()
	if postal.Valid {
		it.BuyerLocation.PostalCode = postal.String
	}
	return it, err
}

func (s *SQLitePurchaseStore) ListItems(ctx context.Context, q ListItemsQuery) ([]model.PurchaseItem, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	var since, until int64 = 0, 1<<62
	if q.Since != nil {
		since = q.Since.Unix()
	}
	if q.Until != nil {
		until = q.Until.Unix()
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqlitePurchaseColumns+` FROM purchase_items
		WHERE user_id = ? AND status = 'active' AND ts >= ? AND ts < ?
		ORDER BY ts DESC LIMIT ?`, q.UserID, since, until, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteItems(rows)
}

func (s *SQLitePurchaseStore) ListItemsByCategory(ctx context.Context, userID, category string, since, until *time.Time) ([]model.PurchaseItem, error) {
	var sinceU, untilU int64 = 0, 1 << 62
	if since != nil {
		sinceU = since.Unix()
	}
	if until != nil {
		untilU = until.Unix()
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqlitePurchaseColumns+` FROM purchase_items
		WHERE user_id = ? AND status = 'active' AND category = ? AND ts >= ? AND ts < ?
		ORDER BY ts DESC`, userID, category, sinceU, untilU)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteItems(rows)
}

func (s *SQLitePurchaseStore) TopItemsByPrice(ctx context.Context, userID string, weekStart time.Time, n int) ([]model.PurchaseItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqlitePurchaseColumns+` FROM purchase_items
		WHERE user_id = ? AND status = 'active' AND ts >= ? AND ts < ?
		ORDER BY (price * qty) DESC, ts DESC, item_id ASC LIMIT ?`,
		userID, weekStart.Unix(), weekStart.AddDate(0, 0, 7).Unix(), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteItems(rows)
}

func (s *SQLitePurchaseStore) ActiveUsersForWeek(ctx context.Context, weekStart time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM purchase_items
		WHERE status = 'active' AND ts >= ? AND ts < ? ORDER BY user_id`,
		weekStart.Unix(), weekStart.AddDate(0, 0, 7).Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func collectSQLiteItems(rows *sql.Rows) ([]model.PurchaseItem, error) {
	var out []model.PurchaseItem
	for rows.Next() {
		it, err := scanSQLitePurchaseItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SQLiteReportStore is a local/dev-grade report store.
type SQLiteReportStore struct {
	db *sql.DB
}

// NewSQLiteReportStore wraps an open database handle.
func NewSQLiteReportStore(db *sql.DB) *SQLiteReportStore {
	return &SQLiteReportStore{db: db}
}

func (s *SQLiteReportStore) Upsert(ctx context.Context, report *model.WeeklyReport) error {
	findingsJSON, err := marshalFindings(report.Findings)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var createdAt int64
	err = tx.QueryRowContext(ctx, `SELECT created_at FROM weekly_reports WHERE user_id = ? AND week_start = ?`,
		report.UserID, report.WeekStart.Unix()).Scan(&createdAt)
	if err == sql.ErrNoRows {
		createdAt = now.Unix()
	} else if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO weekly_reports (
			report_id, user_id, week_start, week_end, location_city, location_state, location_country,
			items_analyzed, items_with_alternatives, total_savings, findings, mcp_calls_made,
			processing_time_ms, notes, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(user_id, week_start) DO UPDATE SET
			report_id = excluded.report_id,
			week_end = excluded.week_end,
			location_city = excluded.location_city,
			location_state = excluded.location_state,
			location_country = excluded.location_country,
			items_analyzed = excluded.items_analyzed,
			items_with_alternatives = excluded.items_with_alternatives,
			total_savings = excluded.total_savings,
			findings = excluded.findings,
			mcp_calls_made = excluded.mcp_calls_made,
			processing_time_ms = excluded.processing_time_ms,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		report.ReportID, report.UserID, report.WeekStart.Unix(), report.WeekEnd.Unix(),
		report.Location.City, report.Location.State, report.Location.Country,
		report.ItemsAnalyzed, report.ItemsWithAlternatives, report.TotalSavings, string(findingsJSON),
		report.MCPCallsMade, report.ProcessingTimeMs, report.Notes, createdAt, now.Unix(),
	)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	report.CreatedAt = time.Unix(createdAt, 0).UTC()
	report.UpdatedAt = now
	return nil
}

func (s *SQLiteReportStore) Get(ctx context.Context, userID string, weekStart *time.Time) (*model.WeeklyReport, error) {
	var row *sql.Row
	if weekStart != nil {
		row = s.db.QueryRowContext(ctx, sqliteReportSelect+` WHERE user_id = ? AND week_start = ?`, userID, weekStart.Unix())
	} else {
		row = s.db.QueryRowContext(ctx, sqliteReportSelect+` WHERE user_id = ? ORDER BY week_start DESC LIMIT 1`, userID)
	}
	r, err := scanSQLiteReport(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteReportStore) ListHistory(ctx context.Context, userID string, limit int) ([]model.WeeklyReport, error) {
	if limit <= 0 {
		limit = 4
	}
	rows, err := s.db.QueryContext(ctx, sqliteReportSelect+` WHERE user_id = ? ORDER BY week_start DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeeklyReport
	for rows.Next() {
		r, err := scanSQLiteReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

const sqliteReportSelect = `SELECT
	report_id, user_id, week_start, week_end, location_city, location_state, location_country,
	items_analyzed, items_with_alternatives, total_savings, findings, mcp_calls_made,
	processing_time_ms, notes, created_at, updated_at
	FROM weekly_reports`

func scanSQLiteReport(row sqliteRow) (*model.WeeklyReport, error) {
	var r model.WeeklyReport
	var weekStart, weekEnd, createdAt, updatedAt int64
	var findingsJSON string
	var notes sql.NullString
	err := row.Scan(
		&r.ReportID, &r.UserID, &weekStart, &weekEnd, &r.Location.City, &r.Location.State, &r.Location.Country,
		&r.ItemsAnalyzed, &r.ItemsWithAlternatives, &r.TotalSavings, &findingsJSON, &r.MCPCallsMade,
		&r.ProcessingTimeMs, &notes, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.WeekStart = time.Unix(weekStart, 0).UTC()
	r.WeekEnd = time.Unix(weekEnd, 0).UTC()
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	r.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if notes.Valid {
		r.Notes = notes.String
	}
	findings, err := unmarshalFindings([]byte(findingsJSON))
	if err != nil {
		return nil, err
	}
	r.Findings = findings
	return &r, nil
}
