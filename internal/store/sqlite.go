package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"regexp"

	"magicformula/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ ObservationSource = (*SQLiteSource)(nil)
var _ BenchmarkSource = (*SQLiteSource)(nil)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource reads an input table from a SQLite database. The table uses
// the same column names as the CSV layout; rows are read in rowid order.
type SQLiteSource struct {
	db    *sql.DB
	path  string
	table string
}

// NewSQLiteSource opens an existing SQLite database at dbPath for reading
// table. A missing file is an error rather than an empty new database.
func NewSQLiteSource(dbPath, table string) (*SQLiteSource, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", ErrInputUnavailable, table)
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, unavailable(dbPath, err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, unavailable(dbPath, err)
	}
	return &SQLiteSource{db: db, path: dbPath, table: table}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// ReadObservations reads the asset table.
func (s *SQLiteSource) ReadObservations(ctx context.Context) ([]domain.Observation, error) {
	q := fmt.Sprintf(`SELECT %s, %s, %s, %s, %s, %s FROM %s ORDER BY rowid`,
		ColTicker, ColDate, ColPrice, ColVolume, ColEBITEV, ColROIC, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, unavailable(s.path, err)
	}
	defer rows.Close()

	var obs []domain.Observation
	for rows.Next() {
		var (
			ticker, date                sql.NullString
			price, volume, ebitEV, roic sql.NullFloat64
		)
		if err := rows.Scan(&ticker, &date, &price, &volume, &ebitEV, &roic); err != nil {
			return nil, unavailable(s.path, err)
		}
		period, err := ParseDate(date.String)
		if err != nil {
			return nil, unavailable(s.path, err)
		}
		obs = append(obs, domain.Observation{
			AssetID:      ticker.String,
			Period:       period,
			Price:        fromNull(price),
			TradedVolume: fromNull(volume),
			FactorA:      fromNull(ebitEV),
			FactorB:      fromNull(roic),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(s.path, err)
	}
	return obs, nil
}

// ReadBenchmark reads the benchmark table. The date column is used when
// the table has one.
func (s *SQLiteSource) ReadBenchmark(ctx context.Context) ([]domain.BenchmarkPoint, error) {
	hasDate, err := s.hasColumn(ctx, ColDate)
	if err != nil {
		return nil, unavailable(s.path, err)
	}
	dateExpr := "NULL"
	if hasDate {
		dateExpr = ColDate
	}
	q := fmt.Sprintf(`SELECT %s, %s FROM %s ORDER BY rowid`, dateExpr, ColBenchmark, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, unavailable(s.path, err)
	}
	defer rows.Close()

	var pts []domain.BenchmarkPoint
	for rows.Next() {
		var date sql.NullString
		var closeLevel sql.NullFloat64
		if err := rows.Scan(&date, &closeLevel); err != nil {
			return nil, unavailable(s.path, err)
		}
		p := domain.BenchmarkPoint{Close: fromNull(closeLevel)}
		if date.Valid && date.String != "" {
			t, err := ParseDate(date.String)
			if err != nil {
				return nil, unavailable(s.path, err)
			}
			p.Period = t
		}
		pts = append(pts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(s.path, err)
	}
	return pts, nil
}

func (s *SQLiteSource) hasColumn(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, s.table, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// SQLiteWriter creates input tables in a SQLite database.
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter opens (or creates) a SQLite database at dbPath.
func NewSQLiteWriter(dbPath string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &SQLiteWriter{db: db}, nil
}

// Close closes the underlying database connection.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}

// WriteObservations replaces table with the given observations.
func (w *SQLiteWriter) WriteObservations(ctx context.Context, table string, obs []domain.Observation) error {
	if !identRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	create := fmt.Sprintf(`CREATE TABLE %s (
		%s TEXT NOT NULL,
		%s TEXT NOT NULL,
		%s REAL,
		%s REAL,
		%s REAL,
		%s REAL
	)`, table, ColTicker, ColDate, ColPrice, ColVolume, ColEBITEV, ColROIC)
	insert := fmt.Sprintf(`INSERT INTO %s VALUES (?, ?, ?, ?, ?, ?)`, table)

	return w.replace(ctx, table, create, insert, len(obs), func(stmt *sql.Stmt, i int) error {
		o := obs[i]
		_, err := stmt.ExecContext(ctx, o.AssetID, domain.PeriodKey(o.Period),
			toNull(o.Price), toNull(o.TradedVolume), toNull(o.FactorA), toNull(o.FactorB))
		return err
	})
}

// WriteBenchmark replaces table with the given benchmark points.
func (w *SQLiteWriter) WriteBenchmark(ctx context.Context, table string, pts []domain.BenchmarkPoint) error {
	if !identRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	create := fmt.Sprintf(`CREATE TABLE %s (%s TEXT, %s REAL)`, table, ColDate, ColBenchmark)
	insert := fmt.Sprintf(`INSERT INTO %s VALUES (?, ?)`, table)

	return w.replace(ctx, table, create, insert, len(pts), func(stmt *sql.Stmt, i int) error {
		var date sql.NullString
		if pts[i].HasPeriod() {
			date = sql.NullString{String: domain.PeriodKey(pts[i].Period), Valid: true}
		}
		_, err := stmt.ExecContext(ctx, date, toNull(pts[i].Close))
		return err
	})
}

// replace drops and recreates table, then inserts n rows in one transaction.
func (w *SQLiteWriter) replace(ctx context.Context, table, create, insert string, n int, row func(*sql.Stmt, int) error) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
		return fmt.Errorf("dropping %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating %s: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := row(stmt, i); err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func toNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
