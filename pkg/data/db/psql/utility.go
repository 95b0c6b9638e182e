package psql

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	_ "github.com/lib/pq"
	"github.com/peter-kozarec/augur/pkg/common"
	"github.com/peter-kozarec/augur/pkg/diagnostics"
	"github.com/peter-kozarec/augur/pkg/utility"
)

func Connect(ctx context.Context, host, port, user, pass, db string) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, pass, db)
	return Open(ctx, connStr)
}

// Open connects with a libpq connection string or postgres:// URL.
func Open(ctx context.Context, dataSourceName string) (*sql.DB, error) {
	dbConn, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, err
	}

	if err := dbConn.PingContext(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	return dbConn, nil
}

// CreateTables creates the forecast and metric tables when missing.
func CreateTables(ctx context.Context, db *sql.DB) error {
	statements := []string{`
	CREATE TABLE IF NOT EXISTS forecasts (
		run_id      TEXT NOT NULL,
		series      TEXT NOT NULL,
		ds          TIMESTAMP NOT NULL,
		yhat        DOUBLE PRECISION,
		yhat_lower  DOUBLE PRECISION,
		yhat_upper  DOUBLE PRECISION,
		trend       DOUBLE PRECISION,
		PRIMARY KEY (run_id, series, ds)
	);`, `
	CREATE TABLE IF NOT EXISTS cv_metrics (
		run_id          TEXT NOT NULL,
		series          TEXT NOT NULL,
		horizon_seconds BIGINT NOT NULL,
		mse             DOUBLE PRECISION,
		rmse            DOUBLE PRECISION,
		mae             DOUBLE PRECISION,
		mape            DOUBLE PRECISION,
		mdape           DOUBLE PRECISION,
		smape           DOUBLE PRECISION,
		coverage        DOUBLE PRECISION,
		PRIMARY KEY (run_id, series, horizon_seconds)
	);`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("unable to create table: %w", err)
		}
	}
	return nil
}

// InsertForecasts stores forecast rows in one transaction. Rows already
// stored for the run are left untouched.
func InsertForecasts(ctx context.Context, db *sql.DB, runID utility.RunID, series string, rows []common.Forecast) error {
	query := `
	INSERT INTO forecasts (
		run_id,
		series,
		ds,
		yhat,
		yhat_lower,
		yhat_upper,
		trend
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (run_id, series, ds) DO NOTHING;
	`

	return inTx(ctx, db, query, len(rows), func(stmt *sql.Stmt, i int) error {
		row := rows[i]
		_, err := stmt.ExecContext(
			ctx,
			runID.String(),
			series,
			row.TimeStamp.UTC(),
			nullable(row.Yhat),
			nullable(row.YhatLower),
			nullable(row.YhatUpper),
			nullable(row.Trend),
		)
		return err
	})
}

// InsertMetrics stores per-horizon cross-validation metrics. Skipped metrics
// are stored as NULL.
func InsertMetrics(ctx context.Context, db *sql.DB, runID utility.RunID, series string, rows []diagnostics.MetricsRow) error {
	query := `
	INSERT INTO cv_metrics (
		run_id,
		series,
		horizon_seconds,
		mse,
		rmse,
		mae,
		mape,
		mdape,
		smape,
		coverage
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (run_id, series, horizon_seconds) DO NOTHING;
	`

	return inTx(ctx, db, query, len(rows), func(stmt *sql.Stmt, i int) error {
		row := rows[i]
		_, err := stmt.ExecContext(
			ctx,
			runID.String(),
			series,
			int64(row.Horizon.Seconds()),
			nullable(row.MSE),
			nullable(row.RMSE),
			nullable(row.MAE),
			nullable(row.MAPE),
			nullable(row.MDAPE),
			nullable(row.SMAPE),
			nullable(row.Coverage),
		)
		return err
	})
}

func inTx(ctx context.Context, db *sql.DB, query string, n int, exec func(stmt *sql.Stmt, i int) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("unable to prepare insert: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("unable to insert row %d: %w", i, err)
		}
	}
	_ = stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("unable to commit: %w", err)
	}
	return nil
}

func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}
}
