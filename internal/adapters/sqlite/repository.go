package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/shopspring/decimal"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
)

// Repository implements ports.AuditRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/stockpilot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Audit database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS batches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy TEXT NOT NULL,
		mode TEXT NOT NULL,
		total INTEGER NOT NULL,
		previewed INTEGER NOT NULL,
		submitted INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		estimated_amount TEXT NOT NULL,
		realized_amount TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id INTEGER NOT NULL,
		at TIMESTAMP NOT NULL,
		strategy_tag TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		broker_order_id TEXT NULL,
		detail TEXT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_records_at ON audit_records (at);
	CREATE INDEX IF NOT EXISTS idx_audit_records_strategy ON audit_records (strategy_tag, at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing audit database")
		return r.db.Close()
	}
	return nil
}

// CreateBatch saves a batch summary and returns its assigned ID.
func (r *Repository) CreateBatch(ctx context.Context, strategy string, mode domain.Mode, summary domain.Summary) (int64, error) {
	const query = `
	INSERT INTO batches (strategy, mode, total, previewed, submitted, failed, estimated_amount, realized_amount, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		strategy, string(mode), summary.Total, summary.Previewed, summary.Submitted, summary.Failed,
		summary.EstimatedAmount.String(), summary.RealizedAmount.String(), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to insert batch for strategy %s: %v", ports.ErrQueryFailed, strategy, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for batch %s: %w", strategy, err)
	}
	r.logger.Debug(ctx, "Batch recorded", map[string]interface{}{"batchID": id, "strategy": strategy})
	return id, nil
}

// CreateRecord saves one audit record under a batch.
func (r *Repository) CreateRecord(ctx context.Context, batchID int64, rec *domain.AuditRecord) (int64, error) {
	const query = `
	INSERT INTO audit_records (batch_id, at, strategy_tag, symbol, side, quantity, price, amount, status, broker_order_id, detail)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var orderID sql.NullString
	if rec.BrokerOrderID != "" {
		orderID = sql.NullString{String: rec.BrokerOrderID, Valid: true}
	}
	result, err := r.db.ExecContext(ctx, query,
		batchID, rec.Timestamp, rec.StrategyTag, rec.Symbol, string(rec.Side), rec.Quantity,
		rec.Price.String(), rec.Amount.String(), string(rec.Status), orderID, rec.Detail)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to insert audit record for %s: %v", ports.ErrQueryFailed, rec.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for audit record %s: %w", rec.Symbol, err)
	}
	return id, nil
}

// FindRecent retrieves the most recent audit records, newest first.
func (r *Repository) FindRecent(ctx context.Context, limit int) ([]*domain.AuditRecord, error) {
	const query = `
	SELECT at, strategy_tag, symbol, side, quantity, price, amount, status, broker_order_id, COALESCE(detail, '')
	FROM audit_records
	ORDER BY at DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query audit records: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	records := make([]*domain.AuditRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit record rows: %w", err)
	}
	return records, nil
}

// CountTodayByStrategy counts records written today for a strategy tag.
// Only live batches count: a morning preview must not suppress that day's
// scheduled run.
func (r *Repository) CountTodayByStrategy(ctx context.Context, strategyTag string) (int, error) {
	const query = `
	SELECT COUNT(*)
	FROM audit_records r
	JOIN batches b ON b.id = r.batch_id
	WHERE r.strategy_tag = ? AND b.mode = ? AND date(r.at) = date('now')`
	var count int
	if err := r.db.QueryRowContext(ctx, query, strategyTag, string(domain.ModeLive)).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count audit records for %s: %v", ports.ErrQueryFailed, strategyTag, err)
	}
	return count, nil
}

// scanner matches *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*domain.AuditRecord, error) {
	rec := &domain.AuditRecord{}
	var side, status, price, amount string
	var orderID sql.NullString
	err := s.Scan(&rec.Timestamp, &rec.StrategyTag, &rec.Symbol, &side, &rec.Quantity,
		&price, &amount, &status, &orderID, &rec.Detail)
	if err != nil {
		return nil, err
	}
	rec.Side = domain.Side(side)
	rec.Status = domain.IntentStatus(status)
	if rec.Price, err = decimalFromString(price); err != nil {
		return nil, err
	}
	if rec.Amount, err = decimalFromString(amount); err != nil {
		return nil, err
	}
	if orderID.Valid {
		rec.BrokerOrderID = orderID.String
	}
	return rec, nil
}

func decimalFromString(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value %q in database: %w", s, err)
	}
	return d, nil
}
