package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
)

var sqliteDialect = dialect{
	types: map[columnKind]string{
		kindText: "TEXT",
		kindInt:  "INTEGER",
		kindReal: "REAL",
		kindDate: "TEXT",
	},
	placeholder: func(int) string { return "?" },
	value: func(kind columnKind, v interface{}) interface{} {
		if t, ok := v.(time.Time); ok && kind == kindDate {
			return t.Format(dateKeyLayout)
		}
		return v
	},
}

// SQLiteStore keeps the warehouse in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Replace(ctx context.Context, w *Warehouse) error {
	if err := w.Validate(); err != nil {
		return err
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tables {
		if err := s.stage(ctx, tx, t, w.rows(t.name)); err != nil {
			return err
		}
	}
	for _, t := range tables {
		for _, stmt := range swapStatements(t) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("swap %s: %w", t.name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"store":       "sqlite",
		"tables":      w.RowCounts(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Warehouse replaced")
	return nil
}

func (s *SQLiteStore) stage(ctx context.Context, tx *sql.Tx, t tableDef, rows [][]interface{}) error {
	staging := t.name + stagingSuffix
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+staging); err != nil {
		return fmt.Errorf("drop %s: %w", staging, err)
	}
	if _, err := tx.ExecContext(ctx, sqliteDialect.createTable(t, staging)); err != nil {
		return fmt.Errorf("create %s: %w", staging, err)
	}

	stmt, err := tx.PrepareContext(ctx, sqliteDialect.insert(t, staging))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, sqliteDialect.convert(t, row)...); err != nil {
			return fmt.Errorf("insert %s: %w", staging, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
