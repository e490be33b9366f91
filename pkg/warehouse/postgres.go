package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/synaptica-ai/hospital-insights/pkg/common/logger"
)

var postgresDialect = dialect{
	types: map[columnKind]string{
		kindText: "TEXT",
		kindInt:  "INTEGER",
		kindReal: "DOUBLE PRECISION",
		kindDate: "DATE",
	},
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	value: func(kind columnKind, v interface{}) interface{} {
		if n, ok := v.(int); ok && kind == kindInt {
			return int32(n)
		}
		return v
	},
}

// PostgresStore bulk loads the warehouse with COPY into staging tables and
// renames them over the live ones in the same transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Replace(ctx context.Context, w *Warehouse) error {
	if err := w.Validate(); err != nil {
		return err
	}
	start := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range tables {
		staging := t.name + stagingSuffix
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+staging); err != nil {
			return fmt.Errorf("drop %s: %w", staging, err)
		}
		if _, err := tx.Exec(ctx, postgresDialect.createTable(t, staging)); err != nil {
			return fmt.Errorf("create %s: %w", staging, err)
		}

		rows := w.rows(t.name)
		converted := make([][]interface{}, len(rows))
		for i, row := range rows {
			converted[i] = postgresDialect.convert(t, row)
		}
		copied, err := tx.CopyFrom(ctx,
			pgx.Identifier{staging},
			t.columnNames(),
			pgx.CopyFromRows(converted),
		)
		if err != nil {
			return fmt.Errorf("copy %s: %w", staging, err)
		}
		if int(copied) != len(rows) {
			return fmt.Errorf("copy %s: wrote %d of %d rows", staging, copied, len(rows))
		}
	}

	for _, t := range tables {
		// Constraint indexes keep their staging name across a table rename.
		stmts := append(swapStatements(t),
			fmt.Sprintf("ALTER INDEX IF EXISTS %s%s_pkey RENAME TO %s_pkey", t.name, stagingSuffix, t.name))
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("swap %s: %w", t.name, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"store":       "postgres",
		"tables":      w.RowCounts(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Warehouse replaced")
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
