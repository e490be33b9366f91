package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/synaptica-ai/hospital-insights/pkg/common/config"
	"github.com/synaptica-ai/hospital-insights/pkg/common/database"
)

// Backend pairs the configured store with a read-only querier on the same
// database.
type Backend struct {
	Store   Store
	Querier *Querier
	readDB  *sql.DB
}

func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.WarehouseDriver {
	case config.WarehousePostgres:
		pool, err := database.NewPgxPool(ctx, cfg.PostgresURL(), 4)
		if err != nil {
			return nil, err
		}
		readDB := stdlib.OpenDBFromPool(pool)
		return &Backend{
			Store:   NewPostgresStore(pool),
			Querier: NewQuerier(readDB, config.WarehousePostgres),
			readDB:  readDB,
		}, nil
	case config.WarehouseSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Store:   NewSQLiteStore(db),
			Querier: NewQuerier(db, config.WarehouseSQLite),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.WarehouseDriver)
	}
}

func (b *Backend) Close() error {
	if b.readDB != nil {
		b.readDB.Close()
	}
	return b.Store.Close()
}
