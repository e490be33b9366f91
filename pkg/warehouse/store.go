package warehouse

import (
	"context"
	"fmt"
	"strings"
)

// Store persists a warehouse. Replace swaps all four tables in one
// transaction, so readers see either the previous warehouse or the new one.
type Store interface {
	Replace(ctx context.Context, w *Warehouse) error
	Close() error
}

const stagingSuffix = "_next"

type dialect struct {
	types       map[columnKind]string
	placeholder func(n int) string
	// value converts a row value for the driver.
	value func(kind columnKind, v interface{}) interface{}
}

func (d dialect) createTable(t tableDef, name string) string {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		def := c.name + " " + d.types[c.kind]
		if !c.nullable {
			def += " NOT NULL"
		}
		if c.name == t.key {
			def += " PRIMARY KEY"
		}
		cols[i] = def
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(cols, ", "))
}

func (d dialect) insert(t tableDef, name string) string {
	marks := make([]string, len(t.columns))
	for i := range t.columns {
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, strings.Join(t.columnNames(), ", "), strings.Join(marks, ", "))
}

func (d dialect) convert(t tableDef, row []interface{}) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		switch p := v.(type) {
		case *int:
			if p == nil {
				out[i] = nil
				continue
			}
			v = *p
		case *string:
			if p == nil {
				out[i] = nil
				continue
			}
			v = *p
		}
		out[i] = d.value(t.columns[i].kind, v)
	}
	return out
}

// swapStatements drops the live table, promotes the staging one and
// rebuilds its indexes.
func swapStatements(t tableDef) []string {
	stmts := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", t.name),
		fmt.Sprintf("ALTER TABLE %s%s RENAME TO %s", t.name, stagingSuffix, t.name),
	}
	for _, col := range t.indexes {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s(%s)", t.name, col, t.name, col))
	}
	return stmts
}
