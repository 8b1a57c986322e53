// Package driver adapts database/sql and pgx connections to the narrow
// capabilities the engine, the reflector and the pump need.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"db-relay/internal/datatype"
	"db-relay/internal/dialect"
	"db-relay/internal/logger"
	"db-relay/internal/pump"
	"db-relay/internal/schema"
)

// Conn is what the engine needs from a connection.
type Conn interface {
	Name() string
	Dialect() dialect.Dialect
	// Schema is the default schema of the connection.
	Schema() string
	Registry() *datatype.Registry
	Quoting() bool

	// Types returns the native type rows of the backend.
	Types(ctx context.Context) ([]datatype.Info, error)
	Objects(ctx context.Context, schema string) ([]schema.ObjectRow, error)

	// Exec runs one statement and returns the affected row count.
	Exec(ctx context.Context, stmt string) (int64, error)
	// QueryInt runs a statement returning one integer, such as a count.
	QueryInt(ctx context.Context, stmt string) (int64, error)
	Close() error
}

// Database is a live connection: a Conn that also reads catalog metadata
// and streams rows in and out.
type Database interface {
	Conn
	schema.MetadataSource

	// Source streams the rows of a select statement.
	Source(query string) pump.RowSource
	// Sink inserts into a quoted table name. identity tells the dialect
	// hooks that auto-increment columns are written explicitly.
	Sink(table string, columns []string, identity bool) pump.BatchSink
}

// Reflect builds the catalog of the default schema of db.
func Reflect(ctx context.Context, db Database, log *logger.Logger) (*schema.Catalog, error) {
	return schema.Reflect(ctx, db, db.Registry(), db.Name(), db.Schema(), log)
}

// base holds what both implementations share.
type base struct {
	cfg     Config
	dialect dialect.Dialect
	schema  string
	reg     *datatype.Registry
	log     *logger.Logger
}

func (b *base) Name() string { return b.cfg.Name }
func (b *base) Dialect() dialect.Dialect { return b.dialect }
func (b *base) Schema() string { return b.schema }
func (b *base) Registry() *datatype.Registry { return b.reg }
func (b *base) Quoting() bool { return b.cfg.Quoting() }
func (b *base) Config() Config { return b.cfg }

// Types returns the dialect type table; database/sql exposes no portable
// type-info query.
func (b *base) Types(ctx context.Context) ([]datatype.Info, error) {
	return b.dialect.NativeTypes(), nil
}

// rowScanner is the common shape of *sql.Rows and pgx.Rows.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// queryFunc runs a query and returns its rows plus the function closing
// them.
type queryFunc func(ctx context.Context, query string, args ...any) (rowScanner, func(), error)

func scanAll(ctx context.Context, q queryFunc, what, query string, args []any, scan func(rowScanner) error) error {
	rows, done, err := q(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer done()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("failed to scan %s: %w", what, err)
		}
	}
	return rows.Err()
}

func readObjects(ctx context.Context, q queryFunc, d dialect.Dialect, schemaName string) ([]schema.ObjectRow, error) {
	query, args := d.ObjectsQuery(schemaName)
	var out []schema.ObjectRow
	err := scanAll(ctx, q, "objects", query, args, func(r rowScanner) error {
		var catalog, owner, name, kind, remarks sql.NullString
		if err := r.Scan(&catalog, &owner, &name, &kind, &remarks); err != nil {
			return err
		}
		out = append(out, schema.ObjectRow{
			Catalog: catalog.String,
			Schema:  owner.String,
			Name:    name.String,
			Kind:    kind.String,
			Remarks: remarks.String,
		})
		return nil
	})
	return out, err
}

func readColumns(ctx context.Context, q queryFunc, d dialect.Dialect, schemaName string) ([]schema.ColumnRow, error) {
	query, args := d.ColumnsQuery(schemaName)
	var out []schema.ColumnRow
	err := scanAll(ctx, q, "columns", query, args, func(r rowScanner) error {
		var rel, name, typeName, nullable, extra, remarks sql.NullString
		var precision, scale, position sql.NullInt64
		if err := r.Scan(&rel, &name, &typeName, &precision, &scale, &nullable, &position, &extra, &remarks); err != nil {
			return err
		}
		out = append(out, schema.ColumnRow{
			Relation:      rel.String,
			Name:          name.String,
			TypeName:      strings.ToLower(strings.TrimSpace(typeName.String)),
			TypeCode:      datatype.NoCode,
			Precision:     int(precision.Int64),
			Scale:         int(scale.Int64),
			Nullable:      parseNullable(nullable.String),
			Position:      int(position.Int64),
			AutoIncrement: isAutoIncrement(extra.String),
			Remarks:       remarks.String,
		})
		return nil
	})
	return out, err
}

func parseNullable(s string) datatype.Nullability {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "Y", "1", "TRUE":
		return datatype.Nullable
	case "NO", "N", "0", "FALSE":
		return datatype.NotNull
	default:
		return datatype.NullableUnknown
	}
}

// isAutoIncrement reads the extra column text: mysql EXTRA, a postgres
// serial default or identity marker, or the markers the other dialects emit.
func isAutoIncrement(extra string) bool {
	e := strings.ToLower(extra)
	return strings.Contains(e, "auto_increment") ||
		strings.Contains(e, "identity") ||
		strings.Contains(e, "nextval")
}

func readKeys(ctx context.Context, q queryFunc, what, query string, args []any) ([]schema.KeyRow, error) {
	var out []schema.KeyRow
	err := scanAll(ctx, q, what, query, args, func(r rowScanner) error {
		var rel, name, column sql.NullString
		var seq sql.NullInt64
		if err := r.Scan(&rel, &name, &column, &seq); err != nil {
			return err
		}
		out = append(out, schema.KeyRow{
			Relation: rel.String,
			Name:     name.String,
			Column:   column.String,
			Sequence: int(seq.Int64),
		})
		return nil
	})
	return out, err
}

func readForeignKeys(ctx context.Context, q queryFunc, d dialect.Dialect, schemaName string) ([]schema.ForeignKeyRow, error) {
	query, args := d.ForeignKeysQuery(schemaName)
	var out []schema.ForeignKeyRow
	err := scanAll(ctx, q, "foreign keys", query, args, func(r rowScanner) error {
		var rel, name, column, frel, fcol sql.NullString
		var seq sql.NullInt64
		if err := r.Scan(&rel, &name, &column, &seq, &frel, &fcol); err != nil {
			return err
		}
		out = append(out, schema.ForeignKeyRow{
			Relation:        rel.String,
			Name:            name.String,
			Column:          column.String,
			Sequence:        int(seq.Int64),
			ForeignRelation: frel.String,
			ForeignColumn:   fcol.String,
		})
		return nil
	})
	return out, err
}

// classesOf resolves driver-reported column type names to value classes.
func classesOf(reg *datatype.Registry, typeNames []string) []datatype.ValueClass {
	out := make([]datatype.ValueClass, len(typeNames))
	for i, n := range typeNames {
		if t, ok := reg.ResolveByName(strings.ToLower(n)); ok {
			out[i] = t.Class()
		}
	}
	return out
}

func normalizeRow(row []any, classes []datatype.ValueClass) {
	for i, v := range row {
		if i < len(classes) {
			row[i] = pump.Normalize(v, classes[i])
		}
	}
}
