package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"db-relay/internal/errs"
	"db-relay/internal/pump"
	"db-relay/internal/schema"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxConn is a Database over a pgx pool. Batches are written with COPY.
type PgxConn struct {
	base
	pool *pgxpool.Pool
}

func openPgx(ctx context.Context, b base) (*PgxConn, error) {
	poolCfg, err := pgxpool.ParseConfig(b.cfg.DSN)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrKindConnectionFailed, err, "invalid DSN for %s", b.cfg.Name)
	}
	if b.cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(b.cfg.MaxOpenConns)
	}
	if b.cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(min(b.cfg.MaxIdleConns, int(poolCfg.MaxConns)))
	}
	if b.cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = b.cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrKindConnectionFailed, err, "failed to create the pool of %s", b.cfg.Name)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Wrapf(errs.ErrKindConnectionFailed, err, "failed to connect to %s", b.cfg.Name)
	}
	b.log.Debugf("Connected with pgx, default schema %q", b.schema)
	return &PgxConn{base: b, pool: pool}, nil
}

func (c *PgxConn) Pool() *pgxpool.Pool { return c.pool }

func (c *PgxConn) Close() error {
	c.pool.Close()
	return nil
}

func (c *PgxConn) query(ctx context.Context, query string, args ...any) (rowScanner, func(), error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	return rows, rows.Close, nil
}

func (c *PgxConn) Exec(ctx context.Context, stmt string) (int64, error) {
	tag, err := c.pool.Exec(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *PgxConn) QueryInt(ctx context.Context, stmt string) (int64, error) {
	var n *int64
	if err := c.pool.QueryRow(ctx, stmt).Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	if n == nil {
		return 0, nil
	}
	return *n, nil
}

func (c *PgxConn) Objects(ctx context.Context, schemaName string) ([]schema.ObjectRow, error) {
	return readObjects(ctx, c.query, c.dialect, schemaName)
}

func (c *PgxConn) Columns(ctx context.Context, schemaName string) ([]schema.ColumnRow, error) {
	return readColumns(ctx, c.query, c.dialect, schemaName)
}

func (c *PgxConn) PrimaryKeys(ctx context.Context, schemaName string) ([]schema.KeyRow, error) {
	query, args := c.dialect.PrimaryKeysQuery(schemaName)
	return readKeys(ctx, c.query, "primary keys", query, args)
}

func (c *PgxConn) UniqueKeys(ctx context.Context, schemaName string) ([]schema.KeyRow, error) {
	query, args := c.dialect.UniqueKeysQuery(schemaName)
	return readKeys(ctx, c.query, "unique keys", query, args)
}

func (c *PgxConn) ForeignKeys(ctx context.Context, schemaName string) ([]schema.ForeignKeyRow, error) {
	return readForeignKeys(ctx, c.query, c.dialect, schemaName)
}

func (c *PgxConn) Source(query string) pump.RowSource {
	return &pgxSource{conn: c, query: query}
}

// Sink takes the quoted table name like the other implementations; COPY
// needs the identifier parts, so the name is split again.
func (c *PgxConn) Sink(table string, columns []string, identity bool) pump.BatchSink {
	cols := make([]string, len(columns))
	for i, col := range columns {
		parts := splitIdentifier(col)
		cols[i] = parts[len(parts)-1]
	}
	return &pgxSink{conn: c, table: table, ident: splitIdentifier(table), columns: cols}
}

// splitIdentifier parses a possibly quoted, dot separated name. Unquoted
// parts fold to lower case as postgres does.
func splitIdentifier(name string) pgx.Identifier {
	var parts pgx.Identifier
	var cur strings.Builder
	quoted, wasQuoted := false, false
	end := func() {
		p := cur.String()
		if !wasQuoted {
			p = strings.ToLower(p)
		}
		parts = append(parts, p)
		cur.Reset()
		wasQuoted = false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch == '"' && quoted && i+1 < len(name) && name[i+1] == '"':
			cur.WriteByte('"')
			i++
		case ch == '"':
			quoted = !quoted
			wasQuoted = true
		case ch == '.' && !quoted:
			end()
		default:
			cur.WriteByte(ch)
		}
	}
	end()
	return parts
}

var pgTypes = pgtype.NewMap()

func pgTypeName(oid uint32) string {
	if t, ok := pgTypes.TypeForOID(oid); ok {
		return t.Name
	}
	return ""
}

type pgxSource struct {
	conn    *PgxConn
	query   string
	columns []string
}

func (s *pgxSource) Columns() []string { return s.columns }

func (s *pgxSource) Read(ctx context.Context, fetchSize int, emit func([][]any) error) error {
	rows, err := s.conn.pool.Query(ctx, s.query)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.query, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	s.columns = make([]string, len(fields))
	names := make([]string, len(fields))
	for i, f := range fields {
		s.columns[i] = f.Name
		names[i] = pgTypeName(f.DataTypeOID)
	}
	classes := classesOf(s.conn.reg, names)

	chunk := make([][]any, 0, fetchSize)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return err
		}
		normalizeRow(vals, classes)
		chunk = append(chunk, vals)
		if len(chunk) >= fetchSize {
			if err := emit(chunk); err != nil {
				return err
			}
			chunk = make([][]any, 0, fetchSize)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(chunk) > 0 {
		return emit(chunk)
	}
	return nil
}

type pgxSink struct {
	conn    *PgxConn
	table   string
	ident   pgx.Identifier
	columns []string
}

func (s *pgxSink) Open(ctx context.Context) (pump.Writer, error) {
	return &pgxWriter{sink: s}, nil
}

type pgxWriter struct {
	sink *pgxSink
	tx   pgx.Tx
}

func (w *pgxWriter) Write(ctx context.Context, rows [][]any) error {
	if w.tx == nil {
		tx, err := w.sink.conn.pool.Begin(ctx)
		if err != nil {
			return err
		}
		for _, h := range w.sink.conn.dialect.BeforeTable(w.sink.table, false) {
			if _, err := tx.Exec(ctx, h.SQL); err != nil {
				tx.Rollback(ctx)
				return fmt.Errorf("%s: %w", h.SQL, err)
			}
		}
		w.tx = tx
	}
	n, err := w.tx.CopyFrom(ctx, w.sink.ident, w.sink.columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy into %s: %w", w.sink.table, err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copied %d of %d rows into %s", n, len(rows), w.sink.table)
	}
	return nil
}

func (w *pgxWriter) Commit(ctx context.Context) error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Commit(ctx)
	w.tx = nil
	return err
}

func (w *pgxWriter) Rollback(ctx context.Context) error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Rollback(ctx)
	w.tx = nil
	return err
}

func (w *pgxWriter) Close() error {
	return w.Rollback(context.Background())
}
