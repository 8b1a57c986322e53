package driver

import (
	"context"
	"database/sql"
	"fmt"

	"db-relay/internal/dialect"
	"db-relay/internal/errs"
	"db-relay/internal/logger"
	"db-relay/internal/pump"
	"db-relay/internal/schema"
)

// SQLConn is a Database over database/sql. The driver must be registered
// by a blank import in the main package.
type SQLConn struct {
	base
	db *sql.DB
}

func openSQL(ctx context.Context, b base) (*SQLConn, error) {
	db, err := sql.Open(sqlDriverName(b.cfg.Driver), b.cfg.DSN)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrKindConnectionFailed, err, "failed to open %s", b.cfg.Name)
	}
	if b.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(b.cfg.MaxOpenConns)
	}
	if b.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(b.cfg.MaxIdleConns)
	}
	if b.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(b.cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.Wrapf(errs.ErrKindConnectionFailed, err, "failed to connect to %s", b.cfg.Name)
	}
	b.log.Debugf("Connected with %s, default schema %q", b.dialect.Name(), b.schema)
	return &SQLConn{base: b, db: db}, nil
}

// NewSQLConn wraps an open handle, for callers that manage their own pool.
func NewSQLConn(db *sql.DB, cfg Config, log *logger.Logger) (*SQLConn, error) {
	if log == nil {
		log = logger.L()
	}
	d, err := dialect.GetDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	reg, err := newRegistry(cfg, d)
	if err != nil {
		return nil, err
	}
	b := base{cfg: cfg, dialect: d, schema: defaultSchema(cfg, d), reg: reg, log: log}
	return &SQLConn{base: b, db: db}, nil
}

func (c *SQLConn) DB() *sql.DB { return c.db }

func (c *SQLConn) Close() error { return c.db.Close() }

func (c *SQLConn) query(ctx context.Context, query string, args ...any) (rowScanner, func(), error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	return rows, func() { rows.Close() }, nil
}

func (c *SQLConn) Exec(ctx context.Context, stmt string) (int64, error) {
	res, err := c.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot count DDL.
		return 0, nil
	}
	return n, nil
}

func (c *SQLConn) QueryInt(ctx context.Context, stmt string) (int64, error) {
	var n sql.NullInt64
	if err := c.db.QueryRowContext(ctx, stmt).Scan(&n); err != nil {
		return 0, err
	}
	return n.Int64, nil
}

func (c *SQLConn) Objects(ctx context.Context, schemaName string) ([]schema.ObjectRow, error) {
	return readObjects(ctx, c.query, c.dialect, schemaName)
}

func (c *SQLConn) Columns(ctx context.Context, schemaName string) ([]schema.ColumnRow, error) {
	return readColumns(ctx, c.query, c.dialect, schemaName)
}

func (c *SQLConn) PrimaryKeys(ctx context.Context, schemaName string) ([]schema.KeyRow, error) {
	query, args := c.dialect.PrimaryKeysQuery(schemaName)
	return readKeys(ctx, c.query, "primary keys", query, args)
}

func (c *SQLConn) UniqueKeys(ctx context.Context, schemaName string) ([]schema.KeyRow, error) {
	query, args := c.dialect.UniqueKeysQuery(schemaName)
	return readKeys(ctx, c.query, "unique keys", query, args)
}

func (c *SQLConn) ForeignKeys(ctx context.Context, schemaName string) ([]schema.ForeignKeyRow, error) {
	return readForeignKeys(ctx, c.query, c.dialect, schemaName)
}

func (c *SQLConn) Source(query string) pump.RowSource {
	return &sqlSource{conn: c, query: query}
}

func (c *SQLConn) Sink(table string, columns []string, identity bool) pump.BatchSink {
	return &sqlSink{conn: c, table: table, columns: columns, identity: identity}
}

type sqlSource struct {
	conn    *SQLConn
	query   string
	columns []string
}

func (s *sqlSource) Columns() []string { return s.columns }

func (s *sqlSource) Read(ctx context.Context, fetchSize int, emit func([][]any) error) error {
	rows, err := s.conn.db.QueryContext(ctx, s.query)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	s.columns = cols
	types, err := rows.ColumnTypes()
	if err != nil {
		return err
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.DatabaseTypeName()
	}
	classes := classesOf(s.conn.reg, names)

	chunk := make([][]any, 0, fetchSize)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
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

type sqlSink struct {
	conn     *SQLConn
	table    string
	columns  []string
	identity bool
}

// Prepare runs the load hooks of the dialect on a connection of its own.
func (s *sqlSink) Prepare(ctx context.Context) error {
	return s.conn.runHooks(ctx, s.conn.dialect.BeforeLoad([]string{s.table}))
}

func (s *sqlSink) Finish(ctx context.Context) error {
	return s.conn.runHooks(ctx, s.conn.dialect.AfterLoad([]string{s.table}))
}

func (c *SQLConn) runHooks(ctx context.Context, hooks []dialect.Hook) error {
	for _, h := range hooks {
		if _, err := c.db.ExecContext(ctx, h.SQL); err != nil {
			if h.Optional {
				c.log.Warnf("Hook failed: %s: %v", h.SQL, err)
				continue
			}
			return errs.Wrapf(errs.ErrKindQueryFailed, err, "Error when executing the statement: %s", h.SQL)
		}
	}
	return nil
}

func (s *sqlSink) Open(ctx context.Context) (pump.Writer, error) {
	return &sqlWriter{
		sink:      s,
		insert:    s.conn.dialect.InsertQuery(s.table, s.columns),
		boolAsInt: s.conn.dialect.Name() == "oracle",
	}, nil
}

type sqlWriter struct {
	sink      *sqlSink
	insert    string
	boolAsInt bool

	tx   *sql.Tx
	stmt *sql.Stmt
}

func (w *sqlWriter) begin(ctx context.Context) error {
	tx, err := w.sink.conn.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	d := w.sink.conn.dialect
	for _, h := range d.BeforeTable(w.sink.table, w.sink.identity) {
		if _, err := tx.ExecContext(ctx, h.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("%s: %w", h.SQL, err)
		}
	}
	stmt, err := tx.PrepareContext(ctx, w.insert)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare %s: %w", w.insert, err)
	}
	w.tx, w.stmt = tx, stmt
	return nil
}

func (w *sqlWriter) Write(ctx context.Context, rows [][]any) error {
	if w.tx == nil {
		if err := w.begin(ctx); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if w.boolAsInt {
			for i := range r {
				r[i] = pump.BoolAsInt(r[i])
			}
		}
		if _, err := w.stmt.ExecContext(ctx, r...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", w.sink.table, err)
		}
	}
	return nil
}

func (w *sqlWriter) Commit(ctx context.Context) error {
	if w.tx == nil {
		return nil
	}
	d := w.sink.conn.dialect
	for _, h := range d.AfterTable(w.sink.table, w.sink.identity) {
		if _, err := w.tx.ExecContext(ctx, h.SQL); err != nil {
			return fmt.Errorf("%s: %w", h.SQL, err)
		}
	}
	err := w.tx.Commit()
	w.tx, w.stmt = nil, nil
	return err
}

func (w *sqlWriter) Rollback(ctx context.Context) error {
	if w.tx == nil {
		return nil
	}
	err := w.tx.Rollback()
	w.tx, w.stmt = nil, nil
	return err
}

func (w *sqlWriter) Close() error {
	return w.Rollback(context.Background())
}
