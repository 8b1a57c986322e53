// Package engine compiles relations and transfer requests into SQL and runs
// it on one connection.
package engine

import (
	"context"
	"strings"

	"db-relay/internal/dialect"
	"db-relay/internal/driver"
	"db-relay/internal/errs"
	"db-relay/internal/logger"
	"db-relay/internal/schema"
)

// Options tune an Engine.
type Options struct {
	// Strict turns advisory conditions, such as dropping an object of an
	// unsupported kind, into errors.
	Strict bool
}

// Engine generates and runs statements against one connection. It runs one
// statement at a time; use one Engine per goroutine.
type Engine struct {
	conn    driver.Conn
	dialect dialect.Dialect
	log     *logger.Logger
	opts    Options
}

// New creates an engine on conn. A nil log uses the global logger.
func New(conn driver.Conn, log *logger.Logger, opts Options) *Engine {
	if log == nil {
		log = logger.L()
	}
	return &Engine{
		conn:    conn,
		dialect: conn.Dialect(),
		log:     log.With().Str("connection", conn.Name()).Logger(),
		opts:    opts,
	}
}

func (e *Engine) Conn() driver.Conn { return e.conn }

// quote passes a name through the dialect quoting function, or as it is
// when quoting is disabled on the connection.
func (e *Engine) quote(name string) string {
	if !e.conn.Quoting() {
		return name
	}
	return e.dialect.QuoteIdentifier(name)
}

// QuoteColumns quotes the names of cols for a statement or a sink.
func (e *Engine) QuoteColumns(cols []*schema.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = e.quote(c.Name())
	}
	return names
}

func (e *Engine) columnList(cols []*schema.Column) string {
	return strings.Join(e.QuoteColumns(cols), ", ")
}

// TableName renders the path of rel for a statement.
func (e *Engine) TableName(rel *schema.Relation) string {
	p := rel.Path()
	if !e.conn.Quoting() {
		if p.Schema == "" {
			return p.Name
		}
		return p.Schema + "." + p.Name
	}
	return e.dialect.QualifiedName(p.Schema, p.Name)
}

// SelectStatement returns the select text of rel over cols. A query
// relation is its own select.
func (e *Engine) SelectStatement(rel *schema.Relation, cols []*schema.Column) string {
	if rel.Kind() == schema.KindQuery {
		return rel.Query()
	}
	if len(cols) == 0 {
		cols = rel.Columns()
	}
	return "select " + e.columnList(cols) + " from " + e.TableName(rel)
}

// fromClause is the relation of a select, a query in parentheses with alias
// or a table with an optional alias.
func (e *Engine) fromClause(rel *schema.Relation, alias string) string {
	if rel.Kind() == schema.KindQuery {
		if alias == "" {
			alias = e.quote(rel.Name())
		}
		return "( " + rel.Query() + " ) " + alias
	}
	if alias == "" {
		return e.TableName(rel)
	}
	return e.TableName(rel) + " " + alias
}

func (e *Engine) schemaOf(rel *schema.Relation) string {
	if s := rel.Path().Schema; s != "" {
		return s
	}
	return e.conn.Schema()
}

// Exists reports whether rel is an object of the connection. A query
// relation always exists.
func (e *Engine) Exists(ctx context.Context, rel *schema.Relation) (bool, error) {
	if rel.Kind() == schema.KindQuery {
		return true, nil
	}
	objects, err := e.conn.Objects(ctx, e.schemaOf(rel))
	if err != nil {
		return false, errs.Wrapf(errs.ErrKindQueryFailed, err, "cannot list the objects of %s", e.conn.Name())
	}
	found := false
	for _, o := range objects {
		if o.Name == rel.Name() {
			return true, nil
		}
		if strings.EqualFold(o.Name, rel.Name()) {
			found = true
		}
	}
	return found, nil
}

// Count returns the number of rows of rel.
func (e *Engine) Count(ctx context.Context, rel *schema.Relation) (int64, error) {
	stmt := "select count(*) from " + e.fromClause(rel, "")
	n, err := e.conn.QueryInt(ctx, stmt)
	if err != nil {
		return 0, errs.Wrapf(errs.ErrKindQueryFailed, err, "Error when executing the statement: %s", stmt)
	}
	return n, nil
}

// Exec runs one statement and logs it on one line.
func (e *Engine) Exec(ctx context.Context, stmt string) (int64, error) {
	e.log.Info(oneLine(stmt))
	n, err := e.conn.Exec(ctx, stmt)
	if err != nil {
		return 0, errs.Wrapf(errs.ErrKindQueryFailed, err, "Error when executing the statement: %s", oneLine(stmt))
	}
	return n, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
