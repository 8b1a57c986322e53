package dialect

import "db-relay/internal/datatype"

// Hook is a statement run by a loader around a bulk load. A failing
// optional hook is logged and the load goes on. Session hooks run inside a
// transaction and are never optional.
type Hook struct {
	SQL      string
	Optional bool
}

// Dialect abstracts the SQL text of one database engine.
type Dialect interface {
	Name() string

	// Metadata queries (schema introspection). Each returns the statement
	// and its arguments. Result columns:
	//   objects:      catalog, schema, name, kind, remarks
	//   columns:      relation, column, type name, precision, scale, nullable, position, extra, remarks
	//   primary keys: relation, constraint, column, sequence
	//   unique keys:  relation, constraint, column, sequence
	//   foreign keys: relation, constraint, column, sequence, foreign relation, foreign column
	ObjectsQuery(schema string) (string, []any)
	ColumnsQuery(schema string) (string, []any)
	PrimaryKeysQuery(schema string) (string, []any)
	UniqueKeysQuery(schema string) (string, []any)
	ForeignKeysQuery(schema string) (string, []any)

	// NativeTypes is the type table loaded into the connection registry.
	NativeTypes() []datatype.Info
	// NameOnlyIdentity reports whether driver codes are meaningless.
	NameOnlyIdentity() bool

	// Load hooks. BeforeLoad and AfterLoad run once on a connection of
	// their own; BeforeTable and AfterTable run inside every writer session.
	BeforeLoad(tables []string) []Hook
	AfterLoad(tables []string) []Hook
	BeforeTable(table string, hasIdentity bool) []Hook
	AfterTable(table string, hasIdentity bool) []Hook

	// Statement generation. Table arguments are already quoted.
	InsertQuery(table string, cols []string) string
	CreateTableAs(table, query string) string
	ConflictClause(keys, set []string) (string, bool)
	// UpsertSelect rewrites the select of an insert followed by the
	// conflict clause.
	UpsertSelect(query string) string
	// UpdateTarget is the aliased target of an update assigning a row value
	// from a correlated select. ok is false when the dialect has no such
	// update.
	UpdateTarget(table, alias string) (string, bool)
	// InlineConstraints reports whether keys are declared inside the
	// create table statement instead of added by alter table.
	InlineConstraints() bool
	TruncateStatements(tables []string) []string
	RenameStatement(from, to string) string
	DropNotNullStatement(table, column, typeClause string) (string, bool)
	Placeholder(index int) string

	// Helpers
	QuoteIdentifier(name string) string
	QualifiedName(schema, name string) string
	DefaultSchema(input string) string
	LimitQuery(query string, limit int) string
}
