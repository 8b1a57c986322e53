package dialect

import (
	"fmt"
	"strings"

	dt "db-relay/internal/datatype"
)

// SqliteDialect reads metadata through the pragma table-valued functions.
// sqlite has one schema per attached database; the schema argument is
// ignored and "main" is read.
type SqliteDialect struct{}

func (d *SqliteDialect) Name() string { return "sqlite3" }

func (d *SqliteDialect) ObjectsQuery(schema string) (string, []any) {
	return `SELECT 'main', 'main', name, UPPER(type), NULL
FROM sqlite_master
WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
ORDER BY name`, nil
}

// ColumnsQuery splits the declared type: "varchar(40)" gives the name
// varchar and the precision 40, "decimal(10, 2)" also gives scale 2.
func (d *SqliteDialect) ColumnsQuery(schema string) (string, []any) {
	return `SELECT
    m.name,
    p.name,
    LOWER(TRIM(CASE WHEN INSTR(p.type, '(') > 0 THEN SUBSTR(p.type, 1, INSTR(p.type, '(') - 1) ELSE p.type END)),
    CASE WHEN INSTR(p.type, '(') > 0
        THEN CAST(SUBSTR(p.type, INSTR(p.type, '(') + 1) AS INTEGER) END,
    CASE WHEN INSTR(p.type, ',') > 0
        THEN CAST(TRIM(SUBSTR(p.type, INSTR(p.type, ',') + 1)) AS INTEGER) ELSE 0 END,
    CASE WHEN p."notnull" = 1 OR p.pk > 0 THEN 'NO' ELSE 'YES' END,
    p.cid + 1,
    CASE WHEN p.pk = 1 AND LOWER(p.type) = 'integer'
        AND (SELECT COUNT(*) FROM pragma_table_info(m.name) q WHERE q.pk > 0) = 1
        THEN 'auto_increment' ELSE '' END,
    NULL
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'
ORDER BY m.name, p.cid`, nil
}

func (d *SqliteDialect) PrimaryKeysQuery(schema string) (string, []any) {
	return `SELECT m.name, 'pk_' || m.name, p.name, p.pk
FROM sqlite_master m
JOIN pragma_table_info(m.name) p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND p.pk > 0
ORDER BY m.name, p.pk`, nil
}

func (d *SqliteDialect) UniqueKeysQuery(schema string) (string, []any) {
	return `SELECT m.name, l.name, i.name, i.seqno + 1
FROM sqlite_master m
JOIN pragma_index_list(m.name) l
JOIN pragma_index_info(l.name) i
WHERE m.type = 'table' AND l."unique" = 1 AND l.origin = 'u'
ORDER BY m.name, l.name, i.seqno`, nil
}

// ForeignKeysQuery names each key after its id; sqlite keeps no constraint
// names for foreign keys.
func (d *SqliteDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `SELECT m.name, 'fk_' || m.name || '_' || f.id, f."from", f.seq + 1, f."table", f."to"
FROM sqlite_master m
JOIN pragma_foreign_key_list(m.name) f
WHERE m.type = 'table'
ORDER BY m.name, f.id, f.seq`, nil
}

func (d *SqliteDialect) NativeTypes() []dt.Info {
	return []dt.Info{
		{Name: "integer", Code: dt.CodeInteger, Priority: dt.PriorityTop},
		{Name: "int", Code: dt.CodeInteger, Parent: "integer"},
		{Name: "bigint", Code: dt.CodeBigInt},
		{Name: "smallint", Code: dt.CodeSmallInt},
		{Name: "tinyint", Code: dt.CodeTinyInt},
		{Name: "real", Code: dt.CodeReal},
		{Name: "double", Code: dt.CodeDouble, Priority: dt.PriorityTop},
		{Name: "float", Code: dt.CodeFloat},
		{Name: "numeric", Code: dt.CodeNumeric, MaxPrecision: 38, MaxScale: 38},
		{Name: "decimal", Code: dt.CodeDecimal, MaxPrecision: 38, MaxScale: 38},
		{Name: "boolean", Code: dt.CodeBoolean},
		{Name: "varchar", Code: dt.CodeVarchar, MaxPrecision: 1000000000, Priority: dt.PriorityTop},
		{Name: "char", Code: dt.CodeChar, MaxPrecision: 1000000000},
		{Name: "text", Code: dt.CodeLongVarchar, Category: "long varchar"},
		{Name: "clob", Code: dt.CodeClob},
		{Name: "blob", Code: dt.CodeBlob},
		{Name: "date", Code: dt.CodeDate},
		{Name: "datetime", Code: dt.CodeTimestamp, Priority: dt.PriorityTop},
		{Name: "timestamp", Code: dt.CodeTimestamp},
		{Name: "time", Code: dt.CodeTime},
	}
}

// NameOnlyIdentity is true: sqlite declares types by free text and the
// driver reports no codes.
func (d *SqliteDialect) NameOnlyIdentity() bool { return true }

func (d *SqliteDialect) BeforeLoad(tables []string) []Hook { return nil }

func (d *SqliteDialect) AfterLoad(tables []string) []Hook { return nil }

// defer_foreign_keys resets at the end of every transaction.
func (d *SqliteDialect) BeforeTable(table string, hasIdentity bool) []Hook {
	return []Hook{{SQL: "PRAGMA defer_foreign_keys = ON"}}
}

func (d *SqliteDialect) AfterTable(table string, hasIdentity bool) []Hook { return nil }

func (d *SqliteDialect) InsertQuery(table string, cols []string) string {
	return insertQuery("INSERT INTO", table, cols, d.Placeholder)
}

func (d *SqliteDialect) CreateTableAs(table, query string) string {
	return fmt.Sprintf("create table %s as %s", table, query)
}

func (d *SqliteDialect) ConflictClause(keys, set []string) (string, bool) {
	clause := fmt.Sprintf(" on conflict ( %s )", strings.Join(keys, ", "))
	if len(set) == 0 {
		return clause + " do nothing", true
	}
	return clause + " do update set " + setExcluded(set, "excluded.", ""), true
}

// UpsertSelect ends the select with a where clause: without one sqlite
// reads the ON of the conflict clause as a join constraint.
func (d *SqliteDialect) UpsertSelect(query string) string {
	return "select * from ( " + query + " ) where true"
}

func (d *SqliteDialect) UpdateTarget(table, alias string) (string, bool) {
	return table + " as " + alias, true
}

// InlineConstraints is true: alter table cannot add a key in sqlite.
func (d *SqliteDialect) InlineConstraints() bool { return true }

// TruncateStatements deletes: sqlite has no TRUNCATE.
func (d *SqliteDialect) TruncateStatements(tables []string) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = "delete from " + t
	}
	return out
}

func (d *SqliteDialect) RenameStatement(from, to string) string {
	return fmt.Sprintf("alter table %s rename to %s", from, to)
}

// DropNotNullStatement is unsupported: sqlite cannot alter a column.
func (d *SqliteDialect) DropNotNullStatement(table, column, typeClause string) (string, bool) {
	return "", false
}

func (d *SqliteDialect) Placeholder(index int) string {
	return "?"
}

func (d *SqliteDialect) QuoteIdentifier(name string) string {
	return quoteWith(name, `"`, `"`)
}

func (d *SqliteDialect) QualifiedName(schema, name string) string {
	if schema == "main" {
		schema = ""
	}
	return qualify(d, schema, name)
}

func (d *SqliteDialect) DefaultSchema(input string) string {
	if input == "" {
		return "main"
	}
	return input
}

func (d *SqliteDialect) LimitQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
