package dialect

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	dt "db-relay/internal/datatype"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) ObjectsQuery(schema string) (string, []any) {
	return `SELECT current_database(), n.nspname, c.relname,
    CASE c.relkind WHEN 'r' THEN 'TABLE' WHEN 'p' THEN 'TABLE' WHEN 'v' THEN 'VIEW' WHEN 'm' THEN 'VIEW' ELSE 'UNKNOWN' END,
    obj_description(c.oid, 'pg_class')
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relkind IN ('r', 'p', 'v', 'm')
ORDER BY c.relname`, []any{d.DefaultSchema(schema)}
}

func (d *PostgresDialect) ColumnsQuery(schema string) (string, []any) {
	// udt_name is the internal spelling (int4, bpchar, ...); the type table
	// carries those as aliases.
	return `SELECT
    c.table_name,
    c.column_name,
    c.udt_name,
    COALESCE(c.character_maximum_length, c.numeric_precision, c.datetime_precision),
    COALESCE(c.numeric_scale, 0),
    c.is_nullable,
    c.ordinal_position,
    COALESCE(c.column_default, '') || CASE WHEN c.is_identity = 'YES' THEN ' identity' ELSE '' END,
    col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int)
FROM information_schema.columns c
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`, []any{d.DefaultSchema(schema)}
}

func (d *PostgresDialect) PrimaryKeysQuery(schema string) (string, []any) {
	return d.keysQuery("PRIMARY KEY"), []any{d.DefaultSchema(schema)}
}

func (d *PostgresDialect) UniqueKeysQuery(schema string) (string, []any) {
	return d.keysQuery("UNIQUE"), []any{d.DefaultSchema(schema)}
}

func (d *PostgresDialect) keysQuery(constraintType string) string {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name, kcu.ordinal_position
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
    ON tc.constraint_name = kcu.constraint_name
    AND tc.constraint_schema = kcu.constraint_schema
    AND tc.table_name = kcu.table_name
WHERE tc.table_schema = $1 AND tc.constraint_type = '` + constraintType + `'
ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`
}

func (d *PostgresDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name, kcu.ordinal_position, ref.table_name, ref.column_name
FROM information_schema.referential_constraints rc
JOIN information_schema.key_column_usage kcu
    ON kcu.constraint_schema = rc.constraint_schema AND kcu.constraint_name = rc.constraint_name
JOIN information_schema.key_column_usage ref
    ON ref.constraint_schema = rc.unique_constraint_schema
    AND ref.constraint_name = rc.unique_constraint_name
    AND ref.ordinal_position = kcu.position_in_unique_constraint
WHERE kcu.table_schema = $1
ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`, []any{d.DefaultSchema(schema)}
}

func (d *PostgresDialect) NativeTypes() []dt.Info {
	return []dt.Info{
		{Name: "smallint", Code: dt.CodeSmallInt},
		{Name: "int2", Code: dt.CodeSmallInt, Parent: "smallint"},
		{Name: "integer", Code: dt.CodeInteger, Priority: dt.PriorityTop},
		{Name: "int4", Code: dt.CodeInteger, Parent: "integer"},
		{Name: "int", Code: dt.CodeInteger, Parent: "integer"},
		{Name: "bigint", Code: dt.CodeBigInt},
		{Name: "int8", Code: dt.CodeBigInt, Parent: "bigint"},
		{Name: "numeric", Code: dt.CodeNumeric, MaxPrecision: 1000, MaxScale: 1000},
		{Name: "decimal", Code: dt.CodeDecimal, Parent: "numeric", Category: "decimal"},
		{Name: "real", Code: dt.CodeReal, MaxPrecision: 24},
		{Name: "float4", Code: dt.CodeReal, Parent: "real"},
		{Name: "double precision", Code: dt.CodeDouble, MaxPrecision: 53},
		{Name: "float8", Code: dt.CodeDouble, Parent: "double precision"},
		{Name: "boolean", Code: dt.CodeBoolean},
		{Name: "bool", Code: dt.CodeBit, Parent: "boolean"},
		{Name: "char", Code: dt.CodeChar, MaxPrecision: 10485760, CaseSensitive: true},
		{Name: "bpchar", Code: dt.CodeChar, Parent: "char"},
		{Name: "character", Code: dt.CodeChar, Parent: "char"},
		{Name: "varchar", Code: dt.CodeVarchar, MaxPrecision: 10485760, CaseSensitive: true, Priority: dt.PriorityTop},
		{Name: "character varying", Code: dt.CodeVarchar, Parent: "varchar"},
		{Name: "text", Code: dt.CodeLongVarchar, CaseSensitive: true, Category: "long character varying"},
		{Name: "bytea", Code: dt.CodeVarbinary, Category: "varbinary"},
		{Name: "date", Code: dt.CodeDate},
		{Name: "time", Code: dt.CodeTime, MaxPrecision: 6},
		{Name: "timetz", Code: dt.CodeTimeTZ, MaxPrecision: 6},
		{Name: "timestamp", Code: dt.CodeTimestamp, MaxPrecision: 6},
		{Name: "timestamptz", Code: dt.CodeTimestampTZ, MaxPrecision: 6},
		{Name: "json", Code: dt.CodeJSON},
		{Name: "jsonb", Code: dt.CodeJSONB},
		{Name: "xml", Code: dt.CodeXML},
		{Name: "uuid", Code: dt.CodeOther, Category: "other"},
	}
}

func (d *PostgresDialect) NameOnlyIdentity() bool { return false }

func (d *PostgresDialect) BeforeLoad(tables []string) []Hook { return nil }

func (d *PostgresDialect) AfterLoad(tables []string) []Hook { return nil }

func (d *PostgresDialect) BeforeTable(table string, hasIdentity bool) []Hook {
	// Constraints declared DEFERRABLE are checked at commit.
	return []Hook{{SQL: "SET CONSTRAINTS ALL DEFERRED"}}
}

func (d *PostgresDialect) AfterTable(table string, hasIdentity bool) []Hook { return nil }

func (d *PostgresDialect) InsertQuery(table string, cols []string) string {
	return insertQuery("INSERT INTO", table, cols, d.Placeholder)
}

func (d *PostgresDialect) CreateTableAs(table, query string) string {
	return fmt.Sprintf("create table %s as %s", table, query)
}

func (d *PostgresDialect) ConflictClause(keys, set []string) (string, bool) {
	clause := fmt.Sprintf(" on conflict ( %s )", strings.Join(keys, ", "))
	if len(set) == 0 {
		return clause + " do nothing", true
	}
	return clause + " do update set " + setExcluded(set, "EXCLUDED.", ""), true
}

func (d *PostgresDialect) UpsertSelect(query string) string { return query }

func (d *PostgresDialect) UpdateTarget(table, alias string) (string, bool) {
	return table + " as " + alias, true
}

func (d *PostgresDialect) InlineConstraints() bool { return false }

func (d *PostgresDialect) TruncateStatements(tables []string) []string {
	return []string{"truncate table " + strings.Join(tables, ", ")}
}

func (d *PostgresDialect) RenameStatement(from, to string) string {
	return fmt.Sprintf("alter table %s rename to %s", from, to)
}

func (d *PostgresDialect) DropNotNullStatement(table, column, typeClause string) (string, bool) {
	return fmt.Sprintf("alter table %s alter column %s drop not null", table, column), true
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}

func (d *PostgresDialect) QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *PostgresDialect) QualifiedName(schema, name string) string {
	if schema == "" {
		return pgx.Identifier{name}.Sanitize()
	}
	return pgx.Identifier{schema, name}.Sanitize()
}

func (d *PostgresDialect) DefaultSchema(input string) string {
	if input == "" {
		return "public"
	}
	return input
}

func (d *PostgresDialect) LimitQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
