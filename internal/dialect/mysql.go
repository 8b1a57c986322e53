package dialect

import (
	"fmt"

	dt "db-relay/internal/datatype"
)

type MysqlDialect struct{}

func (d *MysqlDialect) Name() string { return "mysql" }

// mysql has no schemas below the database; an empty schema means the
// database of the connection.
const mysqlSchema = "COALESCE(NULLIF(?, ''), DATABASE())"

func (d *MysqlDialect) ObjectsQuery(schema string) (string, []any) {
	return `SELECT TABLE_CATALOG, TABLE_SCHEMA, TABLE_NAME,
    CASE TABLE_TYPE WHEN 'VIEW' THEN 'VIEW' ELSE 'TABLE' END,
    TABLE_COMMENT
FROM information_schema.TABLES
WHERE TABLE_SCHEMA = ` + mysqlSchema + `
ORDER BY TABLE_NAME`, []any{schema}
}

func (d *MysqlDialect) ColumnsQuery(schema string) (string, []any) {
	return `SELECT
    TABLE_NAME,
    COLUMN_NAME,
    DATA_TYPE,
    COALESCE(CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, DATETIME_PRECISION),
    COALESCE(NUMERIC_SCALE, 0),
    IS_NULLABLE,
    ORDINAL_POSITION,
    CONCAT(EXTRA, IF(COLUMN_TYPE LIKE '%unsigned%', ' unsigned', '')),
    COLUMN_COMMENT
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = ` + mysqlSchema + `
ORDER BY TABLE_NAME, ORDINAL_POSITION`, []any{schema}
}

func (d *MysqlDialect) PrimaryKeysQuery(schema string) (string, []any) {
	return d.keysQuery("PRIMARY KEY"), []any{schema}
}

func (d *MysqlDialect) UniqueKeysQuery(schema string) (string, []any) {
	return d.keysQuery("UNIQUE"), []any{schema}
}

func (d *MysqlDialect) keysQuery(constraintType string) string {
	return `SELECT k.TABLE_NAME, k.CONSTRAINT_NAME, k.COLUMN_NAME, k.ORDINAL_POSITION
FROM information_schema.TABLE_CONSTRAINTS t
JOIN information_schema.KEY_COLUMN_USAGE k
    ON t.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA
    AND t.CONSTRAINT_NAME = k.CONSTRAINT_NAME
    AND t.TABLE_NAME = k.TABLE_NAME
WHERE t.TABLE_SCHEMA = ` + mysqlSchema + ` AND t.CONSTRAINT_TYPE = '` + constraintType + `'
ORDER BY k.TABLE_NAME, k.CONSTRAINT_NAME, k.ORDINAL_POSITION`
}

func (d *MysqlDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME, ORDINAL_POSITION, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = ` + mysqlSchema + ` AND REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION`, []any{schema}
}

func (d *MysqlDialect) NativeTypes() []dt.Info {
	return []dt.Info{
		{Name: "tinyint", Code: dt.CodeTinyInt},
		{Name: "smallint", Code: dt.CodeSmallInt},
		{Name: "mediumint", Code: dt.CodeMediumInt},
		{Name: "int", Code: dt.CodeInteger, Priority: dt.PriorityTop},
		{Name: "integer", Code: dt.CodeInteger, Parent: "int"},
		{Name: "bigint", Code: dt.CodeBigInt},
		{Name: "decimal", Code: dt.CodeDecimal, MaxPrecision: 65, MaxScale: 30},
		{Name: "numeric", Code: dt.CodeNumeric, Parent: "decimal", Category: "numeric"},
		{Name: "float", Code: dt.CodeReal, MaxPrecision: 24, Category: "real"},
		{Name: "double", Code: dt.CodeDouble, MaxPrecision: 53},
		{Name: "bit", Code: dt.CodeBit, MaxPrecision: 64},
		{Name: "boolean", Code: dt.CodeBoolean},
		{Name: "char", Code: dt.CodeChar, MaxPrecision: 255},
		{Name: "varchar", Code: dt.CodeVarchar, MaxPrecision: 65535, Priority: dt.PriorityTop},
		{Name: "text", Code: dt.CodeLongVarchar, MaxPrecision: 65535},
		{Name: "longtext", Code: dt.CodeClob, Category: "clob"},
		{Name: "binary", Code: dt.CodeBinary, MaxPrecision: 255},
		{Name: "varbinary", Code: dt.CodeVarbinary, MaxPrecision: 65535},
		{Name: "blob", Code: dt.CodeLongVarbinary, MaxPrecision: 65535, Category: "long varbinary"},
		{Name: "longblob", Code: dt.CodeBlob},
		{Name: "date", Code: dt.CodeDate},
		{Name: "time", Code: dt.CodeTime},
		{Name: "datetime", Code: dt.CodeTimestamp, Priority: dt.PriorityTop},
		{Name: "timestamp", Code: dt.CodeTimestamp},
		{Name: "json", Code: dt.CodeJSON},
	}
}

func (d *MysqlDialect) NameOnlyIdentity() bool { return false }

func (d *MysqlDialect) BeforeLoad(tables []string) []Hook { return nil }

func (d *MysqlDialect) AfterLoad(tables []string) []Hook { return nil }

// FOREIGN_KEY_CHECKS is a session variable.
func (d *MysqlDialect) BeforeTable(table string, hasIdentity bool) []Hook {
	return []Hook{{SQL: "SET FOREIGN_KEY_CHECKS = 0"}}
}

func (d *MysqlDialect) AfterTable(table string, hasIdentity bool) []Hook {
	return []Hook{{SQL: "SET FOREIGN_KEY_CHECKS = 1"}}
}

func (d *MysqlDialect) InsertQuery(table string, cols []string) string {
	return insertQuery("INSERT INTO", table, cols, d.Placeholder)
}

func (d *MysqlDialect) CreateTableAs(table, query string) string {
	return fmt.Sprintf("create table %s as %s", table, query)
}

func (d *MysqlDialect) ConflictClause(keys, set []string) (string, bool) {
	if len(set) == 0 {
		if len(keys) == 0 {
			return "", false
		}
		// no-op assignment keeps the existing row
		return fmt.Sprintf(" on duplicate key update %s = %s", keys[0], keys[0]), true
	}
	return " on duplicate key update " + setExcluded(set, "values(", ")"), true
}

func (d *MysqlDialect) UpsertSelect(query string) string { return query }

// UpdateTarget is unsupported: MySQL cannot assign a row value from a
// subquery.
func (d *MysqlDialect) UpdateTarget(table, alias string) (string, bool) {
	return "", false
}

func (d *MysqlDialect) InlineConstraints() bool { return false }

func (d *MysqlDialect) TruncateStatements(tables []string) []string {
	return truncateEach(tables)
}

func (d *MysqlDialect) RenameStatement(from, to string) string {
	return fmt.Sprintf("rename table %s to %s", from, to)
}

func (d *MysqlDialect) DropNotNullStatement(table, column, typeClause string) (string, bool) {
	return fmt.Sprintf("alter table %s modify %s %s null", table, column, typeClause), true
}

func (d *MysqlDialect) Placeholder(index int) string {
	return "?"
}

func (d *MysqlDialect) QuoteIdentifier(name string) string {
	return quoteWith(name, "`", "`")
}

func (d *MysqlDialect) QualifiedName(schema, name string) string {
	return qualify(d, schema, name)
}

func (d *MysqlDialect) DefaultSchema(input string) string {
	return DefaultSchemaName(input)
}

func (d *MysqlDialect) LimitQuery(query string, limit int) string {
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
