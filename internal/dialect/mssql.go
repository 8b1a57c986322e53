package dialect

import (
	"fmt"
	"strings"

	dt "db-relay/internal/datatype"
)

// MSSQLDialect targets SQL Server. go-mssqldb binds @p1, @p2, ... in
// prepared statements as well as in plain Exec calls.
type MSSQLDialect struct{}

func (d *MSSQLDialect) Name() string { return "sqlserver" }

func (d *MSSQLDialect) ObjectsQuery(schema string) (string, []any) {
	return `SELECT t.TABLE_CATALOG, t.TABLE_SCHEMA, t.TABLE_NAME,
    CASE t.TABLE_TYPE WHEN 'VIEW' THEN 'VIEW' ELSE 'TABLE' END,
    CAST(ep.value AS NVARCHAR(MAX))
FROM INFORMATION_SCHEMA.TABLES t
LEFT JOIN sys.extended_properties ep
    ON ep.major_id = OBJECT_ID(t.TABLE_SCHEMA + '.' + t.TABLE_NAME)
    AND ep.minor_id = 0
    AND ep.name = 'MS_Description'
WHERE t.TABLE_SCHEMA = @p1
ORDER BY t.TABLE_NAME`, []any{d.DefaultSchema(schema)}
}

func (d *MSSQLDialect) ColumnsQuery(schema string) (string, []any) {
	// CHARACTER_MAXIMUM_LENGTH is -1 for the (max) types.
	return `SELECT
    c.TABLE_NAME,
    c.COLUMN_NAME,
    c.DATA_TYPE,
    COALESCE(NULLIF(c.CHARACTER_MAXIMUM_LENGTH, -1), c.NUMERIC_PRECISION, c.DATETIME_PRECISION),
    COALESCE(c.NUMERIC_SCALE, 0),
    c.IS_NULLABLE,
    c.ORDINAL_POSITION,
    CASE
        WHEN idxc.column_id IS NOT NULL THEN 'identity'
        WHEN COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') = 1 THEN 'identity'
        ELSE COALESCE(c.COLUMN_DEFAULT, '')
    END,
    CAST(ep.value AS NVARCHAR(MAX))
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN sys.identity_columns idxc
    ON idxc.object_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
    AND idxc.name = c.COLUMN_NAME
LEFT JOIN sys.extended_properties ep
    ON ep.major_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
    AND ep.minor_id = c.ORDINAL_POSITION
    AND ep.name = 'MS_Description'
WHERE c.TABLE_SCHEMA = @p1
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`, []any{d.DefaultSchema(schema)}
}

func (d *MSSQLDialect) PrimaryKeysQuery(schema string) (string, []any) {
	return d.keysQuery("PRIMARY KEY"), []any{d.DefaultSchema(schema)}
}

// UniqueKeysQuery covers UNIQUE constraints only; standalone unique indexes
// are not keys of the model.
func (d *MSSQLDialect) UniqueKeysQuery(schema string) (string, []any) {
	return d.keysQuery("UNIQUE"), []any{d.DefaultSchema(schema)}
}

func (d *MSSQLDialect) keysQuery(constraintType string) string {
	return `SELECT kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.COLUMN_NAME, kcu.ORDINAL_POSITION
FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
    ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
    AND tc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
WHERE tc.CONSTRAINT_TYPE = '` + constraintType + `' AND tc.TABLE_SCHEMA = @p1
ORDER BY kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`
}

func (d *MSSQLDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `SELECT KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.COLUMN_NAME, KCU1.ORDINAL_POSITION, KCU2.TABLE_NAME, KCU2.COLUMN_NAME
FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS RC
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU1
    ON RC.CONSTRAINT_SCHEMA = KCU1.CONSTRAINT_SCHEMA AND RC.CONSTRAINT_NAME = KCU1.CONSTRAINT_NAME
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU2
    ON RC.UNIQUE_CONSTRAINT_SCHEMA = KCU2.CONSTRAINT_SCHEMA
    AND RC.UNIQUE_CONSTRAINT_NAME = KCU2.CONSTRAINT_NAME
    AND KCU1.ORDINAL_POSITION = KCU2.ORDINAL_POSITION
WHERE KCU1.TABLE_SCHEMA = @p1
ORDER BY KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.ORDINAL_POSITION`, []any{d.DefaultSchema(schema)}
}

func (d *MSSQLDialect) NativeTypes() []dt.Info {
	return []dt.Info{
		{Name: "bit", Code: dt.CodeBit, Category: "boolean"},
		{Name: "tinyint", Code: dt.CodeTinyInt, MaxPrecision: 3, Unsigned: true},
		{Name: "smallint", Code: dt.CodeSmallInt},
		{Name: "int", Code: dt.CodeInteger, Priority: dt.PriorityTop},
		{Name: "bigint", Code: dt.CodeBigInt},
		{Name: "decimal", Code: dt.CodeDecimal, MaxPrecision: 38, MaxScale: 38},
		{Name: "numeric", Code: dt.CodeNumeric, MaxPrecision: 38, MaxScale: 38},
		{Name: "money", Code: dt.CodeDecimal, MaxPrecision: 19, MinScale: 4, MaxScale: 4, FixedPrecisionScale: true},
		{Name: "float", Code: dt.CodeDouble, MaxPrecision: 53, Category: "double precision"},
		{Name: "real", Code: dt.CodeReal, MaxPrecision: 24},
		{Name: "char", Code: dt.CodeChar, MaxPrecision: 8000},
		{Name: "varchar", Code: dt.CodeVarchar, MaxPrecision: 8000, Priority: dt.PriorityTop},
		{Name: "nchar", Code: dt.CodeNChar, MaxPrecision: 4000},
		{Name: "nvarchar", Code: dt.CodeNVarchar, MaxPrecision: 4000},
		{Name: "text", Code: dt.CodeLongVarchar},
		{Name: "ntext", Code: dt.CodeLongNVarchar},
		{Name: "binary", Code: dt.CodeBinary, MaxPrecision: 8000},
		{Name: "varbinary", Code: dt.CodeVarbinary, MaxPrecision: 8000},
		{Name: "image", Code: dt.CodeLongVarbinary},
		{Name: "date", Code: dt.CodeDate},
		{Name: "time", Code: dt.CodeTime, MaxPrecision: 7},
		{Name: "datetime2", Code: dt.CodeTimestamp, MaxPrecision: 7, Priority: dt.PriorityTop},
		{Name: "datetime", Code: dt.CodeTimestamp, MaxPrecision: 3},
		{Name: "smalldatetime", Code: dt.CodeTimestamp, Parent: "datetime"},
		{Name: "datetimeoffset", Code: dt.CodeTimestampTZ, MaxPrecision: 7},
		{Name: "xml", Code: dt.CodeXML},
		{Name: "uniqueidentifier", Code: dt.CodeOther, Category: "other"},
	}
}

func (d *MSSQLDialect) NameOnlyIdentity() bool { return false }

// BeforeLoad disables constraint checking on every loaded table so that
// circular references (store <-> staff) load in any order.
func (d *MSSQLDialect) BeforeLoad(tables []string) []Hook {
	hooks := make([]Hook, len(tables))
	for i, t := range tables {
		hooks[i] = Hook{SQL: fmt.Sprintf("ALTER TABLE %s NOCHECK CONSTRAINT all", t)}
	}
	return hooks
}

// AfterLoad re-enables and validates the constraints disabled by BeforeLoad.
func (d *MSSQLDialect) AfterLoad(tables []string) []Hook {
	hooks := make([]Hook, len(tables))
	for i, t := range tables {
		hooks[i] = Hook{SQL: fmt.Sprintf("ALTER TABLE %s WITH CHECK CHECK CONSTRAINT all", t), Optional: true}
	}
	return hooks
}

func (d *MSSQLDialect) BeforeTable(table string, hasIdentity bool) []Hook {
	if !hasIdentity {
		return nil
	}
	return []Hook{{SQL: fmt.Sprintf("SET IDENTITY_INSERT %s ON", table)}}
}

func (d *MSSQLDialect) AfterTable(table string, hasIdentity bool) []Hook {
	if !hasIdentity {
		return nil
	}
	return []Hook{{SQL: fmt.Sprintf("SET IDENTITY_INSERT %s OFF", table)}}
}

func (d *MSSQLDialect) InsertQuery(table string, cols []string) string {
	return insertQuery("INSERT INTO", table, cols, d.Placeholder)
}

func (d *MSSQLDialect) CreateTableAs(table, query string) string {
	return fmt.Sprintf("select * into %s from ( %s ) src", table, query)
}

// ConflictClause is unsupported: SQL Server only merges through MERGE.
func (d *MSSQLDialect) ConflictClause(keys, set []string) (string, bool) {
	return "", false
}

func (d *MSSQLDialect) UpsertSelect(query string) string { return query }

// UpdateTarget is unsupported: SQL Server has no row value assignment.
func (d *MSSQLDialect) UpdateTarget(table, alias string) (string, bool) {
	return "", false
}

func (d *MSSQLDialect) InlineConstraints() bool { return false }

func (d *MSSQLDialect) TruncateStatements(tables []string) []string {
	return truncateEach(tables)
}

// RenameStatement calls sp_rename, which takes the new name unqualified
// and unquoted.
func (d *MSSQLDialect) RenameStatement(from, to string) string {
	if i := strings.LastIndex(to, "."); i >= 0 {
		to = to[i+1:]
	}
	to = strings.ReplaceAll(strings.TrimSuffix(strings.TrimPrefix(to, "["), "]"), "]]", "]")
	return fmt.Sprintf("exec sp_rename '%s', '%s'", strings.ReplaceAll(from, "'", "''"), strings.ReplaceAll(to, "'", "''"))
}

func (d *MSSQLDialect) DropNotNullStatement(table, column, typeClause string) (string, bool) {
	return fmt.Sprintf("alter table %s alter column %s %s null", table, column, typeClause), true
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}

func (d *MSSQLDialect) QuoteIdentifier(name string) string {
	return quoteWith(name, "[", "]")
}

func (d *MSSQLDialect) QualifiedName(schema, name string) string {
	return qualify(d, schema, name)
}

func (d *MSSQLDialect) DefaultSchema(input string) string {
	if input == "" {
		return "dbo"
	}
	return input
}

func (d *MSSQLDialect) LimitQuery(query string, limit int) string {
	// T-SQL has no LIMIT; TOP goes after the first SELECT.
	trimmed := strings.TrimSpace(query)
	if len(trimmed) >= 6 && strings.EqualFold(trimmed[:6], "SELECT") {
		return fmt.Sprintf("SELECT TOP %d%s", limit, trimmed[6:])
	}
	return query
}
