package dialect

import (
	"fmt"
	"strings"

	dt "db-relay/internal/datatype"
)

type OracleDialect struct{}

func (d *OracleDialect) Name() string { return "oracle" }

// An empty bind is NULL in Oracle, so an empty schema falls back to the
// connected user.
const oracleOwner = "NVL(UPPER(:1), USER)"

func (d *OracleDialect) ObjectsQuery(schema string) (string, []any) {
	return `SELECT SYS_CONTEXT('USERENV', 'DB_NAME'), o.OWNER, o.OBJECT_NAME, o.OBJECT_TYPE, c.COMMENTS
FROM ALL_OBJECTS o
LEFT JOIN ALL_TAB_COMMENTS c ON c.OWNER = o.OWNER AND c.TABLE_NAME = o.OBJECT_NAME
WHERE o.OWNER = ` + oracleOwner + ` AND o.OBJECT_TYPE IN ('TABLE', 'VIEW')
ORDER BY o.OBJECT_NAME`, []any{schema}
}

func (d *OracleDialect) ColumnsQuery(schema string) (string, []any) {
	// TIMESTAMP columns report DATA_TYPE as TIMESTAMP(6) and keep the
	// fractional digits in DATA_SCALE.
	return `SELECT
    t.TABLE_NAME,
    t.COLUMN_NAME,
    REGEXP_REPLACE(t.DATA_TYPE, '\(\d+\)', ''),
    CASE
        WHEN t.DATA_TYPE IN ('NUMBER', 'FLOAT') THEN t.DATA_PRECISION
        WHEN t.DATA_TYPE LIKE 'TIMESTAMP%' THEN t.DATA_SCALE
        WHEN t.CHAR_LENGTH > 0 THEN t.CHAR_LENGTH
        WHEN t.DATA_TYPE = 'RAW' THEN t.DATA_LENGTH
        ELSE NULL
    END,
    CASE WHEN t.DATA_TYPE = 'NUMBER' THEN NVL(t.DATA_SCALE, 0) ELSE 0 END,
    t.NULLABLE,
    t.COLUMN_ID,
    CASE WHEN t.IDENTITY_COLUMN = 'YES' THEN 'auto_increment' ELSE '' END,
    c.COMMENTS
FROM ALL_TAB_COLUMNS t
LEFT JOIN ALL_COL_COMMENTS c
    ON t.OWNER = c.OWNER AND t.TABLE_NAME = c.TABLE_NAME AND t.COLUMN_NAME = c.COLUMN_NAME
WHERE t.OWNER = ` + oracleOwner + `
ORDER BY t.TABLE_NAME, t.COLUMN_ID`, []any{schema}
}

func (d *OracleDialect) PrimaryKeysQuery(schema string) (string, []any) {
	return d.keysQuery("P"), []any{schema}
}

func (d *OracleDialect) UniqueKeysQuery(schema string) (string, []any) {
	return d.keysQuery("U"), []any{schema}
}

func (d *OracleDialect) keysQuery(constraintType string) string {
	return `SELECT cc.TABLE_NAME, cc.CONSTRAINT_NAME, cc.COLUMN_NAME, cc.POSITION
FROM ALL_CONS_COLUMNS cc
JOIN ALL_CONSTRAINTS uc ON cc.OWNER = uc.OWNER AND cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
WHERE uc.CONSTRAINT_TYPE = '` + constraintType + `' AND uc.OWNER = ` + oracleOwner + `
ORDER BY cc.TABLE_NAME, cc.CONSTRAINT_NAME, cc.POSITION`
}

func (d *OracleDialect) ForeignKeysQuery(schema string) (string, []any) {
	return `SELECT
    c.TABLE_NAME,
    c.CONSTRAINT_NAME,
    cc.COLUMN_NAME,
    cc.POSITION,
    r.TABLE_NAME,
    rcc.COLUMN_NAME
FROM ALL_CONSTRAINTS c
JOIN ALL_CONS_COLUMNS cc
    ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME
    AND c.OWNER = cc.OWNER
JOIN ALL_CONSTRAINTS r
    ON c.R_CONSTRAINT_NAME = r.CONSTRAINT_NAME
    AND c.R_OWNER = r.OWNER
JOIN ALL_CONS_COLUMNS rcc
    ON r.CONSTRAINT_NAME = rcc.CONSTRAINT_NAME
    AND r.OWNER = rcc.OWNER
    AND cc.POSITION = rcc.POSITION
WHERE c.CONSTRAINT_TYPE = 'R' AND c.OWNER = ` + oracleOwner + `
ORDER BY c.TABLE_NAME, c.CONSTRAINT_NAME, cc.POSITION`, []any{schema}
}

func (d *OracleDialect) NativeTypes() []dt.Info {
	return []dt.Info{
		{Name: "number", Code: dt.CodeNumeric, MaxPrecision: 38, MinScale: -84, MaxScale: 127, Priority: dt.PriorityTop},
		{Name: "integer", Code: dt.CodeInteger, Parent: "number", Category: "integer"},
		{Name: "float", Code: dt.CodeFloat, MaxPrecision: 126},
		{Name: "binary_float", Code: dt.CodeReal, Category: "real"},
		{Name: "binary_double", Code: dt.CodeDouble, Category: "double precision"},
		{Name: "char", Code: dt.CodeChar, MaxPrecision: 2000},
		{Name: "varchar2", Code: dt.CodeVarchar, MaxPrecision: 4000, Priority: dt.PriorityTop},
		{Name: "varchar", Code: dt.CodeVarchar, Parent: "varchar2"},
		{Name: "nchar", Code: dt.CodeNChar, MaxPrecision: 1000},
		{Name: "nvarchar2", Code: dt.CodeNVarchar, MaxPrecision: 2000},
		{Name: "clob", Code: dt.CodeClob},
		{Name: "nclob", Code: dt.CodeNClob},
		{Name: "blob", Code: dt.CodeBlob},
		{Name: "raw", Code: dt.CodeVarbinary, MaxPrecision: 2000, Category: "varbinary"},
		{Name: "long raw", Code: dt.CodeLongVarbinary},
		{Name: "date", Code: dt.CodeTimestamp, Category: "timestamp"},
		{Name: "timestamp", Code: dt.CodeTimestamp, MaxPrecision: 9, Priority: dt.PriorityTop},
		{Name: "timestamp with time zone", Code: dt.CodeTimestampTZ, MaxPrecision: 9},
		{Name: "xmltype", Code: dt.CodeXML, Category: "xml"},
		{Name: "rowid", Code: dt.CodeRowID},
		{Name: "boolean", Code: dt.CodeBoolean},
	}
}

func (d *OracleDialect) NameOnlyIdentity() bool { return false }

// BeforeLoad disables the enabled foreign keys of the loaded tables. DDL
// commits implicitly in Oracle.
func (d *OracleDialect) BeforeLoad(tables []string) []Hook {
	return []Hook{{SQL: constraintLoop("ENABLED", "DISABLE", tables)}}
}

// AfterLoad fails when loaded rows break a key; the keys stay disabled.
func (d *OracleDialect) AfterLoad(tables []string) []Hook {
	return []Hook{{SQL: constraintLoop("DISABLED", "ENABLE", tables), Optional: true}}
}

// constraintLoop switches the foreign keys of the given tables, or of every
// table of the user when tables is empty.
func constraintLoop(status, action string, tables []string) string {
	filter := ""
	if len(tables) > 0 {
		names := make([]string, len(tables))
		for i, t := range tables {
			names[i] = "'" + strings.ReplaceAll(unquoteOracle(t), "'", "''") + "'"
		}
		filter = " AND TABLE_NAME IN (" + strings.Join(names, ", ") + ")"
	}
	return fmt.Sprintf(`BEGIN
  FOR c IN (SELECT TABLE_NAME, CONSTRAINT_NAME FROM USER_CONSTRAINTS WHERE CONSTRAINT_TYPE = 'R' AND STATUS = '%s'%s) LOOP
    EXECUTE IMMEDIATE 'ALTER TABLE "' || c.TABLE_NAME || '" %s CONSTRAINT "' || c.CONSTRAINT_NAME || '"';
  END LOOP;
END;`, status, filter, action)
}

// unquoteOracle reduces a rendered table name to its dictionary spelling.
func unquoteOracle(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) && len(name) >= 2 {
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	}
	return strings.ToUpper(name)
}

// BeforeTable aligns the session date formats with values bound as text.
func (d *OracleDialect) BeforeTable(table string, hasIdentity bool) []Hook {
	return []Hook{
		{SQL: "ALTER SESSION SET NLS_DATE_FORMAT = 'YYYY-MM-DD HH24:MI:SS'"},
		{SQL: "ALTER SESSION SET NLS_TIMESTAMP_FORMAT = 'YYYY-MM-DD HH24:MI:SS.FF'"},
	}
}

func (d *OracleDialect) AfterTable(table string, hasIdentity bool) []Hook { return nil }

func (d *OracleDialect) InsertQuery(table string, cols []string) string {
	return insertQuery("INSERT INTO", table, cols, d.Placeholder)
}

func (d *OracleDialect) CreateTableAs(table, query string) string {
	return fmt.Sprintf("create table %s as %s", table, query)
}

// ConflictClause is unsupported: Oracle only merges through MERGE.
func (d *OracleDialect) ConflictClause(keys, set []string) (string, bool) {
	return "", false
}

func (d *OracleDialect) UpsertSelect(query string) string { return query }

// UpdateTarget takes the alias without AS, which Oracle rejects on tables.
func (d *OracleDialect) UpdateTarget(table, alias string) (string, bool) {
	return table + " " + alias, true
}

func (d *OracleDialect) InlineConstraints() bool { return false }

func (d *OracleDialect) TruncateStatements(tables []string) []string {
	return truncateEach(tables)
}

func (d *OracleDialect) RenameStatement(from, to string) string {
	if i := strings.LastIndex(to, "."); i >= 0 {
		to = to[i+1:]
	}
	return fmt.Sprintf("alter table %s rename to %s", from, to)
}

func (d *OracleDialect) DropNotNullStatement(table, column, typeClause string) (string, bool) {
	return fmt.Sprintf("alter table %s modify (%s null)", table, column), true
}

func (d *OracleDialect) Placeholder(index int) string {
	return fmt.Sprintf(":%d", index+1)
}

func (d *OracleDialect) QuoteIdentifier(name string) string {
	return quoteWith(name, `"`, `"`)
}

func (d *OracleDialect) QualifiedName(schema, name string) string {
	return qualify(d, schema, name)
}

func (d *OracleDialect) DefaultSchema(input string) string {
	return strings.ToUpper(input)
}

func (d *OracleDialect) LimitQuery(query string, limit int) string {
	return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", query, limit)
}
