package engine_test

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"db-relay/internal/datatype"
	"db-relay/internal/dialect"
	"db-relay/internal/engine"
	"db-relay/internal/errs"
	"db-relay/internal/logger"
	"db-relay/internal/schema"
)

// spyConn records statements instead of running them. Tables created
// through it start to exist.
type spyConn struct {
	dialect dialect.Dialect
	reg     *datatype.Registry
	quoting bool

	objects map[string]string
	rows    map[string]int64

	statements []string
	queries    []string
	failOn     string
}

var createdTable = regexp.MustCompile(`^create table "?([^"\s(]+)"?`)

func newSpy(t *testing.T, driverName string) *spyConn {
	t.Helper()
	d, err := dialect.GetDialect(driverName)
	if err != nil {
		t.Fatal(err)
	}
	reg := datatype.NewRegistry("spy", datatype.Options{})
	if err := reg.Load((&dialect.PostgresDialect{}).NativeTypes()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return &spyConn{
		dialect: d,
		reg:     reg,
		quoting: true,
		objects: make(map[string]string),
		rows:    make(map[string]int64),
	}
}

func (s *spyConn) Name() string { return "spy" }
func (s *spyConn) Dialect() dialect.Dialect { return s.dialect }
func (s *spyConn) Schema() string { return "" }
func (s *spyConn) Registry() *datatype.Registry { return s.reg }
func (s *spyConn) Quoting() bool { return s.quoting }
func (s *spyConn) Close() error { return nil }
func (s *spyConn) Types(context.Context) ([]datatype.Info, error) { return s.dialect.NativeTypes(), nil }

func (s *spyConn) Objects(ctx context.Context, schemaName string) ([]schema.ObjectRow, error) {
	var out []schema.ObjectRow
	for name, kind := range s.objects {
		out = append(out, schema.ObjectRow{Name: name, Kind: kind})
	}
	return out, nil
}

func (s *spyConn) Exec(ctx context.Context, stmt string) (int64, error) {
	if s.failOn != "" && strings.Contains(stmt, s.failOn) {
		return 0, errors.New("boom")
	}
	s.statements = append(s.statements, stmt)
	if m := createdTable.FindStringSubmatch(stmt); m != nil {
		s.objects[m[1]] = "TABLE"
	}
	return 1, nil
}

func (s *spyConn) QueryInt(ctx context.Context, stmt string) (int64, error) {
	s.queries = append(s.queries, stmt)
	for name, n := range s.rows {
		if strings.Contains(stmt, `"`+name+`"`) {
			return n, nil
		}
	}
	return 0, nil
}

func bufferLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.New(&logger.Config{Level: "debug", Format: "json", Output: buf})
}

func typeOf(t *testing.T, reg *datatype.Registry, name string) *datatype.Type {
	t.Helper()
	typ, ok := reg.ResolveByName(name)
	if !ok {
		t.Fatalf("type %s not found", name)
	}
	return typ
}

func addColumn(t *testing.T, rel *schema.Relation, name, typ string, opts ...schema.ColumnOption) {
	t.Helper()
	if _, err := rel.GetOrCreateColumn(name, typeOf(t, rel.Types(), typ), opts...); err != nil {
		t.Fatalf("GetOrCreateColumn(%s) failed: %v", name, err)
	}
}

func TestDataTypeClause(t *testing.T) {
	spy := newSpy(t, "postgres")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	rel := schema.NewRelation(schema.Path{Name: "t"}, schema.KindTable, spy.reg)

	tests := []struct {
		column   string
		typ      string
		opts     []schema.ColumnOption
		expected string
	}{
		{"a", "integer", []schema.ColumnOption{schema.WithPrecision(10)}, "integer"},
		{"b", "bigint", nil, "bigint"},
		{"c", "boolean", nil, "boolean"},
		{"d", "text", nil, "text"},
		{"e", "jsonb", nil, "jsonb"},
		{"f", "varchar", nil, "varchar(255)"},
		{"g", "varchar", []schema.ColumnOption{schema.WithPrecision(50)}, "varchar(50)"},
		{"h", "char", nil, "char"},
		{"i", "bpchar", []schema.ColumnOption{schema.WithPrecision(10)}, "char(10)"},
		{"j", "numeric", nil, "numeric"},
		{"k", "decimal", []schema.ColumnOption{schema.WithPrecision(10), schema.WithScale(2)}, "numeric(10,2)"},
		{"l", "numeric", []schema.ColumnOption{schema.WithPrecision(12)}, "numeric(12)"},
		{"m", "numeric", []schema.ColumnOption{schema.WithScale(3)}, "numeric(1000,3)"},
		{"n", "timestamp", nil, "timestamp"},
		{"o", "timestamp", []schema.ColumnOption{schema.WithPrecision(6)}, "timestamp"},
		{"p", "timestamp", []schema.ColumnOption{schema.WithPrecision(3)}, "timestamp(3)"},
		{"q", "timestamptz", []schema.ColumnOption{schema.WithPrecision(3)}, "timestamptz(3)"},
		{"r", "time", nil, "time"},
		{"s", "time", []schema.ColumnOption{schema.WithPrecision(2)}, "time(2)"},
		{"u", "date", nil, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.typ+"_"+tt.column, func(t *testing.T) {
			addColumn(t, rel, tt.column, tt.typ, tt.opts...)
			c, _ := rel.Column(tt.column)
			if got := e.DataTypeClause(c); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestDataTypeClauseWarnsAboveMaximum(t *testing.T) {
	spy := newSpy(t, "postgres")
	var buf bytes.Buffer
	e := engine.New(spy, bufferLogger(&buf), engine.Options{})
	rel := schema.NewRelation(schema.Path{Name: "t"}, schema.KindTable, spy.reg)
	addColumn(t, rel, "big", "timestamp", schema.WithPrecision(9))

	c, _ := rel.Column("big")
	if got := e.DataTypeClause(c); got != "timestamp(9)" {
		t.Errorf("Expected timestamp(9), got %s", got)
	}
	if !strings.Contains(buf.String(), "is greater than the maximum allowed (6)") {
		t.Errorf("Expected a precision warning, got %s", buf.String())
	}
}

func ordersCatalog(t *testing.T, spy *spyConn) (*schema.Relation, *schema.Relation) {
	t.Helper()
	cat := schema.NewCatalog("spy", "", spy.reg, logger.Nop())
	customers := cat.GetOrCreate("customers", schema.KindTable)
	addColumn(t, customers, "id", "integer", schema.WithNullable(false))
	if _, err := customers.SetPrimaryKey("id"); err != nil {
		t.Fatal(err)
	}

	orders := cat.GetOrCreate("orders", schema.KindTable)
	addColumn(t, orders, "id", "integer")
	addColumn(t, orders, "customer_id", "integer")
	addColumn(t, orders, "amount", "decimal", schema.WithPrecision(10), schema.WithScale(2))
	if _, err := orders.SetPrimaryKey("id"); err != nil {
		t.Fatal(err)
	}
	if _, err := orders.AddForeignKeyTo(customers, "customer_id"); err != nil {
		t.Fatal(err)
	}
	return customers, orders
}

func TestCreateRequiresForeignTables(t *testing.T) {
	spy := newSpy(t, "postgres")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	customers, orders := ordersCatalog(t, spy)

	_, err := e.Create(context.Background(), orders)
	if !errs.IsPrecondition(err) {
		t.Fatalf("Expected a precondition error, got %v", err)
	}
	if !strings.Contains(err.Error(), "The foreign table (customers) does not exist") {
		t.Errorf("Unexpected message %v", err)
	}
	if len(spy.statements) != 0 {
		t.Fatalf("Expected no statement, got %v", spy.statements)
	}

	if _, err := e.Create(context.Background(), customers); err != nil {
		t.Fatalf("Create customers failed: %v", err)
	}
	spy.statements = nil
	res, err := e.Create(context.Background(), orders)
	if err != nil {
		t.Fatalf("Create orders failed: %v", err)
	}

	expected := []string{
		"create table \"orders\" (\n\"id\" integer not null,\n\"customer_id\" integer,\n\"amount\" numeric(10,2)\n)",
		`ALTER TABLE "orders" ADD PRIMARY KEY ("id")`,
		`ALTER TABLE "orders" ADD FOREIGN KEY ("customer_id") REFERENCES "customers" ("id")`,
	}
	if len(spy.statements) != len(expected) {
		t.Fatalf("Expected %d statements, got %d: %v", len(expected), len(spy.statements), spy.statements)
	}
	for i, s := range expected {
		if spy.statements[i] != s {
			t.Errorf("Statement %d: expected %q, got %q", i, s, spy.statements[i])
		}
	}
	if len(res.Statements) != 3 {
		t.Errorf("Expected the result to list 3 statements, got %d", len(res.Statements))
	}
}

func TestCreateSqliteInlinesConstraints(t *testing.T) {
	spy := newSpy(t, "sqlite3")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	spy.objects["customers"] = "TABLE"
	_, orders := ordersCatalog(t, spy)

	if _, err := e.Create(context.Background(), orders); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(spy.statements) != 1 {
		t.Fatalf("Expected one statement, got %v", spy.statements)
	}
	for _, part := range []string{`primary key ("id")`, `foreign key ("customer_id") references "customers" ("id")`} {
		if !strings.Contains(spy.statements[0], part) {
			t.Errorf("Expected %s in %s", part, spy.statements[0])
		}
	}
}

func TestCopyIntoNonEmptyTarget(t *testing.T) {
	spy := newSpy(t, "postgres")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	cat := schema.NewCatalog("spy", "", spy.reg, logger.Nop())
	src := cat.GetOrCreate("src", schema.KindTable)
	dst := cat.GetOrCreate("dst", schema.KindTable)
	for _, r := range []*schema.Relation{src, dst} {
		addColumn(t, r, "id", "integer")
	}
	spy.objects["src"], spy.objects["dst"] = "TABLE", "TABLE"
	spy.rows["dst"] = 3

	_, err := e.Transfer(context.Background(), src, dst, engine.TransferOptions{Operation: engine.OpCopy})
	if !errs.IsNotEmpty(err) {
		t.Fatalf("Expected a not empty error, got %v", err)
	}
	if len(spy.statements) != 0 {
		t.Errorf("Expected no statement, got %v", spy.statements)
	}

	res, err := e.Transfer(context.Background(), src, dst, engine.TransferOptions{
		Operation: engine.OpCopy,
		Target:    engine.TargetOps{Truncate: true},
	})
	if err != nil {
		t.Fatalf("Transfer with truncate failed: %v", err)
	}
	expected := []string{`truncate table "dst"`, `insert into "dst" ( "id" ) select "id" from "src"`}
	if strings.Join(res.Statements, ";") != strings.Join(expected, ";") {
		t.Errorf("Expected %v, got %v", expected, res.Statements)
	}
}

func TestCopyCreatesTargetAs(t *testing.T) {
	spy := newSpy(t, "postgres")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	cat := schema.NewCatalog("spy", "", spy.reg, logger.Nop())
	src := cat.GetOrCreate("src", schema.KindTable)
	addColumn(t, src, "id", "integer")
	addColumn(t, src, "name", "varchar", schema.WithPrecision(20))
	dst := cat.GetOrCreate("dst", schema.KindTable)
	spy.objects["src"] = "TABLE"

	res, err := e.Transfer(context.Background(), src, dst, engine.TransferOptions{})
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if res.Method != engine.MethodCreateAs {
		t.Errorf("Expected create-as, got %s", res.Method)
	}
	if got := spy.statements[0]; got != `create table "dst" as select "id", "name" from "src"` {
		t.Errorf("Unexpected statement %s", got)
	}
	if len(dst.Columns()) != 2 {
		t.Errorf("Expected the target to take the source columns, got %d", len(dst.Columns()))
	}
}

func upsertRelations(t *testing.T, spy *spyConn, withKey bool) (*schema.Relation, *schema.Relation) {
	t.Helper()
	cat := schema.NewCatalog("spy", "", spy.reg, logger.Nop())
	src := cat.GetOrCreate("staging", schema.KindTable)
	dst := cat.GetOrCreate("target_table", schema.KindTable)
	for _, r := range []*schema.Relation{src, dst} {
		addColumn(t, r, "colA", "integer")
		addColumn(t, r, "colB", "varchar", schema.WithPrecision(10))
		addColumn(t, r, "val", "numeric")
	}
	if withKey {
		if _, err := dst.AddUniqueKey("colA", "colB"); err != nil {
			t.Fatal(err)
		}
	}
	spy.objects["staging"], spy.objects["target_table"] = "TABLE", "TABLE"
	return src, dst
}

func TestUpsertConflictClause(t *testing.T) {
	tests := []struct {
		driver   string
		expected string
	}{
		{"postgres", `insert into "target_table" ( "colA", "colB", "val" ) select "colA", "colB", "val" from "staging"` +
			` on conflict ( "colA", "colB" ) do update set "val" = EXCLUDED."val"`},
		{"sqlite3", `insert into "target_table" ( "colA", "colB", "val" ) select * from ( select "colA", "colB", "val" from "staging" ) where true` +
			` on conflict ( "colA", "colB" ) do update set "val" = excluded."val"`},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			spy := newSpy(t, tt.driver)
			e := engine.New(spy, logger.Nop(), engine.Options{})
			src, dst := upsertRelations(t, spy, true)

			res, err := e.Transfer(context.Background(), src, dst, engine.TransferOptions{Operation: engine.OpUpsert})
			if err != nil {
				t.Fatalf("Transfer failed: %v", err)
			}
			if res.Statements[0] != tt.expected {
				t.Errorf("Expected\n%s\ngot\n%s", tt.expected, res.Statements[0])
			}
		})
	}
}

func TestUpsertWithoutKeyIsBareInsert(t *testing.T) {
	spy := newSpy(t, "postgres")
	var buf bytes.Buffer
	e := engine.New(spy, bufferLogger(&buf), engine.Options{})
	src, dst := upsertRelations(t, spy, false)

	res, err := e.Transfer(context.Background(), src, dst, engine.TransferOptions{Operation: engine.OpUpsert})
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if strings.Contains(res.Statements[0], "on conflict") {
		t.Errorf("Expected a bare insert, got %s", res.Statements[0])
	}
	if !strings.Contains(buf.String(), "the `on conflict` upsert clause was not added") ||
		!strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("Expected a recorded warning, got %s", buf.String())
	}
}

func TestUpsertUnsupportedDialect(t *testing.T) {
	spy := newSpy(t, "oracle")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	src, dst := upsertRelations(t, spy, true)

	_, err := e.Transfer(context.Background(), src, dst, engine.TransferOptions{Operation: engine.OpUpsert})
	if !errs.IsUnsupported(err) {
		t.Errorf("Expected an unsupported error, got %v", err)
	}
	if len(spy.statements) != 0 {
		t.Errorf("Expected no statement, got %v", spy.statements)
	}
}

func peopleRelations(t *testing.T, spy *spyConn) (*schema.Relation, *schema.Relation) {
	t.Helper()
	cat := schema.NewCatalog("spy", "", spy.reg, logger.Nop())
	src := cat.GetOrCreate("staging", schema.KindTable)
	dst := cat.GetOrCreate("people", schema.KindTable)
	for _, r := range []*schema.Relation{src, dst} {
		addColumn(t, r, "id", "integer")
		addColumn(t, r, "name", "varchar")
	}
	if _, err := dst.SetPrimaryKey("id"); err != nil {
		t.Fatal(err)
	}
	spy.objects["staging"], spy.objects["people"] = "TABLE", "TABLE"
	return src, dst
}

func TestUpdateAndDeleteStatements(t *testing.T) {
	tests := []struct {
		op       engine.Operation
		expected string
	}{
		{engine.OpUpdate, `update "people" as "target" set ( "name" ) = ( select "name" from "staging" "s" where "target"."id" = "s"."id" )`},
		{engine.OpDelete, `delete from "people" where ( "id" ) in ( select distinct "id" from "staging" )`},
		{engine.OpInsert, `insert into "people" ( "id", "name" ) select "id", "name" from "staging"`},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			spy := newSpy(t, "postgres")
			e := engine.New(spy, logger.Nop(), engine.Options{})
			src, dst := peopleRelations(t, spy)
			res, err := e.Transfer(context.Background(), src, dst, engine.TransferOptions{Operation: tt.op})
			if err != nil {
				t.Fatalf("Transfer failed: %v", err)
			}
			if res.Statements[0] != tt.expected {
				t.Errorf("Expected\n%s\ngot\n%s", tt.expected, res.Statements[0])
			}
		})
	}
}

func TestUpdateByDialect(t *testing.T) {
	tests := []struct {
		driver   string
		expected string
	}{
		{"sqlite3", `update "people" as "target" set ( "name" ) = ( select "name" from "staging" "s" where "target"."id" = "s"."id" )`},
		{"oracle", `update "people" "target" set ( "name" ) = ( select "name" from "staging" "s" where "target"."id" = "s"."id" )`},
		{"mysql", ""},
		{"sqlserver", ""},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			spy := newSpy(t, tt.driver)
			e := engine.New(spy, logger.Nop(), engine.Options{})
			src, dst := peopleRelations(t, spy)
			res, err := e.Transfer(context.Background(), src, dst, engine.TransferOptions{Operation: engine.OpUpdate})
			if tt.expected == "" {
				if !errs.IsUnsupported(err) {
					t.Errorf("Expected an unsupported error, got %v", err)
				}
				if len(spy.statements) != 0 {
					t.Errorf("Expected no statement, got %v", spy.statements)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transfer failed: %v", err)
			}
			if res.Statements[0] != tt.expected {
				t.Errorf("Expected\n%s\ngot\n%s", tt.expected, res.Statements[0])
			}
		})
	}
}

func TestDDLResultHasNoOperation(t *testing.T) {
	spy := newSpy(t, "postgres")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	_, dst := peopleRelations(t, spy)

	res, err := e.Drop(context.Background(), dst)
	if err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if res.Operation != engine.OpNone {
		t.Errorf("Expected no operation, got %s", res.Operation)
	}
	if got := res.String(); got != "drop: 1 statement(s), 1 row(s)" {
		t.Errorf("Unexpected result %q", got)
	}
}

func TestUpdatePreconditions(t *testing.T) {
	spy := newSpy(t, "postgres")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	cat := schema.NewCatalog("spy", "", spy.reg, logger.Nop())
	src := cat.GetOrCreate("staging", schema.KindTable)
	addColumn(t, src, "id", "integer")
	keyed := cat.GetOrCreate("keyed", schema.KindTable)
	addColumn(t, keyed, "id", "integer")
	if _, err := keyed.SetPrimaryKey("id"); err != nil {
		t.Fatal(err)
	}
	plain := cat.GetOrCreate("plain", schema.KindTable)
	addColumn(t, plain, "id", "integer")
	spy.objects["staging"], spy.objects["keyed"], spy.objects["plain"] = "TABLE", "TABLE", "TABLE"

	_, err := e.Transfer(context.Background(), src, keyed, engine.TransferOptions{Operation: engine.OpUpdate})
	if !errs.IsPrecondition(err) || !strings.Contains(err.Error(), "There is nothing to update") {
		t.Errorf("Expected nothing to update, got %v", err)
	}
	_, err = e.Transfer(context.Background(), src, plain, engine.TransferOptions{Operation: engine.OpUpdate})
	if !errs.IsPrecondition(err) || !strings.Contains(err.Error(), "has no primary key or unique columns") {
		t.Errorf("Expected a missing key error, got %v", err)
	}
}

func TestInsertChecks(t *testing.T) {
	spy := newSpy(t, "postgres")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	cat := schema.NewCatalog("spy", "", spy.reg, logger.Nop())
	src := cat.GetOrCreate("staging", schema.KindTable)
	addColumn(t, src, "name", "varchar")
	addColumn(t, src, "extra", "integer")
	dst := cat.GetOrCreate("people", schema.KindTable)
	addColumn(t, dst, "id", "integer")
	addColumn(t, dst, "name", "varchar", schema.WithNullable(false))
	if _, err := dst.SetPrimaryKey("id"); err != nil {
		t.Fatal(err)
	}
	spy.objects["staging"], spy.objects["people"] = "TABLE", "TABLE"

	_, err := e.Transfer(context.Background(), src, dst, engine.TransferOptions{Operation: engine.OpInsert})
	if !errs.IsPrecondition(err) || !strings.Contains(err.Error(), "primary key column (id)") {
		t.Errorf("Expected the primary key check to fail, got %v", err)
	}

	_, err = e.Transfer(context.Background(), src, dst, engine.TransferOptions{Operation: engine.OpInsert, Strict: true})
	if !errs.IsPrecondition(err) || !strings.Contains(err.Error(), "(extra)") {
		t.Errorf("Expected the unmapped column to fail in strict mode, got %v", err)
	}
	if len(spy.statements) != 0 {
		t.Errorf("Expected no statement, got %v", spy.statements)
	}
}

func TestMapByName(t *testing.T) {
	spy := newSpy(t, "postgres")
	spy.quoting = false
	e := engine.New(spy, logger.Nop(), engine.Options{})
	cat := schema.NewCatalog("spy", "", spy.reg, logger.Nop())
	src := cat.GetOrCreate("staging", schema.KindTable)
	addColumn(t, src, "cust_nm", "varchar")
	dst := cat.GetOrCreate("people", schema.KindTable)
	addColumn(t, dst, "name", "varchar")
	spy.objects["staging"], spy.objects["people"] = "TABLE", "TABLE"

	res, err := e.Transfer(context.Background(), src, dst, engine.TransferOptions{
		Operation: engine.OpInsert,
		Mapping:   engine.MapByName,
		ColumnMap: map[string]string{"CUST_NM": "name"},
	})
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if got := res.Statements[0]; got != "insert into people ( name ) select cust_nm from staging" {
		t.Errorf("Unexpected statement %s", got)
	}
}

func TestMove(t *testing.T) {
	spy := newSpy(t, "postgres")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	cat := schema.NewCatalog("spy", "", spy.reg, logger.Nop())
	src := cat.GetOrCreate("old", schema.KindTable)
	dst := cat.GetOrCreate("new", schema.KindTable)
	spy.objects["old"] = "TABLE"

	res, err := e.Transfer(context.Background(), src, dst, engine.TransferOptions{Operation: engine.OpMove})
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if res.Statements[0] != `alter table "old" rename to "new"` {
		t.Errorf("Unexpected statement %s", res.Statements[0])
	}

	spy.objects["new"] = "TABLE"
	if _, err := e.Transfer(context.Background(), src, dst, engine.TransferOptions{Operation: engine.OpMove}); !errs.IsPrecondition(err) {
		t.Errorf("Expected the existing target to block the rename, got %v", err)
	}
}

func TestTruncateBatchRule(t *testing.T) {
	spy := newSpy(t, "postgres")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	customers, orders := ordersCatalog(t, spy)

	_, err := e.Truncate(context.Background(), []*schema.Relation{customers})
	if !errs.IsPrecondition(err) {
		t.Fatalf("Expected a precondition error, got %v", err)
	}
	if len(spy.statements) != 0 {
		t.Fatalf("Expected no statement, got %v", spy.statements)
	}

	res, err := e.Truncate(context.Background(), []*schema.Relation{customers, orders})
	if err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}
	if len(res.Statements) != 1 || res.Statements[0] != `truncate table "customers", "orders"` {
		t.Errorf("Unexpected statements %v", res.Statements)
	}
}

func TestTruncateEachTable(t *testing.T) {
	spy := newSpy(t, "mssql")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	customers, orders := ordersCatalog(t, spy)

	res, err := e.Truncate(context.Background(), []*schema.Relation{customers, orders})
	if err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}
	if len(res.Statements) != 2 || res.Statements[1] != "truncate table [orders]" {
		t.Errorf("Unexpected statements %v", res.Statements)
	}
}

func TestDropKinds(t *testing.T) {
	tests := []struct {
		kind     schema.Kind
		strict   bool
		expected string
		unsup    bool
	}{
		{schema.KindTable, false, `drop table "x"`, false},
		{schema.KindView, false, `drop view "x"`, false},
		{schema.KindSchema, false, `drop schema "x"`, false},
		{schema.KindSystemTable, true, "", false},
		{schema.KindSystemView, false, "", false},
		{schema.KindUnknown, false, "", false},
		{schema.KindUnknown, true, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			spy := newSpy(t, "postgres")
			var buf bytes.Buffer
			e := engine.New(spy, bufferLogger(&buf), engine.Options{Strict: tt.strict})
			rel := schema.NewRelation(schema.Path{Name: "x"}, tt.kind, spy.reg)

			res, err := e.Drop(context.Background(), rel)
			if tt.unsup {
				if !errs.IsUnsupported(err) {
					t.Errorf("Expected an unsupported error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Drop failed: %v", err)
			}
			if tt.expected == "" {
				if len(res.Statements) != 0 || !strings.Contains(buf.String(), "not") {
					t.Errorf("Expected a skip with a warning, got %v", res.Statements)
				}
				return
			}
			if len(res.Statements) != 1 || res.Statements[0] != tt.expected {
				t.Errorf("Expected %s, got %v", tt.expected, res.Statements)
			}
		})
	}
}

func TestDropAllOrder(t *testing.T) {
	spy := newSpy(t, "postgres")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	customers, orders := ordersCatalog(t, spy)

	if _, err := e.DropAll(context.Background(), []*schema.Relation{customers, orders}); err != nil {
		t.Fatalf("DropAll failed: %v", err)
	}
	if strings.Join(spy.statements, ";") != `drop table "orders";drop table "customers"` {
		t.Errorf("Expected orders to be dropped first, got %v", spy.statements)
	}
}

func TestDropNotNull(t *testing.T) {
	spy := newSpy(t, "postgres")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	rel := schema.NewRelation(schema.Path{Name: "t"}, schema.KindTable, spy.reg)
	addColumn(t, rel, "id", "integer", schema.WithNullable(false))
	addColumn(t, rel, "name", "varchar", schema.WithNullable(false))
	addColumn(t, rel, "note", "text")
	if _, err := rel.SetPrimaryKey("id"); err != nil {
		t.Fatal(err)
	}

	res, err := e.DropNotNull(context.Background(), rel)
	if err != nil {
		t.Fatalf("DropNotNull failed: %v", err)
	}
	if len(res.Statements) != 1 || res.Statements[0] != `alter table "t" alter column "name" drop not null` {
		t.Errorf("Unexpected statements %v", res.Statements)
	}

	lite := newSpy(t, "sqlite3")
	if _, err := engine.New(lite, logger.Nop(), engine.Options{}).DropNotNull(context.Background(), rel); !errs.IsUnsupported(err) {
		t.Errorf("Expected sqlite to be unsupported, got %v", err)
	}
}

func TestExecutionErrorCarriesStatement(t *testing.T) {
	spy := newSpy(t, "postgres")
	spy.failOn = "delete"
	e := engine.New(spy, logger.Nop(), engine.Options{})
	rel := schema.NewRelation(schema.Path{Name: "t"}, schema.KindTable, spy.reg)

	_, err := e.Delete(context.Background(), rel)
	if !errs.IsQueryFailed(err) {
		t.Fatalf("Expected a query failure, got %v", err)
	}
	if !strings.Contains(err.Error(), `Error when executing the statement: delete from "t"`) {
		t.Errorf("Unexpected message %v", err)
	}
}

func TestCreateView(t *testing.T) {
	spy := newSpy(t, "postgres")
	e := engine.New(spy, logger.Nop(), engine.Options{})
	q := schema.NewQuery("big_orders", "select * from orders where amount > 100", spy.reg)

	if _, err := e.CreateView(context.Background(), q); err != nil {
		t.Fatalf("CreateView failed: %v", err)
	}
	if spy.statements[0] != `create view "big_orders" as select * from orders where amount > 100` {
		t.Errorf("Unexpected statement %s", spy.statements[0])
	}
}

func TestParseOptions(t *testing.T) {
	if op, err := engine.ParseOperation("UPSERT"); err != nil || op != engine.OpUpsert {
		t.Errorf("Expected upsert, got %v %v", op, err)
	}
	if _, err := engine.ParseOperation("merge"); !errs.IsInvalidInput(err) {
		t.Errorf("Expected invalid input, got %v", err)
	}
	ops, err := engine.ParseTargetOps([]string{"drop", "Create"})
	if err != nil || !ops.Drop || !ops.Create || ops.Truncate {
		t.Errorf("Unexpected target operations %+v %v", ops, err)
	}
	if m, err := engine.ParseMapping("map-by-position"); err != nil || m != engine.MapByPosition {
		t.Errorf("Expected map by position, got %v %v", m, err)
	}
}
