package schema_test

import (
	"bytes"
	"strings"
	"testing"

	"db-relay/internal/datatype"
	"db-relay/internal/errs"
	"db-relay/internal/logger"
	"db-relay/internal/schema"
)

func registry(t *testing.T, name string, infos ...datatype.Info) *datatype.Registry {
	t.Helper()
	r := datatype.NewRegistry(name, datatype.Options{})
	if len(infos) == 0 {
		infos = []datatype.Info{
			{Name: "integer", Code: datatype.CodeInteger},
			{Name: "bigint", Code: datatype.CodeBigInt},
			{Name: "varchar", Code: datatype.CodeVarchar, MaxPrecision: 4000},
			{Name: "numeric", Code: datatype.CodeNumeric, MaxPrecision: 38, MaxScale: 38},
			{Name: "timestamp", Code: datatype.CodeTimestamp},
			{Name: "boolean", Code: datatype.CodeBoolean},
		}
	}
	if err := r.Load(infos); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return r
}

func typeOf(t *testing.T, reg *datatype.Registry, name string) *datatype.Type {
	t.Helper()
	typ, ok := reg.ResolveByName(name)
	if !ok {
		t.Fatalf("type %s not found", name)
	}
	return typ
}

func TestGetOrCreateColumnIsIdempotent(t *testing.T) {
	reg := registry(t, "pg")
	r := schema.NewRelation(schema.Path{Name: "orders"}, schema.KindTable, reg)

	a, err := r.GetOrCreateColumn("ID", typeOf(t, reg, "integer"))
	if err != nil {
		t.Fatalf("GetOrCreateColumn failed: %v", err)
	}
	_, _ = r.GetOrCreateColumn("name", typeOf(t, reg, "varchar"))
	b, err := r.GetOrCreateColumn("id", typeOf(t, reg, "integer"), schema.WithNullable(false))
	if err != nil {
		t.Fatalf("GetOrCreateColumn failed: %v", err)
	}
	if a != b {
		t.Error("expected the same column for a case-insensitive name")
	}
	if a.Nullable() {
		t.Error("expected options to apply to the existing column")
	}
	if a.Position() != 1 {
		t.Errorf("expected position 1, got %d", a.Position())
	}
	if len(r.Columns()) != 2 {
		t.Errorf("expected 2 columns, got %d", len(r.Columns()))
	}
}

func TestColumnDriftIsInvalidInput(t *testing.T) {
	reg := registry(t, "pg")
	r := schema.NewRelation(schema.Path{Name: "orders"}, schema.KindTable, reg)
	_, _ = r.GetOrCreateColumn("id", typeOf(t, reg, "integer"))

	_, err := r.GetOrCreateColumn("id", typeOf(t, reg, "varchar"))
	if !errs.IsInvalidInput(err) {
		t.Errorf("expected invalid input for a class change, got %v", err)
	}
}

func TestScaleAbovePrecision(t *testing.T) {
	reg := registry(t, "pg")
	r := schema.NewRelation(schema.Path{Name: "prices"}, schema.KindTable, reg)

	_, err := r.GetOrCreateColumn("amount", typeOf(t, reg, "numeric"), schema.WithPrecision(5), schema.WithScale(7))
	if !errs.IsInvalidInput(err) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestForeignKeyArityMismatch(t *testing.T) {
	reg := registry(t, "pg")
	cat := schema.NewCatalog("pg", "public", reg, logger.Nop())

	parent := cat.GetOrCreate("parent", schema.KindTable)
	_, _ = parent.GetOrCreateColumn("a", typeOf(t, reg, "integer"))
	_, _ = parent.GetOrCreateColumn("b", typeOf(t, reg, "integer"))
	pk, _ := parent.SetPrimaryKey("a", "b")

	child := cat.GetOrCreate("child", schema.KindTable)
	_, _ = child.GetOrCreateColumn("x", typeOf(t, reg, "integer"))

	if _, err := child.AddForeignKey(pk, "x"); !errs.IsModeling(err) {
		t.Errorf("expected modeling error, got %v", err)
	}
	if len(child.ForeignKeys()) != 0 {
		t.Error("expected no foreign key to be added")
	}
}

func TestForeignKeyToRelationWithoutPrimaryKey(t *testing.T) {
	reg := registry(t, "pg")
	cat := schema.NewCatalog("pg", "public", reg, logger.Nop())
	parent := cat.GetOrCreate("parent", schema.KindTable)
	child := cat.GetOrCreate("child", schema.KindTable)
	_, _ = child.GetOrCreateColumn("x", typeOf(t, reg, "integer"))

	if _, err := child.AddForeignKeyTo(parent, "x"); !errs.IsModeling(err) {
		t.Errorf("expected modeling error, got %v", err)
	}
}

func TestKeysAreIdempotent(t *testing.T) {
	reg := registry(t, "pg")
	cat := schema.NewCatalog("pg", "public", reg, logger.Nop())
	customers := cat.GetOrCreate("customers", schema.KindTable)
	_, _ = customers.GetOrCreateColumn("id", typeOf(t, reg, "integer"))
	_, _ = customers.GetOrCreateColumn("email", typeOf(t, reg, "varchar"))
	_, _ = customers.SetPrimaryKey("id")

	orders := cat.GetOrCreate("orders", schema.KindTable)
	_, _ = orders.GetOrCreateColumn("id", typeOf(t, reg, "integer"))
	_, _ = orders.GetOrCreateColumn("customer_id", typeOf(t, reg, "integer"))

	fk1, _ := orders.AddForeignKeyTo(customers, "customer_id")
	fk2, _ := orders.AddForeignKeyTo(customers, "CUSTOMER_ID")
	if fk1 != fk2 || len(orders.ForeignKeys()) != 1 {
		t.Error("expected a single foreign key")
	}

	uk1, _ := customers.AddUniqueKey("email")
	uk2, _ := customers.AddUniqueKey("email")
	if uk1 != uk2 || len(customers.UniqueKeys()) != 1 {
		t.Error("expected a single unique key")
	}

	refs := cat.ReferencesTo(customers)
	if len(refs) != 1 || refs[0].Relation() != orders {
		t.Errorf("expected orders to reference customers, got %v", refs)
	}

	orders.DropForeignKey(fk1)
	if len(cat.ReferencesTo(customers)) != 0 {
		t.Error("expected no reference after drop")
	}
}

func TestSetPrimaryKeyUnknownColumn(t *testing.T) {
	reg := registry(t, "pg")
	r := schema.NewRelation(schema.Path{Name: "t"}, schema.KindTable, reg)
	if _, err := r.SetPrimaryKey("missing"); !errs.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCopyStructureRoundTrip(t *testing.T) {
	pg := registry(t, "pg")
	ms := registry(t, "mssql",
		datatype.Info{Name: "int", Code: datatype.CodeInteger},
		datatype.Info{Name: "bigint", Code: datatype.CodeBigInt},
		datatype.Info{Name: "nvarchar", Code: datatype.CodeNVarchar, MaxPrecision: 4000},
		datatype.Info{Name: "varchar", Code: datatype.CodeVarchar, MaxPrecision: 8000},
		datatype.Info{Name: "decimal", Code: datatype.CodeDecimal, MaxPrecision: 38, MaxScale: 38},
		datatype.Info{Name: "datetime2", Code: datatype.CodeTimestamp, MaxPrecision: 7},
		datatype.Info{Name: "bit", Code: datatype.CodeBit},
	)

	src := schema.NewRelation(schema.Path{Name: "orders"}, schema.KindTable, pg)
	_, _ = src.GetOrCreateColumn("id", typeOf(t, pg, "integer"), schema.WithNullable(false))
	_, _ = src.GetOrCreateColumn("label", typeOf(t, pg, "varchar"), schema.WithPrecision(50), schema.WithComment("short label"))
	_, _ = src.GetOrCreateColumn("amount", typeOf(t, pg, "numeric"), schema.WithPrecision(10), schema.WithScale(2))
	_, _ = src.GetOrCreateColumn("created", typeOf(t, pg, "timestamp"))
	pk, _ := src.SetPrimaryKey("id")
	pk.Name = "orders_pk"
	_, _ = src.AddUniqueKey("label")

	dst := schema.NewRelation(schema.Path{Name: "orders"}, schema.KindTable, ms)
	if err := dst.CopyStructure(src); err != nil {
		t.Fatalf("CopyStructure failed: %v", err)
	}

	wantTypes := []string{"int", "varchar", "decimal", "datetime2"}
	for i, sc := range src.Columns() {
		dc, ok := dst.ColumnAt(i + 1)
		if !ok {
			t.Fatalf("missing column at %d", i+1)
		}
		if dc.Name() != sc.Name() || dc.Precision() != sc.Precision() || dc.Scale() != sc.Scale() ||
			dc.Nullable() != sc.Nullable() || dc.Comment() != sc.Comment() {
			t.Errorf("column %s not copied faithfully", sc.Name())
		}
		if dc.Type().Name() != wantTypes[i] {
			t.Errorf("column %s: expected type %s, got %s", sc.Name(), wantTypes[i], dc.Type().Name())
		}
	}
	if dst.PrimaryKey() == nil || dst.PrimaryKey().Name != "orders_pk" {
		t.Error("expected the primary key to be copied with its name")
	}
	if len(dst.UniqueKeys()) != 1 {
		t.Error("expected the unique key to be copied")
	}
}

func TestMergeStructure(t *testing.T) {
	reg := registry(t, "pg")
	src := schema.NewRelation(schema.Path{Name: "s"}, schema.KindTable, reg)
	_, _ = src.GetOrCreateColumn("id", typeOf(t, reg, "integer"), schema.WithNullable(false))
	_, _ = src.GetOrCreateColumn("name", typeOf(t, reg, "varchar"), schema.WithPrecision(20))
	_, _ = src.SetPrimaryKey("id")

	dst := schema.NewRelation(schema.Path{Name: "d"}, schema.KindTable, reg)
	_, _ = dst.GetOrCreateColumn("id", typeOf(t, reg, "integer"))

	if err := dst.MergeStructure(src); err != nil {
		t.Fatalf("MergeStructure failed: %v", err)
	}
	name, ok := dst.Column("name")
	if !ok || name.Precision() != 20 {
		t.Error("expected the missing column to be merged with its precision")
	}
	id, _ := dst.Column("id")
	if id.Nullable() {
		t.Error("expected nullability to be aligned by position")
	}
	if dst.PrimaryKey() == nil {
		t.Error("expected the primary key to be taken")
	}
}

func TestCopyForeignKeysSkipsMissingSibling(t *testing.T) {
	reg := registry(t, "pg")
	src := schema.NewCatalog("src", "public", reg, logger.Nop())
	customers := src.GetOrCreate("customers", schema.KindTable)
	_, _ = customers.GetOrCreateColumn("id", typeOf(t, reg, "integer"))
	_, _ = customers.SetPrimaryKey("id")
	orders := src.GetOrCreate("orders", schema.KindTable)
	_, _ = orders.GetOrCreateColumn("customer_id", typeOf(t, reg, "integer"))
	_, _ = orders.AddForeignKeyTo(customers, "customer_id")

	var buf bytes.Buffer
	dst := schema.NewCatalog("dst", "public", reg, logger.New(&logger.Config{Format: "json", Output: &buf}))
	target := dst.GetOrCreate("orders_copy", schema.KindTable)

	if err := target.CopyDefinition(orders, nil); err != nil {
		t.Fatalf("CopyDefinition failed: %v", err)
	}
	if len(target.ForeignKeys()) != 0 {
		t.Error("expected the foreign key to be skipped")
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("expected a warning, got %s", buf.String())
	}

	// with the sibling present under a mapped name the key is rebuilt
	clients := dst.GetOrCreate("clients", schema.KindTable)
	if err := clients.CopyStructure(customers); err != nil {
		t.Fatalf("CopyStructure failed: %v", err)
	}
	if err := target.CopyForeignKeys(orders, map[string]string{"CUSTOMERS": "clients"}); err != nil {
		t.Fatalf("CopyForeignKeys failed: %v", err)
	}
	if len(target.ForeignKeys()) != 1 || target.ForeignKeys()[0].ForeignRelation() != clients {
		t.Error("expected the foreign key to reference clients")
	}
}

func TestCopyForeignKeysAfterForeignPrimaryKeyRemoved(t *testing.T) {
	reg := registry(t, "pg")
	src := schema.NewCatalog("src", "public", reg, logger.Nop())
	customers := src.GetOrCreate("customers", schema.KindTable)
	_, _ = customers.GetOrCreateColumn("id", typeOf(t, reg, "integer"))
	_, _ = customers.SetPrimaryKey("id")
	orders := src.GetOrCreate("orders", schema.KindTable)
	_, _ = orders.GetOrCreateColumn("customer_id", typeOf(t, reg, "integer"))
	if _, err := orders.AddForeignKeyTo(customers, "customer_id"); err != nil {
		t.Fatal(err)
	}
	customers.RemovePrimaryKey()

	dst := schema.NewCatalog("dst", "public", reg, logger.Nop())
	clients := dst.GetOrCreate("customers", schema.KindTable)
	_, _ = clients.GetOrCreateColumn("id", typeOf(t, reg, "integer"))
	_, _ = clients.SetPrimaryKey("id")
	target := dst.GetOrCreate("orders", schema.KindTable)

	if err := target.CopyDefinition(orders, nil); err != nil {
		t.Fatalf("CopyDefinition failed: %v", err)
	}
	if len(target.ForeignKeys()) != 1 || target.ForeignKeys()[0].ForeignRelation() != clients {
		t.Error("expected the foreign key to reference customers")
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"orders", true},
		{"Order_Items2", true},
		{"2orders", false},
		{"_orders", false},
		{"order items", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.ValidateName(tt.name)
			if (err == nil) != tt.ok {
				t.Errorf("ValidateName(%q) = %v", tt.name, err)
			}
		})
	}
}
