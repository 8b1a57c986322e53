package schema_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"db-relay/internal/datatype"
	"db-relay/internal/logger"
	"db-relay/internal/schema"
)

// chain builds relations with a single integer key "id" and one foreign key
// per dependency, named after the referenced relation.
func chain(t *testing.T, deps map[string][]string, order []string) []*schema.Relation {
	t.Helper()
	reg := registry(t, "pg")
	cat := schema.NewCatalog("pg", "public", reg, logger.Nop())
	integer := typeOf(t, reg, "integer")
	for _, name := range order {
		r := cat.GetOrCreate(name, schema.KindTable)
		_, _ = r.GetOrCreateColumn("id", integer)
		if _, err := r.SetPrimaryKey("id"); err != nil {
			t.Fatalf("SetPrimaryKey failed: %v", err)
		}
	}
	for _, name := range order {
		r, _ := cat.Relation(name)
		for _, d := range deps[name] {
			foreign, _ := cat.Relation(d)
			col := strings.ToLower(d) + "_id"
			_, _ = r.GetOrCreateColumn(col, integer)
			if _, err := r.AddForeignKeyTo(foreign, col); err != nil {
				t.Fatalf("AddForeignKeyTo failed: %v", err)
			}
		}
	}
	return cat.Relations()
}

func TestSortByDependencies_ComplexCircular(t *testing.T) {
	// A -> B -> C -> D -> E -> A (cycle), F -> E, G independent
	relations := chain(t, map[string][]string{
		"A": {"B"}, "B": {"C"}, "C": {"D"}, "D": {"E"}, "E": {"A"}, "F": {"E"},
	}, []string{"A", "B", "C", "D", "E", "F", "G"})

	sorted := schema.SortByDependencies(relations)

	if len(sorted) != len(relations) {
		t.Errorf("Expected %d relations, got %d", len(relations), len(sorted))
	}
	visited := make(map[string]bool)
	for _, r := range sorted {
		visited[r.Name()] = true
	}
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		if !visited[name] {
			t.Errorf("%s is missing from the sorted list", name)
		}
	}
	if sorted[0].Name() != "G" {
		t.Errorf("Expected independent relation G first, got %s", sorted[0].Name())
	}
}

func TestSortByDependencies_Simple(t *testing.T) {
	// Users <- Orders <- OrderItems
	relations := chain(t, map[string][]string{
		"OrderItems": {"Orders"}, "Orders": {"Users"},
	}, []string{"OrderItems", "Orders", "Users"})

	sorted := schema.SortByDependencies(relations)

	want := []string{"Users", "Orders", "OrderItems"}
	for i, name := range want {
		if sorted[i].Name() != name {
			t.Errorf("Expected %s at %d, got %s", name, i, sorted[i].Name())
		}
	}
}

func TestSortByDependencies_SelfReference(t *testing.T) {
	relations := chain(t, map[string][]string{"Employees": {"Employees"}, "Teams": {"Employees"}},
		[]string{"Teams", "Employees"})

	sorted := schema.SortByDependencies(relations)
	if sorted[0].Name() != "Employees" {
		t.Errorf("Expected Employees first, got %s", sorted[0].Name())
	}
}

type fakeSource struct {
	objects []schema.ObjectRow
	columns []schema.ColumnRow
	pks     []schema.KeyRow
	uks     []schema.KeyRow
	fks     []schema.ForeignKeyRow
	err     error
}

func (f *fakeSource) Objects(context.Context, string) ([]schema.ObjectRow, error) {
	return f.objects, f.err
}
func (f *fakeSource) Columns(context.Context, string) ([]schema.ColumnRow, error) {
	return f.columns, nil
}
func (f *fakeSource) PrimaryKeys(context.Context, string) ([]schema.KeyRow, error) {
	return f.pks, nil
}
func (f *fakeSource) UniqueKeys(context.Context, string) ([]schema.KeyRow, error) {
	return f.uks, nil
}
func (f *fakeSource) ForeignKeys(context.Context, string) ([]schema.ForeignKeyRow, error) {
	return f.fks, nil
}

func TestReflect(t *testing.T) {
	reg := registry(t, "pg")
	src := &fakeSource{
		objects: []schema.ObjectRow{
			{Schema: "public", Name: "customers", Kind: "BASE TABLE"},
			{Schema: "public", Name: "orders", Kind: "BASE TABLE", Remarks: "customer orders"},
			{Schema: "public", Name: "open_orders", Kind: "VIEW"},
		},
		columns: []schema.ColumnRow{
			{Relation: "orders", Name: "customer_id", TypeName: "int4", TypeCode: datatype.NoCode, Precision: 32, Position: 2},
			{Relation: "orders", Name: "id", TypeName: "integer", TypeCode: datatype.NoCode, Nullable: datatype.NotNull, Position: 1},
			{Relation: "orders", Name: "total", TypeName: "numeric", TypeCode: datatype.NoCode, Precision: 12, Scale: 2, Position: 3},
			{Relation: "customers", Name: "id", TypeName: "integer", TypeCode: datatype.NoCode, Position: 1},
			{Relation: "customers", Name: "email", TypeName: "varchar", TypeCode: datatype.NoCode, Precision: 120, Position: 2},
			{Relation: "ghost", Name: "id", TypeName: "integer", Position: 1},
		},
		pks: []schema.KeyRow{
			{Relation: "orders", Name: "orders_pkey", Column: "id", Sequence: 1},
			{Relation: "customers", Name: "customers_pkey", Column: "id", Sequence: 1},
		},
		uks: []schema.KeyRow{
			{Relation: "customers", Name: "customers_email_key", Column: "email", Sequence: 1},
		},
		fks: []schema.ForeignKeyRow{
			{Relation: "orders", Name: "orders_customer_fk", Column: "customer_id", Sequence: 1, ForeignRelation: "customers", ForeignColumn: "id"},
			{Relation: "orders", Name: "orders_region_fk", Column: "customer_id", Sequence: 1, ForeignRelation: "regions", ForeignColumn: "id"},
		},
	}

	cat, err := schema.Reflect(context.Background(), src, reg, "pg", "public", logger.Nop())
	if err != nil {
		t.Fatalf("Reflect failed: %v", err)
	}

	if cat.Len() != 3 {
		t.Fatalf("Expected 3 relations, got %d", cat.Len())
	}
	view, _ := cat.Relation("open_orders")
	if view.Kind() != schema.KindView {
		t.Errorf("Expected a view, got %s", view.Kind())
	}

	orders, _ := cat.Relation("ORDERS")
	if got := strings.Join(orders.ColumnNames(), ","); got != "id,customer_id,total" {
		t.Errorf("Expected columns in position order, got %s", got)
	}
	fk, _ := orders.Column("customer_id")
	if fk.Precision() != 0 {
		t.Errorf("Expected integer precision to be dropped, got %d", fk.Precision())
	}
	total, _ := orders.Column("total")
	if total.Precision() != 12 || total.Scale() != 2 {
		t.Errorf("Expected numeric(12,2), got (%d,%d)", total.Precision(), total.Scale())
	}
	id, _ := orders.Column("id")
	if id.Nullable() {
		t.Error("Expected id to be not null")
	}
	if orders.PrimaryKey() == nil || orders.PrimaryKey().Name != "orders_pkey" {
		t.Error("Expected the primary key orders_pkey")
	}
	if len(orders.ForeignKeys()) != 1 {
		t.Errorf("Expected the foreign key to regions to be skipped, got %d keys", len(orders.ForeignKeys()))
	}

	customers, _ := cat.Relation("customers")
	if len(customers.UniqueKeys()) != 1 {
		t.Error("Expected the unique key on email")
	}
	if len(cat.ReferencesTo(customers)) != 1 {
		t.Error("Expected orders to reference customers")
	}
}

func TestReflectPropagatesErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("permission denied")}
	_, err := schema.Reflect(context.Background(), src, registry(t, "pg"), "pg", "public", logger.Nop())
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("Expected the source error, got %v", err)
	}
}
