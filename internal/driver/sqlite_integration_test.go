//go:build integration

package driver_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"db-relay/internal/driver"
	"db-relay/internal/engine"
	"db-relay/internal/logger"
	"db-relay/internal/pump"
	"db-relay/internal/schema"

	_ "github.com/mattn/go-sqlite3"
)

func openSqlite(t *testing.T, name string) driver.Database {
	t.Helper()
	cfg := driver.Config{
		Name:   name,
		Driver: "sqlite3",
		DSN:    "file:" + filepath.Join(t.TempDir(), name+".db") + "?_foreign_keys=on",
	}
	db, err := driver.Open(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func exec(t *testing.T, db driver.Conn, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		if _, err := db.Exec(context.Background(), s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
}

func TestSqliteReflect(t *testing.T) {
	db := openSqlite(t, "shop")
	exec(t, db,
		`create table customers (id integer primary key, email varchar(80) not null unique)`,
		`create table orders (
			id integer primary key,
			customer_id integer not null references customers (id),
			total decimal(10, 2)
		)`,
	)

	cat, err := driver.Reflect(context.Background(), db, logger.Nop())
	if err != nil {
		t.Fatalf("Reflect failed: %v", err)
	}
	orders, ok := cat.Relation("orders")
	if !ok {
		t.Fatal("orders not reflected")
	}
	total, ok := orders.Column("total")
	if !ok || total.Precision() != 10 || total.Scale() != 2 {
		t.Errorf("Unexpected total column %+v", total)
	}
	if pk := orders.PrimaryKey(); pk == nil || pk.ColumnNames()[0] != "id" {
		t.Errorf("Expected the id primary key, got %v", pk)
	}
	if fks := orders.ForeignKeys(); len(fks) != 1 || fks[0].ForeignRelation().Name() != "customers" {
		t.Errorf("Expected one foreign key to customers, got %d", len(fks))
	}
	customers, _ := cat.Relation("customers")
	if len(customers.UniqueKeys()) != 1 {
		t.Errorf("Expected the email unique key, got %d", len(customers.UniqueKeys()))
	}
}

func TestSqlitePump(t *testing.T) {
	src := openSqlite(t, "src")
	dst := openSqlite(t, "dst")
	exec(t, src, `create table t (id integer, name varchar(20))`)
	for i := 0; i < 50; i++ {
		exec(t, src, `insert into t values (`+strconv.Itoa(i)+`, 'n`+strconv.Itoa(i)+`')`)
	}
	exec(t, dst, `create table t (id integer, name varchar(20))`)

	rep, err := pump.Run(context.Background(),
		src.Source(`select id, name from t`),
		dst.Sink(`"t"`, []string{`"id"`, `"name"`}, false),
		pump.Plan{Name: "t"},
		pump.Options{FetchSize: 7, BatchSize: 5, Workers: 1, Strict: true},
		logger.Nop())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	n, err := dst.QueryInt(context.Background(), `select count(*) from t`)
	if err != nil {
		t.Fatal(err)
	}
	if n != 50 || rep.Written != 50 {
		t.Errorf("Expected 50 rows, got %d (report %d)", n, rep.Written)
	}
}

func TestSqliteCreateAndUpsert(t *testing.T) {
	ctx := context.Background()
	db := openSqlite(t, "items")
	exec(t, db,
		`create table staging (id integer, label varchar(20))`,
		`insert into staging values (1, 'one'), (2, 'two')`,
	)
	cat, err := driver.Reflect(ctx, db, logger.Nop())
	if err != nil {
		t.Fatalf("Reflect failed: %v", err)
	}
	staging, _ := cat.Relation("staging")
	items := cat.GetOrCreate("items", schema.KindTable)
	if err := items.CopyStructure(staging); err != nil {
		t.Fatal(err)
	}
	if _, err := items.SetPrimaryKey("id"); err != nil {
		t.Fatal(err)
	}

	e := engine.New(db, logger.Nop(), engine.Options{})
	if _, err := e.Create(ctx, items); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	exec(t, db, `insert into items values (1, 'old')`)

	if _, err := e.Transfer(ctx, staging, items, engine.TransferOptions{Operation: engine.OpUpsert}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	n, err := db.QueryInt(ctx, `select count(*) from items where label in ('one', 'two')`)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Expected both rows upserted, got %d", n)
	}

	exec(t, db, `update staging set label = 'uno' where id = 1`)
	if _, err := e.Transfer(ctx, staging, items, engine.TransferOptions{Operation: engine.OpUpdate}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if n, _ := db.QueryInt(ctx, `select count(*) from items where label = 'uno'`); n != 1 {
		t.Errorf("Expected the updated label, got %d row(s)", n)
	}
}
