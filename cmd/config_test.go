package cmd

import (
	"strings"
	"testing"
	"time"

	"db-relay/internal/datatype"
	"db-relay/internal/engine"
	"db-relay/internal/errs"
	"db-relay/internal/logger"
	"db-relay/internal/schema"

	"github.com/spf13/viper"
)

const sampleConfig = `
connections:
  - name: app
    driver: postgres
    dsn: postgres://app@localhost/app
    schema: sales
    conn_max_lifetime: 5m
    active: true
  - name: archive
    driver: sqlite
    dsn: /tmp/archive.db
    quote_identifiers: false
types:
  default_varchar_length: 100
transfer:
  operation: upsert
  target_operations: [truncate]
  mapping: map-by-name
  workers: 2
script:
  out: s3://scripts/run.sql
  endpoint: localhost:9000
  access_key: minio
`

func readSettings(t *testing.T, text string) *Settings {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(text)); err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	s, err := loadSettings(v)
	if err != nil {
		t.Fatalf("loadSettings failed: %v", err)
	}
	return s
}

func TestLoadSettings(t *testing.T) {
	s := readSettings(t, sampleConfig)

	if len(s.Connections) != 2 {
		t.Fatalf("Expected 2 connections, got %d", len(s.Connections))
	}
	app := s.Connections[0]
	if app.Name != "app" || app.Schema != "sales" || !app.Active || app.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("Unexpected connection %+v", app)
	}
	if s.Connections[1].Quoting() {
		t.Error("Expected quoting to be disabled on archive")
	}
	if s.Fill.Count != 100 || s.Log.Level != "info" {
		t.Errorf("Expected defaults, got fill.count=%d log.level=%s", s.Fill.Count, s.Log.Level)
	}
	if s.Script.Out != "s3://scripts/run.sql" || s.Script.Endpoint != "localhost:9000" || s.Script.AccessKey != "minio" {
		t.Errorf("Unexpected script settings %+v", s.Script)
	}
	if p := s.PumpOptions(); p.Workers != 2 || !p.Strict {
		t.Errorf("Unexpected pump options %+v", p)
	}
}

func TestConnectionSelection(t *testing.T) {
	s := readSettings(t, sampleConfig)

	tests := []struct {
		name string
		want string
	}{
		{"", "app"},
		{"ARCHIVE", "archive"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			c, err := s.Connection(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if c.Name != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, c.Name)
			}
			if c.Types.DefaultVarcharLength != 100 {
				t.Errorf("Expected the types section to reach the connection, got %+v", c.Types)
			}
		})
	}

	if _, err := s.Connection("missing"); err == nil {
		t.Error("Expected an error for an unknown connection")
	}

	s.Connections[1].Active = true
	if _, err := s.Connection(""); err == nil || !strings.Contains(err.Error(), "multiple active") {
		t.Errorf("Expected the multiple active error, got %v", err)
	}
	s.Connections[0].Active, s.Connections[1].Active = false, false
	if _, err := s.Connection(""); err == nil || !strings.Contains(err.Error(), "no active") {
		t.Errorf("Expected the no active error, got %v", err)
	}
}

func TestTransferSettings(t *testing.T) {
	s := readSettings(t, sampleConfig)
	opts, err := s.TransferOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Operation != engine.OpUpsert || !opts.Target.Truncate || opts.Mapping != engine.MapByName || !opts.Strict {
		t.Errorf("Unexpected transfer options %+v", opts)
	}

	s.Transfer.Operation = "merge"
	if _, err := s.TransferOptions(); !errs.IsInvalidInput(err) {
		t.Errorf("Expected an invalid input error, got %v", err)
	}
}

func TestPositionMapFlag(t *testing.T) {
	settings = readSettings(t, "transfer:\n  mapping: map_by_position\n")
	defer func() { settings, transferMap = nil, nil }()

	transferMap = map[string]string{"1": "2", "2": "1"}
	opts, err := transferOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.PositionMap[1] != 2 || opts.PositionMap[2] != 1 {
		t.Errorf("Unexpected position map %v", opts.PositionMap)
	}

	transferMap = map[string]string{"a": "1"}
	if _, err := transferOptions(); !errs.IsInvalidInput(err) {
		t.Errorf("Expected an invalid input error, got %v", err)
	}
}

func TestSelectRelations(t *testing.T) {
	log = logger.Nop()
	reg := datatype.NewRegistry("test", datatype.Options{})
	cat := schema.NewCatalog("test", "", reg, logger.Nop())
	cat.GetOrCreate("customers", schema.KindTable)
	cat.GetOrCreate("orders", schema.KindTable)
	cat.GetOrCreate("recent_orders", schema.KindView)

	all, err := selectRelations(cat, nil, false)
	if err != nil || len(all) != 3 {
		t.Fatalf("Expected every relation, got %d (%v)", len(all), err)
	}
	if got := tablesOnly(all); len(got) != 2 {
		t.Errorf("Expected the two tables, got %d", len(got))
	}
	if _, err := selectRelations(cat, []string{"Orders", "missing"}, false); !errs.IsNotFound(err) {
		t.Errorf("Expected a not found error, got %v", err)
	}
	got, err := selectRelations(cat, []string{"Orders", "missing"}, true)
	if err != nil || len(got) != 1 || got[0].Name() != "orders" {
		t.Errorf("Expected orders only, got %v (%v)", got, err)
	}
}
