package driver

import (
	"context"
	"strings"
	"time"

	"db-relay/internal/datatype"
	"db-relay/internal/dialect"
	"db-relay/internal/errs"
	"db-relay/internal/logger"

	"github.com/go-sql-driver/mysql"
)

// Config describes one connection.
type Config struct {
	Name             string        `mapstructure:"name"`
	Driver           string        `mapstructure:"driver"`
	DSN              string        `mapstructure:"dsn"`
	Schema           string        `mapstructure:"schema"`
	QuoteIdentifiers *bool         `mapstructure:"quote_identifiers"`
	NameOnlyIdentity bool          `mapstructure:"name_only_identity"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`

	// Types holds the registry defaults; NameOnlyIdentity above overrides
	// its field of the same name.
	Types datatype.Options `mapstructure:"-"`
}

// Quoting reports whether identifiers are quoted; unset means quoted.
func (c Config) Quoting() bool {
	return c.QuoteIdentifiers == nil || *c.QuoteIdentifiers
}

func (c Config) Validate() error {
	if c.Name == "" {
		return errs.New(errs.ErrKindInvalidInput, "connection name is required")
	}
	if c.Driver == "" {
		return errs.Newf(errs.ErrKindInvalidInput, "connection %s: driver is required", c.Name)
	}
	if c.DSN == "" {
		return errs.Newf(errs.ErrKindInvalidInput, "connection %s: dsn is required", c.Name)
	}
	return nil
}

// sqlDriverName maps configured driver names to the database/sql names the
// drivers register.
func sqlDriverName(name string) string {
	switch strings.ToLower(name) {
	case "postgres", "postgresql":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlserver", "mssql":
		return "sqlserver"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return strings.ToLower(name)
	}
}

// Open connects and loads the native types of the dialect into a new
// registry. The "pgx" driver opens a pgx pool; every other driver goes
// through database/sql.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.L()
	}
	d, err := dialect.GetDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	reg, err := newRegistry(cfg, d)
	if err != nil {
		return nil, err
	}
	b := base{
		cfg:     cfg,
		dialect: d,
		schema:  defaultSchema(cfg, d),
		reg:     reg,
		log:     log.With().Str("connection", cfg.Name).Logger(),
	}
	if strings.EqualFold(cfg.Driver, "pgx") {
		return openPgx(ctx, b)
	}
	return openSQL(ctx, b)
}

func newRegistry(cfg Config, d dialect.Dialect) (*datatype.Registry, error) {
	opts := cfg.Types
	opts.NameOnlyIdentity = cfg.NameOnlyIdentity || d.NameOnlyIdentity()
	reg := datatype.NewRegistry(cfg.Name, opts)
	if err := reg.Load(d.NativeTypes()); err != nil {
		return nil, errs.Wrapf(errs.ErrKindInvalidInput, err, "connection %s: loading %s types", cfg.Name, d.Name())
	}
	return reg, nil
}

// defaultSchema is the configured schema, else the database named in a
// mysql DSN, else the dialect default.
func defaultSchema(cfg Config, d dialect.Dialect) string {
	if cfg.Schema != "" {
		return d.DefaultSchema(cfg.Schema)
	}
	if d.Name() == "mysql" {
		if mc, err := mysql.ParseDSN(cfg.DSN); err == nil {
			return mc.DBName
		}
	}
	return d.DefaultSchema("")
}
