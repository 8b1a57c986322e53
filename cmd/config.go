package cmd

import (
	"fmt"
	"strings"

	"db-relay/internal/datatype"
	"db-relay/internal/driver"
	"db-relay/internal/engine"
	"db-relay/internal/pump"
	"db-relay/internal/scriptstore"

	"github.com/spf13/viper"
)

// ConnConfig is one entry of the connections list.
type ConnConfig struct {
	driver.Config `mapstructure:",squash"`
	Active        bool `mapstructure:"active"`
}

type TypeSettings struct {
	DefaultCharLength    int `mapstructure:"default_char_length"`
	DefaultVarcharLength int `mapstructure:"default_varchar_length"`
}

type TransferSettings struct {
	Operation        string   `mapstructure:"operation"`
	TargetOperations []string `mapstructure:"target_operations"`
	Mapping          string   `mapstructure:"mapping"`
	Strict           bool     `mapstructure:"strict"`
	FetchSize        int      `mapstructure:"fetch_size"`
	BufferSize       int      `mapstructure:"buffer_size"`
	BatchSize        int      `mapstructure:"batch_size"`
	Workers          int      `mapstructure:"workers"`
	CommitFrequency  int      `mapstructure:"commit_frequency"`
}

type FillSettings struct {
	Count  int      `mapstructure:"count"`
	Seed   int64    `mapstructure:"seed"`
	Tables []string `mapstructure:"tables"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ScriptSettings struct {
	Out                string `mapstructure:"out"`
	scriptstore.Config `mapstructure:",squash"`
}

// Settings is the decoded configuration file.
type Settings struct {
	Connections []ConnConfig     `mapstructure:"connections"`
	Types       TypeSettings     `mapstructure:"types"`
	Transfer    TransferSettings `mapstructure:"transfer"`
	Fill        FillSettings     `mapstructure:"fill"`
	Log         LogSettings      `mapstructure:"log"`
	Script      ScriptSettings   `mapstructure:"script"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("fill.count", 100)
	v.SetDefault("transfer.operation", "copy")
	v.SetDefault("transfer.mapping", "name")
	v.SetDefault("transfer.strict", true)
}

func loadSettings(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &s, nil
}

// Connection returns the connection named name or, when name is empty, the
// active one. A single configured connection is active by default.
func (s *Settings) Connection(name string) (driver.Config, error) {
	if name != "" {
		for _, c := range s.Connections {
			if strings.EqualFold(c.Name, name) {
				return s.withTypes(c.Config), nil
			}
		}
		return driver.Config{}, fmt.Errorf("no connection named %q in config", name)
	}
	if len(s.Connections) == 1 {
		return s.withTypes(s.Connections[0].Config), nil
	}

	var active *ConnConfig
	count := 0
	for i := range s.Connections {
		if s.Connections[i].Active {
			active = &s.Connections[i]
			count++
		}
	}
	if count == 0 {
		return driver.Config{}, fmt.Errorf("no active connection found in config (set active: true or use --connection)")
	}
	if count > 1 {
		return driver.Config{}, fmt.Errorf("multiple active connections found (only one can be active)")
	}
	return s.withTypes(active.Config), nil
}

func (s *Settings) withTypes(c driver.Config) driver.Config {
	c.Types = datatype.Options{
		DefaultCharLength:    s.Types.DefaultCharLength,
		DefaultVarcharLength: s.Types.DefaultVarcharLength,
	}
	return c
}

// TransferOptions reads the transfer section.
func (s *Settings) TransferOptions() (engine.TransferOptions, error) {
	t := s.Transfer
	op, err := engine.ParseOperation(t.Operation)
	if err != nil {
		return engine.TransferOptions{}, err
	}
	target, err := engine.ParseTargetOps(t.TargetOperations)
	if err != nil {
		return engine.TransferOptions{}, err
	}
	mapping, err := engine.ParseMapping(t.Mapping)
	if err != nil {
		return engine.TransferOptions{}, err
	}
	return engine.TransferOptions{Operation: op, Target: target, Mapping: mapping, Strict: t.Strict}, nil
}

// PumpOptions reads the pump tuning of the transfer section.
func (s *Settings) PumpOptions() pump.Options {
	t := s.Transfer
	return pump.Options{
		FetchSize:       t.FetchSize,
		BufferSize:      t.BufferSize,
		BatchSize:       t.BatchSize,
		Workers:         t.Workers,
		CommitFrequency: t.CommitFrequency,
		Strict:          t.Strict,
	}
}
