package schema

import (
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"db-relay/internal/errs"
)

// Manifest is the YAML form of a set of authored relations.
type Manifest struct {
	Relations []RelationSpec `yaml:"relations"`
}

type RelationSpec struct {
	Name        string           `yaml:"name"`
	Kind        string           `yaml:"kind,omitempty"`
	Query       string           `yaml:"query,omitempty"`
	Comment     string           `yaml:"comment,omitempty"`
	Columns     []ColumnSpec     `yaml:"columns"`
	PrimaryKey  []string         `yaml:"primary_key,omitempty"`
	UniqueKeys  [][]string       `yaml:"unique_keys,omitempty"`
	ForeignKeys []ForeignKeySpec `yaml:"foreign_keys,omitempty"`
}

type ColumnSpec struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Precision int    `yaml:"precision,omitempty"`
	Scale     int    `yaml:"scale,omitempty"`
	Nullable  *bool  `yaml:"nullable,omitempty"`
	Comment   string `yaml:"comment,omitempty"`
}

type ForeignKeySpec struct {
	Name       string   `yaml:"name,omitempty"`
	Columns    []string `yaml:"columns"`
	References string   `yaml:"references"`
}

// LoadManifestFile reads a manifest from path.
func LoadManifestFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()
	return ReadManifest(f)
}

// ReadManifest decodes a manifest.
func ReadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid manifest", err)
	}
	return &m, nil
}

// Build adds the relations of the manifest to cat. Relations are created
// first so that foreign keys may reference a relation declared later.
func (m *Manifest) Build(cat *Catalog) ([]*Relation, error) {
	reg := cat.Types()
	out := make([]*Relation, 0, len(m.Relations))

	for _, spec := range m.Relations {
		if err := ValidateName(spec.Name); err != nil {
			return nil, err
		}
		kind := KindTable
		if spec.Kind != "" {
			kind = ParseKind(spec.Kind)
		}
		r := cat.GetOrCreate(spec.Name, kind)
		r.query = spec.Query
		r.comment = spec.Comment

		for _, cs := range spec.Columns {
			if err := ValidateName(cs.Name); err != nil {
				return nil, err
			}
			typ, ok := reg.ResolveByName(cs.Type)
			if !ok {
				return nil, errs.Newf(errs.ErrKindNotFound, "the type %s of %s.%s is unknown to %s", cs.Type, spec.Name, cs.Name, reg.Name())
			}
			opts := []ColumnOption{WithPrecision(cs.Precision), WithScale(cs.Scale), WithComment(cs.Comment)}
			if cs.Nullable != nil {
				opts = append(opts, WithNullable(*cs.Nullable))
			}
			if _, err := r.GetOrCreateColumn(cs.Name, typ, opts...); err != nil {
				return nil, err
			}
		}
		if len(spec.PrimaryKey) > 0 {
			if _, err := r.SetPrimaryKey(spec.PrimaryKey...); err != nil {
				return nil, err
			}
		}
		for _, uk := range spec.UniqueKeys {
			if _, err := r.AddUniqueKey(uk...); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}

	for i, spec := range m.Relations {
		r := out[i]
		for _, fs := range spec.ForeignKeys {
			foreign, ok := cat.Relation(fs.References)
			if !ok {
				return nil, errs.Newf(errs.ErrKindNotFound, "the foreign table (%s) of %s does not exist", fs.References, r)
			}
			fk, err := r.AddForeignKeyTo(foreign, fs.Columns...)
			if err != nil {
				return nil, err
			}
			fk.Name = fs.Name
		}
	}
	return out, nil
}

// ManifestOf renders relations back into a manifest.
func ManifestOf(relations []*Relation) *Manifest {
	m := &Manifest{}
	for _, r := range relations {
		spec := RelationSpec{Name: r.Name(), Kind: r.kind.String(), Query: r.query, Comment: r.comment}
		for _, c := range r.columns {
			nullable := c.nullable
			spec.Columns = append(spec.Columns, ColumnSpec{
				Name:      c.name,
				Type:      c.typ.Name(),
				Precision: c.precision,
				Scale:     c.scale,
				Nullable:  &nullable,
				Comment:   c.comment,
			})
		}
		if r.primaryKey != nil {
			spec.PrimaryKey = r.primaryKey.ColumnNames()
		}
		for _, uk := range r.uniqueKeys {
			spec.UniqueKeys = append(spec.UniqueKeys, uk.ColumnNames())
		}
		for _, fk := range r.foreignKeys {
			spec.ForeignKeys = append(spec.ForeignKeys, ForeignKeySpec{
				Name:       fk.Name,
				Columns:    fk.ColumnNames(),
				References: fk.ForeignRelation().Name(),
			})
		}
		m.Relations = append(m.Relations, spec)
	}
	return m
}

// Write encodes the manifest as YAML.
func (m *Manifest) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Close()
}
