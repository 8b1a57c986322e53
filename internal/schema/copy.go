package schema

import (
	"strings"

	"db-relay/internal/datatype"
	"db-relay/internal/errs"
)

// translate maps a column type of another relation into the registry of r.
func (r *Relation) translate(t *datatype.Type) (*datatype.Type, error) {
	if r.types.Owns(t) {
		return t, nil
	}
	return r.types.Translate(t)
}

// CopyStructure copies the columns, the primary key and the unique keys of
// from. Types are translated through the registry of r.
func (r *Relation) CopyStructure(from *Relation) error {
	for _, src := range from.columns {
		typ, err := r.translate(src.typ)
		if err != nil {
			return errs.Wrapf(errs.KindOf(err), err, "cannot copy the column %s of %s into %s", src.name, from, r)
		}
		if _, err := r.GetOrCreateColumn(src.name, typ, withDefinitionOf(src)); err != nil {
			return err
		}
	}
	if err := r.copyPrimaryKey(from); err != nil {
		return err
	}
	return r.copyUniqueKeys(from)
}

// MergeStructure adds the columns of from that r lacks, takes its primary
// key when r has none and adds its unique keys. Nullability is aligned by
// position.
func (r *Relation) MergeStructure(from *Relation) error {
	for _, src := range from.columns {
		if r.HasColumn(src.name) {
			continue
		}
		typ, err := r.translate(src.typ)
		if err != nil {
			return errs.Wrapf(errs.KindOf(err), err, "cannot merge the column %s of %s into %s", src.name, from, r)
		}
		_, err = r.GetOrCreateColumn(src.name, typ,
			WithPrecision(src.precision), WithScale(src.scale), WithComment(src.comment))
		if err != nil {
			return err
		}
	}
	if r.primaryKey == nil {
		if err := r.copyPrimaryKey(from); err != nil {
			return err
		}
	}
	if err := r.copyUniqueKeys(from); err != nil {
		return err
	}
	for _, src := range from.columns {
		if c, ok := r.ColumnAt(src.position); ok {
			c.nullable = src.nullable
		}
	}
	return nil
}

func (r *Relation) copyPrimaryKey(from *Relation) error {
	if from.primaryKey == nil {
		return nil
	}
	pk, err := r.SetPrimaryKey(from.primaryKey.ColumnNames()...)
	if err != nil {
		return err
	}
	pk.Name = from.primaryKey.Name
	return nil
}

func (r *Relation) copyUniqueKeys(from *Relation) error {
	for _, src := range from.uniqueKeys {
		uk, err := r.AddUniqueKey(src.ColumnNames()...)
		if err != nil {
			return err
		}
		if uk.Name == "" {
			uk.Name = src.Name
		}
	}
	return nil
}

// CopyForeignKeys recreates the foreign keys of from on r. The referenced
// relation is looked up among the siblings of r, under the name given by
// nameMap or else under its own name. A reference that cannot be rebuilt
// is logged and skipped.
func (r *Relation) CopyForeignKeys(from *Relation, nameMap map[string]string) error {
	for _, src := range from.foreignKeys {
		foreign := src.ForeignRelation()
		name := mappedName(nameMap, foreign.Name())

		sibling, ok := r.Sibling(name)
		if !ok {
			r.log().With().Str("relation", r.String()).Str("foreign", name).Logger().
				Warnf("The foreign key %s was not copied: the foreign table (%s) does not exist", keyLabel(src.Name), name)
			continue
		}
		if sibling.primaryKey == nil || !sameColumns(sibling.primaryKey.columns, src.Target().columns) {
			r.log().With().Str("relation", r.String()).Str("foreign", sibling.String()).Logger().
				Warnf("The foreign key %s was not copied: the primary key of %s does not match the one of %s", keyLabel(src.Name), sibling, foreign)
			continue
		}

		fk, err := r.AddForeignKeyTo(sibling, src.ColumnNames()...)
		if err != nil {
			return err
		}
		if fk.Name == "" {
			fk.Name = src.Name
		}
	}
	return nil
}

// CopyDefinition copies the structure and then the foreign keys.
func (r *Relation) CopyDefinition(from *Relation, nameMap map[string]string) error {
	if err := r.CopyStructure(from); err != nil {
		return err
	}
	return r.CopyForeignKeys(from, nameMap)
}

// MergeDefinition merges the structure and then copies the foreign keys.
func (r *Relation) MergeDefinition(from *Relation, nameMap map[string]string) error {
	if err := r.MergeStructure(from); err != nil {
		return err
	}
	return r.CopyForeignKeys(from, nameMap)
}

func mappedName(nameMap map[string]string, name string) string {
	if to, ok := nameMap[name]; ok {
		return to
	}
	for from, to := range nameMap {
		if strings.EqualFold(from, name) {
			return to
		}
	}
	return name
}

func keyLabel(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}
