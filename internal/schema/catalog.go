package schema

import (
	"strings"

	"db-relay/internal/datatype"
	"db-relay/internal/errs"
	"db-relay/internal/logger"
)

// Catalog is the set of relations of one connection and schema, in
// insertion order. Lookups are case-insensitive.
type Catalog struct {
	connection string
	schema     string
	types      *datatype.Registry
	log        *logger.Logger

	relations []*Relation
	byName    map[string]*Relation
}

// NewCatalog creates an empty catalog. A nil log uses the global logger.
func NewCatalog(connection, schema string, reg *datatype.Registry, log *logger.Logger) *Catalog {
	return &Catalog{
		connection: connection,
		schema:     schema,
		types:      reg,
		log:        log,
		byName:     make(map[string]*Relation),
	}
}

func (c *Catalog) Connection() string { return c.connection }
func (c *Catalog) Schema() string { return c.schema }
func (c *Catalog) Types() *datatype.Registry { return c.types }
func (c *Catalog) Len() int { return len(c.relations) }

// Relations returns the relations in insertion order.
func (c *Catalog) Relations() []*Relation {
	return append([]*Relation(nil), c.relations...)
}

// Relation finds a relation by name.
func (c *Catalog) Relation(name string) (*Relation, bool) {
	r, ok := c.byName[strings.ToLower(name)]
	return r, ok
}

// GetOrCreate returns the relation named name, creating it with kind.
func (c *Catalog) GetOrCreate(name string, kind Kind) *Relation {
	if r, ok := c.Relation(name); ok {
		return r
	}
	r := NewRelation(Path{Schema: c.schema, Name: name}, kind, c.types)
	r.catalog = c
	c.relations = append(c.relations, r)
	c.byName[strings.ToLower(name)] = r
	return r
}

// Add attaches a detached relation. Names must be unique.
func (c *Catalog) Add(r *Relation) error {
	if r.catalog != nil && r.catalog != c {
		return errs.Newf(errs.ErrKindModeling, "the relation %s already belongs to the catalog %s", r, r.catalog.connection)
	}
	if existing, ok := c.Relation(r.Name()); ok {
		if existing == r {
			return nil
		}
		return errs.Newf(errs.ErrKindInvalidInput, "the catalog %s already has a relation named %s", c.connection, r.Name())
	}
	r.catalog = c
	c.relations = append(c.relations, r)
	c.byName[strings.ToLower(r.Name())] = r
	return nil
}

// Remove detaches a relation by name.
func (c *Catalog) Remove(name string) {
	key := strings.ToLower(name)
	r, ok := c.byName[key]
	if !ok {
		return
	}
	delete(c.byName, key)
	for i, x := range c.relations {
		if x == r {
			c.relations = append(c.relations[:i], c.relations[i+1:]...)
			break
		}
	}
	r.catalog = nil
}

// ReferencesTo returns the foreign keys of the catalog pointing at rel.
func (c *Catalog) ReferencesTo(rel *Relation) []*ForeignKey {
	var out []*ForeignKey
	for _, r := range c.relations {
		for _, fk := range r.foreignKeys {
			if fk.ForeignRelation() == rel {
				out = append(out, fk)
			}
		}
	}
	return out
}
