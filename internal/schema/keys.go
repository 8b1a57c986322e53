package schema

// PrimaryKey is the identifying column list of a relation.
type PrimaryKey struct {
	Name     string
	relation *Relation
	columns  []*Column
}

func (k *PrimaryKey) Relation() *Relation { return k.relation }
func (k *PrimaryKey) Columns() []*Column { return append([]*Column(nil), k.columns...) }
func (k *PrimaryKey) ColumnNames() []string {
	return columnNames(k.columns)
}

// ForeignKey references the primary key of another relation, or of the
// same one.
type ForeignKey struct {
	Name     string
	relation *Relation
	columns  []*Column
	target   *PrimaryKey
}

func (k *ForeignKey) Relation() *Relation { return k.relation }
func (k *ForeignKey) Columns() []*Column { return append([]*Column(nil), k.columns...) }
func (k *ForeignKey) ColumnNames() []string { return columnNames(k.columns) }
func (k *ForeignKey) Target() *PrimaryKey { return k.target }
func (k *ForeignKey) ForeignRelation() *Relation { return k.target.relation }

// UniqueKey is a column list whose values are unique per row.
type UniqueKey struct {
	Name     string
	relation *Relation
	columns  []*Column
}

func (k *UniqueKey) Relation() *Relation { return k.relation }
func (k *UniqueKey) Columns() []*Column { return append([]*Column(nil), k.columns...) }
func (k *UniqueKey) ColumnNames() []string { return columnNames(k.columns) }

func columnNames(cols []*Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}
