package pump

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"db-relay/internal/datatype"
	"db-relay/internal/errs"
	"db-relay/internal/logger"
	"db-relay/internal/schema"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// KeyPool collects primary key tuples per relation so that generated
// foreign key columns reference existing rows.
type KeyPool struct {
	mu   sync.RWMutex
	keys map[string][][]any
}

func NewKeyPool() *KeyPool {
	return &KeyPool{keys: make(map[string][][]any)}
}

func (p *KeyPool) Add(relation string, key []any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := strings.ToLower(relation)
	p.keys[name] = append(p.keys[name], key)
}

func (p *KeyPool) Len(relation string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.keys[strings.ToLower(relation)])
}

func (p *KeyPool) pick(relation string, i int) ([]any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := p.keys[strings.ToLower(relation)]
	if len(keys) == 0 {
		return nil, false
	}
	if i < 0 {
		i = -i
	}
	return keys[i%len(keys)], true
}

// Load reads every row of src as a key of relation.
func (p *KeyPool) Load(ctx context.Context, relation string, src RowSource) error {
	return src.Read(ctx, 1000, func(rows [][]any) error {
		for _, r := range rows {
			p.Add(relation, r)
		}
		return nil
	})
}

// MaxRows caps count by the range of the relation's auto-increment
// columns: a tinyint identity holds 127 rows, 255 when unsigned.
func MaxRows(rel *schema.Relation, count int, log *logger.Logger) int {
	if log == nil {
		log = logger.L()
	}
	for _, c := range rel.Columns() {
		if !c.AutoIncrement() {
			continue
		}
		limit := identityLimit(c.Type())
		if limit < count {
			log.Warnf("Table %s: identity column %s (%s) limits the row count to %d",
				rel.Name(), c.Name(), c.Type().Name(), limit)
			count = limit
		}
	}
	return count
}

func identityLimit(t *datatype.Type) int {
	var limit int64
	switch t.Class() {
	case datatype.ClassInt8:
		limit = math.MaxInt8
	case datatype.ClassInt16:
		limit = math.MaxInt16
	case datatype.ClassInt32:
		limit = math.MaxInt32
	default:
		return math.MaxInt32
	}
	if t.Unsigned() {
		limit = limit*2 + 1
	}
	return int(limit)
}

// Generator is a RowSource of synthetic rows for one relation.
type Generator struct {
	rel      *schema.Relation
	cols     []*schema.Column
	meanings []string
	count    int
	pool     *KeyPool
	faker    *gofakeit.Faker
	log      *logger.Logger

	fkFallback map[string]bool
}

// NewGenerator generates count rows for rel. Auto-increment and generated
// columns are left to the database. A zero seed picks a random one.
func NewGenerator(rel *schema.Relation, count int, pool *KeyPool, seed int64, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.L()
	}
	if pool == nil {
		pool = NewKeyPool()
	}
	g := &Generator{
		rel:        rel,
		count:      MaxRows(rel, count, log),
		pool:       pool,
		faker:      gofakeit.New(seed),
		log:        log,
		fkFallback: make(map[string]bool),
	}
	for _, c := range rel.Columns() {
		if c.AutoIncrement() || c.Generated() {
			continue
		}
		g.cols = append(g.cols, c)
		g.meanings = append(g.meanings, Meaning(c.Name(), c.Comment()))
	}
	return g
}

func (g *Generator) Count() int { return g.count }

func (g *Generator) Columns() []string {
	out := make([]string, len(g.cols))
	for i, c := range g.cols {
		out[i] = c.Name()
	}
	return out
}

// Read emits up to Count rows. Rows repeating a primary or unique key of an
// earlier row are dropped; generation gives up after ten attempts per row.
func (g *Generator) Read(ctx context.Context, fetchSize int, emit func(rows [][]any) error) error {
	if len(g.cols) == 0 {
		return errs.Newf(errs.ErrKindPrecondition, "the relation %s has no column to generate", g.rel.Name())
	}
	keys := g.dedupeKeys()
	seen := make([]map[string]bool, len(keys))
	for i := range seen {
		seen[i] = make(map[string]bool)
	}
	pkIdx := g.poolKey()

	chunk := make([][]any, 0, fetchSize)
	made := 0
	for attempt := 0; made < g.count && attempt < g.count*10; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := g.Row(attempt)
		if !g.unique(row, keys, seen) {
			continue
		}
		if pkIdx != nil {
			key := make([]any, len(pkIdx))
			for i, j := range pkIdx {
				key[i] = row[j]
			}
			g.pool.Add(g.rel.Name(), key)
		}
		chunk = append(chunk, row)
		made++
		if len(chunk) >= fetchSize {
			if err := emit(chunk); err != nil {
				return err
			}
			chunk = make([][]any, 0, fetchSize)
		}
	}
	if made < g.count {
		g.log.Warnf("Table %s: generated %d of %d unique rows", g.rel.Name(), made, g.count)
	}
	if len(chunk) > 0 {
		return emit(chunk)
	}
	return nil
}

// dedupeKeys lists the column indexes of the primary and unique keys made
// entirely of generated columns.
func (g *Generator) dedupeKeys() [][]int {
	var groups [][]*schema.Column
	if pk := g.rel.PrimaryKey(); pk != nil {
		groups = append(groups, pk.Columns())
	}
	for _, uk := range g.rel.UniqueKeys() {
		groups = append(groups, uk.Columns())
	}
	var out [][]int
	for _, cols := range groups {
		if idx := g.indexes(cols); idx != nil {
			out = append(out, idx)
		}
	}
	return out
}

// poolKey is the primary key column indexes when the key is generated here.
func (g *Generator) poolKey() []int {
	if pk := g.rel.PrimaryKey(); pk != nil {
		return g.indexes(pk.Columns())
	}
	return nil
}

func (g *Generator) indexes(cols []*schema.Column) []int {
	idx := make([]int, 0, len(cols))
	for _, c := range cols {
		i := g.index(c.Name())
		if i < 0 {
			return nil
		}
		idx = append(idx, i)
	}
	return idx
}

func (g *Generator) index(name string) int {
	for i, c := range g.cols {
		if strings.EqualFold(c.Name(), name) {
			return i
		}
	}
	return -1
}

func (g *Generator) unique(row []any, keys [][]int, seen []map[string]bool) bool {
	sigs := make([]string, len(keys))
	for k, idx := range keys {
		parts := make([]string, len(idx))
		for i, j := range idx {
			parts[i] = fmt.Sprint(row[j])
		}
		sigs[k] = strings.Join(parts, "|")
		if seen[k][sigs[k]] {
			return false
		}
	}
	for k, s := range sigs {
		seen[k][s] = true
	}
	return true
}

// Row generates the row of the given attempt index. Foreign key columns
// take a key of the referenced relation from the pool.
func (g *Generator) Row(index int) []any {
	row := make([]any, len(g.cols))
	set := make([]bool, len(g.cols))

	for _, fk := range g.rel.ForeignKeys() {
		target := fk.ForeignRelation().Name()
		key, ok := g.pool.pick(target, index)
		for j, c := range fk.Columns() {
			i := g.index(c.Name())
			if i < 0 {
				continue
			}
			set[i] = true
			switch {
			case ok && j < len(key):
				row[i] = key[j]
			case c.Nullable():
				row[i] = nil
			default:
				// The referenced relation is loaded later, as in a cycle.
				if !g.fkFallback[target] {
					g.fkFallback[target] = true
					g.log.Warnf("Table %s: no keys of %s yet, foreign key %s falls back to 1", g.rel.Name(), target, fk.Name)
				}
				row[i] = 1
			}
		}
	}

	for i, c := range g.cols {
		if !set[i] {
			row[i] = g.value(c, g.meanings[i], index)
		}
	}
	return row
}

func (g *Generator) value(c *schema.Column, meaning string, index int) any {
	t := c.Type()
	cat := t.Category()
	name := strings.ToLower(c.Name())
	switch c.Class() {
	case datatype.ClassString:
		switch cat {
		case datatype.JSON, datatype.JSONB:
			return fmt.Sprintf(`{"id": %d, "tag": %q}`, index, g.faker.Word())
		case datatype.Other:
			if strings.Contains(strings.ToLower(t.Name()), "uuid") || strings.Contains(strings.ToLower(t.Name()), "uniqueidentifier") {
				return g.faker.UUID()
			}
		}
		return clip(g.text(name, meaning, c.Precision()), c.Precision())
	case datatype.ClassClob:
		return g.faker.Paragraph(1, 3, 12, " ")
	case datatype.ClassXML:
		return fmt.Sprintf("<item><name>%s</name></item>", g.faker.Word())
	case datatype.ClassDecimal:
		return g.decimal(c.Precision(), c.Scale(), meaning)
	case datatype.ClassBool:
		return g.faker.Bool()
	case datatype.ClassInt8, datatype.ClassInt16, datatype.ClassInt32, datatype.ClassInt64:
		return g.integer(c, name, meaning)
	case datatype.ClassFloat32, datatype.ClassFloat64:
		return g.faker.Price(0.99, 99.99)
	case datatype.ClassBytes, datatype.ClassBlob:
		n := 8
		if p := c.Precision(); p > 0 && p < n {
			n = p
		}
		return []byte(g.faker.LetterN(uint(n)))
	case datatype.ClassDate:
		d := g.moment()
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	case datatype.ClassTime, datatype.ClassTimeTZ:
		return g.moment().Format("15:04:05")
	case datatype.ClassTimestamp, datatype.ClassTimestampTZ:
		return g.moment().Truncate(time.Second)
	case datatype.ClassURL:
		return g.faker.URL()
	}
	if c.Nullable() {
		return nil
	}
	return clip(g.faker.Word(), c.Precision())
}

func (g *Generator) moment() time.Time {
	now := time.Now().UTC()
	return g.faker.DateRange(now.AddDate(-1, 0, 0), now)
}

func (g *Generator) text(name, meaning string, length int) string {
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(meaning, w) || strings.Contains(name, w) {
				return true
			}
		}
		return false
	}
	isID := strings.HasSuffix(name, "id")
	switch {
	case has("year"):
		return fmt.Sprintf("%d", 2000+g.faker.Number(0, 25))
	case length > 0 && length <= 2 && has("yesno", "flag", "active"):
		if g.faker.Bool() {
			return "Y"
		}
		return "N"
	case isID:
	case has("email"):
		return g.faker.Email()
	case has("phone"):
		return g.faker.Phone()
	case has("first"):
		return g.faker.FirstName()
	case has("last"):
		return g.faker.LastName()
	case has("name"):
		return g.faker.Name()
	case has("address", "street"):
		return g.faker.Street()
	case has("zipcode", "zip", "postal"):
		return g.faker.Zip()
	case has("city"):
		return g.faker.City()
	case has("country"):
		return g.faker.Country()
	case has("title", "subject"):
		return g.faker.Sentence(3)
	case has("description", "comment", "text", "message"):
		return g.faker.Sentence(10)
	}
	if length > 0 && length < 20 {
		return g.faker.Word()
	}
	return g.faker.Sentence(5)
}

func (g *Generator) integer(c *schema.Column, name, meaning string) any {
	if strings.Contains(meaning, "yesno") || strings.Contains(name, "active") || strings.Contains(name, "enabled") {
		return g.faker.Number(0, 1)
	}
	if strings.Contains(name, "year") || strings.Contains(meaning, "year") {
		return 2000 + g.faker.Number(0, 25)
	}
	upper := 50000
	switch c.Class() {
	case datatype.ClassInt8:
		upper = math.MaxInt8
	case datatype.ClassInt16:
		upper = 30000
	}
	if p := c.Precision(); p > 0 && p < 5 {
		if limit := int(math.Pow10(p)) - 1; limit < upper {
			upper = limit
		}
	}
	return g.faker.Number(1, upper)
}

// decimal fits precision and scale: numeric(5,2) stays below 1000.
func (g *Generator) decimal(precision, scale int, meaning string) decimal.Decimal {
	if precision <= 0 {
		precision = 10
	}
	if scale < 0 || scale > precision {
		scale = 0
	}
	digits := precision - scale
	if digits > 6 {
		digits = 6
	}
	upper := math.Pow10(digits) - math.Pow10(-scale)
	if strings.Contains(meaning, "price") && upper > 1000 {
		upper = 1000
	}
	return decimal.NewFromFloat(g.faker.Float64Range(0, upper)).Truncate(int32(scale))
}

func clip(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit])
	}
	return s
}
