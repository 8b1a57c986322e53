// Package datatype maps vendor type names and driver codes to a canonical
// vocabulary and back.
package datatype

import (
	"sync"

	"db-relay/internal/errs"
)

const (
	DefaultCharLength    = 1
	DefaultVarcharLength = 255
)

// Options tune a Registry.
type Options struct {
	// NameOnlyIdentity ignores the driver code when keying types. Some
	// drivers report the same code for unrelated types.
	NameOnlyIdentity bool
	// DefaultCharLength is the assumed length of CHAR and NCHAR.
	DefaultCharLength int
	// DefaultVarcharLength is the assumed length of VARCHAR and NVARCHAR.
	DefaultVarcharLength int
}

// Registry holds the concrete types of one connection. It is safe for
// concurrent use: registration takes the write lock, lookups the read lock.
type Registry struct {
	name string
	opts Options

	mu    sync.RWMutex
	types []*Type
	byKey map[Key]*Type
	other *Type
}

// NewRegistry creates an empty registry. name is used in messages only.
func NewRegistry(name string, opts Options) *Registry {
	if opts.DefaultCharLength <= 0 {
		opts.DefaultCharLength = DefaultCharLength
	}
	if opts.DefaultVarcharLength <= 0 {
		opts.DefaultVarcharLength = DefaultVarcharLength
	}
	return &Registry{
		name:  name,
		opts:  opts,
		byKey: make(map[Key]*Type),
	}
}

func (r *Registry) Name() string { return r.name }

func (r *Registry) Options() Options { return r.opts }

func (r *Registry) key(name string, code int) Key {
	k := Key{Name: Normalize(name), Code: code}
	if r.opts.NameOnlyIdentity {
		k.Code = NoCode
	}
	return k
}

// Load registers a batch of rows: roots first, then aliases, so that an
// alias row may precede its parent in infos.
func (r *Registry) Load(infos []Info) error {
	for _, info := range infos {
		if info.Parent != "" {
			continue
		}
		if _, err := r.Register(info); err != nil {
			return err
		}
	}
	for _, info := range infos {
		if info.Parent == "" {
			continue
		}
		if _, err := r.Register(info); err != nil {
			return err
		}
	}
	return nil
}

// Register adds one row. Registering an existing key returns the type
// already registered and leaves it untouched.
func (r *Registry) Register(info Info) (*Type, error) {
	if Normalize(info.Name) == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "a type needs a name")
	}

	var own *Category
	if info.Category != "" {
		c, ok := CategoryByName(info.Category)
		if !ok {
			return nil, errs.Newf(errs.ErrKindNotFound, "unknown category %q for type %s", info.Category, info.Name)
		}
		own = c
	}

	if info.Parent != "" {
		parent, ok := r.ResolveByName(info.Parent)
		if !ok {
			return nil, errs.Newf(errs.ErrKindNotFound, "the parent type %s of %s is not registered in %s", info.Parent, info.Name, r.name)
		}
		return r.Alias(info.Name, info.Code, parent, own)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := r.key(info.Name, info.Code)
	if t, ok := r.byKey[k]; ok {
		return t, nil
	}

	c := own
	if c == nil {
		c = Cast(info.Name, info.Code)
	}
	t := &Type{
		reg:                 r,
		key:                 k,
		name:                info.Name,
		code:                info.Code,
		category:            c,
		maxPrecision:        info.MaxPrecision,
		defaultPrecision:    info.DefaultPrecision,
		defaultSet:          info.DefaultPrecision != 0,
		minScale:            info.MinScale,
		maxScale:            info.MaxScale,
		nullable:            info.Nullable,
		caseSensitive:       info.CaseSensitive,
		searchable:          info.Searchable,
		unsigned:            info.Unsigned,
		fixedPrecisionScale: info.FixedPrecisionScale,
		autoIncrement:       info.AutoIncrement,
		mandatorySpecifier:  info.MandatorySpecifier,
		literalPrefix:       info.LiteralPrefix,
		literalSuffix:       info.LiteralSuffix,
		createParams:        info.CreateParams,
		priority:            info.Priority,
	}
	r.applyDefaults(t)
	r.add(t)
	return t, nil
}

// applyDefaults fills in what drivers commonly leave out, by category.
func (r *Registry) applyDefaults(t *Type) {
	switch t.category {
	case TinyInt, SmallInt, MediumInt, Integer, BigInt,
		DoublePrecision, Real, Boolean, Date, XML, Other:
		t.minScale, t.maxScale = 0, 0
	case Time, Timestamp, TimeWithTimeZone, TimestampWithTimeZone:
		t.minScale, t.maxScale = 0, 0
		if !t.defaultSet {
			t.defaultPrecision, t.defaultSet = 0, true
		}
		if t.maxPrecision == 0 {
			t.maxPrecision = 6
		}
	case Character, NationalCharacter:
		t.minScale, t.maxScale = 0, 0
		if !t.defaultSet {
			t.defaultPrecision, t.defaultSet = r.opts.DefaultCharLength, true
		}
	case CharacterVarying, NationalCharacterVarying:
		t.minScale, t.maxScale = 0, 0
		if !t.defaultSet {
			t.defaultPrecision, t.defaultSet = r.opts.DefaultVarcharLength, true
		}
		t.mandatorySpecifier = true
	case LongCharacterVarying, Bit, Binary, Varbinary, LongVarbinary, Float:
		t.minScale, t.maxScale = 0, 0
	}
}

// Alias registers name as an alias of parent. Aliases are one level deep:
// aliasing an alias attaches the new type to the alias's own root. A non-nil
// category overrides the one read through the root.
func (r *Registry) Alias(name string, code int, parent *Type, category *Category) (*Type, error) {
	if parent == nil {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "alias %s has no parent", name)
	}
	if parent.reg != r {
		return nil, errs.Newf(errs.ErrKindModeling, "alias %s and its parent %s belong to different registries", name, parent.name)
	}
	root := parent.Root()

	r.mu.Lock()
	defer r.mu.Unlock()

	k := r.key(name, code)
	if k == root.key || k == parent.key {
		return nil, errs.Newf(errs.ErrKindModeling, "the type %s cannot be an alias of itself", name)
	}
	if t, ok := r.byKey[k]; ok {
		return t, nil
	}

	t := &Type{
		reg:      r,
		key:      k,
		name:     name,
		code:     code,
		parent:   root,
		category: category,
	}
	r.add(t)
	return t, nil
}

func (r *Registry) add(t *Type) {
	r.types = append(r.types, t)
	r.byKey[t.key] = t
	if r.other == nil && t.Category() == Other && !t.IsAlias() {
		r.other = t
	}
}

// Owns reports whether t was registered in r.
func (r *Registry) Owns(t *Type) bool { return t != nil && t.reg == r }

// Types returns the registered types in registration order.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Type, len(r.types))
	copy(out, r.types)
	return out
}

// Len is the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// Lookup returns the type registered under exactly (name, code).
func (r *Registry) Lookup(name string, code int) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byKey[r.key(name, code)]
	return t, ok
}

// ResolveByName returns the type whose name is name, preferring roots, then
// the best type of the category that name spells.
func (r *Registry) ResolveByName(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName(name)
}

func (r *Registry) byName(name string) (*Type, bool) {
	n := Normalize(name)
	if n == "" {
		return nil, false
	}
	var alias *Type
	for _, t := range r.types {
		if t.key.Name != n {
			continue
		}
		if !t.IsAlias() {
			return t, true
		}
		if alias == nil {
			alias = t
		}
	}
	if alias != nil {
		return alias, true
	}
	if c, ok := CategoryByName(n); ok && c != Other {
		if t := r.bestOf(c); t != nil {
			return t, true
		}
	}
	return nil, false
}

// ResolveByCode returns the best type registered with code. Unknown codes
// resolve to the OTHER type of the registry.
func (r *Registry) ResolveByCode(code int) *Type {
	r.mu.RLock()
	t := r.byCode(code)
	r.mu.RUnlock()
	if t != nil {
		return t
	}
	return r.OtherType()
}

func (r *Registry) byCode(code int) *Type {
	var best *Type
	for _, t := range r.types {
		if t.code != code {
			continue
		}
		if best == nil || better(t, best) {
			best = t
		}
	}
	return best
}

// better orders candidates: roots before aliases, then higher priority.
// Registration order breaks ties, so the caller keeps the earlier one.
func better(t, than *Type) bool {
	if t.IsAlias() != than.IsAlias() {
		return !t.IsAlias()
	}
	return t.Priority() > than.Priority()
}

// Resolve finds the type for a (name, code) pair read from catalog
// metadata. An exact key wins; otherwise the code decides unless it is the
// OTHER code or absent, then the name. Anything unmatched is OTHER.
func (r *Registry) Resolve(name string, code int) (*Type, error) {
	if Normalize(name) == "" && code == NoCode {
		return nil, errs.New(errs.ErrKindInvalidInput, "cannot resolve a type without name and code")
	}

	r.mu.RLock()
	if t, ok := r.byKey[r.key(name, code)]; ok {
		r.mu.RUnlock()
		return t, nil
	}
	if !r.opts.NameOnlyIdentity && code != NoCode && code != CodeOther {
		if t := r.byCode(code); t != nil {
			r.mu.RUnlock()
			return t, nil
		}
	}
	if t, ok := r.byName(name); ok {
		r.mu.RUnlock()
		return t, nil
	}
	r.mu.RUnlock()
	return r.OtherType(), nil
}

// OtherType returns the registered OTHER root, creating it on first use.
func (r *Registry) OtherType() *Type {
	r.mu.RLock()
	t := r.other
	r.mu.RUnlock()
	if t != nil {
		return t
	}
	t, _ = r.Register(Info{Name: Other.Name, Code: CodeOther, Category: Other.Name})
	return t
}

// Translate finds the type of this registry matching src, which usually
// belongs to another registry. Same category first, then the same name,
// then the same value class. The result is always a root.
func (r *Registry) Translate(src *Type) (*Type, error) {
	if src == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "nothing to translate")
	}
	if src.reg == r {
		return src.Root(), nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c := src.Category()
	if c != Other {
		if t := r.bestOf(c); t != nil {
			return t.Root(), nil
		}
	}
	if t, ok := r.byName(src.Name()); ok {
		return t.Root(), nil
	}
	if t := r.bestOfClass(c.Class); t != nil {
		return t.Root(), nil
	}
	return nil, errs.Newf(errs.ErrKindNotFound, "no type in %s matches %s (%s) of %s", r.name, src.Name(), c.Name, src.reg.name)
}

func candidate(t *Type) bool {
	c := t.Category()
	if c == Other {
		return false
	}
	if t.Unsigned() && c.Class != ClassString && c.Class != ClassBool {
		return false
	}
	return true
}

// bestOf picks the type of category c with the highest priority. Among
// types of that priority, one named after the category or an alias of it
// wins.
func (r *Registry) bestOf(c *Category) *Type {
	var named, top *Type
	for _, t := range r.types {
		if t.Category() != c || !candidate(t) {
			continue
		}
		if top == nil || t.Priority() > top.Priority() {
			top = t
			named = nil
		}
		if t.Priority() == top.Priority() && named == nil && c.Matches(t.name) {
			named = t
		}
	}
	if named != nil {
		return named
	}
	return top
}

// ResolveByClass returns the preferred type for a value class.
func (r *Registry) ResolveByClass(class ValueClass) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t := r.bestOfClass(class)
	if t == nil {
		return nil, false
	}
	return t.Root(), true
}

// bestOfClass picks the best type across all categories of one value class,
// preferring the category with the highest priority.
func (r *Registry) bestOfClass(class ValueClass) *Type {
	var best *Type
	for _, c := range categories {
		if c.Class != class || c == Other {
			continue
		}
		t := r.bestOf(c)
		if t == nil {
			continue
		}
		if best == nil || c.Priority > best.Category().Priority {
			best = t
		}
	}
	return best
}
