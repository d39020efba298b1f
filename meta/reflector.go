package meta

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unsafe"
)

// Reflector is the cached description of one struct type: lookup tables
// from property names to resolved getter/setter invokers, their types, and
// the external-name mapping. A Reflector is built once per type, is
// immutable after construction, and is shared by every caller for the
// lifetime of the process.
type Reflector struct {
	typ        reflect.Type
	collection string

	getters     map[string]Invoker
	setters     map[string]Invoker
	getterTypes map[string]reflect.Type
	setterTypes map[string]reflect.Type

	properties map[string]*Property // canonical name -> property
	external   map[string]*Property // external name -> property
	aliases    map[string]string    // alias -> canonical name
	caseIndex  map[string]string    // UPPER(name or alias) -> canonical name

	readable []string // sorted readable property names
	writable []string // sorted writable property names

	generated     []generatedValue
	caseSensitive bool
}

// Property is the descriptive record of one resolved property.
type Property struct {
	Name     string       // canonical property name (firstName)
	External string       // external name (first_name)
	Type     reflect.Type // resolved getter type, or setter type if write-only
	ReadOnly bool

	// Field-backed properties carry their storage location.
	FromField bool
	Index     []int   // embedded field index chain
	Offset    uintptr // absolute offset, valid when HasOffset
	HasOffset bool    // false when the embedding chain crosses a pointer

	// DirectSet writes through the field offset without reflection.
	// Only present on field-backed properties with HasOffset.
	DirectSet func(structPtr unsafe.Pointer, val any)

	// Method-backed properties record the accessor method names.
	GetterMethod string
	SetterMethod string

	Tag *ParsedTag
}

type generatedValue struct {
	prop string
	gen  IDGenerator
}

// Type returns the described struct type.
func (r *Reflector) Type() reflect.Type { return r.typ }

// Collection returns the default external collection (table) name for the
// type, derived from the naming strategy.
func (r *Reflector) Collection() string { return r.collection }

// Getter returns the resolved getter invoker for a property.
func (r *Reflector) Getter(name string) (Invoker, error) {
	inv, ok := r.getters[name]
	if !ok {
		return nil, fmt.Errorf("reflector: %w %q on %s", ErrNoGetter, name, r.typ)
	}
	return inv, nil
}

// Setter returns the resolved setter invoker for a property.
func (r *Reflector) Setter(name string) (Invoker, error) {
	inv, ok := r.setters[name]
	if !ok {
		return nil, fmt.Errorf("reflector: %w %q on %s", ErrNoSetter, name, r.typ)
	}
	return inv, nil
}

// GetterType returns the resolved result type of a property's getter.
func (r *Reflector) GetterType(name string) (reflect.Type, error) {
	t, ok := r.getterTypes[name]
	if !ok {
		return nil, fmt.Errorf("reflector: %w %q on %s", ErrNoGetter, name, r.typ)
	}
	return t, nil
}

// SetterType returns the resolved parameter type of a property's setter.
func (r *Reflector) SetterType(name string) (reflect.Type, error) {
	t, ok := r.setterTypes[name]
	if !ok {
		return nil, fmt.Errorf("reflector: %w %q on %s", ErrNoSetter, name, r.typ)
	}
	return t, nil
}

// HasGetter reports whether the type has a readable property by name.
func (r *Reflector) HasGetter(name string) bool {
	_, ok := r.getters[name]
	return ok
}

// HasSetter reports whether the type has a writable property by name.
func (r *Reflector) HasSetter(name string) bool {
	_, ok := r.setters[name]
	return ok
}

// ReadableNames returns the sorted names of all readable properties.
// The returned slice is shared and must not be modified.
func (r *Reflector) ReadableNames() []string { return r.readable }

// WritableNames returns the sorted names of all writable properties.
// The returned slice is shared and must not be modified.
func (r *Reflector) WritableNames() []string { return r.writable }

// FindProperty resolves a lookup name to the canonical property name.
// Aliases always resolve; case-insensitive resolution applies unless the
// owning Context was configured case-sensitive.
func (r *Reflector) FindProperty(name string) (string, bool) {
	if _, ok := r.properties[name]; ok {
		return name, true
	}
	if canonical, ok := r.aliases[name]; ok {
		return canonical, true
	}
	if r.caseSensitive {
		return "", false
	}
	canonical, ok := r.caseIndex[strings.ToUpper(name)]
	return canonical, ok
}

// Property returns the descriptive record for a canonical property name.
func (r *Reflector) Property(name string) (*Property, bool) {
	p, ok := r.properties[name]
	return p, ok
}

// ExternalProperty returns the property mapped to an external name.
func (r *Reflector) ExternalProperty(external string) (*Property, bool) {
	p, ok := r.external[external]
	return p, ok
}

// Properties returns all properties sorted by canonical name.
// The returned slice is shared and must not be modified.
func (r *Reflector) Properties() []*Property {
	props := make([]*Property, 0, len(r.properties))
	for _, name := range r.propertyNames() {
		props = append(props, r.properties[name])
	}
	return props
}

// Get reads a property from target, which must be a pointer to the
// described struct type.
func (r *Reflector) Get(target any, name string) (any, error) {
	inv, err := r.Getter(name)
	if err != nil {
		return nil, err
	}
	return inv.Invoke(target)
}

// Set writes a property on target, which must be a pointer to the
// described struct type.
func (r *Reflector) Set(target any, name string, value any) error {
	inv, err := r.Setter(name)
	if err != nil {
		return err
	}
	_, err = inv.Invoke(target, value)
	return err
}

// New instantiates the described type and populates fields tagged with a
// value generator. The result is a pointer to a zero value of the type
// with generated properties filled in.
func (r *Reflector) New() (any, error) {
	v := reflect.New(r.typ).Interface()
	for _, g := range r.generated {
		id, err := g.gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("reflector: generate %q on %s: %w", g.prop, r.typ, err)
		}
		if err := r.Set(v, g.prop, id); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// RowScanner is the row-shaped contract ScanRow consumes. *sql.Rows and
// pgx-style rows both satisfy it.
type RowScanner interface {
	Scan(dest ...any) error
	Columns() ([]string, error)
}

// ScanRow scans the current row into dest, matching columns against
// external property names first, then through FindProperty, so canonical
// names, aliases and case-folded lookups all bind. Unmapped columns are
// discarded.
func (r *Reflector) ScanRow(dest any, row RowScanner) error {
	columns, err := row.Columns()
	if err != nil {
		return err
	}

	targets := make([]any, len(columns))
	matched := make([]*Property, len(columns))
	for i, col := range columns {
		targets[i] = new(any)
		p, ok := r.ExternalProperty(col)
		if !ok {
			if canonical, found := r.FindProperty(col); found {
				p, ok = r.properties[canonical]
			}
		}
		if ok && r.HasSetter(p.Name) {
			matched[i] = p
		}
	}

	if err := row.Scan(targets...); err != nil {
		return err
	}

	for i, p := range matched {
		if p == nil {
			continue
		}
		val := *(targets[i].(*any))
		if err := r.Set(dest, p.Name, val); err != nil {
			return fmt.Errorf("reflector: scan column %q: %w", columns[i], err)
		}
	}
	return nil
}

func (r *Reflector) propertyNames() []string {
	names := make([]string, 0, len(r.properties))
	for name := range r.properties {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
