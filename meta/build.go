package meta

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Construction of a Reflector. Mirrors the layering the lookup tables
// depend on: getter methods first, then setter methods, then fields filling
// whatever the methods did not claim. All resolution happens here, once per
// type; after build returns the tables are never written again.

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type getterCandidate struct {
	method reflect.Method
	out    reflect.Type
}

type setterCandidate struct {
	method reflect.Method
	in     reflect.Type
	hasErr bool
}

type fieldCandidate struct {
	field     reflect.StructField
	tag       *ParsedTag
	index     []int
	offset    uintptr
	hasOffset bool
	depth     int
	path      string
}

func build(t reflect.Type, ctx *Context) (*Reflector, error) {
	r := &Reflector{
		typ:           t,
		collection:    ctx.naming.CollectionName(t.Name()),
		getters:       make(map[string]Invoker),
		setters:       make(map[string]Invoker),
		getterTypes:   make(map[string]reflect.Type),
		setterTypes:   make(map[string]reflect.Type),
		properties:    make(map[string]*Property),
		external:      make(map[string]*Property),
		aliases:       make(map[string]string),
		caseIndex:     make(map[string]string),
		caseSensitive: ctx.caseSensitive,
	}

	getterCands, setterCands := collectAccessorMethods(t)
	getterMethods := resolveGetters(r, getterCands)
	setterMethods := resolveSetters(r, setterCands)

	fieldCands, err := collectFields(t, ctx)
	if err != nil {
		return nil, err
	}
	resolveFields(r, fieldCands)

	finishProperties(r, ctx, getterMethods, setterMethods)
	return r, nil
}

// collectAccessorMethods scans the method set of *T for accessor-shaped
// methods and groups them by property name. Both value- and
// pointer-receiver methods appear in the pointer type's method set, and
// promoted methods from embedded types appear exactly once; selectors Go
// itself considers ambiguous are absent from the set entirely.
func collectAccessorMethods(t reflect.Type) (map[string][]getterCandidate, map[string]setterCandidate) {
	pt := reflect.PointerTo(t)
	getters := make(map[string][]getterCandidate)
	setters := make(map[string]setterCandidate)

	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		mt := m.Type

		switch {
		case isGetterName(m.Name) && mt.NumIn() == 1 && mt.NumOut() == 1:
			prop := methodToProperty(m.Name)
			if !isValidPropertyName(prop) {
				continue
			}
			getters[prop] = append(getters[prop], getterCandidate{method: m, out: mt.Out(0)})

		case isSetterName(m.Name) && mt.NumIn() == 2 && mt.NumOut() <= 1:
			hasErr := false
			if mt.NumOut() == 1 {
				if mt.Out(0) != errorType {
					continue
				}
				hasErr = true
			}
			prop := methodToProperty(m.Name)
			if !isValidPropertyName(prop) {
				continue
			}
			// A method set cannot overload a name, so each property has
			// at most one setter method: GetX and IsX collide on the
			// getter side only.
			setters[prop] = setterCandidate{method: m, in: mt.In(1), hasErr: hasErr}
		}
	}

	return getters, setters
}

// resolveGetters picks one getter per property. Two candidates only arise
// from coexisting GetX and IsX forms:
//   - identical bool results: the Is form wins
//   - identical non-bool results: ambiguous
//   - one result type is an interface the other implements: the concrete
//     type wins
//   - anything else: ambiguous
//
// An ambiguous property still gets an entry so the conflict is reported on
// use rather than silently dropped.
func resolveGetters(r *Reflector, cands map[string][]getterCandidate) map[string]string {
	methodNames := make(map[string]string, len(cands))

	for prop, list := range cands {
		winner := &list[0]
		ambiguous := false

		for i := 1; i < len(list); i++ {
			c := &list[i]
			switch {
			case c.out == winner.out:
				if winner.out.Kind() != reflect.Bool {
					ambiguous = true
				} else if strings.HasPrefix(c.method.Name, isPrefix) {
					winner = c
				}
			case c.out.Kind() == reflect.Interface && winner.out.Implements(c.out):
				// keep winner: its result type is the narrower of the two
			case winner.out.Kind() == reflect.Interface && c.out.Implements(winner.out):
				winner = c
			default:
				ambiguous = true
			}
			if ambiguous {
				break
			}
		}

		if ambiguous {
			r.getters[prop] = &ambiguousInvoker{
				typ: winner.out,
				err: fmt.Errorf("reflector: %w %q on %s: conflicting getter methods with incompatible result types",
					ErrAmbiguous, prop, r.typ),
			}
		} else {
			r.getters[prop] = &methodInvoker{name: winner.method.Name, index: winner.method.Index, typ: winner.out}
			methodNames[prop] = winner.method.Name
		}
		r.getterTypes[prop] = winner.out
	}

	return methodNames
}

// resolveSetters records the setter method for each property.
func resolveSetters(r *Reflector, cands map[string]setterCandidate) map[string]string {
	methodNames := make(map[string]string, len(cands))

	for prop, c := range cands {
		r.setters[prop] = &methodInvoker{
			name:   c.method.Name,
			index:  c.method.Index,
			typ:    c.in,
			setter: true,
			hasErr: c.hasErr,
		}
		r.setterTypes[prop] = c.in
		methodNames[prop] = c.method.Name
	}

	return methodNames
}

// collectFields walks the struct breadth-first through embedded structs and
// groups exported fields by property name. Depth is recorded so shallower
// declarations shadow deeper ones during resolution. A type already visited
// at a shallower depth is not revisited, which also terminates pointer
// embedding cycles.
func collectFields(t reflect.Type, ctx *Context) (map[string][]fieldCandidate, error) {
	type node struct {
		t         reflect.Type
		index     []int
		offset    uintptr
		hasOffset bool
		depth     int
		path      string
	}

	cands := make(map[string][]fieldCandidate)
	queue := []node{{t: t, hasOffset: true, path: t.Name()}}
	seen := make(map[reflect.Type]int)

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if d, ok := seen[n.t]; ok && d < n.depth {
			continue
		}
		seen[n.t] = n.depth

		for i := 0; i < n.t.NumField(); i++ {
			f := n.t.Field(i)
			if !f.IsExported() {
				continue
			}

			tag, err := ctx.tags.Parse(f.Name, f.Tag)
			if err != nil {
				return nil, fmt.Errorf("reflector: %s: %w", n.path, err)
			}
			if tag.Skip {
				continue
			}

			index := append(slices.Clone(n.index), i)
			path := n.path + "." + f.Name

			// Untagged embedded structs flatten into the parent; a tag
			// turns the embed into a regular property.
			if f.Anonymous && f.Tag.Get(ctx.tagName) == "" {
				et := f.Type
				ptrEmbed := et.Kind() == reflect.Ptr
				if ptrEmbed {
					et = et.Elem()
				}
				if et.Kind() == reflect.Struct {
					child := node{
						t:         et,
						index:     index,
						hasOffset: n.hasOffset && !ptrEmbed,
						depth:     n.depth + 1,
						path:      path,
					}
					if child.hasOffset {
						child.offset = n.offset + f.Offset
					}
					queue = append(queue, child)
					continue
				}
			}

			prop := decapitalize(f.Name)
			if !isValidPropertyName(prop) {
				continue
			}
			cands[prop] = append(cands[prop], fieldCandidate{
				field:     f,
				tag:       tag,
				index:     index,
				offset:    n.offset + f.Offset,
				hasOffset: n.hasOffset,
				depth:     n.depth,
				path:      path,
			})
		}
	}

	return cands, nil
}

// resolveFields fills the lookup tables with field-backed accessors for
// every property the methods did not already claim. The shallowest
// declaration wins; two declarations at the same depth poison the property
// with an ambiguous invoker, mirroring Go's own rule of dropping promoted
// selectors that collide at one embedding depth.
func resolveFields(r *Reflector, cands map[string][]fieldCandidate) {
	for prop, list := range cands {
		minDepth := list[0].depth
		for _, c := range list[1:] {
			if c.depth < minDepth {
				minDepth = c.depth
			}
		}
		atMin := list[:0:0]
		for _, c := range list {
			if c.depth == minDepth {
				atMin = append(atMin, c)
			}
		}

		if len(atMin) > 1 {
			typ := atMin[0].field.Type
			err := fmt.Errorf("reflector: %w %q on %s: declared by %s and %s at the same embedding depth",
				ErrAmbiguous, prop, r.typ, atMin[0].path, atMin[1].path)
			if _, claimed := r.getters[prop]; !claimed {
				r.getters[prop] = &ambiguousInvoker{typ: typ, err: err}
				r.getterTypes[prop] = typ
			}
			if _, claimed := r.setters[prop]; !claimed {
				r.setters[prop] = &ambiguousInvoker{typ: typ, err: err}
				r.setterTypes[prop] = typ
			}
			continue
		}

		w := atMin[0]
		p := &Property{
			Name:      prop,
			External:  w.tag.External,
			Type:      w.field.Type,
			ReadOnly:  w.tag.ReadOnly,
			FromField: true,
			Index:     w.index,
			Offset:    w.offset,
			HasOffset: w.hasOffset,
			Tag:       w.tag,
		}
		if w.hasOffset {
			p.DirectSet = createDirectSetter(w.field.Type, w.offset)
		}
		r.properties[prop] = p

		if _, claimed := r.getters[prop]; !claimed {
			r.getters[prop] = &fieldGetInvoker{name: w.path, index: w.index, typ: w.field.Type}
			r.getterTypes[prop] = w.field.Type
		}
		if _, claimed := r.setters[prop]; !claimed && !w.tag.ReadOnly {
			r.setters[prop] = &fieldSetInvoker{name: w.path, index: w.index, typ: w.field.Type}
			r.setterTypes[prop] = w.field.Type
		}

		for _, alias := range w.tag.Aliases {
			r.aliases[alias] = prop
		}
		if w.tag.Generator != "" {
			if gen, ok := defaultGenerators.Get(w.tag.Generator); ok {
				r.generated = append(r.generated, generatedValue{prop: prop, gen: gen})
			}
		}
	}
}

// finishProperties creates records for purely method-backed properties and
// builds the external and case-insensitive indexes.
func finishProperties(r *Reflector, ctx *Context, getterMethods, setterMethods map[string]string) {
	for prop := range r.getters {
		if _, ok := r.properties[prop]; !ok {
			r.properties[prop] = &Property{Name: prop, External: ctx.naming.ExternalName(prop)}
		}
	}
	for prop := range r.setters {
		if _, ok := r.properties[prop]; !ok {
			r.properties[prop] = &Property{Name: prop, External: ctx.naming.ExternalName(prop)}
		}
	}

	for prop, p := range r.properties {
		if t, ok := r.getterTypes[prop]; ok {
			p.Type = t
		} else if t, ok := r.setterTypes[prop]; ok {
			p.Type = t
		}
		p.GetterMethod = getterMethods[prop]
		p.SetterMethod = setterMethods[prop]
		r.external[p.External] = p
		r.caseIndex[strings.ToUpper(prop)] = prop
	}
	for alias, prop := range r.aliases {
		r.caseIndex[strings.ToUpper(alias)] = prop
	}

	r.readable = sortedKeys(r.getters)
	r.writable = sortedKeys(r.setters)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
