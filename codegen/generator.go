// Package codegen emits static accessor maps for described struct types.
// The generated code trades the runtime invoker dispatch for plain field
// selectors and method calls, which is useful on hot paths where even the
// cached reflection lookups show up in profiles.
package codegen

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/dave/jennifer/jen"

	"github.com/ormkit/reflector/meta"
)

type Generator struct {
	PackageName string
	PackagePath string
	OutputPath  string

	ctx        *meta.Context
	reflectors []*meta.Reflector
}

// NewGenerator creates a Generator emitting into the named package.
// packagePath is the import path of the generated package; selectors for
// types living in the same package are emitted unqualified.
func NewGenerator(packageName, packagePath, outputPath string) *Generator {
	return &Generator{
		PackageName: packageName,
		PackagePath: packagePath,
		OutputPath:  outputPath,
	}
}

// WithContext makes the generator describe types through ctx instead of
// the package-level metadata cache.
func (g *Generator) WithContext(ctx *meta.Context) *Generator {
	g.ctx = ctx
	return g
}

// Register describes t and queues it for generation.
func (g *Generator) Register(t reflect.Type) error {
	var r *meta.Reflector
	var err error
	if g.ctx != nil {
		r, err = g.ctx.Describe(t)
	} else {
		r, err = meta.Describe(t)
	}
	if err != nil {
		return fmt.Errorf("codegen: register %s: %w", t, err)
	}
	g.reflectors = append(g.reflectors, r)
	return nil
}

// RegisterValue registers the dynamic type of v.
func (g *Generator) RegisterValue(v any) error {
	return g.Register(reflect.TypeOf(v))
}

// Render returns the generated file as source text.
func (g *Generator) Render() (string, error) {
	file, err := g.build()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := file.Render(&buf); err != nil {
		return "", fmt.Errorf("codegen: render: %w", err)
	}
	return buf.String(), nil
}

// Save renders the generated file and writes it to OutputPath.
func (g *Generator) Save() error {
	file, err := g.build()
	if err != nil {
		return err
	}
	if err := file.Save(g.OutputPath); err != nil {
		return fmt.Errorf("codegen: save %s: %w", g.OutputPath, err)
	}
	return nil
}

func (g *Generator) build() (*jen.File, error) {
	file := jen.NewFilePathName(g.PackagePath, g.PackageName)
	file.HeaderComment("Code generated by reflector-codegen. DO NOT EDIT.")

	for _, r := range g.reflectors {
		if err := g.generateType(file, r); err != nil {
			return nil, err
		}
	}
	return file, nil
}

func (g *Generator) generateType(file *jen.File, r *meta.Reflector) error {
	t := r.Type()
	if t.Name() == "" {
		return fmt.Errorf("codegen: cannot generate accessors for unnamed type %s", t)
	}

	receiver := func() *jen.Statement {
		return jen.Op("*").Qual(t.PkgPath(), t.Name())
	}

	getters := jen.Dict{}
	for _, name := range r.ReadableNames() {
		p, ok := r.Property(name)
		if !ok || (!p.FromField && p.GetterMethod == "") {
			// Ambiguous properties defer their conflict to runtime use;
			// there is nothing static to emit for them.
			continue
		}
		body, err := getterBody(t, p)
		if err != nil {
			return err
		}
		getters[jen.Lit(name)] = jen.Func().
			Params(jen.Id("m").Add(receiver())).
			Any().
			Block(jen.Return(body))
	}

	setters := jen.Dict{}
	for _, name := range r.WritableNames() {
		p, ok := r.Property(name)
		if !ok || !p.FromField {
			// Method-backed setters keep their own signatures; nothing
			// to gain from wrapping them.
			continue
		}
		sel, err := fieldSelector(t, p.Index)
		if err != nil {
			return err
		}
		ft, err := typeCode(t.PkgPath(), fieldType(t, p.Index))
		if err != nil {
			return err
		}
		setters[jen.Lit(name)] = jen.Func().
			Params(jen.Id("m").Add(receiver()), jen.Id("val").Any()).
			Block(jen.Id("m").Add(sel).Op("=").Id("val").Assert(ft))
	}

	file.Var().Id(t.Name() + "Getters").Op("=").
		Map(jen.String()).Func().Params(receiver()).Any().
		Values(getters).Line()

	file.Var().Id(t.Name() + "Setters").Op("=").
		Map(jen.String()).Func().Params(receiver(), jen.Any()).
		Values(setters).Line()

	return nil
}

func getterBody(t reflect.Type, p *meta.Property) (jen.Code, error) {
	if p.FromField {
		sel, err := fieldSelector(t, p.Index)
		if err != nil {
			return nil, err
		}
		return jen.Id("m").Add(sel), nil
	}
	return jen.Id("m").Dot(p.GetterMethod).Call(), nil
}

// fieldSelector turns a field index path into a chained selector. Go
// auto-dereferences pointer embeds, so the chain is plain dots either way.
func fieldSelector(t reflect.Type, index []int) (*jen.Statement, error) {
	sel := jen.Empty()
	for _, i := range index {
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct || i >= t.NumField() {
			return nil, fmt.Errorf("codegen: invalid field index path on %s", t)
		}
		f := t.Field(i)
		sel.Dot(f.Name)
		t = f.Type
	}
	return sel, nil
}

func fieldType(t reflect.Type, index []int) reflect.Type {
	for _, i := range index {
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		t = t.Field(i).Type
	}
	return t
}

// typeCode renders a reflect.Type as a jennifer type expression. localPkg
// is the import path of the generated package, so its own types stay
// unqualified.
func typeCode(localPkg string, t reflect.Type) (jen.Code, error) {
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return jen.Id(t.Name()), nil // builtin
		}
		return jen.Qual(t.PkgPath(), t.Name()), nil
	}

	switch t.Kind() {
	case reflect.Ptr:
		el, err := typeCode(localPkg, t.Elem())
		if err != nil {
			return nil, err
		}
		return jen.Op("*").Add(el), nil
	case reflect.Slice:
		el, err := typeCode(localPkg, t.Elem())
		if err != nil {
			return nil, err
		}
		return jen.Index().Add(el), nil
	case reflect.Array:
		el, err := typeCode(localPkg, t.Elem())
		if err != nil {
			return nil, err
		}
		return jen.Index(jen.Lit(t.Len())).Add(el), nil
	case reflect.Map:
		kt, err := typeCode(localPkg, t.Key())
		if err != nil {
			return nil, err
		}
		vt, err := typeCode(localPkg, t.Elem())
		if err != nil {
			return nil, err
		}
		return jen.Map(kt).Add(vt), nil
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return jen.Any(), nil
		}
	}
	return nil, fmt.Errorf("codegen: unsupported type %s", t)
}
