package emit

import (
	"bytes"
	"fmt"
	"go/format"
	"strconv"

	"github.com/wippyai/hostshim/errors"
	"github.com/wippyai/hostshim/schema"
)

const modulePath = "github.com/wippyai/hostshim"

// Go renders an interface as Go source: a typed handler interface, one
// descriptor constructor per function, and a registration function that
// adapts the handler onto a dispatch table. The output is formatted with
// go/format before it is returned.
type Go struct {
	// Package is the package clause of the generated file.
	Package string
}

// NewGo returns a Go backend emitting into the named package.
func NewGo(pkg string) *Go {
	if pkg == "" {
		pkg = "bindings"
	}
	return &Go{Package: pkg}
}

func (g *Go) Language() string { return "go" }

type printFn func(format string, args ...any)

func (g *Go) Emit(iface string, fns []*schema.Func) ([]byte, error) {
	if err := validate(iface, fns); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	{
		p := func(format string, args ...any) {
			fmt.Fprintf(&body, format+"\n", args...)
		}
		g.emitHandlerInterface(p, iface, fns)
		g.emitRegister(p, iface, fns)
		for _, fn := range fns {
			g.emitDescriptor(p, iface, fn)
		}
	}

	// The header goes last so the import set reflects everything the body
	// actually referenced.
	var header bytes.Buffer
	{
		p := func(format string, args ...any) {
			fmt.Fprintf(&header, format+"\n", args...)
		}
		p("// Code generated by shimgen. DO NOT EDIT.")
		p("")
		p("package %s", g.Package)
		p("")
		p("import (")
		for _, pkg := range importsFor(fns) {
			p("\t%s", strconv.Quote(modulePath+"/"+pkg))
		}
		p(")")
	}

	src := append(header.Bytes(), body.Bytes()...)
	formatted, err := format.Source(src)
	if err != nil {
		return nil, errors.New(errors.PhaseEmit, errors.KindInvalidInput).
			Func(iface).
			Cause(err).
			Detail("generated source does not parse").
			Build()
	}
	return formatted, nil
}

// importsFor returns the hostshim subpackages the generated body needs, in
// import-block order.
func importsFor(fns []*schema.Func) []string {
	needGuest := false
	needHandle := false
	for _, fn := range fns {
		for _, p := range fn.Params {
			switch p.Shape.Kind {
			case schema.KindString, schema.KindArray, schema.KindPointer, schema.KindConstPointer:
				needGuest = true
			case schema.KindHandle:
				needHandle = true
			}
		}
	}
	pkgs := []string{"dispatch"}
	if needGuest {
		pkgs = append(pkgs, "guest")
	}
	if needHandle {
		pkgs = append(pkgs, "handle")
	}
	return append(pkgs, "schema", "shim")
}

func (g *Go) emitHandlerInterface(p printFn, iface string, fns []*schema.Func) {
	name := exported(iface)
	p("")
	p("// %sHandler is the typed host-side surface for the %q interface.", name, iface)
	p("// The runtime checks and converts every guest value before a method")
	p("// runs, and writes extra results back to guest memory afterwards.")
	p("type %sHandler interface {", name)
	for _, fn := range fns {
		p("\t%s", methodSignature(fn))
	}
	p("}")
}

// methodSignature renders one handler method: parameters follow the
// descriptor order, extra results become typed return values, and the
// trailing error carries the function's domain error.
func methodSignature(fn *schema.Func) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s(ctx *shim.Ctx", exported(fn.Name))
	for _, param := range fn.Params {
		fmt.Fprintf(&b, ", %s %s", paramIdent(param.Name), goType(param.Shape))
	}
	b.WriteString(") ")
	extras := fn.Extras()
	if len(extras) == 0 {
		b.WriteString("error")
		return b.String()
	}
	b.WriteString("(")
	for _, r := range extras {
		fmt.Fprintf(&b, "%s, ", goType(r.Shape))
	}
	b.WriteString("error)")
	return b.String()
}

func (g *Go) emitRegister(p printFn, iface string, fns []*schema.Func) {
	name := exported(iface)
	p("")
	p("// Register%s binds h to every %q function on t.", name, iface)
	p("func Register%s(t *dispatch.Table, h %sHandler) error {", name, name)
	for _, fn := range fns {
		p("\tif err := t.Register(%s(), func(ctx *shim.Ctx, args []any) ([]any, error) {", descriptorName(iface, fn.Name))
		g.emitHandlerCall(p, fn)
		p("\t}); err != nil {")
		p("\t\treturn err")
		p("\t}")
	}
	p("\treturn nil")
	p("}")
}

// emitHandlerCall renders the body of the adapter closure for one function.
func (g *Go) emitHandlerCall(p printFn, fn *schema.Func) {
	var call bytes.Buffer
	fmt.Fprintf(&call, "h.%s(ctx", exported(fn.Name))
	for i, param := range fn.Params {
		fmt.Fprintf(&call, ", args[%d].(%s)", i, goType(param.Shape))
	}
	call.WriteString(")")

	extras := fn.Extras()
	if len(extras) == 0 {
		p("\t\tif err := %s; err != nil {", call.String())
		p("\t\t\treturn nil, err")
		p("\t\t}")
		p("\t\treturn nil, nil")
		return
	}

	var lhs, rets bytes.Buffer
	for i := range extras {
		fmt.Fprintf(&lhs, "r%d, ", i)
		if i > 0 {
			rets.WriteString(", ")
		}
		fmt.Fprintf(&rets, "r%d", i)
	}
	p("\t\t%serr := %s", lhs.String(), call.String())
	p("\t\tif err != nil {")
	p("\t\t\treturn nil, err")
	p("\t\t}")
	p("\t\treturn []any{%s}, nil", rets.String())
}

func (g *Go) emitDescriptor(p printFn, iface string, fn *schema.Func) {
	p("")
	p("func %s() *schema.Func {", descriptorName(iface, fn.Name))
	p("\treturn &schema.Func{")
	p("\t\tName: %q,", fn.Name)
	if len(fn.Params) > 0 {
		p("\t\tParams: []schema.Param{")
		for _, param := range fn.Params {
			p("\t\t\t{Name: %q, Shape: %s},", param.Name, shapeExpr(param.Shape))
		}
		p("\t\t},")
	}
	if len(fn.Results) > 0 {
		p("\t\tResults: []schema.Result{")
		for _, r := range fn.Results {
			if r.ErrType != "" {
				p("\t\t\t{Name: %q, Shape: %s, ErrType: %q},", r.Name, shapeExpr(r.Shape), r.ErrType)
			} else {
				p("\t\t\t{Name: %q, Shape: %s},", r.Name, shapeExpr(r.Shape))
			}
		}
		p("\t\t},")
	}
	if fn.NoReturn {
		p("\t\tNoReturn: true,")
	}
	p("\t}")
	p("}")
}

// descriptorName is the unexported constructor for one function's
// descriptor, e.g. storeGetFunc.
func descriptorName(iface, fn string) string {
	return notExported(exported(iface)) + exported(fn) + "Func"
}

func notExported(name string) string {
	if name == "" {
		return name
	}
	return string(name[0]|0x20) + name[1:]
}

// paramIdent keeps wire names usable as Go parameter names.
func paramIdent(name string) string {
	ident := notExported(exported(name))
	switch ident {
	case "type", "func", "range", "map", "len", "cap", "error":
		return ident + "_"
	}
	return ident
}

// goType is the interface-typed Go representation of a marshaled value.
// It must agree with what the runtime hands to handlers.
func goType(s *schema.Shape) string {
	switch s.Kind {
	case schema.KindU8, schema.KindChar8:
		return "uint8"
	case schema.KindU16:
		return "uint16"
	case schema.KindU32, schema.KindUSize:
		return "uint32"
	case schema.KindU64:
		return "uint64"
	case schema.KindS8:
		return "int8"
	case schema.KindS16:
		return "int16"
	case schema.KindS32:
		return "int32"
	case schema.KindS64:
		return "int64"
	case schema.KindF32:
		return "float32"
	case schema.KindF64:
		return "float64"
	case schema.KindEnum, schema.KindFlags:
		return "uint64"
	case schema.KindInt:
		return "int64"
	case schema.KindString:
		return "*guest.String"
	case schema.KindArray:
		return "*guest.Slice"
	case schema.KindStruct, schema.KindUnion:
		return "[]byte"
	case schema.KindPointer, schema.KindConstPointer:
		return "*guest.Ptr"
	case schema.KindHandle:
		return "handle.Handle"
	}
	return "any"
}

var kindIdents = map[schema.Kind]string{
	schema.KindU8:    "KindU8",
	schema.KindU16:   "KindU16",
	schema.KindU32:   "KindU32",
	schema.KindU64:   "KindU64",
	schema.KindS8:    "KindS8",
	schema.KindS16:   "KindS16",
	schema.KindS32:   "KindS32",
	schema.KindS64:   "KindS64",
	schema.KindF32:   "KindF32",
	schema.KindF64:   "KindF64",
	schema.KindUSize: "KindUSize",
	schema.KindChar8: "KindChar8",
}

// shapeExpr renders the constructor expression reproducing s.
func shapeExpr(s *schema.Shape) string {
	switch s.Kind {
	case schema.KindEnum:
		return fmt.Sprintf("schema.EnumShape(%q, %d)", s.Name, s.Max)
	case schema.KindFlags:
		return fmt.Sprintf("schema.FlagsShape(%q, %#x)", s.Name, s.Mask)
	case schema.KindInt:
		return fmt.Sprintf("schema.IntShape(%q, %d, %d)", s.Name, s.Min, s.Max)
	case schema.KindString:
		return "schema.StringShape()"
	case schema.KindArray:
		return fmt.Sprintf("schema.ArrayShape(%s)", shapeExpr(s.Elem))
	case schema.KindStruct:
		return fmt.Sprintf("schema.StructShape(%q, %d, %d)", s.Name, s.Size, s.ByteAlign)
	case schema.KindUnion:
		return fmt.Sprintf("schema.UnionShape(%q, %d, %d)", s.Name, s.Size, s.ByteAlign)
	case schema.KindPointer:
		return fmt.Sprintf("schema.PointerShape(%s)", shapeExpr(s.Elem))
	case schema.KindConstPointer:
		return fmt.Sprintf("schema.ConstPointerShape(%s)", shapeExpr(s.Elem))
	case schema.KindHandle:
		return fmt.Sprintf("schema.HandleShape(%q, %d)", s.Name, s.Type)
	}
	return fmt.Sprintf("schema.ScalarShape(schema.%s)", kindIdents[s.Kind])
}
