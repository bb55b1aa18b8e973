package ir

import (
	"fmt"
	"strings"
)

// String renders the module in a generic MLIR-like textual form. The output
// is meant for debugging and golden assertions, not round-tripping.
func (m *Module) String() string {
	p := &printer{names: make(map[*Value]string)}
	p.printf("module {\n")
	p.indent++
	for _, fn := range m.Funcs {
		p.printFunc(fn)
	}
	p.indent--
	p.printf("}\n")
	return p.b.String()
}

type printer struct {
	b       strings.Builder
	names   map[*Value]string
	nextVal int
	nextArg int
	indent  int
}

func (p *printer) printf(format string, args ...any) {
	p.b.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.b, format, args...)
}

func (p *printer) valueName(v *Value) string {
	if name, ok := p.names[v]; ok {
		return name
	}
	// Values are always named at definition; an unnamed value here means a
	// use before def, which the verifier reports separately.
	name := "%<undef>"
	p.names[v] = name
	return name
}

func (p *printer) defineArg(v *Value) string {
	name := fmt.Sprintf("%%arg%d", p.nextArg)
	p.nextArg++
	p.names[v] = name
	return name
}

func (p *printer) defineResult(v *Value) string {
	name := fmt.Sprintf("%%%d", p.nextVal)
	p.nextVal++
	p.names[v] = name
	return name
}

func (p *printer) printFunc(fn *Func) {
	p.nextVal = 0
	p.nextArg = 0

	params := make([]string, len(fn.Entry.Args))
	for i, arg := range fn.Entry.Args {
		params[i] = fmt.Sprintf("%s: %s", p.defineArg(arg), arg.Type())
	}
	results := make([]string, len(fn.Results))
	for i, t := range fn.Results {
		results[i] = t.String()
	}

	visibility := ""
	if fn.Private {
		visibility = "private "
	}
	attrs := ""
	if fn.Attrs.Len() > 0 {
		attrs = " attributes " + fn.Attrs.String()
	}
	p.printf("func.func %s@%s(%s) -> (%s)%s {\n",
		visibility, fn.Name, strings.Join(params, ", "), strings.Join(results, ", "), attrs)
	p.indent++
	for _, op := range fn.Entry.Ops {
		p.printOp(op)
	}
	p.indent--
	p.printf("}\n")
}

func (p *printer) printOp(op *Operation) {
	operands := make([]string, len(op.Operands))
	operandTypes := make([]string, len(op.Operands))
	for i, v := range op.Operands {
		operands[i] = p.valueName(v)
		operandTypes[i] = v.Type().String()
	}

	var lhs string
	if len(op.Results) > 0 {
		names := make([]string, len(op.Results))
		for i, v := range op.Results {
			names[i] = p.defineResult(v)
		}
		lhs = strings.Join(names, ", ") + " = "
	}

	switch op.Name {
	case OpReturn, OpTerminator:
		if len(op.Operands) == 0 {
			p.printf("%s\n", op.Name)
			return
		}
		p.printf("%s %s : %s\n", op.Name,
			strings.Join(operands, ", "), strings.Join(operandTypes, ", "))
		return
	case OpCall:
		p.printf("%s%s @%s(%s) : (%s) -> (%s)\n", lhs, op.Name, op.Callee.Name,
			strings.Join(operands, ", "), strings.Join(operandTypes, ", "),
			p.resultTypes(op))
		return
	}

	attrs := ""
	if op.Attrs.Len() > 0 {
		attrs = " " + op.Attrs.String()
	}
	p.printf("%s%s(%s)%s : (%s) -> (%s)", lhs, op.Name,
		strings.Join(operands, ", "), attrs,
		strings.Join(operandTypes, ", "), p.resultTypes(op))

	if len(op.Regions) == 0 {
		p.b.WriteByte('\n')
		return
	}
	p.b.WriteString(" (")
	for i, region := range op.Regions {
		if i > 0 {
			p.b.WriteString(", ")
		}
		p.printRegion(region)
	}
	p.b.WriteString(")\n")
}

func (p *printer) printRegion(region *Region) {
	p.b.WriteString("{\n")
	p.indent++
	for _, block := range region.Blocks {
		args := make([]string, len(block.Args))
		for i, arg := range block.Args {
			args[i] = fmt.Sprintf("%s: %s", p.defineArg(arg), arg.Type())
		}
		p.printf("^bb0(%s):\n", strings.Join(args, ", "))
		p.indent++
		for _, op := range block.Ops {
			p.printOp(op)
		}
		p.indent--
	}
	p.indent--
	p.printf("}")
}

func (p *printer) resultTypes(op *Operation) string {
	types := make([]string, len(op.Results))
	for i, v := range op.Results {
		types[i] = v.Type().String()
	}
	return strings.Join(types, ", ")
}
