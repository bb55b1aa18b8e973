package ir

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Verify checks structural well-formedness of the module and returns all
// findings, accumulated, rather than stopping at the first.
func (m *Module) Verify() error {
	var errs error
	seen := make(map[string]bool)
	for _, fn := range m.Funcs {
		if seen[fn.Name] {
			errs = multierr.Append(errs, errors.Errorf("duplicate function %q", fn.Name))
		}
		seen[fn.Name] = true
		errs = multierr.Append(errs, m.verifyFunc(fn))
	}
	return errs
}

func (m *Module) verifyFunc(fn *Func) error {
	var errs error
	if fn.Entry == nil {
		return errors.Errorf("function %q has no entry block", fn.Name)
	}
	if len(fn.Entry.Args) != len(fn.Params) {
		errs = multierr.Append(errs, errors.Errorf(
			"function %q: %d entry arguments for %d parameters",
			fn.Name, len(fn.Entry.Args), len(fn.Params)))
	}
	for i, arg := range fn.Entry.Args {
		if i < len(fn.Params) && arg.Type() != fn.Params[i] {
			errs = multierr.Append(errs, errors.Errorf(
				"function %q: entry argument %d has type %s, parameter declares %s",
				fn.Name, i, arg.Type(), fn.Params[i]))
		}
	}

	visible := make(map[*Value]bool)
	for _, arg := range fn.Entry.Args {
		visible[arg] = true
	}
	errs = multierr.Append(errs, m.verifyBlock(fn, fn.Entry, visible, true))
	return errs
}

// verifyBlock checks def-before-use, terminator presence, and call targets.
// The visible set carries values from enclosing scopes into nested regions,
// matching the closure semantics of subgraph attribute regions.
func (m *Module) verifyBlock(fn *Func, b *Block, visible map[*Value]bool, isFuncBody bool) error {
	var errs error
	for _, op := range b.Ops {
		for i, v := range op.Operands {
			if v == nil {
				errs = multierr.Append(errs, errors.Errorf(
					"function %q: op %s has nil operand %d", fn.Name, op.Name, i))
				continue
			}
			if !visible[v] {
				errs = multierr.Append(errs, errors.Errorf(
					"function %q: op %s uses operand %d before definition",
					fn.Name, op.Name, i))
			}
		}
		for i, v := range op.Results {
			if v.Type() == nil {
				errs = multierr.Append(errs, errors.Errorf(
					"function %q: op %s result %d has no type", fn.Name, op.Name, i))
			}
			visible[v] = true
		}
		if op.Name == OpCall {
			switch {
			case op.Callee == nil:
				errs = multierr.Append(errs, errors.Errorf(
					"function %q: call without callee", fn.Name))
			case m.FindFunc(op.Callee.Name) == nil:
				errs = multierr.Append(errs, errors.Errorf(
					"function %q: call to unknown function %q", fn.Name, op.Callee.Name))
			case len(op.Operands) != len(op.Callee.Params):
				errs = multierr.Append(errs, errors.Errorf(
					"function %q: call to %q with %d operands for %d parameters",
					fn.Name, op.Callee.Name, len(op.Operands), len(op.Callee.Params)))
			}
		}
		for _, region := range op.Regions {
			for _, nested := range region.Blocks {
				inner := make(map[*Value]bool, len(visible))
				for v := range visible {
					inner[v] = true
				}
				for _, arg := range nested.Args {
					inner[arg] = true
				}
				errs = multierr.Append(errs, m.verifyBlock(fn, nested, inner, false))
			}
		}
	}

	want := OpTerminator
	if isFuncBody {
		want = OpReturn
	}
	if len(b.Ops) == 0 || b.Ops[len(b.Ops)-1].Name != want {
		errs = multierr.Append(errs, errors.Errorf(
			"function %q: block does not end with %s", fn.Name, want))
	}
	if isFuncBody && len(b.Ops) > 0 && b.Ops[len(b.Ops)-1].Name == want {
		ret := b.Ops[len(b.Ops)-1]
		if len(ret.Operands) != len(fn.Results) {
			errs = multierr.Append(errs, errors.Errorf(
				"function %q: returns %d values, signature declares %d",
				fn.Name, len(ret.Operands), len(fn.Results)))
		}
	}
	return errs
}
