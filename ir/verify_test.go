package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/loom-ml/loom/ir"
)

func testTensorType(t *testing.T, ctx *ir.Context) ir.Type {
	t.Helper()
	vt, err := ctx.VTensor([]int64{2}, ctx.F32())
	require.NoError(t, err)
	return vt
}

func TestVerifyUseBeforeDef(t *testing.T) {
	ctx := ir.NewContext()
	module := ir.NewModule(ctx)
	vt := testTensorType(t, ctx)

	fn := module.NewFunc("main", nil, []ir.Type{vt}, false)
	// Create an operation but never append it; its result is used anyway.
	orphan := ir.NewOperation(ir.OpOperator, []ir.Type{vt}, nil)
	fn.Entry.Append(ir.NewOperation(ir.OpReturn, nil, orphan.Results))

	err := module.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before definition")
}

func TestVerifyMissingTerminator(t *testing.T) {
	ctx := ir.NewContext()
	module := ir.NewModule(ctx)
	vt := testTensorType(t, ctx)

	module.NewFunc("main", []ir.Type{vt}, []ir.Type{vt}, false)

	err := module.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not end with func.return")
}

func TestVerifyReturnArity(t *testing.T) {
	ctx := ir.NewContext()
	module := ir.NewModule(ctx)
	vt := testTensorType(t, ctx)

	fn := module.NewFunc("main", []ir.Type{vt}, []ir.Type{vt}, false)
	fn.Entry.Append(ir.NewOperation(ir.OpReturn, nil, nil))

	err := module.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returns 0 values, signature declares 1")
}

func TestVerifyCallChecks(t *testing.T) {
	ctx := ir.NewContext()
	module := ir.NewModule(ctx)
	vt := testTensorType(t, ctx)

	callee := module.NewFunc("helper", []ir.Type{vt, vt}, []ir.Type{vt}, true)
	callee.Entry.Append(ir.NewOperation(ir.OpReturn, nil, []*ir.Value{callee.Entry.Args[0]}))

	fn := module.NewFunc("main", []ir.Type{vt}, []ir.Type{vt}, false)
	call := ir.NewCall(callee, []*ir.Value{fn.Entry.Args[0]}) // arity mismatch
	fn.Entry.Append(call)
	fn.Entry.Append(ir.NewOperation(ir.OpReturn, nil, call.Results))

	err := module.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "with 1 operands for 2 parameters")
}

func TestVerifyDuplicateFunctions(t *testing.T) {
	ctx := ir.NewContext()
	module := ir.NewModule(ctx)
	vt := testTensorType(t, ctx)

	for i := 0; i < 2; i++ {
		fn := module.NewFunc("main", []ir.Type{vt}, []ir.Type{vt}, false)
		fn.Entry.Append(ir.NewOperation(ir.OpReturn, nil, []*ir.Value{fn.Entry.Args[0]}))
	}

	err := module.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate function "main"`)
}

func TestVerifyAccumulatesFindings(t *testing.T) {
	ctx := ir.NewContext()
	module := ir.NewModule(ctx)
	vt := testTensorType(t, ctx)

	// Two broken functions: both findings must be reported.
	module.NewFunc("a", []ir.Type{vt}, nil, false)
	module.NewFunc("b", []ir.Type{vt}, nil, false)

	err := module.Verify()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestVerifyRegionClosure(t *testing.T) {
	ctx := ir.NewContext()
	module := ir.NewModule(ctx)
	vt := testTensorType(t, ctx)

	fn := module.NewFunc("main", []ir.Type{vt}, []ir.Type{vt}, false)
	outer := fn.Entry.Args[0]

	op := ir.NewOperation(ir.OpOperator, []ir.Type{vt}, []*ir.Value{outer})
	region := op.AddRegion()
	block := region.AddBlock()
	block.AddArg(vt, "iter")
	// The nested block may reference the enclosing function's argument.
	block.Append(ir.NewOperation(ir.OpTerminator, nil, []*ir.Value{outer}))
	fn.Entry.Append(op)
	fn.Entry.Append(ir.NewOperation(ir.OpReturn, nil, op.Results))

	require.NoError(t, module.Verify())
}
