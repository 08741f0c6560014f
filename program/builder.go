package program

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Builder constructs programs.
type Builder struct {
	name    string
	dialect Dialect
	root    *BlockBuilder
	err     error // first error encountered during building
}

// NewBuilder creates a new program builder using the PIR dialect.
// The name is used as the program name.
func NewBuilder(name string) *Builder {
	b := &Builder{
		name:    name,
		dialect: PIR,
	}
	b.root = b.newBlockBuilder("global")
	return b
}

// SetDialect sets the dialect used to name control-flow operations and to
// classify names given to Op.
func (b *Builder) SetDialect(d Dialect) *Builder {
	if err := d.Validate(); err != nil {
		b.setErr(err)
		return b
	}
	b.dialect = d
	return b
}

// Dialect returns the builder's dialect.
func (b *Builder) Dialect() Dialect {
	return b.dialect
}

// Err returns the first error encountered during building, if any.
func (b *Builder) Err() error {
	return b.err
}

// setErr records the first error encountered.
func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Op appends an operation to the global block. See BlockBuilder.Op.
func (b *Builder) Op(name string) Operation {
	return b.root.Op(name)
}

// FusedKernel appends a fused-kernel operation to the global block.
func (b *Builder) FusedKernel(name string) *FusedKernelOp {
	return b.root.FusedKernel(name)
}

// Cond appends a conditional operation to the global block.
func (b *Builder) Cond(trueFn, falseFn CondFunc) *CondOp {
	return b.root.Cond(trueFn, falseFn)
}

// While appends a loop operation to the global block.
func (b *Builder) While(bodyFn LoopBodyFunc) *WhileOp {
	return b.root.While(bodyFn)
}

// Build returns the program, or the first error encountered while building it.
// Every call returns a program with a new ID.
func (b *Builder) Build() (*Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &Program{
		Name:    b.name,
		ID:      uuid.NewString(),
		Dialect: b.dialect,
		Global:  b.root.Build(),
	}, nil
}

// BlockBuilder builds one block: the global block or a block nested in a
// conditional or loop. Nested blocks may themselves contain control flow.
type BlockBuilder struct {
	parent     *Builder
	path       string
	operations []Operation
	nextCond   int
	nextWhile  int
}

// CondFunc builds one branch of a conditional operation.
type CondFunc func(bb *BlockBuilder)

// LoopBodyFunc builds the body of a loop operation.
type LoopBodyFunc func(bb *BlockBuilder)

// NewBlockBuilder creates a detached block builder sharing the builder's
// dialect and error state. Its block can be used with NewCond or NewWhile.
func (b *Builder) NewBlockBuilder() *BlockBuilder {
	return b.newBlockBuilder("detached")
}

func (b *Builder) newBlockBuilder(path string) *BlockBuilder {
	return &BlockBuilder{
		parent: b,
		path:   path,
	}
}

// Err returns the first error encountered by the parent builder.
func (bb *BlockBuilder) Err() error {
	return bb.parent.err
}

// Path returns the position of the block in the program, e.g. "global/cond_0.true".
func (bb *BlockBuilder) Path() string {
	return bb.path
}

// Op appends an operation classified by the dialect: names carrying the fused
// kernel marker become fused-kernel operations, anything else that isn't a
// control-flow name becomes a plain operation. Control-flow operations must
// be added with Cond or While.
func (bb *BlockBuilder) Op(name string) Operation {
	if name == "" {
		bb.parent.setErr(errors.Errorf("%s: operation with empty name", bb.path))
		return nil
	}
	d := bb.parent.dialect
	switch d.Classify(name) {
	case KindFusedKernel:
		return bb.add(FusedKernel(name))
	case KindCond, KindWhile:
		bb.parent.setErr(errors.Errorf("%s: %q is a control-flow operation, use Cond or While", bb.path, name))
		return nil
	default:
		return bb.add(Op(name))
	}
}

// FusedKernel appends a fused-kernel operation. The name must carry the
// dialect's fused-kernel marker.
func (bb *BlockBuilder) FusedKernel(name string) *FusedKernelOp {
	marker := bb.parent.dialect.FusedKernelMarker
	if !strings.Contains(name, marker) {
		bb.parent.setErr(errors.Errorf("%s: fused kernel %q doesn't carry the marker %q", bb.path, name, marker))
		return nil
	}
	op := FusedKernel(name)
	bb.add(op)
	return op
}

// Cond appends a conditional operation whose true and false blocks are built
// by trueFn and falseFn. Both branches are required, an empty branch is
// built by a function that adds nothing.
//
// Example:
//
//	b.Cond(
//	    func(bb *program.BlockBuilder) { bb.Op("cinn_op.jit_kernel_1") },
//	    func(bb *program.BlockBuilder) {},
//	)
func (bb *BlockBuilder) Cond(trueFn, falseFn CondFunc) *CondOp {
	idx := bb.nextCond
	bb.nextCond++
	if trueFn == nil || falseFn == nil {
		bb.parent.setErr(errors.Wrapf(ErrMalformed, "%s: cond_%d requires both a true and a false branch", bb.path, idx))
		return nil
	}

	trueBlock := bb.parent.newBlockBuilder(fmt.Sprintf("%s/cond_%d.true", bb.path, idx))
	trueFn(trueBlock)
	falseBlock := bb.parent.newBlockBuilder(fmt.Sprintf("%s/cond_%d.false", bb.path, idx))
	falseFn(falseBlock)

	op := NewCond(bb.parent.dialect.CondName, trueBlock.Build(), falseBlock.Build())
	bb.add(op)
	return op
}

// While appends a loop operation whose body is built by bodyFn.
func (bb *BlockBuilder) While(bodyFn LoopBodyFunc) *WhileOp {
	idx := bb.nextWhile
	bb.nextWhile++
	if bodyFn == nil {
		bb.parent.setErr(errors.Wrapf(ErrMalformed, "%s: while_%d requires a body", bb.path, idx))
		return nil
	}

	body := bb.parent.newBlockBuilder(fmt.Sprintf("%s/while_%d.body", bb.path, idx))
	bodyFn(body)

	op := NewWhile(bb.parent.dialect.WhileName, body.Build())
	bb.add(op)
	return op
}

// add appends op and returns it.
func (bb *BlockBuilder) add(op Operation) Operation {
	bb.operations = append(bb.operations, op)
	return op
}

// Build constructs the block from this builder.
func (bb *BlockBuilder) Build() *Block {
	ops := make([]Operation, len(bb.operations))
	copy(ops, bb.operations)
	return &Block{Operations: ops}
}
