// Package program provides a typed, read-only view of a compiled program graph.
//
// A compiled program is a tree of blocks. A block is an ordered sequence of
// operations, and the control-flow operations (conditional and loop) own nested
// blocks. Operations are a closed set of variants:
//
//   - PlainOp: any operation without children.
//   - FusedKernelOp: an operation emitted by a kernel-fusion pass.
//   - CondOp: a conditional with a true and a false block.
//   - WhileOp: a loop with a body block.
//
// Graphs are built either with the fluent Builder, with the literal
// constructors (NewBlock, Op, FusedKernel, If, While), or decoded from a
// program document (see Decode).
//
// Example usage:
//
//	b := program.NewBuilder("forward")
//	b.Op("pd_op.full")
//	b.Op("cinn_op.jit_kernel_0")
//	b.Cond(
//	    func(bb *program.BlockBuilder) { bb.Op("cinn_op.jit_kernel_1") },
//	    func(bb *program.BlockBuilder) {},
//	)
//	p, err := b.Build()
package program

import (
	"github.com/pkg/errors"
)

// ErrMalformed is returned when a graph violates the structural preconditions:
// a conditional missing one of its two blocks, a loop missing its body, or a nil block.
var ErrMalformed = errors.New("malformed program graph")

// Kind classifies an operation.
type Kind int

const (
	KindPlain Kind = iota
	KindFusedKernel
	KindCond
	KindWhile
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindFusedKernel:
		return "fused_kernel"
	case KindCond:
		return "cond"
	case KindWhile:
		return "while"
	default:
		return "unknown"
	}
}

// Operation is a single node of a block. The set of implementations is closed:
// *PlainOp, *FusedKernelOp, *CondOp and *WhileOp.
type Operation interface {
	// Name returns the operation name, as emitted by the compiler.
	Name() string

	// Kind returns the variant of the operation.
	Kind() Kind

	isOperation()
}

// PlainOp is an operation with no nested blocks that is not a fused kernel.
type PlainOp struct {
	name string
}

func (op *PlainOp) Name() string { return op.name }
func (op *PlainOp) Kind() Kind   { return KindPlain }
func (*PlainOp) isOperation()    {}

// FusedKernelOp is a call to a kernel produced by the fusion pass.
type FusedKernelOp struct {
	name string
}

func (op *FusedKernelOp) Name() string { return op.name }
func (op *FusedKernelOp) Kind() Kind   { return KindFusedKernel }
func (*FusedKernelOp) isOperation()    {}

// CondOp is a conditional operation. Exactly one of its blocks runs.
type CondOp struct {
	name  string
	True  *Block
	False *Block
}

func (op *CondOp) Name() string { return op.name }
func (op *CondOp) Kind() Kind   { return KindCond }
func (*CondOp) isOperation()    {}

// WhileOp is a loop operation. Its body runs while the loop condition holds.
type WhileOp struct {
	name string
	Body *Block
}

func (op *WhileOp) Name() string { return op.name }
func (op *WhileOp) Kind() Kind   { return KindWhile }
func (*WhileOp) isOperation()    {}

// Block is an ordered sequence of operations forming one lexical scope.
type Block struct {
	Operations []Operation
}

// NewBlock returns a block with the given operations, in order.
func NewBlock(ops ...Operation) *Block {
	return &Block{Operations: ops}
}

// Len returns the number of operations directly in the block.
func (b *Block) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Operations)
}

// Op returns a plain operation with the given name.
func Op(name string) *PlainOp {
	return &PlainOp{name: name}
}

// FusedKernel returns a fused-kernel operation with the given name.
func FusedKernel(name string) *FusedKernelOp {
	return &FusedKernelOp{name: name}
}

// If returns a conditional operation named after the PIR dialect.
// Use NewCond to choose another name.
func If(trueBlock, falseBlock *Block) *CondOp {
	return NewCond(PIR.CondName, trueBlock, falseBlock)
}

// NewCond returns a conditional operation with the given name and branches.
func NewCond(name string, trueBlock, falseBlock *Block) *CondOp {
	return &CondOp{name: name, True: trueBlock, False: falseBlock}
}

// While returns a loop operation named after the PIR dialect.
// Use NewWhile to choose another name.
func While(body *Block) *WhileOp {
	return NewWhile(PIR.WhileName, body)
}

// NewWhile returns a loop operation with the given name and body.
func NewWhile(name string, body *Block) *WhileOp {
	return &WhileOp{name: name, Body: body}
}

// Program is a compiled function: a named root block plus the dialect its
// operation names were classified with.
type Program struct {
	Name    string
	ID      string
	Dialect Dialect
	Global  *Block
}

// GlobalBlock returns the root block of the program.
func (p *Program) GlobalBlock() *Block {
	if p == nil {
		return nil
	}
	return p.Global
}
