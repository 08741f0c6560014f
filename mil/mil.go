// Package mil reads CoreML MIL programs as program graphs.
//
// A MIL program holds functions, each with one block per opset
// specialization. Control flow is expressed by the "cond" operation, whose two
// nested blocks are the true and false branches, and by the "while_loop"
// operation, whose nested blocks are the loop condition followed by the body.
//
// Example usage:
//
//	p, err := mil.Load("model.mlpackage", "main", program.MIL)
//	if err != nil { ... }
//	n, err := inspect.CountFusedKernels(p.GlobalBlock())
package mil

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomlx/go-coreml/proto/coreml/milspec"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gomlx/kernelscope/program"
)

// DefaultOpset is the opset used by ToProgram.
const DefaultOpset = "CoreML7"

// FromProgram converts one function of a MIL program.
//
// If function is empty the program must have a single function, or one named
// "main". The block used is the specialization for the function's opset, or
// the only specialization. If d is the zero Dialect, program.MIL is used.
func FromProgram(p *milspec.Program, function string, d program.Dialect) (*program.Program, error) {
	if d.IsZero() {
		d = program.MIL
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	name, fn, err := selectFunction(p, function)
	if err != nil {
		return nil, err
	}
	block, err := selectBlock(name, fn)
	if err != nil {
		return nil, err
	}
	global, err := convertBlock(d, block, name)
	if err != nil {
		return nil, err
	}
	return &program.Program{
		Name:    name,
		ID:      uuid.NewString(),
		Dialect: d,
		Global:  global,
	}, nil
}

func selectFunction(p *milspec.Program, function string) (string, *milspec.Function, error) {
	fns := p.GetFunctions()
	if function != "" {
		fn, ok := fns[function]
		if !ok {
			return "", nil, errors.Errorf("mil: function %q not found, program has %s", function, functionNames(fns))
		}
		return function, fn, nil
	}
	switch {
	case len(fns) == 1:
		for name, fn := range fns {
			return name, fn, nil
		}
	case fns["main"] != nil:
		return "main", fns["main"], nil
	}
	return "", nil, errors.Errorf("mil: program has %s, select one", functionNames(fns))
}

func functionNames(fns map[string]*milspec.Function) string {
	if len(fns) == 0 {
		return "no functions"
	}
	names := make([]string, 0, len(fns))
	for name := range fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return "functions " + strings.Join(names, ", ")
}

func selectBlock(name string, fn *milspec.Function) (*milspec.Block, error) {
	specs := fn.GetBlockSpecializations()
	if block, ok := specs[fn.GetOpset()]; ok && block != nil {
		return block, nil
	}
	if len(specs) == 1 {
		for _, block := range specs {
			return block, nil
		}
	}
	return nil, errors.Errorf("mil: function %q has no block for opset %q and %d specializations",
		name, fn.GetOpset(), len(specs))
}

// convertBlock converts a block and, recursively, the blocks of its control-flow operations.
func convertBlock(d program.Dialect, block *milspec.Block, path string) (*program.Block, error) {
	if block == nil {
		return nil, errors.Wrapf(program.ErrMalformed, "%s: nil block", path)
	}
	ops := block.GetOperations()
	out := &program.Block{Operations: make([]program.Operation, 0, len(ops))}
	var nextCond, nextWhile int
	for _, op := range ops {
		opType := op.GetType()
		nested := op.GetBlocks()
		switch d.Classify(opType) {
		case program.KindFusedKernel:
			out.Operations = append(out.Operations, program.FusedKernel(opType))

		case program.KindCond:
			opPath := fmt.Sprintf("%s/cond_%d", path, nextCond)
			nextCond++
			if len(nested) != 2 {
				return nil, errors.Wrapf(program.ErrMalformed, "%s: %q has %d blocks, want 2", opPath, opType, len(nested))
			}
			trueBlock, err := convertBlock(d, nested[0], opPath+".true")
			if err != nil {
				return nil, err
			}
			falseBlock, err := convertBlock(d, nested[1], opPath+".false")
			if err != nil {
				return nil, err
			}
			out.Operations = append(out.Operations, program.NewCond(opType, trueBlock, falseBlock))

		case program.KindWhile:
			opPath := fmt.Sprintf("%s/while_%d", path, nextWhile)
			nextWhile++
			if len(nested) == 0 {
				return nil, errors.Wrapf(program.ErrMalformed, "%s: %q has no body block", opPath, opType)
			}
			// The condition block, when present, comes first. The body is last.
			body, err := convertBlock(d, nested[len(nested)-1], opPath+".body")
			if err != nil {
				return nil, err
			}
			out.Operations = append(out.Operations, program.NewWhile(opType, body))

		default:
			out.Operations = append(out.Operations, program.Op(opType))
		}
	}
	return out, nil
}

// ToProgram converts p into a single-function MIL program, using p.Name as
// the function name and DefaultOpset. Loops get an empty condition block in
// front of their body. Only operation types and nesting are carried over.
// A nil p yields a program without functions.
func ToProgram(p *program.Program) *milspec.Program {
	if p == nil {
		return &milspec.Program{Version: 1}
	}
	block := toBlock(p.GlobalBlock())
	return &milspec.Program{
		Version: 1,
		Functions: map[string]*milspec.Function{
			p.Name: {
				Opset: DefaultOpset,
				BlockSpecializations: map[string]*milspec.Block{
					DefaultOpset: block,
				},
			},
		},
	}
}

func toBlock(b *program.Block) *milspec.Block {
	out := &milspec.Block{}
	if b == nil {
		return out
	}
	for _, op := range b.Operations {
		milOp := &milspec.Operation{Type: op.Name()}
		switch op := op.(type) {
		case *program.CondOp:
			milOp.Blocks = []*milspec.Block{toBlock(op.True), toBlock(op.False)}
		case *program.WhileOp:
			milOp.Blocks = []*milspec.Block{{}, toBlock(op.Body)}
		}
		out.Operations = append(out.Operations, milOp)
	}
	return out
}
