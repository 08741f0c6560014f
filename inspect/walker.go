// Package inspect counts and describes the fused kernels of a compiled program graph.
//
// Two modes are offered:
//
//   - CountFusedKernels returns the number of fused-kernel operations in a
//     block tree, descending into conditional branches and loop bodies.
//   - DescribeStructure returns a Report mirroring the control-flow nesting,
//     with the number of fused kernels at each level.
//
// The Check functions compare those against expected values and return a
// mismatch error carrying both values, to validate the output of a fusion pass:
//
//	p, _ := program.ReadFile("forward.json", program.Dialect{})
//	err := inspect.CheckProgramStructure(p, inspect.NewReport(1,
//	    inspect.IfChild(0, inspect.NewReport(1), inspect.NewReport(0)),
//	))
//
// Both modes walk the tree with an explicit work-list, so deep nesting doesn't
// grow the call stack. Input graphs are never modified and every call
// allocates its own result, so concurrent calls need no coordination.
package inspect

import (
	"github.com/pkg/errors"

	"github.com/gomlx/kernelscope/program"
)

// pathBlock is a block pending a visit, with its position for error messages.
type pathBlock struct {
	block *program.Block
	path  string
}

// CountFusedKernels returns the number of fused-kernel operations in block
// and, recursively, in the branches of its conditionals and the bodies of its loops.
//
// A nil block, a conditional missing a branch or a loop missing its body
// violate the graph preconditions and yield an error wrapping program.ErrMalformed.
func CountFusedKernels(block *program.Block) (int, error) {
	count := 0
	stack := []pathBlock{{block, "global"}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.block == nil {
			return 0, errors.Wrapf(program.ErrMalformed, "%s: nil block", cur.path)
		}

		var ifIdx, whileIdx int
		for _, op := range cur.block.Operations {
			switch op := op.(type) {
			case *program.FusedKernelOp:
				count++
			case *program.CondOp:
				ifPath, elsePath := cur.path+"/"+IfLabel(ifIdx), cur.path+"/"+ElseLabel(ifIdx)
				ifIdx++
				if op.True == nil || op.False == nil {
					return 0, errors.Wrapf(program.ErrMalformed, "%s: %q is missing a branch", ifPath, op.Name())
				}
				stack = append(stack, pathBlock{op.False, elsePath}, pathBlock{op.True, ifPath})
			case *program.WhileOp:
				path := cur.path + "/" + WhileLabel(whileIdx)
				whileIdx++
				if op.Body == nil {
					return 0, errors.Wrapf(program.ErrMalformed, "%s: %q is missing its body", path, op.Name())
				}
				stack = append(stack, pathBlock{op.Body, path})
			}
		}
	}
	return count, nil
}

// DescribeStructure returns the fused-kernel structure of block.
//
// For each block, FusedKernelCount holds the number of fused kernels directly
// in the block. The n-th conditional of the block (counting from 0, in order
// of appearance) adds the children "if_n" and "else_n" describing its true and
// false branches. The n-th loop adds the child "while_n" describing its body.
// Conditionals and loops are numbered independently, and numbering restarts
// in every block.
//
// Malformed graphs are reported as in CountFusedKernels.
func DescribeStructure(block *program.Block) (*Report, error) {
	type pending struct {
		pathBlock
		report *Report
	}

	root := &Report{}
	stack := []pending{{pathBlock{block, "global"}, root}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.block == nil {
			return nil, errors.Wrapf(program.ErrMalformed, "%s: nil block", cur.path)
		}

		var ifIdx, whileIdx int
		for _, op := range cur.block.Operations {
			switch op := op.(type) {
			case *program.FusedKernelOp:
				cur.report.FusedKernelCount++
			case *program.CondOp:
				ifLabel, elseLabel := IfLabel(ifIdx), ElseLabel(ifIdx)
				ifIdx++
				if op.True == nil || op.False == nil {
					return nil, errors.Wrapf(program.ErrMalformed, "%s/%s: %q is missing a branch",
						cur.path, ifLabel, op.Name())
				}
				trueReport, falseReport := &Report{}, &Report{}
				cur.report.Children = append(cur.report.Children,
					Child{Label: ifLabel, Report: trueReport},
					Child{Label: elseLabel, Report: falseReport})
				stack = append(stack,
					pending{pathBlock{op.False, cur.path + "/" + elseLabel}, falseReport},
					pending{pathBlock{op.True, cur.path + "/" + ifLabel}, trueReport})
			case *program.WhileOp:
				label := WhileLabel(whileIdx)
				whileIdx++
				if op.Body == nil {
					return nil, errors.Wrapf(program.ErrMalformed, "%s/%s: %q is missing its body",
						cur.path, label, op.Name())
				}
				body := &Report{}
				cur.report.Children = append(cur.report.Children, Child{Label: label, Report: body})
				stack = append(stack, pending{pathBlock{op.Body, cur.path + "/" + label}, body})
			}
		}
	}
	return root, nil
}
