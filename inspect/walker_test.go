package inspect

import (
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/gomlx/kernelscope/program"
)

func fk(i int) *program.FusedKernelOp {
	return program.FusedKernel(fmt.Sprintf("cinn_op.jit_kernel_%d", i))
}

// mixedBlock nests loops in conditionals and conditionals in loops:
//
//	jit_kernel_0
//	if { jit_kernel_1; while { jit_kernel_2; jit_kernel_3 } } else { }
//	matmul
//	while { if { jit_kernel_4 } else { jit_kernel_5 } }
//	jit_kernel_6
//	if { } else { relu }
func mixedBlock() *program.Block {
	return program.NewBlock(
		fk(0),
		program.If(
			program.NewBlock(fk(1), program.While(program.NewBlock(fk(2), fk(3)))),
			program.NewBlock(),
		),
		program.Op("pd_op.matmul"),
		program.While(program.NewBlock(
			program.If(program.NewBlock(fk(4)), program.NewBlock(fk(5))),
		)),
		fk(6),
		program.If(program.NewBlock(), program.NewBlock(program.Op("pd_op.relu"))),
	)
}

func mixedReport() *Report {
	return NewReport(2,
		IfChild(0, NewReport(1, WhileChild(0, NewReport(2))), NewReport(0)),
		WhileChild(0, NewReport(0, IfChild(0, NewReport(1), NewReport(1)))),
		IfChild(1, NewReport(0), NewReport(0)),
	)
}

func TestCountFusedKernels_NoControlFlow(t *testing.T) {
	block := program.NewBlock(program.Op("pd_op.full"), program.Op("pd_op.add"))

	got, err := CountFusedKernels(block)
	if err != nil {
		t.Fatalf("CountFusedKernels() error = %v", err)
	}
	if got != 0 {
		t.Errorf("CountFusedKernels() = %d, want 0", got)
	}

	report, err := DescribeStructure(block)
	if err != nil {
		t.Fatalf("DescribeStructure() error = %v", err)
	}
	if !report.Equal(NewReport(0)) {
		t.Errorf("DescribeStructure() = %s, want {fused_kernel_count: 0}", report)
	}
	if !report.IsFlat() {
		t.Errorf("IsFlat() = false, want true")
	}
}

func TestCountFusedKernels_EmptyBlock(t *testing.T) {
	got, err := CountFusedKernels(program.NewBlock())
	if err != nil || got != 0 {
		t.Errorf("CountFusedKernels(empty) = %d, %v, want 0, nil", got, err)
	}
	report, err := DescribeStructure(program.NewBlock())
	if err != nil {
		t.Fatalf("DescribeStructure(empty) error = %v", err)
	}
	if report.FusedKernelCount != 0 || len(report.Children) != 0 {
		t.Errorf("DescribeStructure(empty) = %s, want {fused_kernel_count: 0}", report)
	}
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name      string
		block     *program.Block
		wantCount int
		want      *Report
	}{
		{
			name:      "flat",
			block:     program.NewBlock(fk(0), fk(1), program.Op("pd_op.relu")),
			wantCount: 2,
			want:      NewReport(2),
		},
		{
			name: "cond",
			block: program.NewBlock(
				fk(0),
				program.If(program.NewBlock(fk(1)), program.NewBlock()),
			),
			wantCount: 2,
			want:      NewReport(1, IfChild(0, NewReport(1), NewReport(0))),
		},
		{
			name:      "while",
			block:     program.NewBlock(program.While(program.NewBlock(fk(0), fk(1)))),
			wantCount: 2,
			want:      NewReport(0, WhileChild(0, NewReport(2))),
		},
		{
			name:      "mixed",
			block:     mixedBlock(),
			wantCount: 7,
			want:      mixedReport(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CountFusedKernels(tt.block)
			if err != nil {
				t.Fatalf("CountFusedKernels() error = %v", err)
			}
			if got != tt.wantCount {
				t.Errorf("CountFusedKernels() = %d, want %d", got, tt.wantCount)
			}

			report, err := DescribeStructure(tt.block)
			if err != nil {
				t.Fatalf("DescribeStructure() error = %v", err)
			}
			if diffs := Diff(report, tt.want); len(diffs) > 0 {
				t.Errorf("DescribeStructure() = %s, want %s\n%v", report, tt.want, diffs)
			}
			if report.Total() != got {
				t.Errorf("Total() = %d, CountFusedKernels() = %d", report.Total(), got)
			}
		})
	}
}

// randomBlock returns a block of up to 6 operations, nesting conditionals
// and loops while depth > 0.
func randomBlock(r *rand.Rand, depth int, next *int) *program.Block {
	block := program.NewBlock()
	for n := r.Intn(7); n > 0; n-- {
		choice := r.Intn(4)
		if depth == 0 {
			choice = r.Intn(2)
		}
		switch choice {
		case 0:
			block.Operations = append(block.Operations, fk(*next))
			*next++
		case 1:
			block.Operations = append(block.Operations, program.Op("pd_op.add"))
		case 2:
			block.Operations = append(block.Operations,
				program.If(randomBlock(r, depth-1, next), randomBlock(r, depth-1, next)))
		case 3:
			block.Operations = append(block.Operations, program.While(randomBlock(r, depth-1, next)))
		}
	}
	return block
}

func TestCountMatchesStructure_Generated(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		r := rand.New(rand.NewSource(seed))
		var kernels int
		block := randomBlock(r, 1+int(seed%4), &kernels)

		count, err := CountFusedKernels(block)
		if err != nil {
			t.Fatalf("seed %d: CountFusedKernels() error = %v", seed, err)
		}
		if count != kernels {
			t.Errorf("seed %d: CountFusedKernels() = %d, want %d", seed, count, kernels)
		}
		report, err := DescribeStructure(block)
		if err != nil {
			t.Fatalf("seed %d: DescribeStructure() error = %v", seed, err)
		}
		if report.Total() != count {
			t.Errorf("seed %d: Total() = %d, CountFusedKernels() = %d", seed, report.Total(), count)
		}

		// One more top-level kernel only moves the top-level count.
		block.Operations = append(block.Operations, fk(kernels))
		count2, err := CountFusedKernels(block)
		if err != nil {
			t.Fatalf("seed %d: CountFusedKernels() after append error = %v", seed, err)
		}
		if count2 != count+1 {
			t.Errorf("seed %d: CountFusedKernels() after append = %d, want %d", seed, count2, count+1)
		}
		report2, err := DescribeStructure(block)
		if err != nil {
			t.Fatalf("seed %d: DescribeStructure() after append error = %v", seed, err)
		}
		want := &Report{FusedKernelCount: report.FusedKernelCount + 1, Children: report.Children}
		if diffs := Diff(report2, want); len(diffs) > 0 {
			t.Errorf("seed %d: DescribeStructure() after append = %s, want %s\n%v", seed, report2, want, diffs)
		}
	}
}

func TestDescribeStructure_LabelOrder(t *testing.T) {
	block := program.NewBlock(
		program.If(program.NewBlock(), program.NewBlock()),
		program.While(program.NewBlock()),
		program.If(program.NewBlock(fk(0)), program.NewBlock()),
	)

	report, err := DescribeStructure(block)
	if err != nil {
		t.Fatalf("DescribeStructure() error = %v", err)
	}
	want := []string{"if_0", "else_0", "while_0", "if_1", "else_1"}
	if got := report.Labels(); !reflect.DeepEqual(got, want) {
		t.Errorf("Labels() = %v, want %v", got, want)
	}
	if got := report.Child("if_1").FusedKernelCount; got != 1 {
		t.Errorf("if_1 fused_kernel_count = %d, want 1", got)
	}
}

func TestDescribeStructure_IndicesRestartPerBlock(t *testing.T) {
	block := program.NewBlock(
		program.While(program.NewBlock(program.While(program.NewBlock(fk(0))))),
		program.While(program.NewBlock(program.If(program.NewBlock(), program.NewBlock()))),
	)

	report, err := DescribeStructure(block)
	if err != nil {
		t.Fatalf("DescribeStructure() error = %v", err)
	}
	if got, want := report.Labels(), []string{"while_0", "while_1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("top labels = %v, want %v", got, want)
	}
	if got, want := report.Child("while_0").Labels(), []string{"while_0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("while_0 labels = %v, want %v", got, want)
	}
	if got, want := report.Child("while_1").Labels(), []string{"if_0", "else_0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("while_1 labels = %v, want %v", got, want)
	}
}

func TestAppendFusedKernelAtTopLevel(t *testing.T) {
	before := mixedBlock()
	after := mixedBlock()
	after.Operations = append(after.Operations, fk(7))

	countBefore, err := CountFusedKernels(before)
	if err != nil {
		t.Fatalf("CountFusedKernels() error = %v", err)
	}
	countAfter, err := CountFusedKernels(after)
	if err != nil {
		t.Fatalf("CountFusedKernels() error = %v", err)
	}
	if countAfter != countBefore+1 {
		t.Errorf("count after append = %d, want %d", countAfter, countBefore+1)
	}

	reportBefore, _ := DescribeStructure(before)
	reportAfter, _ := DescribeStructure(after)
	if reportAfter.FusedKernelCount != reportBefore.FusedKernelCount+1 {
		t.Errorf("fused_kernel_count after append = %d, want %d",
			reportAfter.FusedKernelCount, reportBefore.FusedKernelCount+1)
	}
	for _, c := range reportBefore.Children {
		if !c.Report.Equal(reportAfter.Child(c.Label)) {
			t.Errorf("%s changed: %s -> %s", c.Label, c.Report, reportAfter.Child(c.Label))
		}
	}
}

func TestMalformed(t *testing.T) {
	tests := []struct {
		name  string
		block *program.Block
	}{
		{"nil block", nil},
		{"cond missing false", program.NewBlock(program.If(program.NewBlock(), nil))},
		{"cond missing true", program.NewBlock(program.If(nil, program.NewBlock()))},
		{"while missing body", program.NewBlock(program.While(nil))},
		{"nested", program.NewBlock(program.While(program.NewBlock(program.If(nil, nil))))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CountFusedKernels(tt.block); !errors.Is(err, program.ErrMalformed) {
				t.Errorf("CountFusedKernels() error = %v, want ErrMalformed", err)
			}
			if _, err := DescribeStructure(tt.block); !errors.Is(err, program.ErrMalformed) {
				t.Errorf("DescribeStructure() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDeepNesting(t *testing.T) {
	const depth = 10000
	block := program.NewBlock(fk(0))
	for i := 0; i < depth; i++ {
		block = program.NewBlock(fk(0), program.While(block))
	}

	got, err := CountFusedKernels(block)
	if err != nil {
		t.Fatalf("CountFusedKernels() error = %v", err)
	}
	if got != depth+1 {
		t.Errorf("CountFusedKernels() = %d, want %d", got, depth+1)
	}
	report, err := DescribeStructure(block)
	if err != nil {
		t.Fatalf("DescribeStructure() error = %v", err)
	}
	if report.Total() != depth+1 {
		t.Errorf("Total() = %d, want %d", report.Total(), depth+1)
	}
}

func TestConcurrentCalls(t *testing.T) {
	block := mixedBlock()
	want := mixedReport()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- CheckStructure(block, want)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("CheckStructure() error = %v", err)
		}
	}
}
