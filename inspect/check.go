package inspect

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/gomlx/kernelscope/program"
)

// ErrMismatch is wrapped by the errors returned when a computed count or
// structure differs from the expected one.
var ErrMismatch = errors.New("fused kernel mismatch")

// CountMismatchError is returned by CheckFusedKernelCount.
type CountMismatchError struct {
	Got, Want int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("fused kernel count mismatch: got %d, want %d", e.Got, e.Want)
}

func (e *CountMismatchError) Unwrap() error { return ErrMismatch }

// StructureMismatchError is returned by CheckStructure. It holds both full
// reports and the list of differences between them.
type StructureMismatchError struct {
	Got, Want *Report
	Diffs     []string
}

func (e *StructureMismatchError) Error() string {
	var sb strings.Builder
	sb.WriteString("fused kernel structure mismatch:\n")
	for _, d := range e.Diffs {
		sb.WriteString("  ")
		sb.WriteString(d)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "got:  %s\nwant: %s", e.Got, e.Want)
	return sb.String()
}

func (e *StructureMismatchError) Unwrap() error { return ErrMismatch }

// CheckFusedKernelCount returns a *CountMismatchError if block doesn't hold
// exactly want fused kernels.
func CheckFusedKernelCount(block *program.Block, want int) error {
	got, err := CountFusedKernels(block)
	if err != nil {
		return err
	}
	if got != want {
		return &CountMismatchError{Got: got, Want: want}
	}
	return nil
}

// CheckStructure returns a *StructureMismatchError if the structure of block
// differs from want. Counts must match at every level, and a label present
// in only one of the reports is a difference.
func CheckStructure(block *program.Block, want *Report) error {
	got, err := DescribeStructure(block)
	if err != nil {
		return err
	}
	if diffs := Diff(got, want); len(diffs) > 0 {
		return &StructureMismatchError{Got: got, Want: want, Diffs: diffs}
	}
	return nil
}

// CheckProgramFusedKernelCount runs CheckFusedKernelCount on the global block of p.
func CheckProgramFusedKernelCount(p *program.Program, want int) error {
	return errors.WithMessagef(CheckFusedKernelCount(p.GlobalBlock(), want), "program %q", programName(p))
}

// CheckProgramStructure runs CheckStructure on the global block of p.
func CheckProgramStructure(p *program.Program, want *Report) error {
	return errors.WithMessagef(CheckStructure(p.GlobalBlock(), want), "program %q", programName(p))
}

func programName(p *program.Program) string {
	if p == nil {
		return ""
	}
	return p.Name
}

// Diff lists the differences between got and want, one line per difference,
// each prefixed by the dotted label path. It returns nil when they are equal.
// A label present more than once in a report is a difference on its own:
// only its first occurrence is compared.
func Diff(got, want *Report) []string {
	var diffs []string
	type pair struct {
		path      string
		got, want *Report
	}
	queue := []pair{{"", got, want}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		prefix := cur.path
		if prefix != "" {
			prefix += "."
		}

		switch {
		case cur.got == nil && cur.want == nil:
			continue
		case cur.got == nil:
			diffs = append(diffs, fmt.Sprintf("%sgot nil report, want %s", prefix, cur.want))
			continue
		case cur.want == nil:
			diffs = append(diffs, fmt.Sprintf("%sgot %s, want nil report", prefix, cur.got))
			continue
		}

		diffs = append(diffs, duplicateLabels(prefix, "got", cur.got)...)
		diffs = append(diffs, duplicateLabels(prefix, "want", cur.want)...)
		if cur.got.FusedKernelCount != cur.want.FusedKernelCount {
			diffs = append(diffs, fmt.Sprintf("%s%s: got %d, want %d",
				prefix, FusedKernelCountKey, cur.got.FusedKernelCount, cur.want.FusedKernelCount))
		}
		for _, c := range cur.got.Children {
			wantChild := cur.want.Child(c.Label)
			if wantChild == nil {
				diffs = append(diffs, fmt.Sprintf("unexpected key %s%s", prefix, c.Label))
				continue
			}
			queue = append(queue, pair{prefix + c.Label, c.Report, wantChild})
		}
		for _, c := range cur.want.Children {
			if cur.got.Child(c.Label) == nil {
				diffs = append(diffs, fmt.Sprintf("missing key %s%s", prefix, c.Label))
			}
		}
	}
	return diffs
}

// duplicateLabels reports the labels that appear more than once in r.
func duplicateLabels(prefix, side string, r *Report) []string {
	var diffs []string
	count := make(map[string]int, len(r.Children))
	for _, c := range r.Children {
		count[c.Label]++
		if count[c.Label] == 2 {
			diffs = append(diffs, fmt.Sprintf("duplicate key %s%s in %s", prefix, c.Label, side))
		}
	}
	return diffs
}
