package inspect

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FusedKernelCountKey is the report key holding the number of fused kernels
// directly in a block.
const FusedKernelCountKey = "fused_kernel_count"

// Label prefixes of nested reports.
const (
	ifPrefix    = "if_"
	elsePrefix  = "else_"
	whilePrefix = "while_"
)

// IfLabel returns the label of the true branch of the n-th conditional of a block.
func IfLabel(n int) string { return ifPrefix + strconv.Itoa(n) }

// ElseLabel returns the label of the false branch of the n-th conditional of a block.
func ElseLabel(n int) string { return elsePrefix + strconv.Itoa(n) }

// WhileLabel returns the label of the body of the n-th loop of a block.
func WhileLabel(n int) string { return whilePrefix + strconv.Itoa(n) }

// validLabel reports whether label is "if_N", "else_N" or "while_N" with N a
// non-negative decimal integer.
func validLabel(label string) bool {
	for _, prefix := range []string{ifPrefix, elsePrefix, whilePrefix} {
		if idx, ok := strings.CutPrefix(label, prefix); ok {
			n, err := strconv.Atoi(idx)
			return err == nil && n >= 0 && strconv.Itoa(n) == idx
		}
	}
	return false
}

// Report describes the fused kernels of one block: how many are directly in
// it, and one nested report per conditional branch and loop body, labeled in
// order of appearance.
//
// Rendered as a mapping it looks like:
//
//	{fused_kernel_count: 1, if_0: {fused_kernel_count: 1}, else_0: {fused_kernel_count: 0}}
type Report struct {
	FusedKernelCount int
	Children         []Child
}

// Child is a labeled nested report.
type Child struct {
	Label  string
	Report *Report
}

// NewReport returns a report, handy to write expected values:
//
//	want := inspect.NewReport(1,
//	    inspect.IfChild(0, inspect.NewReport(1), inspect.NewReport(0)),
//	)
func NewReport(fusedKernelCount int, children ...[]Child) *Report {
	r := &Report{FusedKernelCount: fusedKernelCount}
	for _, c := range children {
		r.Children = append(r.Children, c...)
	}
	return r
}

// IfChild returns the two children "if_n" and "else_n" of the n-th conditional.
func IfChild(n int, trueReport, falseReport *Report) []Child {
	return []Child{
		{Label: IfLabel(n), Report: trueReport},
		{Label: ElseLabel(n), Report: falseReport},
	}
}

// WhileChild returns the child "while_n" of the n-th loop.
func WhileChild(n int, body *Report) []Child {
	return []Child{{Label: WhileLabel(n), Report: body}}
}

// Child returns the nested report with the given label, or nil.
func (r *Report) Child(label string) *Report {
	if r == nil {
		return nil
	}
	for _, c := range r.Children {
		if c.Label == label {
			return c.Report
		}
	}
	return nil
}

// Labels returns the labels of the nested reports, in order.
func (r *Report) Labels() []string {
	if r == nil {
		return nil
	}
	labels := make([]string, len(r.Children))
	for i, c := range r.Children {
		labels[i] = c.Label
	}
	return labels
}

// IsFlat reports whether the block has no control flow.
func (r *Report) IsFlat() bool {
	return r == nil || len(r.Children) == 0
}

// Total returns the number of fused kernels in the whole report tree.
func (r *Report) Total() int {
	if r == nil {
		return 0
	}
	total := 0
	stack := []*Report{r}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		total += cur.FusedKernelCount
		for _, c := range cur.Children {
			if c.Report != nil {
				stack = append(stack, c.Report)
			}
		}
	}
	return total
}

// Equal reports whether both reports have the same counts and the same set
// of labels at every level. The order of labels is not significant.
func (r *Report) Equal(other *Report) bool {
	return len(Diff(r, other)) == 0
}

// String renders the report as a mapping on one line.
func (r *Report) String() string {
	var buf strings.Builder
	r.writeTo(&buf)
	return buf.String()
}

func (r *Report) writeTo(buf *strings.Builder) {
	if r == nil {
		buf.WriteString("<nil>")
		return
	}
	fmt.Fprintf(buf, "{%s: %d", FusedKernelCountKey, r.FusedKernelCount)
	for _, c := range r.Children {
		buf.WriteString(", ")
		buf.WriteString(c.Label)
		buf.WriteString(": ")
		c.Report.writeTo(buf)
	}
	buf.WriteByte('}')
}

// MarshalJSON encodes the report as an object with FusedKernelCountKey first
// and then the nested reports in order.
func (r *Report) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteString(`{"` + FusedKernelCountKey + `":`)
	buf.WriteString(strconv.Itoa(r.FusedKernelCount))
	for _, c := range r.Children {
		key, err := json.Marshal(c.Label)
		if err != nil {
			return nil, err
		}
		child, err := c.Report.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(child)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a report object. Keys keep their order.
// JSON is parsed through the YAML decoder, which preserves mapping order.
func (r *Report) UnmarshalJSON(data []byte) error {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return errors.Wrap(err, "decode report")
	}
	return r.UnmarshalYAML(&node)
}

// MarshalYAML implements yaml.Marshaler.
func (r *Report) MarshalYAML() (interface{}, error) {
	return r.yamlNode(), nil
}

func (r *Report) yamlNode() *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: FusedKernelCountKey},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(r.FusedKernelCount)},
	)
	for _, c := range r.Children {
		child := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		if c.Report != nil {
			child = c.Report.yamlNode()
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Label}, child)
	}
	return node
}

// UnmarshalYAML implements yaml.Unmarshaler. Every mapping must hold a
// non-null FusedKernelCountKey, and besides it only "if_N", "else_N" and
// "while_N" keys are accepted.
func (r *Report) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) != 1 {
			return errors.New("decode report: empty document")
		}
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return errors.Errorf("decode report: line %d: expected a mapping", node.Line)
	}

	*r = Report{}
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		label := key.Value
		if seen[label] {
			return errors.Errorf("decode report: line %d: duplicate key %q", key.Line, label)
		}
		seen[label] = true

		if label == FusedKernelCountKey {
			if value.Kind == yaml.ScalarNode && value.ShortTag() == "!!null" {
				return errors.Errorf("decode report: line %d: null %s", value.Line, label)
			}
			var n int
			if err := value.Decode(&n); err != nil {
				return errors.Wrapf(err, "decode report: line %d: %s", value.Line, label)
			}
			if n < 0 {
				return errors.Errorf("decode report: line %d: negative %s %d", value.Line, label, n)
			}
			r.FusedKernelCount = n
			continue
		}
		if !validLabel(label) {
			return errors.Errorf("decode report: line %d: unexpected key %q", key.Line, label)
		}
		child := &Report{}
		if err := child.UnmarshalYAML(value); err != nil {
			return errors.Wrapf(err, "%s", label)
		}
		r.Children = append(r.Children, Child{Label: label, Report: child})
	}
	if !seen[FusedKernelCountKey] {
		return errors.Errorf("decode report: line %d: missing key %s", node.Line, FusedKernelCountKey)
	}
	return nil
}
