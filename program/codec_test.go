package program

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

const forwardJSON = `{
  "name": "forward",
  "dialect": "pir",
  "ops": [
    {"name": "pd_op.data"},
    {"name": "cinn_op.jit_kernel_0"},
    {"name": "pd_op.if", "blocks": [
      {"ops": [{"name": "cinn_op.jit_kernel_1"}]},
      {"ops": []}
    ]},
    {"name": "pd_op.while", "blocks": [
      {"ops": [{"name": "cinn_op.jit_kernel_2"}, {"name": "pd_op.increment_"}]}
    ]}
  ]
}`

func TestDecode_JSON(t *testing.T) {
	p, err := Decode([]byte(forwardJSON), FormatJSON, Dialect{})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.Name != "forward" || p.Dialect != PIR {
		t.Errorf("Decode() = %q/%q, want forward/pir", p.Name, p.Dialect.Name)
	}
	if p.ID == "" {
		t.Error("Decode() didn't assign an ID")
	}

	ops := p.GlobalBlock().Operations
	wantKinds := []Kind{KindPlain, KindFusedKernel, KindCond, KindWhile}
	if len(ops) != len(wantKinds) {
		t.Fatalf("global block has %d operations, want %d", len(ops), len(wantKinds))
	}
	for i, op := range ops {
		if op.Kind() != wantKinds[i] {
			t.Errorf("operation #%d %q kind = %v, want %v", i, op.Name(), op.Kind(), wantKinds[i])
		}
	}
	cond := ops[2].(*CondOp)
	if cond.True.Len() != 1 || cond.False.Len() != 0 {
		t.Errorf("cond blocks have %d and %d operations, want 1 and 0", cond.True.Len(), cond.False.Len())
	}
	loop := ops[3].(*WhileOp)
	if loop.Body.Len() != 2 {
		t.Errorf("loop body has %d operations, want 2", loop.Body.Len())
	}
}

func TestDecode_DialectOverride(t *testing.T) {
	// Under the MIL dialect, pd_op.if is a plain operation and its blocks are dropped.
	p, err := Decode([]byte(forwardJSON), FormatJSON, MIL)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := p.GlobalBlock().Operations[2].Kind(); got != KindPlain {
		t.Errorf("pd_op.if kind under MIL = %v, want plain", got)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"cond with one block", `{"name": "f", "ops": [{"name": "pd_op.if", "blocks": [{"ops": []}]}]}`},
		{"cond without blocks", `{"name": "f", "ops": [{"name": "pd_op.if"}]}`},
		{"while with two blocks", `{"name": "f", "ops": [{"name": "pd_op.while", "blocks": [{"ops": []}, {"ops": []}]}]}`},
		{"nested", `{"name": "f", "ops": [{"name": "pd_op.while", "blocks": [{"ops": [{"name": "pd_op.while"}]}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc), FormatJSON, Dialect{})
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDecode_UnknownDialect(t *testing.T) {
	_, err := Decode([]byte(`{"name": "f", "dialect": "tosa", "ops": []}`), FormatJSON, Dialect{})
	if !errors.Is(err, ErrUnknownDialect) {
		t.Errorf("Decode() error = %v, want ErrUnknownDialect", err)
	}
}

func TestEncodeDecode_YAMLFile(t *testing.T) {
	b := NewBuilder("loop")
	b.While(func(bb *BlockBuilder) {
		bb.Op("cinn_op.jit_kernel_0")
		bb.Cond(
			func(bb *BlockBuilder) { bb.Op("cinn_op.jit_kernel_1") },
			func(bb *BlockBuilder) { bb.Op("pd_op.scale") },
		)
	})
	want, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "loop.yaml")
	if err := WriteFile(path, want); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := ReadFile(path, Dialect{})
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("ID = %q, want %q", got.ID, want.ID)
	}

	loop, ok := got.GlobalBlock().Operations[0].(*WhileOp)
	if !ok {
		t.Fatalf("operation #0 is %T, want *WhileOp", got.GlobalBlock().Operations[0])
	}
	cond, ok := loop.Body.Operations[1].(*CondOp)
	if !ok {
		t.Fatalf("loop body operation #1 is %T, want *CondOp", loop.Body.Operations[1])
	}
	if cond.False.Operations[0].Name() != "pd_op.scale" {
		t.Errorf("false branch = %q, want pd_op.scale", cond.False.Operations[0].Name())
	}
}

func TestReadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := ReadFile(filepath.Join(dir, "program.txt"), Dialect{}); err == nil {
		t.Error("ReadFile(.txt) error = nil, want an error")
	}
	if _, err := ReadFile(filepath.Join(dir, "missing.json"), Dialect{}); err == nil {
		t.Error("ReadFile(missing) error = nil, want an error")
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(bad, Dialect{}); err == nil {
		t.Error("ReadFile(bad json) error = nil, want an error")
	}
}
