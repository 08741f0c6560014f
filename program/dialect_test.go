package program

import (
	"testing"

	"github.com/pkg/errors"
)

func TestDialect_Classify(t *testing.T) {
	tests := []struct {
		dialect Dialect
		name    string
		want    Kind
	}{
		{PIR, "cinn_op.jit_kernel", KindFusedKernel},
		{PIR, "jit_kernel_12", KindFusedKernel},
		{PIR, "pd_op.if", KindCond},
		{PIR, "pd_op.while", KindWhile},
		{PIR, "pd_op.if_grad", KindPlain},
		{PIR, "cond", KindPlain},
		{MIL, "cond", KindCond},
		{MIL, "while_loop", KindWhile},
		{MIL, "pd_op.while", KindPlain},
		{MIL, "custom_jit_kernel", KindFusedKernel},
	}
	for _, tt := range tests {
		if got := tt.dialect.Classify(tt.name); got != tt.want {
			t.Errorf("%s.Classify(%q) = %v, want %v", tt.dialect.Name, tt.name, got, tt.want)
		}
	}
}

func TestLookupDialect(t *testing.T) {
	for _, d := range Dialects {
		got, err := LookupDialect(d.Name)
		if err != nil {
			t.Fatalf("LookupDialect(%q) error = %v", d.Name, err)
		}
		if got != d {
			t.Errorf("LookupDialect(%q) = %+v, want %+v", d.Name, got, d)
		}
		if err := d.Validate(); err != nil {
			t.Errorf("%s.Validate() error = %v", d.Name, err)
		}
	}
	if _, err := LookupDialect("onnx"); !errors.Is(err, ErrUnknownDialect) {
		t.Errorf("LookupDialect(onnx) error = %v, want ErrUnknownDialect", err)
	}
}

func TestDialect_Validate(t *testing.T) {
	bad := []Dialect{
		{Name: "no-marker", CondName: "if", WhileName: "while"},
		{Name: "no-cond", FusedKernelMarker: "k", WhileName: "while"},
		{Name: "same", FusedKernelMarker: "k", CondName: "x", WhileName: "x"},
	}
	for _, d := range bad {
		if err := d.Validate(); err == nil {
			t.Errorf("%s.Validate() = nil, want an error", d.Name)
		}
	}
}
