package program

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownDialect is returned by LookupDialect for names it doesn't know.
var ErrUnknownDialect = errors.New("unknown dialect")

// DefaultFusedKernelMarker is the substring that marks a fused-kernel call.
const DefaultFusedKernelMarker = "jit_kernel"

// Dialect maps operation names to operation kinds.
type Dialect struct {
	Name string

	// FusedKernelMarker is matched as a substring of the operation name.
	FusedKernelMarker string

	// CondName and WhileName are matched exactly.
	CondName  string
	WhileName string
}

var (
	// PIR is the dialect of Paddle's PIR programs after the CINN pass.
	PIR = Dialect{
		Name:              "pir",
		FusedKernelMarker: DefaultFusedKernelMarker,
		CondName:          "pd_op.if",
		WhileName:         "pd_op.while",
	}

	// MIL is the dialect of CoreML MIL programs.
	MIL = Dialect{
		Name:              "mil",
		FusedKernelMarker: DefaultFusedKernelMarker,
		CondName:          "cond",
		WhileName:         "while_loop",
	}
)

// Dialects lists the built-in dialects.
var Dialects = []Dialect{PIR, MIL}

// LookupDialect returns the built-in dialect with the given name.
func LookupDialect(name string) (Dialect, error) {
	for _, d := range Dialects {
		if d.Name == name {
			return d, nil
		}
	}
	return Dialect{}, errors.Wrapf(ErrUnknownDialect, "dialect %q", name)
}

// Validate checks that the dialect can classify names unambiguously.
func (d Dialect) Validate() error {
	if d.FusedKernelMarker == "" {
		return errors.Errorf("dialect %q: empty fused kernel marker", d.Name)
	}
	if d.CondName == "" || d.WhileName == "" {
		return errors.Errorf("dialect %q: cond and while operation names are required", d.Name)
	}
	if d.CondName == d.WhileName {
		return errors.Errorf("dialect %q: cond and while operation share the name %q", d.Name, d.CondName)
	}
	return nil
}

// Classify returns the kind of an operation with the given name.
// The fused-kernel marker takes precedence over the control-flow names.
func (d Dialect) Classify(name string) Kind {
	switch {
	case d.FusedKernelMarker != "" && strings.Contains(name, d.FusedKernelMarker):
		return KindFusedKernel
	case name == d.CondName:
		return KindCond
	case name == d.WhileName:
		return KindWhile
	default:
		return KindPlain
	}
}

// IsZero reports whether d is the zero Dialect.
func (d Dialect) IsZero() bool {
	return d == Dialect{}
}
