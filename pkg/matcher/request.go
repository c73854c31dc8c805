package matcher

import (
	"fmt"

	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// CompileRequest describes a database to compile. Exactly one of Expression
// (with Flags) or Expressions must be set.
type CompileRequest struct {
	// Expression selects the single-pattern path.
	Expression *string
	// Flags applies to Expression only; per-pattern flags live in PatternSpec.
	Flags types.Flags

	// Expressions selects the multi-pattern path. Slice index is the pattern
	// index used in diagnostics.
	Expressions []types.PatternSpec

	Mode     types.Mode      // required
	Platform *types.Platform // nil = host platform
}

// Single returns a request for one expression.
func Single(expression string, flags types.Flags, mode types.Mode) CompileRequest {
	return CompileRequest{Expression: &expression, Flags: flags, Mode: mode}
}

// Multi returns a request for a batch of patterns.
func Multi(patterns []types.PatternSpec, mode types.Mode) CompileRequest {
	if patterns == nil {
		patterns = []types.PatternSpec{}
	}
	return CompileRequest{Expressions: patterns, Mode: mode}
}

// plan is a validated request with optional per-pattern fields resolved into
// the fixed arrays the engine takes. Arrays stay nil when no pattern sets
// the field.
type plan struct {
	single      bool
	expressions []string
	flags       []uint32
	ids         []uint32
	exts        []*types.ExprExt
	mode        types.Mode
	platform    *types.Platform
}

// hasExt reports whether the extended-constraint entry point is needed.
func (p *plan) hasExt() bool {
	return p.exts != nil
}

// resolve validates the request shape. It never touches the engine.
func (r CompileRequest) resolve() (*plan, error) {
	switch {
	case r.Expression == nil && r.Expressions == nil:
		return nil, usageError("", "specify 'expression' or 'expressions'")
	case r.Expression != nil && r.Expressions != nil:
		return nil, usageError("", "specify only one of 'expression' or 'expressions'")
	case r.Expressions != nil && r.Flags != nil:
		return nil, usageError("flags", "applies only to 'expression'; set flags per pattern")
	}
	if r.Mode == 0 {
		return nil, usageError("mode", "is required")
	}

	p := &plan{mode: r.Mode, platform: r.Platform}
	if r.Expression != nil {
		p.single = true
		p.expressions = []string{*r.Expression}
		p.flags = []uint32{types.BitsOf(r.Flags)}
		return p, nil
	}

	n := len(r.Expressions)
	p.expressions = make([]string, n)
	for i, spec := range r.Expressions {
		p.expressions[i] = spec.Expression
		if spec.ID != nil {
			if p.ids == nil {
				p.ids = make([]uint32, n)
			}
			p.ids[i] = *spec.ID
		}
		if spec.Flags != nil {
			if p.flags == nil {
				p.flags = make([]uint32, n)
			}
			p.flags[i] = spec.Flags.Bits()
		}
		if ext := spec.Ext.Resolve(); ext != nil {
			if p.exts == nil {
				p.exts = make([]*types.ExprExt, n)
			}
			p.exts[i] = ext
		}
	}
	return p, nil
}

// String summarizes the request for logs.
func (r CompileRequest) String() string {
	if r.Expression != nil {
		return fmt.Sprintf("expression %q mode %s", *r.Expression, r.Mode)
	}
	return fmt.Sprintf("%d expressions mode %s", len(r.Expressions), r.Mode)
}
