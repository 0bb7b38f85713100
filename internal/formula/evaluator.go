// Package formula evaluates the expressions used by view configurations:
// display guards, title and badge formulas, aggregation filters and the
// row-creation formula. Expressions are CEL programs evaluated over an
// explicit scope, so they cannot reach anything the caller did not bind.
package formula

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"
)

// DefaultCostLimit bounds the work a single evaluation may do.
const DefaultCostLimit = 1_000_000

// Context holds the constants every evaluation sees, such as the host's
// function context. Scope variables shadow constants of the same name.
type Context struct {
	Constants map[string]any
	CostLimit uint64
}

// Evaluator compiles and runs formulas. Compiled programs are kept per
// expression and variable set; it is safe for concurrent use.
type Evaluator struct {
	ctx  Context
	base *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewEvaluator creates an evaluator bound to ctx.
func NewEvaluator(ctx Context) (*Evaluator, error) {
	if ctx.CostLimit == 0 {
		ctx.CostLimit = DefaultCostLimit
	}
	base, err := cel.NewEnv(
		ext.Strings(),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("creating formula environment: %w", err)
	}
	return &Evaluator{ctx: ctx, base: base, programs: map[string]cel.Program{}}, nil
}

var identPattern = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`)

var reserved = map[string]bool{
	"true": true, "false": true, "null": true, "in": true, "as": true, "break": true,
	"const": true, "continue": true, "else": true, "for": true, "function": true,
	"if": true, "import": true, "let": true, "loop": true, "package": true,
	"namespace": true, "return": true, "var": true, "void": true, "while": true,
}

// Eval evaluates expr with scope bound and returns a native Go value: nil,
// bool, int64, uint64, float64, string, []any or map[string]any.
func (e *Evaluator) Eval(expr string, scope map[string]any) (any, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	vars := e.bindings(scope)
	prg, err := e.program(expr, vars)
	if err != nil {
		return nil, err
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", expr, err)
	}
	return toNative(out), nil
}

// Truthy evaluates expr and reports whether the result is truthy.
func (e *Evaluator) Truthy(expr string, scope map[string]any) (bool, error) {
	v, err := e.Eval(expr, scope)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// EvalObject evaluates expr and requires an object result.
func (e *Evaluator) EvalObject(expr string, scope map[string]any) (map[string]any, error) {
	v, err := e.Eval(expr, scope)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("formula %q must evaluate to an object, got %T", expr, v)
	}
	return obj, nil
}

func (e *Evaluator) bindings(scope map[string]any) map[string]any {
	vars := make(map[string]any, len(scope)+len(e.ctx.Constants))
	for k, v := range e.ctx.Constants {
		if usableName(k) {
			vars[k] = v
		}
	}
	for k, v := range scope {
		if usableName(k) {
			vars[k] = v
		}
	}
	return vars
}

func usableName(name string) bool {
	return identPattern.MatchString(name) && !reserved[name]
}

func (e *Evaluator) program(expr string, vars map[string]any) (cel.Program, error) {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	key := expr + "\x00" + strings.Join(names, ",")

	e.mu.RLock()
	prg, ok := e.programs[key]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	opts := make([]cel.EnvOption, 0, len(names))
	for _, n := range names {
		opts = append(opts, cel.Variable(n, cel.DynType))
	}
	env, err := e.base.Extend(opts...)
	if err != nil {
		return nil, fmt.Errorf("declaring formula variables: %w", err)
	}
	ast, iss := env.Compile(Normalize(expr))
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compiling %q: %w", expr, iss.Err())
	}
	prg, err = env.Program(ast, cel.CostLimit(e.ctx.CostLimit))
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", expr, err)
	}

	e.mu.Lock()
	e.programs[key] = prg
	e.mu.Unlock()
	return prg, nil
}

func toNative(v ref.Val) any {
	if v == nil || v.Type() == types.NullType {
		return nil
	}
	switch val := v.(type) {
	case traits.Mapper:
		out := map[string]any{}
		it := val.Iterator()
		for it.HasNext() == types.True {
			k := it.Next()
			out[fmt.Sprint(k.Value())] = toNative(val.Get(k))
		}
		return out
	case traits.Lister:
		n, _ := val.Size().(types.Int)
		out := make([]any, 0, int(n))
		for i := types.Int(0); i < n; i++ {
			out = append(out, toNative(val.Get(i)))
		}
		return out
	}
	return v.Value()
}

// Truthy applies the host's truthiness rules: nil, false, zero, NaN and the
// empty string are falsy; everything else, including empty lists and
// objects, is truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case uint64:
		return t != 0
	case float64:
		return t != 0 && !math.IsNaN(t)
	}
	return true
}
