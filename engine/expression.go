package engine

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// ============================================================================
// EXPRESSION FILTERS — CEL predicates over a whole record
// ============================================================================
// Example:
//
//	filters:
//	  - operator: expression
//	    value: 'record["region"] == "EU" && double(record["revenue"]) > 100.0'
//
// Evaluation errors (missing keys, type mismatches) make the predicate false.
// ============================================================================

var celEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
	)
})

func compileExpression(f Filter) (predicate, error) {
	expr, ok := f.Value.(string)
	if !ok || expr == "" {
		return never, &FilterError{Field: f.Field, Operator: f.Operator, Reason: "value must be a non-empty expression"}
	}

	env, err := celEnv()
	if err != nil {
		return never, &FilterError{Field: f.Field, Operator: f.Operator, Reason: "expression environment unavailable", Err: err}
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return never, &FilterError{Field: f.Field, Operator: f.Operator, Reason: "invalid expression", Err: iss.Err()}
	}

	prg, err := env.Program(ast)
	if err != nil {
		return never, &FilterError{Field: f.Field, Operator: f.Operator, Reason: "invalid expression", Err: err}
	}

	return func(v RecordView, i int) bool {
		rec := v.Record(i)
		if rec == nil {
			return false
		}
		out, _, err := prg.Eval(map[string]any{"record": map[string]any(rec)})
		if err != nil {
			return false
		}
		b, ok := out.Value().(bool)
		return ok && b
	}, nil
}

// ExpressionError returns a descriptive error when expr does not compile.
// Used by validation to reject broken expressions before rendering.
func ExpressionError(expr string) error {
	_, err := compileExpression(Filter{Operator: OpExpression, Value: expr})
	if err != nil {
		return fmt.Errorf("expression %q: %w", expr, err)
	}
	return nil
}
