package policy

import (
	"fmt"
)

// Summarize reduces statement conclusions to a decision. The first
// explicit allow or deny wins; otherwise ok/ng decide, and an undecided
// result falls back to defaultAllow.
func Summarize(conclusions []Conclusion, defaultAllow bool) bool {
	merged := UNSET
	for _, c := range conclusions {
		if c == ALLOW || c == DENY {
			return c == ALLOW
		}
		merged = merged.Or(c)
	}

	switch merged {
	case OK:
		return true
	case NG:
		return false
	default:
		return defaultAllow
	}
}

// EvaluatePolicy runs every statement registered for action. The returned
// trace holds one result per statement, in order, for diagnostics.
func EvaluatePolicy(doc PolicyDocument, ctx RequestContext, action string) (Conclusion, []EvalResult, error) {
	policy, ok := doc.Versions[Version2024]
	if !ok {
		return UNSET, nil, fmt.Errorf("unsupported policy version")
	}

	statements := policy.Statements[action]
	trace := make([]EvalResult, 0, len(statements))

	conclusion := UNSET
	for _, stmt := range statements {
		result, err := Eval(ctx, stmt.Condition)
		trace = append(trace, result)
		if err != nil {
			continue
		}

		if matched, _ := result.Result.(bool); matched {
			conclusion = conclusion.Or(ParseConclusion(stmt.Emit))
		}
	}
	return conclusion, trace, nil
}

func Eval(ctx RequestContext, expr Expr) (EvalResult, error) {
	if expr.Const != nil {
		return EvalResult{Operator: "Const", Result: expr.Const}, nil
	}

	operator, ok := operators[expr.Operator]
	if !ok {
		return failed(expr.Operator, "unknown operator: %s", expr.Operator)
	}

	args := make([]any, len(expr.Args))
	for i, arg := range expr.Args {
		result, err := Eval(ctx, arg)
		if err != nil {
			return EvalResult{Operator: expr.Operator, Args: []EvalResult{result}, Error: err.Error()}, err
		}
		args[i] = result.Result
	}

	return operator(ctx, args)
}
