package policy

import (
	"fmt"
)

// Version is the only policy document version understood by EvaluatePolicy.
const Version = "2025-10-01"

func SummerizeConclusion(conclusions []Conclusion, defaultAllow bool) bool {
	result := UNSET
	for _, c := range conclusions {
		switch c {
		case ALLOW:
			return true
		case DENY:
			return false
		default:
			result = result.Or(c)
		}
	}
	if result == UNSET {
		return defaultAllow
	}
	return result == ALLOW
}

func EvaluatePolicy(policydoc PolicyDocument, ctx RequestContext, action string) (Conclusion, error) {

	policy, ok := policydoc.Versions[Version]
	if !ok {
		return UNSET, fmt.Errorf("unsupported policy version")
	}

	statements, ok := policy.Statements[action]
	if !ok {
		// No statements for this action
		return UNSET, nil
	}

	conclusion := UNSET
	for _, stmt := range statements {
		evalResult, err := Eval(ctx, stmt.Condition)
		if err != nil {
			continue
		}

		if evalResult.Result == true {
			emit := ParseConclusion(stmt.Emit)
			conclusion = conclusion.Or(emit)
		}
	}
	return conclusion, nil
}

func Eval(ctx RequestContext, expr Expr) (EvalResult, error) {

	if expr.Const != nil {
		return EvalResult{
			Operator: "Const",
			Result:   expr.Const,
		}, nil
	}

	args := make([]any, 0, len(expr.Args))
	for _, arg := range expr.Args {
		result, err := Eval(ctx, arg)
		if err != nil {
			return EvalResult{
				Operator: expr.Operator,
				Error:    err.Error(),
			}, err
		}
		args = append(args, result.Result)
	}

	if operatorFunc, exists := operators[expr.Operator]; exists {
		return operatorFunc(ctx, args)
	}

	err := fmt.Errorf("unknown operator: %s", expr.Operator)
	return EvalResult{
		Operator: expr.Operator,
		Error:    err.Error(),
	}, err
}

// Allowed evaluates action against doc and folds the result with the
// document default for that action.
func Allowed(doc PolicyDocument, ctx RequestContext, action string) (bool, error) {
	conclusion, err := EvaluatePolicy(doc, ctx, action)
	if err != nil {
		return false, err
	}
	return SummerizeConclusion([]Conclusion{conclusion}, doc.Versions[Version].Defaults[action]), nil
}
