package policy

import (
	"fmt"
	"reflect"
	"slices"
)

type Operator func(ctx RequestContext, args []any) (EvalResult, error)

var operators = map[string]Operator{
	"And":      opAnd,
	"Or":       opOr,
	"Not":      opNot,
	"Eq":       opEq,
	"Contains": opContains,
	"Load":     opLoad,
}

func failed(op string, err error) (EvalResult, error) {
	return EvalResult{
		Operator: op,
		Error:    err.Error(),
	}, err
}

func bools(op string, args []any) ([]bool, error) {
	out := make([]bool, 0, len(args))
	for i, arg := range args {
		b, ok := arg.(bool)
		if !ok {
			return nil, fmt.Errorf("bad argument type for %s at index %d. Expected bool but got %s", op, i, reflect.TypeOf(arg))
		}
		out = append(out, b)
	}
	return out, nil
}

func opAnd(ctx RequestContext, args []any) (EvalResult, error) {
	values, err := bools("And", args)
	if err != nil {
		return failed("And", err)
	}
	return EvalResult{
		Operator: "And",
		Result:   !slices.Contains(values, false),
	}, nil
}

func opOr(ctx RequestContext, args []any) (EvalResult, error) {
	values, err := bools("Or", args)
	if err != nil {
		return failed("Or", err)
	}
	return EvalResult{
		Operator: "Or",
		Result:   slices.Contains(values, true),
	}, nil
}

func opNot(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 1 {
		return failed("Not", fmt.Errorf("bad argument length for Not. Expected 1 but got %d", len(args)))
	}
	values, err := bools("Not", args)
	if err != nil {
		return failed("Not", err)
	}
	return EvalResult{
		Operator: "Not",
		Result:   !values[0],
	}, nil
}

// opEq compares loaded values, which are json decoded, with constants.
// Go numeric constants are widened to float64 so 1 equals a loaded id of 1.
func opEq(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 2 {
		return failed("Eq", fmt.Errorf("bad argument length for Eq. Expected 2 but got %d", len(args)))
	}
	return EvalResult{
		Operator: "Eq",
		Result:   number(args[0]) == number(args[1]),
	}, nil
}

func number(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return v
}

func opContains(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 2 {
		return failed("Contains", fmt.Errorf("bad argument length for Contains. Expected 2 but got %d", len(args)))
	}
	list, ok := args[0].([]any)
	if !ok {
		return failed("Contains", fmt.Errorf("bad argument type for Contains. Expected []any but got %s", reflect.TypeOf(args[0])))
	}
	return EvalResult{
		Operator: "Contains",
		Result:   slices.Contains(list, args[1]),
	}, nil
}

func opLoad(ctx RequestContext, args []any) (EvalResult, error) {
	if len(args) != 1 {
		return failed("Load", fmt.Errorf("bad argument length for Load. Expected 1 but got %d", len(args)))
	}
	path, ok := args[0].(string)
	if !ok {
		return failed("Load", fmt.Errorf("bad argument type for Load. Expected string but got %s", reflect.TypeOf(args[0])))
	}

	mapped, err := toMap(ctx)
	if err != nil {
		return failed("Load", err)
	}
	value, ok := lookup(mapped, path)
	if !ok {
		return failed("Load", fmt.Errorf("key not found: %s", path))
	}
	return EvalResult{
		Operator: "Load",
		Result:   value,
	}, nil
}
