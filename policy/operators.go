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

func failed(op string, format string, args ...any) (EvalResult, error) {
	err := fmt.Errorf(format, args...)
	return EvalResult{
		Operator: op,
		Error:    err.Error(),
	}, err
}

func expectArgs(op string, args []any, n int) (EvalResult, error) {
	if len(args) != n {
		return failed(op, "bad argument length for %s. Expected %d but got %d", op, n, len(args))
	}
	return EvalResult{}, nil
}

func bools(op string, args []any) ([]bool, error) {
	result := make([]bool, 0, len(args))
	for i, arg := range args {
		b, ok := arg.(bool)
		if !ok {
			_, err := failed(op, "bad argument type for %s at index %d. Expected bool but got %s", op, i, reflect.TypeOf(arg))
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}

func opAnd(ctx RequestContext, args []any) (EvalResult, error) {
	values, err := bools("And", args)
	if err != nil {
		return EvalResult{Operator: "And", Error: err.Error()}, err
	}
	return EvalResult{Operator: "And", Result: !slices.Contains(values, false)}, nil
}

func opOr(ctx RequestContext, args []any) (EvalResult, error) {
	values, err := bools("Or", args)
	if err != nil {
		return EvalResult{Operator: "Or", Error: err.Error()}, err
	}
	return EvalResult{Operator: "Or", Result: slices.Contains(values, true)}, nil
}

func opNot(ctx RequestContext, args []any) (EvalResult, error) {
	if res, err := expectArgs("Not", args, 1); err != nil {
		return res, err
	}
	values, err := bools("Not", args)
	if err != nil {
		return EvalResult{Operator: "Not", Error: err.Error()}, err
	}
	return EvalResult{Operator: "Not", Result: !values[0]}, nil
}

func opEq(ctx RequestContext, args []any) (EvalResult, error) {
	if res, err := expectArgs("Eq", args, 2); err != nil {
		return res, err
	}
	return EvalResult{Operator: "Eq", Result: reflect.DeepEqual(args[0], args[1])}, nil
}

func opContains(ctx RequestContext, args []any) (EvalResult, error) {
	if res, err := expectArgs("Contains", args, 2); err != nil {
		return res, err
	}

	list, ok := args[0].([]any)
	if !ok {
		return failed("Contains", "bad argument type for Contains. Expected []any but got %s", reflect.TypeOf(args[0]))
	}

	found := slices.ContainsFunc(list, func(item any) bool {
		return reflect.DeepEqual(item, args[1])
	})
	return EvalResult{Operator: "Contains", Result: found}, nil
}

func opLoad(ctx RequestContext, args []any) (EvalResult, error) {
	if res, err := expectArgs("Load", args, 1); err != nil {
		return res, err
	}

	key, ok := args[0].(string)
	if !ok {
		return failed("Load", "bad argument type for Load. Expected string but got %s", reflect.TypeOf(args[0]))
	}

	value, ok := resolveDotNotation(ctx.root(), key)
	if !ok {
		return failed("Load", "key not found: %s", key)
	}

	return EvalResult{Operator: "Load", Result: value}, nil
}
