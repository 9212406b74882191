package toolbus

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
)

// The calculator parses the expression first and rejects any identifier
// outside this whitelist before anything is evaluated. Selector and index
// expressions are rejected outright, so there is no path to attribute
// access or arbitrary code.

var calcFuncs = map[string]func(...float64) (float64, error){
	"abs":   unary(math.Abs),
	"sqrt":  unary(math.Sqrt),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"round": unary(math.Round),
	"exp":   unary(math.Exp),
	"log":   unary(math.Log),
	"log2":  unary(math.Log2),
	"log10": unary(math.Log10),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"pow":   binary(math.Pow),
	"min":   binary(math.Min),
	"max":   binary(math.Max),
}

var calcConsts = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

func unary(f func(float64) float64) func(...float64) (float64, error) {
	return func(args ...float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		return f(args[0]), nil
	}
}

func binary(f func(float64, float64) float64) func(...float64) (float64, error) {
	return func(args ...float64) (float64, error) {
		if len(args) != 2 {
			return 0, fmt.Errorf("expected 2 arguments, got %d", len(args))
		}
		return f(args[0], args[1]), nil
	}
}

func calculatorTool() Tool {
	return Tool{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression, e.g. (23*19)+sqrt(144)",
		Invoke: func(_ context.Context, _ *Runtime, arg string) (string, error) {
			return Calculate(arg)
		},
	}
}

// Calculate parses and evaluates an arithmetic expression against the
// fixed math whitelist. Parse and whitelist checks run before any
// evaluation.
func Calculate(expr string) (string, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return "", fmt.Errorf("invalid expression: %w", err)
	}
	if err := checkWhitelist(node); err != nil {
		return "", err
	}
	v, err := evalExpr(node)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

// checkWhitelist walks the parsed expression and rejects any construct
// outside the arithmetic subset before evaluation starts.
func checkWhitelist(node ast.Expr) error {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return fmt.Errorf("literal not allowed: %s", n.Value)
		}
		return nil
	case *ast.Ident:
		if _, ok := calcConsts[n.Name]; !ok {
			return fmt.Errorf("identifier not allowed: %s", n.Name)
		}
		return nil
	case *ast.ParenExpr:
		return checkWhitelist(n.X)
	case *ast.UnaryExpr:
		if n.Op != token.ADD && n.Op != token.SUB {
			return fmt.Errorf("operator not allowed: %s", n.Op)
		}
		return checkWhitelist(n.X)
	case *ast.BinaryExpr:
		switch n.Op {
		case token.ADD, token.SUB, token.MUL, token.QUO, token.REM:
		default:
			return fmt.Errorf("operator not allowed: %s", n.Op)
		}
		if err := checkWhitelist(n.X); err != nil {
			return err
		}
		return checkWhitelist(n.Y)
	case *ast.CallExpr:
		ident, ok := n.Fun.(*ast.Ident)
		if !ok {
			return fmt.Errorf("only whitelisted functions may be called")
		}
		if _, ok := calcFuncs[ident.Name]; !ok {
			return fmt.Errorf("identifier not allowed: %s", ident.Name)
		}
		for _, arg := range n.Args {
			if err := checkWhitelist(arg); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("expression not allowed: %T", node)
	}
}

func evalExpr(node ast.Expr) (float64, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		return strconv.ParseFloat(n.Value, 64)
	case *ast.Ident:
		return calcConsts[n.Name], nil
	case *ast.ParenExpr:
		return evalExpr(n.X)
	case *ast.UnaryExpr:
		v, err := evalExpr(n.X)
		if err != nil {
			return 0, err
		}
		if n.Op == token.SUB {
			return -v, nil
		}
		return v, nil
	case *ast.BinaryExpr:
		x, err := evalExpr(n.X)
		if err != nil {
			return 0, err
		}
		y, err := evalExpr(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return x / y, nil
		case token.REM:
			if y == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return math.Mod(x, y), nil
		}
		return 0, fmt.Errorf("operator not allowed: %s", n.Op)
	case *ast.CallExpr:
		ident := n.Fun.(*ast.Ident)
		args := make([]float64, len(n.Args))
		for i, a := range n.Args {
			v, err := evalExpr(a)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		return calcFuncs[ident.Name](args...)
	default:
		return 0, fmt.Errorf("expression not allowed: %T", node)
	}
}
