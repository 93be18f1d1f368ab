package v1

import (
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/ast"
	"github.com/pkg/errors"

	"github.com/rish2jain/Incident-Commander-sub000/store"
)

// applyListFilter parses a CEL filter expression and applies the recognized
// constraints to the find struct. Supported forms are equality comparisons on
// status and severity, joined with &&, e.g.
//
//	status == "resolved" && severity == "critical"
func applyListFilter(filterStr string, find *store.FindIncident) error {
	filterStr = strings.TrimSpace(filterStr)
	if filterStr == "" {
		return nil
	}

	env, err := cel.NewEnv(
		cel.Variable("status", cel.StringType),
		cel.Variable("severity", cel.StringType),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create CEL environment")
	}

	celAST, issues := env.Compile(filterStr)
	if issues != nil && issues.Err() != nil {
		return errors.Wrapf(issues.Err(), "invalid filter expression: %s", filterStr)
	}

	return applyFilterExpr(celAST.NativeRep().Expr(), find)
}

// applyFilterExpr walks the checked expression and fills find. Conjunctions
// recurse; everything else must be a field == "literal" comparison.
func applyFilterExpr(expr ast.Expr, find *store.FindIncident) error {
	if expr == nil {
		return errors.New("empty filter expression")
	}
	if expr.Kind() != ast.CallKind {
		return errors.New("filter must be a comparison expression (e.g., status == 'resolved')")
	}

	call := expr.AsCall()
	switch call.FunctionName() {
	case "_&&_":
		for _, arg := range call.Args() {
			if err := applyFilterExpr(arg, find); err != nil {
				return err
			}
		}
		return nil
	case "_==_":
		args := call.Args()
		if len(args) != 2 {
			return errors.New("invalid comparison expression")
		}
		if field, value, ok := identAndLiteral(args[0], args[1]); ok {
			return applyComparison(field, value, find)
		}
		if field, value, ok := identAndLiteral(args[1], args[0]); ok {
			return applyComparison(field, value, find)
		}
		return errors.New("comparison must be between a field and a string literal")
	default:
		return errors.Errorf("unsupported operator: %s (only '==' and '&&' are supported)", call.FunctionName())
	}
}

func identAndLiteral(identExpr, literalExpr ast.Expr) (string, string, bool) {
	if identExpr.Kind() != ast.IdentKind || literalExpr.Kind() != ast.LiteralKind {
		return "", "", false
	}
	value, ok := literalExpr.AsLiteral().Value().(string)
	if !ok {
		return "", "", false
	}
	return identExpr.AsIdent(), value, true
}

func applyComparison(field, value string, find *store.FindIncident) error {
	switch field {
	case "status":
		status := store.IncidentStatus(value)
		if !status.IsValid() {
			return errors.Errorf("unknown status %q", value)
		}
		find.Status = &status
	case "severity":
		severity := store.IncidentSeverity(value)
		if !severity.IsValid() {
			return errors.Errorf("unknown severity %q", value)
		}
		find.Severity = &severity
	default:
		return errors.Errorf("unsupported filter field %q", field)
	}
	return nil
}
