// Package models provides condition expression evaluation for workflow transitions.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// SimpleConditionInterpreter evaluates the built-in expression language used
// by transition guards. Supported forms:
//
//	""                    always true
//	"true" / "false"      boolean literal
//	"exists <key>"        key is present in the context
//	"<key> == <literal>"  context value equals the literal
//	"<key> != <literal>"  context value differs from the literal
//
// Literals are compared as booleans, numbers or strings, in that order.
type SimpleConditionInterpreter struct{}

func (SimpleConditionInterpreter) Evaluate(expression string, context map[string]any) (bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return true, nil
	}

	if v, err := strconv.ParseBool(expression); err == nil {
		return v, nil
	}

	if key, ok := strings.CutPrefix(expression, "exists "); ok {
		_, present := lookupPath(context, strings.TrimSpace(key))

		return present, nil
	}

	if lhs, rhs, ok := strings.Cut(expression, "!="); ok {
		eq, err := compare(context, lhs, rhs)

		return !eq, err
	}

	if lhs, rhs, ok := strings.Cut(expression, "=="); ok {
		return compare(context, lhs, rhs)
	}

	return false, fmt.Errorf("unsupported condition expression %q", expression)
}

func compare(context map[string]any, lhs, rhs string) (bool, error) {
	key := strings.TrimSpace(lhs)

	value, present := lookupPath(context, key)
	if !present {
		return false, nil
	}

	return literalEquals(value, strings.TrimSpace(rhs)), nil
}

// lookupPath resolves a dotted key ("task_x_result.approved") inside nested maps.
func lookupPath(context map[string]any, key string) (any, bool) {
	parts := strings.Split(key, ".")

	var current any = context

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func literalEquals(value any, literal string) bool {
	literal = strings.Trim(literal, `"'`)

	switch v := value.(type) {
	case bool:
		b, err := strconv.ParseBool(literal)

		return err == nil && b == v
	case string:
		return v == literal
	case int:
		n, err := strconv.ParseFloat(literal, 64)

		return err == nil && n == float64(v)
	case int64:
		n, err := strconv.ParseFloat(literal, 64)

		return err == nil && n == float64(v)
	case float64:
		n, err := strconv.ParseFloat(literal, 64)

		return err == nil && n == v
	default:
		return fmt.Sprintf("%v", value) == literal
	}
}
