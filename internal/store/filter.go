package store

import "fmt"

// validateFilter rejects unknown operators up front so a bad filter fails
// fast with ErrInvalidFilter instead of silently matching nothing.
func validateFilter(filter map[string]any) error {
	for field, cond := range filter {
		m, ok := cond.(map[string]any)
		if !ok {
			continue // bare scalar == equality, always valid
		}
		for op := range m {
			switch op {
			case "$in", "$gt", "$gte", "$lt", "$lte", "$ne":
			default:
				return &ErrInvalidFilter{Field: field, Reason: fmt.Sprintf("unknown operator %q", op)}
			}
		}
	}
	return nil
}

// matchesFilter evaluates the conjunction of per-field conditions against a
// scalar-valued metadata map (string, bool, or number per field).
func matchesFilter(metadata map[string]any, filter map[string]any) bool {
	for field, cond := range filter {
		val, present := metadata[field]
		m, isOp := cond.(map[string]any)
		if !isOp {
			if !present || !equalScalar(val, cond) {
				return false
			}
			continue
		}
		for op, operand := range m {
			switch op {
			case "$in":
				if !present || !containsAny(operand, val) {
					return false
				}
			case "$ne":
				if present && equalScalar(val, operand) {
					return false
				}
			case "$gt":
				if !present || compareScalar(val, operand) <= 0 {
					return false
				}
			case "$gte":
				if !present || compareScalar(val, operand) < 0 {
					return false
				}
			case "$lt":
				if !present || compareScalar(val, operand) >= 0 {
					return false
				}
			case "$lte":
				if !present || compareScalar(val, operand) > 0 {
					return false
				}
			}
		}
	}
	return true
}

func containsAny(operand any, val any) bool {
	list, ok := operand.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if equalScalar(val, item) {
			return true
		}
	}
	return false
}

// equalScalar compares two scalar metadata values, coercing both to float64
// when they're both numeric so int(5) and float64(5) compare equal.
func equalScalar(val, operand any) bool {
	if valF, ok := asFloat(val); ok {
		if opF, ok := asFloat(operand); ok {
			return valF == opF
		}
	}
	return fmt.Sprintf("%v", val) == fmt.Sprintf("%v", operand)
}

// compareScalar orders val against operand: numerically when both are
// numeric, otherwise lexicographically on their string forms. Returns
// <0, 0, >0.
func compareScalar(val, operand any) int {
	if valF, ok := asFloat(val); ok {
		if opF, ok := asFloat(operand); ok {
			switch {
			case valF < opF:
				return -1
			case valF > opF:
				return 1
			default:
				return 0
			}
		}
	}
	valStr, opStr := fmt.Sprintf("%v", val), fmt.Sprintf("%v", operand)
	switch {
	case valStr < opStr:
		return -1
	case valStr > opStr:
		return 1
	default:
		return 0
	}
}

// asFloat reports whether v is a numeric scalar and its float64 value.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
