package model

// CoerceInt converts the loosely typed values that arrive through
// SetParams maps (JSON numbers, search-space samples) to an int.
func CoerceInt(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	case float32:
		return int(x), true
	default:
		return 0, false
	}
}

// CoerceFloat converts the loosely typed values that arrive through
// SetParams maps to a float64.
func CoerceFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// CoerceBool converts SetParams values to a bool.
func CoerceBool(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// CoerceString converts SetParams values to a string.
func CoerceString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
