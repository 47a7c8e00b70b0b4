package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Keys returns the keys of a container value in iteration order: positions
// (as float64) of an array, keys of an object. Keys whose value is null are
// omitted. Non-container values have no keys.
func Keys(v interface{}) []interface{} {
	switch x := v.(type) {
	case []interface{}:
		keys := make([]interface{}, 0, len(x))
		for i, e := range x {
			if e != nil {
				keys = append(keys, float64(i))
			}
		}
		return keys
	case *Object:
		keys := make([]interface{}, 0, x.Len())
		x.Range(func(k string, e interface{}) bool {
			if e != nil {
				keys = append(keys, k)
			}
			return true
		})
		return keys
	case map[string]interface{}:
		keys := make([]interface{}, 0, len(x))
		for _, k := range SortedKeys(x) {
			if x[k] != nil {
				keys = append(keys, k)
			}
		}
		return keys
	}
	return nil
}

// Index returns v[key], or nil when v is not a container or has no such key.
// Arrays accept integral numbers and numeric strings; objects accept strings
// and numbers in their key string form.
func Index(v, key interface{}) interface{} {
	switch x := v.(type) {
	case []interface{}:
		i, ok := arrayIndex(key)
		if !ok || i < 0 || i >= len(x) {
			return nil
		}
		return x[i]
	case *Object:
		k, ok := objectKey(key)
		if !ok {
			return nil
		}
		e, _ := x.Get(k)
		return e
	case map[string]interface{}:
		k, ok := objectKey(key)
		if !ok {
			return nil
		}
		return x[k]
	}
	return nil
}

func arrayIndex(key interface{}) (int, bool) {
	switch k := key.(type) {
	case float64:
		if k != math.Trunc(k) {
			return 0, false
		}
		return int(k), true
	case string:
		n, err := strconv.Atoi(k)
		return n, err == nil
	}
	return 0, false
}

func objectKey(key interface{}) (string, bool) {
	switch k := key.(type) {
	case string:
		return k, true
	case float64:
		return FormatNumber(k), true
	case bool:
		return strconv.FormatBool(k), true
	}
	return "", false
}

// FormatNumber renders n the shortest way that reads back to the same value.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// KeyString converts a scalar to the string used as object key when it
// becomes a group key.
func KeyString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return FormatNumber(x)
	}
	return StringOf(v)
}

// GroupKey converts a grouping key value to its object key. Only scalars
// can be keys.
func GroupKey(v interface{}) (string, error) {
	switch v.(type) {
	case string, float64, bool:
		return KeyString(v), nil
	}
	return "", Errorf(ErrNonScalarKey, "group key must be a string, number or boolean, got %s", kindOf(v))
}

func kindOf(v interface{}) string {
	switch v.(type) {
	case *Object, map[string]interface{}:
		return "an object"
	case []interface{}:
		return "an array"
	}
	return fmt.Sprintf("%T", v)
}

// StringOf renders a value as text: strings as-is, numbers in shortest form,
// arrays as their comma separated elements, objects as JSON.
func StringOf(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return FormatNumber(x)
	case bool:
		return strconv.FormatBool(x)
	case []interface{}:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = StringOf(e)
		}
		return strings.Join(parts, ",")
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Normalize converts Go values supplied by callers into the value model:
// every number becomes float64 and nested slices and maps are rebuilt as
// []interface{} and map[string]interface{}.
func Normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return v
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case []string:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case []float64:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case []int:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	case *Object:
		out := EmptyObject()
		x.Range(func(k string, e interface{}) bool {
			out.Set(k, Normalize(e))
			return true
		})
		return out
	}
	// fall back to a JSON round trip for structs and other types
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	out, err := DecodeJSON(b)
	if err != nil {
		return v
	}
	return out
}

// IsNumber reports whether v is a number of the value model.
func IsNumber(v interface{}) bool {
	_, ok := v.(float64)
	return ok
}

// Equal reports whether two scalar values are equal.
func Equal(a, b interface{}) bool {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case nil:
		return b == nil
	}
	return false
}

// DeepEqual reports whether two values of the value model are equal.
// Objects compare key by key regardless of order.
func DeepEqual(a, b interface{}) bool {
	switch x := a.(type) {
	case []interface{}:
		y, ok := b.([]interface{})
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !DeepEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Object, map[string]interface{}:
		xk, yk := Keys(a), Keys(b)
		if !isObject(b) || len(xk) != len(yk) {
			return false
		}
		for _, k := range xk {
			if !DeepEqual(Index(a, k), Index(b, k)) {
				return false
			}
		}
		return true
	}
	return Equal(a, b)
}

func isObject(v interface{}) bool {
	switch v.(type) {
	case *Object, map[string]interface{}:
		return true
	}
	return false
}
