package types

import (
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is a JSON object that preserves key insertion order.
//
// Query results are built from Objects so that group keys appear in the
// order in which they were first produced. Decoded input data may use either
// Object or map[string]interface{}; maps are iterated in sorted key order.
type Object struct {
	m *orderedmap.OrderedMap[string, interface{}]
}

// EmptyObject returns an empty object.
func EmptyObject() *Object {
	return &Object{m: orderedmap.New[string, interface{}]()}
}

// ObjectOf returns an object with the given alternating keys and values.
func ObjectOf(kv ...interface{}) *Object {
	o := EmptyObject()
	for i := 0; i+1 < len(kv); i += 2 {
		o.Set(kv[i].(string), kv[i+1])
	}
	return o
}

// Set sets key to value. New keys are appended, existing keys keep their position.
func (o *Object) Set(key string, value interface{}) {
	o.m.Set(key, value)
}

// Delete removes key.
func (o *Object) Delete(key string) {
	o.m.Delete(key)
}

// Copy returns a shallow copy of the object.
func (o *Object) Copy() *Object {
	out := EmptyObject()
	o.Range(func(k string, v interface{}) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (interface{}, bool) {
	if o == nil {
		return nil, false
	}
	return o.m.Get(key)
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return o.m.Len()
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, 0, o.m.Len())
	for p := o.m.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Range calls fn for every key in insertion order until fn returns false.
func (o *Object) Range(fn func(key string, value interface{}) bool) {
	if o == nil {
		return
	}
	for p := o.m.Oldest(); p != nil; p = p.Next() {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

// MarshalJSON encodes the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	return o.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object keeping key order. Nested objects are
// decoded as *Object as well.
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	obj, ok := v.(*Object)
	if !ok {
		return Errorf(ErrInvalidInput, "expected JSON object")
	}
	o.m = obj.m
	return nil
}

// ToPlain converts a value tree using *Object into plain maps and slices, as
// produced by encoding/json. Key order is lost.
func ToPlain(v interface{}) interface{} {
	switch x := v.(type) {
	case *Object:
		out := make(map[string]interface{}, x.Len())
		x.Range(func(k string, v interface{}) bool {
			out[k] = ToPlain(v)
			return true
		})
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, v := range x {
			out[k] = ToPlain(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = ToPlain(e)
		}
		return out
	default:
		return v
	}
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
