package journal

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/strataledger/strata/util"
)

// FieldObjectType is the field every stored object must carry for the index layer
const FieldObjectType = "object-type"

// Value is one stored record: an open mapping of named fields.
// The set of object types is not closed at build time, so records stay generic.
// Field values are scalars, nested map[string]any or []any
type Value map[string]any

func (v Value) Clone() Value {
	if v == nil {
		return nil
	}
	ret := make(Value, len(v))
	for k, el := range v {
		ret[k] = cloneField(el)
	}
	return ret
}

func cloneField(x any) any {
	switch el := x.(type) {
	case Value:
		return map[string]any(el.Clone())
	case map[string]any:
		return map[string]any(Value(el).Clone())
	case []any:
		ret := make([]any, len(el))
		for i, sub := range el {
			ret[i] = cloneField(sub)
		}
		return ret
	default:
		// scalar, immutable by value
		return x
	}
}

// ObjectType returns the value of the mandatory object type field
func (v Value) ObjectType() (string, bool) {
	return v.StringField(FieldObjectType)
}

func (v Value) MustObjectType() string {
	ret, ok := v.ObjectType()
	util.Assertf(ok, "MustObjectType: missing or non-string '%s' field", FieldObjectType)
	return ret
}

// StringField returns the named field if it exists and is a string.
// Non-string fields never participate in indexes
func (v Value) StringField(name string) (string, bool) {
	if v == nil {
		return "", false
	}
	ret, ok := v[name].(string)
	return ret, ok
}

func (v Value) String() string {
	keys := util.Keys(v)
	slices.Sort(keys)
	ret := "{"
	for i, k := range keys {
		if i > 0 {
			ret += ", "
		}
		ret += fmt.Sprintf("%s: %v", k, v[k])
	}
	return ret + "}"
}
