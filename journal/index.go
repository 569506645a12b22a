package journal

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/strataledger/strata/util"
)

// index names have the form "<object-type>:<attribute>", exactly one colon,
// both parts non-empty. Malformed names are a caller error, never a store fault

func parseIndexName(name string) (objectType, attribute string, err error) {
	parts := strings.Split(name, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("index '%s': %w", name, ErrMalformedIndex)
	}
	return parts[0], parts[1], nil
}

// ensureIndex materializes the named index if it is registered but not yet built.
// Building scans the full composed state in ascending key order, keeping the
// first-seen object per attribute value. Caller must hold s.mutex
func (s *ObjectStore) ensureIndex(name string) map[string]Value {
	if idx := s.indexes[name]; idx != nil {
		return idx
	}
	objectType, attribute, err := parseIndexName(name)
	util.AssertNoError(err) // registration already validated the name

	idx := make(map[string]Value)
	composed := s.kv.Compose()
	keys := util.Keys(composed)
	slices.Sort(keys)
	for _, k := range keys {
		obj := composed[k]
		if t, ok := obj.ObjectType(); !ok || t != objectType {
			continue
		}
		attrValue, ok := obj.StringField(attribute)
		if !ok {
			continue
		}
		if _, already := idx[attrValue]; !already {
			idx[attrValue] = obj
		}
	}
	s.indexes[name] = idx
	return idx
}

// indexesOfType returns the registered index names whose object type matches,
// in deterministic order. Caller must hold s.mutex
func (s *ObjectStore) indexesOfType(objectType string) []string {
	ret := util.Keys(s.indexes, func(name string) bool {
		return strings.HasPrefix(name, objectType+":")
	})
	slices.Sort(ret)
	return ret
}

func mustIndexAttribute(name string) string {
	_, attribute, err := parseIndexName(name)
	util.AssertNoError(err)
	return attribute
}
