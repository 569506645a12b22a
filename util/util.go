package util

import (
	"sort"

	"github.com/strataledger/strata/util/set"
)

func Keys[K comparable, V any](m map[K]V, filter ...func(k K) bool) []K {
	ret := make([]K, 0, len(m))
	if len(filter) == 0 {
		for k := range m {
			ret = append(ret, k)
		}
	} else {
		for k := range m {
			if filter[0](k) {
				ret = append(ret, k)
			}
		}
	}
	return ret
}

func KeySet[K comparable, V any](m map[K]V) set.Set[K] {
	ret := set.New[K]()
	for k := range m {
		ret.Insert(k)
	}
	return ret
}

func SortKeys[K comparable, V any](m map[K]V, less func(k1, k2 K) bool) []K {
	ret := Keys(m)
	sort.Slice(ret, func(i, j int) bool {
		return less(ret[i], ret[j])
	})
	return ret
}

func RangeReverse[T any](slice []T, fun func(i int, elem T) bool) {
	for i := len(slice) - 1; i >= 0; i-- {
		if !fun(i, slice[i]) {
			return
		}
	}
}
