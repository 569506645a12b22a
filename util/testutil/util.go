package testutil

import (
	"fmt"
	"math/rand"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Integer interface {
	int | uint16 | uint32 | uint64 | int16 | int32 | int64
}

var prn = message.NewPrinter(language.English)

func GoThousands[T Integer](v T) string {
	return strings.Replace(prn.Sprintf("%d", v), ",", "_", -1)
}

// RandomDigits returns a string of n decimal digits from the given source.
// Used by store tests to generate indexed attribute values
func RandomDigits(rnd *rand.Rand, n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte('0' + rnd.Intn(10))
	}
	return string(buf)
}

// DistinctDigits returns n distinct digit strings
func DistinctDigits(rnd *rand.Rand, n, ln int) []string {
	seen := make(map[string]struct{}, n)
	ret := make([]string, 0, n)
	for len(ret) < n {
		d := RandomDigits(rnd, ln)
		if _, already := seen[d]; already {
			continue
		}
		seen[d] = struct{}{}
		ret = append(ret, d)
	}
	return ret
}

func ObjectName(prefix string, idx int) string {
	return fmt.Sprintf("%s-%d", prefix, idx)
}
