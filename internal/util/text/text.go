package text

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// AvailableMapKeys renders the keys of a string-keyed map as a
// single-quoted, comma separated list, for assembling helptexts.
func AvailableMapKeys(m interface{}) string {
	v := reflect.ValueOf(m)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		panic(fmt.Sprintf("unsupported type for key listing: %T", m))
	}

	keys := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		keys = append(keys, "'"+k.String()+"'")
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

func Commify(v int) string { return Commify64(int64(v)) }

// Commify64 groups the digits of v in threes: 1234567 => "1,234,567"
func Commify64(v int64) string {
	s := strconv.FormatInt(v, 10)

	digits := s
	sign := ""
	if s[0] == '-' {
		sign, digits = "-", s[1:]
	}

	if len(digits) <= 3 {
		return s
	}

	var b strings.Builder
	b.WriteString(sign)

	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > len(sign) {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}

	return b.String()
}
