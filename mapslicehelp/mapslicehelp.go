package mapslicehelp

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func LastElement[T any](elements []T) *T {
	length := len(elements)
	if length > 0 {
		return &elements[length-1]
	}
	return nil
}

func OrderedMapKeys[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []K {
	l := make([]K, m.Len())
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		l[i] = p.Key
		i++
	}
	return l
}

// OrderedMapFilter returns the keys, oldest first, of which the value satisfies keep
func OrderedMapFilter[K comparable, V any](m *orderedmap.OrderedMap[K, V], keep func(V) bool) []K {
	var l []K
	for p := m.Oldest(); p != nil; p = p.Next() {
		if keep(p.Value) {
			l = append(l, p.Key)
		}
	}
	return l
}

func ReverseClone[S ~[]E, E any](s S) S {
	if s == nil {
		return nil
	}
	l := len(s)
	c := make(S, l)
	for i := 0; i < l; i++ {
		c[l-1-i] = s[i]
	}
	return c
}
