package mapslicehelp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func TestReverseClone(t *testing.T) {
	tests := []struct {
		name string
		s    []int
		want []int
	}{
		{name: "nil", s: nil, want: nil},
		{name: "empty", s: []int{}, want: []int{}},
		{name: "one", s: []int{1}, want: []int{1}},
		{name: "many", s: []int{1, 2, 3, 4}, want: []int{4, 3, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReverseClone(tt.s)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReverseCloneDoesNotAlias(t *testing.T) {
	s := []int{1, 2, 3}
	c := ReverseClone(s)
	c[0] = 99
	assert.Equal(t, []int{1, 2, 3}, s)
}

func TestLastElement(t *testing.T) {
	assert.Nil(t, LastElement([]int{}))
	assert.Equal(t, 3, *LastElement([]int{1, 2, 3}))
}

func TestOrderedMapKeys(t *testing.T) {
	m := orderedmap.New[string, bool]()
	m.Set("b", true)
	m.Set("a", false)
	m.Set("c", true)
	assert.Equal(t, []string{"b", "a", "c"}, OrderedMapKeys(m))
	assert.Equal(t, []string{"b", "c"}, OrderedMapFilter(m, func(v bool) bool { return v }))
}
