package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentical(t *testing.T) {
	m := map[string]int{"a": 1}
	s := []int{1, 2, 3}
	p := &struct{ X int }{1}

	type wrapper struct {
		M map[string]int
		S []int
		N int
	}

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same map", m, m, true},
		{"equal but distinct maps", m, map[string]int{"a": 1}, false},
		{"same slice", s, s, true},
		{"resliced", s, s[:2], false},
		{"same pointer", p, p, true},
		{"distinct pointers", p, &struct{ X int }{1}, false},
		{"structs sharing refs", wrapper{m, s, 1}, wrapper{m, s, 1}, true},
		{"structs differing scalar", wrapper{m, s, 1}, wrapper{m, s, 2}, false},
		{"nil vs nil", nil, nil, true},
		{"nil vs value", nil, 1, false},
		{"different types", 1, int64(1), false},
		{"NaN", math.NaN(), math.NaN(), true},
		{"strings", "x", "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identical(tt.a, tt.b))
		})
	}
}

func TestModeOf(t *testing.T) {
	var nilMap map[string]any
	var nilPtr *struct{}

	tests := []struct {
		name  string
		state any
		want  Mode
	}{
		{"struct", struct{ A int }{}, ModeDraftable},
		{"map", map[string]any{}, ModeDraftable},
		{"slice", []int{}, ModeDraftable},
		{"array", [2]int{}, ModeDraftable},
		{"pointer to struct", &struct{}{}, ModeDraftable},
		{"int", 1, ModeOpaque},
		{"string", "s", ModeOpaque},
		{"nil", nil, ModeOpaque},
		{"nil map", nilMap, ModeOpaque},
		{"nil pointer", nilPtr, ModeOpaque},
		{"func", func() {}, ModeOpaque},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ModeOf(tt.state))
		})
	}
	assert.Equal(t, "draftable", ModeDraftable.String())
	assert.Equal(t, "opaque", ModeOpaque.String())
}
