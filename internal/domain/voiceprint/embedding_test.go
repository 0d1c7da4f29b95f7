package voiceprint

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare_IdenticalVectors(t *testing.T) {
	e := Embedding{0.1, 0.5, -0.3, 0.8}

	score, err := Compare(e, e)

	assert.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestCompare_OppositeVectors(t *testing.T) {
	a := Embedding{0.2, -0.4, 0.6}
	b := Embedding{-0.2, 0.4, -0.6}

	score, err := Compare(a, b)

	assert.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-9)
}

func TestCompare_OrthogonalVectors(t *testing.T) {
	a := Embedding{1, 0}
	b := Embedding{0, 1}

	score, err := Compare(a, b)

	assert.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-9)
}

func TestCompare_ScoreAlwaysInUnitInterval(t *testing.T) {
	vectors := []Embedding{
		{0.9, 0.1, 0.1},
		{-0.5, 0.5, 0.7},
		{0.001, -0.002, 0.003},
		{100, -200, 300},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			score, err := Compare(a, b)
			assert.NoError(t, err)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	}
}

func TestCompare_MalformedInputs(t *testing.T) {
	valid := Embedding{0.1, 0.2, 0.3}

	tests := []struct {
		name string
		a, b Embedding
	}{
		{"empty operand", Embedding{}, valid},
		{"nil operand", nil, valid},
		{"all zero", Embedding{0, 0, 0}, valid},
		{"nan component", Embedding{0.1, math.NaN(), 0.3}, valid},
		{"inf component", Embedding{0.1, math.Inf(1), 0.3}, valid},
		{"dimension mismatch", valid, Embedding{0.1, 0.2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compare(tt.a, tt.b)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable), "expected ErrUnavailable, got %v", err)
		})
	}
}

func TestValidate_AcceptsNegativeComponents(t *testing.T) {
	assert.NoError(t, Embedding{-0.5, 0.5}.Validate())
}
