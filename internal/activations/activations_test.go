// Package activations provides unit tests for activation functions.
package activations

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReLU tests ReLU activation and derivative.
func TestReLU(t *testing.T) {
	relu := ReLU{}

	tests := []struct {
		input, value, deriv float64
	}{
		{-1.0, 0.0, 0.0},
		{0.0, 0.0, 0.0},
		{1.0, 1.0, 1.0},
		{2.5, 2.5, 1.0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.value, relu.Activate(tt.input), "ReLU(%v)", tt.input)
		assert.Equal(t, tt.deriv, relu.Derivative(tt.input), "ReLU'(%v)", tt.input)
	}
}

// TestSigmoid tests Sigmoid activation.
func TestSigmoid(t *testing.T) {
	s := Sigmoid{}

	assert.InDelta(t, 0.5, s.Activate(0), 1e-12)
	assert.InDelta(t, 0.25, s.Derivative(0), 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(-2)), s.Activate(2), 1e-12)
}

// TestTanh tests Tanh and its derivative on the pre-activation.
func TestTanh(t *testing.T) {
	th := Tanh{}

	for _, x := range []float64{-2, -0.5, 0, 0.3, 1.7} {
		assert.InDelta(t, math.Tanh(x), th.Activate(x), 1e-12)
		assert.InDelta(t, 1-math.Tanh(x)*math.Tanh(x), th.Derivative(x), 1e-12)
	}
}

// TestLeakyReLU tests LeakyReLU slope.
func TestLeakyReLU(t *testing.T) {
	l := LeakyReLU{Alpha: 0.01}

	assert.InDelta(t, -0.02, l.Activate(-2), 1e-12)
	assert.Equal(t, 0.01, l.Derivative(-2))
	assert.Equal(t, 3.0, l.Activate(3))
	assert.Equal(t, 1.0, l.Derivative(3))
}

// TestDerivativeMatchesFiniteDifference checks each derivative numerically.
func TestDerivativeMatchesFiniteDifference(t *testing.T) {
	const h = 1e-6
	for _, k := range []Kind{KindTanh, KindSigmoid, KindRelu, KindLRelu} {
		act := New(k)
		for _, x := range []float64{-1.3, -0.2, 0.4, 2.1} {
			numeric := (act.Activate(x+h) - act.Activate(x-h)) / (2 * h)
			assert.InDelta(t, numeric, act.Derivative(x), 1e-6, "%v at %v", k, x)
		}
	}
}

// TestKindNames checks the model-file names round-trip.
func TestKindNames(t *testing.T) {
	tests := []struct {
		kind Kind
		name string
	}{
		{KindTanh, "Tanh"},
		{KindSigmoid, "Sigmoid"},
		{KindRelu, "Relu"},
		{KindLRelu, "LRelu"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.kind.String())
		k, err := ParseKind(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.kind, k)
	}

	_, err := ParseKind("Softplus")
	assert.Error(t, err)
}

func TestNewUnknownKindPanics(t *testing.T) {
	assert.Panics(t, func() { New(Kind(42)) })
}
