// Package layer provides unit tests for neural network layers.
package layer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/activations"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/opt"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

// fill sets every element of t from f(index).
func fill(t *tensor.Tensor, f func(i int) float64) *tensor.Tensor {
	data := t.Data()
	for i := range data {
		data[i] = f(i)
	}
	return t
}

// weighted returns sum(out * g), a scalar whose gradient wrt out is g.
func weighted(out, g *tensor.Tensor) float64 {
	sum := 0.0
	for i, v := range out.Data() {
		sum += v * g.Data()[i]
	}
	return sum
}

// numericInputGrad estimates d(sum(l(in) * g))/d(in) by central differences.
func numericInputGrad(l Layer, in, g *tensor.Tensor) []float64 {
	probe := in.Clone()
	f := func(x []float64) float64 {
		copy(probe.Data(), x)
		return weighted(l.Activate(probe), g)
	}
	return fd.Gradient(nil, f, in.Clone().Data(), &fd.Settings{
		Formula: fd.Central,
		Step:    1e-6,
	})
}

// TestOutputRange tests the inverse window mapping against brute force.
func TestOutputRange(t *testing.T) {
	tests := []struct {
		in, kernel, stride int
	}{
		{3, 2, 1},
		{5, 3, 2},
		{7, 3, 2},
		{6, 2, 2},
		{5, 1, 2},
		{9, 3, 3},
		{4, 4, 1},
	}

	for _, tt := range tests {
		out := (tt.in-tt.kernel)/tt.stride + 1
		for coord := 0; coord < tt.in; coord++ {
			lo, hi := outputRange(coord, tt.kernel, tt.stride, out)

			var covering []int
			for o := 0; o < out; o++ {
				if o*tt.stride <= coord && coord < o*tt.stride+tt.kernel {
					covering = append(covering, o)
				}
			}

			var got []int
			for o := lo; o <= hi; o++ {
				got = append(got, o)
			}
			assert.Equal(t, covering, got, "in=%d k=%d s=%d coord=%d", tt.in, tt.kernel, tt.stride, coord)
		}
	}
}

// TestDenseForward tests the weighted sum and activation.
func TestDenseForward(t *testing.T) {
	d := NewDense(tensor.Size{X: 2, Y: 1, Z: 1}, 2, activations.KindTanh)
	// w(i, n): identity
	copy(d.Weights().Data(), []float64{1, 0, 0, 1})

	out := d.Activate(tensor.FromVector([]float64{1, 2}))

	assert.Equal(t, tensor.Size{X: 2, Y: 1, Z: 1}, out.Size())
	assert.InDelta(t, math.Tanh(1), out.At(0, 0, 0), 1e-12)
	assert.InDelta(t, math.Tanh(2), out.At(1, 0, 0), 1e-12)
}

// TestDenseFlattensInput tests that a 3-D input maps through storage order.
func TestDenseFlattensInput(t *testing.T) {
	in := tensor.Size{X: 2, Y: 2, Z: 2}
	d := NewDense(in, 1, activations.KindRelu)
	fill(d.Weights(), func(i int) float64 { return float64(i) })

	x := fill(tensor.NewSize(in), func(int) float64 { return 1 })
	out := d.Activate(x)

	// 0+1+...+7
	assert.Equal(t, 28.0, out.At(0, 0, 0))
}

// TestDenseInputGradient compares CalcGrads to a numerical estimate.
func TestDenseInputGradient(t *testing.T) {
	for _, k := range []activations.Kind{activations.KindTanh, activations.KindSigmoid, activations.KindLRelu} {
		in := tensor.Size{X: 3, Y: 2, Z: 1}
		d := NewDense(in, 4, k)
		x := fill(tensor.NewSize(in), func(i int) float64 { return 0.3*float64(i) - 0.7 })
		g := tensor.FromVector([]float64{0.5, -1, 0.25, 2})

		numeric := numericInputGrad(d, x, g)

		d.Activate(x)
		analytic := d.CalcGrads(g)

		assert.InDeltaSlice(t, numeric, analytic.Data(), 1e-5, "%v", k)
	}
}

// TestDenseNeuronGradient tests grad_n = upstream_n * act'(pre_n).
func TestDenseNeuronGradient(t *testing.T) {
	d := NewDense(tensor.Size{X: 2, Y: 1, Z: 1}, 1, activations.KindSigmoid)
	copy(d.Weights().Data(), []float64{0.5, -0.25})

	d.Activate(tensor.FromVector([]float64{2, 2}))
	d.CalcGrads(tensor.FromVector([]float64{3}))

	pre := 0.5*2 - 0.25*2
	want := 3 * activations.Sigmoid{}.Derivative(pre)
	assert.InDelta(t, want, d.NeuronGradient(0).Grad, 1e-12)
}

// TestDenseFixWeights tests the momentum update scaled by the input value.
func TestDenseFixWeights(t *testing.T) {
	d := NewDense(tensor.Size{X: 2, Y: 1, Z: 1}, 1, activations.KindRelu)
	copy(d.Weights().Data(), []float64{1, 2})

	d.Activate(tensor.FromVector([]float64{3, 4}))
	d.CalcGrads(tensor.FromVector([]float64{0.5}))
	g := d.NeuronGradient(0)
	require.InDelta(t, 0.5, g.Grad, 1e-12)

	d.FixWeights(0.1)

	assert.InDelta(t, opt.Update(1, g, 0.1, 3), d.Weights().At(0, 0, 0), 1e-12)
	assert.InDelta(t, opt.Update(2, g, 0.1, 4), d.Weights().At(1, 0, 0), 1e-12)
	assert.InDelta(t, 0.5, d.NeuronGradient(0).Prev, 1e-12)
}

// TestDenseWrongInputPanics tests the input shape precondition.
func TestDenseWrongInputPanics(t *testing.T) {
	d := NewDense(tensor.Size{X: 2, Y: 1, Z: 1}, 1, activations.KindTanh)

	assert.Panics(t, func() { d.Activate(tensor.FromVector([]float64{1, 2, 3})) })
	assert.Panics(t, func() { d.CalcGrads(tensor.FromVector([]float64{1, 2})) })
	assert.Panics(t, func() { NewDense(tensor.Size{X: 1, Y: 1, Z: 1}, 0, activations.KindTanh) })
}

// TestReLUScenario tests [-2, 0, 3] forward and backward.
func TestReLUScenario(t *testing.T) {
	r := NewReLU(tensor.Size{X: 3, Y: 1, Z: 1})

	out := r.Activate(tensor.FromVector([]float64{-2, 0, 3}))
	assert.Equal(t, []float64{0, 0, 3}, out.Data())

	grads := r.CalcGrads(tensor.FromVector([]float64{1, 1, 1}))
	assert.Equal(t, []float64{0, 1, 1}, grads.Data())
}

// TestReLUPassesUpstreamValue tests the gradient is copied, not replaced by 1.
func TestReLUPassesUpstreamValue(t *testing.T) {
	r := NewReLU(tensor.Size{X: 2, Y: 1, Z: 1})

	r.Activate(tensor.FromVector([]float64{-1, 5}))
	grads := r.CalcGrads(tensor.FromVector([]float64{7, -3}))

	assert.Equal(t, []float64{0, -3}, grads.Data())
}

// TestFixWeightsNoOp tests that untrainable layers do not change.
func TestFixWeightsNoOp(t *testing.T) {
	r := NewReLU(tensor.Size{X: 2, Y: 1, Z: 1})
	r.Activate(tensor.FromVector([]float64{-1, 5}))
	r.FixWeights(1)
	assert.Equal(t, []float64{0, 5}, r.Output().Data())
}

// TestKindOf tests the closed variant tags.
func TestKindOf(t *testing.T) {
	in := tensor.Size{X: 4, Y: 4, Z: 1}
	tests := []struct {
		l    Layer
		kind Kind
		tag  string
	}{
		{NewDense(in, 2, activations.KindTanh), KindDense, "fullconnected"},
		{NewConv2D(in, 2, 2, 1), KindConv2D, "convolutional"},
		{NewMaxPool2D(in, 2, 2), KindMaxPool2D, "pooling"},
		{NewReLU(in), KindReLU, "relu"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, KindOf(tt.l))
		assert.Equal(t, tt.tag, KindOf(tt.l).String())
	}
}
