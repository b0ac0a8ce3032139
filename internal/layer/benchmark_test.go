// Package layer provides benchmarks for layer operations.
package layer

import (
	"math/rand"
	"testing"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/activations"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

// random returns a tensor of the given shape filled with values in [0, 1).
func random(s tensor.Size) *tensor.Tensor {
	t := tensor.NewSize(s)
	data := t.Data()
	for i := range data {
		data[i] = rand.Float64()
	}
	return t
}

func benchmarkFull(b *testing.B, l Layer, in tensor.Size) {
	input := random(in)
	grad := random(OutputSize(l))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Activate(input)
		l.CalcGrads(grad)
		l.FixWeights(0.01)
	}
}

// BenchmarkConv2DForward benchmarks the forward pass of a convolutional layer.
func BenchmarkConv2DForward(b *testing.B) {
	// 32x32x3 input, 16 filters of 3x3
	in := tensor.Size{X: 32, Y: 32, Z: 3}
	layer := NewConv2D(in, 3, 1, 16)
	input := random(in)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		layer.Activate(input)
	}
}

// BenchmarkConv2DFull benchmarks a complete forward, backward and update.
func BenchmarkConv2DFull(b *testing.B) {
	in := tensor.Size{X: 32, Y: 32, Z: 3}
	benchmarkFull(b, NewConv2D(in, 3, 1, 16), in)
}

// BenchmarkConv2DStrided benchmarks a stride-2 convolution.
func BenchmarkConv2DStrided(b *testing.B) {
	in := tensor.Size{X: 33, Y: 33, Z: 3}
	benchmarkFull(b, NewConv2D(in, 3, 2, 16), in)
}

func BenchmarkMaxPool2DFull(b *testing.B) {
	in := tensor.Size{X: 32, Y: 32, Z: 16}
	benchmarkFull(b, NewMaxPool2D(in, 2, 2), in)
}

func BenchmarkReLUFull(b *testing.B) {
	in := tensor.Size{X: 32, Y: 32, Z: 16}
	benchmarkFull(b, NewReLU(in), in)
}

// BenchmarkDenseFull benchmarks a 784 -> 128 dense layer.
func BenchmarkDenseFull(b *testing.B) {
	in := tensor.Size{X: 28, Y: 28, Z: 1}
	benchmarkFull(b, NewDense(in, 128, activations.KindTanh), in)
}

// BenchmarkCodecWrite benchmarks model-file encoding of a conv layer.
func BenchmarkCodecWrite(b *testing.B) {
	layers := []Layer{NewConv2D(tensor.Size{X: 16, Y: 16, Z: 3}, 3, 1, 8)}
	var sink discard

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := Write(&sink, layers); err != nil {
			b.Fatal(err)
		}
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
