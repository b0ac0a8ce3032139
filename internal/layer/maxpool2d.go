package layer

import (
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

// MaxPool2D implements 2D max pooling over each depth slice.
// Only the window maxima are stored, not their positions: during backward
// every input equal to a window's maximum receives that window's full
// upstream gradient, so tied maxima each get the whole value.
type MaxPool2D struct {
	state

	kernel int
	stride int
}

// NewMaxPool2D creates a max pooling layer.
// It panics unless (in - kernel) is divisible by stride along x and y.
func NewMaxPool2D(in tensor.Size, kernel, stride int) *MaxPool2D {
	out := windowOutput("MaxPool2D", in, kernel, stride, in.Z)
	return &MaxPool2D{
		state:  newState(in, out),
		kernel: kernel,
		stride: stride,
	}
}

// RestoreMaxPool2D rebuilds a pooling layer from serialized tensors.
func RestoreMaxPool2D(in, out, gradients *tensor.Tensor, kernel, stride int) (*MaxPool2D, error) {
	if err := checkRestoredWindow("pooling", in, out, gradients, kernel, stride); err != nil {
		return nil, err
	}
	if out.Size().Z != in.Size().Z {
		return nil, fmt.Errorf("pooling: output depth %d, want %d", out.Size().Z, in.Size().Z)
	}
	return &MaxPool2D{
		state:  state{input: in, output: out, gradients: gradients},
		kernel: kernel,
		stride: stride,
	}, nil
}

func (m *MaxPool2D) kind() Kind { return KindMaxPool2D }

// KernelSize returns the pooling window edge length.
func (m *MaxPool2D) KernelSize() int { return m.kernel }

// Stride returns the pooling step.
func (m *MaxPool2D) Stride() int { return m.stride }

// Activate stores the maximum of each window.
func (m *MaxPool2D) Activate(in *tensor.Tensor) *tensor.Tensor {
	m.load("MaxPool2D", in)

	out := m.output.Size()
	for x := 0; x < out.X; x++ {
		for y := 0; y < out.Y; y++ {
			baseX, baseY := x*m.stride, y*m.stride
			for z := 0; z < out.Z; z++ {
				maxVal := math.Inf(-1)
				for i := 0; i < m.kernel; i++ {
					for j := 0; j < m.kernel; j++ {
						if v := m.input.At(baseX+i, baseY+j, z); v > maxVal {
							maxVal = v
						}
					}
				}
				m.output.Set(x, y, z, maxVal)
			}
		}
	}
	return m.output
}

// CalcGrads routes upstream gradient to every input equal to the maximum of
// a window that covers it.
func (m *MaxPool2D) CalcGrads(next *tensor.Tensor) *tensor.Tensor {
	m.checkUpstream("MaxPool2D", next)

	in := m.input.Size()
	out := m.output.Size()
	for x := 0; x < in.X; x++ {
		minX, maxX := outputRange(x, m.kernel, m.stride, out.X)
		for y := 0; y < in.Y; y++ {
			minY, maxY := outputRange(y, m.kernel, m.stride, out.Y)
			for z := 0; z < in.Z; z++ {
				v := m.input.At(x, y, z)
				sum := 0.0
				for i := minX; i <= maxX; i++ {
					for j := minY; j <= maxY; j++ {
						if v == m.output.At(i, j, z) {
							sum += next.At(i, j, z)
						}
					}
				}
				m.gradients.Set(x, y, z, sum)
			}
		}
	}
	return m.gradients
}

// FixWeights is a no-op: pooling has no trainable state.
func (m *MaxPool2D) FixWeights(learningRate float64) {}
