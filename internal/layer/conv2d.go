package layer

import (
	"fmt"
	"math/rand"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/opt"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

// Conv2D implements a 2D convolutional layer (valid cross-correlation, no
// padding, no bias).
// Each filter is shaped (kernel, kernel, inputDepth); output depth equals the
// number of filters.
type Conv2D struct {
	state

	filters []*tensor.Tensor
	// filterGrads[f] is laid out like filters[f].Data().
	filterGrads [][]opt.Gradient

	kernel int
	stride int
}

// NewConv2D creates a convolutional layer with filters drawn uniformly from [-1, 1).
// It panics unless (in - kernel) is divisible by stride along x and y.
func NewConv2D(in tensor.Size, kernel, stride, numFilters int) *Conv2D {
	if numFilters <= 0 {
		panic(fmt.Sprintf("Conv2D: filter count %d must be positive", numFilters))
	}
	out := windowOutput("Conv2D", in, kernel, stride, numFilters)

	filters := make([]*tensor.Tensor, numFilters)
	for f := range filters {
		filters[f] = tensor.New(kernel, kernel, in.Z)
		data := filters[f].Data()
		for i := range data {
			data[i] = rand.Float64()*2 - 1
		}
	}

	return &Conv2D{
		state:       newState(in, out),
		filters:     filters,
		filterGrads: newFilterGrads(filters),
		kernel:      kernel,
		stride:      stride,
	}
}

// RestoreConv2D rebuilds a convolutional layer from serialized tensors.
// Filter gradients start at zero.
func RestoreConv2D(in, out, gradients *tensor.Tensor, filters []*tensor.Tensor, kernel, stride int) (*Conv2D, error) {
	if err := checkRestoredWindow("convolutional", in, out, gradients, kernel, stride); err != nil {
		return nil, err
	}
	if len(filters) != out.Size().Z {
		return nil, fmt.Errorf("convolutional: %d filters for output depth %d", len(filters), out.Size().Z)
	}
	want := tensor.Size{X: kernel, Y: kernel, Z: in.Size().Z}
	for f, filter := range filters {
		if filter.Size() != want {
			return nil, fmt.Errorf("convolutional: filter %d shape %v, want %v", f, filter.Size(), want)
		}
	}

	return &Conv2D{
		state:       state{input: in, output: out, gradients: gradients},
		filters:     filters,
		filterGrads: newFilterGrads(filters),
		kernel:      kernel,
		stride:      stride,
	}, nil
}

func newFilterGrads(filters []*tensor.Tensor) [][]opt.Gradient {
	grads := make([][]opt.Gradient, len(filters))
	for f, filter := range filters {
		grads[f] = make([]opt.Gradient, filter.Len())
	}
	return grads
}

func (c *Conv2D) kind() Kind { return KindConv2D }

// KernelSize returns the filter edge length.
func (c *Conv2D) KernelSize() int { return c.kernel }

// Stride returns the filter step.
func (c *Conv2D) Stride() int { return c.stride }

// Filters returns the live filter tensors.
func (c *Conv2D) Filters() []*tensor.Tensor { return c.filters }

// FilterGradient returns the gradient pair of filter f at (i, j, z).
func (c *Conv2D) FilterGradient(f, i, j, z int) opt.Gradient {
	return c.filterGrads[f][c.filterOffset(i, j, z)]
}

func (c *Conv2D) filterOffset(i, j, z int) int {
	return z*c.kernel*c.kernel + j*c.kernel + i
}

// Activate computes output(x, y, f) = sum over the window and input depth of
// filter_f(i, j, z) * input(x*stride+i, y*stride+j, z).
func (c *Conv2D) Activate(in *tensor.Tensor) *tensor.Tensor {
	c.load("Conv2D", in)

	out := c.output.Size()
	depth := c.input.Size().Z
	for f, filter := range c.filters {
		for x := 0; x < out.X; x++ {
			for y := 0; y < out.Y; y++ {
				baseX, baseY := x*c.stride, y*c.stride
				sum := 0.0
				for i := 0; i < c.kernel; i++ {
					for j := 0; j < c.kernel; j++ {
						for z := 0; z < depth; z++ {
							sum += filter.At(i, j, z) * c.input.At(baseX+i, baseY+j, z)
						}
					}
				}
				c.output.Set(x, y, f, sum)
			}
		}
	}
	return c.output
}

// CalcGrads maps each input position back to the output cells that read it
// and accumulates both the input gradient and the filter gradients.
func (c *Conv2D) CalcGrads(next *tensor.Tensor) *tensor.Tensor {
	c.checkUpstream("Conv2D", next)

	for f := range c.filterGrads {
		for k := range c.filterGrads[f] {
			c.filterGrads[f][k].Grad = 0
		}
	}

	in := c.input.Size()
	out := c.output.Size()
	for x := 0; x < in.X; x++ {
		minX, maxX := outputRange(x, c.kernel, c.stride, out.X)
		for y := 0; y < in.Y; y++ {
			minY, maxY := outputRange(y, c.kernel, c.stride, out.Y)
			for z := 0; z < in.Z; z++ {
				v := c.input.At(x, y, z)
				sum := 0.0
				for i := minX; i <= maxX; i++ {
					fx := x - i*c.stride
					for j := minY; j <= maxY; j++ {
						fy := y - j*c.stride
						off := c.filterOffset(fx, fy, z)
						for f, filter := range c.filters {
							up := next.At(i, j, f)
							sum += filter.At(fx, fy, z) * up
							c.filterGrads[f][off].Grad += v * up
						}
					}
				}
				c.gradients.Set(x, y, z, sum)
			}
		}
	}
	return c.gradients
}

// FixWeights applies the momentum update to every filter element.
func (c *Conv2D) FixWeights(learningRate float64) {
	for f, filter := range c.filters {
		data := filter.Data()
		grads := c.filterGrads[f]
		for k := range data {
			opt.Step(&data[k], &grads[k], learningRate, 1)
		}
	}
}
