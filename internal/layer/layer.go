// Package layer provides neural network layer implementations.
package layer

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/activations"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/opt"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

// Layer is a neural network layer.
//
// The set of implementations is closed: Dense, Conv2D, MaxPool2D and ReLU.
type Layer interface {
	// Activate copies in into the layer's input and returns the computed output.
	Activate(in *tensor.Tensor) *tensor.Tensor

	// CalcGrads takes the gradient of the following layer (shaped like this
	// layer's output) and returns the gradient with respect to this layer's input.
	CalcGrads(next *tensor.Tensor) *tensor.Tensor

	// FixWeights applies one momentum update to every trainable parameter.
	FixWeights(learningRate float64)

	// MarshalText renders the layer as a model-file block.
	MarshalText() ([]byte, error)

	kind() Kind
	base() *state
}

// Kind identifies a layer variant. Its string form is the model-file tag.
type Kind int

const (
	KindDense Kind = iota
	KindConv2D
	KindReLU
	KindMaxPool2D
)

func (k Kind) String() string {
	switch k {
	case KindDense:
		return "fullconnected"
	case KindConv2D:
		return "convolutional"
	case KindReLU:
		return "relu"
	case KindMaxPool2D:
		return "pooling"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindOf returns the variant of l.
func KindOf(l Layer) Kind {
	return l.kind()
}

// InputSize returns the input shape of l.
func InputSize(l Layer) tensor.Size { return l.base().input.Size() }

// OutputSize returns the output shape of l.
func OutputSize(l Layer) tensor.Size { return l.base().output.Size() }

// state holds the tensors every layer owns. Shapes are fixed at construction.
type state struct {
	input     *tensor.Tensor
	output    *tensor.Tensor
	gradients *tensor.Tensor
}

func newState(in, out tensor.Size) state {
	return state{
		input:     tensor.NewSize(in),
		output:    tensor.NewSize(out),
		gradients: tensor.NewSize(in),
	}
}

// Input returns the tensor last passed to Activate.
func (s *state) Input() *tensor.Tensor { return s.input }

// Output returns the tensor computed by the last Activate.
func (s *state) Output() *tensor.Tensor { return s.output }

// Gradients returns the input-gradient computed by the last CalcGrads.
func (s *state) Gradients() *tensor.Tensor { return s.gradients }

// InputSize returns the input shape.
func (s *state) InputSize() tensor.Size { return s.input.Size() }

// OutputSize returns the output shape.
func (s *state) OutputSize() tensor.Size { return s.output.Size() }

func (s *state) base() *state { return s }

func (s *state) load(name string, in *tensor.Tensor) {
	if in.Size() != s.input.Size() {
		panic(fmt.Sprintf("%s: input shape %v, want %v", name, in.Size(), s.input.Size()))
	}
	s.input.CopyFrom(in)
}

func (s *state) checkUpstream(name string, next *tensor.Tensor) {
	if next.Size() != s.output.Size() {
		panic(fmt.Sprintf("%s: gradient shape %v, want %v", name, next.Size(), s.output.Size()))
	}
}

// windowOutput computes the output extent of a valid kernel sweep and panics
// when the stride does not tile the input exactly (no padding is supported).
func windowOutput(name string, in tensor.Size, kernel, stride, depth int) tensor.Size {
	if kernel <= 0 || stride <= 0 {
		panic(fmt.Sprintf("%s: kernel %d and stride %d must be positive", name, kernel, stride))
	}
	if kernel > in.X || kernel > in.Y {
		panic(fmt.Sprintf("%s: kernel %d larger than input %v", name, kernel, in))
	}
	if (in.X-kernel)%stride != 0 || (in.Y-kernel)%stride != 0 {
		panic(fmt.Sprintf("%s: (input %v - kernel %d) not divisible by stride %d", name, in, kernel, stride))
	}
	return tensor.Size{
		X: (in.X-kernel)/stride + 1,
		Y: (in.Y-kernel)/stride + 1,
		Z: depth,
	}
}

// checkRestoredWindow validates the geometry of a deserialized conv or pooling layer.
func checkRestoredWindow(name string, in, out, gradients *tensor.Tensor, kernel, stride int) error {
	if kernel <= 0 || stride <= 0 {
		return fmt.Errorf("%s: kernel %d and stride %d must be positive", name, kernel, stride)
	}
	if gradients.Size() != in.Size() {
		return fmt.Errorf("%s: gradient shape %v, want %v", name, gradients.Size(), in.Size())
	}
	for _, dim := range [][2]int{{in.Size().X, out.Size().X}, {in.Size().Y, out.Size().Y}} {
		if dim[0] < kernel || (dim[0]-kernel)%stride != 0 || (dim[0]-kernel)/stride+1 != dim[1] {
			return fmt.Errorf("%s: input %v with kernel %d stride %d cannot produce %v", name, in.Size(), kernel, stride, out.Size())
		}
	}
	return nil
}

// outputRange returns the inclusive range of output positions whose kernel
// window covers input coordinate coord: ceil((coord-kernel+1)/stride) up to
// floor(coord/stride), both clamped into [0, outDim-1].
func outputRange(coord, kernel, stride, outDim int) (lo, hi int) {
	lo = clamp(ceilDiv(coord-kernel+1, stride), outDim)
	hi = clamp(coord/stride, outDim)
	return lo, hi
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func clamp(v, dim int) int {
	if v <= 0 {
		return 0
	}
	if v >= dim-1 {
		return dim - 1
	}
	return v
}

// Dense is a fully connected layer.
// Weights are shaped (inputVolume, outSize, 1): weight (i, n) links flattened
// input i to neuron n. Gradients are kept per neuron and scaled by the input
// activation when applied.
type Dense struct {
	state

	weights *tensor.Tensor
	grads   []opt.Gradient
	preAct  []float64

	actKind activations.Kind
	act     activations.Activation
}

// NewDense creates a dense layer with weights drawn uniformly from [-1, 1).
func NewDense(in tensor.Size, out int, act activations.Kind) *Dense {
	if out <= 0 {
		panic(fmt.Sprintf("Dense: output size %d must be positive", out))
	}
	vol := in.Volume()

	weights := tensor.New(vol, out, 1)
	w := weights.Data()
	for i := range w {
		w[i] = rand.Float64()*2 - 1
	}

	return &Dense{
		state:   newState(in, tensor.Size{X: out, Y: 1, Z: 1}),
		weights: weights,
		grads:   make([]opt.Gradient, out),
		preAct:  make([]float64, out),
		actKind: act,
		act:     activations.New(act),
	}
}

// RestoreDense rebuilds a dense layer from serialized tensors.
func RestoreDense(in, out, weights, gradients *tensor.Tensor, act activations.Kind) (*Dense, error) {
	n := out.Len()
	if out.Size() != (tensor.Size{X: n, Y: 1, Z: 1}) {
		return nil, fmt.Errorf("dense: output shape %v, want (%d, 1, 1)", out.Size(), n)
	}
	if weights.Size() != (tensor.Size{X: in.Len(), Y: n, Z: 1}) {
		return nil, fmt.Errorf("dense: weights shape %v does not link %d inputs to %d outputs", weights.Size(), in.Len(), n)
	}
	if gradients.Size() != in.Size() {
		return nil, fmt.Errorf("dense: gradient shape %v, want %v", gradients.Size(), in.Size())
	}
	return &Dense{
		state:   state{input: in, output: out, gradients: gradients},
		weights: weights,
		grads:   make([]opt.Gradient, n),
		preAct:  make([]float64, n),
		actKind: act,
		act:     activations.New(act),
	}, nil
}

func (d *Dense) kind() Kind { return KindDense }

// Activation returns the activation selector.
func (d *Dense) Activation() activations.Kind { return d.actKind }

// Weights returns the live weight tensor.
func (d *Dense) Weights() *tensor.Tensor { return d.weights }

// NeuronGradient returns the gradient pair of neuron n.
func (d *Dense) NeuronGradient(n int) opt.Gradient { return d.grads[n] }

// row returns the weights feeding neuron n.
func (d *Dense) row(n int) []float64 {
	vol := d.input.Len()
	return d.weights.Data()[n*vol : (n+1)*vol]
}

// Activate computes act(sum_i in_i * w(i, n)) for each neuron.
func (d *Dense) Activate(in *tensor.Tensor) *tensor.Tensor {
	d.load("Dense", in)

	input := d.input.Data()
	out := d.output.Data()
	for n := range out {
		sum := floats.Dot(input, d.row(n))
		d.preAct[n] = sum
		out[n] = d.act.Activate(sum)
	}
	return d.output
}

// CalcGrads computes per-neuron gradients and the input gradient
// sum_n grad_n * w(i, n).
func (d *Dense) CalcGrads(next *tensor.Tensor) *tensor.Tensor {
	d.checkUpstream("Dense", next)

	d.gradients.Zero()
	gradIn := d.gradients.Data()
	upstream := next.Data()
	for n := range d.grads {
		g := upstream[n] * d.act.Derivative(d.preAct[n])
		d.grads[n].Grad = g
		floats.AddScaled(gradIn, g, d.row(n))
	}
	return d.gradients
}

// FixWeights updates every weight with its neuron's gradient scaled by the
// input activation, then rolls the neuron gradients.
func (d *Dense) FixWeights(learningRate float64) {
	input := d.input.Data()
	for n := range d.grads {
		row := d.row(n)
		g := d.grads[n]
		for i := range row {
			row[i] = opt.Update(row[i], g, learningRate, input[i])
		}
		d.grads[n].Roll()
	}
}
