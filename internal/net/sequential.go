package net

import (
	"fmt"
	"io"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/activations"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/layer"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/loss"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

// Sequential stacks layers, feeding each new layer the output shape of the
// previous one.
type Sequential struct {
	in     tensor.Size
	layers []layer.Layer
}

// NewSequential starts a stack whose first layer takes inputs of shape in.
func NewSequential(in tensor.Size) *Sequential {
	return &Sequential{in: in}
}

// Shape returns the output shape of the stack so far.
func (s *Sequential) Shape() tensor.Size {
	if len(s.layers) == 0 {
		return s.in
	}
	return layer.OutputSize(s.layers[len(s.layers)-1])
}

// Conv2D appends a convolutional layer.
func (s *Sequential) Conv2D(kernel, stride, filters int) *Sequential {
	s.layers = append(s.layers, layer.NewConv2D(s.Shape(), kernel, stride, filters))
	return s
}

// ReLU appends a rectifier.
func (s *Sequential) ReLU() *Sequential {
	s.layers = append(s.layers, layer.NewReLU(s.Shape()))
	return s
}

// MaxPool2D appends a max-pooling layer.
func (s *Sequential) MaxPool2D(kernel, stride int) *Sequential {
	s.layers = append(s.layers, layer.NewMaxPool2D(s.Shape(), kernel, stride))
	return s
}

// Dense appends a fully connected layer with out neurons.
func (s *Sequential) Dense(out int, act activations.Kind) *Sequential {
	s.layers = append(s.layers, layer.NewDense(s.Shape(), out, act))
	return s
}

// Layers returns the layers appended so far.
func (s *Sequential) Layers() []layer.Layer { return s.layers }

// Compile builds the network over the stacked layers.
func (s *Sequential) Compile(lossKind loss.Kind, learningRate float64) *Network {
	return New(s.layers, lossKind, learningRate)
}

// Summary prints a summary of the network architecture.
func Summary(w io.Writer, layers []layer.Layer) {
	fmt.Fprintln(w, "_________________________________________________________________")
	fmt.Fprintf(w, "%-25s %-20s %-10s\n", "Layer (type)", "Output Shape", "Param #")
	fmt.Fprintln(w, "=================================================================")

	totalParams := 0
	for i, l := range layers {
		params := paramCount(l)
		totalParams += params
		fmt.Fprintf(w, "%-25s %-20s %-10d\n", fmt.Sprintf("%s_%d", layer.KindOf(l), i), layer.OutputSize(l), params)
	}
	fmt.Fprintln(w, "=================================================================")
	fmt.Fprintf(w, "Total params: %d\n", totalParams)
}

func paramCount(l layer.Layer) int {
	switch v := l.(type) {
	case *layer.Dense:
		return v.Weights().Len()
	case *layer.Conv2D:
		total := 0
		for _, f := range v.Filters() {
			total += f.Len()
		}
		return total
	default:
		return 0
	}
}
