package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

// ReLU applies max(0, x) elementwise.
type ReLU struct {
	state
}

// NewReLU creates a rectifier whose output shape equals its input shape.
func NewReLU(in tensor.Size) *ReLU {
	return &ReLU{state: newState(in, in)}
}

// RestoreReLU rebuilds a rectifier from serialized tensors.
func RestoreReLU(in, out, gradients *tensor.Tensor) (*ReLU, error) {
	if out.Size() != in.Size() || gradients.Size() != in.Size() {
		return nil, fmt.Errorf("relu: shapes %v, %v, %v must agree", in.Size(), out.Size(), gradients.Size())
	}
	return &ReLU{state: state{input: in, output: out, gradients: gradients}}, nil
}

func (r *ReLU) kind() Kind { return KindReLU }

// Activate computes max(0, x).
func (r *ReLU) Activate(in *tensor.Tensor) *tensor.Tensor {
	r.load("ReLU", in)

	out := r.output.Data()
	for i, v := range r.input.Data() {
		if v < 0 {
			v = 0
		}
		out[i] = v
	}
	return r.output
}

// CalcGrads passes the upstream gradient through wherever the input is >= 0.
func (r *ReLU) CalcGrads(next *tensor.Tensor) *tensor.Tensor {
	r.checkUpstream("ReLU", next)

	grads := r.gradients.Data()
	upstream := next.Data()
	for i, v := range r.input.Data() {
		if v < 0 {
			grads[i] = 0
		} else {
			grads[i] = upstream[i]
		}
	}
	return r.gradients
}

// FixWeights is a no-op.
func (r *ReLU) FixWeights(learningRate float64) {}
