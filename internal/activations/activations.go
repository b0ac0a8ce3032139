// Package activations provides the activation functions available to dense layers.
package activations

import (
	"fmt"
	"math"
)

// Activation is an activation function with derivative.
// Both methods take the pre-activation value.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x)
	Derivative(x float64) float64
}

// Kind selects an activation function. It is the value persisted in model files.
type Kind int

const (
	KindTanh Kind = iota
	KindSigmoid
	KindRelu
	KindLRelu
)

// String returns the name used by the model text format.
func (k Kind) String() string {
	switch k {
	case KindTanh:
		return "Tanh"
	case KindSigmoid:
		return "Sigmoid"
	case KindRelu:
		return "Relu"
	case KindLRelu:
		return "LRelu"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a model-file name back to its Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "Tanh":
		return KindTanh, nil
	case "Sigmoid":
		return KindSigmoid, nil
	case "Relu":
		return KindRelu, nil
	case "LRelu":
		return KindLRelu, nil
	default:
		return 0, fmt.Errorf("activations: unknown activation %q", name)
	}
}

// New returns the strategy for k.
func New(k Kind) Activation {
	switch k {
	case KindTanh:
		return Tanh{}
	case KindSigmoid:
		return Sigmoid{}
	case KindRelu:
		return ReLU{}
	case KindLRelu:
		return LeakyReLU{Alpha: 0.01}
	default:
		panic(fmt.Sprintf("activations: unknown kind %d", int(k)))
	}
}

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (r ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (r ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// Sigmoid activation function.
type Sigmoid struct{}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Activate computes sigmoid(x)
func (s Sigmoid) Activate(x float64) float64 {
	return sigmoid(x)
}

// Derivative computes sigmoid(x) * (1 - sigmoid(x))
func (s Sigmoid) Derivative(x float64) float64 {
	sigma := sigmoid(x)
	return sigma * (1 - sigma)
}

// LeakyReLU keeps a small slope for negative inputs.
type LeakyReLU struct {
	Alpha float64 // Slope for x <= 0
}

// Activate computes x if x > 0, else alpha*x
func (l LeakyReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return l.Alpha * x
}

// Derivative returns 1 if x > 0, else alpha
func (l LeakyReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return l.Alpha
}

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (t Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - tanh(x)^2
func (t Tanh) Derivative(x float64) float64 {
	tanhX := math.Tanh(x)
	return 1 - tanhX*tanhX
}
