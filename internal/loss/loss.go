// Package loss provides the epoch-level loss reductions used to report training progress.
package loss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

// eps keeps log() away from zero.
const eps = 1e-15

// Loss reduces a whole set of (prediction, expected) pairs to one scalar.
type Loss interface {
	Forward(predictions, expected []*tensor.Tensor) float64
}

// Kind selects a loss function.
type Kind int

const (
	MeanSquaredError Kind = iota
	BinaryCrossentropy
	CategoricalCrossentropy
)

func (k Kind) String() string {
	switch k {
	case MeanSquaredError:
		return "MeanSquaredError"
	case BinaryCrossentropy:
		return "BinaryCrossentropy"
	case CategoricalCrossentropy:
		return "CategoricalCrossentropy"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// New returns the loss function for k.
func New(k Kind) Loss {
	switch k {
	case MeanSquaredError:
		return MSE{}
	case BinaryCrossentropy:
		return BinaryCrossEntropy{}
	case CategoricalCrossentropy:
		return CategoricalCrossEntropy{}
	default:
		panic(fmt.Sprintf("loss: unknown kind %d", int(k)))
	}
}

func checkPairs(name string, predictions, expected []*tensor.Tensor) {
	if len(predictions) != len(expected) {
		panic(fmt.Sprintf("%s: %d predictions for %d targets", name, len(predictions), len(expected)))
	}
	for i := range predictions {
		if predictions[i].Len() != expected[i].Len() {
			panic(fmt.Sprintf("%s: sample %d has %d outputs, expected %d", name, i, predictions[i].Len(), expected[i].Len()))
		}
	}
}

// MSE (Mean Squared Error) loss over every element of every sample.
type MSE struct{}

// Forward computes sum((y_pred - y_true)^2) / (samples * elements)
func (m MSE) Forward(predictions, expected []*tensor.Tensor) float64 {
	checkPairs("MSE", predictions, expected)

	var sum float64
	var count int
	for i := range predictions {
		d := floats.Distance(predictions[i].Data(), expected[i].Data(), 2)
		sum += d * d
		count += predictions[i].Len()
	}
	return sum / float64(count)
}

// BinaryCrossEntropy treats each output as an independent probability.
type BinaryCrossEntropy struct{}

// Forward computes -mean(y*log(p+eps) + (1-y)*log(1-p+eps)) over all elements.
func (b BinaryCrossEntropy) Forward(predictions, expected []*tensor.Tensor) float64 {
	checkPairs("BinaryCrossEntropy", predictions, expected)

	perSample := make([]float64, len(predictions))
	for i := range predictions {
		p := predictions[i].Data()
		y := expected[i].Data()
		terms := make([]float64, len(p))
		for j := range p {
			terms[j] = y[j]*math.Log(p[j]+eps) + (1-y[j])*math.Log(1-p[j]+eps)
		}
		perSample[i] = stat.Mean(terms, nil)
	}
	return -stat.Mean(perSample, nil)
}

// CategoricalCrossEntropy expects one-hot targets.
type CategoricalCrossEntropy struct{}

// Forward computes -mean over samples of sum(y*log(p+eps)).
func (c CategoricalCrossEntropy) Forward(predictions, expected []*tensor.Tensor) float64 {
	checkPairs("CategoricalCrossEntropy", predictions, expected)

	perSample := make([]float64, len(predictions))
	for i := range predictions {
		p := predictions[i].Data()
		logs := make([]float64, len(p))
		for j := range p {
			logs[j] = math.Log(p[j] + eps)
		}
		perSample[i] = floats.Dot(expected[i].Data(), logs)
	}
	return -stat.Mean(perSample, nil)
}
