// Package net provides the network orchestrator that trains, evaluates and
// persists an ordered stack of layers.
package net

import (
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/layer"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/loss"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

// DefaultLearningRate is the step size used when none is chosen explicitly.
const DefaultLearningRate = 0.01

// smoothingPerSample scales the sample count into the error smoothing factor.
const smoothingPerSample = 0.05

// Sample pairs an input tensor with its expected output.
type Sample struct {
	Input    *tensor.Tensor
	Expected *tensor.Tensor
}

// NewSample builds a sample from data indexed [z][y][x] and an expected vector.
func NewSample(data [][][]float64, expected []float64) Sample {
	return Sample{
		Input:    tensor.FromNested(data),
		Expected: tensor.FromVector(expected),
	}
}

// Epoch is one entry of the training history.
type Epoch struct {
	Loss     float64
	Accuracy float64
}

// Network is an ordered collection of layers trained by backpropagation.
type Network struct {
	layers       []layer.Layer
	lossKind     loss.Kind
	loss         loss.Loss
	learningRate float64

	// trainErr is the smoothed training RMSE; it carries over between Train calls.
	trainErr         float64
	trainingAccuracy float64
	accuracy         float64

	// output is the tensor returned by the last Forward.
	output *tensor.Tensor

	history   []Epoch
	callbacks []Callback
	stop      bool
}

// New creates a network from already constructed layers.
func New(layers []layer.Layer, lossKind loss.Kind, learningRate float64) *Network {
	return &Network{
		layers:       layers,
		lossKind:     lossKind,
		loss:         loss.New(lossKind),
		learningRate: learningRate,
	}
}

// AddCallback registers callbacks fired by Train.
func (n *Network) AddCallback(cbs ...Callback) {
	n.callbacks = append(n.callbacks, cbs...)
}

// StopTraining makes Train return after the current epoch.
func (n *Network) StopTraining() {
	n.stop = true
}

// Forward runs every layer in order and returns the last layer's output.
// The returned tensor is owned by that layer.
func (n *Network) Forward(in *tensor.Tensor) *tensor.Tensor {
	curr := in
	for _, l := range n.layers {
		curr = l.Activate(curr)
	}
	n.output = curr
	return curr
}

// Backward seeds the last layer with output - expected, walks the layers in
// reverse computing input gradients, then applies one weight update per layer
// in forward order. It returns the RMSE of the output being corrected.
func (n *Network) Backward(expected *tensor.Tensor) float64 {
	if len(n.layers) == 0 || n.output == nil {
		panic("Network: backward without a forward pass")
	}
	out := n.output
	if out.Len() != expected.Len() {
		panic(fmt.Sprintf("Network: output size %d does not match expected size %d", out.Len(), expected.Len()))
	}

	seed := tensor.NewSize(out.Size())
	floats.SubTo(seed.Data(), out.Data(), expected.Data())

	grad := seed
	for i := len(n.layers) - 1; i >= 0; i-- {
		grad = n.layers[i].CalcGrads(grad)
	}
	for _, l := range n.layers {
		l.FixWeights(n.learningRate)
	}

	return rmse(out.Data(), expected.Data())
}

func rmse(out, expected []float64) float64 {
	d := floats.Distance(out, expected, 2)
	return math.Sqrt(d * d / float64(len(out)))
}

func smooth(prev, sf, v float64) float64 {
	return (prev*sf + v) / (sf + 1)
}

// Train runs epochs passes over samples in the given order and returns the
// full history, one entry appended per epoch.
func (n *Network) Train(samples []Sample, epochs int) []Epoch {
	sf := float64(len(samples)) * smoothingPerSample
	n.stop = false

	for _, cb := range n.callbacks {
		cb.OnTrainBegin(n)
	}

	for epoch := 0; epoch < epochs && !n.stop; epoch++ {
		for _, cb := range n.callbacks {
			cb.OnEpochBegin(epoch, n)
		}

		predictions := make([]*tensor.Tensor, 0, len(samples))
		expected := make([]*tensor.Tensor, 0, len(samples))
		for _, s := range samples {
			out := n.Forward(s.Input)
			n.trainErr = smooth(n.trainErr, sf, n.Backward(s.Expected))

			// out still holds the prediction for s; FixWeights leaves outputs alone.
			predictions = append(predictions, tensor.FromSlice(s.Expected.Size().X, s.Expected.Size().Y, s.Expected.Size().Z, out.Data()))
			expected = append(expected, s.Expected)
		}

		n.trainingAccuracy = 100 * (1 - n.trainErr)
		e := Epoch{Loss: n.epochLoss(predictions, expected), Accuracy: n.trainingAccuracy}
		n.history = append(n.history, e)

		for _, cb := range n.callbacks {
			cb.OnEpochEnd(epoch, e, n)
		}
	}

	for _, cb := range n.callbacks {
		cb.OnTrainEnd(n)
	}
	return n.history
}

func (n *Network) epochLoss(predictions, expected []*tensor.Tensor) float64 {
	if len(predictions) == 0 {
		return math.NaN()
	}
	return n.loss.Forward(predictions, expected)
}

// Evaluate runs the samples forward only and returns 100 * (1 - e), where e
// is the mean of the smoothed RMSE trajectory. An empty set yields NaN.
func (n *Network) Evaluate(samples []Sample) float64 {
	sf := float64(len(samples)) * smoothingPerSample

	smoothed := 0.0
	trajectory := make([]float64, 0, len(samples))
	for _, s := range samples {
		out := n.Forward(s.Input)
		if out.Len() != s.Expected.Len() {
			panic(fmt.Sprintf("Network: output size %d does not match expected size %d", out.Len(), s.Expected.Len()))
		}
		smoothed = smooth(smoothed, sf, rmse(out.Data(), s.Expected.Data()))
		trajectory = append(trajectory, smoothed)
	}

	mean := floats.Sum(trajectory) / float64(len(trajectory))
	n.accuracy = 100 * (1 - mean)
	return n.accuracy
}

// Results runs a single sample forward and returns a copy of the output values.
func (n *Network) Results(s Sample) []float64 {
	out := n.Forward(s.Input)
	return append([]float64(nil), out.Data()...)
}

// History returns every epoch recorded so far.
func (n *Network) History() []Epoch { return n.history }

// Layers returns the network's layers slice.
func (n *Network) Layers() []layer.Layer { return n.layers }

// LossKind returns the loss selector.
func (n *Network) LossKind() loss.Kind { return n.lossKind }

// LearningRate returns the current step size.
func (n *Network) LearningRate() float64 { return n.learningRate }

// SetLearningRate changes the step size used by subsequent updates.
func (n *Network) SetLearningRate(lr float64) { n.learningRate = lr }

// TrainingAccuracy returns the accuracy reported by the last epoch.
func (n *Network) TrainingAccuracy() float64 { return n.trainingAccuracy }

// Accuracy returns the value computed by the last Evaluate.
func (n *Network) Accuracy() float64 { return n.accuracy }

// Save writes the layers to a text model file.
func (n *Network) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := n.Encode(file); err != nil {
		return err
	}
	return file.Close()
}

// Load replaces the layer sequence with the one stored in filename.
// The network is unchanged when an error is returned.
func (n *Network) Load(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return n.Decode(file)
}

// Encode writes one block per layer in forward order.
func (n *Network) Encode(w io.Writer) error {
	return layer.Write(w, n.layers)
}

// Decode reads a model and replaces the layer sequence on success.
func (n *Network) Decode(r io.Reader) error {
	layers, err := layer.Read(r)
	if err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}
	n.layers = layers
	n.output = nil
	return nil
}
