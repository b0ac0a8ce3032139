// Package convnet re-exports the training engine for use outside this module.
package convnet

import (
	"github.com/FlavioCFOliveira/ConvNeuron/internal/activations"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/layer"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/loss"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/net"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/opt"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

// Re-export common types for easier access
type (
	Network    = net.Network
	Sequential = net.Sequential
	Sample     = net.Sample
	Epoch      = net.Epoch
	Layer      = layer.Layer
	Tensor     = tensor.Tensor
	Size       = tensor.Size
	Activation = activations.Kind
	Loss       = loss.Kind
)

const DefaultLearningRate = net.DefaultLearningRate

// Activations
const (
	Tanh      = activations.KindTanh
	Sigmoid   = activations.KindSigmoid
	ReLU      = activations.KindRelu
	LeakyReLU = activations.KindLRelu
)

// Losses
const (
	MeanSquaredError        = loss.MeanSquaredError
	BinaryCrossentropy      = loss.BinaryCrossentropy
	CategoricalCrossentropy = loss.CategoricalCrossentropy
)

// Network creation
func New(layers []Layer, lossKind Loss, learningRate float64) *Network {
	return net.New(layers, lossKind, learningRate)
}

func NewSequential(in Size) *Sequential {
	return net.NewSequential(in)
}

func NewSample(data [][][]float64, expected []float64) Sample {
	return net.NewSample(data, expected)
}

func NewTensor(x, y, z int) *Tensor {
	return tensor.New(x, y, z)
}

// Layers
func Dense(in Size, out int, act Activation) Layer {
	return layer.NewDense(in, out, act)
}

func Conv2D(in Size, kernel, stride, filters int) Layer {
	return layer.NewConv2D(in, kernel, stride, filters)
}

func MaxPool2D(in Size, kernel, stride int) Layer {
	return layer.NewMaxPool2D(in, kernel, stride)
}

func Rectifier(in Size) Layer {
	return layer.NewReLU(in)
}

// Schedulers
func StepLR(n *Network, stepSize int, gamma float64) opt.Scheduler {
	return opt.NewStepLR(n, stepSize, gamma)
}

func ExponentialLR(n *Network, gamma float64) opt.Scheduler {
	return opt.NewExponentialLR(n, gamma)
}

func ReduceLROnPlateau(n *Network, factor float64, patience int, threshold, minLR float64) *opt.ReduceLROnPlateau {
	return opt.NewReduceLROnPlateau(n, factor, patience, threshold, minLR)
}

// Callbacks
type Callback = net.Callback

func Logger(interval int) net.Logger {
	return net.Logger{Interval: interval}
}

func CSVLogger(filename string, append bool) *net.CSVLogger {
	return net.NewCSVLogger(filename, append)
}

func ModelCheckpoint(filename string) *net.ModelCheckpoint {
	return net.NewModelCheckpoint(filename)
}

func EarlyStopping(patience int, minDelta float64) *net.EarlyStopping {
	return net.NewEarlyStopping(patience, minDelta)
}

func SchedulerCallback(scheduler opt.Scheduler) Callback {
	return net.NewSchedulerCallback(scheduler)
}

// Data
func LoadCSV(filename string, shape Size, labelCols []int, hasHeader bool) ([]Sample, error) {
	return net.LoadCSV(filename, shape, labelCols, hasHeader)
}

// Normalize min-max scales every input position into [0, 1] in place.
func Normalize(samples []Sample) {
	net.Normalize(samples)
}

func Split(samples []Sample, ratio float64) (train, test []Sample) {
	return net.Split(samples, ratio)
}

// Model persistence
func Load(filename string, lossKind Loss, learningRate float64) (*Network, error) {
	n := net.New(nil, lossKind, learningRate)
	if err := n.Load(filename); err != nil {
		return nil, err
	}
	return n, nil
}
