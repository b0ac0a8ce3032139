package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/FlavioCFOliveira/ConvNeuron/convnet"
)

// Trains a small conv -> relu -> pool -> dense network to tell horizontal
// from vertical bars, then checks that a saved and reloaded model agrees.
func main() {
	epochs := flag.Int("epochs", 30, "Number of training epochs")
	lr := flag.Float64("lr", 0.05, "Learning rate")
	modelPath := flag.String("model", filepath.Join(os.TempDir(), "convnet-model.txt"), "Where to save the trained model")
	csvPath := flag.String("csv", "", "Optional CSV of samples (features then labels) instead of synthetic bars")
	shapeFlag := flag.String("shape", "8,8,1", "Input shape x,y,z of each CSV sample")
	labelsFlag := flag.String("labels", "", "Comma separated CSV label columns")
	historyPath := flag.String("history", "", "Optional CSV file receiving the per-epoch history")
	split := flag.Float64("split", 0.8, "Fraction of samples used for training, the rest is held out")
	seed := flag.Int64("seed", 42, "Random seed for the synthetic data (weights use the global source)")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	shape := convnet.Size{X: 8, Y: 8, Z: 1}
	var samples []convnet.Sample
	if *csvPath != "" {
		var err error
		if shape, err = parseShape(*shapeFlag); err != nil {
			log.Fatalf("Invalid -shape: %v", err)
		}
		labels, err := parseInts(*labelsFlag)
		if err != nil || len(labels) == 0 {
			log.Fatalf("Invalid -labels %q: %v", *labelsFlag, err)
		}
		samples, err = convnet.LoadCSV(*csvPath, shape, labels, true)
		if err != nil {
			log.Fatalf("Failed to load samples: %v", err)
		}
		if len(samples) == 0 {
			log.Fatalf("No samples in %s", *csvPath)
		}
		convnet.Normalize(samples)
	} else {
		samples = barSamples(rng, shape.X, 40)
	}

	train, test := convnet.Split(samples, *split)
	if len(train) == 0 {
		log.Fatalf("Split %v leaves no training samples", *split)
	}
	if len(test) == 0 {
		test = train
	}

	classes := samples[0].Expected.Len()
	network, err := build(shape, classes, *lr)
	if err != nil {
		log.Fatalf("Failed to build network: %v", err)
	}

	fmt.Println("=== ConvNeuron ===")
	fmt.Printf("Samples: %d train, %d held out, input %v, classes %d\n", len(train), len(samples)-len(train), shape, classes)

	network.AddCallback(convnet.Logger(max(1, *epochs/10)))
	if *historyPath != "" {
		network.AddCallback(convnet.CSVLogger(*historyPath, false))
	}

	network.Train(train, *epochs)
	fmt.Printf("Training accuracy: %.2f%%\n", network.TrainingAccuracy())
	fmt.Printf("Evaluation accuracy: %.2f%%\n", network.Evaluate(test))

	if err := network.Save(*modelPath); err != nil {
		log.Fatalf("Failed to save model: %v", err)
	}
	fmt.Printf("Model saved to %s\n", *modelPath)

	loaded, err := convnet.Load(*modelPath, convnet.MeanSquaredError, *lr)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}

	mismatches := 0
	for _, s := range test {
		want, got := network.Results(s), loaded.Results(s)
		for i := range want {
			if want[i] != got[i] {
				mismatches++
				break
			}
		}
	}
	fmt.Printf("Reloaded model: %d/%d samples differ\n", mismatches, len(test))

	fmt.Println("Sample predictions:")
	for i := 0; i < min(4, len(test)); i++ {
		fmt.Printf("  expected %v got %s\n", test[i].Expected.Data(), format(loaded.Results(test[i])))
	}
}

// build assembles conv(3x3, 4 filters) -> relu -> pool(2x2) -> dense(classes).
// Inputs whose extent does not tile are rejected rather than panicking.
func build(shape convnet.Size, classes int, lr float64) (net *convnet.Network, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return convnet.NewSequential(shape).
		Conv2D(3, 1, 4).
		ReLU().
		MaxPool2D(2, 2).
		Dense(classes, convnet.Sigmoid).
		Compile(convnet.MeanSquaredError, lr), nil
}

// barSamples draws n images of a single horizontal ([1, 0]) or vertical
// ([0, 1]) bar with a little noise.
func barSamples(rng *rand.Rand, size, n int) []convnet.Sample {
	samples := make([]convnet.Sample, n)
	for k := range samples {
		img := convnet.NewTensor(size, size, 1)
		data := img.Data()
		for i := range data {
			data[i] = rng.Float64() * 0.1
		}

		pos := rng.Intn(size)
		horizontal := k%2 == 0
		for i := 0; i < size; i++ {
			if horizontal {
				img.Set(i, pos, 0, 1)
			} else {
				img.Set(pos, i, 0, 1)
			}
		}

		expected := convnet.NewTensor(2, 1, 1)
		if horizontal {
			expected.Set(0, 0, 0, 1)
		} else {
			expected.Set(1, 0, 0, 1)
		}
		samples[k] = convnet.Sample{Input: img, Expected: expected}
	}
	return samples
}

func parseShape(s string) (convnet.Size, error) {
	dims, err := parseInts(s)
	if err != nil {
		return convnet.Size{}, err
	}
	if len(dims) != 3 {
		return convnet.Size{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	return convnet.Size{X: dims[0], Y: dims[1], Z: dims[2]}, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func format(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.3f", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
