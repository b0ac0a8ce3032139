package net

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

func TestCSVLoader(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_loader.csv")
	file, err := os.Create(filename)
	require.NoError(t, err)

	writer := csv.NewWriter(file)
	writer.Write([]string{"f1", "f2", "l1", "f3", "f4", "l2"})
	writer.Write([]string{"1.0", "2.0", "0.0", "3.0", "4.0", "1.0"})
	writer.Write([]string{"5.0", "6.0", "1.0", "7.0", "8.0", "0.5"})
	writer.Flush()
	require.NoError(t, file.Close())

	// Labels come out in the order given, not file order.
	samples, err := LoadCSV(filename, tensor.Size{X: 2, Y: 2, Z: 1}, []int{5, 2}, true)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, tensor.Size{X: 2, Y: 2, Z: 1}, samples[0].Input.Size())
	assert.Equal(t, []float64{1, 2, 3, 4}, samples[0].Input.Data())
	assert.Equal(t, 7.0, samples[1].Input.At(0, 1, 0))
	assert.Equal(t, []float64{1, 0}, samples[0].Expected.Data())
	assert.Equal(t, []float64{0.5, 1}, samples[1].Expected.Data())
}

func TestCSVLoaderErrors(t *testing.T) {
	shape := tensor.Size{X: 2, Y: 1, Z: 1}
	tests := []struct {
		name      string
		data      string
		labelCols []int
		header    bool
	}{
		{"empty", "", []int{2}, false},
		{"header only", "a,b,c\n", []int{2}, true},
		{"bad number", "1,x,0\n", []int{2}, false},
		{"ragged row", "1,2,0\n1,2\n", []int{2}, false},
		{"shape mismatch", "1,2,3,0\n", []int{3}, false},
		{"label out of range", "1,2,0\n", []int{3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.data), shape, tt.labelCols, tt.header)
			assert.Error(t, err)
		})
	}

	_, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), shape, []int{0}, false)
	assert.Error(t, err)
}

func TestNormalizeAndSplit(t *testing.T) {
	samples, err := ReadCSV(strings.NewReader("0,5,1\n10,5,0\n5,5,1\n"), tensor.Size{X: 2, Y: 1, Z: 1}, []int{2}, false)
	require.NoError(t, err)

	Normalize(samples)
	assert.Equal(t, []float64{0, 0}, samples[0].Input.Data())
	assert.Equal(t, []float64{1, 0}, samples[1].Input.Data())
	assert.Equal(t, []float64{0.5, 0}, samples[2].Input.Data())

	train, test := Split(samples, 0.67)
	assert.Len(t, train, 2)
	assert.Len(t, test, 1)

	train, test = Split(samples, 0)
	assert.Empty(t, train)
	assert.Len(t, test, 3)
}

func TestCSVLogger(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "history.csv")

	logger := NewCSVLogger(filename, false)
	n := linearNet(0.1)
	n.AddCallback(logger)
	n.Train(fitSamples(), 3)
	require.NoError(t, logger.Err)

	file, err := os.Open(filename)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"epoch", "loss", "accuracy", "time_seconds"}, records[0])
	assert.Equal(t, "0", records[1][0])
	assert.Equal(t, "2", records[3][0])

	// Appending keeps the header single.
	appender := NewCSVLogger(filename, true)
	other := linearNet(0.1)
	other.AddCallback(appender)
	other.Train(fitSamples(), 1)
	require.NoError(t, appender.Err)

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "epoch,loss"))
	assert.Equal(t, 5, strings.Count(string(data), "\n"))
}

func TestCSVLoggerOpenFailure(t *testing.T) {
	logger := NewCSVLogger(filepath.Join(t.TempDir(), "missing", "history.csv"), false)
	n := linearNet(0.1)
	n.AddCallback(logger)

	n.Train(fitSamples(), 1)
	assert.Error(t, logger.Err)
}
