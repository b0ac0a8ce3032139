package net

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

// LoadCSV loads samples from a CSV file.
// labelCols specifies the indices of columns to be used as the expected
// vector, in that order. All other columns, in file order, fill an input
// tensor of the given shape (x fastest, then y, then z).
// hasHeader skips the first line if true.
func LoadCSV(filename string, shape tensor.Size, labelCols []int, hasHeader bool) ([]Sample, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ReadCSV(file, shape, labelCols, hasHeader)
}

// ReadCSV is LoadCSV over an arbitrary reader.
func ReadCSV(r io.Reader, shape tensor.Size, labelCols []int, hasHeader bool) ([]Sample, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}

	startRow := 0
	if hasHeader {
		startRow = 1
	}

	if len(records) <= startRow {
		return nil, fmt.Errorf("csv file has no data rows")
	}

	numCols := len(records[0])
	isLabelCol := make(map[int]bool)
	for _, col := range labelCols {
		if col < 0 || col >= numCols {
			return nil, fmt.Errorf("label column %d out of range [0, %d)", col, numCols)
		}
		isLabelCol[col] = true
	}
	if features := numCols - len(isLabelCol); features != shape.Volume() {
		return nil, fmt.Errorf("%d feature columns do not fill input shape %v", features, shape)
	}

	samples := make([]Sample, 0, len(records)-startRow)
	for i := startRow; i < len(records); i++ {
		record := records[i]
		if len(record) != numCols {
			return nil, fmt.Errorf("inconsistent number of columns at row %d", i)
		}

		features := make([]float64, 0, shape.Volume())
		values := make([]float64, numCols)
		for j, valStr := range record {
			val, err := strconv.ParseFloat(valStr, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse value at row %d, col %d: %w", i, j, err)
			}
			values[j] = val
			if !isLabelCol[j] {
				features = append(features, val)
			}
		}

		labels := make([]float64, len(labelCols))
		for k, col := range labelCols {
			labels[k] = values[col]
		}

		samples = append(samples, Sample{
			Input:    tensor.FromSlice(shape.X, shape.Y, shape.Z, features),
			Expected: tensor.FromVector(labels),
		})
	}

	return samples, nil
}

// Normalize performs per-position min-max scaling of the inputs into [0, 1].
// Positions that never vary become 0.
func Normalize(samples []Sample) {
	if len(samples) == 0 {
		return
	}

	lo := samples[0].Input.Clone().Data()
	hi := samples[0].Input.Clone().Data()
	for _, s := range samples {
		for i, v := range s.Input.Data() {
			lo[i] = min(lo[i], v)
			hi[i] = max(hi[i], v)
		}
	}

	for _, s := range samples {
		data := s.Input.Data()
		for i := range data {
			if diff := hi[i] - lo[i]; diff != 0 {
				data[i] = (data[i] - lo[i]) / diff
			} else {
				data[i] = 0
			}
		}
	}
}

// Split divides samples at the given ratio (0.0 to 1.0) into train and test.
func Split(samples []Sample, ratio float64) (train, test []Sample) {
	if ratio <= 0 {
		return nil, samples
	}
	if ratio >= 1 {
		return samples, nil
	}
	idx := int(float64(len(samples)) * ratio)
	return samples[:idx], samples[idx:]
}
