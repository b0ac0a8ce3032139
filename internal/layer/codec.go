package layer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/activations"
	"github.com/FlavioCFOliveira/ConvNeuron/internal/tensor"
)

// filterListEnd terminates the variable-length filter list of a convolutional block.
const filterListEnd = "end"

// Record is one parsed model-file block, before any layer is built from it.
type Record struct {
	Kind Kind
	// Line is the 1-based line of the block's tag.
	Line int

	Input     *tensor.Tensor
	Output    *tensor.Tensor
	Gradients *tensor.Tensor

	// Weights is set for fullconnected blocks.
	Weights    *tensor.Tensor
	Activation activations.Kind

	// Filters, Kernel and Stride are set for convolutional and pooling blocks.
	Filters []*tensor.Tensor
	Kernel  int
	Stride  int
}

type block struct {
	buf bytes.Buffer
}

func (b *block) line(s string) {
	b.buf.WriteString(s)
	b.buf.WriteByte('\n')
}

func (b *block) tensor(t *tensor.Tensor) {
	text, _ := t.MarshalText()
	b.buf.Write(text)
	b.buf.WriteByte('\n')
}

func (b *block) int(v int) {
	b.line(strconv.Itoa(v))
}

func (b *block) common(k Kind, s *state) {
	b.line(k.String())
	b.tensor(s.input)
	b.tensor(s.output)
}

// MarshalText renders the block: tag, input, output, weights, gradients, activation.
func (d *Dense) MarshalText() ([]byte, error) {
	var b block
	b.common(KindDense, &d.state)
	b.tensor(d.weights)
	b.tensor(d.gradients)
	b.line(d.actKind.String())
	return b.buf.Bytes(), nil
}

// MarshalText renders the block: tag, input, output, gradients, filters, "end", kernel, stride.
func (c *Conv2D) MarshalText() ([]byte, error) {
	var b block
	b.common(KindConv2D, &c.state)
	b.tensor(c.gradients)
	for _, f := range c.filters {
		b.tensor(f)
	}
	b.line(filterListEnd)
	b.int(c.kernel)
	b.int(c.stride)
	return b.buf.Bytes(), nil
}

// MarshalText renders the block: tag, input, output, gradients, kernel, stride.
func (m *MaxPool2D) MarshalText() ([]byte, error) {
	var b block
	b.common(KindMaxPool2D, &m.state)
	b.tensor(m.gradients)
	b.int(m.kernel)
	b.int(m.stride)
	return b.buf.Bytes(), nil
}

// MarshalText renders the block: tag, input, output, gradients.
func (r *ReLU) MarshalText() ([]byte, error) {
	var b block
	b.common(KindReLU, &r.state)
	b.tensor(r.gradients)
	return b.buf.Bytes(), nil
}

// Write encodes layers one block after another in forward order.
func Write(w io.Writer, layers []Layer) error {
	for i, l := range layers {
		text, err := l.MarshalText()
		if err != nil {
			return fmt.Errorf("failed to encode layer %d: %w", i, err)
		}
		if _, err := w.Write(text); err != nil {
			return fmt.Errorf("failed to write layer %d: %w", i, err)
		}
	}
	return nil
}

// Read decodes every block in r and rebuilds the layers in order.
func Read(r io.Reader) ([]Layer, error) {
	records, err := ReadRecords(r)
	if err != nil {
		return nil, err
	}

	layers := make([]Layer, 0, len(records))
	for _, rec := range records {
		l, err := FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", rec.Line, err)
		}
		if len(layers) > 0 {
			prev := OutputSize(layers[len(layers)-1])
			if in := InputSize(l); in != prev {
				return nil, fmt.Errorf("line %d: input %v does not follow previous output %v", rec.Line, in, prev)
			}
		}
		layers = append(layers, l)
	}
	return layers, nil
}

// FromRecord builds the layer variant described by rec.
func FromRecord(rec Record) (Layer, error) {
	switch rec.Kind {
	case KindDense:
		return RestoreDense(rec.Input, rec.Output, rec.Weights, rec.Gradients, rec.Activation)
	case KindConv2D:
		return RestoreConv2D(rec.Input, rec.Output, rec.Gradients, rec.Filters, rec.Kernel, rec.Stride)
	case KindMaxPool2D:
		return RestoreMaxPool2D(rec.Input, rec.Output, rec.Gradients, rec.Kernel, rec.Stride)
	case KindReLU:
		return RestoreReLU(rec.Input, rec.Output, rec.Gradients)
	default:
		return nil, fmt.Errorf("unknown layer kind %v", rec.Kind)
	}
}

// lineReader yields lines without their terminator and tracks the line number.
type lineReader struct {
	r    *bufio.Reader
	line int
}

func (lr *lineReader) next() (string, error) {
	s, err := lr.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	lr.line++
	return strings.TrimRight(s, "\r\n"), nil
}

// must returns the next line, turning EOF into an unexpected-end error.
func (lr *lineReader) must(what string) (string, error) {
	s, err := lr.next()
	if errors.Is(err, io.EOF) {
		return "", fmt.Errorf("line %d: unexpected end of model, want %s", lr.line+1, what)
	}
	return s, err
}

func (lr *lineReader) tensor(what string) (*tensor.Tensor, error) {
	s, err := lr.must(what)
	if err != nil {
		return nil, err
	}
	t, err := tensor.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("line %d: %s: %w", lr.line, what, err)
	}
	return t, nil
}

func (lr *lineReader) int(what string) (int, error) {
	s, err := lr.must(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", lr.line, what, err)
	}
	return v, nil
}

func parseTag(s string) (Kind, bool) {
	for _, k := range []Kind{KindDense, KindConv2D, KindReLU, KindMaxPool2D} {
		if s == k.String() {
			return k, true
		}
	}
	return 0, false
}

// ReadRecords splits a model file into tagged records without building layers.
// Blank lines between blocks are ignored.
func ReadRecords(r io.Reader) ([]Record, error) {
	lr := &lineReader{r: bufio.NewReader(r)}

	var records []Record
	for {
		s, err := lr.next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read model: %w", err)
		}

		tag := strings.TrimSpace(s)
		if tag == "" {
			continue
		}
		k, ok := parseTag(tag)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown layer tag %q", lr.line, tag)
		}

		rec, err := readRecord(lr, k)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

func readRecord(lr *lineReader, k Kind) (Record, error) {
	rec := Record{Kind: k, Line: lr.line}

	var err error
	if rec.Input, err = lr.tensor("input tensor"); err != nil {
		return rec, err
	}
	if rec.Output, err = lr.tensor("output tensor"); err != nil {
		return rec, err
	}

	switch k {
	case KindDense:
		if rec.Weights, err = lr.tensor("weight tensor"); err != nil {
			return rec, err
		}
		if rec.Gradients, err = lr.tensor("gradient tensor"); err != nil {
			return rec, err
		}
		name, err := lr.must("activation name")
		if err != nil {
			return rec, err
		}
		if rec.Activation, err = activations.ParseKind(strings.TrimSpace(name)); err != nil {
			return rec, fmt.Errorf("line %d: %w", lr.line, err)
		}
		return rec, nil

	case KindConv2D:
		if rec.Gradients, err = lr.tensor("gradient tensor"); err != nil {
			return rec, err
		}
		for {
			s, err := lr.must("filter tensor or " + filterListEnd)
			if err != nil {
				return rec, err
			}
			if strings.TrimSpace(s) == filterListEnd {
				break
			}
			f, err := tensor.Parse(s)
			if err != nil {
				return rec, fmt.Errorf("line %d: filter tensor: %w", lr.line, err)
			}
			rec.Filters = append(rec.Filters, f)
		}

	default:
		if rec.Gradients, err = lr.tensor("gradient tensor"); err != nil {
			return rec, err
		}
		if k == KindReLU {
			return rec, nil
		}
	}

	if rec.Kernel, err = lr.int("kernel size"); err != nil {
		return rec, err
	}
	if rec.Stride, err = lr.int("stride"); err != nil {
		return rec, err
	}
	return rec, nil
}
