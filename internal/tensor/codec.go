package tensor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MarshalText encodes the tensor as "x y z v0 v1 ... " with values in
// z-major, then y, then x order. Floats use the shortest representation that
// parses back to the same bits.
func (t *Tensor) MarshalText() ([]byte, error) {
	var b strings.Builder
	b.Grow(16 + 12*len(t.data))

	b.WriteString(strconv.Itoa(t.size.X))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(t.size.Y))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(t.size.Z))
	b.WriteByte(' ')

	// Storage order already is z-major, y, x.
	for _, v := range t.data {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte(' ')
	}
	return []byte(b.String()), nil
}

// String returns the text encoding.
func (t *Tensor) String() string {
	text, _ := t.MarshalText()
	return string(text)
}

// UnmarshalText replaces t with the tensor decoded from text.
func (t *Tensor) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

// Parse decodes a tensor from its text encoding.
func Parse(s string) (*Tensor, error) {
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return nil, fmt.Errorf("tensor: expected 3 dimensions, got %d fields", len(fields))
	}

	var dims [3]int
	for i := 0; i < 3; i++ {
		d, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, fmt.Errorf("tensor: bad dimension %q: %w", fields[i], err)
		}
		if d < 0 {
			return nil, fmt.Errorf("tensor: negative dimension %d", d)
		}
		dims[i] = d
	}

	size := Size{X: dims[0], Y: dims[1], Z: dims[2]}
	values := fields[3:]
	volume := 1
	for _, d := range dims {
		if d != 0 && volume > math.MaxInt/d {
			return nil, fmt.Errorf("tensor: shape %v overflows", size)
		}
		volume *= d
	}
	if len(values) != volume {
		return nil, fmt.Errorf("tensor: shape %v needs %d values, got %d", size, volume, len(values))
	}

	t := NewSize(size)

	for i, f := range values {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("tensor: bad value %q at %d: %w", f, i, err)
		}
		t.data[i] = v
	}
	return t, nil
}
