// Package tensor provides the 3-dimensional buffer shared by every layer.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Size is the shape of a tensor along x, y and z.
type Size struct {
	X, Y, Z int
}

// Volume returns the number of elements implied by the shape.
func (s Size) Volume() int {
	return s.X * s.Y * s.Z
}

func (s Size) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s.X, s.Y, s.Z)
}

// Tensor is an owned 3-D buffer flattened with z as the outermost stride:
// offset = z*(X*Y) + y*X + x.
type Tensor struct {
	size Size
	data []float64
}

// New allocates a zeroed tensor of the given shape.
func New(x, y, z int) *Tensor {
	if x < 0 || y < 0 || z < 0 {
		panic(fmt.Sprintf("Tensor: negative shape (%d, %d, %d)", x, y, z))
	}
	return &Tensor{
		size: Size{X: x, Y: y, Z: z},
		data: make([]float64, x*y*z),
	}
}

// NewSize allocates a zeroed tensor of shape s.
func NewSize(s Size) *Tensor {
	return New(s.X, s.Y, s.Z)
}

// FromSlice builds a tensor from flattened data in storage order.
// The data is copied.
func FromSlice(x, y, z int, data []float64) *Tensor {
	t := New(x, y, z)
	if len(data) != len(t.data) {
		panic(fmt.Sprintf("Tensor: %d values do not fill shape (%d, %d, %d)", len(data), x, y, z))
	}
	copy(t.data, data)
	return t
}

// FromNested builds a tensor from data indexed as data[z][y][x].
func FromNested(data [][][]float64) *Tensor {
	if len(data) == 0 || len(data[0]) == 0 {
		return New(0, 0, 0)
	}
	z := len(data)
	y := len(data[0])
	x := len(data[0][0])

	t := New(x, y, z)
	for k := 0; k < z; k++ {
		for j := 0; j < y; j++ {
			for i := 0; i < x; i++ {
				t.Set(i, j, k, data[k][j][i])
			}
		}
	}
	return t
}

// FromVector builds an (n, 1, 1) tensor.
func FromVector(v []float64) *Tensor {
	return FromSlice(len(v), 1, 1, v)
}

// Size returns the tensor shape.
func (t *Tensor) Size() Size {
	return t.size
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data returns the live backing buffer.
func (t *Tensor) Data() []float64 {
	return t.data
}

func (t *Tensor) offset(x, y, z int) int {
	if x < 0 || y < 0 || z < 0 || x >= t.size.X || y >= t.size.Y || z >= t.size.Z {
		panic(fmt.Sprintf("Tensor: index (%d, %d, %d) out of range for shape %v", x, y, z, t.size))
	}
	return z*(t.size.X*t.size.Y) + y*t.size.X + x
}

// At returns the element at (x, y, z).
func (t *Tensor) At(x, y, z int) float64 {
	return t.data[t.offset(x, y, z)]
}

// Set stores v at (x, y, z).
func (t *Tensor) Set(x, y, z int, v float64) {
	t.data[t.offset(x, y, z)] = v
}

// AddAt adds v to the element at (x, y, z).
func (t *Tensor) AddAt(x, y, z int, v float64) {
	t.data[t.offset(x, y, z)] += v
}

// Zero clears every element in place.
func (t *Tensor) Zero() {
	for i := range t.data {
		t.data[i] = 0
	}
}

// Clone returns a deep, independent copy.
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{size: t.size, data: make([]float64, len(t.data))}
	copy(c.data, t.data)
	return c
}

// CopyFrom overwrites the contents of t with src. Shapes must match.
func (t *Tensor) CopyFrom(src *Tensor) {
	t.mustMatch("CopyFrom", src)
	copy(t.data, src.data)
}

// Take moves the buffer into a new tensor and leaves t empty.
func (t *Tensor) Take() *Tensor {
	moved := &Tensor{size: t.size, data: t.data}
	t.size = Size{}
	t.data = nil
	return moved
}

// Add returns t + other elementwise.
func (t *Tensor) Add(other *Tensor) *Tensor {
	t.mustMatch("Add", other)
	out := &Tensor{size: t.size, data: make([]float64, len(t.data))}
	floats.AddTo(out.data, t.data, other.data)
	return out
}

// Sub returns t - other elementwise.
func (t *Tensor) Sub(other *Tensor) *Tensor {
	t.mustMatch("Sub", other)
	out := &Tensor{size: t.size, data: make([]float64, len(t.data))}
	floats.SubTo(out.data, t.data, other.data)
	return out
}

// Equal reports whether both tensors have the same shape and identical elements.
func (t *Tensor) Equal(other *Tensor) bool {
	return t.size == other.size && floats.Equal(t.data, other.data)
}

func (t *Tensor) mustMatch(op string, other *Tensor) {
	if t.size != other.size {
		panic(fmt.Sprintf("Tensor: %s shape mismatch %v vs %v", op, t.size, other.size))
	}
}
