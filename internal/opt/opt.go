// Package opt provides the momentum weight-update rule shared by trainable layers.
package opt

const (
	// Momentum blends the previous step's gradient into the current one.
	Momentum = 0.6
	// WeightDecay shrinks every weight proportionally on each update.
	WeightDecay = 0.001
)

// Gradient pairs the current gradient with the one carried over from the
// previous update step.
type Gradient struct {
	Grad float64
	Prev float64
}

// Velocity returns grad + momentum*prev.
func (g Gradient) Velocity() float64 {
	return g.Grad + g.Prev*Momentum
}

// Roll carries the current velocity into Prev for the next step.
func (g *Gradient) Roll() {
	g.Prev = g.Velocity()
}

// Update returns the new weight:
//
//	w - lr*(grad + momentum*prev)*scale - lr*decay*w
//
// scale is the input activation for dense weights and 1 for filters.
func Update(w float64, g Gradient, learningRate, scale float64) float64 {
	return w - learningRate*g.Velocity()*scale - learningRate*WeightDecay*w
}

// Step applies Update to w and rolls g.
func Step(w *float64, g *Gradient, learningRate, scale float64) {
	*w = Update(*w, *g, learningRate, scale)
	g.Roll()
}
