package net

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/FlavioCFOliveira/ConvNeuron/internal/opt"
)

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(n *Network)
	OnTrainEnd(n *Network)
	OnEpochBegin(epoch int, n *Network)
	OnEpochEnd(epoch int, e Epoch, n *Network)
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(n *Network)                   {}
func (c BaseCallback) OnTrainEnd(n *Network)                     {}
func (c BaseCallback) OnEpochBegin(epoch int, n *Network)        {}
func (c BaseCallback) OnEpochEnd(epoch int, e Epoch, n *Network) {}

// SchedulerCallback steps a learning rate scheduler after every epoch.
type SchedulerCallback struct {
	BaseCallback
	scheduler opt.Scheduler
}

func NewSchedulerCallback(scheduler opt.Scheduler) *SchedulerCallback {
	return &SchedulerCallback{scheduler: scheduler}
}

func (c *SchedulerCallback) OnEpochEnd(epoch int, e Epoch, n *Network) {
	c.scheduler.Step()
	c.scheduler.StepWithLoss(e.Loss)
}

// EarlyStopping stops training when the epoch loss has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64
	Writer    io.Writer

	bestLoss     float64
	numBadEpochs int
	Stopped      bool
}

func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.Inf(1),
	}
}

func (c *EarlyStopping) OnTrainBegin(n *Network) {
	c.bestLoss = math.Inf(1)
	c.numBadEpochs = 0
	c.Stopped = false
}

func (c *EarlyStopping) OnEpochEnd(epoch int, e Epoch, n *Network) {
	if e.Loss < c.bestLoss-c.Threshold {
		c.bestLoss = e.Loss
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		if c.Writer != nil {
			fmt.Fprintf(c.Writer, "Early stopping at epoch %d: loss %.6f did not improve for %d epochs\n", epoch, e.Loss, c.Patience)
		}
		c.Stopped = true
		n.StopTraining()
	}
}

// ModelCheckpoint saves the model after every epoch if it's the best so far.
type ModelCheckpoint struct {
	BaseCallback
	Filename string
	Writer   io.Writer

	bestLoss float64
	// Err holds the last save failure, if any.
	Err error
}

func NewModelCheckpoint(filename string) *ModelCheckpoint {
	return &ModelCheckpoint{
		Filename: filename,
		bestLoss: math.Inf(1),
	}
}

func (c *ModelCheckpoint) OnEpochEnd(epoch int, e Epoch, n *Network) {
	if !(e.Loss < c.bestLoss) {
		return
	}
	c.bestLoss = e.Loss
	if err := n.Save(c.Filename); err != nil {
		c.Err = fmt.Errorf("checkpoint at epoch %d: %w", epoch, err)
		if c.Writer != nil {
			fmt.Fprintf(c.Writer, "Error saving checkpoint: %v\n", err)
		}
		return
	}
	if c.Writer != nil {
		fmt.Fprintf(c.Writer, "Checkpoint saved: loss %.6f is new best\n", e.Loss)
	}
}

// Logger logs training progress. A nil Writer logs to stdout.
type Logger struct {
	BaseCallback
	Interval int
	Writer   io.Writer
}

func (c Logger) OnEpochEnd(epoch int, e Epoch, n *Network) {
	if c.Interval <= 0 || epoch%c.Interval != 0 {
		return
	}
	w := c.Writer
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, "Epoch %d: loss = %.6f accuracy = %.2f%%\n", epoch, e.Loss, e.Accuracy)
}
