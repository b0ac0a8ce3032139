package opt

import "math"

// Tunable is anything exposing a learning rate a scheduler may adjust.
type Tunable interface {
	LearningRate() float64
	SetLearningRate(lr float64)
}

// Scheduler defines the interface for learning rate schedulers.
type Scheduler interface {
	Step()
	StepWithLoss(loss float64)
	GetLR() float64
}

// BaseScheduler provides default implementations for Scheduler.
type BaseScheduler struct{}

func (s BaseScheduler) Step()                     {}
func (s BaseScheduler) StepWithLoss(loss float64) {}

// StepLR decays the learning rate by gamma every stepSize epochs.
type StepLR struct {
	BaseScheduler
	target    Tunable
	stepSize  int
	gamma     float64
	lastEpoch int
}

func NewStepLR(target Tunable, stepSize int, gamma float64) *StepLR {
	return &StepLR{
		target:   target,
		stepSize: stepSize,
		gamma:    gamma,
	}
}

func (s *StepLR) Step() {
	s.lastEpoch++
	if s.stepSize > 0 && s.lastEpoch%s.stepSize == 0 {
		s.target.SetLearningRate(s.target.LearningRate() * s.gamma)
	}
}

func (s *StepLR) GetLR() float64 {
	return s.target.LearningRate()
}

// ExponentialLR decays the learning rate by gamma every epoch.
type ExponentialLR struct {
	BaseScheduler
	target Tunable
	gamma  float64
}

func NewExponentialLR(target Tunable, gamma float64) *ExponentialLR {
	return &ExponentialLR{
		target: target,
		gamma:  gamma,
	}
}

func (s *ExponentialLR) Step() {
	s.target.SetLearningRate(s.target.LearningRate() * s.gamma)
}

func (s *ExponentialLR) GetLR() float64 {
	return s.target.LearningRate()
}

// ReduceLROnPlateau reduces learning rate when the loss has stopped improving.
type ReduceLROnPlateau struct {
	BaseScheduler
	target    Tunable
	factor    float64
	patience  int
	threshold float64
	cooldown  int
	minLR     float64

	bestLoss        float64
	numBadEpochs    int
	cooldownCounter int
}

func NewReduceLROnPlateau(target Tunable, factor float64, patience int, threshold, minLR float64) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{
		target:    target,
		factor:    factor,
		patience:  patience,
		threshold: threshold,
		minLR:     minLR,
		bestLoss:  math.MaxFloat64,
	}
}

// SetCooldown sets the number of epochs to wait after a reduction.
func (s *ReduceLROnPlateau) SetCooldown(epochs int) {
	s.cooldown = epochs
}

func (s *ReduceLROnPlateau) StepWithLoss(currentLoss float64) {
	if s.cooldownCounter > 0 {
		s.cooldownCounter--
		return
	}

	if currentLoss < s.bestLoss-s.threshold {
		s.bestLoss = currentLoss
		s.numBadEpochs = 0
	} else {
		s.numBadEpochs++
	}

	if s.numBadEpochs >= s.patience {
		newLR := s.target.LearningRate() * s.factor
		if newLR < s.minLR {
			newLR = s.minLR
		}
		s.target.SetLearningRate(newLR)
		s.numBadEpochs = 0
		s.cooldownCounter = s.cooldown
	}
}

func (s *ReduceLROnPlateau) GetLR() float64 {
	return s.target.LearningRate()
}
