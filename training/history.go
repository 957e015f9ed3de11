package training

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// History records the per-epoch means a Tracker produces, one entry per
// finished phase. Accuracy entries stay zero when accuracy is not tracked.
type History struct {
	TrainingLoss       []float64
	TrainingAccuracy   []float64
	ValidationLoss     []float64
	ValidationAccuracy []float64
}

func (h *History) record(phase Phase, loss, accuracy float64) {
	if phase == Training {
		h.TrainingLoss = append(h.TrainingLoss, loss)
		h.TrainingAccuracy = append(h.TrainingAccuracy, accuracy)
	} else {
		h.ValidationLoss = append(h.ValidationLoss, loss)
		h.ValidationAccuracy = append(h.ValidationAccuracy, accuracy)
	}
}

// Epochs returns how many validation phases have finished.
func (h *History) Epochs() int {
	return len(h.ValidationLoss)
}

// BestEpoch returns the position and value of the lowest mean validation
// loss recorded so far, or (-1, NaN) when no validation phase has finished.
func (h *History) BestEpoch() (int, float64) {
	if len(h.ValidationLoss) == 0 {
		return -1, math.NaN()
	}
	i := floats.MinIdx(h.ValidationLoss)
	return i, h.ValidationLoss[i]
}

// Summary returns the mean and standard deviation of the recorded mean
// losses for one phase. With fewer than two entries the standard deviation
// is NaN.
func (h *History) Summary(phase Phase) (mean, stddev float64) {
	series := h.TrainingLoss
	if phase == Validation {
		series = h.ValidationLoss
	}
	if len(series) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.Mean(series, nil), stat.StdDev(series, nil)
}
