package training

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/tsawler/go-trainloop/checkpoints"
)

// Phase identifies which pass of an epoch is being tracked.
type Phase int

const (
	Training Phase = iota
	Validation
)

func (p Phase) String() string {
	switch p {
	case Training:
		return "training"
	case Validation:
		return "validation"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// Mode is the model execution mode the epoch driver switches between.
type Mode int

const (
	ModeTrain Mode = iota
	ModeEval
)

func (m Mode) String() string {
	switch m {
	case ModeTrain:
		return "train"
	case ModeEval:
		return "eval"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// DefaultBestValidationLoss is the sentinel best loss used when no validation
// pass has completed yet. Any real mean loss below it triggers the first
// checkpoint write.
const DefaultBestValidationLoss = 1e6

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	Epoch              int     // Starting epoch index when resuming a run
	TrackAccuracy      bool    // Whether processors report accuracy alongside loss
	BestValidationLoss float64 // Best validation loss so far when resuming (0 = sentinel)
	SaveDirectory      string  // Where checkpoints are written ("" = working directory)
	Format             checkpoints.CheckpointFormat
}

// DefaultTrackerConfig returns the configuration for a fresh training run.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		TrackAccuracy:      true,
		BestValidationLoss: DefaultBestValidationLoss,
		Format:             checkpoints.FormatJSON,
	}
}

// Tracker accumulates per-batch loss and accuracy for the two phases of an
// epoch and owns the decision to checkpoint the model when the mean
// validation loss improves.
//
// Between StartPhase and FinishPhase the accumulators hold running sums;
// after FinishPhase they hold the phase's mean. Each Tracker owns its
// accumulators outright and is not safe for concurrent use; one logical
// thread of control mutates it per call.
type Tracker struct {
	epoch              int
	trackAccuracy      bool
	bestValidationLoss float64

	trainingLoss   float64
	trainingAcc    float64
	validationLoss float64
	validationAcc  float64

	saveDir string
	saver   *checkpoints.CheckpointSaver
	history History
}

// NewTracker creates a tracker with zeroed accumulators. Resuming a prior run
// is a matter of passing the saved epoch index and best validation loss in
// the config.
func NewTracker(config TrackerConfig) *Tracker {
	best := config.BestValidationLoss
	if best == 0 {
		best = DefaultBestValidationLoss
	}

	return &Tracker{
		epoch:              config.Epoch,
		trackAccuracy:      config.TrackAccuracy,
		bestValidationLoss: best,
		saveDir:            config.SaveDirectory,
		saver:              checkpoints.NewCheckpointSaver(config.Format),
	}
}

// StartPhase resets the accumulators for one phase. It must be called exactly
// once before recording that phase's batches.
func (t *Tracker) StartPhase(phase Phase) {
	if phase == Training {
		t.trainingLoss = 0
		t.trainingAcc = 0
	} else {
		t.validationLoss = 0
		t.validationAcc = 0
	}
}

// RecordBatch folds one batch result into the running sums for phase. When
// accuracy tracking is enabled the result must carry an accuracy value;
// omitting it is a contract violation, not a silently tolerated default.
func (t *Tracker) RecordBatch(phase Phase, epoch int, result BatchResult) error {
	if result.Loss == nil {
		return fmt.Errorf("tracker: %s batch result carries no loss", phase)
	}

	var acc float64
	if t.trackAccuracy {
		if result.Accuracy == nil {
			return fmt.Errorf("tracker: accuracy tracking is enabled but the %s batch result carries no accuracy", phase)
		}
		acc = result.Accuracy.Item()
	}

	t.epoch = epoch

	if phase == Training {
		t.trainingLoss += result.Loss.Item()
		if t.trackAccuracy {
			t.trainingAcc += acc
		}
	} else {
		t.validationLoss += result.Loss.Item()
		if t.trackAccuracy {
			t.validationAcc += acc
		}
	}

	return nil
}

// FinishPhase converts the phase's running sums into means over numBatches.
// Finishing a validation phase additionally compares the mean validation
// loss against the best seen so far and, on strict improvement, persists the
// model's parameter state under a name derived from the epoch and the
// rounded mean validation accuracy. An equal loss never writes.
func (t *Tracker) FinishPhase(phase Phase, epoch int, model Model, numBatches int) error {
	if numBatches <= 0 {
		return fmt.Errorf("tracker: cannot finish %s phase over %d batches", phase, numBatches)
	}

	t.epoch = epoch
	n := float64(numBatches)

	if phase == Training {
		t.trainingLoss /= n
		t.trainingAcc /= n
		t.history.record(Training, t.trainingLoss, t.trainingAcc)
		return nil
	}

	t.validationLoss /= n
	t.validationAcc /= n
	t.history.record(Validation, t.validationLoss, t.validationAcc)

	if t.validationLoss < t.bestValidationLoss {
		t.bestValidationLoss = t.validationLoss
		if err := t.saveCheckpoint(model); err != nil {
			return err
		}
	}

	return nil
}

// saveCheckpoint snapshots the model and writes it under the tracker's
// checkpoint naming convention.
func (t *Tracker) saveCheckpoint(model Model) error {
	if model == nil {
		return fmt.Errorf("tracker: validation loss improved but no model was supplied to checkpoint")
	}

	checkpoint, err := model.Snapshot()
	if err != nil {
		return fmt.Errorf("tracker: failed to snapshot model: %v", err)
	}

	checkpoint.TrainingState = checkpoints.TrainingState{
		Epoch:              t.epoch,
		BestValidationLoss: t.bestValidationLoss,
		ValidationAccuracy: t.validationAcc,
	}

	name := fmt.Sprintf("epoch-%d-%d.%s", t.epoch, int(math.Round(t.validationAcc)), t.saver.FileExtension())
	return t.saver.SaveCheckpoint(checkpoint, filepath.Join(t.saveDir, name))
}

// Epoch returns the most recently recorded epoch index.
func (t *Tracker) Epoch() int { return t.epoch }

// TracksAccuracy reports whether processors must supply accuracy values.
func (t *Tracker) TracksAccuracy() bool { return t.trackAccuracy }

// BestValidationLoss returns the lowest mean validation loss seen so far.
func (t *Tracker) BestValidationLoss() float64 { return t.bestValidationLoss }

// AverageTrainingLoss returns the training loss accumulator. After
// FinishPhase(Training, ...) it holds the phase's mean.
func (t *Tracker) AverageTrainingLoss() float64 { return t.trainingLoss }

// AverageTrainingAccuracy returns the training accuracy accumulator.
func (t *Tracker) AverageTrainingAccuracy() float64 { return t.trainingAcc }

// AverageValidationLoss returns the validation loss accumulator.
func (t *Tracker) AverageValidationLoss() float64 { return t.validationLoss }

// AverageValidationAccuracy returns the validation accuracy accumulator.
func (t *Tracker) AverageValidationAccuracy() float64 { return t.validationAcc }

// History returns the per-epoch record of finished phase means.
func (t *Tracker) History() *History { return &t.history }
