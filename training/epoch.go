package training

import (
	"fmt"

	"github.com/tsawler/go-trainloop/checkpoints"
)

// Scalar is a boxed scalar produced by a batch processor, typically a
// single-element tensor from the underlying framework. Item extracts its
// plain floating-point value; the tracker never sees framework tensor types.
type Scalar interface {
	Item() float64
}

// Float is the trivial Scalar for processors that already work in plain floats.
type Float float64

// Item implements Scalar.
func (f Float) Item() float64 { return float64(f) }

// BatchResult carries the values a processor hands back to the loop for one
// batch. Accuracy is nil when the run does not track accuracy.
type BatchResult struct {
	Loss     Scalar
	Accuracy Scalar
}

// Processor performs the forward/backward computation for one batch and
// returns its loss, plus accuracy when the run tracks it. Errors it returns
// propagate out of RunEpoch unmodified.
type Processor func(batch any, phase Phase) (BatchResult, error)

// Model is the external model handle the loop drives. The loop may switch
// its mode and snapshot its parameters, but never replaces or frees it.
type Model interface {
	// SetMode switches the model between training and evaluation behavior.
	SetMode(Mode)
	// Snapshot extracts the model's parameter state for persistence.
	Snapshot() (*checkpoints.Checkpoint, error)
}

// RunEpoch drives one full epoch: a training pass over train and, when valid
// is non-nil, a validation pass over valid. Per-batch computation is
// delegated to processor; running statistics and the checkpoint decision
// live in progress, which is required.
//
// The loop is synchronous and runs to completion over the supplied batch
// sources. It performs no retries and no partial-failure recovery: errors
// from the processor, the tracker's precondition checks, or a checkpoint
// write propagate to the caller.
func RunEpoch(epoch int, model Model, train, valid BatchSource, processor Processor, progress *Tracker) error {
	if progress == nil {
		return fmt.Errorf("training: RunEpoch requires a progress tracker")
	}
	if model == nil {
		return fmt.Errorf("training: RunEpoch requires a model")
	}
	if processor == nil {
		return fmt.Errorf("training: RunEpoch requires a batch processor")
	}
	if train == nil || train.Len() == 0 {
		return fmt.Errorf("training: epoch %d has no training batches", epoch)
	}

	model.SetMode(ModeTrain)
	if err := runPhase(Training, epoch, train, processor, progress); err != nil {
		return err
	}
	if err := progress.FinishPhase(Training, epoch, model, train.Len()); err != nil {
		return err
	}
	fmt.Printf("Epoch %d - Loss: %f - Accuracy: %.2f%%\n",
		epoch, progress.AverageTrainingLoss(), progress.AverageTrainingAccuracy())

	if valid == nil {
		return nil
	}
	if valid.Len() == 0 {
		return fmt.Errorf("training: epoch %d has an empty validation batch source", epoch)
	}

	model.SetMode(ModeEval)
	if err := runPhase(Validation, epoch, valid, processor, progress); err != nil {
		return err
	}
	if err := progress.FinishPhase(Validation, epoch, model, valid.Len()); err != nil {
		return err
	}
	fmt.Printf("Validation - Loss: %f - Accuracy: %.2f%%\n",
		progress.AverageValidationLoss(), progress.AverageValidationAccuracy())

	return nil
}

// runPhase consumes every batch in source once, forwarding processor results
// to the tracker and rendering per-batch progress.
func runPhase(phase Phase, epoch int, source BatchSource, processor Processor, progress *Tracker) error {
	progress.StartPhase(phase)
	source.Reset()

	bar := NewProgressBar(fmt.Sprintf("Epoch %d (%s)", epoch, phase), source.Len())
	step := 0
	for {
		batch, ok := source.Next()
		if !ok {
			break
		}

		result, err := processor(batch, phase)
		if err != nil {
			return fmt.Errorf("training: %s batch %d of epoch %d failed: %w", phase, step, epoch, err)
		}
		if err := progress.RecordBatch(phase, epoch, result); err != nil {
			return err
		}

		step++
		bar.Update(step, batchMetrics(result))
	}
	bar.Finish()

	if step != source.Len() {
		return fmt.Errorf("training: %s batch source yielded %d batches, expected %d", phase, step, source.Len())
	}

	return nil
}

// batchMetrics extracts the display metrics for the progress bar.
func batchMetrics(result BatchResult) map[string]float64 {
	metrics := map[string]float64{"loss": result.Loss.Item()}
	if result.Accuracy != nil {
		metrics["acc"] = result.Accuracy.Item()
	}
	return metrics
}
