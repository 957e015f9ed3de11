package training

import (
	"fmt"
	"math/rand"
	"time"
)

// BatchSource is a finite, single-pass sequence of batches with a known
// length. RunEpoch resets a source once at the start of its phase and then
// consumes exactly Len batches.
type BatchSource interface {
	// Len reports how many batches one full pass yields.
	Len() int
	// Reset rewinds the source to its first batch.
	Reset()
	// Next returns the next batch, or ok=false once the pass is exhausted.
	Next() (batch any, ok bool)
}

// SliceSource adapts an in-memory slice of batches to BatchSource.
type SliceSource struct {
	batches  []any
	position int
}

// NewSliceSource creates a SliceSource over the given batches.
func NewSliceSource(batches ...any) *SliceSource {
	return &SliceSource{batches: batches}
}

// Len returns the number of batches.
func (s *SliceSource) Len() int { return len(s.batches) }

// Reset rewinds to the first batch.
func (s *SliceSource) Reset() { s.position = 0 }

// Next returns the next batch in order.
func (s *SliceSource) Next() (any, bool) {
	if s.position >= len(s.batches) {
		return nil, false
	}
	batch := s.batches[s.position]
	s.position++
	return batch, true
}

// Dataset is an indexable collection of samples.
type Dataset interface {
	Len() int
	Get(idx int) any
}

// SliceDataset is the trivial in-memory Dataset.
type SliceDataset []any

// Len returns the number of samples in the dataset.
func (d SliceDataset) Len() int { return len(d) }

// Get returns the sample at idx.
func (d SliceDataset) Get(idx int) any { return d[idx] }

// Batch groups the samples handed to a processor in one call.
type Batch struct {
	Samples []any
}

// DataLoader batches a Dataset into a BatchSource, optionally reshuffling
// the sample order on every Reset. The final batch of a pass may be smaller
// than the configured batch size.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	indices   []int
	position  int
}

// NewDataLoader creates a DataLoader over dataset.
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool) (*DataLoader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("training: batch size must be positive, got %d", batchSize)
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		indices:   indices,
	}, nil
}

// Len returns the number of batches in one pass over the dataset.
func (dl *DataLoader) Len() int {
	return (len(dl.indices) + dl.batchSize - 1) / dl.batchSize
}

// Reset rewinds the loader for a new pass, reshuffling when enabled.
func (dl *DataLoader) Reset() {
	dl.position = 0

	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

// Next returns the next batch of samples.
func (dl *DataLoader) Next() (any, bool) {
	if dl.position >= len(dl.indices) {
		return nil, false
	}

	end := dl.position + dl.batchSize
	if end > len(dl.indices) {
		end = len(dl.indices)
	}

	samples := make([]any, 0, end-dl.position)
	for _, idx := range dl.indices[dl.position:end] {
		samples = append(samples, dl.dataset.Get(idx))
	}
	dl.position = end

	return &Batch{Samples: samples}, true
}
