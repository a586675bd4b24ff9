// Package scores - Quality score distributions and their reductions.
package scores

import (
	"fmt"

	"github.com/chewxy/math32"
)

// NumBuckets is the number of quality buckets the model predicts over.
// Bucket i (1-based) stands for a quality rating of i.
const NumBuckets = 10

// sumTolerance bounds how far a distribution may drift from summing to 1.
const sumTolerance = 1e-3

// Distribution is a categorical probability distribution over the quality
// buckets 1..NumBuckets.
type Distribution [NumBuckets]float32

// FromSlice validates raw model output as a probability distribution.
//
// Arguments:
//   - vals: The raw output values, one per bucket.
//
// Returns:
//   - Distribution: The validated distribution.
//   - error: An error if the values do not form a probability distribution.
func FromSlice(vals []float32) (Distribution, error) {
	var d Distribution
	if len(vals) != NumBuckets {
		return d, fmt.Errorf("expected %d bucket probabilities, got %d", NumBuckets, len(vals))
	}
	var sum float32
	for i, v := range vals {
		if v < 0 {
			return d, fmt.Errorf("bucket %d has negative probability %g", i+1, v)
		}
		d[i] = v
		sum += v
	}
	if math32.Abs(sum-1) > sumTolerance {
		return d, fmt.Errorf("bucket probabilities sum to %g, want 1.0 within %g", sum, float32(sumTolerance))
	}
	return d, nil
}

// Mean returns the expected quality rating, sum over i of i*p[i-1].
func (d Distribution) Mean() float32 {
	var mean float32
	for i, p := range d {
		mean += float32(i+1) * p
	}
	return mean
}

// StdDev returns the standard deviation of the quality rating around Mean.
func (d Distribution) StdDev() float32 {
	mean := d.Mean()
	var variance float32
	for i, p := range d {
		dev := float32(i+1) - mean
		variance += dev * dev * p
	}
	return math32.Sqrt(variance)
}

// Summarize reduces the distribution to its two summary statistics.
func (d Distribution) Summarize() Summary {
	return Summary{Mean: d.Mean(), Std: d.StdDev()}
}

// Summary holds the statistics reported for a scored image.
type Summary struct {
	Mean float32 `json:"mean" yaml:"mean"`
	Std  float32 `json:"std"  yaml:"std"`
}

// String renders the summary in the machine-parseable output format: mean and
// standard deviation with two decimal places, comma separated, no whitespace.
func (s Summary) String() string {
	return fmt.Sprintf("%.2f,%.2f", s.Mean, s.Std)
}

// Softmax converts raw logits to a probability distribution. Models exported
// without the final activation emit logits; passing them through here restores
// the distribution the reduction expects. The maximum logit is subtracted
// before exponentiation so the exponentials stay in float32 range.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float32, len(logits))
	var sum float32
	for i, v := range logits {
		out[i] = math32.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
