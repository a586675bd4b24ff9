// Package providers - ONNX Runtime session tuning.
package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// Tuning contains session-level ONNX Runtime tuning settings.
type Tuning struct {
	// IntraOpNumThreads sets threads for parallelizing ops inside the graph
	// (e.g. matrix multiplication). Zero lets the runtime decide.
	IntraOpNumThreads int `json:"intraOpNumThreads" yaml:"intraOpNumThreads"`

	// InterOpNumThreads sets threads for parallel execution of independent
	// graph nodes. Zero lets the runtime decide.
	InterOpNumThreads int `json:"interOpNumThreads" yaml:"interOpNumThreads"`

	// Sequential forces sequential graph execution for predictable timing.
	Sequential bool `json:"sequential" yaml:"sequential"`
}

// Validate rejects thread counts the runtime would refuse.
func (t Tuning) Validate() error {
	if t.IntraOpNumThreads < 0 {
		return fmt.Errorf("intra-op thread count %d is negative", t.IntraOpNumThreads)
	}
	if t.InterOpNumThreads < 0 {
		return fmt.Errorf("inter-op thread count %d is negative", t.InterOpNumThreads)
	}
	return nil
}

// SessionOptions builds session options with graph optimizations enabled and
// the configured execution provider appended.
//
// The caller owns the returned options and must Destroy them once the
// session is created.
//
// Arguments:
//   - tuning: Threading and execution mode settings.
//   - provider: The execution provider to append.
//
// Returns:
//   - *ort.SessionOptions: Configured session options.
//   - error: Configuration error if any.
func SessionOptions(tuning Tuning, provider Config) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}

	// Enables advanced graph rewrites (fusion, constant folding) during
	// graph loading.
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)
	if tuning.Sequential {
		options.SetExecutionMode(ort.ExecutionModeSequential)
	} else {
		options.SetExecutionMode(ort.ExecutionModeParallel)
	}
	options.SetIntraOpNumThreads(tuning.IntraOpNumThreads)
	options.SetInterOpNumThreads(tuning.InterOpNumThreads)

	if err := provider.Apply(options); err != nil {
		options.Destroy()
		return nil, err
	}

	return options, nil
}
