// Package inference - ONNX Runtime sessions over preallocated tensors.
package inference

import (
	"fmt"
	"os"

	"github.com/vqa-ai/go-nima/inference/providers"
	ort "github.com/yalue/onnxruntime_go"
)

// Initialize prepares the ONNX Runtime native environment. It resolves the
// shared library, points the runtime at it, and loads it. Safe to call more
// than once per process; only the first call does work.
//
// Arguments:
//   - libraryPath: Explicit shared library path. Empty triggers resolution
//     through the environment and well-known locations.
//   - verbose: Enables native runtime logging for troubleshooting.
//
// Returns:
//   - error: An error when the library cannot be found or loaded.
func Initialize(libraryPath string, verbose bool) error {
	if ort.IsInitialized() {
		return nil
	}

	path, err := providers.ResolveLibraryPath(libraryPath)
	if err != nil {
		return err
	}

	if verbose {
		ort.SetEnvironmentLogLevel(ort.LoggingLevelVerbose)
	}
	ort.SetSharedLibraryPath(path)

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("error initializing ORT environment: %w", err)
	}

	return nil
}

// Shutdown tears the native environment down. Call once all sessions are
// closed.
func Shutdown() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Config describes the session to create. Names and shapes must be concrete;
// use Inspect to discover them from the model file first.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// InputName and OutputName are the graph node names to bind.
	InputName  string
	OutputName string

	// InputShape and OutputShape are the tensor shapes to preallocate.
	// Every dimension must be positive.
	InputShape  []int64
	OutputShape []int64

	// LibraryPath optionally pins the ONNX Runtime shared library.
	LibraryPath string

	// Provider selects the execution provider.
	Provider providers.Config

	// Tuning controls threading and execution mode.
	Tuning providers.Tuning

	// Verbose enables native runtime logging.
	Verbose bool
}

// Validate checks the parts of the configuration a session cannot be built
// without.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("model path is required")
	}
	if c.InputName == "" || c.OutputName == "" {
		return fmt.Errorf("input and output names are required")
	}
	if err := validateShape("input", c.InputShape); err != nil {
		return err
	}
	return validateShape("output", c.OutputShape)
}

func validateShape(kind string, shape []int64) error {
	if len(shape) == 0 {
		return fmt.Errorf("%s shape is required", kind)
	}
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("%s shape dimension %d is %d, want a positive size", kind, i, dim)
		}
	}
	return nil
}

// Session wraps an ONNX Runtime session with preallocated input and output
// tensors for zero-copy data exchange.
type Session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewSession creates a session for the model described by cfg.
//
// Order of operations:
//  1. Environment setup: Loads the native library if not yet loaded.
//  2. Tensor allocation: Prepares fixed-shape buffers for input and output.
//  3. Session options: Threading, optimization level, execution provider.
//  4. Session creation: Loads the model and binds the tensors.
//
// Arguments:
//   - cfg: The session configuration.
//
// Returns:
//   - *Session: The runnable session. Close it to release native resources.
//   - error: An error if any step fails.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found at %s: %w", cfg.ModelPath, err)
	}

	if err := Initialize(cfg.LibraryPath, cfg.Verbose); err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.OutputShape...))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	options, err := providers.SessionOptions(cfg.Tuning, cfg.Provider)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("error creating ORT session: %w", err)
	}

	return &Session{
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// InputData exposes the preallocated input buffer. Preprocessing writes
// directly into it before Run.
func (s *Session) InputData() []float32 {
	return s.input.GetData()
}

// Run executes the model over the current input buffer contents.
//
// Returns:
//   - []float32: A copy of the output buffer, safe to keep after Close.
//   - error: An error if execution fails.
func (s *Session) Run() ([]float32, error) {
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	data := s.output.GetData()
	out := make([]float32, len(data))
	copy(out, data)

	return out, nil
}

// Close releases the tensors and the native session.
func (s *Session) Close() error {
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	if s.session != nil {
		if err := s.session.Destroy(); err != nil {
			return fmt.Errorf("error destroying ORT session: %w", err)
		}
		s.session = nil
	}
	return nil
}
