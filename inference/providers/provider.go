// Package providers - Execution provider selection for ONNX Runtime sessions.
package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

const (
	// CPUProviderBackend runs inference on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"

	// CoreMLProviderBackend uses Apple CoreML for macOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"

	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend ProviderBackend = "cuda"

	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// ParseBackend converts a configuration string into a ProviderBackend. The
// empty string selects the CPU provider.
func ParseBackend(s string) (ProviderBackend, error) {
	switch ProviderBackend(s) {
	case "":
		return CPUProviderBackend, nil
	case CPUProviderBackend, CoreMLProviderBackend, CUDAProviderBackend, OpenVINOProviderBackend:
		return ProviderBackend(s), nil
	default:
		return "", fmt.Errorf("unknown execution provider %q", s)
	}
}

// Config selects an execution provider and carries its options. Exactly one
// backend is active; the option blocks for the other backends are ignored.
type Config struct {
	// Backend specifies the execution provider to use.
	Backend ProviderBackend `json:"backend" yaml:"backend"`

	// CoreML contains options for the CoreML provider.
	CoreML CoreMLOptions `json:"coreml" yaml:"coreml"`

	// CUDA contains options for the CUDA provider.
	CUDA CUDAOptions `json:"cuda" yaml:"cuda"`

	// OpenVINO contains options for the OpenVINO provider.
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
}

// Apply appends the configured execution provider to the session options.
//
// Execution providers let ONNX Runtime leverage specialized hardware or
// optimized libraries. The CPU provider is always available and needs no
// explicit configuration.
//
// Arguments:
//   - options: The session options to append the provider to.
//
// Returns:
//   - error: An error if the provider cannot be enabled.
func (c Config) Apply(options *ort.SessionOptions) error {
	switch c.Backend {
	case "", CPUProviderBackend:
		return nil
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(c.CoreML.Flags()); err != nil {
			return fmt.Errorf("error enabling CoreML: %w", err)
		}
	case OpenVINOProviderBackend:
		if err := options.AppendExecutionProviderOpenVINO(c.OpenVINO.providerOptionsMap()); err != nil {
			return fmt.Errorf("error enabling OpenVINO: %w", err)
		}
	case CUDAProviderBackend:
		cuda, err := c.CUDA.ToNativeProviderOptions()
		if err != nil {
			return fmt.Errorf("error converting CUDA options: %w", err)
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return fmt.Errorf("error enabling CUDA: %w", err)
		}
	default:
		return fmt.Errorf("unknown execution provider %q", c.Backend)
	}

	return nil
}
