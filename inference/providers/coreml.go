// Package providers - CoreML execution provider.
package providers

const (
	coremlFlagUseCPUOnly       uint32 = 0x001
	coremlFlagOnlyEnableDevice uint32 = 0x004
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// Limit CoreML to running on CPU only. Slower, but deterministic across
	// Apple hardware generations.
	// Default: false
	CPUOnly bool `json:"cpuOnly" yaml:"cpuOnly"`
	// Only enable CoreML on devices with a compatible Apple Neural Engine.
	// Default: false
	RequireANE bool `json:"requireANE" yaml:"requireANE"`
}

// Flags converts the options to the bitmask AppendExecutionProviderCoreML
// expects.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	if o.CPUOnly {
		flags |= coremlFlagUseCPUOnly
	}
	if o.RequireANE {
		flags |= coremlFlagOnlyEnableDevice
	}
	return flags
}
