// Package providers - OpenVINO execution provider.
package providers

import "fmt"

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type at runtime, e.g. "CPU", "GPU",
	// or "NPU". If not set, the default hardware chosen during build is used.
	DeviceType string `json:"deviceType" yaml:"deviceType"`
	// Supported precisions per hardware: {CPU: FP32, GPU: [FP32, FP16,
	// ACCURACY], NPU: FP16}. ACCURACY keeps the model's input precision.
	Precision string `json:"precision" yaml:"precision"`
	// Overrides the accelerator default thread count at runtime.
	NumOfThreads int `json:"numOfThreads" yaml:"numOfThreads"`
	// Overrides the accelerator default stream count at runtime.
	NumStreams int `json:"numStreams" yaml:"numStreams"`
}

// providerOptionsMap renders the options as the string map
// AppendExecutionProviderOpenVINO consumes. Unset options are omitted so the
// provider keeps its build-time defaults.
func (o OpenVINOOptions) providerOptionsMap() map[string]string {
	m := map[string]string{}
	if o.DeviceType != "" {
		m["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		m["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		m["num_of_threads"] = fmt.Sprintf("%d", o.NumOfThreads)
	}
	if o.NumStreams > 0 {
		m["num_streams"] = fmt.Sprintf("%d", o.NumStreams)
	}
	return m
}
