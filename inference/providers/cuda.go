// Package providers - CUDA execution provider.
package providers

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"deviceID" yaml:"deviceID"`
	// The size limit of the device memory arena in bytes. This size limit is
	// only for the execution provider's arena; total device memory usage may
	// be higher. Zero keeps the runtime default.
	GPUMemLimit int64 `json:"gpuMemLimit" yaml:"gpuMemLimit"`
	// The strategy for extending the device memory arena.
	// 0: kNextPowerOfTwo - extensions extend by progressively larger amounts
	// 1: kSameAsRequested - extend by the requested amount
	ArenaExtendStrategy int `json:"arenaExtendStrategy" yaml:"arenaExtendStrategy"`
	// The type of search done for cuDNN convolution algorithms.
	// 0: EXHAUSTIVE, 1: HEURISTIC, 2: DEFAULT
	CudnnConvAlgoSearch int `json:"cudnnConvAlgoSearch" yaml:"cudnnConvAlgoSearch"`
	// Whether to do copies in the default stream or use separate streams.
	// The recommended setting is true; false risks race conditions.
	DoCopyInDefaultStream bool `json:"doCopyInDefaultStream" yaml:"doCopyInDefaultStream"`
	// TF32 is a math mode available on NVIDIA GPUs since Ampere that runs
	// certain float32 operations on tensor cores with reduced precision.
	UseTF32 int `json:"useTF32" yaml:"useTF32"`
}

// providerOptionsMap renders the options as the string map the native CUDA
// provider consumes.
func (o CUDAOptions) providerOptionsMap() map[string]string {
	m := map[string]string{
		"device_id":                 fmt.Sprintf("%d", o.DeviceID),
		"arena_extend_strategy":     fmt.Sprintf("%d", o.ArenaExtendStrategy),
		"cudnn_conv_algo_search":    fmt.Sprintf("%d", o.CudnnConvAlgoSearch),
		"do_copy_in_default_stream": fmt.Sprintf("%t", o.DoCopyInDefaultStream),
		"use_tf32":                  fmt.Sprintf("%d", o.UseTF32),
	}
	if o.GPUMemLimit > 0 {
		m["gpu_mem_limit"] = fmt.Sprintf("%d", o.GPUMemLimit)
	}
	return m
}

// ToNativeProviderOptions converts the options into native CUDA provider
// options. The caller owns the returned options and must Destroy them after
// appending to session options.
func (o CUDAOptions) ToNativeProviderOptions() (*ort.CUDAProviderOptions, error) {
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, err
	}

	if err := opts.Update(o.providerOptionsMap()); err != nil {
		opts.Destroy()
		return nil, err
	}

	return opts, nil
}
