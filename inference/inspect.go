// Package inference - Model metadata discovery.
package inference

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// TensorInfo describes one graph input or output of an ONNX model.
type TensorInfo struct {
	// Name of the graph node.
	Name string `json:"name" yaml:"name"`

	// Shape of the tensor. Dynamic dimensions are reported as non-positive
	// values.
	Shape []int64 `json:"shape" yaml:"shape"`
}

// ElementCount returns the number of elements in the tensor, counting each
// dynamic dimension as one.
func (t TensorInfo) ElementCount() int64 {
	count := int64(1)
	for _, dim := range t.Shape {
		if dim > 0 {
			count *= dim
		}
	}
	return count
}

// Info holds the discovered inputs and outputs of an ONNX model graph.
type Info struct {
	Inputs  []TensorInfo `json:"inputs" yaml:"inputs"`
	Outputs []TensorInfo `json:"outputs" yaml:"outputs"`
}

// Inspect reads graph input and output metadata from the model at path.
// Initialize must have succeeded first.
//
// Arguments:
//   - modelPath: The path to the ONNX model file.
//
// Returns:
//   - *Info: The discovered graph metadata.
//   - error: An error when the model cannot be read or parsed.
func Inspect(modelPath string) (*Info, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("error reading model metadata from %s: %w", modelPath, err)
	}

	info := &Info{}
	for _, in := range inputs {
		info.Inputs = append(info.Inputs, TensorInfo{
			Name:  in.Name,
			Shape: append([]int64(nil), in.Dimensions...),
		})
	}
	for _, out := range outputs {
		info.Outputs = append(info.Outputs, TensorInfo{
			Name:  out.Name,
			Shape: append([]int64(nil), out.Dimensions...),
		})
	}

	return info, nil
}

// Single returns the sole input and output of a single-tensor graph, the
// shape every supported scoring model has.
func (i *Info) Single() (TensorInfo, TensorInfo, error) {
	if len(i.Inputs) != 1 {
		return TensorInfo{}, TensorInfo{}, fmt.Errorf("model declares %d inputs, want exactly 1", len(i.Inputs))
	}
	if len(i.Outputs) != 1 {
		return TensorInfo{}, TensorInfo{}, fmt.Errorf("model declares %d outputs, want exactly 1", len(i.Outputs))
	}
	return i.Inputs[0], i.Outputs[0], nil
}
