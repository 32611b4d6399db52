// Package dataset loads labeled image corpora (MNIST and friends) into the
// float32 example vectors the toolbox trains on.
//
// Pixels are normalized from [0, 255] to [0, 1] and labels are one-hot
// encoded.
package dataset

import (
	"fmt"
)

// Examples is a set of training or test examples.  Inputs[k] and Outputs[k]
// belong together; Labels[k] is the class index encoded by Outputs[k].
type Examples struct {
	Inputs  [][]float32
	Outputs [][]float32
	Labels  []int
}

func (e *Examples) Len() int {
	return len(e.Inputs)
}

// Limit returns the first n examples, or all of them if there are fewer.
// Storage is shared with e.
func (e *Examples) Limit(n int) *Examples {
	if n <= 0 || n >= e.Len() {
		return e
	}
	return &Examples{
		Inputs:  e.Inputs[:n],
		Outputs: e.Outputs[:n],
		Labels:  e.Labels[:n],
	}
}

// FromBytes builds examples from raw 8-bit pixels, pixelsPerImage per image,
// and one label byte per image.
func FromBytes(pixels, labels []byte, pixelsPerImage, classes int) (*Examples, error) {
	if pixelsPerImage <= 0 {
		return nil, fmt.Errorf("invalid image size %d", pixelsPerImage)
	}
	if len(pixels) != len(labels)*pixelsPerImage {
		return nil, fmt.Errorf("have %d pixels for %d labels of %d pixels each", len(pixels), len(labels), pixelsPerImage)
	}

	e := &Examples{
		Inputs:  make([][]float32, len(labels)),
		Outputs: make([][]float32, len(labels)),
		Labels:  make([]int, len(labels)),
	}
	for k, label := range labels {
		if int(label) >= classes {
			return nil, fmt.Errorf("example %d has label %d, only %d classes", k, label, classes)
		}

		in := make([]float32, pixelsPerImage)
		for i, p := range pixels[k*pixelsPerImage : (k+1)*pixelsPerImage] {
			in[i] = float32(p) / float32(255)
		}
		out := make([]float32, classes)
		out[label] = 1

		e.Inputs[k] = in
		e.Outputs[k] = out
		e.Labels[k] = int(label)
	}
	return e, nil
}
