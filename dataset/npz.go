package dataset

import (
	"fmt"

	"github.com/sbinet/npyio/npz"
)

// LoadNPZ reads uint8 images and labels from a numpy .npz archive, such as the
// Keras mnist.npz with keys x_train.npy, y_train.npy, x_test.npy and
// y_test.npy.
//
// The images array must have shape (n, ...); everything after the first
// dimension is flattened into one input vector.
func LoadNPZ(path, imagesKey, labelsKey string, classes int) (*Examples, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening npz file: %w", err)
	}
	defer r.Close()

	// numpy always writes C-style (row-major) layouts, which is what we
	// want.

	header := r.Header(imagesKey)
	if header == nil {
		return nil, fmt.Errorf("no %s in %s", imagesKey, path)
	}
	shape := header.Descr.Shape
	if len(shape) < 2 {
		return nil, fmt.Errorf("%s has shape %v, want (n, ...)", imagesKey, shape)
	}
	pixelsPerImage := 1
	for _, s := range shape[1:] {
		pixelsPerImage *= s
	}

	var pixels []uint8
	if err := r.Read(imagesKey, &pixels); err != nil {
		return nil, fmt.Errorf("while reading %s: %w", imagesKey, err)
	}

	if r.Header(labelsKey) == nil {
		return nil, fmt.Errorf("no %s in %s", labelsKey, path)
	}
	var labels []uint8
	if err := r.Read(labelsKey, &labels); err != nil {
		return nil, fmt.Errorf("while reading %s: %w", labelsKey, err)
	}

	return FromBytes(pixels, labels, pixelsPerImage, classes)
}
