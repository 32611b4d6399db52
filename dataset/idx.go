package dataset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// http://yann.lecun.com/exdb/mnist/ describes the IDX format.  All header
// fields are big-endian uint32.
const (
	idxImagesMagic = 0x00000803
	idxLabelsMagic = 0x00000801

	maxIDXImagePixels = 1 << 24
)

// ReadIDX reads an IDX image file and its matching IDX label file.
func ReadIDX(images, labels io.Reader, classes int) (*Examples, error) {
	var imagesHeader struct {
		Magic, Count, Rows, Cols uint32
	}
	if err := binary.Read(images, binary.BigEndian, &imagesHeader); err != nil {
		return nil, fmt.Errorf("while reading images header: %w", err)
	}
	if imagesHeader.Magic != idxImagesMagic {
		return nil, fmt.Errorf("images file has magic number %#08x, want %#08x", imagesHeader.Magic, idxImagesMagic)
	}

	var labelsHeader struct {
		Magic, Count uint32
	}
	if err := binary.Read(labels, binary.BigEndian, &labelsHeader); err != nil {
		return nil, fmt.Errorf("while reading labels header: %w", err)
	}
	if labelsHeader.Magic != idxLabelsMagic {
		return nil, fmt.Errorf("labels file has magic number %#08x, want %#08x", labelsHeader.Magic, idxLabelsMagic)
	}

	if imagesHeader.Count != labelsHeader.Count {
		return nil, fmt.Errorf("images file holds %d images but labels file holds %d labels", imagesHeader.Count, labelsHeader.Count)
	}

	// Header fields are untrusted; the product of two uint32s fits in a
	// uint64 and is bounded before it is used as a size.
	pixelsPerImage64 := uint64(imagesHeader.Rows) * uint64(imagesHeader.Cols)
	if pixelsPerImage64 == 0 || pixelsPerImage64 > maxIDXImagePixels {
		return nil, fmt.Errorf("images are %dx%d, want between 1 and %d pixels", imagesHeader.Rows, imagesHeader.Cols, maxIDXImagePixels)
	}
	pixelsPerImage := int(pixelsPerImage64)
	count := int(imagesHeader.Count)

	// Read one image at a time so that a count larger than the file fails
	// with io.ErrUnexpectedEOF instead of a giant up-front allocation.
	var pixels []byte
	image := make([]byte, pixelsPerImage)
	for k := 0; k < count; k++ {
		if _, err := io.ReadFull(images, image); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("while reading image %d: %w", k, err)
		}
		pixels = append(pixels, image...)
	}

	labelBytes, err := io.ReadAll(io.LimitReader(labels, int64(count)))
	if err != nil {
		return nil, fmt.Errorf("while reading labels: %w", err)
	}
	if len(labelBytes) != count {
		return nil, fmt.Errorf("while reading labels: got %d of %d: %w", len(labelBytes), count, io.ErrUnexpectedEOF)
	}

	return FromBytes(pixels, labelBytes, pixelsPerImage, classes)
}

// OpenIDX reads the IDX image and label files at the given paths.
func OpenIDX(imagesPath, labelsPath string, classes int) (*Examples, error) {
	imagesFile, err := os.Open(imagesPath)
	if err != nil {
		return nil, fmt.Errorf("while opening images file: %w", err)
	}
	defer imagesFile.Close()

	labelsFile, err := os.Open(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("while opening labels file: %w", err)
	}
	defer labelsFile.Close()

	return ReadIDX(bufio.NewReader(imagesFile), bufio.NewReader(labelsFile), classes)
}
