package toolbox

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

// https://huggingface.co/docs/safetensors/index#format

const safeTensorsMetadataKey = "__metadata__"

type SafeTensorInfo struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets []int  `json:"data_offsets"`
}

// WriteSafeTensors writes tensors, each with shape (Rows, Cols), and the
// optional string metadata in safetensors format.  Tensors are laid out in
// sorted key order.
func WriteSafeTensors(w io.Writer, tensors map[string]*Matrix, metadata map[string]string) error {
	header := map[string]any{}
	if len(metadata) > 0 {
		header[safeTensorsMetadataKey] = metadata
	}

	keys := []string{}
	for k := range tensors {
		if k == safeTensorsMetadataKey {
			return fmt.Errorf("tensor name %q is reserved", k)
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	dataOffset := 0
	for _, k := range keys {
		begin := dataOffset
		dataOffset += len(tensors[k].V) * 4
		end := dataOffset

		header[k] = SafeTensorInfo{
			DType:       "F32",
			Shape:       []int{tensors[k].Rows, tensors[k].Cols},
			DataOffsets: []int{begin, end},
		}
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("while marshaling header: %w", err)
	}

	// Pad the header with spaces so the data section starts 8-byte aligned.
	for len(headerBytes)%8 != 0 {
		headerBytes = append(headerBytes, ' ')
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerBytes))); err != nil {
		return fmt.Errorf("while writing header length: %w", err)
	}

	if _, err := w.Write(headerBytes); err != nil {
		return fmt.Errorf("while writing header: %w", err)
	}

	for _, k := range keys {
		if err := binary.Write(w, binary.LittleEndian, tensors[k].V); err != nil {
			return fmt.Errorf("while writing %s values: %w", k, err)
		}
	}

	return nil
}

// ReadSafeTensors reads a safetensors stream written by WriteSafeTensors.
// Only F32 tensors of rank 1 or 2 are supported; rank-1 tensors load as
// column vectors.
func ReadSafeTensors(r io.Reader) (map[string]*Matrix, map[string]string, error) {
	var headerLen uint64
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, nil, fmt.Errorf("while reading header length: %w", err)
	}

	// Guard against allocating absurd headers from corrupt input.
	if headerLen > 100<<20 {
		return nil, nil, fmt.Errorf("header length %d is too large", headerLen)
	}

	headerBytes := make([]byte, int(headerLen))
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, nil, fmt.Errorf("while reading header: %w", err)
	}

	rawHeader := map[string]json.RawMessage{}
	if err := json.Unmarshal(headerBytes, &rawHeader); err != nil {
		return nil, nil, fmt.Errorf("while reading header: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("while reading tensor data: %w", err)
	}

	metadata := map[string]string{}
	tensors := map[string]*Matrix{}
	for k, raw := range rawHeader {
		if k == safeTensorsMetadataKey {
			if err := json.Unmarshal(raw, &metadata); err != nil {
				return nil, nil, fmt.Errorf("while reading metadata: %w", err)
			}
			continue
		}

		var hdr SafeTensorInfo
		if err := json.Unmarshal(raw, &hdr); err != nil {
			return nil, nil, fmt.Errorf("while reading header for %s: %w", k, err)
		}

		tensor, err := decodeTensor(hdr, data)
		if err != nil {
			return nil, nil, fmt.Errorf("while decoding %s: %w", k, err)
		}
		tensors[k] = tensor
	}

	return tensors, metadata, nil
}

func decodeTensor(hdr SafeTensorInfo, data []byte) (*Matrix, error) {
	if hdr.DType != "F32" {
		return nil, fmt.Errorf("unsupported dtype %s", hdr.DType)
	}

	var rows, cols int
	switch len(hdr.Shape) {
	case 1:
		rows, cols = hdr.Shape[0], 1
	case 2:
		rows, cols = hdr.Shape[0], hdr.Shape[1]
	default:
		return nil, fmt.Errorf("unsupported shape %v", hdr.Shape)
	}
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("bad shape %v", hdr.Shape)
	}
	// Bound the shape by the data before multiplying so it cannot overflow.
	if cols != 0 && rows > len(data)/4/cols {
		return nil, fmt.Errorf("shape %v needs more than the %d bytes of data", hdr.Shape, len(data))
	}

	if len(hdr.DataOffsets) != 2 {
		return nil, fmt.Errorf("bad data offsets %v", hdr.DataOffsets)
	}
	begin, end := hdr.DataOffsets[0], hdr.DataOffsets[1]
	if begin < 0 || end < begin || end > len(data) {
		return nil, fmt.Errorf("data offsets %v out of range for %d bytes of data", hdr.DataOffsets, len(data))
	}
	if end-begin != rows*cols*4 {
		return nil, fmt.Errorf("shape %v needs %d bytes, data offsets %v hold %d", hdr.Shape, rows*cols*4, hdr.DataOffsets, end-begin)
	}

	m := Zeros(rows, cols)
	if err := binary.Read(bytes.NewReader(data[begin:end]), binary.LittleEndian, m.V); err != nil {
		return nil, err
	}
	return m, nil
}
