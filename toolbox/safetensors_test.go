package toolbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSafeTensorsRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	tensors := map[string]*Matrix{
		"a": Random(3, 4, r),
		"b": Random(5, 1, r),
		"c": Zeros(0, 2),
	}
	metadata := map[string]string{"hello": "world"}

	buf := &bytes.Buffer{}
	if err := WriteSafeTensors(buf, tensors, metadata); err != nil {
		t.Fatalf("WriteSafeTensors: %v", err)
	}

	var headerLen uint64
	if err := binary.Read(bytes.NewReader(buf.Bytes()), binary.LittleEndian, &headerLen); err != nil {
		t.Fatalf("reading header length: %v", err)
	}
	if headerLen%8 != 0 {
		t.Errorf("header length %d is not 8-byte aligned", headerLen)
	}

	gotTensors, gotMetadata, err := ReadSafeTensors(buf)
	if err != nil {
		t.Fatalf("ReadSafeTensors: %v", err)
	}
	if diff := cmp.Diff(gotTensors, tensors); diff != "" {
		t.Errorf("Wrong tensors; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(gotMetadata, metadata); diff != "" {
		t.Errorf("Wrong metadata; diff (-got +want)\n%s", diff)
	}
}

func TestReadSafeTensorsTruncated(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WriteSafeTensors(buf, map[string]*Matrix{"a": Zeros(4, 4)}, nil); err != nil {
		t.Fatalf("WriteSafeTensors: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-4]

	if _, _, err := ReadSafeTensors(bytes.NewReader(truncated)); err == nil {
		t.Errorf("ReadSafeTensors accepted truncated data")
	}
}

// rawSafeTensors frames an arbitrary JSON header and data section.
func rawSafeTensors(t *testing.T, header string, data []byte) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, uint64(len(header))); err != nil {
		t.Fatalf("writing header length: %v", err)
	}
	buf.WriteString(header)
	buf.Write(data)
	return buf
}

func TestReadSafeTensorsShapeOverflow(t *testing.T) {
	// 1<<62 * 4 * 4 bytes wraps to 0 in int arithmetic.
	header := `{"x":{"dtype":"F32","shape":[4611686018427387904,4],"data_offsets":[0,0]}}`
	tensors, _, err := ReadSafeTensors(rawSafeTensors(t, header, make([]byte, 16)))
	if err == nil {
		t.Errorf("ReadSafeTensors accepted shape %dx%d backed by %d values", tensors["x"].Rows, tensors["x"].Cols, len(tensors["x"].V))
	}
}

func TestLoadHugeLayerFails(t *testing.T) {
	header := `{"__metadata__":{"layers":"[4,4611686018427387904]","activation":"sigmoid","learning_rate":"1"},` +
		`"net.0.weights":{"dtype":"F32","shape":[4611686018427387904,4],"data_offsets":[0,0]},` +
		`"net.0.biases":{"dtype":"F32","shape":[4611686018427387904,1],"data_offsets":[0,0]}}`

	if _, err := Load(rawSafeTensors(t, header, make([]byte, 16))); err == nil {
		t.Errorf("Load accepted a layer of 1<<62 neurons")
	}
}

func TestNetworkSaveLoadRoundTrip(t *testing.T) {
	net, err := New([]int{2, 3, 1}, Sigmoid, 1.0, rand.New(rand.NewSource(12345)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := net.Train(xorInputs, xorExpected, 500); err != nil {
		t.Fatalf("Train: %v", err)
	}

	buf := &bytes.Buffer{}
	if err := net.Save(buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	first := bytes.Clone(buf.Bytes())

	loaded, err := Load(buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff(loaded.Layers, net.Layers); diff != "" {
		t.Errorf("Wrong layers; diff (-got +want)\n%s", diff)
	}
	if loaded.Activation != net.Activation {
		t.Errorf("Activation = %v, want %v", loaded.Activation, net.Activation)
	}
	if loaded.LearningRate != net.LearningRate {
		t.Errorf("LearningRate = %v, want %v", loaded.LearningRate, net.LearningRate)
	}
	assertSameParameters(t, loaded, net)

	for _, input := range xorInputs {
		want, err := net.FeedForward(input)
		if err != nil {
			t.Fatalf("FeedForward: %v", err)
		}
		got, err := loaded.FeedForward(input)
		if err != nil {
			t.Fatalf("FeedForward: %v", err)
		}
		if diff := cmp.Diff(got, want); diff != "" {
			t.Errorf("loaded network disagrees on %v; diff (-got +want)\n%s", input, diff)
		}
	}

	// Saving the loaded network reproduces the same bytes.
	second := &bytes.Buffer{}
	if err := loaded.Save(second); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !bytes.Equal(second.Bytes(), first) {
		t.Errorf("load/save round trip changed the encoding")
	}
}

func TestLoadTensorsWrongShape(t *testing.T) {
	net := makeFixedNetwork(t)
	tensors := map[string]*Matrix{}
	net.DumpTensors(tensors)
	tensors["net.1.weights"] = Zeros(2, 2)

	if err := net.LoadTensors(tensors); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("got error %v, want ErrShapeMismatch", err)
	}

	delete(tensors, "net.0.biases")
	if err := net.LoadTensors(tensors); err == nil {
		t.Errorf("LoadTensors accepted a missing tensor")
	}
}

func TestLoadUnknownActivation(t *testing.T) {
	net := makeFixedNetwork(t)
	tensors := map[string]*Matrix{}
	net.DumpTensors(tensors)

	buf := &bytes.Buffer{}
	metadata := map[string]string{
		"layers":        "[2,2,1]",
		"activation":    "softsign",
		"learning_rate": "0.5",
	}
	if err := WriteSafeTensors(buf, tensors, metadata); err != nil {
		t.Fatalf("WriteSafeTensors: %v", err)
	}

	if _, err := Load(buf); !errors.Is(err, ErrUnknownActivation) {
		t.Errorf("got error %v, want ErrUnknownActivation", err)
	}
}
