package toolbox

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Saved models hold the weight and bias tensors plus the topology,
// activation tag and learning rate as safetensors metadata.  Training traces
// are never saved.
const (
	metadataLayers       = "layers"
	metadataActivation   = "activation"
	metadataLearningRate = "learning_rate"
)

func weightKey(l int) string {
	return fmt.Sprintf("net.%d.weights", l)
}

func biasKey(l int) string {
	return fmt.Sprintf("net.%d.biases", l)
}

// DumpTensors adds the network's weights and biases to tensors.  The matrices
// are shared, not copied.
func (net *Network) DumpTensors(tensors map[string]*Matrix) {
	for l := range net.Weights {
		tensors[weightKey(l)] = net.Weights[l]
		tensors[biasKey(l)] = net.Biases[l]
	}
}

// LoadTensors replaces the network's weights and biases with the entries of
// tensors, which must match the network's topology.
func (net *Network) LoadTensors(tensors map[string]*Matrix) error {
	weights := make([]*Matrix, len(net.Layers)-1)
	biases := make([]*Matrix, len(net.Layers)-1)

	for l := 0; l < len(net.Layers)-1; l++ {
		weightTensor, ok := tensors[weightKey(l)]
		if !ok {
			return fmt.Errorf("no entry for %s", weightKey(l))
		}
		if weightTensor.Rows != net.Layers[l+1] || weightTensor.Cols != net.Layers[l] {
			return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrShapeMismatch, weightKey(l), weightTensor.Rows, weightTensor.Cols, net.Layers[l+1], net.Layers[l])
		}
		weights[l] = weightTensor

		biasTensor, ok := tensors[biasKey(l)]
		if !ok {
			return fmt.Errorf("no entry for %s", biasKey(l))
		}
		if biasTensor.Rows != net.Layers[l+1] || biasTensor.Cols != 1 {
			return fmt.Errorf("%w: %s is %dx%d, want %dx1", ErrShapeMismatch, biasKey(l), biasTensor.Rows, biasTensor.Cols, net.Layers[l+1])
		}
		biases[l] = biasTensor
	}

	net.mu.Lock()
	defer net.mu.Unlock()
	net.Weights = weights
	net.Biases = biases
	return nil
}

// Save writes the network in safetensors format.
func (net *Network) Save(w io.Writer) error {
	net.mu.RLock()
	defer net.mu.RUnlock()

	layers, err := json.Marshal(net.Layers)
	if err != nil {
		return fmt.Errorf("while marshaling layers: %w", err)
	}
	activation, err := net.Activation.MarshalText()
	if err != nil {
		return err
	}

	metadata := map[string]string{
		metadataLayers:       string(layers),
		metadataActivation:   string(activation),
		metadataLearningRate: strconv.FormatFloat(float64(net.LearningRate), 'g', -1, 32),
	}

	tensors := map[string]*Matrix{}
	net.DumpTensors(tensors)

	if err := WriteSafeTensors(w, tensors, metadata); err != nil {
		return fmt.Errorf("while writing model tensors: %w", err)
	}
	return nil
}

// Load reads a network written by Save.
func Load(r io.Reader) (*Network, error) {
	tensors, metadata, err := ReadSafeTensors(r)
	if err != nil {
		return nil, fmt.Errorf("while reading model tensors: %w", err)
	}

	net := &Network{}

	if err := json.Unmarshal([]byte(metadata[metadataLayers]), &net.Layers); err != nil {
		return nil, fmt.Errorf("while reading layers metadata: %w", err)
	}
	if err := checkTopology(net.Layers); err != nil {
		return nil, err
	}

	if err := net.Activation.UnmarshalText([]byte(metadata[metadataActivation])); err != nil {
		return nil, fmt.Errorf("while reading activation metadata: %w", err)
	}

	lr, err := strconv.ParseFloat(metadata[metadataLearningRate], 32)
	if err != nil {
		return nil, fmt.Errorf("while reading learning rate metadata: %w", err)
	}
	net.LearningRate = float32(lr)

	if err := net.LoadTensors(tensors); err != nil {
		return nil, fmt.Errorf("while restoring network: %w", err)
	}
	return net, nil
}
