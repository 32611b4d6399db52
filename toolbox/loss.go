package toolbox

import (
	"fmt"
)

// SquaredError is sum_i (a_i - y_i)^2, the per-example loss whose gradient
// BackPropagate computes.
func SquaredError(y, a []float32) float32 {
	if len(y) != len(a) {
		panic("y and a must have same length")
	}

	var loss float32
	for i := range y {
		diff := a[i] - y[i]
		loss += diff * diff
	}
	return loss
}

// Loss returns the squared error summed over every example.
func (net *Network) Loss(inputs, expected [][]float32) (float32, error) {
	if err := checkExamples(inputs, expected); err != nil {
		return 0, err
	}

	var loss float32
	for k := range inputs {
		if len(expected[k]) != net.outputSize() {
			return 0, fmt.Errorf("%w: expected output %d has %d entries, last layer has %d neurons", ErrInputArity, k, len(expected[k]), net.outputSize())
		}
		a, err := net.FeedForward(inputs[k])
		if err != nil {
			return 0, fmt.Errorf("while evaluating example %d: %w", k, err)
		}
		loss += SquaredError(expected[k], a)
	}
	return loss, nil
}
