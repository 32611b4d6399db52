package toolbox

import (
	"fmt"
	"math/rand"
	"time"
)

// Trainer drives the training loops for a Network.
type Trainer struct {
	Net *Network

	// Rand shuffles the examples in StochasticTrain.  Nil means a source
	// seeded from the clock.
	Rand *rand.Rand

	// OnEpoch, if non-nil, is called after each completed epoch with the
	// 1-based epoch number.
	OnEpoch func(epoch, epochs int)

	// SlidingWindows makes StochasticTrain form every overlapping window of
	// miniBatchSize consecutive shuffled examples, instead of disjoint
	// partitions.  With it, most examples contribute to several updates per
	// epoch.
	SlidingWindows bool

	Timings TrainingTimings
}

type TrainingTimings struct {
	Overall         time.Duration
	Forward         time.Duration
	Backpropagation time.Duration
	WeightUpdate    time.Duration
}

func (t *TrainingTimings) Reset() {
	t.Overall = 0 * time.Second
	t.Forward = 0 * time.Second
	t.Backpropagation = 0 * time.Second
	t.WeightUpdate = 0 * time.Second
}

// Train runs online gradient descent: for every epoch, every example in order
// gets its own forward pass, backpropagation and immediate update.
func (net *Network) Train(inputs, expected [][]float32, epochs int) error {
	return (&Trainer{Net: net}).Train(inputs, expected, epochs)
}

// StochasticTrain runs mini-batch gradient descent over disjoint mini-batches
// of shuffled examples.  See Trainer.StochasticTrain.
func (net *Network) StochasticTrain(inputs, expected [][]float32, epochs, miniBatchSize int, r *rand.Rand) error {
	return (&Trainer{Net: net, Rand: r}).StochasticTrain(inputs, expected, epochs, miniBatchSize)
}

func checkExamples(inputs, expected [][]float32) error {
	if len(inputs) != len(expected) {
		return fmt.Errorf("%w: %d inputs but %d expected outputs", ErrInputArity, len(inputs), len(expected))
	}
	return nil
}

func (t *Trainer) Train(inputs, expected [][]float32, epochs int) error {
	if err := checkExamples(inputs, expected); err != nil {
		return err
	}

	start := time.Now()
	defer func() { t.Timings.Overall += time.Since(start) }()

	trace := NewTrace(t.Net)
	for epoch := 1; epoch <= epochs; epoch++ {
		for k := range inputs {
			g, err := t.gradients(trace, inputs[k], expected[k])
			if err != nil {
				return fmt.Errorf("epoch %d example %d: %w", epoch, k, err)
			}

			updateStart := time.Now()
			if err := t.Net.UpdateNetwork(g); err != nil {
				return fmt.Errorf("epoch %d example %d: %w", epoch, k, err)
			}
			t.Timings.WeightUpdate += time.Since(updateStart)
		}

		if t.OnEpoch != nil {
			t.OnEpoch(epoch, epochs)
		}
	}
	return nil
}

// StochasticTrain shuffles the examples every epoch, splits them into
// mini-batches of miniBatchSize (the last one may be smaller), and applies one
// update per mini-batch using the gradient averaged over the mini-batch.
func (t *Trainer) StochasticTrain(inputs, expected [][]float32, epochs, miniBatchSize int) error {
	if err := checkExamples(inputs, expected); err != nil {
		return err
	}
	if miniBatchSize <= 0 {
		return fmt.Errorf("invalid mini-batch size %d", miniBatchSize)
	}

	r := t.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	start := time.Now()
	defer func() { t.Timings.Overall += time.Since(start) }()

	// Shuffle a permutation rather than the caller's slices.
	order := make([]int, len(inputs))
	for i := range order {
		order[i] = i
	}

	trace := NewTrace(t.Net)
	for epoch := 1; epoch <= epochs; epoch++ {
		r.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		for _, batch := range miniBatches(order, miniBatchSize, t.SlidingWindows) {
			if err := t.miniBatchStep(trace, inputs, expected, batch); err != nil {
				return fmt.Errorf("epoch %d: %w", epoch, err)
			}
		}

		if t.OnEpoch != nil {
			t.OnEpoch(epoch, epochs)
		}
	}
	return nil
}

// miniBatches splits order into batches of size n.  Disjoint batches cover
// every index exactly once and the last one holds the remainder.  Sliding
// windows are every run of n consecutive indices; there are none when
// len(order) < n.
func miniBatches(order []int, n int, sliding bool) [][]int {
	var batches [][]int
	if sliding {
		for i := 0; i+n <= len(order); i++ {
			batches = append(batches, order[i:i+n])
		}
		return batches
	}

	for i := 0; i < len(order); i += n {
		batches = append(batches, order[i:min(i+n, len(order))])
	}
	return batches
}

// miniBatchStep sums the gradients of every example in batch and only then
// applies one averaged update.
func (t *Trainer) miniBatchStep(trace *Trace, inputs, expected [][]float32, batch []int) error {
	sum := ZeroGradients(t.Net)
	for _, k := range batch {
		g, err := t.gradients(trace, inputs[k], expected[k])
		if err != nil {
			return fmt.Errorf("example %d: %w", k, err)
		}
		sum, err = sum.Add(g)
		if err != nil {
			return fmt.Errorf("example %d: %w", k, err)
		}
	}

	updateStart := time.Now()
	defer func() { t.Timings.WeightUpdate += time.Since(updateStart) }()

	t.Net.mu.Lock()
	defer t.Net.mu.Unlock()
	return t.Net.step(sum, t.Net.LearningRate/float32(len(batch)))
}

// gradients runs the recording forward pass and backpropagation for one
// example.
func (t *Trainer) gradients(trace *Trace, input, expected []float32) (*Gradients, error) {
	forwardStart := time.Now()
	predicted, err := t.Net.FeedForwardAndRecord(trace, input)
	if err != nil {
		return nil, err
	}
	t.Timings.Forward += time.Since(forwardStart)

	backpropStart := time.Now()
	g, err := t.Net.BackPropagate(trace, predicted, expected)
	if err != nil {
		return nil, err
	}
	t.Timings.Backpropagation += time.Since(backpropStart)

	return g, nil
}
