package toolbox

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMiniBatchesDisjoint(t *testing.T) {
	order := []int{4, 2, 0, 1, 3}
	got := miniBatches(order, 2, false)
	want := [][]int{{4, 2}, {0, 1}, {3}}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Wrong batches; diff (-got +want)\n%s", diff)
	}
}

func TestMiniBatchesSliding(t *testing.T) {
	order := []int{4, 2, 0, 1, 3}
	got := miniBatches(order, 3, true)
	want := [][]int{{4, 2, 0}, {2, 0, 1}, {0, 1, 3}}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Wrong batches; diff (-got +want)\n%s", diff)
	}

	if got := miniBatches(order, 6, true); len(got) != 0 {
		t.Errorf("got %d windows larger than the data set, want none", len(got))
	}
}

func assertSameParameters(t *testing.T, got, want *Network) {
	t.Helper()
	for l := range want.Weights {
		if diff := cmp.Diff(got.Weights[l], want.Weights[l]); diff != "" {
			t.Errorf("layer %d weights differ; diff (-got +want)\n%s", l, diff)
		}
		if diff := cmp.Diff(got.Biases[l], want.Biases[l]); diff != "" {
			t.Errorf("layer %d biases differ; diff (-got +want)\n%s", l, diff)
		}
	}
}

func TestStochasticTrainBatchOfOneMatchesTrain(t *testing.T) {
	online, err := New([]int{2, 3, 1}, Sigmoid, 1.0, rand.New(rand.NewSource(12345)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stochastic := online.Clone()

	inputs := [][]float32{{0, 1}}
	expected := [][]float32{{1}}

	if err := online.Train(inputs, expected, 1); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if err := stochastic.StochasticTrain(inputs, expected, 1, 1, rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("StochasticTrain: %v", err)
	}

	assertSameParameters(t, stochastic, online)
}

func TestStochasticTrainAveragesMiniBatch(t *testing.T) {
	net, err := New([]int{2, 3, 2}, Sigmoid, 0.5, rand.New(rand.NewSource(12345)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	inputs := [][]float32{{0, 1}, {1, 0.5}}
	expected := [][]float32{{1, 0}, {0, 1}}

	// Both gradients are taken at the starting weights: no update may happen
	// in the middle of a mini-batch.
	want := net.Clone()
	sum := ZeroGradients(want)
	trace := NewTrace(want)
	for k := range inputs {
		out, err := want.FeedForwardAndRecord(trace, inputs[k])
		if err != nil {
			t.Fatalf("FeedForwardAndRecord: %v", err)
		}
		g, err := want.BackPropagate(trace, out, expected[k])
		if err != nil {
			t.Fatalf("BackPropagate: %v", err)
		}
		sum, err = sum.Add(g)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := want.step(sum, want.LearningRate/2); err != nil {
		t.Fatalf("step: %v", err)
	}

	if err := net.StochasticTrain(inputs, expected, 1, 2, rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("StochasticTrain: %v", err)
	}

	assertSameParameters(t, net, want)
}

func TestStochasticTrainLearnsXOR(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		net, err := New([]int{2, 4, 1}, Sigmoid, 2.0, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := net.StochasticTrain(xorInputs, xorExpected, 10000, 2, rand.New(rand.NewSource(seed))); err != nil {
			t.Fatalf("StochasticTrain: %v", err)
		}
		score, err := net.Test(xorInputs, xorExpected)
		if err != nil {
			t.Fatalf("Test: %v", err)
		}
		t.Logf("seed=%d score=%d/4", seed, score)
		if score == 4 {
			return
		}
	}
	t.Errorf("no initialization learned XOR")
}

func TestTrainerReportsEpochs(t *testing.T) {
	net, err := New([]int{2, 2, 1}, ReLU, 0.1, rand.New(rand.NewSource(12345)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got []int
	tr := &Trainer{
		Net:  net,
		Rand: rand.New(rand.NewSource(1)),
		OnEpoch: func(epoch, epochs int) {
			if epochs != 3 {
				t.Errorf("OnEpoch got epochs=%d, want 3", epochs)
			}
			got = append(got, epoch)
		},
	}
	if err := tr.StochasticTrain(xorInputs, xorExpected, 3, 3); err != nil {
		t.Fatalf("StochasticTrain: %v", err)
	}
	if diff := cmp.Diff(got, []int{1, 2, 3}); diff != "" {
		t.Errorf("Wrong epochs reported; diff (-got +want)\n%s", diff)
	}
	if tr.Timings.Overall <= 0 {
		t.Errorf("Timings.Overall = %v, want > 0", tr.Timings.Overall)
	}
}

func TestTrainRejectsBadExamples(t *testing.T) {
	net, err := New([]int{2, 2, 1}, Sigmoid, 0.1, rand.New(rand.NewSource(12345)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := net.Clone()

	if err := net.Train(xorInputs, xorExpected[:3], 1); err == nil {
		t.Errorf("Train accepted mismatched example counts")
	}
	if err := net.StochasticTrain(xorInputs, xorExpected, 1, 0, nil); err == nil {
		t.Errorf("StochasticTrain accepted mini-batch size 0")
	}
	if err := net.Train([][]float32{{1, 2, 3}}, [][]float32{{1}}, 1); err == nil {
		t.Errorf("Train accepted an input of the wrong width")
	}

	assertSameParameters(t, net, before)
}
