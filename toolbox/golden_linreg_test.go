package toolbox

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
)

func TestAgreesWithHandcodedLinreg(t *testing.T) {
	alpha := float32(0.01)
	epochs := 20

	x, y := generate1DLinRegDataset(1000)

	net, err := New([]int{1, 1}, Linear, alpha, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	net.Weights[0] = Zeros(1, 1)
	net.Biases[0] = Zeros(1, 1)

	if err := net.Train(x, y, epochs); err != nil {
		t.Fatalf("Train: %v", err)
	}
	t.Logf("toolkit m=%v b=%v", net.Weights[0].At(0, 0), net.Biases[0].At(0, 0))

	m, b := onlineLinReg(x, y, alpha, epochs)
	t.Logf("handcoded m=%v b=%v", m, b)

	if math32.Abs(net.Weights[0].At(0, 0)-m) > 0.001 {
		t.Errorf("Disagreement on m parameter; got %v, want %v", net.Weights[0].At(0, 0), m)
	}

	if math32.Abs(net.Biases[0].At(0, 0)-b) > 0.001 {
		t.Errorf("Disagreement on b parameter; got %v, want %v", net.Biases[0].At(0, 0), b)
	}
}

func generate1DLinRegDataset(n int) (x, y [][]float32) {
	r := rand.New(rand.NewSource(12345))

	for i := 0; i < n; i++ {
		// Normalization is important --- if I multiply x1 * 1000, the loss is
		// huge and the model blows up with NaNs.
		x1 := r.Float32()
		y1 := 10*x1 + 30

		// Perturb the point a little bit
		y1 += (r.Float32() - 0.5) * 10

		x = append(x, []float32{x1})
		y = append(y, []float32{y1})
	}

	return x, y
}

// onlineLinReg fits y = m*x + b by per-example gradient descent on
// (pred - y)^2.
func onlineLinReg(x, y [][]float32, learningRate float32, epochs int) (m, b float32) {
	for e := 0; e < epochs; e++ {
		for i := range x {
			pred := m*x[i][0] + b
			gradM := 2 * (pred - y[i][0]) * x[i][0]
			gradB := 2 * (pred - y[i][0])
			m = m - learningRate*gradM
			b = b - learningRate*gradB
		}
	}
	return m, b
}
