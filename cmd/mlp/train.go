package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime/pprof"

	"github.com/ahmedtd/mlp/dataset"
	"github.com/ahmedtd/mlp/toolbox"
	"github.com/google/subcommands"
)

type TrainCommand struct {
	train dataFlags
	test  dataFlags

	layers         string
	activation     string
	learningRate   float64
	epochs         int
	miniBatchSize  int
	slidingWindows bool
	parallel       bool
	gonum          bool
	seed           int64

	fromCheckpointFile string
	outputModelFile    string

	cpuProfileFile string
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string {
	return "train"
}

func (*TrainCommand) Synopsis() string {
	return "Train a model"
}

func (*TrainCommand) Usage() string {
	return ``
}

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	c.train.prefix = "train"
	c.train.SetFlags(f, "x_train.npy", "y_train.npy")
	c.test.prefix = "test"
	c.test.SetFlags(f, "x_test.npy", "y_test.npy")

	f.StringVar(&c.layers, "layers", "784,128,10", "Comma-separated layer sizes, input layer first")
	f.StringVar(&c.activation, "activation", "sigmoid", "Activation function (sigmoid, relu, tanh, linear)")
	f.Float64Var(&c.learningRate, "learning-rate", 0.1, "Learning rate")
	f.IntVar(&c.epochs, "epochs", 10, "Number of epochs")
	f.IntVar(&c.miniBatchSize, "mini-batch", 0, "Mini-batch size; 0 trains online, one update per example")
	f.BoolVar(&c.slidingWindows, "sliding-windows", false, "Use overlapping mini-batch windows instead of disjoint mini-batches")
	f.BoolVar(&c.parallel, "parallel", false, "Split matrix products across goroutines")
	f.BoolVar(&c.gonum, "gonum", false, "Compute matrix products with gonum")
	f.Int64Var(&c.seed, "seed", 12345, "Random seed")

	f.StringVar(&c.fromCheckpointFile, "from-checkpoint", "", "Path to a model to continue training")
	f.StringVar(&c.outputModelFile, "output-model-file", "mlp-out.safetensors", "Path to save the trained model (safetensors format)")

	f.StringVar(&c.cpuProfileFile, "cpu-profile", "", "Write a CPU profile")
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) executeErr(ctx context.Context) error {
	if c.cpuProfileFile != "" {
		f, err := os.Create(c.cpuProfileFile)
		if err != nil {
			return fmt.Errorf("while creating CPU profile file: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("while starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	trainData, err := c.train.Load()
	if err != nil {
		return fmt.Errorf("while loading training data: %w", err)
	}
	var testData *dataset.Examples
	if c.test.configured() {
		testData, err = c.test.Load()
		if err != nil {
			return fmt.Errorf("while loading test data: %w", err)
		}
	}
	log.Printf("Data loaded: %d training examples", trainData.Len())

	r := rand.New(rand.NewSource(c.seed))

	net, err := c.buildNetwork(r)
	if err != nil {
		return err
	}

	switch {
	case c.gonum:
		net.Multiplier = toolbox.GonumMultiplier{}
	case c.parallel:
		net.Multiplier = toolbox.ParallelMultiplier{}
	}

	tr := &toolbox.Trainer{
		Net:            net,
		Rand:           r,
		SlidingWindows: c.slidingWindows,
	}

	for epoch := 1; epoch <= c.epochs; epoch++ {
		if c.miniBatchSize > 0 {
			err = tr.StochasticTrain(trainData.Inputs, trainData.Outputs, 1, c.miniBatchSize)
		} else {
			err = tr.Train(trainData.Inputs, trainData.Outputs, 1)
		}
		if err != nil {
			return fmt.Errorf("while training epoch %d: %w", epoch, err)
		}

		if err := saveModel(c.outputModelFile, net); err != nil {
			return fmt.Errorf("while writing checkpoint: %w", err)
		}

		if !shouldReport(epoch, c.epochs) {
			continue
		}

		log.Printf("Epoch %d of %d", epoch, c.epochs)
		if err := report("training", net, trainData); err != nil {
			return err
		}
		if testData != nil {
			if err := report("testing", net, testData); err != nil {
				return err
			}
		}
		log.Printf("epoch %d timings overall=%.1f forward=%.1f backprop=%.1f weightupdate=%.1f",
			epoch,
			tr.Timings.Overall.Seconds(),
			tr.Timings.Forward.Seconds(),
			tr.Timings.Backpropagation.Seconds(),
			tr.Timings.WeightUpdate.Seconds(),
		)
		tr.Timings.Reset()
	}

	return nil
}

func (c *TrainCommand) buildNetwork(r *rand.Rand) (*toolbox.Network, error) {
	if c.fromCheckpointFile != "" {
		net, err := loadModel(c.fromCheckpointFile)
		if err != nil {
			return nil, fmt.Errorf("while loading initial checkpoint: %w", err)
		}
		return net, nil
	}

	layers, err := parseLayers(c.layers)
	if err != nil {
		return nil, err
	}
	activation, err := toolbox.ParseActivation(c.activation)
	if err != nil {
		return nil, err
	}
	net, err := toolbox.New(layers, activation, float32(c.learningRate), r)
	if err != nil {
		return nil, fmt.Errorf("while building network: %w", err)
	}
	return net, nil
}

// report logs the loss, the exact-match score and the arg-max accuracy on e.
func report(name string, net *toolbox.Network, e *dataset.Examples) error {
	loss, err := net.Loss(e.Inputs, e.Outputs)
	if err != nil {
		return fmt.Errorf("while computing %s loss: %w", name, err)
	}
	score, err := net.Test(e.Inputs, e.Outputs)
	if err != nil {
		return fmt.Errorf("while testing on %s data: %w", name, err)
	}
	correct, err := countCorrect(net, e)
	if err != nil {
		return fmt.Errorf("while classifying %s data: %w", name, err)
	}

	log.Printf("%s loss=%f score=%d/%d accuracy-pct=%.1f",
		name,
		loss/float32(e.Len()),
		score, e.Len(),
		float32(correct)/float32(e.Len())*float32(100),
	)
	return nil
}

func countCorrect(net *toolbox.Network, e *dataset.Examples) (int, error) {
	correct := 0
	for k := range e.Inputs {
		digit, err := net.Predict(e.Inputs[k])
		if err != nil {
			return 0, err
		}
		if digit == e.Labels[k] {
			correct++
		}
	}
	return correct, nil
}
