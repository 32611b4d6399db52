package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/ahmedtd/mlp/toolbox"
	"github.com/google/subcommands"
)

type XORCommand struct {
	epochs           int
	stochasticEpochs int
	learningRate     float64
	seed             int64
}

var _ subcommands.Command = (*XORCommand)(nil)

func (*XORCommand) Name() string {
	return "xor"
}

func (*XORCommand) Synopsis() string {
	return "Learn XOR with a 2-3-1 sigmoid network"
}

func (*XORCommand) Usage() string {
	return ``
}

func (c *XORCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.epochs, "epochs", 10000, "Online gradient descent epochs")
	f.IntVar(&c.stochasticEpochs, "stochastic-epochs", 30, "Mini-batch epochs run after online training")
	f.Float64Var(&c.learningRate, "learning-rate", 1.0, "Learning rate")
	f.Int64Var(&c.seed, "seed", 12345, "Random seed")
}

func (c *XORCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *XORCommand) executeErr(ctx context.Context) error {
	inputs := [][]float32{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	outputs := [][]float32{{0}, {1}, {1}, {0}}

	r := rand.New(rand.NewSource(c.seed))

	net, err := toolbox.New([]int{2, 3, 1}, toolbox.Sigmoid, float32(c.learningRate), r)
	if err != nil {
		return fmt.Errorf("while building network: %w", err)
	}

	tr := &toolbox.Trainer{
		Net:  net,
		Rand: r,
		OnEpoch: func(epoch, epochs int) {
			if shouldReport(epoch, epochs) {
				log.Printf("Epoch %d of %d", epoch, epochs)
			}
		},
	}

	if err := tr.Train(inputs, outputs, c.epochs); err != nil {
		return fmt.Errorf("while training: %w", err)
	}
	if err := reportXOR(net, inputs, outputs); err != nil {
		return err
	}

	if err := tr.StochasticTrain(inputs, outputs, c.stochasticEpochs, 1); err != nil {
		return fmt.Errorf("while training: %w", err)
	}
	return reportXOR(net, inputs, outputs)
}

func reportXOR(net *toolbox.Network, inputs, outputs [][]float32) error {
	score, err := net.Test(inputs, outputs)
	if err != nil {
		return fmt.Errorf("while testing: %w", err)
	}
	loss, err := net.Loss(inputs, outputs)
	if err != nil {
		return fmt.Errorf("while computing loss: %w", err)
	}
	log.Printf("Score: %d/%d loss=%f", score, len(inputs), loss)
	return nil
}
