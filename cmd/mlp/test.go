package main

import (
	"context"
	"flag"
	"log"

	"github.com/google/subcommands"
)

type TestCommand struct {
	data      dataFlags
	modelFile string
}

var _ subcommands.Command = (*TestCommand)(nil)

func (*TestCommand) Name() string {
	return "test"
}

func (*TestCommand) Synopsis() string {
	return "Score a trained model on a data set"
}

func (*TestCommand) Usage() string {
	return ``
}

func (c *TestCommand) SetFlags(f *flag.FlagSet) {
	c.data.prefix = "test"
	c.data.SetFlags(f, "x_test.npy", "y_test.npy")
	f.StringVar(&c.modelFile, "model", "mlp-out.safetensors", "Path to the model produced by the train command")
}

func (c *TestCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TestCommand) executeErr(ctx context.Context) error {
	net, err := loadModel(c.modelFile)
	if err != nil {
		return err
	}

	data, err := c.data.Load()
	if err != nil {
		return err
	}

	return report("testing", net, data)
}
