// Command mlp trains and evaluates dense feedforward networks.
//
// To reproduce the XOR demo: `go run ./cmd/mlp xor`
//
// To train on MNIST: `go run ./cmd/mlp train --train-images=train-images-idx3-ubyte --train-labels=train-labels-idx1-ubyte --test-images=t10k-images-idx3-ubyte --test-labels=t10k-labels-idx1-ubyte`
//
// To infer: `go run ./cmd/mlp infer --model=mlp-out.safetensors --image=five.png`
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ahmedtd/mlp/dataset"
	"github.com/ahmedtd/mlp/toolbox"
	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&XORCommand{}, "")
	subcommands.Register(&TrainCommand{}, "")
	subcommands.Register(&TestCommand{}, "")
	subcommands.Register(&InferCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

// dataFlags selects a data split either from a pair of IDX files or from two
// arrays inside a .npz archive.
type dataFlags struct {
	prefix string

	imagesFile string
	labelsFile string

	npzFile   string
	imagesKey string
	labelsKey string

	classes int
	limit   int
}

func (d *dataFlags) SetFlags(f *flag.FlagSet, defaultImagesKey, defaultLabelsKey string) {
	f.StringVar(&d.imagesFile, d.prefix+"-images", "", "Path to the IDX images file")
	f.StringVar(&d.labelsFile, d.prefix+"-labels", "", "Path to the IDX labels file")
	f.StringVar(&d.npzFile, d.prefix+"-npz", "", "Path to a .npz archive, used instead of the IDX files")
	f.StringVar(&d.imagesKey, d.prefix+"-images-key", defaultImagesKey, "Images array name inside the .npz archive")
	f.StringVar(&d.labelsKey, d.prefix+"-labels-key", defaultLabelsKey, "Labels array name inside the .npz archive")
	f.IntVar(&d.classes, d.prefix+"-classes", 10, "Number of label classes")
	f.IntVar(&d.limit, d.prefix+"-limit", 0, "Use only the first N examples (0 means all)")
}

func (d *dataFlags) configured() bool {
	return d.npzFile != "" || d.imagesFile != ""
}

func (d *dataFlags) Load() (*dataset.Examples, error) {
	var (
		e   *dataset.Examples
		err error
	)
	switch {
	case d.npzFile != "":
		e, err = dataset.LoadNPZ(d.npzFile, d.imagesKey, d.labelsKey, d.classes)
	case d.imagesFile != "" && d.labelsFile != "":
		e, err = dataset.OpenIDX(d.imagesFile, d.labelsFile, d.classes)
	default:
		return nil, fmt.Errorf("need --%s-npz or both --%s-images and --%s-labels", d.prefix, d.prefix, d.prefix)
	}
	if err != nil {
		return nil, err
	}
	return e.Limit(d.limit), nil
}

// parseLayers parses a comma-separated list of layer sizes like "784,128,10".
func parseLayers(s string) ([]int, error) {
	var layers []int
	for _, field := range strings.Split(s, ",") {
		size, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("bad layer size %q: %w", field, err)
		}
		layers = append(layers, size)
	}
	return layers, nil
}

func loadModel(path string) (*toolbox.Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening model file: %w", err)
	}
	defer f.Close()

	net, err := toolbox.Load(f)
	if err != nil {
		return nil, fmt.Errorf("while loading model: %w", err)
	}
	return net, nil
}

func saveModel(path string, net *toolbox.Network) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("while creating model file: %w", err)
	}

	if err := net.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("while writing model: %w", err)
	}
	return f.Close()
}

// shouldReport mirrors the progress cadence of the training loops: every
// epoch for short runs, every hundredth otherwise.
func shouldReport(epoch, epochs int) bool {
	return epochs < 100 || epoch%100 == 0
}
