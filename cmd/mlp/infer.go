package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"

	"github.com/google/subcommands"

	_ "image/jpeg"
	_ "image/png"
)

type InferCommand struct {
	modelFile string
	imageFile string
}

var _ subcommands.Command = (*InferCommand)(nil)

func (*InferCommand) Name() string {
	return "infer"
}

func (*InferCommand) Synopsis() string {
	return "Classify an image with a trained model"
}

func (*InferCommand) Usage() string {
	return ``
}

func (c *InferCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.modelFile, "model", "mlp-out.safetensors", "Path to the model produced by the train command")
	f.StringVar(&c.imageFile, "image", "", "Path to the image to predict")
}

func (c *InferCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *InferCommand) executeErr(ctx context.Context) error {
	net, err := loadModel(c.modelFile)
	if err != nil {
		return err
	}

	x, err := c.loadImage(net.Layers[0])
	if err != nil {
		return fmt.Errorf("while loading image: %w", err)
	}

	digit, err := net.Predict(x)
	if err != nil {
		return fmt.Errorf("while predicting: %w", err)
	}

	log.Printf("Prediction: %d", digit)
	return nil
}

// loadImage reads a grayscale version of the image as a flat row-major input
// vector with values in [0, 1].
func (c *InferCommand) loadImage(inputSize int) ([]float32, error) {
	f, err := os.Open(c.imageFile)
	if err != nil {
		return nil, fmt.Errorf("while opening image file: %w", err)
	}
	defer f.Close()

	rawImg, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("while decoding image: %w", err)
	}

	rawBounds := rawImg.Bounds()
	width, height := rawBounds.Dx(), rawBounds.Dy()
	if width*height != inputSize {
		return nil, fmt.Errorf("image is %dx%d, model expects %d pixels", width, height, inputSize)
	}

	out := make([]float32, inputSize)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray := color.GrayModel.Convert(rawImg.At(rawBounds.Min.X+x, rawBounds.Min.Y+y)).(color.Gray)
			out[y*width+x] = float32(gray.Y) / float32(255)
		}
	}

	return out, nil
}
