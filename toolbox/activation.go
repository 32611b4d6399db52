package toolbox

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Activation selects the elementwise nonlinearity applied after every dense
// layer.  It is a closed set so that a saved model can name it by tag.
type Activation int

const (
	Sigmoid Activation = iota
	ReLU
	Tanh
	Linear
)

var activationNames = map[Activation]string{
	Sigmoid: "sigmoid",
	ReLU:    "relu",
	Tanh:    "tanh",
	Linear:  "linear",
}

// Forward evaluates the activation at the pre-activation value z.
func (a Activation) Forward(z float32) float32 {
	switch a {
	case Sigmoid:
		return 1 / (1 + math32.Exp(-z))
	case ReLU:
		return math32.Max(0, z)
	case Tanh:
		return math32.Tanh(z)
	case Linear:
		return z
	default:
		panic("unhandled activation function")
	}
}

// Derivative evaluates d Forward / dz at the pre-activation value z (not at
// the activation's output).
//
// ReLU's derivative at exactly 0 is taken to be 0.
func (a Activation) Derivative(z float32) float32 {
	switch a {
	case Sigmoid:
		s := Sigmoid.Forward(z)
		return s * (1 - s)
	case ReLU:
		if z > 0 {
			return 1
		}
		return 0
	case Tanh:
		t := math32.Tanh(z)
		return 1 - t*t
	case Linear:
		return 1
	default:
		panic("unhandled activation function")
	}
}

func (a Activation) String() string {
	if name, ok := activationNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Activation(%d)", int(a))
}

// ParseActivation is the inverse of Activation.String.
func ParseActivation(name string) (Activation, error) {
	for a, n := range activationNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownActivation, name)
}

func (a Activation) MarshalText() ([]byte, error) {
	if _, ok := activationNames[a]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownActivation, int(a))
	}
	return []byte(a.String()), nil
}

func (a *Activation) UnmarshalText(text []byte) error {
	parsed, err := ParseActivation(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
