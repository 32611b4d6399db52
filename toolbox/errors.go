package toolbox

import "errors"

// All errors returned by this package wrap one of these sentinels together with
// the offending shapes.  Match them with errors.Is.
var (
	// ErrShapeMismatch is returned when operand dimensions violate an
	// operation's precondition: elementwise operations need identical shapes
	// and products need a.Cols == b.Rows.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidTopology is returned by New when fewer than two layer sizes are
	// given, or when a layer size is not positive.
	ErrInvalidTopology = errors.New("invalid topology")

	// ErrInputArity is returned when an input vector does not match the first
	// layer, or an expected output does not match the last layer.
	ErrInputArity = errors.New("input arity mismatch")

	// ErrIncompleteTrace is returned by BackPropagate when the trace is nil or was
	// not filled by a recording pass over this network, and by
	// FeedForwardAndRecord when the trace is nil.
	ErrIncompleteTrace = errors.New("incomplete trace")

	// ErrUnknownActivation is returned by ParseActivation, Activation.UnmarshalText
	// and Load when an activation name is not one of the known activations, and
	// by MarshalText for an Activation value outside the defined constants.
	ErrUnknownActivation = errors.New("unknown activation")
)
