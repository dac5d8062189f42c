package common

import (
	"errors"
	"fmt"
)

// Error kinds returned by the decoding and building operations. Every error produced by the loader
// wraps exactly one of these so callers can branch with errors.Is.
var (
	// ErrResource reports an out-of-range buffer/view/accessor index, an unsupported URI or truncated bytes.
	ErrResource = errors.New("resource error")

	// ErrSchema reports an unexpected component encoding, element arity or count mismatch.
	ErrSchema = errors.New("schema error")

	// ErrStructural reports a node graph that is not a tree, or a joint unreachable from its skeleton root.
	ErrStructural = errors.New("structural error")

	// ErrConfig reports a caller-supplied override that references a nonexistent root or bone.
	ErrConfig = errors.New("config error")

	// ErrFieldNotPresent reports that a named accessor field is absent from its owning object.
	// It wraps ErrSchema, but callers usually treat it as "no data" rather than a failure.
	ErrFieldNotPresent = fmt.Errorf("%w: field not present", ErrSchema)
)

// NewError creates an error of the given kind with a formatted message.
//
// Parameters:
//   - kind: one of ErrResource, ErrSchema, ErrStructural or ErrConfig
//   - format: the message format string
//   - args: the format arguments
//
// Returns:
//   - error: an error that satisfies errors.Is(err, kind)
func NewError(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// WrapError creates an error of the given kind that also wraps a cause.
//
// Parameters:
//   - kind: one of ErrResource, ErrSchema, ErrStructural or ErrConfig
//   - cause: the underlying error
//   - format: the message format string
//   - args: the format arguments
//
// Returns:
//   - error: an error that satisfies both errors.Is(err, kind) and errors.Is(err, cause)
func WrapError(kind, cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", kind, fmt.Sprintf(format, args...), cause)
}
