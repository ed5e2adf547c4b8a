package vjcascade

import "github.com/pkg/errors"

var (
	// ErrInvalidArgument reports an empty or out of bounds patch, a zero size
	// window or inconsistent training input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCorruptCascade reports a truncated or malformed cascade file.
	ErrCorruptCascade = errors.New("corrupt cascade file")
)
