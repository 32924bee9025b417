package hoard

import (
	"errors"
)

var (
	// ErrNoLoader is returned by GetOrLoad when no loader was configured.
	ErrNoLoader = errors.New("no loader configured")
)
