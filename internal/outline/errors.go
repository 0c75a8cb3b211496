package outline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrImageURL        = errors.New("image url is empty")
)

func indexError(op string, index, length int) error {
	return fmt.Errorf("%s: %w: %d (length %d)", op, ErrIndexOutOfRange, index, length)
}

// InvariantError lists every structural problem found by Validate.
type InvariantError struct {
	Problems []string
}

func (e *InvariantError) Error() string {
	return "outline invariants violated: " + strings.Join(e.Problems, "; ")
}
