package artifact

import (
	"errors"
	"fmt"
)

// ErrInputMissing is returned when a stage's input artifact does not exist.
var ErrInputMissing = errors.New("input artifact missing")

// CardinalityError reports two collections that must line up one-to-one but
// do not.
type CardinalityError struct {
	What string
	Want int
	Got  int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", e.What, e.Want, e.Got)
}

// CheckCardinality returns a *CardinalityError when want != got.
func CheckCardinality(what string, want, got int) error {
	if want != got {
		return &CardinalityError{What: what, Want: want, Got: got}
	}
	return nil
}

// RequireInput fails with ErrInputMissing when path does not exist.
func RequireInput(path string) error {
	if !exists(path) {
		return fmt.Errorf("%w: %s", ErrInputMissing, path)
	}
	return nil
}
