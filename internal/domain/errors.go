// Package domain defines the users, slots, and ballots of the facility booking
// system and the errors shared by its stores and services.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when an interval overlaps an existing slot.
	ErrConflict = errors.New("part or all of the requested slot is already booked")
	// ErrNotRegistered is returned when a telegram user has no account.
	ErrNotRegistered = errors.New("you are not registered, please run /register first")
	// ErrNotVerified is returned when a registered user has not confirmed their email.
	ErrNotVerified = errors.New("you are not verified, please run /get_code to get a verification code")
	// ErrUserNotFound is returned by stores when a lookup matches no user.
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyRegistered is returned when registering an existing telegram user.
	ErrAlreadyRegistered = errors.New("you are already registered")
	// ErrAlreadyBalloted is returned when a user already holds an overlapping ballot.
	ErrAlreadyBalloted = errors.New("you have already balloted for this slot")
	// ErrSlotNotFound is returned when cancelling a slot or ballot that does not exist.
	ErrSlotNotFound = errors.New("no matching booking found")
)

// StoreFailure wraps a persistence error that is neither a conflict nor a
// missing record.
type StoreFailure struct {
	Op  string
	Err error
}

func (e *StoreFailure) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreFailure) Unwrap() error {
	return e.Err
}

// WrapStore returns err unchanged when it is nil or one of the domain sentinel
// errors, and wraps it in a StoreFailure otherwise.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrConflict,
		ErrUserNotFound,
		ErrAlreadyRegistered,
		ErrAlreadyBalloted,
		ErrSlotNotFound,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	var failure *StoreFailure
	if errors.As(err, &failure) {
		return err
	}

	return &StoreFailure{Op: op, Err: err}
}
