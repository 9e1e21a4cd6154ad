package actions

import "errors"

var (
	// ErrQueueFull is returned by Submit when MaxSize actions are already
	// waiting. Callers surface it as a distinct "queue full" response.
	ErrQueueFull = errors.New("action queue full")
	// ErrNotRunning is returned when the queue was never created or has been
	// stopped.
	ErrNotRunning = errors.New("action queue not running")
	// ErrUnknownKind rejects kinds outside the closed set.
	ErrUnknownKind = errors.New("unknown action kind")
	// ErrTooManyParams rejects submissions with more than MaxParams values.
	ErrTooManyParams = errors.New("too many action parameters")
)

// IsQueueFull reports whether err means the queue rejected the action for lack
// of room.
func IsQueueFull(err error) bool { return errors.Is(err, ErrQueueFull) }

// IsNotRunning reports whether err means the queue is unavailable.
func IsNotRunning(err error) bool { return errors.Is(err, ErrNotRunning) }
