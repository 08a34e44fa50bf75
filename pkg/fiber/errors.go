package fiber

import "errors"

var (
	// ErrLock reports misuse of a lock: double-lock by the owner, unlock of
	// an unlocked mutex, or unlock by a non-owner.
	ErrLock = errors.New("fiber: lock error")

	// ErrResourceUnavailable reports temporary resource exhaustion, for
	// example a stack allocation failure at fiber creation.
	ErrResourceUnavailable = errors.New("fiber: resource temporarily unavailable")

	// ErrInvalidArgument reports a structurally invalid argument, for
	// example bounded-channel watermarks with hwm <= lwm.
	ErrInvalidArgument = errors.New("fiber: invalid argument")

	// ErrInterrupted is returned at an interruption point when a pending
	// interruption is consumed.
	ErrInterrupted = errors.New("fiber: interrupted")

	// ErrJoinSelf is returned when a fiber attempts to join itself.
	ErrJoinSelf = errors.New("fiber: join on self")

	// ErrShutdown is returned by Spawn after Shutdown has been requested.
	ErrShutdown = errors.New("fiber: scheduler is shut down")
)
