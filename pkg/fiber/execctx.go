package fiber

// execContext is the low-level switch primitive. Every context is backed by
// a goroutine parked on a one-slot wake channel; switchTo unparks the target
// and parks the caller, so at most one context per scheduler runs at a time.
// The value passed through the channel is the handle of whichever context
// switched back in.
type execContext struct {
	wake chan *execContext
}

func newExecContext() *execContext {
	return &execContext{wake: make(chan *execContext, 1)}
}

// switchTo transfers control to target and parks the caller. It returns once
// some other context switches back into the caller.
func (e *execContext) switchTo(target *execContext) *execContext {
	target.wake <- e
	return <-e.wake
}

// transferTo hands control to target without expecting to be resumed. Used
// on the terminate path, after which the caller's goroutine returns.
func (e *execContext) transferTo(target *execContext) {
	target.wake <- e
}

// park blocks until some context switches in. Used once by a fresh fiber
// goroutine to await its first resume.
func (e *execContext) park() *execContext {
	return <-e.wake
}
