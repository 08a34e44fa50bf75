package fiber

import (
	"fmt"
	"os"
)

// debugLog is set by embedding applications; the runtime itself carries no
// logging dependency.
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function.
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// fatalFiberError implements the contract-violation policy: a fiber callable
// that exits with an error other than ErrInterrupted, with no error handler
// willing to absorb it, terminates the process after printing the error.
var fatalFiberError = func(f *Fiber, err error) {
	if debugLog != nil {
		debugLog("fatal fiber error", f.ID(), err)
	}
	fmt.Fprintf(os.Stderr, "fiber %d terminated with unhandled error: %v\n", f.ID(), err)
	os.Exit(2)
}
