// panic_recovery.go: panic recovery for hook calls and watcher callbacks
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"fmt"
	"runtime"

	"github.com/agilira/go-errors"
)

// ErrCodeHookPanic identifies a hook call that panicked.
const ErrCodeHookPanic = "LIFECYCLE_2104"

// RecoveryHandler defines the signature for panic recovery handlers.
type RecoveryHandler func(recovered any, stack []byte)

func captureStack() []byte {
	buf := make([]byte, 64<<10)
	n := runtime.Stack(buf, false)
	return buf[:n]
}

// withStackRecover returns a deferred function that logs a recovered panic
// together with its stack trace.
//
// Example usage:
//
//	watcher.Watch(path, func(event argus.ChangeEvent) {
//	    defer withStackRecover(logger)()
//	    // potentially panicking code
//	})
func withStackRecover(logger Logger) func() {
	return func() {
		if r := recover(); r != nil {
			logger.Error("Panic recovered",
				"panic", r,
				"stack", string(captureStack()))
		}
	}
}

// withCustomRecoveryHandler returns a deferred function that hands a
// recovered panic to handler.
func withCustomRecoveryHandler(handler RecoveryHandler) func() {
	return func() {
		if r := recover(); r != nil {
			handler(r, captureStack())
		}
	}
}

// NewHookPanicError wraps a value recovered from a panicking hook call.
func NewHookPanicError(operation string, recovered any, stack []byte) *errors.Error {
	return errors.New(ErrCodeHookPanic, fmt.Sprintf("Hook panicked during %s: %v", operation, recovered)).
		WithUserMessage("A plugin hook panicked").
		WithContext("operation", operation).
		WithContext("stack", string(stack)).
		WithSeverity("critical")
}

// callSafely invokes fn and converts a panic into a hook panic error, so a
// misbehaving hook can never unwind through the lifecycle.
func callSafely(operation string, fn func() error) (err error) {
	defer withCustomRecoveryHandler(func(recovered any, stack []byte) {
		err = NewHookPanicError(operation, recovered, stack)
	})()
	return fn()
}
