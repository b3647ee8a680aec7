package errx

import (
	"errors"
	"fmt"
	"runtime"
)

// Code is the stable identifier of an error's meaning.
type Code string

type kind uint8

const (
	kindBiz kind = iota
	kindSys
)

// Error is the coded error model shared by every package:
//   - code/msg: the meaning exposed to callers
//   - data: diagnostic context (copied, never shared)
//   - cause: the original error chain, for tracing only
//   - stack: captured once, where a system error first wraps a cause
type Error struct {
	code  Code
	msg   string
	data  map[string]any
	cause error
	stack []uintptr
	kind  kind
}

// NewBiz creates an expected, caller-facing error. It never captures a stack.
func NewBiz(code Code, msg string) *Error {
	return &Error{code: code, msg: msg, kind: kindBiz}
}

// NewSys creates a configuration or infrastructure error.
func NewSys(code Code, msg string) *Error {
	return &Error{code: code, msg: msg, kind: kindSys}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.msg
	if len(e.data) > 0 {
		msg = fmt.Sprintf("%s %v", msg, e.data)
	}
	if msg == "" {
		if e.cause == nil {
			return string(e.code)
		}
		return fmt.Sprintf("%s: %v", e.code, e.cause)
	}
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, msg, e.cause)
}

// Unwrap lets errors.Is / errors.As follow the cause chain.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is compares by code only; msg, data and cause are ignored.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.code == t.code
}

func (e *Error) Code() Code {
	if e == nil {
		return ""
	}
	return e.code
}

func (e *Error) Msg() string {
	if e == nil {
		return ""
	}
	return e.msg
}

// System reports whether e is a configuration/infrastructure error.
func (e *Error) System() bool {
	return e != nil && e.kind == kindSys
}

// Data returns a copy of the diagnostic context.
func (e *Error) Data() map[string]any {
	if e == nil || e.data == nil {
		return nil
	}
	return cloneAnyMap(e.data)
}

// Stack returns the call stack captured when a system error first wrapped a cause.
func (e *Error) Stack() []uintptr {
	if e == nil || len(e.stack) == 0 {
		return nil
	}
	out := make([]uintptr, len(e.stack))
	copy(out, e.stack)
	return out
}

func (e *Error) WithData(key string, value any) *Error {
	next := e.clone()
	if next.data == nil {
		next.data = make(map[string]any, 1)
	}
	next.data[key] = value
	return next
}

func (e *Error) WithCause(cause error) *Error {
	next := e.clone()
	next.cause = cause
	if next.kind == kindSys && cause != nil && len(next.stack) == 0 && !hasStackInChain(cause) {
		next.stack = captureStack(3)
	}
	return next
}

func (e *Error) clone() *Error {
	return &Error{
		code:  e.code,
		msg:   e.msg,
		data:  cloneAnyMap(e.data),
		cause: e.cause,
		stack: cloneStack(e.stack),
		kind:  e.kind,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ""
}

func cloneAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneStack(in []uintptr) []uintptr {
	if len(in) == 0 {
		return nil
	}
	out := make([]uintptr, len(in))
	copy(out, in)
	return out
}

func captureStack(skip int) []uintptr {
	const maxDepth = 64
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip, pcs)
	if n <= 0 {
		return nil
	}
	return pcs[:n]
}

func hasStackInChain(err error) bool {
	const maxDepth = 32
	for i := 0; i < maxDepth && err != nil; i++ {
		if sp, ok := err.(interface{ Stack() []uintptr }); ok && len(sp.Stack()) != 0 {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
